// Package journal keeps a local SQLite record of missions replayed offline,
// so the same recording is not counted twice.
package journal

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/heromissions/internal/models"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one journaled mission.
type Entry struct {
	models.MissionResult
	Source     string    `json:"source"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Journal is the journal.db file in a directory.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal at dir/journal.db.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "journal.db"))
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS missions (
		id                    TEXT PRIMARY KEY,
		source                TEXT NOT NULL DEFAULT '',
		user_id               INTEGER NOT NULL,
		exercise              TEXT NOT NULL,
		goal                  INTEGER NOT NULL,
		repetitions           INTEGER NOT NULL,
		stars                 INTEGER NOT NULL,
		goal_reached          INTEGER NOT NULL,
		events_total          INTEGER NOT NULL,
		events_low_confidence INTEGER NOT NULL,
		events_mismatch       INTEGER NOT NULL,
		started_at            TEXT NOT NULL,
		ended_at              TEXT NOT NULL,
		recorded_at           TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_missions_source ON missions (source)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal index: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record stores a finished mission. source identifies the recording it was
// replayed from and may be empty.
func (j *Journal) Record(ctx context.Context, r *models.MissionResult, source string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO missions (id, source, user_id, exercise, goal, repetitions, stars,
		 goal_reached, events_total, events_low_confidence, events_mismatch,
		 started_at, ended_at, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), source, r.UserID, r.Exercise, r.Goal, r.Repetitions, r.Stars,
		r.GoalReached, r.EventsTotal, r.EventsLowConfidence, r.EventsMismatch,
		r.StartedAt.UTC().Format(timeLayout),
		r.EndedAt.UTC().Format(timeLayout),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("recording mission %s: %w", r.ID, err)
	}
	return nil
}

// HasSource reports whether a recording with this source hash was already journaled.
func (j *Journal) HasSource(ctx context.Context, source string) (bool, error) {
	var count int
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM missions WHERE source = ?`, source,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns up to limit entries, most recently started first. A limit of
// zero or less returns everything.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, source, user_id, exercise, goal, repetitions, stars, goal_reached,
		 events_total, events_low_confidence, events_mismatch, started_at, ended_at, recorded_at
		 FROM missions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                         Entry
			id, started, ended, recAt string
		)
		if err := rows.Scan(&id, &e.Source, &e.UserID, &e.Exercise, &e.Goal, &e.Repetitions,
			&e.Stars, &e.GoalReached, &e.EventsTotal, &e.EventsLowConfidence, &e.EventsMismatch,
			&started, &ended, &recAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("journal entry id %q: %w", id, err)
		}
		if e.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("journal entry %s started_at: %w", id, err)
		}
		if e.EndedAt, err = time.Parse(time.RFC3339Nano, ended); err != nil {
			return nil, fmt.Errorf("journal entry %s ended_at: %w", id, err)
		}
		if e.RecordedAt, err = time.Parse(time.RFC3339Nano, recAt); err != nil {
			return nil, fmt.Errorf("journal entry %s recorded_at: %w", id, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// HashSource computes the SHA-256 of a recording, used as its source key.
func HashSource(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
