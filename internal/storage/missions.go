package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meltforce/heromissions/internal/models"
)

// ErrNotFound is returned when a mission does not exist for the user.
var ErrNotFound = errors.New("not found")

const missionColumns = `id, user_id, exercise, goal, repetitions, stars, goal_reached,
	events_total, events_low_confidence, events_mismatch, started_at, ended_at`

// InsertMission stores a finished mission. Re-inserting the same ID is a no-op.
func (db *DB) InsertMission(ctx context.Context, r *models.MissionResult) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO missions (`+missionColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 ON CONFLICT (id) DO NOTHING`,
		r.ID, r.UserID, r.Exercise, r.Goal, r.Repetitions, r.Stars, r.GoalReached,
		r.EventsTotal, r.EventsLowConfidence, r.EventsMismatch, r.StartedAt, r.EndedAt)
	if err != nil {
		return fmt.Errorf("inserting mission: %w", err)
	}
	return nil
}

// QueryMissions returns a user's missions started in [start, end), newest
// first. An empty exercise matches all exercises.
func (db *DB) QueryMissions(ctx context.Context, start, end time.Time, userID int, exercise string) ([]models.MissionResult, error) {
	query, args := missionQuery(start, end, userID, exercise)
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying missions: %w", err)
	}
	defer rows.Close()

	var result []models.MissionResult
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func missionQuery(start, end time.Time, userID int, exercise string) (string, []any) {
	query := `SELECT ` + missionColumns + `
		 FROM missions
		 WHERE started_at >= $1 AND started_at < $2 AND user_id = $3`
	args := []any{start, end, userID}
	if exercise != "" {
		query += ` AND exercise = $4`
		args = append(args, exercise)
	}
	return query + ` ORDER BY started_at DESC`, args
}

// GetMission retrieves a single mission owned by the user.
func (db *DB) GetMission(ctx context.Context, id uuid.UUID, userID int) (*models.MissionResult, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+missionColumns+` FROM missions WHERE id = $1 AND user_id = $2`,
		id, userID)
	m, err := scanMission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func scanMission(row pgx.Row) (models.MissionResult, error) {
	var m models.MissionResult
	err := row.Scan(&m.ID, &m.UserID, &m.Exercise, &m.Goal, &m.Repetitions, &m.Stars, &m.GoalReached,
		&m.EventsTotal, &m.EventsLowConfidence, &m.EventsMismatch, &m.StartedAt, &m.EndedAt)
	if err != nil {
		return m, fmt.Errorf("scanning mission: %w", err)
	}
	return m, nil
}
