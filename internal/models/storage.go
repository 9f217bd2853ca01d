package models

import (
	"time"

	"github.com/google/uuid"
)

// MissionResult is a finished mission, ready for insertion into the missions table.
type MissionResult struct {
	ID                  uuid.UUID `json:"id"`
	UserID              int       `json:"user_id"`
	Exercise            string    `json:"exercise"`
	Goal                int       `json:"goal"`
	Repetitions         int       `json:"repetitions"`
	Stars               int       `json:"stars"`
	GoalReached         bool      `json:"goal_reached"`
	EventsTotal         int       `json:"events_total"`
	EventsLowConfidence int       `json:"events_low_confidence"`
	EventsMismatch      int       `json:"events_mismatch"`
	StartedAt           time.Time `json:"started_at"`
	EndedAt             time.Time `json:"ended_at"`
}

// Duration returns how long the mission ran.
func (r MissionResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}
