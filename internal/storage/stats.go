package storage

import (
	"context"
	"fmt"
	"time"
)

// MissionStats holds aggregate statistics about a user's missions.
type MissionStats struct {
	TotalMissions    int64          `json:"total_missions"`
	TotalRepetitions int64          `json:"total_repetitions"`
	GoalsReached     int64          `json:"goals_reached"`
	FirstMission     *time.Time     `json:"first_mission"`
	LastMission      *time.Time     `json:"last_mission"`
	CurrentStreak    int            `json:"current_streak_days"`
	ByExercise       []ExerciseStat `json:"by_exercise"`
}

// ExerciseStat holds summary stats for a single exercise.
type ExerciseStat struct {
	Exercise         string    `json:"exercise"`
	Count            int64     `json:"count"`
	TotalRepetitions int64     `json:"total_repetitions"`
	BestRepetitions  int       `json:"best_repetitions"`
	BestStars        int       `json:"best_stars"`
	GoalsReached     int64     `json:"goals_reached"`
	LastPlayed       time.Time `json:"last_played"`
}

// goalDaysQuery lists UTC days with a reached goal, most recent first. Days
// are cut in UTC to match dailyStreak regardless of the session time zone.
const goalDaysQuery = `SELECT DISTINCT date_trunc('day', started_at AT TIME ZONE 'UTC')::date
	FROM missions
	WHERE user_id = $1 AND goal_reached
	ORDER BY 1 DESC
	LIMIT 366`

// GetMissionStats returns aggregate statistics for a user's missions.
func (db *DB) GetMissionStats(ctx context.Context, userID int) (*MissionStats, error) {
	stats := &MissionStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(repetitions), 0), COUNT(*) FILTER (WHERE goal_reached),
		        MIN(started_at), MAX(started_at)
		 FROM missions WHERE user_id = $1`, userID,
	).Scan(&stats.TotalMissions, &stats.TotalRepetitions, &stats.GoalsReached,
		&stats.FirstMission, &stats.LastMission)
	if err != nil {
		return nil, fmt.Errorf("counting missions: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT exercise, COUNT(*), COALESCE(SUM(repetitions), 0), MAX(repetitions), MAX(stars),
		        COUNT(*) FILTER (WHERE goal_reached), MAX(started_at)
		 FROM missions
		 WHERE user_id = $1
		 GROUP BY exercise
		 ORDER BY COUNT(*) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying missions by exercise: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s ExerciseStat
		if err := rows.Scan(&s.Exercise, &s.Count, &s.TotalRepetitions, &s.BestRepetitions,
			&s.BestStars, &s.GoalsReached, &s.LastPlayed); err != nil {
			return nil, fmt.Errorf("scanning exercise stat: %w", err)
		}
		stats.ByExercise = append(stats.ByExercise, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Days with a reached goal, most recent first, for the streak.
	dayRows, err := db.Pool.Query(ctx, goalDaysQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("querying goal days: %w", err)
	}
	defer dayRows.Close()

	var days []time.Time
	for dayRows.Next() {
		var d time.Time
		if err := dayRows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scanning goal day: %w", err)
		}
		days = append(days, d)
	}
	if err := dayRows.Err(); err != nil {
		return nil, err
	}
	stats.CurrentStreak = dailyStreak(days, time.Now().UTC())

	return stats, nil
}

// dailyStreak counts consecutive calendar days ending today or yesterday.
// days must be distinct and sorted newest first.
func dailyStreak(days []time.Time, today time.Time) int {
	if len(days) == 0 {
		return 0
	}
	want := truncateDay(today)
	first := truncateDay(days[0])
	if first.Before(want.AddDate(0, 0, -1)) {
		return 0
	}
	if first.Before(want) {
		want = first
	}

	streak := 0
	for _, d := range days {
		d = truncateDay(d)
		if d.After(want) {
			continue
		}
		if !d.Equal(want) {
			break
		}
		streak++
		want = want.AddDate(0, 0, -1)
	}
	return streak
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
