package storage

import (
	"strings"
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// TestDailyStreak verifies consecutive goal days are counted back from today,
// and that a streak survives until the end of the following day.
func TestDailyStreak(t *testing.T) {
	today := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		days []string
		want int
	}{
		{"empty", nil, 0},
		{"today only", []string{"2026-03-10"}, 1},
		{"three in a row", []string{"2026-03-10", "2026-03-09", "2026-03-08"}, 3},
		{"ends yesterday", []string{"2026-03-09", "2026-03-08"}, 2},
		{"broken", []string{"2026-03-10", "2026-03-08", "2026-03-07"}, 1},
		{"stale", []string{"2026-03-07", "2026-03-06"}, 0},
		{"month boundary", []string{"2026-03-01", "2026-02-28", "2026-02-27"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var days []time.Time
			for _, s := range tt.days {
				days = append(days, day(s))
			}
			if got := dailyStreak(days, today); got != tt.want {
				t.Errorf("dailyStreak(%v) = %d, want %d", tt.days, got, tt.want)
			}
		})
	}

	// Crossing a month boundary counts normally when it is recent.
	days := []time.Time{day("2026-03-01"), day("2026-02-28"), day("2026-02-27")}
	if got := dailyStreak(days, day("2026-03-01")); got != 3 {
		t.Errorf("month boundary streak = %d, want 3", got)
	}
}

// TestMissionQuery verifies the exercise filter adds a fourth parameter only
// when set.
func TestMissionQuery(t *testing.T) {
	start := day("2026-03-01")
	end := day("2026-03-31")

	q, args := missionQuery(start, end, 4, "")
	if strings.Contains(q, "$4") || len(args) != 3 {
		t.Errorf("unfiltered query has %d args:\n%s", len(args), q)
	}

	q, args = missionQuery(start, end, 4, "empurrar_parede")
	if !strings.Contains(q, "exercise = $4") || len(args) != 4 {
		t.Errorf("filtered query has %d args:\n%s", len(args), q)
	}
	if args[3] != "empurrar_parede" {
		t.Errorf("args[3] = %v, want exercise id", args[3])
	}
	if !strings.HasSuffix(q, "ORDER BY started_at DESC") {
		t.Errorf("query not ordered newest first:\n%s", q)
	}
}

// TestGoalDaysQueryUTC verifies goal days are cut in UTC, the same zone
// dailyStreak compares against.
func TestGoalDaysQueryUTC(t *testing.T) {
	if !strings.Contains(goalDaysQuery, "started_at AT TIME ZONE 'UTC'") {
		t.Errorf("goal days not truncated in UTC:\n%s", goalDaysQuery)
	}
}
