package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/meltforce/heromissions/internal/catalog"
	"github.com/meltforce/heromissions/internal/feedback"
	"github.com/meltforce/heromissions/internal/mission"
	"github.com/meltforce/heromissions/internal/models"
	"github.com/meltforce/heromissions/internal/pose"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memRecorder struct {
	mu      sync.Mutex
	results []*models.MissionResult
	err     error
}

func (r *memRecorder) InsertMission(_ context.Context, res *models.MissionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.results = append(r.results, res)
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// testCatalog has a short down/up exercise and an arms exercise whose model
// predicts "up" when the left wrist is above the shoulder.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()

	zeros := strings.TrimSuffix(strings.Repeat("0,", pose.ArmFeatureLen), ",")
	ones := strings.TrimSuffix(strings.Repeat("1,", pose.ArmFeatureLen), ",")
	// Feature 7 is the left wrist y; negative y is up in image space.
	coef := make([]string, pose.ArmFeatureLen)
	for i := range coef {
		coef[i] = "0"
	}
	coef[7] = "-10"
	model := `{"classes":["down","up"],"mean":[` + zeros + `],"scale":[` + ones +
		`],"coef":[[` + strings.Join(coef, ",") + `]],"intercept":[0]}`
	if err := os.WriteFile(filepath.Join(dir, "arms.json"), []byte(model), 0644); err != nil {
		t.Fatal(err)
	}

	yaml := `
exercises:
  - id: reach
    title: Reach
    stages: [down, up]
    goal: 3
    star_thresholds: [1, 2, 3]
  - id: arms
    title: Arms
    stages: [down, up]
    goal: 2
    star_thresholds: [1, 2]
    features: arms
    model: arms.json
`
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}
	return c
}

func newTestManager(t *testing.T, rec Recorder) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := NewManager(testCatalog(t), rec, testLogger(),
		WithIdleTimeout(time.Minute),
		WithClock(clock.Now),
	)
	return m, clock
}

// TestStartUnknownExercise verifies only catalog exercises can be started.
func TestStartUnknownExercise(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, err := m.Start(context.Background(), 1, "cartwheel")
	if !errors.Is(err, ErrUnknownExercise) {
		t.Fatalf("expected ErrUnknownExercise, got %v", err)
	}
}

// TestMissionLifecycle drives a mission to its goal and checks the recorded result.
func TestMissionLifecycle(t *testing.T) {
	rec := &memRecorder{}
	m, clock := newTestManager(t, rec)
	ctx := context.Background()

	st, err := m.Start(ctx, 7, "reach")
	if err != nil {
		t.Fatal(err)
	}
	if st.Feedback == nil || st.Feedback.Cue != feedback.CueStart {
		t.Errorf("start feedback = %+v, want start cue", st.Feedback)
	}
	if st.Goal != 3 || st.Expected != "down" {
		t.Errorf("status goal=%d expected=%q", st.Goal, st.Expected)
	}

	events := []mission.Event{
		{Label: "baixo", Confidence: 0.9}, // localized down
		{Label: "up", Confidence: 0.5},    // noise
		{Label: "up", Confidence: 0.9},
		{Label: "up", Confidence: 0.95}, // mismatch, expects down
		{Label: "down", Confidence: 0.9},
		{Label: "up", Confidence: 0.9},
		{Label: "down", Confidence: 0.9},
		{Label: "up", Confidence: 0.9},
	}
	var last *Step
	for _, ev := range events {
		clock.Advance(time.Second)
		last, err = m.Classify(ctx, st.ID, ev.Label, ev.Confidence)
		if err != nil {
			t.Fatal(err)
		}
	}
	if last.Outcome.Kind != mission.RepCompleted || !last.Outcome.GoalFirstReached {
		t.Errorf("last outcome = %+v, want goal-reaching completion", last.Outcome)
	}
	if last.Feedback.Cue != feedback.CueComplete {
		t.Errorf("last cue = %q, want complete", last.Feedback.Cue)
	}
	if last.Progress != 1 {
		t.Errorf("progress = %v, want 1", last.Progress)
	}

	res, err := m.End(ctx, st.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := &models.MissionResult{
		ID:                  st.ID,
		UserID:              7,
		Exercise:            "reach",
		Goal:                3,
		Repetitions:         3,
		Stars:               3,
		GoalReached:         true,
		EventsTotal:         8,
		EventsLowConfidence: 1,
		EventsMismatch:      1,
		StartedAt:           st.StartedAt,
		EndedAt:             clock.Now(),
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if len(rec.results) != 1 {
		t.Fatalf("recorded %d results, want 1", len(rec.results))
	}
	if res.Duration() != 8*time.Second {
		t.Errorf("duration = %v, want 8s", res.Duration())
	}
}

// TestEndTwice verifies a mission can only be ended once.
func TestEndTwice(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()
	st, _ := m.Start(ctx, 1, "reach")
	if _, err := m.End(ctx, st.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.End(ctx, st.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second End: expected ErrNotFound, got %v", err)
	}
	if _, err := m.Classify(ctx, st.ID, "down", 0.9); !errors.Is(err, ErrNotFound) {
		t.Errorf("Classify after End: expected ErrNotFound, got %v", err)
	}
	if m.Active() != 0 {
		t.Errorf("active = %d, want 0", m.Active())
	}
}

// TestEndRecorderError verifies a storage failure surfaces to the caller.
func TestEndRecorderError(t *testing.T) {
	m, _ := newTestManager(t, &memRecorder{err: errors.New("db down")})
	ctx := context.Background()
	st, _ := m.Start(ctx, 1, "reach")
	if _, err := m.End(ctx, st.ID); err == nil || !strings.Contains(err.Error(), "db down") {
		t.Errorf("expected recorder error, got %v", err)
	}
}

// TestSubmitLandmarks verifies frames go through the exercise classifier.
func TestSubmitLandmarks(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()
	st, _ := m.Start(ctx, 1, "arms")

	frame := func(wristY float64) []pose.Landmark {
		lms := make([]pose.Landmark, pose.NumLandmarks)
		lms[pose.LeftShoulder] = pose.Landmark{X: 0.5, Y: 0.5}
		lms[pose.LeftElbow] = pose.Landmark{X: 0.5, Y: 0.5 + wristY/2}
		lms[pose.LeftWrist] = pose.Landmark{X: 0.5, Y: 0.5 + wristY}
		return lms
	}

	step, err := m.SubmitLandmarks(ctx, st.ID, frame(0.3))
	if err != nil {
		t.Fatal(err)
	}
	if step.Prediction == nil || step.Prediction.Label != "down" {
		t.Fatalf("prediction = %+v, want down", step.Prediction)
	}
	if step.Outcome.Kind != mission.RepProgressed {
		t.Errorf("outcome = %v, want progressed", step.Outcome.Kind)
	}

	step, err = m.SubmitLandmarks(ctx, st.ID, frame(-0.3))
	if err != nil {
		t.Fatal(err)
	}
	if step.Outcome.Kind != mission.RepCompleted || step.Snapshot.RepetitionCount != 1 {
		t.Errorf("step = %+v, want first repetition", step)
	}

	if _, err := m.SubmitLandmarks(ctx, st.ID, frame(0.3)[:5]); !errors.Is(err, pose.ErrLandmarkCount) {
		t.Errorf("expected ErrLandmarkCount, got %v", err)
	}
}

// TestSubmitLandmarksNoClassifier verifies label-only exercises reject frames.
func TestSubmitLandmarksNoClassifier(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()
	st, _ := m.Start(ctx, 1, "reach")
	_, err := m.SubmitLandmarks(ctx, st.ID, make([]pose.Landmark, pose.NumLandmarks))
	if !errors.Is(err, ErrNoClassifier) {
		t.Errorf("expected ErrNoClassifier, got %v", err)
	}
}

// TestReap verifies idle missions are ended and recorded while active ones stay.
func TestReap(t *testing.T) {
	rec := &memRecorder{}
	m, clock := newTestManager(t, rec)
	ctx := context.Background()

	idle, _ := m.Start(ctx, 1, "reach")
	clock.Advance(50 * time.Second)
	busy, _ := m.Start(ctx, 2, "reach")
	clock.Advance(20 * time.Second)
	if _, err := m.Classify(ctx, busy.ID, "down", 0.9); err != nil {
		t.Fatal(err)
	}

	if n := m.Reap(ctx, clock.Now()); n != 1 {
		t.Fatalf("reaped %d, want 1", n)
	}
	if _, err := m.Status(idle.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("idle mission still live: %v", err)
	}
	st, err := m.Status(busy.ID)
	if err != nil {
		t.Fatalf("busy mission gone: %v", err)
	}
	if diff := cmp.Diff(mission.Snapshot{LogicIndex: 1}, st.Snapshot); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if len(rec.results) != 1 || rec.results[0].ID != idle.ID {
		t.Errorf("recorded = %+v, want only the idle mission", rec.results)
	}
}

// TestShutdownRecordsLiveMissions verifies shutdown ends and records every
// live mission with its progress so far.
func TestShutdownRecordsLiveMissions(t *testing.T) {
	rec := &memRecorder{}
	m, _ := newTestManager(t, rec)
	ctx := context.Background()

	a, _ := m.Start(ctx, 1, "reach")
	b, _ := m.Start(ctx, 2, "reach")
	for _, label := range []string{"down", "up"} {
		if _, err := m.Classify(ctx, a.ID, label, 0.9); err != nil {
			t.Fatal(err)
		}
	}

	if n := m.Shutdown(ctx); n != 2 {
		t.Fatalf("Shutdown ended %d, want 2", n)
	}
	if m.Active() != 0 {
		t.Errorf("active = %d after shutdown, want 0", m.Active())
	}
	reps := map[uuid.UUID]int{}
	for _, r := range rec.results {
		reps[r.ID] = r.Repetitions
	}
	if diff := cmp.Diff(map[uuid.UUID]int{a.ID: 1, b.ID: 0}, reps); diff != "" {
		t.Errorf("recorded reps mismatch (-want +got):\n%s", diff)
	}
	if _, err := m.End(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("End after shutdown = %v, want ErrNotFound", err)
	}
}

// TestConcurrentMissions runs several missions in parallel to exercise locking.
func TestConcurrentMissions(t *testing.T) {
	rec := &memRecorder{}
	m := NewManager(testCatalog(t), rec, testLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for user := 1; user <= 8; user++ {
		wg.Add(1)
		go func(user int) {
			defer wg.Done()
			st, err := m.Start(ctx, user, "reach")
			if err != nil {
				t.Error(err)
				return
			}
			for i := 0; i < 4; i++ {
				m.Classify(ctx, st.ID, "down", 0.9)
				m.Classify(ctx, st.ID, "up", 0.9)
			}
			if _, err := m.End(ctx, st.ID); err != nil {
				t.Error(err)
			}
		}(user)
	}
	wg.Wait()

	if len(rec.results) != 8 {
		t.Fatalf("recorded %d, want 8", len(rec.results))
	}
	for _, r := range rec.results {
		if r.Repetitions != 4 || r.Stars != 3 {
			t.Errorf("user %d: reps=%d stars=%d, want 4 and 3", r.UserID, r.Repetitions, r.Stars)
		}
	}
}

// TestRunStopsOnCancel verifies the reaper loop exits with its context.
func TestRunStopsOnCancel(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
