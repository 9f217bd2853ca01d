// Package session keeps the live missions a server is driving and turns
// incoming classifications or landmark frames into counter steps.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/heromissions/internal/catalog"
	"github.com/meltforce/heromissions/internal/feedback"
	"github.com/meltforce/heromissions/internal/mission"
	"github.com/meltforce/heromissions/internal/models"
	"github.com/meltforce/heromissions/internal/pose"
)

// DefaultIdleTimeout is how long a mission may go without input before Reap ends it.
const DefaultIdleTimeout = 10 * time.Minute

var (
	ErrNotFound        = errors.New("mission not found")
	ErrUnknownExercise = errors.New("unknown exercise")
	ErrEnded           = errors.New("mission already ended")
	ErrNoClassifier    = errors.New("exercise has no pose classifier")
)

// Recorder persists finished missions.
type Recorder interface {
	InsertMission(ctx context.Context, r *models.MissionResult) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, r *models.MissionResult) error

func (f RecorderFunc) InsertMission(ctx context.Context, r *models.MissionResult) error {
	return f(ctx, r)
}

// Step is the result of one classification.
type Step struct {
	Outcome    mission.RepOutcome `json:"outcome"`
	Feedback   feedback.Feedback  `json:"feedback"`
	Snapshot   mission.Snapshot   `json:"snapshot"`
	Progress   float64            `json:"progress"`
	Expected   string             `json:"expected"`
	Prediction *pose.Prediction   `json:"prediction,omitempty"`
}

// Status describes a live mission.
type Status struct {
	ID        uuid.UUID          `json:"id"`
	UserID    int                `json:"user_id"`
	Exercise  string             `json:"exercise"`
	Title     string             `json:"title"`
	Snapshot  mission.Snapshot   `json:"snapshot"`
	Progress  float64            `json:"progress"`
	Goal      int                `json:"goal"`
	Expected  string             `json:"expected"`
	StartedAt time.Time          `json:"started_at"`
	Feedback  *feedback.Feedback `json:"feedback,omitempty"`
}

// Mission is one live session. Its fields are guarded by mu.
type Mission struct {
	id        uuid.UUID
	userID    int
	exercise  *catalog.Exercise
	startedAt time.Time

	mu       sync.Mutex
	counter  *mission.Counter
	lastSeen time.Time
	ended    bool
	total    int
	low      int
	mismatch int
}

func (ms *Mission) status() *Status {
	return &Status{
		ID:        ms.id,
		UserID:    ms.userID,
		Exercise:  ms.exercise.ID,
		Title:     ms.exercise.Title,
		Snapshot:  ms.counter.Snapshot(),
		Progress:  ms.counter.Progress(),
		Goal:      ms.exercise.Profile().Goal(),
		Expected:  ms.counter.Expected(),
		StartedAt: ms.startedAt,
	}
}

func (ms *Mission) result(endedAt time.Time) *models.MissionResult {
	snap := ms.counter.Snapshot()
	return &models.MissionResult{
		ID:                  ms.id,
		UserID:              ms.userID,
		Exercise:            ms.exercise.ID,
		Goal:                ms.exercise.Profile().Goal(),
		Repetitions:         snap.RepetitionCount,
		Stars:               snap.StarsEarned,
		GoalReached:         ms.counter.GoalReached(),
		EventsTotal:         ms.total,
		EventsLowConfidence: ms.low,
		EventsMismatch:      ms.mismatch,
		StartedAt:           ms.startedAt,
		EndedAt:             endedAt,
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithIdleTimeout overrides DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.idleTimeout = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager is the registry of live missions.
type Manager struct {
	catalog     *catalog.Catalog
	recorder    Recorder
	log         *slog.Logger
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	missions map[uuid.UUID]*Mission
}

// NewManager creates a Manager. recorder may be nil, in which case finished
// missions are only logged.
func NewManager(cat *catalog.Catalog, recorder Recorder, log *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		catalog:     cat,
		recorder:    recorder,
		log:         log,
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
		missions:    make(map[uuid.UUID]*Mission),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Catalog returns the exercises the manager can start.
func (m *Manager) Catalog() *catalog.Catalog { return m.catalog }

// Active returns the number of live missions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.missions)
}

// Start begins a mission of the given exercise for a user.
func (m *Manager) Start(ctx context.Context, userID int, exerciseID string) (*Status, error) {
	ex, ok := m.catalog.Get(exerciseID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExercise, exerciseID)
	}

	now := m.now()
	ms := &Mission{
		id:        uuid.New(),
		userID:    userID,
		exercise:  ex,
		startedAt: now,
		counter:   mission.NewCounter(ex.Profile()),
		lastSeen:  now,
	}

	m.mu.Lock()
	m.missions[ms.id] = ms
	m.mu.Unlock()

	m.log.Info("mission started", "id", ms.id, "user_id", userID, "exercise", ex.ID)

	st := ms.status()
	fb := feedback.ForStart(ex.Title)
	st.Feedback = &fb
	return st, nil
}

func (m *Manager) get(id uuid.UUID) (*Mission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.missions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ms, nil
}

// Status returns the current state of a live mission.
func (m *Manager) Status(id uuid.UUID) (*Status, error) {
	ms, err := m.get(id)
	if err != nil {
		return nil, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.status(), nil
}

// Classify feeds one labelled frame into the mission's counter. Localized
// labels are normalized first; unknown ones reach the counter unchanged.
func (m *Manager) Classify(ctx context.Context, id uuid.UUID, label string, confidence float64) (*Step, error) {
	ms, err := m.get(id)
	if err != nil {
		return nil, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return m.step(ms, label, confidence)
}

// SubmitLandmarks classifies a pose frame with the exercise's model and
// feeds the predicted label into the counter.
func (m *Manager) SubmitLandmarks(ctx context.Context, id uuid.UUID, lms []pose.Landmark) (*Step, error) {
	ms, err := m.get(id)
	if err != nil {
		return nil, err
	}
	clf := ms.exercise.Classifier()
	if clf == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoClassifier, ms.exercise.ID)
	}
	features, err := pose.Extract(ms.exercise.Features, lms)
	if err != nil {
		return nil, err
	}
	pred, err := clf.Classify(features)
	if err != nil {
		return nil, fmt.Errorf("classifying frame: %w", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	step, err := m.step(ms, pred.Label, pred.Confidence)
	if err != nil {
		return nil, err
	}
	step.Prediction = &pred
	return step, nil
}

// step must be called with ms.mu held.
func (m *Manager) step(ms *Mission, label string, confidence float64) (*Step, error) {
	if ms.ended {
		return nil, ErrEnded
	}
	if canonical, ok := models.NormalizeStageLabel(label); ok {
		label = canonical
	}

	out := ms.counter.OnClassification(label, confidence)
	ms.lastSeen = m.now()
	ms.total++
	switch out.Kind {
	case mission.RepLowConfidence:
		ms.low++
	case mission.RepMismatch:
		ms.mismatch++
	case mission.RepCompleted:
		m.log.Debug("repetition completed", "id", ms.id, "count", out.RepetitionCount, "stars", out.StarsEarned)
		if out.GoalFirstReached {
			m.log.Info("mission goal reached", "id", ms.id, "exercise", ms.exercise.ID)
		}
	}

	return &Step{
		Outcome:  out,
		Feedback: feedback.For(out),
		Snapshot: ms.counter.Snapshot(),
		Progress: ms.counter.Progress(),
		Expected: ms.counter.Expected(),
	}, nil
}

// End finishes a mission and records it. A mission can only be ended once;
// later calls return ErrNotFound.
func (m *Manager) End(ctx context.Context, id uuid.UUID) (*models.MissionResult, error) {
	m.mu.Lock()
	ms, ok := m.missions[id]
	if ok {
		delete(m.missions, id)
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.finish(ctx, ms)
}

func (m *Manager) finish(ctx context.Context, ms *Mission) (*models.MissionResult, error) {
	ms.mu.Lock()
	ms.ended = true
	res := ms.result(m.now())
	ms.mu.Unlock()

	m.log.Info("mission ended",
		"id", res.ID,
		"exercise", res.Exercise,
		"repetitions", res.Repetitions,
		"stars", res.Stars,
		"goal_reached", res.GoalReached,
		"duration", res.Duration().Round(time.Second),
	)

	if m.recorder != nil {
		if err := m.recorder.InsertMission(ctx, res); err != nil {
			return nil, fmt.Errorf("recording mission: %w", err)
		}
	}
	return res, nil
}

// Reap ends every mission idle for longer than the idle timeout and returns
// how many it ended.
func (m *Manager) Reap(ctx context.Context, now time.Time) int {
	n := m.endWhere(ctx, "idle", func(ms *Mission) bool {
		return now.Sub(ms.lastSeen) > m.idleTimeout
	})
	if n > 0 {
		m.log.Info("reaped idle missions", "count", n)
	}
	return n
}

// Shutdown ends and records every live mission. Call it once no more
// requests can arrive.
func (m *Manager) Shutdown(ctx context.Context) int {
	n := m.endWhere(ctx, "live", func(*Mission) bool { return true })
	if n > 0 {
		m.log.Info("ended live missions on shutdown", "count", n)
	}
	return n
}

// endWhere removes the missions matching pred and finishes them. pred is
// called with ms.mu held.
func (m *Manager) endWhere(ctx context.Context, kind string, pred func(*Mission) bool) int {
	var matched []*Mission
	m.mu.Lock()
	for id, ms := range m.missions {
		ms.mu.Lock()
		ok := pred(ms)
		ms.mu.Unlock()
		if ok {
			matched = append(matched, ms)
			delete(m.missions, id)
		}
	}
	m.mu.Unlock()

	for _, ms := range matched {
		if _, err := m.finish(ctx, ms); err != nil {
			m.log.Warn(kind+" mission not recorded", "id", ms.id, "error", err)
		}
	}
	return len(matched)
}

// Run reaps idle missions periodically until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	interval := m.idleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Reap(ctx, m.now())
		}
	}
}
