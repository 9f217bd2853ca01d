package mission

import "fmt"

// RepKind classifies the result of Counter.OnClassification.
type RepKind int

const (
	RepLowConfidence RepKind = iota
	RepProgressed
	RepCompleted
	RepMismatch
)

func (k RepKind) String() string {
	switch k {
	case RepLowConfidence:
		return "low_confidence"
	case RepProgressed:
		return "progressed"
	case RepCompleted:
		return "rep_completed"
	case RepMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name so JSON payloads stay readable.
func (k RepKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *RepKind) UnmarshalText(b []byte) error {
	for c := RepLowConfidence; c <= RepMismatch; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown rep kind %q", b)
}

// RepOutcome is what the session driver sees for each classification.
// Count fields are only populated for RepCompleted; Expected only for RepMismatch.
type RepOutcome struct {
	Kind             RepKind `json:"kind"`
	Expected         string  `json:"expected,omitempty"`
	RepetitionCount  int     `json:"repetition_count,omitempty"`
	StarsEarned      int     `json:"stars_earned,omitempty"`
	GoalReached      bool    `json:"goal_reached,omitempty"`
	GoalFirstReached bool    `json:"goal_first_reached,omitempty"`
}

// Snapshot is a read-only view of the counter state.
type Snapshot struct {
	LogicIndex      int `json:"logic_index"`
	RepetitionCount int `json:"repetition_count"`
	StarsEarned     int `json:"stars_earned"`
}

// Counter counts repetitions for one session. It is not safe for concurrent use.
type Counter struct {
	profile *Profile
	seq     *Sequencer
	reps    int
	stars   int
}

// NewCounter creates a Counter at the start of the cycle with no repetitions.
func NewCounter(p *Profile) *Counter {
	return &Counter{profile: p, seq: NewSequencer(p)}
}

// Profile returns the profile the counter was built with.
func (c *Counter) Profile() *Profile { return c.profile }

// OnClassification feeds one classifier result through the sequencer.
func (c *Counter) OnClassification(label string, confidence float64) RepOutcome {
	out := c.seq.Submit(Event{Label: label, Confidence: confidence})
	switch out.Kind {
	case OutcomeCycleCompleted:
		c.reps++
		c.stars = c.profile.StarsFor(c.reps)
		return RepOutcome{
			Kind:             RepCompleted,
			RepetitionCount:  c.reps,
			StarsEarned:      c.stars,
			GoalReached:      c.reps >= c.profile.goal,
			GoalFirstReached: c.reps == c.profile.goal,
		}
	case OutcomeAdvanced:
		return RepOutcome{Kind: RepProgressed}
	case OutcomeMismatch:
		return RepOutcome{Kind: RepMismatch, Expected: out.Expected}
	default:
		return RepOutcome{Kind: RepLowConfidence}
	}
}

// Snapshot returns the current state.
func (c *Counter) Snapshot() Snapshot {
	return Snapshot{
		LogicIndex:      c.seq.Index(),
		RepetitionCount: c.reps,
		StarsEarned:     c.stars,
	}
}

// Expected returns the next stage label the counter is waiting for.
func (c *Counter) Expected() string { return c.seq.Expected() }

// GoalReached reports whether the goal has been met.
func (c *Counter) GoalReached() bool { return c.reps >= c.profile.goal }

// Progress returns completion toward the goal in [0, 1].
func (c *Counter) Progress() float64 {
	if c.reps >= c.profile.goal {
		return 1
	}
	return float64(c.reps) / float64(c.profile.goal)
}
