package mission

// OutcomeKind classifies the result of submitting one event to a Sequencer.
type OutcomeKind int

const (
	OutcomeLowConfidence OutcomeKind = iota
	OutcomeAdvanced
	OutcomeCycleCompleted
	OutcomeMismatch
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeLowConfidence:
		return "low_confidence"
	case OutcomeAdvanced:
		return "advanced"
	case OutcomeCycleCompleted:
		return "cycle_completed"
	case OutcomeMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// Event is a single per-frame classification.
type Event struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Outcome is the result of Sequencer.Submit. Expected is set for mismatches.
type Outcome struct {
	Kind     OutcomeKind
	Expected string
}

// Sequencer tracks the position inside a profile's stage cycle.
// It is not safe for concurrent use.
type Sequencer struct {
	profile *Profile
	index   int
}

// NewSequencer creates a Sequencer positioned at the first stage.
func NewSequencer(p *Profile) *Sequencer {
	return &Sequencer{profile: p}
}

// Index returns the position of the next expected stage.
func (s *Sequencer) Index() int { return s.index }

// Expected returns the label the next event must carry to advance.
func (s *Sequencer) Expected() string { return s.profile.stages[s.index] }

// Submit applies one event. Low confidence wins over everything else, then a
// positional match advances, and any other label is a mismatch.
func (s *Sequencer) Submit(ev Event) Outcome {
	// NaN fails this comparison and is treated as low confidence.
	if !(ev.Confidence > s.profile.minConfidence) {
		return Outcome{Kind: OutcomeLowConfidence}
	}

	expected := s.profile.stages[s.index]
	if ev.Label != expected {
		return Outcome{Kind: OutcomeMismatch, Expected: expected}
	}

	s.index++
	if s.index == len(s.profile.stages) {
		s.index = 0
		return Outcome{Kind: OutcomeCycleCompleted}
	}
	return Outcome{Kind: OutcomeAdvanced}
}
