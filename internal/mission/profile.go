// Package mission implements the stage sequencer and repetition counter that
// turn per-frame pose classifications into completed repetitions, stars and
// goal completion for a single exercise session.
package mission

import "fmt"

// DefaultMinConfidence is the classifier confidence a frame must exceed
// before its label is considered at all.
const DefaultMinConfidence = 0.8

// MaxStars is the number of star milestones a profile may define.
const MaxStars = 3

// ConfigurationError reports an invalid exercise profile.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Profile is the immutable per-exercise configuration a Counter runs against.
type Profile struct {
	stages        []string
	goal          int
	stars         []int
	minConfidence float64
}

// ProfileOption customises a Profile at construction time.
type ProfileOption func(*Profile)

// WithMinConfidence overrides DefaultMinConfidence for the profile.
func WithMinConfidence(c float64) ProfileOption {
	return func(p *Profile) { p.minConfidence = c }
}

// NewProfile validates and builds a Profile. stages is one full repetition
// cycle in order; labels may repeat and are matched by position.
func NewProfile(stages []string, goal int, starThresholds []int, opts ...ProfileOption) (*Profile, error) {
	p := &Profile{
		stages:        append([]string(nil), stages...),
		goal:          goal,
		stars:         append([]int(nil), starThresholds...),
		minConfidence: DefaultMinConfidence,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) validate() error {
	if len(p.stages) < 2 {
		return &ConfigurationError{Field: "stage_sequence", Message: "at least two stages are required"}
	}
	for i, s := range p.stages {
		if s == "" {
			return &ConfigurationError{
				Field:   fmt.Sprintf("stage_sequence[%d]", i),
				Message: "stage label is empty",
			}
		}
	}
	if p.goal <= 0 {
		return &ConfigurationError{Field: "goal", Message: fmt.Sprintf("must be positive, got %d", p.goal)}
	}
	if len(p.stars) > MaxStars {
		return &ConfigurationError{
			Field:   "star_thresholds",
			Message: fmt.Sprintf("at most %d thresholds allowed, got %d", MaxStars, len(p.stars)),
		}
	}
	prev := 0
	for i, t := range p.stars {
		if t <= prev {
			return &ConfigurationError{
				Field:   fmt.Sprintf("star_thresholds[%d]", i),
				Message: fmt.Sprintf("must be positive and strictly increasing, got %d after %d", t, prev),
			}
		}
		prev = t
	}
	if prev > p.goal {
		return &ConfigurationError{
			Field:   "star_thresholds",
			Message: fmt.Sprintf("last threshold %d exceeds goal %d", prev, p.goal),
		}
	}
	if !(p.minConfidence >= 0 && p.minConfidence < 1) {
		return &ConfigurationError{
			Field:   "min_confidence",
			Message: fmt.Sprintf("must be in [0, 1), got %v", p.minConfidence),
		}
	}
	return nil
}

// Stages returns a copy of the stage cycle.
func (p *Profile) Stages() []string { return append([]string(nil), p.stages...) }

// Goal returns the target repetition count.
func (p *Profile) Goal() int { return p.goal }

// StarThresholds returns a copy of the star milestones.
func (p *Profile) StarThresholds() []int { return append([]int(nil), p.stars...) }

// MinConfidence returns the confidence a classification must exceed.
func (p *Profile) MinConfidence() float64 { return p.minConfidence }

// StarsFor returns how many thresholds are at or below reps.
func (p *Profile) StarsFor(reps int) int {
	n := 0
	for _, t := range p.stars {
		if t <= reps {
			n++
		}
	}
	return n
}
