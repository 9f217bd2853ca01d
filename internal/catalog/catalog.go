// Package catalog loads the set of exercises a server offers, each with the
// profile its counter runs against and an optional pose classifier.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/meltforce/heromissions/internal/mission"
	"github.com/meltforce/heromissions/internal/models"
	"github.com/meltforce/heromissions/internal/pose"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Exercise is one catalog entry.
type Exercise struct {
	ID             string           `yaml:"id" json:"id"`
	Title          string           `yaml:"title" json:"title"`
	Stages         []string         `yaml:"stages" json:"stages"`
	Goal           int              `yaml:"goal" json:"goal"`
	StarThresholds []int            `yaml:"star_thresholds" json:"star_thresholds"`
	MinConfidence  float64          `yaml:"min_confidence,omitempty" json:"min_confidence"`
	Model          string           `yaml:"model,omitempty" json:"-"`
	Features       pose.FeatureMode `yaml:"features,omitempty" json:"features"`
	HasClassifier  bool             `yaml:"-" json:"has_classifier"`
	Classes        []string         `yaml:"-" json:"classes,omitempty"`

	profile    *mission.Profile
	classifier pose.Classifier
}

// Profile returns the validated counter profile.
func (e *Exercise) Profile() *mission.Profile { return e.profile }

// Classifier returns the pose classifier, or nil when the exercise is fed
// pre-classified labels only.
func (e *Exercise) Classifier() pose.Classifier { return e.classifier }

// Catalog is an ordered, read-only set of exercises.
type Catalog struct {
	exercises []*Exercise
	byID      map[string]*Exercise
}

type file struct {
	Exercises []*Exercise `yaml:"exercises"`
}

type options struct {
	minConfidence float64
}

// Option adjusts how a catalog is built.
type Option func(*options)

// WithDefaultMinConfidence sets the threshold used by entries that do not
// set min_confidence themselves.
func WithDefaultMinConfidence(c float64) Option {
	return func(o *options) { o.minConfidence = c }
}

// Default returns the built-in catalog.
func Default(opts ...Option) (*Catalog, error) {
	return parse(defaultYAML, "", opts)
}

// Load reads a catalog file. Model paths are resolved relative to the file.
func Load(path string, opts ...Option) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	c, err := parse(data, filepath.Dir(path), opts)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

func parse(data []byte, baseDir string, opts []Option) (*Catalog, error) {
	o := options{minConfidence: mission.DefaultMinConfidence}
	for _, opt := range opts {
		opt(&o)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(f.Exercises) == 0 {
		return nil, fmt.Errorf("catalog has no exercises")
	}

	c := &Catalog{byID: make(map[string]*Exercise, len(f.Exercises))}
	for i, ex := range f.Exercises {
		if ex == nil || ex.ID == "" {
			return nil, fmt.Errorf("exercises[%d]: id is required", i)
		}
		if _, dup := c.byID[ex.ID]; dup {
			return nil, fmt.Errorf("exercise %q: duplicate id", ex.ID)
		}
		if err := ex.build(baseDir, o); err != nil {
			return nil, fmt.Errorf("exercise %q: %w", ex.ID, err)
		}
		c.exercises = append(c.exercises, ex)
		c.byID[ex.ID] = ex
	}
	return c, nil
}

func (ex *Exercise) build(baseDir string, o options) error {
	if ex.Title == "" {
		ex.Title = ex.ID
	}
	for i, s := range ex.Stages {
		if canonical, ok := models.NormalizeStageLabel(s); ok {
			ex.Stages[i] = canonical
		}
	}
	if ex.MinConfidence == 0 {
		ex.MinConfidence = o.minConfidence
	}
	mode, err := pose.ParseFeatureMode(string(ex.Features))
	if err != nil {
		return err
	}
	ex.Features = mode

	p, err := mission.NewProfile(ex.Stages, ex.Goal, ex.StarThresholds, mission.WithMinConfidence(ex.MinConfidence))
	if err != nil {
		return err
	}
	ex.profile = p

	if ex.Model == "" {
		return nil
	}
	path := ex.Model
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	m, err := pose.LoadModel(path)
	if err != nil {
		return err
	}
	if m.InputLen() != mode.Len() {
		return fmt.Errorf("model expects %d features, %s mode produces %d", m.InputLen(), mode, mode.Len())
	}
	classes := m.Classes()
	for _, stage := range ex.Stages {
		if !slices.Contains(classes, stage) {
			return fmt.Errorf("stage %q is not a class of model %s %v", stage, ex.Model, classes)
		}
	}
	ex.classifier = m
	ex.HasClassifier = true
	ex.Classes = classes
	return nil
}

// Get looks up an exercise by id.
func (c *Catalog) Get(id string) (*Exercise, bool) {
	ex, ok := c.byID[id]
	return ex, ok
}

// List returns the exercises in catalog order.
func (c *Catalog) List() []*Exercise {
	return append([]*Exercise(nil), c.exercises...)
}

// Len returns the number of exercises.
func (c *Catalog) Len() int { return len(c.exercises) }
