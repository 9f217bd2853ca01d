package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/meltforce/heromissions/internal/pose"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestDefault verifies the built-in catalog carries the four missions in order.
func TestDefault(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	var ids []string
	for _, ex := range c.List() {
		ids = append(ids, ex.ID)
	}
	want := []string{"alcancar_as_estrelas", "asas_de_super_heroi", "sentar_e_levantar", "empurrar_parede"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	ex, ok := c.Get("asas_de_super_heroi")
	if !ok {
		t.Fatal("asas_de_super_heroi missing")
	}
	if diff := cmp.Diff([]string{"middle", "up", "middle"}, ex.Profile().Stages()); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
	if ex.Profile().Goal() != 10 || ex.Profile().MinConfidence() != 0.8 {
		t.Errorf("goal=%d min=%v, want 10 and 0.8", ex.Profile().Goal(), ex.Profile().MinConfidence())
	}
	if ex.Features != pose.FeaturesArms {
		t.Errorf("features = %q, want arms", ex.Features)
	}
	if ex.Classifier() != nil {
		t.Error("default catalog should not carry classifiers")
	}
}

// TestDefaultMinConfidenceOption verifies the catalog-wide threshold applies
// only to entries without their own min_confidence.
func TestDefaultMinConfidenceOption(t *testing.T) {
	path := writeTemp(t, "catalog.yaml", `
exercises:
  - id: a
    stages: [down, up]
    goal: 5
    star_thresholds: [1, 3, 5]
  - id: b
    stages: [down, up]
    goal: 5
    star_thresholds: [1, 3, 5]
    min_confidence: 0.6
`)
	c, err := Load(path, WithDefaultMinConfidence(0.9))
	if err != nil {
		t.Fatal(err)
	}
	a, _ := c.Get("a")
	b, _ := c.Get("b")
	if a.Profile().MinConfidence() != 0.9 {
		t.Errorf("a min = %v, want 0.9", a.Profile().MinConfidence())
	}
	if b.Profile().MinConfidence() != 0.6 {
		t.Errorf("b min = %v, want 0.6", b.Profile().MinConfidence())
	}
	if a.Title != "a" {
		t.Errorf("title should default to id, got %q", a.Title)
	}
}

// TestLoadNormalizesStageLabels verifies localized stage names in a catalog
// are stored in canonical form.
func TestLoadNormalizesStageLabels(t *testing.T) {
	path := writeTemp(t, "catalog.yaml", `
exercises:
  - id: sit
    stages: [sentado, transicao, em_pe]
    goal: 3
    star_thresholds: [1, 2, 3]
`)
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	ex, _ := c.Get("sit")
	if diff := cmp.Diff([]string{"down", "middle", "up"}, ex.Stages); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
}

// TestLoadRejectsInvalid verifies bad entries fail with the entry id in the error.
func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]struct {
		yaml string
		want string
	}{
		"duplicate": {`
exercises:
  - {id: a, stages: [down, up], goal: 1, star_thresholds: [1]}
  - {id: a, stages: [down, up], goal: 1, star_thresholds: [1]}
`, "duplicate"},
		"bad profile": {`
exercises:
  - {id: short, stages: [up], goal: 1, star_thresholds: [1]}
`, `"short"`},
		"missing id": {`
exercises:
  - {stages: [down, up], goal: 1}
`, "id is required"},
		"features": {`
exercises:
  - {id: f, stages: [down, up], goal: 1, features: legs}
`, "feature mode"},
		"empty":   {`exercises: []`, "no exercises"},
		"missing model": {`
exercises:
  - {id: m, stages: [down, up], goal: 1, model: nope.json}
`, "opening model"},
	}
	for name, tc := range cases {
		_, err := Load(writeTemp(t, "catalog.yaml", tc.yaml))
		if err == nil {
			t.Errorf("%s: expected error", name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", name, err, tc.want)
		}
	}
}

// TestLoadModelRelativePath verifies models are resolved next to the catalog
// and checked against the feature mode.
func TestLoadModelRelativePath(t *testing.T) {
	dir := t.TempDir()
	mean := strings.TrimSuffix(strings.Repeat("0,", pose.ArmFeatureLen), ",")
	scale := strings.TrimSuffix(strings.Repeat("1,", pose.ArmFeatureLen), ",")
	model := `{"classes":["down","up"],"mean":[` + mean + `],"scale":[` + scale + `],"coef":[[` + mean + `]],"intercept":[0]}`
	if err := os.WriteFile(filepath.Join(dir, "arms.json"), []byte(model), 0644); err != nil {
		t.Fatal(err)
	}
	cat := `
exercises:
  - {id: ok, stages: [down, up], goal: 2, features: arms, model: arms.json}
`
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(cat), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ex, _ := c.Get("ok")
	if ex.Classifier() == nil || !ex.HasClassifier {
		t.Fatal("expected classifier to be loaded")
	}
	if diff := cmp.Diff([]string{"down", "up"}, ex.Classes); diff != "" {
		t.Errorf("classes mismatch (-want +got):\n%s", diff)
	}

	// A stage the model can never predict would make the mission unwinnable.
	push := strings.Replace(cat, "stages: [down, up]", "stages: [down, push]", 1)
	if err := os.WriteFile(path, []byte(push), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), `"push"`) {
		t.Errorf("err = %v, want stage push rejected", err)
	}

	// Same model against raw features has the wrong input size.
	bad := strings.Replace(cat, "features: arms", "features: raw", 1)
	if err := os.WriteFile(path, []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected feature length error")
	}
}
