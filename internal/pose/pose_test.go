package pose

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func body() []Landmark {
	lms := make([]Landmark, NumLandmarks)
	for i := range lms {
		lms[i] = Landmark{X: float64(i), Y: float64(i) / 10, Z: 0, Visibility: 1}
	}
	return lms
}

// TestRawFeatures_Layout verifies raw features are x, y, z, visibility per
// landmark in index order.
func TestRawFeatures_Layout(t *testing.T) {
	got, err := RawFeatures(body())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != RawFeatureLen {
		t.Fatalf("len = %d, want %d", len(got), RawFeatureLen)
	}
	if diff := cmp.Diff([]float64{5, 0.5, 0, 1}, got[20:24]); diff != "" {
		t.Errorf("landmark 5 mismatch (-want +got):\n%s", diff)
	}
}

// TestArmFeatures_Normalized verifies the arm is shoulder-centred and scaled
// by shoulder-to-wrist length.
func TestArmFeatures_Normalized(t *testing.T) {
	lms := make([]Landmark, NumLandmarks)
	lms[LeftShoulder] = Landmark{X: 1, Y: 1}
	lms[LeftElbow] = Landmark{X: 2, Y: 1}
	lms[LeftWrist] = Landmark{X: 3, Y: 1}
	// Right arm collapsed onto one point: zero length falls back to 1.
	lms[RightShoulder] = Landmark{X: 4, Y: 4}
	lms[RightElbow] = Landmark{X: 4, Y: 4}
	lms[RightWrist] = Landmark{X: 4, Y: 4}

	got, err := ArmFeatures(lms)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{
		0, 0, 0, 0.5, 0, 0, 1, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("ArmFeatures mismatch (-want +got):\n%s", diff)
	}
}

// TestExtract_WrongCount verifies partial frames are rejected.
func TestExtract_WrongCount(t *testing.T) {
	for _, mode := range []FeatureMode{FeaturesRaw, FeaturesArms} {
		_, err := Extract(mode, make([]Landmark, 10))
		if !errors.Is(err, ErrLandmarkCount) {
			t.Errorf("%s: expected ErrLandmarkCount, got %v", mode, err)
		}
	}
}

// TestParseFeatureMode verifies defaults and rejection of unknown modes.
func TestParseFeatureMode(t *testing.T) {
	if m, err := ParseFeatureMode(""); err != nil || m != FeaturesRaw {
		t.Errorf("empty: got %q, %v", m, err)
	}
	if m, err := ParseFeatureMode("arms"); err != nil || m.Len() != ArmFeatureLen {
		t.Errorf("arms: got %q, %v", m, err)
	}
	if _, err := ParseFeatureMode("legs"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

const binaryModel = `{
	"classes": ["down", "up"],
	"mean": [1, 0],
	"scale": [1, 0],
	"coef": [[1, 0]],
	"intercept": [0]
}`

// TestLogisticModel_Binary verifies the positive class is classes[1] and
// zero scale does not divide by zero.
func TestLogisticModel_Binary(t *testing.T) {
	m, err := ParseModel(strings.NewReader(binaryModel))
	if err != nil {
		t.Fatal(err)
	}

	pred, err := m.Classify([]float64{3, 7})
	if err != nil {
		t.Fatal(err)
	}
	want := 1 / (1 + math.Exp(-2))
	if pred.Label != "up" {
		t.Errorf("label = %q, want up", pred.Label)
	}
	if math.Abs(pred.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", pred.Confidence, want)
	}
	if math.Abs(pred.Probabilities["down"]-(1-want)) > 1e-9 {
		t.Errorf("P(down) = %v, want %v", pred.Probabilities["down"], 1-want)
	}

	pred, _ = m.Classify([]float64{-1, 0})
	if pred.Label != "down" {
		t.Errorf("label = %q, want down", pred.Label)
	}
}

// TestLogisticModel_Multinomial verifies softmax over one row per class.
func TestLogisticModel_Multinomial(t *testing.T) {
	m, err := ParseModel(strings.NewReader(`{
		"classes": ["down", "middle", "up"],
		"mean": [0, 0],
		"scale": [1, 1],
		"coef": [[-1, 0], [0, 0], [1, 0]],
		"intercept": [0, 0, 0]
	}`))
	if err != nil {
		t.Fatal(err)
	}

	pred, err := m.Classify([]float64{4, 0})
	if err != nil {
		t.Fatal(err)
	}
	if pred.Label != "up" {
		t.Errorf("label = %q, want up", pred.Label)
	}
	var sum float64
	for _, p := range pred.Probabilities {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("probabilities sum to %v", sum)
	}

	pred, _ = m.Classify([]float64{0, 0})
	if math.Abs(pred.Confidence-1.0/3) > 1e-9 {
		t.Errorf("uniform confidence = %v, want 1/3", pred.Confidence)
	}
}

// TestLogisticModel_FeatureLength verifies mismatched input is rejected.
func TestLogisticModel_FeatureLength(t *testing.T) {
	m, err := ParseModel(strings.NewReader(binaryModel))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Classify([]float64{1, 2, 3}); !errors.Is(err, ErrFeatureLength) {
		t.Errorf("expected ErrFeatureLength, got %v", err)
	}
	if m.InputLen() != 2 {
		t.Errorf("InputLen = %d, want 2", m.InputLen())
	}
}

// TestParseModel_Invalid verifies malformed exports are rejected.
func TestParseModel_Invalid(t *testing.T) {
	cases := map[string]string{
		"one class":       `{"classes":["up"],"mean":[0],"scale":[1],"coef":[[1]],"intercept":[0]}`,
		"scale length":    `{"classes":["a","b"],"mean":[0,0],"scale":[1],"coef":[[1,1]],"intercept":[0]}`,
		"coef rows":       `{"classes":["a","b","c"],"mean":[0],"scale":[1],"coef":[[1]],"intercept":[0]}`,
		"coef width":      `{"classes":["a","b"],"mean":[0,0],"scale":[1,1],"coef":[[1]],"intercept":[0]}`,
		"intercept count": `{"classes":["a","b"],"mean":[0],"scale":[1],"coef":[[1]],"intercept":[]}`,
		"not json":        `classes: [a, b]`,
	}
	for name, body := range cases {
		if _, err := ParseModel(strings.NewReader(body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
