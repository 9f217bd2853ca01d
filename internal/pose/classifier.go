package pose

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
)

// ErrFeatureLength is returned when a vector does not match the model input size.
var ErrFeatureLength = errors.New("pose: feature length mismatch")

// Prediction is a classifier result for one frame.
type Prediction struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// Classifier maps a feature vector to a stage label.
type Classifier interface {
	Classify(features []float64) (Prediction, error)
}

// modelFile is the JSON export of a StandardScaler + LogisticRegression pipeline.
type modelFile struct {
	Classes   []string    `json:"classes"`
	Mean      []float64   `json:"mean"`
	Scale     []float64   `json:"scale"`
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
}

// LogisticModel is a standardized linear classifier. A single coefficient
// row is a binary model whose positive class is Classes[1]; otherwise there
// is one row per class and probabilities come from a softmax.
type LogisticModel struct {
	classes   []string
	mean      *mat.VecDense
	scale     *mat.VecDense
	weights   *mat.Dense
	intercept *mat.VecDense
}

var _ Classifier = (*LogisticModel)(nil)

// LoadModel reads an exported model from a JSON file.
func LoadModel(path string) (*LogisticModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model: %w", err)
	}
	defer f.Close()

	m, err := ParseModel(f)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return m, nil
}

// ParseModel decodes and validates an exported model.
func ParseModel(r io.Reader) (*LogisticModel, error) {
	var mf modelFile
	if err := json.NewDecoder(r).Decode(&mf); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	return newLogisticModel(mf)
}

func newLogisticModel(mf modelFile) (*LogisticModel, error) {
	if len(mf.Classes) < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", len(mf.Classes))
	}
	n := len(mf.Mean)
	if n == 0 {
		return nil, errors.New("mean is empty")
	}
	if len(mf.Scale) != n {
		return nil, fmt.Errorf("scale has %d values, mean has %d", len(mf.Scale), n)
	}

	rows := len(mf.Classes)
	if rows == 2 {
		rows = 1
	}
	if len(mf.Coef) != rows {
		return nil, fmt.Errorf("coef has %d rows, want %d for %d classes", len(mf.Coef), rows, len(mf.Classes))
	}
	if len(mf.Intercept) != rows {
		return nil, fmt.Errorf("intercept has %d values, want %d", len(mf.Intercept), rows)
	}

	data := make([]float64, 0, rows*n)
	for i, row := range mf.Coef {
		if len(row) != n {
			return nil, fmt.Errorf("coef row %d has %d values, want %d", i, len(row), n)
		}
		data = append(data, row...)
	}

	scale := make([]float64, n)
	for i, s := range mf.Scale {
		// A constant feature is exported with zero scale; leave it unscaled.
		if s == 0 {
			s = 1
		}
		scale[i] = s
	}

	return &LogisticModel{
		classes:   append([]string(nil), mf.Classes...),
		mean:      mat.NewVecDense(n, append([]float64(nil), mf.Mean...)),
		scale:     mat.NewVecDense(n, scale),
		weights:   mat.NewDense(rows, n, data),
		intercept: mat.NewVecDense(rows, append([]float64(nil), mf.Intercept...)),
	}, nil
}

// Classes returns the labels the model can emit.
func (m *LogisticModel) Classes() []string { return append([]string(nil), m.classes...) }

// InputLen returns the expected feature vector length.
func (m *LogisticModel) InputLen() int { return m.mean.Len() }

// Classify standardizes the features, applies the linear model and returns
// the most probable class.
func (m *LogisticModel) Classify(features []float64) (Prediction, error) {
	n := m.mean.Len()
	if len(features) != n {
		return Prediction{}, fmt.Errorf("%w: got %d, want %d", ErrFeatureLength, len(features), n)
	}

	x := mat.NewVecDense(n, append([]float64(nil), features...))
	x.SubVec(x, m.mean)
	x.DivElemVec(x, m.scale)

	var logits mat.VecDense
	logits.MulVec(m.weights, x)
	logits.AddVec(&logits, m.intercept)

	probs := make([]float64, len(m.classes))
	if logits.Len() == 1 {
		p := sigmoid(logits.AtVec(0))
		probs[0], probs[1] = 1-p, p
	} else {
		softmax(&logits, probs)
	}

	best := 0
	pred := Prediction{Probabilities: make(map[string]float64, len(m.classes))}
	for i, p := range probs {
		pred.Probabilities[m.classes[i]] = p
		if p > probs[best] {
			best = i
		}
	}
	pred.Label = m.classes[best]
	pred.Confidence = probs[best]
	return pred, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func softmax(logits *mat.VecDense, out []float64) {
	maxLogit := math.Inf(-1)
	for i := 0; i < logits.Len(); i++ {
		maxLogit = math.Max(maxLogit, logits.AtVec(i))
	}
	var sum float64
	for i := range out {
		out[i] = math.Exp(logits.AtVec(i) - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
}
