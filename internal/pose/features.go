package pose

import "fmt"

// FeatureMode selects how landmarks are flattened for a classifier.
type FeatureMode string

const (
	// FeaturesRaw flattens x, y, z and visibility of every landmark (132 values).
	FeaturesRaw FeatureMode = "raw"
	// FeaturesArms keeps only the arms, each centred on its shoulder and
	// scaled by shoulder-to-wrist length (18 values).
	FeaturesArms FeatureMode = "arms"
)

// RawFeatureLen and ArmFeatureLen are the vector lengths of each mode.
const (
	RawFeatureLen = NumLandmarks * 4
	ArmFeatureLen = 2 * 3 * 3
)

var armIndices = [2][3]int{
	{LeftShoulder, LeftElbow, LeftWrist},
	{RightShoulder, RightElbow, RightWrist},
}

// ParseFeatureMode validates a mode name; empty means FeaturesRaw.
func ParseFeatureMode(s string) (FeatureMode, error) {
	switch FeatureMode(s) {
	case "", FeaturesRaw:
		return FeaturesRaw, nil
	case FeaturesArms:
		return FeaturesArms, nil
	default:
		return "", fmt.Errorf("unknown feature mode %q", s)
	}
}

// Len returns the vector length produced by the mode.
func (m FeatureMode) Len() int {
	if m == FeaturesArms {
		return ArmFeatureLen
	}
	return RawFeatureLen
}

// Extract builds the feature vector for the given mode.
func Extract(mode FeatureMode, lms []Landmark) ([]float64, error) {
	switch mode {
	case FeaturesArms:
		return ArmFeatures(lms)
	case FeaturesRaw, "":
		return RawFeatures(lms)
	default:
		return nil, fmt.Errorf("unknown feature mode %q", mode)
	}
}

// RawFeatures flattens every landmark as x, y, z, visibility in index order.
func RawFeatures(lms []Landmark) ([]float64, error) {
	if err := checkCount(lms); err != nil {
		return nil, err
	}
	out := make([]float64, 0, RawFeatureLen)
	for _, lm := range lms {
		out = append(out, lm.X, lm.Y, lm.Z, lm.Visibility)
	}
	return out, nil
}

// ArmFeatures returns the left then right arm (shoulder, elbow, wrist),
// translated so the shoulder is the origin and scaled so the shoulder-wrist
// distance is 1. Head and torso are ignored.
func ArmFeatures(lms []Landmark) ([]float64, error) {
	if err := checkCount(lms); err != nil {
		return nil, err
	}
	out := make([]float64, 0, ArmFeatureLen)
	for _, idxs := range armIndices {
		var kp [3][3]float64
		origin := lms[idxs[0]]
		for i, idx := range idxs {
			kp[i] = [3]float64{
				lms[idx].X - origin.X,
				lms[idx].Y - origin.Y,
				lms[idx].Z - origin.Z,
			}
		}
		length := distance3D(kp[2], kp[0])
		if length < 1e-6 {
			length = 1
		}
		for _, p := range kp {
			out = append(out, p[0]/length, p[1]/length, p[2]/length)
		}
	}
	return out, nil
}
