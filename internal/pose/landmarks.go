// Package pose turns body landmarks into classifier features and classifies
// them into exercise stages.
package pose

import (
	"errors"
	"fmt"
	"math"
)

// Body landmark indices following the MediaPipe Pose convention.
const (
	LeftShoulder  = 11
	RightShoulder = 12
	LeftElbow     = 13
	RightElbow    = 14
	LeftWrist     = 15
	RightWrist    = 16
	NumLandmarks  = 33
)

// ErrLandmarkCount is returned when a frame does not carry a full body.
var ErrLandmarkCount = errors.New("pose: wrong landmark count")

// Landmark is one normalized body keypoint as produced by the pose model.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

func checkCount(lms []Landmark) error {
	if len(lms) != NumLandmarks {
		return fmt.Errorf("%w: got %d, want %d", ErrLandmarkCount, len(lms), NumLandmarks)
	}
	return nil
}

func distance3D(a, b [3]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
