// Package gesture converts hand-landmark inference results into a scroll
// signal.
package gesture

// Landmark is one normalized hand keypoint. X and Y are in image-relative
// units, nominally [0,1] with (0,0) at the top-left; Z is relative depth.
// Values slightly outside [0,1] are possible near the frame edge.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Hand landmark indices in the 21-point hand model.
const (
	Wrist           = 0
	ThumbTip        = 4
	IndexFingerMCP  = 5
	IndexFingerTip  = 8
	MiddleFingerTip = 12
	RingFingerTip   = 16
	PinkyTip        = 20

	// NumLandmarks is the number of points per hand.
	NumLandmarks = 21
)

// Results is one inference output: zero or more hands, each a full set of
// landmarks.
type Results struct {
	Hands [][]Landmark `json:"hands"`
}

// Empty reports whether no hand was detected.
func (r Results) Empty() bool { return len(r.Hands) == 0 }
