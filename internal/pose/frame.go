package pose

import "time"

// Point is a 2-D image-space position. Y grows downward, as emitted by the pose model.
type Point struct {
	X float64
	Y float64
}

// Keypoint is a single landmark observation. Z and Visibility are optional,
// since not every pose model produces them.
type Keypoint struct {
	X          float64
	Y          float64
	Z          *float64
	Visibility *float64
}

func (k Keypoint) Point() Point {
	return Point{X: k.X, Y: k.Y}
}

// Confident reports whether the keypoint meets the minimum visibility.
// A keypoint without a visibility score is always trusted.
func (k Keypoint) Confident(minVisibility float64) bool {
	if k.Visibility == nil {
		return true
	}
	return *k.Visibility >= minVisibility
}

// Frame is one sampled instant of the 33-point layout. Every slot is optional:
// a landmark the producer did not see is simply absent, never a zero coordinate.
type Frame struct {
	Timestamp time.Time
	points    [NumLandmarks]*Keypoint
}

func NewFrame(ts time.Time) Frame {
	return Frame{Timestamp: ts}
}

// Set stores a copy of kp in the given slot. Out-of-layout landmarks are ignored.
func (f *Frame) Set(l Landmark, kp Keypoint) {
	if !l.Valid() {
		return
	}
	f.points[l] = &kp
}

// Without returns a copy of the frame with the landmark removed.
func (f Frame) Without(l Landmark) Frame {
	if l.Valid() {
		f.points[l] = nil
	}
	return f
}

func (f Frame) Landmark(l Landmark) (Keypoint, bool) {
	if !l.Valid() || f.points[l] == nil {
		return Keypoint{}, false
	}
	return *f.points[l], true
}

// Position returns the landmark's position if it is present and visible enough.
func (f Frame) Position(l Landmark, minVisibility float64) (Point, bool) {
	kp, ok := f.Landmark(l)
	if !ok || !kp.Confident(minVisibility) {
		return Point{}, false
	}
	return kp.Point(), true
}

// Len returns the number of present landmarks.
func (f Frame) Len() int {
	n := 0
	for _, p := range f.points {
		if p != nil {
			n++
		}
	}
	return n
}
