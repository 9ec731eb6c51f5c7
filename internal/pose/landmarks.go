// Package pose holds the body landmark layout, keypoint frames and the joint
// angle math the form analysis is built on.
package pose

import "strings"

// Landmark is an index into the 33-point body layout emitted by the pose model.
type Landmark int

// Body landmark indices following the MediaPipe pose convention.
const (
	Nose Landmark = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
	NumLandmarks
)

var landmarkNames = [NumLandmarks]string{
	"nose",
	"left_eye_inner",
	"left_eye",
	"left_eye_outer",
	"right_eye_inner",
	"right_eye",
	"right_eye_outer",
	"left_ear",
	"right_ear",
	"mouth_left",
	"mouth_right",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_pinky",
	"right_pinky",
	"left_index",
	"right_index",
	"left_thumb",
	"right_thumb",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
	"left_heel",
	"right_heel",
	"left_foot_index",
	"right_foot_index",
}

var landmarksByName = func() map[string]Landmark {
	m := make(map[string]Landmark, NumLandmarks)
	for i, name := range landmarkNames {
		m[name] = Landmark(i)
	}
	return m
}()

func (l Landmark) Valid() bool {
	return l >= 0 && l < NumLandmarks
}

func (l Landmark) String() string {
	if !l.Valid() {
		return "unknown"
	}
	return landmarkNames[l]
}

func (l Landmark) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Mirror returns the same landmark on the opposite side of the body.
// Midline landmarks (the nose) mirror to themselves.
func (l Landmark) Mirror() Landmark {
	name := l.String()
	switch {
	case strings.HasPrefix(name, "left_"):
		return landmarksByName["right_"+strings.TrimPrefix(name, "left_")]
	case strings.HasPrefix(name, "right_"):
		return landmarksByName["left_"+strings.TrimPrefix(name, "right_")]
	case name == "mouth_left":
		return MouthRight
	case name == "mouth_right":
		return MouthLeft
	default:
		return l
	}
}

// LandmarkByName resolves a landmark name, accepting both snake_case and
// camelCase spellings ("left_knee", "leftKnee", "LEFT_KNEE").
func LandmarkByName(name string) (Landmark, bool) {
	l, ok := landmarksByName[normalizeName(name)]
	return l, ok
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range name {
		switch {
		case r == '-' || r == ' ':
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			if i > 0 && !strings.HasSuffix(b.String(), "_") && !isUpperSnake(name) {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isUpperSnake(s string) bool {
	return strings.ToUpper(s) == s
}
