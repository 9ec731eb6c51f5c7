package form_test

import (
	"math"
	"time"

	"github.com/2beens/formcheck/internal/pose"
)

var baseTime = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

// limbEnd returns the point at distance length from vertex such that the
// angle between vertex->(vertex up) and vertex->result is angle degrees.
func limbEnd(vertex pose.Point, angle, length float64) pose.Point {
	rad := angle * math.Pi / 180
	return pose.Point{
		X: vertex.X + length*math.Sin(rad),
		Y: vertex.Y - length*math.Cos(rad),
	}
}

func set(frame *pose.Frame, l pose.Landmark, p pose.Point) {
	frame.Set(l, pose.Keypoint{X: p.X, Y: p.Y})
}

// elbowFrame holds a left arm bent to the given elbow angle.
func elbowFrame(angle float64) pose.Frame {
	frame := pose.NewFrame(baseTime)
	elbow := pose.Point{X: 0.5, Y: 0.5}
	set(&frame, pose.LeftShoulder, pose.Point{X: 0.5, Y: 0.3})
	set(&frame, pose.LeftElbow, elbow)
	set(&frame, pose.LeftWrist, limbEnd(elbow, angle, 0.2))
	return frame
}

// pushUpFrame is a side view of a push-up: left arm bent to elbowAngle and
// the shoulder-hip-ankle line bent to bodyAngle, hips below the line when
// sag is true and above it otherwise.
func pushUpFrame(elbowAngle, bodyAngle float64, sag bool) pose.Frame {
	frame := pose.NewFrame(baseTime)
	shoulder := pose.Point{X: 0.3, Y: 0.5}
	ankle := pose.Point{X: 0.9, Y: 0.5}
	halfSpan := (ankle.X - shoulder.X) / 2
	drop := halfSpan / math.Tan(bodyAngle/2*math.Pi/180)
	if !sag {
		drop = -drop
	}
	hip := pose.Point{X: shoulder.X + halfSpan, Y: shoulder.Y + drop}

	elbow := pose.Point{X: 0.3, Y: 0.65}
	set(&frame, pose.LeftShoulder, shoulder)
	set(&frame, pose.LeftElbow, elbow)
	// shoulder sits straight above the elbow, so the forearm angle is
	// measured from vertical
	set(&frame, pose.LeftWrist, limbEnd(elbow, elbowAngle, 0.15))
	set(&frame, pose.LeftHip, hip)
	set(&frame, pose.LeftAnkle, ankle)
	return frame
}

func legFrame(side string, hip, knee, ankle pose.Point) pose.Frame {
	frame := pose.NewFrame(baseTime)
	h, k, a := pose.LeftHip, pose.LeftKnee, pose.LeftAnkle
	if side == "right" {
		h, k, a = h.Mirror(), k.Mirror(), a.Mirror()
	}
	set(&frame, h, hip)
	set(&frame, k, knee)
	set(&frame, a, ankle)
	return frame
}

func intPtr(i int) *int {
	return &i
}
