package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/2beens/formcheck/internal/form"
	"github.com/2beens/formcheck/internal/pose"
)

var (
	ErrMissingExercise  = errors.New("exercise is required")
	ErrMissingKeypoints = errors.New("keypoints are required")
	ErrInvalidKeypoint  = errors.New("invalid keypoint")
	ErrInvalidPhase     = errors.New("invalid phase")
	ErrMissingAnalyses  = errors.New("analyses must be a list")
)

// Keypoint is one landmark as sent by clients. A null or missing x/y marks the
// landmark as not detected. Name, when set, addresses the landmark directly;
// otherwise the position in the list does.
type Keypoint struct {
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Z          *float64 `json:"z,omitempty"`
	Visibility *float64 `json:"visibility,omitempty"`
	Name       string   `json:"name,omitempty"`
}

type AnalyzeRequest struct {
	Exercise  string     `json:"exercise"`
	Keypoints []Keypoint `json:"keypoints"`
	Phase     string     `json:"phase"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// FrameInput is a validated analyze request.
type FrameInput struct {
	Exercise string
	Frame    pose.Frame
	Phase    form.Phase
}

type FeedbackRequest struct {
	Analyses json.RawMessage `json:"analyses"`
}

type FeedbackResponse struct {
	Feedback []string `json:"feedback"`
}

func ParseAnalyzeRequest(body io.Reader, now time.Time) (*FrameInput, error) {
	var req AnalyzeRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, fmt.Errorf("decode analyze request: %w", err)
	}

	if strings.TrimSpace(req.Exercise) == "" {
		return nil, ErrMissingExercise
	}

	phase, frame, err := ParseFrame(req.Keypoints, req.Phase, req.Timestamp, now)
	if err != nil {
		return nil, err
	}

	return &FrameInput{
		Exercise: req.Exercise,
		Frame:    frame,
		Phase:    phase,
	}, nil
}

// ParseFrame validates the keypoints and phase of a frame. A missing timestamp
// falls back to now.
func ParseFrame(keypoints []Keypoint, rawPhase string, ts *time.Time, now time.Time) (form.Phase, pose.Frame, error) {
	if len(keypoints) == 0 {
		return "", pose.Frame{}, ErrMissingKeypoints
	}

	phase, err := form.ParsePhase(rawPhase)
	if err != nil {
		return "", pose.Frame{}, fmt.Errorf("%w: %s", ErrInvalidPhase, err)
	}

	frameTime := now
	if ts != nil && !ts.IsZero() {
		frameTime = *ts
	}

	frame, err := FrameFromKeypoints(keypoints, frameTime)
	if err != nil {
		return "", pose.Frame{}, err
	}

	return phase, frame, nil
}

func FrameFromKeypoints(keypoints []Keypoint, ts time.Time) (pose.Frame, error) {
	frame := pose.NewFrame(ts)
	for i, kp := range keypoints {
		landmark := pose.Landmark(i)
		if kp.Name != "" {
			l, ok := pose.LandmarkByName(kp.Name)
			if !ok {
				return pose.Frame{}, fmt.Errorf("%w: unknown landmark name %q", ErrInvalidKeypoint, kp.Name)
			}
			landmark = l
		} else if !landmark.Valid() {
			return pose.Frame{}, fmt.Errorf("%w: position %d outside the %d-point layout", ErrInvalidKeypoint, i, pose.NumLandmarks)
		}

		if kp.Visibility != nil && (*kp.Visibility < 0 || *kp.Visibility > 1) {
			return pose.Frame{}, fmt.Errorf("%w: %s visibility %.2f outside [0, 1]", ErrInvalidKeypoint, landmark, *kp.Visibility)
		}

		// not detected
		if kp.X == nil || kp.Y == nil {
			continue
		}

		frame.Set(landmark, pose.Keypoint{
			X:          *kp.X,
			Y:          *kp.Y,
			Z:          kp.Z,
			Visibility: kp.Visibility,
		})
	}
	return frame, nil
}

func ParseFeedbackRequest(body io.Reader) ([]form.RepetitionAnalysis, error) {
	var req FeedbackRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, fmt.Errorf("decode feedback request: %w", err)
	}

	raw := bytes.TrimSpace(req.Analyses)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, ErrMissingAnalyses
	}

	var analyses []form.RepetitionAnalysis
	if err := json.Unmarshal(raw, &analyses); err != nil {
		return nil, fmt.Errorf("decode analyses: %w", err)
	}
	return analyses, nil
}
