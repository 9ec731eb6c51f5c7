package form_test

import (
	"testing"

	"github.com/2beens/formcheck/internal/form"
	"github.com/2beens/formcheck/internal/pose"

	"github.com/stretchr/testify/assert"
)

var squatRep = form.RepDetection{
	Method:       form.RepMethodAngleCycle,
	PrimaryJoint: pose.JointLeftKnee,
	StartAngle:   160,
	EndAngle:     90,
}

func TestDetectRepCompletion(t *testing.T) {
	testCases := []struct {
		name     string
		history  []float64
		expected bool
	}{
		{name: "down and up", history: []float64{170, 85, 170}, expected: true},
		{name: "gradual cycle", history: []float64{168, 150, 120, 100, 88, 92, 120, 150, 162}, expected: true},
		{name: "noisy cycle", history: []float64{165, 170, 140, 94, 99, 93, 130, 158}, expected: true},
		{name: "monotonic", history: []float64{170, 160, 150, 140, 130, 120, 110, 100}, expected: false},
		{name: "down only", history: []float64{170, 120, 85, 80}, expected: false},
		{name: "started at the bottom", history: []float64{85, 120, 170}, expected: false},
		{name: "not deep enough", history: []float64{170, 100, 170}, expected: false},
		{name: "too few samples", history: []float64{170, 85}, expected: false},
		{name: "empty", history: nil, expected: false},
		{
			name:     "cycle outside the window",
			history:  []float64{170, 85, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170},
			expected: false,
		},
		{
			name:     "cycle at the end of a long history",
			history:  []float64{120, 110, 100, 90, 100, 110, 120, 170, 130, 85, 130, 170},
			expected: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, form.DetectRepCompletion(squatRep, tc.history, form.DefaultRepThreshold))
		})
	}
}

func TestDetectRepCompletion_Threshold(t *testing.T) {
	history := []float64{158, 97, 158}
	assert.False(t, form.DetectRepCompletion(squatRep, history, form.DefaultRepThreshold))
	assert.True(t, form.DetectRepCompletion(squatRep, history, 10))
}

func TestDetectRepCompletion_Disabled(t *testing.T) {
	history := []float64{170, 85, 170}
	assert.False(t, form.DetectRepCompletion(form.RepDetection{Method: form.RepMethodNone}, history, form.DefaultRepThreshold))
	assert.False(t, form.DetectRepCompletion(form.RepDetection{}, history, form.DefaultRepThreshold))
}

func TestDetectRepCompletion_DoesNotModifyHistory(t *testing.T) {
	history := []float64{170, 85, 170}
	form.DetectRepCompletion(squatRep, history, form.DefaultRepThreshold)
	assert.Equal(t, []float64{170, 85, 170}, history)
}
