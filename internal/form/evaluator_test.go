package form_test

import (
	"testing"

	"github.com/2beens/formcheck/internal/form"
	"github.com/2beens/formcheck/internal/pose"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluator() *form.Evaluator {
	cal := form.DefaultCalibration()
	return form.NewEvaluator(form.DefaultRegistry(cal), cal, pose.ExtractOptions{})
}

func TestEvaluate_UnknownExercise(t *testing.T) {
	evaluator := newTestEvaluator()
	faker := gofakeit.New(3)

	for i := 0; i < 20; i++ {
		frame := pose.NewFrame(baseTime)
		for l := pose.Landmark(0); l < pose.NumLandmarks; l++ {
			set(&frame, l, pose.Point{X: faker.Float64Range(0, 1), Y: faker.Float64Range(0, 1)})
		}
		result := evaluator.Evaluate("unknown-exercise", frame, form.PhaseMiddle)
		assert.Equal(t, 100, result.Score)
		assert.Empty(t, result.Issues)
		assert.Empty(t, result.JointAngles)
		assert.NotNil(t, result.Issues)
		assert.NotNil(t, result.JointAngles)
	}
}

func TestEvaluate_PushUpSaggingHips(t *testing.T) {
	evaluator := newTestEvaluator()

	result := evaluator.Evaluate("push-ups", pushUpFrame(90, 120, true), form.PhaseMiddle)
	assert.Equal(t, 85, result.Score)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "hips", result.Issues[0].BodyPart)
	assert.Equal(t, "Hips sagging", result.Issues[0].Issue)
	// 120 is under the 130 severe cutoff; the cutoff wins over the "moderate"
	// label this frame is sometimes quoted with. Moderate is covered below.
	assert.Equal(t, form.SeveritySevere, result.Issues[0].Severity)

	require.Len(t, result.JointAngles, 1)
	reading := result.JointAngles[0]
	assert.Equal(t, pose.JointLeftElbow, reading.Joint)
	assert.InDelta(t, 90.0, reading.Angle, 1e-6)
	assert.Equal(t, 80.0, reading.TargetMin)
	assert.Equal(t, 100.0, reading.TargetMax)
	assert.True(t, reading.InRange)
	assert.InDelta(t, 120.0, result.Angles[pose.JointBodyLine], 1e-6)
}

func TestEvaluate_PushUpModerateSag(t *testing.T) {
	evaluator := newTestEvaluator()

	result := evaluator.Evaluate("push-ups", pushUpFrame(90, 140, true), form.PhaseMiddle)
	assert.Equal(t, 85, result.Score)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "hips", result.Issues[0].BodyPart)
	assert.Equal(t, form.SeverityModerate, result.Issues[0].Severity)
}

func TestEvaluate_PushUpHipsTooHigh(t *testing.T) {
	evaluator := newTestEvaluator()

	result := evaluator.Evaluate("push-ups", pushUpFrame(90, 160, false), form.PhaseMiddle)
	assert.Equal(t, 90, result.Score)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "Hips too high", result.Issues[0].Issue)
	assert.Equal(t, form.SeverityModerate, result.Issues[0].Severity)

	frame := pushUpFrame(90, 160, false)
	reading, ok := evaluator.BodyLineReading(frame, pose.ExtractAngles(frame, pose.ExtractOptions{}))
	require.True(t, ok)
	assert.InDelta(t, 200.0, reading, 1e-6)
}

func TestEvaluate_PushUpStraightBody(t *testing.T) {
	evaluator := newTestEvaluator()

	for _, sag := range []bool{true, false} {
		result := evaluator.Evaluate("push-ups", pushUpFrame(90, 176, sag), form.PhaseMiddle)
		assert.Equal(t, 100, result.Score)
		assert.Empty(t, result.Issues)
	}
}

func TestEvaluate_TargetDeviationPenalty(t *testing.T) {
	evaluator := newTestEvaluator()

	testCases := []struct {
		name     string
		angle    float64
		phase    form.Phase
		expected int
	}{
		{name: "in range", angle: 95, phase: form.PhaseMiddle, expected: 100},
		{name: "lower bound inclusive", angle: 80, phase: form.PhaseMiddle, expected: 100},
		{name: "20 degrees short", angle: 60, phase: form.PhaseMiddle, expected: 90},
		{name: "16 degrees over", angle: 116, phase: form.PhaseMiddle, expected: 92},
		{name: "penalty capped", angle: 10, phase: form.PhaseMiddle, expected: 80},
		{name: "start phase bent", angle: 90, phase: form.PhaseStart, expected: 80},
		{name: "end phase extended", angle: 170, phase: form.PhaseEnd, expected: 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := evaluator.Evaluate("push-ups", elbowFrame(tc.angle), tc.phase)
			assert.Equal(t, tc.expected, result.Score)
			require.Len(t, result.JointAngles, 1)
			assert.Empty(t, result.Issues)
		})
	}
}

func TestEvaluate_KneesCaving(t *testing.T) {
	evaluator := newTestEvaluator()

	for _, side := range []string{"left", "right"} {
		frame := legFrame(side,
			pose.Point{X: 0.5, Y: 0.3},
			pose.Point{X: 0.48, Y: 0.6},
			pose.Point{X: 0.5, Y: 0.9},
		)
		result := evaluator.Evaluate("squats", frame, form.PhaseStart)
		assert.Equal(t, 85, result.Score, side)
		require.Len(t, result.Issues, 1, side)
		assert.Equal(t, "knees", result.Issues[0].BodyPart)
		assert.Equal(t, "Knees caving inward", result.Issues[0].Issue)
		assert.Equal(t, form.SeverityModerate, result.Issues[0].Severity)
	}

	tracking := legFrame("left",
		pose.Point{X: 0.45, Y: 0.3},
		pose.Point{X: 0.48, Y: 0.6},
		pose.Point{X: 0.5, Y: 0.9},
	)
	result := evaluator.Evaluate("squat", tracking, form.PhaseStart)
	assert.Equal(t, 100, result.Score)
	assert.Empty(t, result.Issues)
}

func TestEvaluate_MissingLandmarksReduceChecks(t *testing.T) {
	evaluator := newTestEvaluator()

	frame := pushUpFrame(90, 120, true).Without(pose.LeftAnkle)
	result := evaluator.Evaluate("push-ups", frame, form.PhaseMiddle)
	assert.Equal(t, 100, result.Score)
	assert.Empty(t, result.Issues)
	assert.Len(t, result.JointAngles, 1)

	empty := evaluator.Evaluate("push-ups", pose.NewFrame(baseTime), form.PhaseMiddle)
	assert.Equal(t, 100, empty.Score)
	assert.Empty(t, empty.JointAngles)
}

func TestEvaluate_LowVisibilityLandmarksIgnored(t *testing.T) {
	cal := form.DefaultCalibration()
	evaluator := form.NewEvaluator(form.DefaultRegistry(cal), cal, pose.ExtractOptions{MinVisibility: 0.5})

	frame := pushUpFrame(90, 120, true)
	low := 0.1
	hip, ok := frame.Landmark(pose.LeftHip)
	require.True(t, ok)
	hip.Visibility = &low
	frame.Set(pose.LeftHip, hip)

	result := evaluator.Evaluate("push-ups", frame, form.PhaseMiddle)
	assert.Equal(t, 100, result.Score)
	assert.Empty(t, result.Issues)
}

func TestEvaluate_CustomCalibration(t *testing.T) {
	cal := form.DefaultCalibration()
	cal.SagPenalty = 30
	cal.DeviationFactor = 1
	evaluator := form.NewEvaluator(form.DefaultRegistry(cal), cal, pose.ExtractOptions{})

	result := evaluator.Evaluate("push-ups", pushUpFrame(70, 140, true), form.PhaseMiddle)
	// 10 degrees under target, then sagging hips
	assert.Equal(t, 60, result.Score)
}

func TestEvaluate_ScoreBounds(t *testing.T) {
	evaluator := newTestEvaluator()
	faker := gofakeit.New(99)
	exercises := append(evaluator.Registry().Exercises(), "unknown-exercise")
	phases := []form.Phase{form.PhaseStart, form.PhaseMiddle, form.PhaseEnd}

	for i := 0; i < 300; i++ {
		frame := pose.NewFrame(baseTime)
		for l := pose.Landmark(0); l < pose.NumLandmarks; l++ {
			if faker.Bool() {
				continue
			}
			set(&frame, l, pose.Point{X: faker.Float64Range(0, 1), Y: faker.Float64Range(0, 1)})
		}
		for _, exercise := range exercises {
			for _, phase := range phases {
				result := evaluator.Evaluate(exercise, frame, phase)
				assert.GreaterOrEqual(t, result.Score, 0)
				assert.LessOrEqual(t, result.Score, 100)
			}
		}
	}
}

func TestEvaluate_ScoreClampedAtZero(t *testing.T) {
	cal := form.DefaultCalibration()
	cal.SagPenalty = 150
	evaluator := form.NewEvaluator(form.DefaultRegistry(cal), cal, pose.ExtractOptions{})

	result := evaluator.Evaluate("push-ups", pushUpFrame(90, 120, true), form.PhaseMiddle)
	assert.Equal(t, 0, result.Score)
}

func TestEvaluate_SquatForwardLean(t *testing.T) {
	evaluator := newTestEvaluator()

	frame := pose.NewFrame(baseTime)
	hip := pose.Point{X: 0.5, Y: 0.6}
	set(&frame, pose.LeftHip, hip)
	// knee straight below the hip, torso folded to 24 degrees
	set(&frame, pose.LeftKnee, pose.Point{X: 0.5, Y: 0.8})
	shoulder := limbEnd(hip, 156, 0.3)
	set(&frame, pose.LeftShoulder, shoulder)

	result := evaluator.Evaluate("squats", frame, form.PhaseMiddle)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "torso", result.Issues[0].BodyPart)
	assert.Equal(t, form.SeveritySevere, result.Issues[0].Severity)
	// hip 26 degrees under its 50-100 target, then the lean penalty
	assert.Equal(t, 77, result.Score)
}

func TestRepCompleted(t *testing.T) {
	evaluator := newTestEvaluator()

	assert.True(t, evaluator.RepCompleted("squats", []float64{170, 85, 170}, form.DefaultRepThreshold))
	assert.False(t, evaluator.RepCompleted("plank", []float64{170, 85, 170}, form.DefaultRepThreshold))
	assert.False(t, evaluator.RepCompleted("unknown-exercise", []float64{170, 85, 170}, form.DefaultRepThreshold))
}
