package form

import (
	"math"

	"github.com/2beens/formcheck/internal/pose"
)

type Issue struct {
	BodyPart   string   `json:"bodyPart"`
	Issue      string   `json:"issue"`
	Severity   Severity `json:"severity"`
	Correction string   `json:"correction"`
}

// JointAngleReading is a measured joint angle together with the target range
// it was judged against.
type JointAngleReading struct {
	Joint     pose.Joint `json:"joint"`
	Angle     float64    `json:"angle"`
	TargetMin float64    `json:"targetMin"`
	TargetMax float64    `json:"targetMax"`
	InRange   bool       `json:"inRange"`
}

type Evaluation struct {
	Score       int                 `json:"score"`
	Issues      []Issue             `json:"issues"`
	JointAngles []JointAngleReading `json:"jointAngles"`
	// Angles are all joint angles extracted from the frame, including the
	// ones no target refers to.
	Angles pose.JointAngles `json:"-"`
}

func neutralEvaluation() Evaluation {
	return Evaluation{
		Score:       100,
		Issues:      []Issue{},
		JointAngles: []JointAngleReading{},
		Angles:      pose.JointAngles{},
	}
}

type Evaluator struct {
	registry *Registry
	cal      Calibration
	extract  pose.ExtractOptions
}

func NewEvaluator(registry *Registry, cal Calibration, extract pose.ExtractOptions) *Evaluator {
	return &Evaluator{
		registry: registry,
		cal:      cal,
		extract:  extract,
	}
}

func (e *Evaluator) Registry() *Registry {
	return e.registry
}

func (e *Evaluator) Calibration() Calibration {
	return e.cal
}

// Evaluate scores one frame of the exercise in the given phase. Exercises
// without a profile get a neutral score of 100. Missing landmarks only skip
// the checks that need them.
func (e *Evaluator) Evaluate(exerciseID string, frame pose.Frame, phase Phase) Evaluation {
	profile, ok := e.registry.lookup(exerciseID)
	if !ok {
		return neutralEvaluation()
	}

	angles := pose.ExtractAngles(frame, e.extract)
	result := Evaluation{
		Issues:      []Issue{},
		JointAngles: []JointAngleReading{},
		Angles:      angles,
	}
	score := 100.0

	for _, target := range profile.Targets {
		if target.Phase != phase {
			continue
		}
		angle, ok := angles[target.Joint]
		if !ok {
			continue
		}
		reading := JointAngleReading{
			Joint:     target.Joint,
			Angle:     angle,
			TargetMin: target.Min,
			TargetMax: target.Max,
			InRange:   angle >= target.Min && angle <= target.Max,
		}
		result.JointAngles = append(result.JointAngles, reading)
		if !reading.InRange {
			score -= e.deviationPenalty(angle, target)
		}
	}

	if profile.BodyLine {
		if issue, penalty, found := e.checkBodyLine(frame, angles); found {
			result.Issues = append(result.Issues, issue)
			score -= penalty
		}
	}

	for _, rule := range profile.Faults {
		if issue, penalty, found := e.applyRule(rule, frame, angles, phase); found {
			result.Issues = append(result.Issues, issue)
			score -= penalty
		}
	}

	result.Score = clampScore(score)
	return result
}

// RepCompleted runs repetition detection with the exercise's profile.
// Unknown exercises never complete a repetition.
func (e *Evaluator) RepCompleted(exerciseID string, history []float64, threshold float64) bool {
	profile, ok := e.registry.lookup(exerciseID)
	if !ok {
		return false
	}
	return DetectRepCompletion(profile.Rep, history, threshold)
}

func (e *Evaluator) deviationPenalty(angle float64, target TargetAngle) float64 {
	deviation := 0.0
	switch {
	case angle < target.Min:
		deviation = target.Min - angle
	case angle > target.Max:
		deviation = angle - target.Max
	}
	return math.Min(deviation*e.cal.DeviationFactor, e.cal.MaxDeviationPenalty)
}

// BodyLineReading returns the shoulder-hip-ankle angle on a 0-360 scale:
// hips raised above the shoulder-ankle line read above 180, sagging hips
// below it.
func (e *Evaluator) BodyLineReading(frame pose.Frame, angles pose.JointAngles) (float64, bool) {
	angle, ok := angles[pose.JointBodyLine]
	if !ok {
		return 0, false
	}
	shoulder, okS := frame.Position(pose.LeftShoulder, e.extract.MinVisibility)
	hip, okH := frame.Position(pose.LeftHip, e.extract.MinVisibility)
	ankle, okA := frame.Position(pose.LeftAnkle, e.extract.MinVisibility)
	if okS && okH && okA && pose.AboveLine(hip, shoulder, ankle) {
		return 360 - angle, true
	}
	return angle, true
}

func (e *Evaluator) checkBodyLine(frame pose.Frame, angles pose.JointAngles) (Issue, float64, bool) {
	reading, ok := e.BodyLineReading(frame, angles)
	if !ok {
		return Issue{}, 0, false
	}

	switch {
	case reading < e.cal.SagThreshold:
		issue := faultHipsSagging.issue()
		if reading < e.cal.SevereSagThreshold {
			issue.Severity = SeveritySevere
		}
		return issue, e.cal.SagPenalty, true
	case reading > e.cal.PikeThreshold:
		return faultHipsTooHigh.issue(), e.cal.PikePenalty, true
	}
	return Issue{}, 0, false
}

func (e *Evaluator) applyRule(rule FaultRule, frame pose.Frame, angles pose.JointAngles, phase Phase) (Issue, float64, bool) {
	switch r := rule.(type) {
	case AngleBelowRule:
		if !phaseMatches(r.Phases, phase) {
			return Issue{}, 0, false
		}
		angle, ok := angles[r.Joint]
		if !ok || angle >= r.Below {
			return Issue{}, 0, false
		}
		issue := r.Fault.issue()
		if r.SevereBelow > 0 && angle < r.SevereBelow {
			issue.Severity = SeveritySevere
		}
		return issue, r.Penalty, true
	case AngleAboveRule:
		if !phaseMatches(r.Phases, phase) {
			return Issue{}, 0, false
		}
		angle, ok := angles[r.Joint]
		if !ok || angle <= r.Above {
			return Issue{}, 0, false
		}
		return r.Fault.issue(), r.Penalty, true
	case OffsetRatioRule:
		if e.offsetRatioExceeded(frame, r.Subject, r.Reference, r.Anchor, r.Ratio) ||
			e.offsetRatioExceeded(frame, r.Subject.Mirror(), r.Reference.Mirror(), r.Anchor.Mirror(), r.Ratio) {
			return r.Fault.issue(), r.Penalty, true
		}
		return Issue{}, 0, false
	default:
		return Issue{}, 0, false
	}
}

func (e *Evaluator) offsetRatioExceeded(frame pose.Frame, subject, reference, anchor pose.Landmark, ratio float64) bool {
	s, okS := frame.Position(subject, e.extract.MinVisibility)
	r, okR := frame.Position(reference, e.extract.MinVisibility)
	a, okA := frame.Position(anchor, e.extract.MinVisibility)
	if !okS || !okR || !okA {
		return false
	}
	return pose.HorizontalOffset(s, a) > ratio*pose.HorizontalOffset(r, a)
}

func phaseMatches(phases []Phase, phase Phase) bool {
	if len(phases) == 0 {
		return true
	}
	for _, p := range phases {
		if p == phase {
			return true
		}
	}
	return false
}

func clampScore(score float64) int {
	if math.IsNaN(score) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, score))))
}
