package form

import (
	"math"
	"time"
)

type Tempo struct {
	// Eccentric is the lowering time in seconds, Concentric the lifting time.
	Eccentric    float64 `json:"eccentric"`
	Concentric   float64 `json:"concentric"`
	IsControlled bool    `json:"isControlled"`
}

// RepetitionAnalysis is the summary of one completed repetition.
// FormScore is optional so that analyses coming from clients may omit it.
type RepetitionAnalysis struct {
	RepNumber     int                 `json:"repNumber"`
	FormScore     *int                `json:"formScore,omitempty"`
	Issues        []Issue             `json:"issues"`
	JointAngles   []JointAngleReading `json:"jointAngles"`
	RangeOfMotion float64             `json:"rangeOfMotion"`
	Tempo         Tempo               `json:"tempo"`
}

// FrameEvaluation is one evaluated frame of a repetition in progress.
type FrameEvaluation struct {
	Timestamp    time.Time  `json:"timestamp"`
	PrimaryAngle float64    `json:"primaryAngle"`
	HasPrimary   bool       `json:"hasPrimary"`
	Evaluation   Evaluation `json:"evaluation"`
}

type TempoThresholds struct {
	MinEccentric  time.Duration `toml:"min_eccentric"`
	MinConcentric time.Duration `toml:"min_concentric"`
}

func DefaultTempoThresholds() TempoThresholds {
	return TempoThresholds{
		MinEccentric:  time.Second,
		MinConcentric: 500 * time.Millisecond,
	}
}

// BuildRepetition rolls the frames of one repetition into its analysis:
// the mean frame score, the distinct issues at their worst severity, the
// joint readings at the deepest point, range of motion against the profile's
// start/end angles, and the tempo split at the deepest point.
func BuildRepetition(repNumber int, detection RepDetection, frames []FrameEvaluation, thresholds TempoThresholds) RepetitionAnalysis {
	analysis := RepetitionAnalysis{
		RepNumber:   repNumber,
		Issues:      []Issue{},
		JointAngles: []JointAngleReading{},
	}
	if len(frames) == 0 {
		return analysis
	}

	total := 0
	for _, f := range frames {
		total += f.Evaluation.Score
	}
	score := int(math.Round(float64(total) / float64(len(frames))))
	analysis.FormScore = &score
	analysis.Issues = mergeIssues(frames)

	deepest, first, last := -1, -1, -1
	minAngle, maxAngle := math.Inf(1), math.Inf(-1)
	for i, f := range frames {
		if !f.HasPrimary {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
		if f.PrimaryAngle < minAngle {
			minAngle = f.PrimaryAngle
			deepest = i
		}
		maxAngle = math.Max(maxAngle, f.PrimaryAngle)
	}

	readingsFrom := len(frames) - 1
	if deepest >= 0 {
		readingsFrom = deepest
	}
	analysis.JointAngles = append(analysis.JointAngles, frames[readingsFrom].Evaluation.JointAngles...)

	if deepest < 0 {
		return analysis
	}

	if ideal := detection.StartAngle - detection.EndAngle; ideal > 0 {
		rom := (maxAngle - minAngle) / ideal * 100
		analysis.RangeOfMotion = roundTo(math.Max(0, math.Min(100, rom)), 1)
	}

	eccentric := frames[deepest].Timestamp.Sub(frames[first].Timestamp)
	concentric := frames[last].Timestamp.Sub(frames[deepest].Timestamp)
	analysis.Tempo = Tempo{
		Eccentric:    roundTo(eccentric.Seconds(), 2),
		Concentric:   roundTo(concentric.Seconds(), 2),
		IsControlled: eccentric >= thresholds.MinEccentric && concentric >= thresholds.MinConcentric,
	}

	return analysis
}

// RepetitionFrames drops the frames held at the top of the movement before
// the descent. The repetition starts at the last frame at or above
// StartAngle - threshold that precedes the deepest frame.
func RepetitionFrames(detection RepDetection, frames []FrameEvaluation, threshold float64) []FrameEvaluation {
	deepest := -1
	minAngle := math.Inf(1)
	for i, f := range frames {
		if f.HasPrimary && f.PrimaryAngle < minAngle {
			minAngle = f.PrimaryAngle
			deepest = i
		}
	}
	if deepest < 0 {
		return frames
	}

	top := detection.StartAngle - threshold
	for i := deepest - 1; i >= 0; i-- {
		if frames[i].HasPrimary && frames[i].PrimaryAngle >= top {
			return frames[i:]
		}
	}
	return frames
}

// mergeIssues keeps one issue per body part and label, in order of first
// appearance, at the worst severity seen.
func mergeIssues(frames []FrameEvaluation) []Issue {
	merged := []Issue{}
	index := make(map[issueKey]int)
	for _, f := range frames {
		for _, issue := range f.Evaluation.Issues {
			key := issueKey{bodyPart: issue.BodyPart, issue: issue.Issue}
			i, seen := index[key]
			if !seen {
				index[key] = len(merged)
				merged = append(merged, issue)
				continue
			}
			if issue.Severity.Worse(merged[i].Severity) {
				merged[i].Severity = issue.Severity
			}
		}
	}
	return merged
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
