// Package form scores exercise technique from joint angles: per-frame
// evaluation against exercise profiles, repetition detection over an angle
// history and end-of-set feedback.
package form

import (
	"fmt"
	"strings"

	"github.com/2beens/formcheck/internal/pose"
)

type Phase string

const (
	PhaseStart  Phase = "start"
	PhaseMiddle Phase = "middle"
	PhaseEnd    Phase = "end"
)

// ParsePhase accepts start, middle or end. An empty string means middle.
func ParsePhase(s string) (Phase, error) {
	switch p := Phase(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PhaseMiddle, nil
	case PhaseStart, PhaseMiddle, PhaseEnd:
		return p, nil
	default:
		return "", fmt.Errorf("invalid phase %q, expected one of start, middle, end", s)
	}
}

type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

func (s Severity) rank() int {
	switch s {
	case SeverityMinor:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySevere:
		return 3
	default:
		return 0
	}
}

// Worse reports whether s is more severe than other.
func (s Severity) Worse(other Severity) bool {
	return s.rank() > other.rank()
}

// TargetAngle is the acceptable range of a joint during one phase.
type TargetAngle struct {
	Joint pose.Joint `json:"joint"`
	Phase Phase      `json:"phase"`
	Min   float64    `json:"min"`
	Max   float64    `json:"max"`
}

type RepMethod string

const (
	RepMethodAngleCycle RepMethod = "angle_cycle"
	RepMethodNone       RepMethod = "none"
)

// RepDetection describes the cycle a repetition makes on the primary joint:
// from around StartAngle down to EndAngle and back.
type RepDetection struct {
	Method       RepMethod  `json:"method"`
	PrimaryJoint pose.Joint `json:"primaryJoint,omitempty"`
	StartAngle   float64    `json:"startAngle,omitempty"`
	EndAngle     float64    `json:"endAngle,omitempty"`
}

func (r RepDetection) Enabled() bool {
	return r.Method == RepMethodAngleCycle && r.PrimaryJoint != ""
}

// Fault is the issue reported when a rule fires.
type Fault struct {
	BodyPart   string   `json:"bodyPart"`
	Issue      string   `json:"issue"`
	Severity   Severity `json:"severity"`
	Correction string   `json:"correction"`
}

func (f Fault) issue() Issue {
	return Issue(f)
}

// FaultRule is a technique check specific to one exercise. The set of rule
// kinds is closed: AngleBelowRule, AngleAboveRule and OffsetRatioRule.
type FaultRule interface {
	// Kind names the rule in profile listings.
	Kind() string
	joints() []pose.Joint
	isFaultRule()
}

// AngleBelowRule fires when the joint angle drops under Below in one of the
// listed phases (any phase when empty). Below SevereBelow the fault is
// reported as severe.
type AngleBelowRule struct {
	Joint       pose.Joint `json:"joint"`
	Phases      []Phase    `json:"phases,omitempty"`
	Below       float64    `json:"below"`
	SevereBelow float64    `json:"severeBelow,omitempty"`
	Penalty     float64    `json:"penalty"`
	Fault       Fault      `json:"fault"`
}

func (AngleBelowRule) Kind() string           { return "angle_below" }
func (r AngleBelowRule) joints() []pose.Joint { return []pose.Joint{r.Joint} }
func (AngleBelowRule) isFaultRule()           {}

// AngleAboveRule fires when the joint angle exceeds Above.
type AngleAboveRule struct {
	Joint   pose.Joint `json:"joint"`
	Phases  []Phase    `json:"phases,omitempty"`
	Above   float64    `json:"above"`
	Penalty float64    `json:"penalty"`
	Fault   Fault      `json:"fault"`
}

func (AngleAboveRule) Kind() string           { return "angle_above" }
func (r AngleAboveRule) joints() []pose.Joint { return []pose.Joint{r.Joint} }
func (AngleAboveRule) isFaultRule()           {}

// OffsetRatioRule compares horizontal offsets from an anchor landmark:
// it fires when |Subject.x - Anchor.x| > Ratio * |Reference.x - Anchor.x|
// on the configured side or its mirror.
type OffsetRatioRule struct {
	Subject   pose.Landmark `json:"subject"`
	Reference pose.Landmark `json:"reference"`
	Anchor    pose.Landmark `json:"anchor"`
	Ratio     float64       `json:"ratio"`
	Penalty   float64       `json:"penalty"`
	Fault     Fault         `json:"fault"`
}

func (OffsetRatioRule) Kind() string         { return "offset_ratio" }
func (OffsetRatioRule) joints() []pose.Joint { return nil }
func (OffsetRatioRule) isFaultRule()         {}

// Profile is the read-only form configuration of one exercise.
type Profile struct {
	Exercise string        `json:"exercise"`
	Name     string        `json:"name"`
	Targets  []TargetAngle `json:"targets"`
	Rep      RepDetection  `json:"repDetection"`
	// BodyLine enables the sagging/piked hips checks.
	BodyLine bool        `json:"bodyLine"`
	Faults   []FaultRule `json:"-"`
}

// PrimaryJoint returns the joint used for repetition detection, if any.
func (p Profile) PrimaryJoint() (pose.Joint, bool) {
	if !p.Rep.Enabled() {
		return "", false
	}
	return p.Rep.PrimaryJoint, true
}

func (p Profile) clone() Profile {
	c := p
	c.Targets = append([]TargetAngle(nil), p.Targets...)
	c.Faults = append([]FaultRule(nil), p.Faults...)
	return c
}

func (p Profile) validate() error {
	if strings.TrimSpace(p.Exercise) == "" {
		return fmt.Errorf("profile %q: empty exercise id", p.Name)
	}
	for _, t := range p.Targets {
		if !t.Joint.Valid() {
			return fmt.Errorf("profile %s: unknown target joint %q", p.Exercise, t.Joint)
		}
		if t.Min > t.Max {
			return fmt.Errorf("profile %s: target %s/%s min %.1f above max %.1f", p.Exercise, t.Joint, t.Phase, t.Min, t.Max)
		}
	}
	if p.Rep.Method == RepMethodAngleCycle {
		if !p.Rep.PrimaryJoint.Valid() {
			return fmt.Errorf("profile %s: unknown primary joint %q", p.Exercise, p.Rep.PrimaryJoint)
		}
		if p.Rep.StartAngle <= p.Rep.EndAngle {
			return fmt.Errorf("profile %s: rep start angle must be above end angle", p.Exercise)
		}
	}
	for _, rule := range p.Faults {
		for _, j := range rule.joints() {
			if !j.Valid() {
				return fmt.Errorf("profile %s: %s rule on unknown joint %q", p.Exercise, rule.Kind(), j)
			}
		}
		if r, ok := rule.(OffsetRatioRule); ok {
			if !r.Subject.Valid() || !r.Reference.Valid() || !r.Anchor.Valid() {
				return fmt.Errorf("profile %s: offset_ratio rule on unknown landmark", p.Exercise)
			}
		}
	}
	return nil
}
