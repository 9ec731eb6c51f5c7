package form

import "github.com/2beens/formcheck/internal/pose"

const (
	ExercisePushUps = "push-ups"
	ExerciseSquats  = "squats"
	ExerciseLunges  = "lunges"
	ExercisePlank   = "plank"
)

var (
	faultHipsSagging = Fault{
		BodyPart:   "hips",
		Issue:      "Hips sagging",
		Severity:   SeverityModerate,
		Correction: "Engage your core and squeeze your glutes to keep your hips in line with your shoulders.",
	}
	faultHipsTooHigh = Fault{
		BodyPart:   "hips",
		Issue:      "Hips too high",
		Severity:   SeverityModerate,
		Correction: "Lower your hips until your body forms a straight line from shoulders to ankles.",
	}
	faultKneesCaving = Fault{
		BodyPart:   "knees",
		Issue:      "Knees caving inward",
		Severity:   SeverityModerate,
		Correction: "Push your knees outward so they track over your toes.",
	}
)

// phaseTargets repeats the same range for a joint in the given phases.
func phaseTargets(joint pose.Joint, lo, hi float64, phases ...Phase) []TargetAngle {
	targets := make([]TargetAngle, 0, len(phases))
	for _, p := range phases {
		targets = append(targets, TargetAngle{Joint: joint, Phase: p, Min: lo, Max: hi})
	}
	return targets
}

// cycleTargets covers a joint that extends at start/end and bends mid-rep.
func cycleTargets(joint pose.Joint, bentMin, bentMax float64) []TargetAngle {
	return []TargetAngle{
		{Joint: joint, Phase: PhaseStart, Min: 160, Max: 180},
		{Joint: joint, Phase: PhaseMiddle, Min: bentMin, Max: bentMax},
		{Joint: joint, Phase: PhaseEnd, Min: 160, Max: 180},
	}
}

func kneeCaveRule(cal Calibration) OffsetRatioRule {
	return OffsetRatioRule{
		Subject:   pose.LeftKnee,
		Reference: pose.LeftHip,
		Anchor:    pose.LeftAnkle,
		Ratio:     cal.KneeCaveRatio,
		Penalty:   cal.KneeCavePenalty,
		Fault:     faultKneesCaving,
	}
}

// DefaultProfiles returns the built-in exercise profiles with penalties
// taken from cal.
func DefaultProfiles(cal Calibration) []Profile {
	pushUps := Profile{
		Exercise: ExercisePushUps,
		Name:     "Push-ups",
		Rep: RepDetection{
			Method:       RepMethodAngleCycle,
			PrimaryJoint: pose.JointLeftElbow,
			StartAngle:   160,
			EndAngle:     90,
		},
		BodyLine: true,
	}
	pushUps.Targets = append(pushUps.Targets, cycleTargets(pose.JointLeftElbow, 80, 100)...)
	pushUps.Targets = append(pushUps.Targets, cycleTargets(pose.JointRightElbow, 80, 100)...)

	squats := Profile{
		Exercise: ExerciseSquats,
		Name:     "Squats",
		Rep: RepDetection{
			Method:       RepMethodAngleCycle,
			PrimaryJoint: pose.JointLeftKnee,
			StartAngle:   160,
			EndAngle:     90,
		},
		Faults: []FaultRule{
			kneeCaveRule(cal),
			AngleBelowRule{
				Joint:       pose.JointLeftHip,
				Phases:      []Phase{PhaseMiddle},
				Below:       45,
				SevereBelow: 30,
				Penalty:     10,
				Fault: Fault{
					BodyPart:   "torso",
					Issue:      "Excessive forward lean",
					Severity:   SeverityModerate,
					Correction: "Keep your chest up and your weight over the middle of your feet.",
				},
			},
		},
	}
	squats.Targets = append(squats.Targets, cycleTargets(pose.JointLeftKnee, 80, 100)...)
	squats.Targets = append(squats.Targets, cycleTargets(pose.JointRightKnee, 80, 100)...)
	squats.Targets = append(squats.Targets, phaseTargets(pose.JointLeftHip, 50, 100, PhaseMiddle)...)
	squats.Targets = append(squats.Targets, phaseTargets(pose.JointRightHip, 50, 100, PhaseMiddle)...)

	lunges := Profile{
		Exercise: ExerciseLunges,
		Name:     "Lunges",
		Rep: RepDetection{
			Method:       RepMethodAngleCycle,
			PrimaryJoint: pose.JointLeftKnee,
			StartAngle:   160,
			EndAngle:     100,
		},
		Faults: []FaultRule{
			kneeCaveRule(cal),
			AngleAboveRule{
				Joint:   pose.JointLeftKnee,
				Phases:  []Phase{PhaseMiddle},
				Above:   130,
				Penalty: 5,
				Fault: Fault{
					BodyPart:   "knees",
					Issue:      "Shallow lunge",
					Severity:   SeverityMinor,
					Correction: "Lower your back knee toward the floor until both knees bend to about 90 degrees.",
				},
			},
		},
	}
	lunges.Targets = append(lunges.Targets, cycleTargets(pose.JointLeftKnee, 80, 110)...)
	lunges.Targets = append(lunges.Targets, cycleTargets(pose.JointRightKnee, 80, 110)...)

	plank := Profile{
		Exercise: ExercisePlank,
		Name:     "Plank",
		Rep:      RepDetection{Method: RepMethodNone},
		BodyLine: true,
	}
	plank.Targets = append(plank.Targets, phaseTargets(pose.JointLeftElbow, 70, 110, PhaseStart, PhaseMiddle, PhaseEnd)...)
	plank.Targets = append(plank.Targets, phaseTargets(pose.JointRightElbow, 70, 110, PhaseStart, PhaseMiddle, PhaseEnd)...)
	plank.Targets = append(plank.Targets, phaseTargets(pose.JointLeftShoulder, 70, 110, PhaseStart, PhaseMiddle, PhaseEnd)...)
	plank.Targets = append(plank.Targets, phaseTargets(pose.JointRightShoulder, 70, 110, PhaseStart, PhaseMiddle, PhaseEnd)...)

	return []Profile{pushUps, squats, lunges, plank}
}
