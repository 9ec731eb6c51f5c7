package form_test

import (
	"testing"

	"github.com/2beens/formcheck/internal/form"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	hipsSagging = form.Issue{
		BodyPart:   "hips",
		Issue:      "Hips sagging",
		Severity:   form.SeverityModerate,
		Correction: "Engage your core and squeeze your glutes to keep your hips in line with your shoulders.",
	}
	kneesCaving = form.Issue{
		BodyPart:   "knees",
		Issue:      "Knees caving inward",
		Severity:   form.SeverityModerate,
		Correction: "Push your knees outward so they track over your toes.",
	}
)

func rep(n int, score *int, issues ...form.Issue) form.RepetitionAnalysis {
	if issues == nil {
		issues = []form.Issue{}
	}
	return form.RepetitionAnalysis{RepNumber: n, FormScore: score, Issues: issues}
}

func TestSummarize_Empty(t *testing.T) {
	feedback := form.Summarize(nil)
	assert.NotNil(t, feedback)
	assert.Empty(t, feedback)
}

func TestSummarize_IssueThreshold(t *testing.T) {
	half := []form.RepetitionAnalysis{
		rep(1, intPtr(60), hipsSagging),
		rep(2, intPtr(60)),
		rep(3, intPtr(60), hipsSagging),
		rep(4, intPtr(60)),
	}
	feedback := form.Summarize(half)
	require.Len(t, feedback, 1)
	assert.Equal(t, "Hips sagging detected in 50% of reps. "+hipsSagging.Correction, feedback[0])

	quarter := []form.RepetitionAnalysis{
		rep(1, intPtr(60), hipsSagging),
		rep(2, intPtr(60)),
		rep(3, intPtr(60)),
		rep(4, intPtr(60)),
	}
	assert.Empty(t, form.Summarize(quarter))
}

func TestSummarize_FivePushUps(t *testing.T) {
	analyses := []form.RepetitionAnalysis{
		rep(1, intPtr(70), hipsSagging),
		rep(2, intPtr(80)),
		rep(3, intPtr(65), hipsSagging),
		rep(4, intPtr(75), hipsSagging),
		rep(5, intPtr(70)),
	}

	feedback := form.Summarize(analyses)
	assert.Equal(t, []string{
		"Hips sagging detected in 60% of reps. " + hipsSagging.Correction,
		"Good form overall. Focus on the tips above for improvement.",
	}, feedback)
}

func TestSummarize_OverallMessages(t *testing.T) {
	assert.Equal(t,
		[]string{"Excellent form! Keep up the great work."},
		form.Summarize([]form.RepetitionAnalysis{rep(1, intPtr(90)), rep(2, intPtr(85))}),
	)
	assert.Equal(t,
		[]string{"Good form overall. Focus on the tips above for improvement."},
		form.Summarize([]form.RepetitionAnalysis{rep(1, intPtr(70)), rep(2, intPtr(84))}),
	)
	assert.Empty(t, form.Summarize([]form.RepetitionAnalysis{rep(1, intPtr(69)), rep(2, intPtr(60))}))
	// reps without a score do not count toward the mean
	assert.Equal(t,
		[]string{"Excellent form! Keep up the great work."},
		form.Summarize([]form.RepetitionAnalysis{rep(1, intPtr(95)), rep(2, nil)}),
	)
	assert.Empty(t, form.Summarize([]form.RepetitionAnalysis{rep(1, nil)}))
}

func TestSummarize_TopThreeByFrequency(t *testing.T) {
	elbows := form.Issue{BodyPart: "elbows", Issue: "Elbows flaring", Correction: "Tuck your elbows."}
	head := form.Issue{BodyPart: "head", Issue: "Head dropping", Correction: "Keep a neutral neck."}

	analyses := []form.RepetitionAnalysis{
		rep(1, nil, head, elbows, kneesCaving, hipsSagging),
		rep(2, nil, hipsSagging, kneesCaving, elbows),
		rep(3, nil, hipsSagging, kneesCaving, elbows),
		rep(4, nil, hipsSagging, head),
	}

	feedback := form.Summarize(analyses)
	require.Len(t, feedback, 3)
	assert.Equal(t, "Hips sagging detected in 100% of reps. "+hipsSagging.Correction, feedback[0])
	assert.Equal(t, "Elbows flaring detected in 75% of reps. Tuck your elbows.", feedback[1])
	assert.Equal(t, "Knees caving inward detected in 75% of reps. "+kneesCaving.Correction, feedback[2])
}

func TestSummarize_RepeatedIssueCountsOncePerRep(t *testing.T) {
	analyses := []form.RepetitionAnalysis{
		rep(1, nil, hipsSagging, hipsSagging, hipsSagging),
		rep(2, nil),
		rep(3, nil),
	}
	assert.Empty(t, form.Summarize(analyses))
}
