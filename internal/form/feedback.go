package form

import (
	"fmt"
	"math"
	"sort"
)

const (
	maxFeedbackIssues     = 3
	issueReportPercentage = 50.0

	excellentScore = 85.0
	goodScore      = 70.0

	excellentFormMessage = "Excellent form! Keep up the great work."
	goodFormMessage      = "Good form overall. Focus on the tips above for improvement."
)

type issueKey struct {
	bodyPart string
	issue    string
}

// Summarize turns a set of repetition analyses into coaching messages:
// the most frequent issues that showed up in at least half of the reps,
// followed by an overall message when the mean score is good enough.
func Summarize(analyses []RepetitionAnalysis) []string {
	feedback := []string{}
	if len(analyses) == 0 {
		return feedback
	}

	counts := make(map[issueKey]int)
	corrections := make(map[issueKey]string)
	var order []issueKey
	for _, a := range analyses {
		seenInRep := make(map[issueKey]bool)
		for _, issue := range a.Issues {
			key := issueKey{bodyPart: issue.BodyPart, issue: issue.Issue}
			if seenInRep[key] {
				continue
			}
			seenInRep[key] = true
			if _, ok := counts[key]; !ok {
				order = append(order, key)
				corrections[key] = issue.Correction
			}
			counts[key]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > maxFeedbackIssues {
		order = order[:maxFeedbackIssues]
	}

	total := float64(len(analyses))
	for _, key := range order {
		percentage := float64(counts[key]) / total * 100
		if percentage < issueReportPercentage {
			continue
		}
		feedback = append(feedback, fmt.Sprintf(
			"%s detected in %d%% of reps. %s",
			key.issue, int(math.Round(percentage)), corrections[key],
		))
	}

	if mean, ok := meanScore(analyses); ok {
		switch {
		case mean >= excellentScore:
			feedback = append(feedback, excellentFormMessage)
		case mean >= goodScore:
			feedback = append(feedback, goodFormMessage)
		}
	}

	return feedback
}

func meanScore(analyses []RepetitionAnalysis) (float64, bool) {
	sum, n := 0, 0
	for _, a := range analyses {
		if a.FormScore == nil {
			continue
		}
		sum += *a.FormScore
		n++
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}
