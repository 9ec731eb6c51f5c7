package form

const (
	DefaultRepThreshold = 5.0

	repWindow     = 10
	minRepSamples = 3
)

type repState int

const (
	seekingDown repState = iota
	foundDown
	foundUp
)

// DetectRepCompletion reports whether the last samples of the primary joint
// angle history contain a full down-and-up cycle. The signal must first sit
// above StartAngle-threshold, then drop below EndAngle+threshold and finally
// rise above StartAngle-threshold again. Only the last 10 samples are read;
// the history itself stays owned by the caller.
func DetectRepCompletion(detection RepDetection, history []float64, threshold float64) bool {
	if !detection.Enabled() || len(history) < minRepSamples {
		return false
	}

	window := history
	if len(window) > repWindow {
		window = window[len(window)-repWindow:]
	}

	upper := detection.StartAngle - threshold
	lower := detection.EndAngle + threshold

	state := seekingDown
	armed := false
	for _, angle := range window {
		switch state {
		case seekingDown:
			if angle > upper {
				armed = true
			} else if armed && angle < lower {
				state = foundDown
			}
		case foundDown:
			if angle > upper {
				state = foundUp
			}
		}
		if state == foundUp {
			return true
		}
	}

	return false
}
