package form

import (
	"fmt"

	"go.uber.org/multierr"
)

// Calibration holds the penalty constants of the evaluator. Values come from
// field experience rather than measurement and can be overridden in config.
type Calibration struct {
	// DeviationFactor scales the degrees outside a target range into points.
	DeviationFactor float64 `toml:"deviation_factor"`
	// MaxDeviationPenalty caps the penalty of a single out-of-range target.
	MaxDeviationPenalty float64 `toml:"max_deviation_penalty"`

	SagThreshold       float64 `toml:"sag_threshold"`
	SevereSagThreshold float64 `toml:"severe_sag_threshold"`
	SagPenalty         float64 `toml:"sag_penalty"`
	PikeThreshold      float64 `toml:"pike_threshold"`
	PikePenalty        float64 `toml:"pike_penalty"`

	KneeCaveRatio   float64 `toml:"knee_cave_ratio"`
	KneeCavePenalty float64 `toml:"knee_cave_penalty"`
}

func DefaultCalibration() Calibration {
	return Calibration{
		DeviationFactor:     0.5,
		MaxDeviationPenalty: 20,
		SagThreshold:        150,
		SevereSagThreshold:  130,
		SagPenalty:          15,
		PikeThreshold:       190,
		PikePenalty:         10,
		KneeCaveRatio:       1.2,
		KneeCavePenalty:     15,
	}
}

func (c Calibration) Validate() error {
	var err error
	nonNegative := []struct {
		name  string
		value float64
	}{
		{"deviation_factor", c.DeviationFactor},
		{"max_deviation_penalty", c.MaxDeviationPenalty},
		{"sag_penalty", c.SagPenalty},
		{"pike_penalty", c.PikePenalty},
		{"knee_cave_penalty", c.KneeCavePenalty},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			err = multierr.Append(err, fmt.Errorf("calibration %s must not be negative, got %.2f", f.name, f.value))
		}
	}
	if c.SevereSagThreshold > c.SagThreshold {
		err = multierr.Append(err, fmt.Errorf("calibration severe_sag_threshold (%.1f) above sag_threshold (%.1f)", c.SevereSagThreshold, c.SagThreshold))
	}
	if c.PikeThreshold <= c.SagThreshold {
		err = multierr.Append(err, fmt.Errorf("calibration pike_threshold (%.1f) must be above sag_threshold (%.1f)", c.PikeThreshold, c.SagThreshold))
	}
	if c.KneeCaveRatio <= 0 {
		err = multierr.Append(err, fmt.Errorf("calibration knee_cave_ratio must be positive, got %.2f", c.KneeCaveRatio))
	}
	return err
}
