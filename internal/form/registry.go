package form

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

var exerciseAliases = map[string]string{
	"pushup":   ExercisePushUps,
	"pushups":  ExercisePushUps,
	"push-up":  ExercisePushUps,
	"press-up": ExercisePushUps,
	"squat":    ExerciseSquats,
	"lunge":    ExerciseLunges,
	"planks":   ExercisePlank,
}

// NormalizeExerciseID lower-cases and trims the id, turns spaces and
// underscores into hyphens and folds known aliases.
func NormalizeExerciseID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	id = strings.NewReplacer(" ", "-", "_", "-").Replace(id)
	if canonical, ok := exerciseAliases[id]; ok {
		return canonical
	}
	return id
}

// Registry is an immutable set of exercise profiles. It is never modified
// after NewRegistry returns, so concurrent reads need no locking.
type Registry struct {
	profiles map[string]*Profile
	order    []string
}

func NewRegistry(profiles ...Profile) (*Registry, error) {
	r := &Registry{
		profiles: make(map[string]*Profile, len(profiles)),
	}

	var err error
	for _, p := range profiles {
		if vErr := p.validate(); vErr != nil {
			err = multierr.Append(err, vErr)
			continue
		}
		id := NormalizeExerciseID(p.Exercise)
		if _, exists := r.profiles[id]; exists {
			err = multierr.Append(err, fmt.Errorf("duplicate profile for exercise %s", id))
			continue
		}
		c := p.clone()
		c.Exercise = id
		r.profiles[id] = &c
		r.order = append(r.order, id)
	}
	if err != nil {
		return nil, err
	}

	return r, nil
}

func MustNewRegistry(profiles ...Profile) *Registry {
	r, err := NewRegistry(profiles...)
	if err != nil {
		panic(fmt.Sprintf("form registry: %s", err))
	}
	return r
}

// DefaultRegistry holds the built-in profiles with the given calibration.
func DefaultRegistry(cal Calibration) *Registry {
	return MustNewRegistry(DefaultProfiles(cal)...)
}

// Profile returns a copy of the exercise profile. Unknown exercises
// report false.
func (r *Registry) Profile(exerciseID string) (Profile, bool) {
	p, ok := r.lookup(exerciseID)
	if !ok {
		return Profile{}, false
	}
	return p.clone(), true
}

func (r *Registry) lookup(exerciseID string) (*Profile, bool) {
	p, ok := r.profiles[NormalizeExerciseID(exerciseID)]
	return p, ok
}

// Exercises lists the registered exercise ids in registration order.
func (r *Registry) Exercises() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	return len(r.order)
}
