package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/formcheck/internal/analysis"
	"github.com/2beens/formcheck/internal/form"
	"github.com/2beens/formcheck/internal/pose"
	"github.com/2beens/formcheck/internal/telemetry/metrics"
	"github.com/2beens/formcheck/internal/telemetry/tracing"

	"github.com/cespare/xxhash/v2"
	"github.com/coocood/freecache"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	megabyte = 1024 * 1024

	// rolling primary-joint history kept for repetition detection
	maxAngleHistory = 30
	// frames of the repetition in progress
	maxRepFrames = 90

	lockStripes = 64
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrUnknownExercise  = errors.New("unknown exercise")
	ErrSessionTooLarge  = errors.New("session state too large")
	ErrInvalidSessionID = errors.New("invalid session id")
)

// Session is the public view of a tracked workout set.
type Session struct {
	ID          string                    `json:"id"`
	Exercise    string                    `json:"exercise"`
	StartedAt   time.Time                 `json:"startedAt"`
	UpdatedAt   time.Time                 `json:"updatedAt"`
	FrameCount  int                       `json:"frameCount"`
	Repetitions []form.RepetitionAnalysis `json:"repetitions"`
}

// state is what gets cached: the session plus the buffers of the repetition
// in progress.
type state struct {
	Session
	AngleHistory []float64              `json:"angleHistory"`
	Frames       []form.FrameEvaluation `json:"frames"`
}

type PushResult struct {
	Evaluation   form.Evaluation          `json:"evaluation"`
	RepCompleted bool                     `json:"repCompleted"`
	Repetition   *form.RepetitionAnalysis `json:"repetition,omitempty"`
	RepCount     int                      `json:"repCount"`
}

type Summary struct {
	Session
	Feedback []string `json:"feedback"`
}

type TrackerParams struct {
	Evaluator      *form.Evaluator
	CacheSizeMB    int
	TTL            time.Duration
	RepThreshold   float64
	Tempo          form.TempoThresholds
	MetricsManager *metrics.Manager
}

// Tracker keeps per-session state in an in-memory cache. Sessions expire
// after TTL without frames.
type Tracker struct {
	// serialize read-modify-write of cached session states, striped by id
	locks [lockStripes]sync.Mutex

	cache          *freecache.Cache
	expireSeconds  int
	evaluator      *form.Evaluator
	repThreshold   float64
	tempo          form.TempoThresholds
	metricsManager *metrics.Manager
	now            func() time.Time
}

func NewTracker(params TrackerParams) *Tracker {
	return newTracker(params, freecache.NewCache(params.CacheSizeMB*megabyte))
}

func newTracker(params TrackerParams, cache *freecache.Cache) *Tracker {
	expireSeconds := int(params.TTL.Seconds())
	if expireSeconds < 1 {
		expireSeconds = 1
	}
	return &Tracker{
		cache:          cache,
		expireSeconds:  expireSeconds,
		evaluator:      params.Evaluator,
		repThreshold:   params.RepThreshold,
		tempo:          params.Tempo,
		metricsManager: params.MetricsManager,
		now:            time.Now,
	}
}

func (t *Tracker) Start(ctx context.Context, exercise string) (_ *Session, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "session.start")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	profile, ok := t.evaluator.Registry().Profile(exercise)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExercise, exercise)
	}

	now := t.now()
	s := &state{
		Session: Session{
			ID:          uuid.NewString(),
			Exercise:    profile.Exercise,
			StartedAt:   now,
			UpdatedAt:   now,
			Repetitions: []form.RepetitionAnalysis{},
		},
		AngleHistory: []float64{},
		Frames:       []form.FrameEvaluation{},
	}
	span.SetAttributes(attribute.String("session.id", s.ID), attribute.String("exercise", s.Exercise))

	if err := t.save(s); err != nil {
		return nil, err
	}
	t.updateActiveSessions()
	log.Debugf("session %s started: %s", s.ID, s.Exercise)

	started := s.Session
	return &started, nil
}

// Push evaluates the frame within the session and feeds the primary joint
// angle into repetition detection. When a repetition completes it is
// analyzed and the rolling buffers start over.
func (t *Tracker) Push(ctx context.Context, id string, frame pose.Frame, phase form.Phase) (_ *PushResult, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "session.push")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()
	span.SetAttributes(attribute.String("session.id", id))

	lock := t.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	s, err := t.load(id)
	if err != nil {
		return nil, err
	}

	profile, ok := t.evaluator.Registry().Profile(s.Exercise)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExercise, s.Exercise)
	}

	evaluation := t.evaluator.Evaluate(s.Exercise, frame, phase)
	analysis.RecordEvaluation(t.metricsManager, t.evaluator.Registry(), s.Exercise, evaluation)

	frameEval := form.FrameEvaluation{
		Timestamp:  frame.Timestamp,
		Evaluation: evaluation,
	}
	if frameEval.Timestamp.IsZero() {
		frameEval.Timestamp = t.now()
	}
	frameEval.PrimaryAngle, frameEval.HasPrimary = primaryAngle(profile, evaluation.Angles)

	s.FrameCount++
	s.UpdatedAt = t.now()
	s.Frames = appendBounded(s.Frames, frameEval, maxRepFrames)

	result := &PushResult{
		Evaluation: evaluation,
	}

	if frameEval.HasPrimary {
		s.AngleHistory = appendBounded(s.AngleHistory, frameEval.PrimaryAngle, maxAngleHistory)
		if t.evaluator.RepCompleted(s.Exercise, s.AngleHistory, t.repThreshold) {
			repFrames := form.RepetitionFrames(profile.Rep, s.Frames, t.repThreshold)
			rep := form.BuildRepetition(len(s.Repetitions)+1, profile.Rep, repFrames, t.tempo)
			s.Repetitions = append(s.Repetitions, rep)
			s.AngleHistory = []float64{}
			s.Frames = []form.FrameEvaluation{}

			result.RepCompleted = true
			result.Repetition = &rep
			if t.metricsManager != nil {
				t.metricsManager.CounterRepetitions.WithLabelValues(s.Exercise).Inc()
			}
			log.Debugf("session %s: repetition %d completed", s.ID, rep.RepNumber)
		}
	}
	result.RepCount = len(s.Repetitions)

	if err := t.save(s); err != nil {
		return nil, err
	}
	return result, nil
}

func (t *Tracker) Get(ctx context.Context, id string) (_ *Session, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "session.get")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	lock := t.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	s, err := t.load(id)
	if err != nil {
		return nil, err
	}
	return &s.Session, nil
}

func (t *Tracker) Feedback(ctx context.Context, id string) (_ []string, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "session.feedback")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()
	span.SetAttributes(attribute.String("session.id", id))

	lock := t.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	s, err := t.load(id)
	if err != nil {
		return nil, err
	}
	return form.Summarize(s.Repetitions), nil
}

// End removes the session and returns its repetitions with the final
// feedback. A repetition in progress is discarded.
func (t *Tracker) End(ctx context.Context, id string) (_ *Summary, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "session.end")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	lock := t.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	s, err := t.load(id)
	if err != nil {
		return nil, err
	}
	t.cache.Del([]byte(cacheKey(id)))
	t.updateActiveSessions()
	log.Debugf("session %s ended after %d repetitions", id, len(s.Repetitions))

	return &Summary{
		Session:  s.Session,
		Feedback: form.Summarize(s.Repetitions),
	}, nil
}

func (t *Tracker) load(id string) (*state, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSessionID, id)
	}

	stateBytes, err := t.cache.Get([]byte(cacheKey(id)))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("get session %s from cache: %w", id, err)
	}

	s := &state{}
	if err := json.Unmarshal(stateBytes, s); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return s, nil
}

func (t *Tracker) save(s *state) error {
	stateBytes, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", s.ID, err)
	}
	if err := t.cache.Set([]byte(cacheKey(s.ID)), stateBytes, t.expireSeconds); err != nil {
		if errors.Is(err, freecache.ErrLargeEntry) {
			return fmt.Errorf("%w: %s, %d bytes", ErrSessionTooLarge, s.ID, len(stateBytes))
		}
		return fmt.Errorf("set session %s: %w", s.ID, err)
	}
	return nil
}

// updateActiveSessions reports the cached entry count. Expired sessions are
// counted until the cache evicts them.
func (t *Tracker) updateActiveSessions() {
	if t.metricsManager == nil {
		return
	}
	t.metricsManager.GaugeActiveSessions.Set(float64(t.cache.EntryCount()))
}

func (t *Tracker) sessionLock(id string) *sync.Mutex {
	return &t.locks[xxhash.Sum64String(id)%lockStripes]
}

func cacheKey(id string) string {
	return "session::" + id
}

// primaryAngle reads the profile's primary joint, falling back to the same
// joint on the other side of the body when it was not measured.
func primaryAngle(profile form.Profile, angles pose.JointAngles) (float64, bool) {
	joint, ok := profile.PrimaryJoint()
	if !ok {
		return 0, false
	}
	if angle, ok := angles.Get(joint); ok {
		return angle, true
	}
	return angles.Get(joint.Mirror())
}

func appendBounded[T any](buf []T, v T, limit int) []T {
	buf = append(buf, v)
	if len(buf) > limit {
		buf = append(buf[:0:0], buf[len(buf)-limit:]...)
	}
	return buf
}
