package analysis

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/2beens/formcheck/internal/form"
	"github.com/2beens/formcheck/internal/middleware"
	"github.com/2beens/formcheck/internal/telemetry/metrics"
	"github.com/2beens/formcheck/internal/telemetry/tracing"
	"github.com/2beens/formcheck/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const unknownExerciseLabel = "unknown"

type ProfileRule struct {
	Kind string         `json:"kind"`
	Rule form.FaultRule `json:"rule"`
}

type ProfileResponse struct {
	form.Profile
	Rules []ProfileRule `json:"rules"`
}

type ProfilesResponse struct {
	Profiles []ProfileResponse `json:"profiles"`
}

type Handler struct {
	evaluator      *form.Evaluator
	metricsManager *metrics.Manager
	now            func() time.Time
}

func NewHandler(evaluator *form.Evaluator, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		evaluator:      evaluator,
		metricsManager: metricsManager,
		now:            time.Now,
	}
}

// SetupRoutes registers the stateless form endpoints under /form, rate
// limited per client.
func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	metricsManager *metrics.Manager,
	allowedPerMin int,
) {
	formRouter := mainRouter.PathPrefix("/form").Subrouter()
	formRouter.HandleFunc("/analyze", handler.HandleAnalyze).Methods("POST", "OPTIONS").Name("form-analyze")
	formRouter.HandleFunc("/feedback", handler.HandleFeedback).Methods("POST", "OPTIONS").Name("form-feedback")
	formRouter.HandleFunc("/profiles", handler.HandleProfiles).Methods("GET", "OPTIONS").Name("form-profiles")
	formRouter.HandleFunc("/profiles/{exercise}", handler.HandleProfile).Methods("GET", "OPTIONS").Name("form-profile")

	formRouter.Use(middleware.RateLimit(rateLimiter, "form", allowedPerMin, metricsManager))
}

func (handler *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.form.analyze")
	var err error
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	input, err := ParseAnalyzeRequest(r.Body, handler.now())
	if err != nil {
		log.Debugf("analyze request rejected: %s", err)
		http.Error(w, BadRequestMessage(err), http.StatusBadRequest)
		return
	}
	span.SetAttributes(
		attribute.String("exercise", input.Exercise),
		attribute.String("phase", string(input.Phase)),
	)

	evaluation := handler.evaluator.Evaluate(input.Exercise, input.Frame, input.Phase)
	RecordEvaluation(handler.metricsManager, handler.evaluator.Registry(), input.Exercise, evaluation)

	respBytes, err := json.Marshal(evaluation)
	if err != nil {
		log.Errorf("failed to marshal evaluation: %s", err)
		http.Error(w, "failed to marshal evaluation", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respBytes)
}

func (handler *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.form.feedback")
	var err error
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	analyses, err := ParseFeedbackRequest(r.Body)
	if err != nil {
		log.Debugf("feedback request rejected: %s", err)
		http.Error(w, BadRequestMessage(err), http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int("analyses", len(analyses)))

	respBytes, err := json.Marshal(FeedbackResponse{
		Feedback: form.Summarize(analyses),
	})
	if err != nil {
		log.Errorf("failed to marshal feedback: %s", err)
		http.Error(w, "failed to marshal feedback", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respBytes)
}

func (handler *Handler) HandleProfiles(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.form.profiles")
	defer span.End()

	registry := handler.evaluator.Registry()
	resp := ProfilesResponse{
		Profiles: make([]ProfileResponse, 0, registry.Len()),
	}
	for _, exercise := range registry.Exercises() {
		profile, ok := registry.Profile(exercise)
		if !ok {
			continue
		}
		resp.Profiles = append(resp.Profiles, newProfileResponse(profile))
	}

	respBytes, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("failed to marshal profiles: %s", err)
		http.Error(w, "failed to marshal profiles", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respBytes)
}

func (handler *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.form.profile")
	defer span.End()

	exercise := mux.Vars(r)["exercise"]
	if exercise == "" {
		http.Error(w, "error, exercise empty", http.StatusBadRequest)
		return
	}

	profile, ok := handler.evaluator.Registry().Profile(exercise)
	if !ok {
		http.Error(w, "exercise not found", http.StatusNotFound)
		return
	}

	respBytes, err := json.Marshal(newProfileResponse(profile))
	if err != nil {
		log.Errorf("failed to marshal profile [%s]: %s", exercise, err)
		http.Error(w, "failed to marshal profile", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respBytes)
}

func newProfileResponse(profile form.Profile) ProfileResponse {
	rules := make([]ProfileRule, 0, len(profile.Faults))
	for _, rule := range profile.Faults {
		rules = append(rules, ProfileRule{
			Kind: rule.Kind(),
			Rule: rule,
		})
	}
	return ProfileResponse{
		Profile: profile,
		Rules:   rules,
	}
}

// RecordEvaluation updates the evaluation, score and issue series for one
// evaluated frame. Exercises without a profile share a single label value.
func RecordEvaluation(metricsManager *metrics.Manager, registry *form.Registry, exercise string, evaluation form.Evaluation) {
	if metricsManager == nil {
		return
	}

	label := unknownExerciseLabel
	if profile, ok := registry.Profile(exercise); ok {
		label = profile.Exercise
	}

	metricsManager.CounterEvaluations.WithLabelValues(label).Inc()
	metricsManager.HistogramFormScore.WithLabelValues(label).Observe(float64(evaluation.Score))
	for _, issue := range evaluation.Issues {
		metricsManager.CounterFormIssues.WithLabelValues(label, issue.BodyPart, string(issue.Severity)).Inc()
	}
}

// BadRequestMessage is the client-facing text for a rejected request.
func BadRequestMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingExercise):
		return "error, exercise is required"
	case errors.Is(err, ErrMissingKeypoints):
		return "error, keypoints are required"
	case errors.Is(err, ErrInvalidKeypoint):
		return "error, " + err.Error()
	case errors.Is(err, ErrInvalidPhase):
		return "error, phase must be one of start, middle, end"
	case errors.Is(err, ErrMissingAnalyses):
		return "error, analyses must be a list"
	default:
		return "error, malformed request body"
	}
}
