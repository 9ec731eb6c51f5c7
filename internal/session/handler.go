package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/2beens/formcheck/internal/analysis"
	"github.com/2beens/formcheck/internal/middleware"
	"github.com/2beens/formcheck/internal/telemetry/metrics"
	"github.com/2beens/formcheck/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type StartRequest struct {
	Exercise string `json:"exercise"`
}

type FrameRequest struct {
	Keypoints []analysis.Keypoint `json:"keypoints"`
	Phase     string              `json:"phase"`
	Timestamp *time.Time          `json:"timestamp,omitempty"`
}

type FeedbackResponse struct {
	SessionID string   `json:"sessionId"`
	RepCount  int      `json:"repCount"`
	Feedback  []string `json:"feedback"`
}

type Handler struct {
	tracker *Tracker
}

func NewHandler(tracker *Tracker) *Handler {
	return &Handler{
		tracker: tracker,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	metricsManager *metrics.Manager,
	allowedPerMin int,
) {
	sessionsRouter := mainRouter.PathPrefix("/sessions").Subrouter()
	sessionsRouter.HandleFunc("", handler.HandleStart).Methods("POST", "OPTIONS").Name("session-start")
	sessionsRouter.HandleFunc("/{id}/frames", handler.HandlePushFrame).Methods("POST", "OPTIONS").Name("session-push-frame")
	sessionsRouter.HandleFunc("/{id}/feedback", handler.HandleFeedback).Methods("GET", "OPTIONS").Name("session-feedback")
	sessionsRouter.HandleFunc("/{id}", handler.HandleGet).Methods("GET", "OPTIONS").Name("session-get")
	sessionsRouter.HandleFunc("/{id}", handler.HandleEnd).Methods("DELETE", "OPTIONS").Name("session-end")

	sessionsRouter.Use(middleware.RateLimit(rateLimiter, "sessions", allowedPerMin, metricsManager))
}

func (handler *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debugf("start session, unmarshal request: %s", err)
		http.Error(w, "error, malformed request body", http.StatusBadRequest)
		return
	}
	if req.Exercise == "" {
		http.Error(w, "error, exercise is required", http.StatusBadRequest)
		return
	}

	s, err := handler.tracker.Start(r.Context(), req.Exercise)
	if err != nil {
		writeTrackerError(w, "start session", err)
		return
	}

	writeJSON(w, s, http.StatusCreated)
}

func (handler *Handler) HandlePushFrame(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req FrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debugf("push frame to %s, unmarshal request: %s", id, err)
		http.Error(w, "error, malformed request body", http.StatusBadRequest)
		return
	}

	phase, frame, err := analysis.ParseFrame(req.Keypoints, req.Phase, req.Timestamp, time.Now())
	if err != nil {
		http.Error(w, analysis.BadRequestMessage(err), http.StatusBadRequest)
		return
	}

	result, err := handler.tracker.Push(r.Context(), id, frame, phase)
	if err != nil {
		writeTrackerError(w, "push frame", err)
		return
	}

	writeJSON(w, result, http.StatusOK)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := handler.tracker.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeTrackerError(w, "get session", err)
		return
	}
	writeJSON(w, s, http.StatusOK)
}

func (handler *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s, err := handler.tracker.Get(r.Context(), id)
	if err != nil {
		writeTrackerError(w, "session feedback", err)
		return
	}

	feedback, err := handler.tracker.Feedback(r.Context(), id)
	if err != nil {
		writeTrackerError(w, "session feedback", err)
		return
	}

	writeJSON(w, FeedbackResponse{
		SessionID: id,
		RepCount:  len(s.Repetitions),
		Feedback:  feedback,
	}, http.StatusOK)
}

func (handler *Handler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	summary, err := handler.tracker.End(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeTrackerError(w, "end session", err)
		return
	}
	writeJSON(w, summary, http.StatusOK)
}

func writeTrackerError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrInvalidSessionID):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, ErrUnknownExercise):
		http.Error(w, "error, unknown exercise", http.StatusBadRequest)
	default:
		log.Errorf("%s: %s", action, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}, status int) {
	respBytes, err := json.Marshal(v)
	if err != nil {
		log.Errorf("failed to marshal response: %s", err)
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respBytes, status)
}
