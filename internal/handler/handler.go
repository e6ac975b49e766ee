package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/psychx/careercoach/internal/assessment"
	"github.com/psychx/careercoach/internal/coaching"
	"github.com/psychx/careercoach/internal/entitlement"
	appI18n "github.com/psychx/careercoach/internal/i18n"
	"github.com/psychx/careercoach/internal/model"
	"github.com/psychx/careercoach/internal/scheduling"
	"github.com/psychx/careercoach/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	engine *scheduling.Engine
	coach  *coaching.Service
	assess *assessment.Service
	config model.ServerConfig
}

// New creates a new Handler.
func New(s *store.Store, e *scheduling.Engine, c *coaching.Service, a *assessment.Service, cfg model.ServerConfig) (*Handler, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("handler: jwt secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = model.DefaultTokenTTL
	}
	return &Handler{store: s, engine: e, coach: c, assess: a, config: cfg}, nil
}

// Routes registers all HTTP routes under /api.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(appI18n.Middleware(h.config.Lang))
		r.Post("/login", h.handleLogin)
		r.Get("/faqs", h.handleListFAQs)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/logout", h.handleLogout)
			r.Get("/me", h.handleMe)
			r.Get("/roadmaps/{roadmapID}", h.handleGetRoadmap)
			r.Post("/faqs", h.handleAskQuestion)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleLearner))
				r.Post("/sessions/book", h.handleBookSession)
				r.Get("/sessions", h.handleMySessions)
				r.Post("/roadmaps", h.handleCreateRoadmap)
				r.Get("/roadmaps", h.handleListRoadmaps)
				r.Post("/roadmaps/{roadmapID}/tracker", h.handleInitTracker)
				r.Post("/roadmaps/{roadmapID}/tracker/activate", h.handleActivateTracker)
				r.Get("/trackers", h.handleListTrackers)
				r.Get("/tracker", h.handleGetTracker)
				r.Post("/tracker/tasks/{taskID}/toggle", h.handleToggleTask)
				r.Post("/tracker/submit", h.handleSubmitWeek)
				r.Post("/tracker/quiz", h.handleSubmitQuiz)
				r.Post("/tracker/phase/advance", h.handleAdvancePhase)
				r.Post("/assessments/questions", h.handleNextQuestions)
				r.Post("/assessments", h.handleSubmitAssessment)
				r.Get("/assessments", h.handleListAssessments)
				r.Get("/assessments/{assessmentID}", h.handleGetAssessment)
			})

			r.Route("/consultant", func(r chi.Router) {
				r.Use(requireRole(model.UserRoleConsultant))
				r.Get("/availability", h.handleGetAvailability)
				r.Put("/availability", h.handlePutAvailability)
				r.Get("/sessions", h.handleConsultantSessions)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireRole(model.UserRoleAdmin))
				r.Get("/users", h.handleAdminListUsers)
				r.Post("/users", h.handleAdminCreateUser)
				r.Patch("/users/{userID}/tier", h.handleAdminSetTier)
				r.Post("/users/{userID}/toggle", h.handleAdminToggleUser)
				r.Get("/sessions", h.handleAdminListSessions)
				r.Post("/sessions", h.handleAdminCreateSession)
				r.Patch("/sessions/{sessionID}", h.handleAdminUpdateSession)
				r.Delete("/sessions/{sessionID}", h.handleAdminDeleteSession)
				r.Get("/availability", h.handleAdminAvailability)
				r.Post("/seed", h.handleAdminSeed)
				r.Get("/faqs", h.handleAdminListFAQs)
				r.Post("/faqs", h.handleAdminCreateFAQ)
				r.Put("/faqs/{faqID}", h.handleAdminUpdateFAQ)
				r.Delete("/faqs/{faqID}", h.handleAdminDeleteFAQ)
			})
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeMessage writes an error body whose message is the localized msgID.
func writeMessage(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, errorResponse{
		Error:   http.StatusText(status),
		Message: appI18n.T(r.Context(), msgID),
	})
}

type errorMapping struct {
	target error
	status int
	msgID  string
}

var errorMappings = []errorMapping{
	{coaching.ErrInvalidRequest, http.StatusBadRequest, "InvalidRequest"},
	{assessment.ErrInvalidRequest, http.StatusBadRequest, "InvalidRequest"},
	{coaching.ErrQuizIncomplete, http.StatusBadRequest, "QuizIncomplete"},
	{coaching.ErrInvalidAnswer, http.StatusBadRequest, "InvalidAnswer"},
	{coaching.ErrEmptyRoadmap, http.StatusUnprocessableEntity, "EmptyRoadmap"},
	{coaching.ErrNoTracker, http.StatusNotFound, "NoTracker"},
	{coaching.ErrRoadmapNotFound, http.StatusNotFound, "RoadmapNotFound"},
	{coaching.ErrTaskNotFound, http.StatusNotFound, "TaskNotFound"},
	{assessment.ErrNotFound, http.StatusNotFound, "AssessmentNotFound"},
	{store.ErrNotFound, http.StatusNotFound, "NotFound"},
	{coaching.ErrBusy, http.StatusConflict, "TrackerBusy"},
	{coaching.ErrTrackerExists, http.StatusConflict, "TrackerExists"},
	{assessment.ErrBusy, http.StatusConflict, "RequestBusy"},
	{assessment.ErrAssessmentComplete, http.StatusConflict, "AssessmentComplete"},
	{coaching.ErrQuizPending, http.StatusConflict, "QuizPending"},
	{coaching.ErrNoQuizPending, http.StatusConflict, "NoQuizPending"},
	{store.ErrSlotTaken, http.StatusConflict, "SlotTaken"},
	{store.ErrDuplicate, http.StatusConflict, "EmailTaken"},
}

// writeError maps a domain error onto a status code and localized message.
// Unrecognized errors are logged and reported as 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var denied entitlement.Decision
	if errors.As(err, &denied) {
		writeJSON(w, http.StatusForbidden, errorResponse{
			Error:   http.StatusText(http.StatusForbidden),
			Message: appI18n.Td(r.Context(), denied.Reason, map[string]any{"Limit": denied.Limit}),
		})
		return
	}
	if errors.Is(err, coaching.ErrGenerationFailed) || errors.Is(err, assessment.ErrGenerationFailed) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:     http.StatusText(http.StatusServiceUnavailable),
			Message:   appI18n.T(r.Context(), "GenerationFailed"),
			Retryable: true,
		})
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			writeMessage(w, r, m.status, m.msgID)
			return
		}
	}
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeMessage(w, r, http.StatusInternalServerError, "InternalError")
}
