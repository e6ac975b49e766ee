package handler

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/psychx/careercoach/internal/entitlement"
	appI18n "github.com/psychx/careercoach/internal/i18n"
	"github.com/psychx/careercoach/internal/model"
	"github.com/psychx/careercoach/internal/scheduling"
	"github.com/psychx/careercoach/internal/store"
)

type bookRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type bookResponse struct {
	Success        bool           `json:"success"`
	Message        string         `json:"message"`
	ConsultantName string         `json:"consultant_name,omitempty"`
	Session        *model.Session `json:"session,omitempty"`
}

func bookingStatus(o scheduling.Outcome) int {
	switch o {
	case scheduling.OutcomeBooked:
		return http.StatusCreated
	case scheduling.OutcomeNoAvailability:
		return http.StatusConflict
	case scheduling.OutcomeNotLoggedIn:
		return http.StatusUnauthorized
	}
	return http.StatusBadRequest
}

func (h *Handler) handleBookSession(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	user := model.UserFromContext(r.Context())
	if d := entitlement.Check(user, entitlement.FeatureBooking, 0); !d.Allowed {
		writeError(w, r, d)
		return
	}

	res, err := h.engine.BookSession(r.Context(), user, req.Date, req.Time)
	if err != nil {
		writeError(w, r, fmt.Errorf("book session: %w", err))
		return
	}
	msg := appI18n.TOr(r.Context(), string(res.Outcome), res.Message)
	if res.Success {
		msg = appI18n.Td(r.Context(), "BookingConfirmedWith", map[string]any{"Consultant": res.ConsultantName})
	}
	writeJSON(w, bookingStatus(res.Outcome), bookResponse{
		Success:        res.Success,
		Message:        msg,
		ConsultantName: res.ConsultantName,
		Session:        res.Session,
	})
}

func (h *Handler) handleMySessions(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sessions, err := h.store.ListSessionsByStudent(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, fmt.Errorf("list sessions: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sessions))
}

func (h *Handler) handleConsultantSessions(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sessions, err := h.store.ListSessionsByConsultant(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, fmt.Errorf("list sessions: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sessions))
}

// defaultAvailability is suggested to consultants who have not saved one.
func defaultAvailability(consultantID string) model.Availability {
	return model.Availability{
		ConsultantID: consultantID,
		Days:         []string{"Monday", "Wednesday", "Friday"},
		StartTime:    "09:00",
		EndTime:      "17:00",
	}
}

type availabilityResponse struct {
	Availability model.Availability `json:"availability"`
	// Suggested is true when nothing has been saved yet.
	Suggested bool `json:"suggested"`
}

func (h *Handler) handleGetAvailability(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	a, err := h.store.GetAvailability(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, fmt.Errorf("get availability: %w", err))
		return
	}
	if a == nil {
		writeJSON(w, http.StatusOK, availabilityResponse{Availability: defaultAvailability(user.ID), Suggested: true})
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{Availability: *a})
}

type availabilityRequest struct {
	Days      []string `json:"days"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
}

func (h *Handler) handlePutAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "AvailabilityInvalid")
		return
	}
	user := model.UserFromContext(r.Context())

	var days []string
	for _, d := range req.Days {
		if !slices.Contains(days, d) {
			days = append(days, d)
		}
	}
	a := model.Availability{
		ConsultantID: user.ID,
		Days:         days,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	}
	if err := scheduling.ValidateAvailability(a); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "AvailabilityInvalid")
		return
	}
	if err := h.store.UpsertAvailability(r.Context(), a); err != nil {
		writeError(w, r, fmt.Errorf("save availability: %w", err))
		return
	}
	saved, err := h.store.GetAvailability(r.Context(), user.ID)
	if err == nil && saved == nil {
		err = store.ErrNotFound
	}
	if err != nil {
		writeError(w, r, fmt.Errorf("reload availability: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{Availability: *saved})
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
