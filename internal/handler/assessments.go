package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/psychx/careercoach/internal/model"
)

type questionsRequest struct {
	Categories      []model.CareerCategory `json:"categories"`
	PreviousAnswers []model.Answer         `json:"previous_answers"`
}

func (h *Handler) handleNextQuestions(w http.ResponseWriter, r *http.Request) {
	var req questionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	batch, err := h.assess.NextQuestions(r.Context(), model.UserFromContext(r.Context()), req.Categories, req.PreviousAnswers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (h *Handler) handleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	var p model.AssessmentProfile
	if err := decodeJSON(w, r, &p); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	a, err := h.assess.Submit(r.Context(), model.UserFromContext(r.Context()), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	list, err := h.assess.List(r.Context(), model.UserFromContext(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *Handler) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	a, err := h.assess.Get(r.Context(), model.UserFromContext(r.Context()).ID, chi.URLParam(r, "assessmentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
