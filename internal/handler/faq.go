package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/psychx/careercoach/internal/model"
)

// handleListFAQs serves the public help center: answered entries only.
func (h *Handler) handleListFAQs(w http.ResponseWriter, r *http.Request) {
	category := model.FAQCategory(r.URL.Query().Get("category"))
	if category != "" && !category.Valid() {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	list, err := h.store.ListFAQs(r.Context(), model.FAQAnswered)
	if err != nil {
		writeError(w, r, fmt.Errorf("list faqs: %w", err))
		return
	}
	out := []model.FAQ{}
	for _, f := range list {
		if category != "" && f.Category != category {
			continue
		}
		f.AskedBy = ""
		out = append(out, f)
	}
	writeJSON(w, http.StatusOK, out)
}

type askRequest struct {
	Question string            `json:"question"`
	Category model.FAQCategory `json:"category"`
}

// handleAskQuestion files a user question for an admin to answer.
func (h *Handler) handleAskQuestion(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	if req.Category == "" {
		req.Category = model.FAQGeneral
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" || !req.Category.Valid() {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	f := &model.FAQ{
		Question: req.Question,
		Category: req.Category,
		Status:   model.FAQPending,
		AskedBy:  model.UserFromContext(r.Context()).ID,
	}
	if err := h.store.CreateFAQ(r.Context(), f); err != nil {
		writeError(w, r, fmt.Errorf("create faq: %w", err))
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *Handler) handleAdminListFAQs(w http.ResponseWriter, r *http.Request) {
	status := model.FAQStatus(r.URL.Query().Get("status"))
	if status != "" && status != model.FAQPending && status != model.FAQAnswered {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	list, err := h.store.ListFAQs(r.Context(), status)
	if err != nil {
		writeError(w, r, fmt.Errorf("list faqs: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

type faqRequest struct {
	Question *string            `json:"question"`
	Answer   *string            `json:"answer"`
	Category *model.FAQCategory `json:"category"`
}

// apply merges the set fields into f. An entry is answered exactly when it
// has a non-empty answer.
func (req faqRequest) apply(f *model.FAQ) bool {
	if req.Question != nil {
		f.Question = strings.TrimSpace(*req.Question)
	}
	if req.Answer != nil {
		f.Answer = strings.TrimSpace(*req.Answer)
	}
	if req.Category != nil {
		f.Category = *req.Category
	}
	f.Status = model.FAQPending
	if f.Answer != "" {
		f.Status = model.FAQAnswered
	}
	return f.Question != "" && f.Category.Valid()
}

func (h *Handler) handleAdminCreateFAQ(w http.ResponseWriter, r *http.Request) {
	var req faqRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	f := &model.FAQ{Category: model.FAQGeneral}
	if !req.apply(f) {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	if err := h.store.CreateFAQ(r.Context(), f); err != nil {
		writeError(w, r, fmt.Errorf("create faq: %w", err))
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *Handler) handleAdminUpdateFAQ(w http.ResponseWriter, r *http.Request) {
	var req faqRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	f, err := h.store.GetFAQ(r.Context(), chi.URLParam(r, "faqID"))
	if err != nil {
		writeError(w, r, fmt.Errorf("get faq: %w", err))
		return
	}
	if f == nil {
		writeMessage(w, r, http.StatusNotFound, "NotFound")
		return
	}
	if !req.apply(f) {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	if err := h.store.UpdateFAQ(r.Context(), f); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) handleAdminDeleteFAQ(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteFAQ(r.Context(), chi.URLParam(r, "faqID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
