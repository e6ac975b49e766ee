package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/psychx/careercoach/internal/i18n"
	"github.com/psychx/careercoach/internal/model"
)

type roadmapRequest struct {
	CareerTitle string `json:"career_title"`
	Years       int    `json:"years"`
}

func (h *Handler) handleCreateRoadmap(w http.ResponseWriter, r *http.Request) {
	var req roadmapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	entry, err := h.coach.CreateRoadmap(r.Context(), model.UserFromContext(r.Context()), req.CareerTitle, req.Years)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleListRoadmaps(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	entries, err := h.store.ListRoadmapsByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, fmt.Errorf("list roadmaps: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries))
}

// handleGetRoadmap serves a roadmap to its owner, or to any consultant or
// admin. Learners asking for someone else's roadmap get 404.
func (h *Handler) handleGetRoadmap(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	entry, err := h.store.GetRoadmap(r.Context(), chi.URLParam(r, "roadmapID"))
	if err != nil {
		writeError(w, r, fmt.Errorf("get roadmap: %w", err))
		return
	}
	if entry == nil || (user.Role == model.UserRoleLearner && entry.UserID != user.ID) {
		writeMessage(w, r, http.StatusNotFound, "RoadmapNotFound")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// questionView hides the answer key while a quiz is waiting for answers.
type questionView struct {
	ID                 int      `json:"id"`
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectOptionIndex *int     `json:"correct_option_index,omitempty"`
}

type quizView struct {
	Questions   []questionView `json:"questions"`
	UserAnswers []int          `json:"user_answers,omitempty"`
	Score       int            `json:"score"`
	Passed      bool           `json:"passed"`
}

func newQuizView(q *model.WeeklyQuiz) *quizView {
	if q == nil {
		return nil
	}
	v := &quizView{UserAnswers: q.UserAnswers, Score: q.Score, Passed: q.Passed}
	for _, question := range q.Questions {
		qv := questionView{ID: question.ID, Text: question.Text, Options: question.Options}
		if q.Taken() {
			idx := question.CorrectOptionIndex
			qv.CorrectOptionIndex = &idx
		}
		v.Questions = append(v.Questions, qv)
	}
	return v
}

type weekView struct {
	model.WeeklyPlan
	Quiz *quizView `json:"quiz,omitempty"`
}

func newWeekView(p model.WeeklyPlan) weekView {
	return weekView{WeeklyPlan: p, Quiz: newQuizView(p.Quiz)}
}

type trackerView struct {
	*model.ProgressTracker
	History     []weekView `json:"history"`
	CurrentWeek weekView   `json:"current_week"`
	QuizPending bool       `json:"quiz_pending"`
	Summary     string     `json:"summary"`
}

func (h *Handler) newTrackerView(r *http.Request, t *model.ProgressTracker) trackerView {
	v := trackerView{
		ProgressTracker: t,
		History:         []weekView{},
		CurrentWeek:     newWeekView(t.CurrentWeek),
		QuizPending:     t.QuizPending(),
		Summary:         appI18n.Tp(r.Context(), "WeeksCompleted", t.TotalWeeksCompleted),
	}
	for _, p := range t.History {
		v.History = append(v.History, newWeekView(p))
	}
	return v
}

func (h *Handler) handleInitTracker(w http.ResponseWriter, r *http.Request) {
	t, err := h.coach.InitTracker(r.Context(), model.UserFromContext(r.Context()), chi.URLParam(r, "roadmapID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.newTrackerView(r, t))
}

func (h *Handler) handleGetTracker(w http.ResponseWriter, r *http.Request) {
	t, err := h.coach.Tracker(r.Context(), model.UserFromContext(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.newTrackerView(r, t))
}

func (h *Handler) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimSpace(chi.URLParam(r, "taskID"))
	t, err := h.coach.ToggleTask(r.Context(), model.UserFromContext(r.Context()).ID, taskID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.newTrackerView(r, t))
}

type submitResponse struct {
	Quiz    *quizView   `json:"quiz,omitempty"`
	Tracker trackerView `json:"tracker"`
}

// handleSubmitWeek either returns the quiz the week is waiting on, or the
// tracker with the next week already installed.
func (h *Handler) handleSubmitWeek(w http.ResponseWriter, r *http.Request) {
	res, err := h.coach.SubmitWeek(r.Context(), model.UserFromContext(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		Quiz:    newQuizView(res.PendingQuiz),
		Tracker: h.newTrackerView(r, res.Tracker),
	})
}

type quizRequest struct {
	Answers []int `json:"answers"`
}

func (h *Handler) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	t, err := h.coach.SubmitQuiz(r.Context(), model.UserFromContext(r.Context()).ID, req.Answers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.newTrackerView(r, t))
}

func (h *Handler) handleAdvancePhase(w http.ResponseWriter, r *http.Request) {
	t, err := h.coach.AdvancePhase(r.Context(), model.UserFromContext(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.newTrackerView(r, t))
}

func (h *Handler) handleListTrackers(w http.ResponseWriter, r *http.Request) {
	list, err := h.coach.Trackers(r.Context(), model.UserFromContext(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := []trackerView{}
	for i := range list {
		out = append(out, h.newTrackerView(r, &list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleActivateTracker makes the roadmap's tracker the one the /tracker
// routes act on.
func (h *Handler) handleActivateTracker(w http.ResponseWriter, r *http.Request) {
	t, err := h.coach.ActivateTracker(r.Context(), model.UserFromContext(r.Context()).ID, chi.URLParam(r, "roadmapID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.newTrackerView(r, t))
}
