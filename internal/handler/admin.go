package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/psychx/careercoach/internal/model"
	"github.com/psychx/careercoach/internal/scheduling"
	"github.com/psychx/careercoach/internal/seed"
	"github.com/psychx/careercoach/internal/store"
)

func (h *Handler) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, fmt.Errorf("list users: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(users))
}

type createUserRequest struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	Tier         string `json:"tier"`
	CurrentClass string `json:"current_class"`
}

func validTier(t model.Tier) bool {
	return t == model.TierFree || t == model.TierStandard || t == model.TierPremium
}

func (h *Handler) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	email := strings.TrimSpace(req.Email)
	role := model.UserRole(req.Role)
	if role == "" {
		role = model.UserRoleLearner
	}
	tier := model.Tier(strings.ToLower(req.Tier))
	if tier == "" {
		tier = model.TierFree
	}
	validRole := role == model.UserRoleLearner || role == model.UserRoleConsultant || role == model.UserRoleAdmin
	if email == "" || req.Password == "" || !validRole || !validTier(tier) {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}
	u := &model.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Tier:         tier,
		CurrentClass: req.CurrentClass,
		Active:       true,
	}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type tierRequest struct {
	Tier string `json:"tier"`
}

// handleAdminSetTier changes a learner's subscription tier.
func (h *Handler) handleAdminSetTier(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if err := decodeJSON(w, r, &req); err != nil || !validTier(model.Tier(strings.ToLower(req.Tier))) {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	id := chi.URLParam(r, "userID")
	u, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, fmt.Errorf("get user: %w", err))
		return
	}
	if u == nil {
		writeMessage(w, r, http.StatusNotFound, "NotFound")
		return
	}
	if u.Role != model.UserRoleLearner {
		writeMessage(w, r, http.StatusBadRequest, "EntitlementNotLearner")
		return
	}
	if err := h.store.SetUserTier(r.Context(), id, model.Tier(strings.ToLower(req.Tier))); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondUser(w, r, id)
}

func (h *Handler) handleAdminToggleUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	if err := h.store.ToggleUserActive(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondUser(w, r, id)
}

func (h *Handler) respondUser(w http.ResponseWriter, r *http.Request, id string) {
	u, err := h.store.GetUserByID(r.Context(), id)
	if err == nil && u == nil {
		err = store.ErrNotFound
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) handleAdminListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListSessions(r.Context())
	if err != nil {
		writeError(w, r, fmt.Errorf("list sessions: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sessions))
}

type createSessionRequest struct {
	StudentID    string `json:"student_id"`
	ConsultantID string `json:"consultant_id"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	MeetingLink  string `json:"meeting_link"`
}

func validSlot(date, hhmm string) bool {
	_, err := scheduling.Weekday(date)
	return err == nil && scheduling.ValidTime(hhmm)
}

// lookupRole returns the user with id if it exists and has role.
func (h *Handler) lookupRole(r *http.Request, id string, role model.UserRole) (*model.User, error) {
	u, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Role != role {
		return nil, nil
	}
	return u, nil
}

// handleAdminCreateSession books a specific pair directly, bypassing
// availability matching. The slot conflict rule still applies.
func (h *Handler) handleAdminCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil || !validSlot(req.Date, req.Time) {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	student, err := h.lookupRole(r, req.StudentID, model.UserRoleLearner)
	if err != nil {
		writeError(w, r, fmt.Errorf("get student: %w", err))
		return
	}
	consultant, err := h.lookupRole(r, req.ConsultantID, model.UserRoleConsultant)
	if err != nil {
		writeError(w, r, fmt.Errorf("get consultant: %w", err))
		return
	}
	if student == nil || consultant == nil {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}

	sess := &model.Session{
		StudentID:      student.ID,
		StudentName:    student.DisplayName(),
		ConsultantID:   consultant.ID,
		ConsultantName: consultant.DisplayName(),
		Date:           req.Date,
		Time:           req.Time,
		Status:         model.SessionScheduled,
		MeetingLink:    req.MeetingLink,
	}
	if err := h.store.CreateSession(r.Context(), sess); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("admin created session", "session_id", sess.ID, "consultant_id", consultant.ID, "date", sess.Date, "time", sess.Time)
	writeJSON(w, http.StatusCreated, sess)
}

type updateSessionRequest struct {
	Status      *model.SessionStatus `json:"status"`
	MeetingLink *string              `json:"meeting_link"`
	Date        *string              `json:"date"`
	Time        *string              `json:"time"`
}

func (req updateSessionRequest) valid() bool {
	if req.Status != nil && !req.Status.Valid() {
		return false
	}
	if req.Date != nil {
		if _, err := scheduling.Weekday(*req.Date); err != nil {
			return false
		}
	}
	return req.Time == nil || scheduling.ValidTime(*req.Time)
}

func (h *Handler) handleAdminUpdateSession(w http.ResponseWriter, r *http.Request) {
	var req updateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil || !req.valid() {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	sess, err := h.store.UpdateSession(r.Context(), chi.URLParam(r, "sessionID"), store.SessionUpdate{
		Status:      req.Status,
		MeetingLink: req.MeetingLink,
		Date:        req.Date,
		Time:        req.Time,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleAdminDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type consultantAvailability struct {
	ConsultantID   string              `json:"consultant_id"`
	ConsultantName string              `json:"consultant_name"`
	Availability   *model.Availability `json:"availability"`
}

// handleAdminAvailability lists every active consultant, in matching order,
// with their saved window or null.
func (h *Handler) handleAdminAvailability(w http.ResponseWriter, r *http.Request) {
	consultants, err := h.store.ListConsultants(r.Context())
	if err != nil {
		writeError(w, r, fmt.Errorf("list consultants: %w", err))
		return
	}
	avail, err := h.store.ListAvailability(r.Context())
	if err != nil {
		writeError(w, r, fmt.Errorf("list availability: %w", err))
		return
	}
	out := []consultantAvailability{}
	for _, c := range consultants {
		item := consultantAvailability{ConsultantID: c.ID, ConsultantName: c.DisplayName()}
		if a, ok := avail[c.ID]; ok {
			item.Availability = &a
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAdminSeed imports an uploaded seed YAML file.
func (h *Handler) handleAdminSeed(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	file, header, err := r.FormFile("seed_file")
	if err != nil {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}
	if _, err := seed.Parse(data); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: http.StatusText(http.StatusBadRequest), Message: err.Error()})
		return
	}
	res, err := seed.Import(r.Context(), h.store, header.Filename, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("uploaded seed via admin", "filename", header.Filename, "created", res.Created)
	writeJSON(w, http.StatusOK, res)
}
