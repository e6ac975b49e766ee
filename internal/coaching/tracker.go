// Package coaching runs the weekly progress tracker and the policy that adapts
// each new week to how the previous one went.
package coaching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/psychx/careercoach/internal/entitlement"
	"github.com/psychx/careercoach/internal/lock"
	"github.com/psychx/careercoach/internal/model"
)

var (
	ErrGenerationFailed = errors.New("coaching: content generation failed, please retry")
	ErrQuizIncomplete   = errors.New("coaching: every quiz question must be answered")
	ErrInvalidAnswer    = errors.New("coaching: answer index out of range")
	ErrBusy             = errors.New("coaching: another request for this tracker is already in progress")
	ErrNoTracker        = errors.New("coaching: no active tracker")
	ErrTrackerExists    = errors.New("coaching: this roadmap is already being tracked")
	ErrRoadmapNotFound  = errors.New("coaching: roadmap not found")
	ErrEmptyRoadmap     = errors.New("coaching: roadmap has no phase with milestones or resources")
	ErrTaskNotFound     = errors.New("coaching: task not found")
	ErrQuizPending      = errors.New("coaching: week is waiting on quiz answers")
	ErrNoQuizPending    = errors.New("coaching: no quiz is waiting for answers")
	ErrInvalidRequest   = errors.New("coaching: invalid request")
)

// DefaultPhaseName is used when the tracker's roadmap has no phase at the
// current index.
const DefaultPhaseName = "General Progression"

// Generator produces coaching content. Each method fails rather than
// returning an empty result.
type Generator interface {
	GenerateWeeklyPlan(ctx context.Context, req model.PlanRequest) (*model.WeeklyPlan, error)
	GenerateQuiz(ctx context.Context, taskTexts []string) (*model.WeeklyQuiz, error)
	GenerateRoadmap(ctx context.Context, req model.RoadmapRequest) ([]model.RoadmapStep, error)
}

// Repository is the persistence the service needs.
type Repository interface {
	CreateRoadmap(ctx context.Context, e *model.RoadmapEntry) error
	GetRoadmap(ctx context.Context, id string) (*model.RoadmapEntry, error)
	CountRoadmapsByUser(ctx context.Context, userID string) (int, error)
	CreateTracker(ctx context.Context, t *model.ProgressTracker) error
	UpdateTracker(ctx context.Context, t *model.ProgressTracker) error
	GetActiveTracker(ctx context.Context, userID string) (*model.ProgressTracker, error)
	GetTrackerByRoadmap(ctx context.Context, userID, roadmapID string) (*model.ProgressTracker, error)
	ListTrackersByUser(ctx context.Context, userID string) ([]model.ProgressTracker, error)
	ActivateTracker(ctx context.Context, id string) error
}

// Service drives roadmaps and progress trackers. Every mutating call holds a
// per-learner guard so a second request while one is generating gets ErrBusy.
type Service struct {
	repo     Repository
	gen      Generator
	guard    lock.Locker
	guardTTL time.Duration
	now      func() time.Time
}

// NewService returns a Service. guardTTL should exceed the generation timeout.
func NewService(repo Repository, gen Generator, guard lock.Locker, guardTTL time.Duration) *Service {
	if guardTTL <= 0 {
		guardTTL = 2 * time.Minute
	}
	return &Service{repo: repo, gen: gen, guard: guard, guardTTL: guardTTL, now: time.Now}
}

func (s *Service) acquire(ctx context.Context, userID string) (lock.Unlock, error) {
	unlock, err := s.guard.TryLock(ctx, "tracker:"+userID, s.guardTTL)
	if errors.Is(err, lock.ErrHeld) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("acquire tracker guard: %w", err)
	}
	return unlock, nil
}

func generationFailed(op string, err error) error {
	slog.Warn("generation failed", "op", op, "error", err)
	return fmt.Errorf("%w: %s: %w", ErrGenerationFailed, op, err)
}

// CreateRoadmap generates and stores a new roadmap for a learner.
func (s *Service) CreateRoadmap(ctx context.Context, u *model.User, careerTitle string, years int) (*model.RoadmapEntry, error) {
	careerTitle = strings.TrimSpace(careerTitle)
	if careerTitle == "" || years < 1 || years > 15 {
		return nil, fmt.Errorf("%w: career title and a horizon of 1-15 years are required", ErrInvalidRequest)
	}
	if u == nil {
		return nil, entitlement.Check(nil, entitlement.FeatureRoadmap, 0)
	}
	used, err := s.repo.CountRoadmapsByUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("count roadmaps: %w", err)
	}
	if d := entitlement.Check(u, entitlement.FeatureRoadmap, used); !d.Allowed {
		return nil, d
	}

	unlock, err := s.acquire(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	steps, err := s.gen.GenerateRoadmap(ctx, model.RoadmapRequest{
		CareerTitle:  careerTitle,
		CurrentClass: u.CurrentClass,
		Years:        years,
	})
	if err != nil {
		return nil, generationFailed("roadmap", err)
	}
	entry := &model.RoadmapEntry{
		UserID:      u.ID,
		CareerTitle: careerTitle,
		Date:        s.now().Format(time.DateOnly),
		Steps:       steps,
	}
	if err := s.repo.CreateRoadmap(ctx, entry); err != nil {
		return nil, fmt.Errorf("save roadmap: %w", err)
	}
	slog.Info("roadmap created", "roadmap_id", entry.ID, "user_id", u.ID, "phases", len(steps))
	return entry, nil
}

// InitTracker starts tracking a roadmap the learner owns and makes the new
// tracker the active one. Each roadmap has at most one tracker. Nothing is
// stored unless the first week is generated successfully.
func (s *Service) InitTracker(ctx context.Context, u *model.User, roadmapID string) (*model.ProgressTracker, error) {
	if d := entitlement.Check(u, entitlement.FeatureTracking, 0); !d.Allowed {
		return nil, d
	}
	unlock, err := s.acquire(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	roadmap, err := s.repo.GetRoadmap(ctx, roadmapID)
	if err != nil {
		return nil, fmt.Errorf("get roadmap: %w", err)
	}
	if roadmap == nil || roadmap.UserID != u.ID {
		return nil, ErrRoadmapNotFound
	}
	if !hasPhaseContent(roadmap.Steps) {
		return nil, ErrEmptyRoadmap
	}
	existing, err := s.repo.GetTrackerByRoadmap(ctx, u.ID, roadmap.ID)
	if err != nil {
		return nil, fmt.Errorf("get tracker: %w", err)
	}
	if existing != nil {
		return nil, ErrTrackerExists
	}

	plan, err := s.gen.GenerateWeeklyPlan(ctx, model.PlanRequest{
		CareerTitle: roadmap.CareerTitle,
		Phase:       roadmap.Steps[0].Phase,
		WeekNumber:  1,
		Directive:   NextWeekDirective(nil),
	})
	if err != nil {
		return nil, generationFailed("first week", err)
	}
	plan.WeekNumber = 1
	plan.Status = model.PlanActive

	t := &model.ProgressTracker{
		UserID:      u.ID,
		RoadmapID:   roadmap.ID,
		CareerTitle: roadmap.CareerTitle,
		History:     []model.WeeklyPlan{},
		CurrentWeek: *plan,
	}
	if err := s.repo.CreateTracker(ctx, t); err != nil {
		return nil, fmt.Errorf("save tracker: %w", err)
	}
	slog.Info("tracker started", "tracker_id", t.ID, "user_id", u.ID, "roadmap_id", roadmap.ID)
	return t, nil
}

// ActivateTracker switches the learner's active tracker to the one for
// roadmapID.
func (s *Service) ActivateTracker(ctx context.Context, userID, roadmapID string) (*model.ProgressTracker, error) {
	unlock, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := s.repo.GetTrackerByRoadmap(ctx, userID, roadmapID)
	if err != nil {
		return nil, fmt.Errorf("get tracker: %w", err)
	}
	if t == nil {
		return nil, ErrNoTracker
	}
	if err := s.repo.ActivateTracker(ctx, t.ID); err != nil {
		return nil, fmt.Errorf("activate tracker: %w", err)
	}
	slog.Info("tracker activated", "tracker_id", t.ID, "user_id", userID, "roadmap_id", roadmapID)
	return t, nil
}

// Trackers lists every tracker the learner has started, active first.
func (s *Service) Trackers(ctx context.Context, userID string) ([]model.ProgressTracker, error) {
	list, err := s.repo.ListTrackersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list trackers: %w", err)
	}
	return list, nil
}

// hasPhaseContent reports whether any phase carries a milestone or resource.
func hasPhaseContent(steps []model.RoadmapStep) bool {
	for _, st := range steps {
		if len(st.Milestones) > 0 || len(st.Resources) > 0 {
			return true
		}
	}
	return false
}

// Tracker returns the learner's active tracker.
func (s *Service) Tracker(ctx context.Context, userID string) (*model.ProgressTracker, error) {
	t, err := s.repo.GetActiveTracker(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get tracker: %w", err)
	}
	if t == nil {
		return nil, ErrNoTracker
	}
	return t, nil
}

// ToggleTask flips one task in the current week.
func (s *Service) ToggleTask(ctx context.Context, userID, taskID string) (*model.ProgressTracker, error) {
	unlock, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := s.Tracker(ctx, userID)
	if err != nil {
		return nil, err
	}
	if t.QuizPending() {
		return nil, ErrQuizPending
	}
	found := false
	for i := range t.CurrentWeek.Tasks {
		if t.CurrentWeek.Tasks[i].ID == taskID {
			t.CurrentWeek.Tasks[i].IsCompleted = !t.CurrentWeek.Tasks[i].IsCompleted
			found = true
			break
		}
	}
	if !found {
		return nil, ErrTaskNotFound
	}
	if err := s.repo.UpdateTracker(ctx, t); err != nil {
		return nil, fmt.Errorf("save tracker: %w", err)
	}
	return t, nil
}

// SubmitResult is the outcome of submitting a week. PendingQuiz is set when
// the week is waiting on quiz answers; otherwise Tracker already holds the
// next week.
type SubmitResult struct {
	Tracker     *model.ProgressTracker
	PendingQuiz *model.WeeklyQuiz
}

// SubmitWeek closes the current week. If any Learning task was completed a
// quiz on those tasks is issued and the week waits for SubmitQuiz; otherwise
// the week is finalized immediately.
func (s *Service) SubmitWeek(ctx context.Context, userID string) (*SubmitResult, error) {
	unlock, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := s.Tracker(ctx, userID)
	if err != nil {
		return nil, err
	}
	if t.QuizPending() {
		return &SubmitResult{Tracker: t, PendingQuiz: t.CurrentWeek.Quiz}, nil
	}

	var learned []string
	for _, task := range t.CurrentWeek.Tasks {
		if task.IsCompleted && task.Category == model.CategoryLearning {
			learned = append(learned, task.Text)
		}
	}
	if len(learned) > 0 {
		quiz, err := s.gen.GenerateQuiz(ctx, learned)
		if err != nil {
			return nil, generationFailed("quiz", err)
		}
		if len(quiz.Questions) == 0 {
			return nil, generationFailed("quiz", errors.New("no questions"))
		}
		quiz.UserAnswers, quiz.Score, quiz.Passed = nil, 0, false
		t.CurrentWeek.Quiz = quiz
		t.CurrentWeek.Status = model.PlanPending
		if err := s.repo.UpdateTracker(ctx, t); err != nil {
			return nil, fmt.Errorf("save tracker: %w", err)
		}
		slog.Info("quiz issued", "tracker_id", t.ID, "week", t.CurrentWeek.WeekNumber, "questions", len(quiz.Questions))
		return &SubmitResult{Tracker: t, PendingQuiz: quiz}, nil
	}

	if err := s.finalize(ctx, t, nil); err != nil {
		return nil, err
	}
	return &SubmitResult{Tracker: t}, nil
}

// SubmitQuiz scores the pending quiz and finalizes the week.
func (s *Service) SubmitQuiz(ctx context.Context, userID string, answers []int) (*model.ProgressTracker, error) {
	unlock, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := s.Tracker(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !t.QuizPending() {
		return nil, ErrNoQuizPending
	}
	pending := t.CurrentWeek.Quiz
	if len(answers) != len(pending.Questions) {
		return nil, ErrQuizIncomplete
	}
	for i, a := range answers {
		if a < 0 || a >= len(pending.Questions[i].Options) {
			return nil, ErrInvalidAnswer
		}
	}

	score := ScoreQuiz(pending.Questions, answers)
	taken := &model.WeeklyQuiz{
		Questions:   pending.Questions,
		UserAnswers: append([]int(nil), answers...),
		Score:       score,
		Passed:      QuizPassed(score),
	}
	if err := s.finalize(ctx, t, taken); err != nil {
		return nil, err
	}
	return t, nil
}

// finalize snapshots the current week into history and installs the next
// one. t is only modified after the next week has been generated.
func (s *Service) finalize(ctx context.Context, t *model.ProgressTracker, quiz *model.WeeklyQuiz) error {
	week := t.CurrentWeek
	week.Tasks = append([]model.WeeklyTask(nil), t.CurrentWeek.Tasks...)
	week.CompletionRate = CompletionRate(week.Tasks)
	week.Status = model.PlanCompleted
	week.Quiz = quiz

	delta := ScoreDelta(week.CompletionRate, quiz)
	nextNumber := t.TotalWeeksCompleted + 2
	directive := NextWeekDirective(&week)

	phase, err := s.phaseName(ctx, t)
	if err != nil {
		return err
	}
	next, err := s.gen.GenerateWeeklyPlan(ctx, model.PlanRequest{
		CareerTitle: t.CareerTitle,
		Phase:       phase,
		WeekNumber:  nextNumber,
		Directive:   directive,
		Previous:    &week,
	})
	if err != nil {
		return generationFailed("weekly plan", err)
	}
	next.WeekNumber = nextNumber
	next.Status = model.PlanActive
	next.Quiz = nil

	t.History = append(t.History, week)
	t.TotalWeeksCompleted++
	t.OverallProgressScore += delta
	t.CurrentWeek = *next
	if err := s.repo.UpdateTracker(ctx, t); err != nil {
		return fmt.Errorf("save tracker: %w", err)
	}
	slog.Info("week finalized",
		"tracker_id", t.ID,
		"week", week.WeekNumber,
		"completion_rate", week.CompletionRate,
		"quiz_taken", quiz.Taken(),
		"score_delta", delta,
		"directive", directive,
	)
	return nil
}

func (s *Service) phaseName(ctx context.Context, t *model.ProgressTracker) (string, error) {
	r, err := s.repo.GetRoadmap(ctx, t.RoadmapID)
	if err != nil {
		return "", fmt.Errorf("get roadmap: %w", err)
	}
	if r == nil || t.CurrentPhaseIndex < 0 || t.CurrentPhaseIndex >= len(r.Steps) {
		return DefaultPhaseName, nil
	}
	return r.Steps[t.CurrentPhaseIndex].Phase, nil
}

// AdvancePhase moves the tracker to the next roadmap phase, stopping at the
// last one.
func (s *Service) AdvancePhase(ctx context.Context, userID string) (*model.ProgressTracker, error) {
	unlock, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := s.Tracker(ctx, userID)
	if err != nil {
		return nil, err
	}
	r, err := s.repo.GetRoadmap(ctx, t.RoadmapID)
	if err != nil {
		return nil, fmt.Errorf("get roadmap: %w", err)
	}
	if r == nil {
		return nil, ErrRoadmapNotFound
	}
	if t.CurrentPhaseIndex >= len(r.Steps)-1 {
		return t, nil
	}
	t.CurrentPhaseIndex++
	if err := s.repo.UpdateTracker(ctx, t); err != nil {
		return nil, fmt.Errorf("save tracker: %w", err)
	}
	return t, nil
}
