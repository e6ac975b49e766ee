// Package assessment runs the psychometric assessment: questions arrive in
// batches, and the finished profile is turned into career recommendations.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/psychx/careercoach/internal/entitlement"
	"github.com/psychx/careercoach/internal/lock"
	"github.com/psychx/careercoach/internal/model"
)

var (
	ErrGenerationFailed   = errors.New("assessment: content generation failed, please retry")
	ErrInvalidRequest     = errors.New("assessment: invalid request")
	ErrAssessmentComplete = errors.New("assessment: every question batch has been answered")
	ErrBusy               = errors.New("assessment: another assessment request is already in progress")
	ErrNotFound           = errors.New("assessment: not found")
)

const (
	// BatchSize is how many questions each batch asks.
	BatchSize = 5
	// TotalBatches is how many batches make up one assessment.
	TotalBatches = 3

	MaxYearsToInvest = 15
)

// Generator produces assessment content.
type Generator interface {
	GenerateQuestions(ctx context.Context, req model.QuestionsRequest) ([]model.Question, error)
	AnalyzeProfile(ctx context.Context, p model.AssessmentProfile) ([]model.CareerRecommendation, error)
}

// Repository is the persistence the service needs.
type Repository interface {
	CreateAssessment(ctx context.Context, a *model.Assessment) error
	GetAssessment(ctx context.Context, id string) (*model.Assessment, error)
	ListAssessmentsByUser(ctx context.Context, userID string) ([]model.Assessment, error)
	CountAssessmentsByUser(ctx context.Context, userID string) (int, error)
}

// Batch is one page of questions.
type Batch struct {
	Number    int              `json:"batch"`
	Total     int              `json:"total_batches"`
	Questions []model.Question `json:"questions"`
}

// Service hands out question batches and analyses finished profiles. Calls
// that reach the generator hold a per-learner guard.
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
	unlock, err := s.guard.TryLock(ctx, "assessment:"+userID, s.guardTTL)
	if errors.Is(err, lock.ErrHeld) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("acquire assessment guard: %w", err)
	}
	return unlock, nil
}

func generationFailed(op string, err error) error {
	slog.Warn("generation failed", "op", op, "error", err)
	return fmt.Errorf("%w: %s: %w", ErrGenerationFailed, op, err)
}

func (s *Service) checkQuota(ctx context.Context, u *model.User) error {
	if u == nil {
		return entitlement.Check(nil, entitlement.FeatureAssessment, 0)
	}
	used, err := s.repo.CountAssessmentsByUser(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("count assessments: %w", err)
	}
	if d := entitlement.Check(u, entitlement.FeatureAssessment, used); !d.Allowed {
		return d
	}
	return nil
}

// NextQuestions returns the batch that follows the answers given so far.
func (s *Service) NextQuestions(ctx context.Context, u *model.User, categories []model.CareerCategory, previous []model.Answer) (*Batch, error) {
	cats, err := normalizeCategories(categories)
	if err != nil {
		return nil, err
	}
	answered := answeredOnly(previous)
	number := len(answered)/BatchSize + 1
	if number > TotalBatches {
		return nil, ErrAssessmentComplete
	}
	if err := s.checkQuota(ctx, u); err != nil {
		return nil, err
	}

	unlock, err := s.acquire(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	qs, err := s.gen.GenerateQuestions(ctx, model.QuestionsRequest{
		Categories:   cats,
		StudentClass: u.CurrentClass,
		Batch:        number,
		Count:        BatchSize,
		Previous:     answered,
	})
	if err != nil {
		return nil, generationFailed("questions", err)
	}
	slog.Debug("question batch generated", "user_id", u.ID, "batch", number, "questions", len(qs))
	return &Batch{Number: number, Total: TotalBatches, Questions: qs}, nil
}

// Submit analyses a finished profile and stores the assessment. Nothing is
// stored unless the analysis succeeds.
func (s *Service) Submit(ctx context.Context, u *model.User, p model.AssessmentProfile) (*model.Assessment, error) {
	cats, err := normalizeCategories(p.Categories)
	if err != nil {
		return nil, err
	}
	p.Categories = cats
	p.Answers = answeredOnly(p.Answers)
	if len(p.Answers) == 0 {
		return nil, fmt.Errorf("%w: at least one answered question is required", ErrInvalidRequest)
	}
	p.LocationCurrent = strings.TrimSpace(p.LocationCurrent)
	if p.LocationCurrent == "" {
		return nil, fmt.Errorf("%w: current location is required", ErrInvalidRequest)
	}
	if !slices.Contains(model.TravelOptions, p.WillingnessToTravel) {
		return nil, fmt.Errorf("%w: willingness to travel must be one of %s",
			ErrInvalidRequest, strings.Join(model.TravelOptions, ", "))
	}
	if p.YearlyBudgetINR < 0 {
		return nil, fmt.Errorf("%w: yearly budget cannot be negative", ErrInvalidRequest)
	}
	if p.YearsToInvest < 1 || p.YearsToInvest > MaxYearsToInvest {
		return nil, fmt.Errorf("%w: years to invest must be 1-%d", ErrInvalidRequest, MaxYearsToInvest)
	}
	if err := s.checkQuota(ctx, u); err != nil {
		return nil, err
	}
	p.StudentClass = u.CurrentClass

	unlock, err := s.acquire(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	recs, err := s.gen.AnalyzeProfile(ctx, p)
	if err != nil {
		return nil, generationFailed("recommendations", err)
	}
	a := &model.Assessment{
		UserID:          u.ID,
		Date:            s.now().Format(time.DateOnly),
		Profile:         p,
		Recommendations: recs,
	}
	if err := s.repo.CreateAssessment(ctx, a); err != nil {
		return nil, fmt.Errorf("save assessment: %w", err)
	}
	slog.Info("assessment completed", "assessment_id", a.ID, "user_id", u.ID, "recommendations", len(recs))
	return a, nil
}

// List returns the learner's assessments, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]model.Assessment, error) {
	list, err := s.repo.ListAssessmentsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return list, nil
}

// Get returns one of the learner's assessments.
func (s *Service) Get(ctx context.Context, userID, id string) (*model.Assessment, error) {
	a, err := s.repo.GetAssessment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	if a == nil || a.UserID != userID {
		return nil, ErrNotFound
	}
	return a, nil
}

// normalizeCategories rejects unknown categories and drops repeats.
func normalizeCategories(in []model.CareerCategory) ([]model.CareerCategory, error) {
	var out []model.CareerCategory
	for _, c := range in {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: unknown career category %q", ErrInvalidRequest, c)
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: pick at least one career category", ErrInvalidRequest)
	}
	return out, nil
}

func answeredOnly(in []model.Answer) []model.Answer {
	out := make([]model.Answer, 0, len(in))
	for _, a := range in {
		if strings.TrimSpace(a.Answer) != "" {
			out = append(out, a)
		}
	}
	return out
}
