package model

import (
	"context"
	"strings"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleLearner is a student working through a career roadmap.
	UserRoleLearner UserRole = "learner"
	// UserRoleConsultant is a career counselor who takes booked sessions.
	UserRoleConsultant UserRole = "consultant"
	// UserRoleAdmin manages users and sessions.
	UserRoleAdmin UserRole = "admin"
)

// Tier is a learner's subscription level.
type Tier string

const (
	TierFree     Tier = "free"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// User represents a system user.
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Tier         Tier      `json:"tier,omitempty"`
	CurrentClass string    `json:"current_class,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName is the name shown to other users.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// AuthSession tracks an issued access token by its JWT ID.
type AuthSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type tokenIDCtxKey struct{}

// ContextWithTokenID stores the JWT ID of the current request's token.
func ContextWithTokenID(ctx context.Context, jti string) context.Context {
	return context.WithValue(ctx, tokenIDCtxKey{}, jti)
}

// TokenIDFromContext returns the JWT ID stored by ContextWithTokenID.
func TokenIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(tokenIDCtxKey{}).(string)
	return id
}

// Weekdays lists the day names accepted in availability records, Sunday first
// to match time.Weekday.
var Weekdays = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// IsWeekday reports whether name is one of Weekdays.
func IsWeekday(name string) bool {
	for _, d := range Weekdays {
		if d == name {
			return true
		}
	}
	return false
}

// Availability is a consultant's weekly working window. Times are zero-padded
// 24-hour "HH:MM" strings so they compare correctly as strings.
type Availability struct {
	ConsultantID string    `json:"consultant_id"`
	Days         []string  `json:"days"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasDay reports whether the window covers the given weekday name.
func (a Availability) HasDay(day string) bool {
	for _, d := range a.Days {
		if d == day {
			return true
		}
	}
	return false
}

// Covers reports whether hhmm falls inside [StartTime, EndTime].
func (a Availability) Covers(hhmm string) bool {
	return hhmm >= a.StartTime && hhmm <= a.EndTime
}

// SessionStatus represents the status of a consultation session.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "Scheduled"
	SessionCompleted SessionStatus = "Completed"
	SessionCancelled SessionStatus = "Cancelled"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionScheduled, SessionCompleted, SessionCancelled:
		return true
	}
	return false
}

// Session is a booked consultation between a learner and a consultant.
type Session struct {
	ID             string        `json:"id"`
	StudentID      string        `json:"student_id"`
	StudentName    string        `json:"student_name"`
	ConsultantID   string        `json:"consultant_id"`
	ConsultantName string        `json:"consultant_name"`
	Date           string        `json:"date"`
	Time           string        `json:"time"`
	Status         SessionStatus `json:"status"`
	MeetingLink    string        `json:"meeting_link,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// RoadmapStep is one phase of a career roadmap.
type RoadmapStep struct {
	Phase          string   `json:"phase"`
	Duration       string   `json:"duration"`
	Milestones     []string `json:"milestones"`
	Resources      []string `json:"resources"`
	LocationAdvice string   `json:"locationAdvice"`
}

// RoadmapEntry is a generated roadmap saved for a learner. It is never
// mutated; regenerating creates a new entry.
type RoadmapEntry struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	CareerTitle string        `json:"career_title"`
	Date        string        `json:"date"`
	Steps       []RoadmapStep `json:"steps"`
}

// TaskCategory groups weekly tasks.
type TaskCategory string

const (
	CategoryLearning   TaskCategory = "Learning"
	CategoryPractice   TaskCategory = "Practice"
	CategoryNetworking TaskCategory = "Networking"
)

// WeeklyTask is one checkbox item in a weekly plan.
type WeeklyTask struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	IsCompleted bool         `json:"is_completed"`
	Category    TaskCategory `json:"category"`
}

// QuizQuestion is a four-option multiple choice question.
type QuizQuestion struct {
	ID                 int      `json:"id"`
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correct_option_index"`
}

// WeeklyQuiz verifies the learning tasks of a week. A quiz with no
// UserAnswers has been issued but not yet answered.
type WeeklyQuiz struct {
	Questions   []QuizQuestion `json:"questions"`
	UserAnswers []int          `json:"user_answers,omitempty"`
	Score       int            `json:"score"`
	Passed      bool           `json:"passed"`
}

// Taken reports whether the learner has answered the quiz.
func (q *WeeklyQuiz) Taken() bool {
	return q != nil && len(q.UserAnswers) > 0
}

// PlanStatus is the lifecycle state of a weekly plan.
type PlanStatus string

const (
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
	PlanPending   PlanStatus = "pending"
)

// WeeklyPlan is one week of coachable work.
type WeeklyPlan struct {
	WeekNumber     int          `json:"week_number"`
	Title          string       `json:"title"`
	Tasks          []WeeklyTask `json:"tasks"`
	Status         PlanStatus   `json:"status"`
	CompletionRate int          `json:"completion_rate"`
	AIFeedback     string       `json:"ai_feedback,omitempty"`
	Quiz           *WeeklyQuiz  `json:"quiz,omitempty"`
}

// ProgressTracker drives a learner through a roadmap week by week.
type ProgressTracker struct {
	ID                   string       `json:"id"`
	UserID               string       `json:"user_id"`
	RoadmapID            string       `json:"roadmap_id"`
	CareerTitle          string       `json:"career_title"`
	CurrentPhaseIndex    int          `json:"current_phase_index"`
	TotalWeeksCompleted  int          `json:"total_weeks_completed"`
	OverallProgressScore int          `json:"overall_progress_score"`
	History              []WeeklyPlan `json:"history"`
	CurrentWeek          WeeklyPlan   `json:"current_week"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// QuizPending reports whether the current week is waiting on quiz answers.
func (t *ProgressTracker) QuizPending() bool {
	return t.CurrentWeek.Quiz != nil && !t.CurrentWeek.Quiz.Taken()
}

// Directive steers the difficulty of the next weekly plan.
type Directive string

const (
	DirectiveRemedial  Directive = "remedial"
	DirectiveReduced   Directive = "reduced"
	DirectiveChallenge Directive = "challenge"
	DirectiveStandard  Directive = "standard"
	// DirectiveFirstWeek is used when there is no previous week.
	DirectiveFirstWeek Directive = "first_week"
)

// PlanRequest carries everything the content service needs to draft a week.
type PlanRequest struct {
	CareerTitle string
	Phase       string
	WeekNumber  int
	Directive   Directive
	Previous    *WeeklyPlan
}

// RoadmapRequest asks for a multi-phase career roadmap.
type RoadmapRequest struct {
	CareerTitle  string
	CurrentClass string
	Years        int
}

// CareerCategory is a broad field a learner can explore in an assessment.
type CareerCategory string

const (
	CareerTechnical  CareerCategory = "Technical"
	CareerSports     CareerCategory = "Sports"
	CareerCreative   CareerCategory = "Creative"
	CareerHealthcare CareerCategory = "Healthcare"
	CareerBusiness   CareerCategory = "Business"
	CareerServices   CareerCategory = "Services"
)

// Valid reports whether c is a known category.
func (c CareerCategory) Valid() bool {
	switch c {
	case CareerTechnical, CareerSports, CareerCreative, CareerHealthcare, CareerBusiness, CareerServices:
		return true
	}
	return false
}

// QuestionType is how an assessment question is answered.
type QuestionType string

const (
	// QuestionScale is answered on a 1-5 scale, 5 being strongest agreement.
	QuestionScale          QuestionType = "scale"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionText           QuestionType = "text"
)

// Question is one psychometric or aptitude question in an assessment batch.
type Question struct {
	ID       int          `json:"id"`
	Text     string       `json:"text"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options,omitempty"`
	Category string       `json:"category"`
}

// Answer is a learner's reply to an assessment question.
type Answer struct {
	QuestionID   int    `json:"question_id"`
	QuestionText string `json:"question_text"`
	Answer       string `json:"answer"`
}

// QuestionsRequest asks for the next batch of assessment questions. Previous
// holds every answer given so far; an empty Previous means the first batch.
type QuestionsRequest struct {
	Categories   []CareerCategory
	StudentClass string
	Batch        int
	Count        int
	Previous     []Answer
}

// Travel willingness values accepted in an assessment profile.
var TravelOptions = []string{"Local", "State", "National", "International"}

// AssessmentProfile is everything the recommendation step looks at.
type AssessmentProfile struct {
	Categories          []CareerCategory `json:"categories"`
	Answers             []Answer         `json:"answers"`
	LocationCurrent     string           `json:"location_current"`
	WillingnessToTravel string           `json:"willingness_to_travel"`
	YearlyBudgetINR     int              `json:"yearly_budget_inr"`
	YearsToInvest       int              `json:"years_to_invest"`
	StudentClass        string           `json:"student_class"`
}

// Feasibility rates how achievable a recommendation is under the learner's
// budget and location constraints.
type Feasibility string

const (
	FeasibilityHigh   Feasibility = "High"
	FeasibilityMedium Feasibility = "Medium"
	FeasibilityLow    Feasibility = "Low"
)

// RealityCheck is the honest assessment attached to a recommendation.
type RealityCheck struct {
	IsRealistic       bool        `json:"is_realistic"`
	FeasibilityRating Feasibility `json:"feasibility_rating"`
	Verdict           string      `json:"verdict"`
	FinancialGap      string      `json:"financial_gap"`
	LocationVerdict   string      `json:"location_verdict"`
}

// CareerRecommendation is one career suggested by an assessment.
type CareerRecommendation struct {
	CareerTitle       string       `json:"career_title"`
	Description       string       `json:"description"`
	ReasonWhyChosen   string       `json:"reason_why_chosen"`
	AptitudeScore     int          `json:"aptitude_score"`
	LearningCurve     string       `json:"learning_curve"`
	RealityCheck      RealityCheck `json:"reality_check"`
	ImmediateNextStep string       `json:"immediate_next_step"`
}

// Assessment is a completed assessment and the recommendations it produced.
type Assessment struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"user_id"`
	Date            string                 `json:"date"`
	Profile         AssessmentProfile      `json:"profile"`
	Recommendations []CareerRecommendation `json:"recommendations"`
	CreatedAt       time.Time              `json:"created_at"`
}

// FAQCategory groups help-center questions.
type FAQCategory string

const (
	FAQGeneral   FAQCategory = "General"
	FAQBilling   FAQCategory = "Billing"
	FAQTechnical FAQCategory = "Technical"
)

// Valid reports whether c is a known category.
func (c FAQCategory) Valid() bool {
	return c == FAQGeneral || c == FAQBilling || c == FAQTechnical
}

// FAQStatus tells whether a question has been answered yet.
type FAQStatus string

const (
	FAQPending  FAQStatus = "pending"
	FAQAnswered FAQStatus = "answered"
)

// FAQ is a help-center entry. Users submit questions as pending; an admin
// answers them.
type FAQ struct {
	ID        string      `json:"id"`
	Question  string      `json:"question"`
	Answer    string      `json:"answer"`
	Category  FAQCategory `json:"category"`
	Status    FAQStatus   `json:"status"`
	AskedBy   string      `json:"asked_by,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// DefaultTokenTTL is the lifetime of an access token when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	Lang             string
	JWTSecret        string
	TokenTTL         time.Duration
	AssignmentPolicy string // first or least-booked
	GenerateTimeout  time.Duration
}
