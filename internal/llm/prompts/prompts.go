package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/psychx/careercoach/internal/model"
)

//go:embed templates/*.tmpl
var embedded embed.FS

// FS returns the built-in prompt templates.
func FS() fs.FS {
	return embedded
}

var tagRegex = regexp.MustCompile(`(?i)</?\s*(student-context|completed-tasks|previous-answers|system-instructions)\b[^>]*>`)

const maxInputRunes = 500

// Kind names a prompt template.
type Kind string

const (
	KindWeeklyPlan      Kind = "weekly_plan"
	KindQuiz            Kind = "quiz"
	KindRoadmap         Kind = "roadmap"
	KindQuestions       Kind = "questions"
	KindRecommendations Kind = "recommendations"
)

var kinds = []Kind{KindWeeklyPlan, KindQuiz, KindRoadmap, KindQuestions, KindRecommendations}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Kind]*template.Template
)

// PlanData holds template data for weekly plan prompts.
type PlanData struct {
	CareerTitle     string
	Phase           string
	WeekNumber      int
	Directive       model.Directive
	PreviousWeek    int
	PreviousRate    int
	QuizTaken       bool
	QuizScore       int
	QuizTotal       int
	PreviousTasks   []model.WeeklyTask
	IncompleteTasks []model.WeeklyTask
}

// QuizData holds template data for quiz prompts.
type QuizData struct {
	Tasks []string
	Count int
}

// RoadmapData holds template data for roadmap prompts.
type RoadmapData struct {
	CareerTitle  string
	CurrentClass string
	Years        int
}

// QuestionsData holds template data for assessment question prompts.
type QuestionsData struct {
	StudentClass string
	Categories   string
	Batch        int
	Count        int
	Previous     []model.Answer
}

// RecommendationsData holds template data for recommendation prompts.
type RecommendationsData struct {
	StudentClass        string
	Categories          string
	YearlyBudgetINR     int
	WillingnessToTravel string
	LocationCurrent     string
	YearsToInvest       int
	Count               int
	Answers             []model.Answer
}

// Load parses the prompt templates from fsys.
// It uses sync.Once to ensure templates are loaded only once.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		templates = make(map[Kind]*template.Template)
		for _, k := range kinds {
			name := "templates/" + string(k) + ".tmpl"
			content, err := fs.ReadFile(fsys, name)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + name + ": " + err.Error())
				return
			}
			tmpl, err := template.New(string(k)).Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + name + ": " + err.Error())
				return
			}
			templates[k] = tmpl
		}
	})
	return loadErr
}

func render(k Kind, data any) (string, error) {
	if templates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := templates[k]
	if !ok {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("unknown prompt kind: " + string(k))
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildWeeklyPlanPrompt renders the prompt for the next weekly plan.
func BuildWeeklyPlanPrompt(req model.PlanRequest) (string, error) {
	data := PlanData{
		CareerTitle: sanitizeInput(req.CareerTitle),
		Phase:       sanitizeInput(req.Phase),
		WeekNumber:  req.WeekNumber,
		Directive:   req.Directive,
	}
	if prev := req.Previous; prev != nil {
		data.PreviousWeek = prev.WeekNumber
		data.PreviousRate = prev.CompletionRate
		if prev.Quiz.Taken() {
			data.QuizTaken = true
			data.QuizScore = prev.Quiz.Score
			data.QuizTotal = len(prev.Quiz.Questions)
		}
		for _, t := range prev.Tasks {
			t.Text = sanitizeInput(t.Text)
			data.PreviousTasks = append(data.PreviousTasks, t)
			if !t.IsCompleted {
				data.IncompleteTasks = append(data.IncompleteTasks, t)
			}
		}
	}
	return render(KindWeeklyPlan, data)
}

// BuildQuizPrompt renders the prompt for a quiz covering the given task texts.
func BuildQuizPrompt(taskTexts []string, count int) (string, error) {
	data := QuizData{Count: count}
	for _, t := range taskTexts {
		data.Tasks = append(data.Tasks, sanitizeInput(t))
	}
	return render(KindQuiz, data)
}

// BuildRoadmapPrompt renders the prompt for a career roadmap.
func BuildRoadmapPrompt(req model.RoadmapRequest) (string, error) {
	return render(KindRoadmap, RoadmapData{
		CareerTitle:  sanitizeInput(req.CareerTitle),
		CurrentClass: sanitizeInput(req.CurrentClass),
		Years:        req.Years,
	})
}

// BuildQuestionsPrompt renders the prompt for the next assessment batch.
func BuildQuestionsPrompt(req model.QuestionsRequest) (string, error) {
	return render(KindQuestions, QuestionsData{
		StudentClass: sanitizeInput(req.StudentClass),
		Categories:   joinCategories(req.Categories),
		Batch:        req.Batch,
		Count:        req.Count,
		Previous:     sanitizeAnswers(req.Previous),
	})
}

// BuildRecommendationsPrompt renders the prompt that turns a finished
// assessment into count career recommendations.
func BuildRecommendationsPrompt(p model.AssessmentProfile, count int) (string, error) {
	return render(KindRecommendations, RecommendationsData{
		StudentClass:        sanitizeInput(p.StudentClass),
		Categories:          joinCategories(p.Categories),
		YearlyBudgetINR:     p.YearlyBudgetINR,
		WillingnessToTravel: sanitizeInput(p.WillingnessToTravel),
		LocationCurrent:     sanitizeInput(p.LocationCurrent),
		YearsToInvest:       p.YearsToInvest,
		Count:               count,
		Answers:             sanitizeAnswers(p.Answers),
	})
}

func joinCategories(cs []model.CareerCategory) string {
	names := make([]string, 0, len(cs))
	for _, c := range cs {
		names = append(names, sanitizeInput(string(c)))
	}
	return strings.Join(names, ", ")
}

func sanitizeAnswers(in []model.Answer) []model.Answer {
	out := make([]model.Answer, 0, len(in))
	for _, a := range in {
		out = append(out, model.Answer{
			QuestionID:   a.QuestionID,
			QuestionText: sanitizeInput(a.QuestionText),
			Answer:       sanitizeInput(a.Answer),
		})
	}
	return out
}

// sanitizeInput strips prompt delimiter tags from user-controlled text and
// bounds its length.
func sanitizeInput(s string) string {
	s = tagRegex.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxInputRunes {
		runes := []rune(s)
		s = string(runes[:maxInputRunes]) + "..."
	}
	return s
}
