package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	openai "github.com/sashabaranov/go-openai"

	"github.com/psychx/careercoach/internal/llm/prompts"
	"github.com/psychx/careercoach/internal/model"
)

var (
	// ErrEmptyResponse is returned when the model produced no usable items.
	ErrEmptyResponse = errors.New("llm: empty response")
	// ErrSchemaMismatch is returned when the reply does not match the requested shape.
	ErrSchemaMismatch = errors.New("llm: response does not match schema")
)

// Backend names accepted by Config.Backend.
const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
)

// QuizSize is the number of questions in a weekly quiz.
const QuizSize = 3

// MaxReducedTasks caps the task count of a reduced week.
const MaxReducedTasks = 4

// RecommendationCount is the number of careers an assessment recommends.
const RecommendationCount = 3

// DefaultTimeout bounds a generation call when Config.Timeout is zero.
const DefaultTimeout = 60 * time.Second

const systemPrompt = "You are an AI career coach for students in India. Always answer with JSON only."

// Config selects and configures the generation backend.
type Config struct {
	Backend string
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// completer sends one prompt and returns the raw text reply. The schema is
// passed to backends that support constrained output.
type completer interface {
	complete(ctx context.Context, prompt string, schema *responseSchema) (string, error)
	ping(ctx context.Context) error
}

// Client generates coaching content through an OpenAI-compatible or Ollama backend.
type Client struct {
	backend completer
	timeout time.Duration
}

// New creates a new LLM client.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("llm timeout must not be negative, got %s", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if err := prompts.Load(prompts.FS()); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	var b completer
	switch cfg.Backend {
	case "", BackendOpenAI:
		config := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			config.BaseURL = cfg.BaseURL
		}
		b = &openaiBackend{api: openai.NewClientWithConfig(config), model: cfg.Model}
	case BackendOllama:
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse ollama url: %w", err)
		}
		b = &ollamaBackend{api: api.NewClient(u, http.DefaultClient), model: cfg.Model}
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
	return &Client{backend: b, timeout: cfg.Timeout}, nil
}

type openaiBackend struct {
	api   *openai.Client
	model string
}

func (b *openaiBackend) complete(ctx context.Context, prompt string, schema *responseSchema) (string, error) {
	resp, err := b.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        schema.name,
				Description: schema.description,
				Schema:      &schema.def,
				Strict:      true,
			},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices: %w", ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func (b *openaiBackend) ping(ctx context.Context) error {
	_, err := b.api.ListModels(ctx)
	return err
}

type ollamaBackend struct {
	api   *api.Client
	model string
}

func (b *ollamaBackend) complete(ctx context.Context, prompt string, schema *responseSchema) (string, error) {
	stream := false
	var sb strings.Builder
	err := b.api.Generate(ctx, &api.GenerateRequest{
		Model:  b.model,
		System: systemPrompt,
		Prompt: prompt,
		Format: schema.raw,
		Stream: &stream,
	}, func(r api.GenerateResponse) error {
		sb.WriteString(r.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return sb.String(), nil
}

func (b *ollamaBackend) ping(ctx context.Context) error {
	return b.api.Heartbeat(ctx)
}

// Ping checks that the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.backend.ping(ctx); err != nil {
		return fmt.Errorf("llm health check: %w", err)
	}
	return nil
}

// generate runs prompt through the backend and decodes the validated reply into out.
func (c *Client) generate(ctx context.Context, prompt string, schema *responseSchema, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	raw, err := c.backend.complete(ctx, prompt, schema)
	if err != nil {
		slog.Warn("LLM request failed", "schema", schema.name, "elapsed", time.Since(start), "error", err)
		return err
	}
	slog.Debug("LLM response", "schema", schema.name, "raw", raw)

	body := extractJSON(raw)
	if body == "" {
		return ErrEmptyResponse
	}
	if err := schema.validate(ctx, []byte(body)); err != nil {
		slog.Warn("LLM response rejected", "schema", schema.name, "error", err)
		return err
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrSchemaMismatch, schema.name, err)
	}
	return nil
}

type planReply struct {
	WeekTitle  string `json:"weekTitle"`
	AIFeedback string `json:"aiFeedback"`
	Tasks      []struct {
		ID       string             `json:"id"`
		Text     string             `json:"text"`
		Category model.TaskCategory `json:"category"`
	} `json:"tasks"`
}

// GenerateWeeklyPlan drafts the next active week for a tracker.
func (c *Client) GenerateWeeklyPlan(ctx context.Context, req model.PlanRequest) (*model.WeeklyPlan, error) {
	prompt, err := prompts.BuildWeeklyPlanPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("build weekly plan prompt: %w", err)
	}
	var reply planReply
	if err := c.generate(ctx, prompt, weeklyPlanSchema, &reply); err != nil {
		return nil, err
	}

	plan := &model.WeeklyPlan{
		WeekNumber: req.WeekNumber,
		Title:      strings.TrimSpace(reply.WeekTitle),
		Status:     model.PlanActive,
		AIFeedback: strings.TrimSpace(reply.AIFeedback),
	}
	for _, t := range reply.Tasks {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		// Model-supplied IDs are not trusted to be unique.
		plan.Tasks = append(plan.Tasks, model.WeeklyTask{
			ID:       fmt.Sprintf("w%d-t%d", req.WeekNumber, len(plan.Tasks)+1),
			Text:     text,
			Category: t.Category,
		})
	}
	if len(plan.Tasks) == 0 {
		return nil, fmt.Errorf("weekly plan has no tasks: %w", ErrEmptyResponse)
	}
	switch req.Directive {
	case model.DirectiveReduced:
		if len(plan.Tasks) > MaxReducedTasks {
			plan.Tasks = plan.Tasks[:MaxReducedTasks]
		}
	case model.DirectiveRemedial:
		if !strings.HasPrefix(plan.Title, "Remedial:") {
			plan.Title = "Remedial: " + plan.Title
		}
	}
	if plan.Title == "" {
		plan.Title = fmt.Sprintf("Week %d", req.WeekNumber)
	}
	return plan, nil
}

type quizReply struct {
	Questions []model.QuizQuestion `json:"questions"`
}

// UnmarshalJSON maps the camelCase reply fields onto QuizQuestion.
func (r *quizReply) UnmarshalJSON(b []byte) error {
	var raw struct {
		Questions []struct {
			ID                 int      `json:"id"`
			Text               string   `json:"text"`
			Options            []string `json:"options"`
			CorrectOptionIndex int      `json:"correctOptionIndex"`
		} `json:"questions"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Questions = r.Questions[:0]
	for _, q := range raw.Questions {
		r.Questions = append(r.Questions, model.QuizQuestion{
			ID:                 q.ID,
			Text:               q.Text,
			Options:            q.Options,
			CorrectOptionIndex: q.CorrectOptionIndex,
		})
	}
	return nil
}

// GenerateQuiz produces a QuizSize-question quiz derived from the given
// completed task texts. Questions without exactly four options or with an
// out-of-range answer index are discarded.
func (c *Client) GenerateQuiz(ctx context.Context, taskTexts []string) (*model.WeeklyQuiz, error) {
	if len(taskTexts) == 0 {
		return nil, fmt.Errorf("no completed tasks to quiz on: %w", ErrEmptyResponse)
	}
	prompt, err := prompts.BuildQuizPrompt(taskTexts, QuizSize)
	if err != nil {
		return nil, fmt.Errorf("build quiz prompt: %w", err)
	}
	var reply quizReply
	if err := c.generate(ctx, prompt, quizSchema, &reply); err != nil {
		return nil, err
	}

	quiz := &model.WeeklyQuiz{}
	for _, q := range reply.Questions {
		if strings.TrimSpace(q.Text) == "" || len(q.Options) != 4 {
			continue
		}
		if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex > 3 {
			continue
		}
		q.ID = len(quiz.Questions) + 1
		quiz.Questions = append(quiz.Questions, q)
		if len(quiz.Questions) == QuizSize {
			break
		}
	}
	switch {
	case len(quiz.Questions) == 0:
		return nil, fmt.Errorf("quiz has no usable questions: %w", ErrEmptyResponse)
	case len(quiz.Questions) < QuizSize:
		return nil, fmt.Errorf("%w: quiz has %d usable questions, want %d",
			ErrSchemaMismatch, len(quiz.Questions), QuizSize)
	}
	return quiz, nil
}

type roadmapReply struct {
	Phases []model.RoadmapStep `json:"phases"`
}

// GenerateRoadmap produces the phases of a career roadmap.
func (c *Client) GenerateRoadmap(ctx context.Context, req model.RoadmapRequest) ([]model.RoadmapStep, error) {
	prompt, err := prompts.BuildRoadmapPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("build roadmap prompt: %w", err)
	}
	var reply roadmapReply
	if err := c.generate(ctx, prompt, roadmapSchema, &reply); err != nil {
		return nil, err
	}
	var steps []model.RoadmapStep
	for _, s := range reply.Phases {
		if strings.TrimSpace(s.Phase) == "" {
			continue
		}
		steps = append(steps, s)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("roadmap has no phases: %w", ErrEmptyResponse)
	}
	return steps, nil
}

type questionsReply struct {
	Questions []model.Question `json:"questions"`
}

// unsureOption ends every multiple choice question so learners are never
// forced to guess.
const unsureOption = "I don't know"

// GenerateQuestions produces the next batch of up to req.Count assessment
// questions, numbered from the highest previous question ID.
func (c *Client) GenerateQuestions(ctx context.Context, req model.QuestionsRequest) ([]model.Question, error) {
	prompt, err := prompts.BuildQuestionsPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("build questions prompt: %w", err)
	}
	var reply questionsReply
	if err := c.generate(ctx, prompt, questionsSchema, &reply); err != nil {
		return nil, err
	}

	next := 1
	for _, a := range req.Previous {
		if a.QuestionID >= next {
			next = a.QuestionID + 1
		}
	}
	var out []model.Question
	for _, q := range reply.Questions {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			continue
		}
		switch q.Type {
		case model.QuestionMultipleChoice:
			q.Options = withUnsureOption(q.Options)
			if len(q.Options) < 3 {
				continue
			}
		default:
			q.Options = nil
		}
		q.ID = next
		next++
		out = append(out, q)
		if req.Count > 0 && len(out) == req.Count {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("assessment batch has no usable questions: %w", ErrEmptyResponse)
	}
	return out, nil
}

// withUnsureOption drops blank options and makes unsureOption the last one.
func withUnsureOption(opts []string) []string {
	out := make([]string, 0, len(opts)+1)
	for _, o := range opts {
		o = strings.TrimSpace(o)
		if o == "" || isUnsure(o) {
			continue
		}
		out = append(out, o)
	}
	return append(out, unsureOption)
}

func isUnsure(o string) bool {
	o = strings.ToLower(strings.TrimRight(o, ". "))
	return o == "i don't know" || o == "i dont know" || o == "unsure"
}

type recommendationsReply struct {
	Recommendations []struct {
		CareerTitle     string `json:"careerTitle"`
		Description     string `json:"description"`
		ReasonWhyChosen string `json:"reasonWhyChosen"`
		AptitudeScore   int    `json:"aptitudeScore"`
		LearningCurve   string `json:"learningCurve"`
		RealityCheck    struct {
			IsRealistic       bool              `json:"isRealistic"`
			FeasibilityRating model.Feasibility `json:"feasibilityRating"`
			Verdict           string            `json:"verdict"`
			FinancialGap      string            `json:"financialGap"`
			LocationVerdict   string            `json:"locationVerdict"`
		} `json:"realityCheck"`
		ImmediateNextStep string `json:"immediateNextStep"`
	} `json:"recommendations"`
}

// AnalyzeProfile recommends up to RecommendationCount careers for a finished
// assessment. Aptitude scores are clamped to 0-100.
func (c *Client) AnalyzeProfile(ctx context.Context, p model.AssessmentProfile) ([]model.CareerRecommendation, error) {
	prompt, err := prompts.BuildRecommendationsPrompt(p, RecommendationCount)
	if err != nil {
		return nil, fmt.Errorf("build recommendations prompt: %w", err)
	}
	var reply recommendationsReply
	if err := c.generate(ctx, prompt, recommendationsSchema, &reply); err != nil {
		return nil, err
	}

	var out []model.CareerRecommendation
	for _, r := range reply.Recommendations {
		title := strings.TrimSpace(r.CareerTitle)
		if title == "" {
			continue
		}
		out = append(out, model.CareerRecommendation{
			CareerTitle:     title,
			Description:     strings.TrimSpace(r.Description),
			ReasonWhyChosen: strings.TrimSpace(r.ReasonWhyChosen),
			AptitudeScore:   min(max(r.AptitudeScore, 0), 100),
			LearningCurve:   strings.TrimSpace(r.LearningCurve),
			RealityCheck: model.RealityCheck{
				IsRealistic:       r.RealityCheck.IsRealistic,
				FeasibilityRating: r.RealityCheck.FeasibilityRating,
				Verdict:           strings.TrimSpace(r.RealityCheck.Verdict),
				FinancialGap:      strings.TrimSpace(r.RealityCheck.FinancialGap),
				LocationVerdict:   strings.TrimSpace(r.RealityCheck.LocationVerdict),
			},
			ImmediateNextStep: strings.TrimSpace(r.ImmediateNextStep),
		})
		if len(out) == RecommendationCount {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no career recommendations: %w", ErrEmptyResponse)
	}
	return out, nil
}
