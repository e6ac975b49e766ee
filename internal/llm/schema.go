package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	qjs "github.com/qri-io/jsonschema"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// responseSchema pairs the JSON schema sent to the model with a compiled
// validator for the model's reply.
type responseSchema struct {
	name        string
	description string
	def         jsonschema.Definition
	raw         json.RawMessage
	validator   *qjs.Schema
}

func newResponseSchema(name, description string, def jsonschema.Definition) *responseSchema {
	raw, err := json.Marshal(&def)
	if err != nil {
		panic(fmt.Sprintf("llm: marshal %s schema: %v", name, err))
	}
	rs := &qjs.Schema{}
	if err := json.Unmarshal(raw, rs); err != nil {
		panic(fmt.Sprintf("llm: compile %s schema: %v", name, err))
	}
	return &responseSchema{name: name, description: description, def: def, raw: raw, validator: rs}
}

// validate checks data against the schema and returns ErrSchemaMismatch
// listing the first few violations.
func (s *responseSchema) validate(ctx context.Context, data []byte) error {
	verrs, err := s.validator.ValidateBytes(ctx, data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, s.name, err)
	}
	if len(verrs) == 0 {
		return nil
	}
	msgs := make([]string, 0, 3)
	for i, ve := range verrs {
		if i == 3 {
			break
		}
		msgs = append(msgs, ve.PropertyPath+": "+ve.Message)
	}
	return fmt.Errorf("%w: %s: %s", ErrSchemaMismatch, s.name, strings.Join(msgs, "; "))
}

func stringArray(desc string) jsonschema.Definition {
	return jsonschema.Definition{
		Type:        jsonschema.Array,
		Description: desc,
		Items:       &jsonschema.Definition{Type: jsonschema.String},
	}
}

var weeklyPlanSchema = newResponseSchema("weekly_plan", "One week of career coaching tasks", jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"weekTitle":  {Type: jsonschema.String, Description: "Theme of the week"},
		"aiFeedback": {Type: jsonschema.String, Description: "One sentence of feedback on last week's performance"},
		"tasks": {
			Type: jsonschema.Array,
			Items: &jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"id":   {Type: jsonschema.String},
					"text": {Type: jsonschema.String},
					"category": {
						Type: jsonschema.String,
						Enum: []string{"Learning", "Practice", "Networking"},
					},
				},
				Required:             []string{"id", "text", "category"},
				AdditionalProperties: false,
			},
		},
	},
	Required:             []string{"weekTitle", "aiFeedback", "tasks"},
	AdditionalProperties: false,
})

var quizSchema = newResponseSchema("weekly_quiz", "Multiple-choice verification quiz", jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"questions": {
			Type: jsonschema.Array,
			Items: &jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"id":                 {Type: jsonschema.Integer},
					"text":               {Type: jsonschema.String, Description: "The question text"},
					"options":            stringArray("Exactly 4 multiple choice options"),
					"correctOptionIndex": {Type: jsonschema.Integer, Description: "Index of the correct option (0-3)"},
				},
				Required:             []string{"id", "text", "options", "correctOptionIndex"},
				AdditionalProperties: false,
			},
		},
	},
	Required:             []string{"questions"},
	AdditionalProperties: false,
})

var roadmapSchema = newResponseSchema("career_roadmap", "Multi-phase career roadmap", jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"phases": {
			Type: jsonschema.Array,
			Items: &jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"phase":          {Type: jsonschema.String, Description: "Name of the career phase"},
					"duration":       {Type: jsonschema.String, Description: "Duration such as 6 Months"},
					"milestones":     stringArray("Actionable steps to take"),
					"resources":      stringArray("Books, portals, exams or courses"),
					"locationAdvice": {Type: jsonschema.String, Description: "Best cities or hubs in India for this phase"},
				},
				Required:             []string{"phase", "duration", "milestones", "resources", "locationAdvice"},
				AdditionalProperties: false,
			},
		},
	},
	Required:             []string{"phases"},
	AdditionalProperties: false,
})

var questionsSchema = newResponseSchema("assessment_questions", "One batch of psychometric assessment questions", jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"questions": {
			Type: jsonschema.Array,
			Items: &jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"id":   {Type: jsonschema.Integer},
					"text": {Type: jsonschema.String},
					"type": {
						Type: jsonschema.String,
						Enum: []string{"scale", "multiple_choice", "text"},
					},
					"options":  stringArray("Answer options for multiple_choice questions, empty otherwise"),
					"category": {Type: jsonschema.String},
				},
				Required:             []string{"id", "text", "type", "options", "category"},
				AdditionalProperties: false,
			},
		},
	},
	Required:             []string{"questions"},
	AdditionalProperties: false,
})

var recommendationsSchema = newResponseSchema("career_recommendations", "Career recommendations from an assessment", jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"recommendations": {
			Type: jsonschema.Array,
			Items: &jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"careerTitle":     {Type: jsonschema.String},
					"description":     {Type: jsonschema.String, Description: "What this professional does"},
					"reasonWhyChosen": {Type: jsonschema.String, Description: "How the student's personality fits the career"},
					"aptitudeScore":   {Type: jsonschema.Integer, Description: "Psychological fit from 0 to 100"},
					"learningCurve":   {Type: jsonschema.String, Description: "Two sentences on the learning path"},
					"realityCheck": {
						Type: jsonschema.Object,
						Properties: map[string]jsonschema.Definition{
							"isRealistic": {Type: jsonschema.Boolean},
							"feasibilityRating": {
								Type: jsonschema.String,
								Enum: []string{"High", "Medium", "Low"},
							},
							"verdict":         {Type: jsonschema.String},
							"financialGap":    {Type: jsonschema.String},
							"locationVerdict": {Type: jsonschema.String},
						},
						Required:             []string{"isRealistic", "feasibilityRating", "verdict", "financialGap", "locationVerdict"},
						AdditionalProperties: false,
					},
					"immediateNextStep": {Type: jsonschema.String},
				},
				Required: []string{"careerTitle", "description", "reasonWhyChosen", "aptitudeScore",
					"learningCurve", "realityCheck", "immediateNextStep"},
				AdditionalProperties: false,
			},
		},
	},
	Required:             []string{"recommendations"},
	AdditionalProperties: false,
})

// extractJSON trims code fences and surrounding prose from a model reply,
// returning the outermost JSON object.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return strings.TrimSpace(s)
	}
	return s[start : end+1]
}
