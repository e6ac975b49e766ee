package coaching

import (
	"math"

	"github.com/psychx/careercoach/internal/model"
)

// PassThreshold is the fixed number of correct answers needed to pass a
// weekly quiz.
const PassThreshold = 2

// Score deltas awarded when a week is finalized.
const (
	deltaFullCompletion = 10
	deltaHalfCompletion = 5
	deltaQuizPassed     = 10
)

// CompletionRate is the rounded percentage of completed tasks. A week with
// no tasks scores 0.
func CompletionRate(tasks []model.WeeklyTask) int {
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range tasks {
		if t.IsCompleted {
			done++
		}
	}
	return int(math.Round(100 * float64(done) / float64(len(tasks))))
}

// QuizPassed reports whether score meets PassThreshold.
func QuizPassed(score int) bool {
	return score >= PassThreshold
}

// ScoreQuiz counts answers matching the correct option. answers must be
// aligned with questions.
func ScoreQuiz(questions []model.QuizQuestion, answers []int) int {
	score := 0
	for i, q := range questions {
		if i < len(answers) && answers[i] == q.CorrectOptionIndex {
			score++
		}
	}
	return score
}

// ScoreDelta is the progress score earned by a finalized week: 10 for full
// completion or 5 for at least half, plus 10 for a passed quiz.
func ScoreDelta(rate int, quiz *model.WeeklyQuiz) int {
	delta := 0
	switch {
	case rate == 100:
		delta = deltaFullCompletion
	case rate >= 50:
		delta = deltaHalfCompletion
	}
	if quiz.Taken() && quiz.Passed {
		delta += deltaQuizPassed
	}
	return delta
}

// NextWeekDirective selects how the week after prev should be shaped. A
// failed quiz outranks the completion rate. A nil prev means the tracker is
// just starting.
func NextWeekDirective(prev *model.WeeklyPlan) model.Directive {
	if prev == nil {
		return model.DirectiveFirstWeek
	}
	quizTaken := prev.Quiz.Taken()
	switch {
	case quizTaken && !prev.Quiz.Passed:
		return model.DirectiveRemedial
	case prev.CompletionRate < 50:
		return model.DirectiveReduced
	case prev.CompletionRate == 100 && (!quizTaken || prev.Quiz.Score == len(prev.Quiz.Questions)):
		return model.DirectiveChallenge
	default:
		return model.DirectiveStandard
	}
}
