package model

import "time"

// Export is the top-level JSON structure written by the export command.
type Export struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Sessions    []Session        `json:"sessions"`
	Trackers    []TrackerSummary `json:"trackers"`
	Consultants []ConsultantLoad `json:"consultants"`
}

// TrackerSummary flattens a tracker for offline review.
type TrackerSummary struct {
	TrackerID            string       `json:"tracker_id"`
	LearnerEmail         string       `json:"learner_email"`
	LearnerName          string       `json:"learner_name"`
	CareerTitle          string       `json:"career_title"`
	CurrentPhaseIndex    int          `json:"current_phase_index"`
	TotalWeeksCompleted  int          `json:"total_weeks_completed"`
	OverallProgressScore int          `json:"overall_progress_score"`
	Weeks                []WeekResult `json:"weeks"`
}

// WeekResult is one finalized week in an export.
type WeekResult struct {
	WeekNumber     int    `json:"week_number"`
	Title          string `json:"title"`
	CompletionRate int    `json:"completion_rate"`
	QuizTaken      bool   `json:"quiz_taken"`
	QuizScore      int    `json:"quiz_score,omitempty"`
	QuizPassed     bool   `json:"quiz_passed,omitempty"`
}

// ConsultantLoad counts active sessions per consultant.
type ConsultantLoad struct {
	ConsultantID   string `json:"consultant_id"`
	ConsultantName string `json:"consultant_name"`
	Scheduled      int    `json:"scheduled"`
	Completed      int    `json:"completed"`
}
