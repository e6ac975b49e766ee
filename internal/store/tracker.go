package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/psychx/careercoach/internal/model"
)

const trackerColumns = `id, user_id, roadmap_id, career_title, current_phase_index,
	total_weeks_completed, overall_progress_score, history, current_week, created_at, updated_at`

func scanTracker(r rowScanner) (model.ProgressTracker, error) {
	var t model.ProgressTracker
	var history, current string
	err := r.Scan(&t.ID, &t.UserID, &t.RoadmapID, &t.CareerTitle, &t.CurrentPhaseIndex,
		&t.TotalWeeksCompleted, &t.OverallProgressScore, &history, &current, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	if err := json.Unmarshal([]byte(history), &t.History); err != nil {
		return t, fmt.Errorf("decode history for tracker %s: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(current), &t.CurrentWeek); err != nil {
		return t, fmt.Errorf("decode current week for tracker %s: %w", t.ID, err)
	}
	return t, nil
}

func encodeWeeks(t *model.ProgressTracker) (history, current string, err error) {
	h := t.History
	if h == nil {
		h = []model.WeeklyPlan{}
	}
	hb, err := json.Marshal(h)
	if err != nil {
		return "", "", fmt.Errorf("encode history: %w", err)
	}
	cb, err := json.Marshal(t.CurrentWeek)
	if err != nil {
		return "", "", fmt.Errorf("encode current week: %w", err)
	}
	return string(hb), string(cb), nil
}

// CreateTracker persists a new progress tracker.
func (s *Store) CreateTracker(ctx context.Context, t *model.ProgressTracker) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	history, current, err := encodeWeeks(t)
	if err != nil {
		return err
	}
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trackers (`+trackerColumns+`, active_seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		   (SELECT COALESCE(MAX(active_seq), 0) + 1 FROM trackers WHERE user_id = ?))`,
		t.ID, t.UserID, t.RoadmapID, t.CareerTitle, t.CurrentPhaseIndex,
		t.TotalWeeksCompleted, t.OverallProgressScore, history, current, t.CreatedAt, t.UpdatedAt,
		t.UserID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// ActivateTracker makes a tracker its learner's active one.
func (s *Store) ActivateTracker(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trackers SET active_seq = (
		   SELECT COALESCE(MAX(t2.active_seq), 0) + 1 FROM trackers t2
		   WHERE t2.user_id = trackers.user_id)
		 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// UpdateTracker overwrites the mutable state of a tracker.
func (s *Store) UpdateTracker(ctx context.Context, t *model.ProgressTracker) error {
	history, current, err := encodeWeeks(t)
	if err != nil {
		return err
	}
	t.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE trackers SET current_phase_index = ?, total_weeks_completed = ?,
		   overall_progress_score = ?, history = ?, current_week = ?, updated_at = ?
		 WHERE id = ?`,
		t.CurrentPhaseIndex, t.TotalWeeksCompleted, t.OverallProgressScore,
		history, current, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// GetTracker returns a tracker by ID, or nil if none exists.
func (s *Store) GetTracker(ctx context.Context, id string) (*model.ProgressTracker, error) {
	return s.queryTracker(ctx, `SELECT `+trackerColumns+` FROM trackers WHERE id = ?`, id)
}

// GetActiveTracker returns the user's most recently started or activated
// tracker, or nil if the user has not started tracking.
func (s *Store) GetActiveTracker(ctx context.Context, userID string) (*model.ProgressTracker, error) {
	return s.queryTracker(ctx,
		`SELECT `+trackerColumns+` FROM trackers WHERE user_id = ?
		 ORDER BY active_seq DESC, rowid DESC LIMIT 1`, userID)
}

// GetTrackerByRoadmap returns the user's tracker for a roadmap, or nil.
func (s *Store) GetTrackerByRoadmap(ctx context.Context, userID, roadmapID string) (*model.ProgressTracker, error) {
	return s.queryTracker(ctx,
		`SELECT `+trackerColumns+` FROM trackers WHERE user_id = ? AND roadmap_id = ?`, userID, roadmapID)
}

func (s *Store) queryTracker(ctx context.Context, query string, args ...any) (*model.ProgressTracker, error) {
	t, err := scanTracker(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTrackersByUser returns a user's trackers, active first.
func (s *Store) ListTrackersByUser(ctx context.Context, userID string) ([]model.ProgressTracker, error) {
	return s.listTrackers(ctx,
		`SELECT `+trackerColumns+` FROM trackers WHERE user_id = ? ORDER BY active_seq DESC, rowid DESC`, userID)
}

// ListTrackers returns all trackers in creation order.
func (s *Store) ListTrackers(ctx context.Context) ([]model.ProgressTracker, error) {
	return s.listTrackers(ctx, `SELECT `+trackerColumns+` FROM trackers ORDER BY rowid`)
}

func (s *Store) listTrackers(ctx context.Context, query string, args ...any) ([]model.ProgressTracker, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ProgressTracker
	for rows.Next() {
		t, err := scanTracker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
