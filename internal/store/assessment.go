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

const assessmentColumns = `id, user_id, date, profile, recommendations, created_at`

func scanAssessment(r rowScanner) (model.Assessment, error) {
	var a model.Assessment
	var profile, recs string
	if err := r.Scan(&a.ID, &a.UserID, &a.Date, &profile, &recs, &a.CreatedAt); err != nil {
		return a, err
	}
	if err := json.Unmarshal([]byte(profile), &a.Profile); err != nil {
		return a, fmt.Errorf("decode profile for assessment %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(recs), &a.Recommendations); err != nil {
		return a, fmt.Errorf("decode recommendations for assessment %s: %w", a.ID, err)
	}
	return a, nil
}

// CreateAssessment stores a completed assessment. Assessments are never updated.
func (s *Store) CreateAssessment(ctx context.Context, a *model.Assessment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	profile, err := json.Marshal(a.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	recs, err := json.Marshal(a.Recommendations)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	a.CreatedAt = time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assessments (`+assessmentColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Date, string(profile), string(recs), a.CreatedAt,
	)
	return err
}

// GetAssessment returns an assessment by ID, or nil if none exists.
func (s *Store) GetAssessment(ctx context.Context, id string) (*model.Assessment, error) {
	a, err := scanAssessment(s.db.QueryRowContext(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAssessmentsByUser returns a user's assessments, newest first.
func (s *Store) ListAssessmentsByUser(ctx context.Context, userID string) ([]model.Assessment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE user_id = ? ORDER BY rowid DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountAssessmentsByUser returns how many assessments a user has completed.
func (s *Store) CountAssessmentsByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assessments WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}
