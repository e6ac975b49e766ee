package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/psychx/careercoach/internal/model"
)

func scanRoadmap(r rowScanner) (model.RoadmapEntry, error) {
	var e model.RoadmapEntry
	var steps string
	if err := r.Scan(&e.ID, &e.UserID, &e.CareerTitle, &e.Date, &steps); err != nil {
		return e, err
	}
	if err := json.Unmarshal([]byte(steps), &e.Steps); err != nil {
		return e, fmt.Errorf("decode steps for roadmap %s: %w", e.ID, err)
	}
	return e, nil
}

// CreateRoadmap stores a generated roadmap. Roadmaps are never updated.
func (s *Store) CreateRoadmap(ctx context.Context, e *model.RoadmapEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	steps, err := json.Marshal(e.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO roadmaps (id, user_id, career_title, date, steps) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.CareerTitle, e.Date, string(steps),
	)
	return err
}

// GetRoadmap returns a roadmap by ID, or nil if none exists.
func (s *Store) GetRoadmap(ctx context.Context, id string) (*model.RoadmapEntry, error) {
	e, err := scanRoadmap(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, career_title, date, steps FROM roadmaps WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListRoadmapsByUser returns a user's roadmaps, newest first.
func (s *Store) ListRoadmapsByUser(ctx context.Context, userID string) ([]model.RoadmapEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, career_title, date, steps FROM roadmaps WHERE user_id = ? ORDER BY rowid DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.RoadmapEntry
	for rows.Next() {
		e, err := scanRoadmap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountRoadmapsByUser returns how many roadmaps a user has generated.
func (s *Store) CountRoadmapsByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roadmaps WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}
