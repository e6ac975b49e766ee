package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/psychx/careercoach/internal/model"
)

func scanAvailability(r rowScanner) (model.Availability, error) {
	var a model.Availability
	var days string
	if err := r.Scan(&a.ConsultantID, &days, &a.StartTime, &a.EndTime, &a.UpdatedAt); err != nil {
		return a, err
	}
	if err := json.Unmarshal([]byte(days), &a.Days); err != nil {
		return a, fmt.Errorf("decode days for %s: %w", a.ConsultantID, err)
	}
	return a, nil
}

// UpsertAvailability stores a consultant's weekly window, replacing any
// existing record for the same consultant.
func (s *Store) UpsertAvailability(ctx context.Context, a model.Availability) error {
	days, err := json.Marshal(a.Days)
	if err != nil {
		return fmt.Errorf("encode days: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO availability (consultant_id, days, start_time, end_time, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(consultant_id) DO UPDATE SET
		   days = excluded.days,
		   start_time = excluded.start_time,
		   end_time = excluded.end_time,
		   updated_at = excluded.updated_at`,
		a.ConsultantID, string(days), a.StartTime, a.EndTime, time.Now(),
	)
	return err
}

// GetAvailability returns the availability for a consultant, or nil if none is set.
func (s *Store) GetAvailability(ctx context.Context, consultantID string) (*model.Availability, error) {
	a, err := scanAvailability(s.db.QueryRowContext(ctx,
		`SELECT consultant_id, days, start_time, end_time, updated_at
		 FROM availability WHERE consultant_id = ?`, consultantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAvailability returns every availability record keyed by consultant ID.
func (s *Store) ListAvailability(ctx context.Context) (map[string]model.Availability, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT consultant_id, days, start_time, end_time, updated_at FROM availability`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]model.Availability)
	for rows.Next() {
		a, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		out[a.ConsultantID] = a
	}
	return out, rows.Err()
}
