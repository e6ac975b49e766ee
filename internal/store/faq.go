package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/psychx/careercoach/internal/model"
)

const faqColumns = `id, question, answer, category, status, asked_by, created_at, updated_at`

func scanFAQ(r rowScanner) (model.FAQ, error) {
	var f model.FAQ
	err := r.Scan(&f.ID, &f.Question, &f.Answer, &f.Category, &f.Status, &f.AskedBy, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

// CreateFAQ inserts a help-center entry.
func (s *Store) CreateFAQ(ctx context.Context, f *model.FAQ) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now()
	f.CreatedAt, f.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO faqs (`+faqColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Question, f.Answer, f.Category, f.Status, f.AskedBy, f.CreatedAt, f.UpdatedAt,
	)
	return err
}

// GetFAQ returns an entry by ID, or nil if none exists.
func (s *Store) GetFAQ(ctx context.Context, id string) (*model.FAQ, error) {
	f, err := scanFAQ(s.db.QueryRowContext(ctx, `SELECT `+faqColumns+` FROM faqs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFAQs returns entries in creation order. An empty status lists all.
func (s *Store) ListFAQs(ctx context.Context, status model.FAQStatus) ([]model.FAQ, error) {
	query := `SELECT ` + faqColumns + ` FROM faqs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.FAQ
	for rows.Next() {
		f, err := scanFAQ(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpdateFAQ overwrites the editable fields of an entry.
func (s *Store) UpdateFAQ(ctx context.Context, f *model.FAQ) error {
	f.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE faqs SET question = ?, answer = ?, category = ?, status = ?, updated_at = ? WHERE id = ?`,
		f.Question, f.Answer, f.Category, f.Status, f.UpdatedAt, f.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// DeleteFAQ removes an entry.
func (s *Store) DeleteFAQ(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM faqs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}
