package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/psychx/careercoach/internal/model"
)

const sessionColumns = `id, student_id, student_name, consultant_id, consultant_name, date, time, status, meeting_link, created_at`

func scanSession(r rowScanner) (model.Session, error) {
	var s model.Session
	err := r.Scan(&s.ID, &s.StudentID, &s.StudentName, &s.ConsultantID, &s.ConsultantName,
		&s.Date, &s.Time, &s.Status, &s.MeetingLink, &s.CreatedAt)
	return s, err
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func slotTaken(ctx context.Context, q querier, consultantID, date, hhmm, excludeID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions
		 WHERE consultant_id = ? AND date = ? AND time = ? AND status <> ? AND id <> ?`,
		consultantID, date, hhmm, model.SessionCancelled, excludeID,
	).Scan(&n)
	return n > 0, err
}

// SlotTaken reports whether the consultant already has a non-cancelled
// session at date and time.
func (s *Store) SlotTaken(ctx context.Context, consultantID, date, hhmm string) (bool, error) {
	return slotTaken(ctx, s.db, consultantID, date, hhmm, "")
}

// CreateSession inserts a session. The conflict check and the insert run in
// one transaction and the partial unique index on (consultant_id, date, time)
// rejects any writer that slips past the check; both cases return ErrSlotTaken.
func (s *Store) CreateSession(ctx context.Context, sess *model.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.Status == "" {
		sess.Status = model.SessionScheduled
	}
	sess.CreatedAt = time.Now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if sess.Status != model.SessionCancelled {
			taken, err := slotTaken(ctx, tx, sess.ConsultantID, sess.Date, sess.Time, sess.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrSlotTaken
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.StudentID, sess.StudentName, sess.ConsultantID, sess.ConsultantName,
			sess.Date, sess.Time, sess.Status, sess.MeetingLink, sess.CreatedAt,
		)
		return err
	})
	if isUniqueViolation(err) {
		err = ErrSlotTaken
	}
	if err != nil && !errors.Is(err, ErrSlotTaken) {
		slog.Error("failed to create session", "consultant_id", sess.ConsultantID, "error", err)
	}
	return err
}

// GetSession returns a session by ID, or nil if none exists.
func (s *Store) GetSession(ctx context.Context, id string) (*model.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// ListSessions returns all sessions ordered by date and time.
func (s *Store) ListSessions(ctx context.Context) ([]model.Session, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY date, time, rowid`)
}

// ListSessionsByStudent returns a learner's sessions.
func (s *Store) ListSessionsByStudent(ctx context.Context, studentID string) ([]model.Session, error) {
	return s.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE student_id = ? ORDER BY date, time, rowid`, studentID)
}

// ListSessionsByConsultant returns a consultant's sessions.
func (s *Store) ListSessionsByConsultant(ctx context.Context, consultantID string) ([]model.Session, error) {
	return s.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE consultant_id = ? ORDER BY date, time, rowid`, consultantID)
}

// ActiveSessionCounts returns the number of non-cancelled sessions per consultant.
func (s *Store) ActiveSessionCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT consultant_id, COUNT(*) FROM sessions WHERE status <> ? GROUP BY consultant_id`,
		model.SessionCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// SessionUpdate is a partial update; nil fields are left unchanged.
type SessionUpdate struct {
	Status      *model.SessionStatus
	MeetingLink *string
	Date        *string
	Time        *string
}

// UpdateSession merges upd into the stored session. Moving a session onto an
// occupied slot, or reactivating a cancelled one whose slot has since been
// taken, returns ErrSlotTaken.
func (s *Store) UpdateSession(ctx context.Context, id string, upd SessionUpdate) (*model.Session, error) {
	var out model.Session
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := scanSession(tx.QueryRowContext(ctx,
			`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if upd.Status != nil {
			cur.Status = *upd.Status
		}
		if upd.MeetingLink != nil {
			cur.MeetingLink = *upd.MeetingLink
		}
		if upd.Date != nil {
			cur.Date = *upd.Date
		}
		if upd.Time != nil {
			cur.Time = *upd.Time
		}
		if cur.Status != model.SessionCancelled {
			taken, err := slotTaken(ctx, tx, cur.ConsultantID, cur.Date, cur.Time, cur.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrSlotTaken
			}
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE sessions SET status = ?, meeting_link = ?, date = ?, time = ? WHERE id = ?`,
			cur.Status, cur.MeetingLink, cur.Date, cur.Time, cur.ID,
		)
		out = cur
		return err
	})
	if isUniqueViolation(err) {
		err = ErrSlotTaken
	}
	if err != nil {
		return nil, fmt.Errorf("update session %s: %w", id, err)
	}
	return &out, nil
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}
