package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/psychx/careercoach/internal/model"
)

const userColumns = `id, first_name, last_name, email, password_hash, role, tier, current_class, active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (model.User, error) {
	var u model.User
	err := r.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash,
		&u.Role, &u.Tier, &u.CurrentClass, &u.Active, &u.CreatedAt)
	return u, err
}

// CreateUser inserts a new user, assigning an ID when u.ID is empty.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Tier == "" {
		u.Tier = model.TierFree
	}
	u.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash,
		u.Role, u.Tier, u.CurrentClass, u.Active, u.CreatedAt,
	)
	if err != nil {
		slog.Error("failed to create user", "email", u.Email, "error", err)
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
		}
		return err
	}
	slog.Info("created user", "id", u.ID, "email", u.Email, "role", u.Role)
	return nil
}

// GetUserByEmail returns a user by email, or nil if none exists.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID returns a user by ID, or nil if none exists.
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListUsers returns all users in creation order.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY rowid`)
}

// ListConsultants returns active consultants in creation order. The order is
// stable and is what booking uses to pick the first eligible consultant.
func (s *Store) ListConsultants(ctx context.Context) ([]model.User, error) {
	return s.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = ? AND active = 1 ORDER BY rowid`,
		model.UserRoleConsultant)
}

// SetUserTier changes a user's subscription tier.
func (s *Store) SetUserTier(ctx context.Context, id string, tier model.Tier) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET tier = ? WHERE id = ?`, tier, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// ToggleUserActive flips the active flag on a user.
func (s *Store) ToggleUserActive(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET active = NOT active WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
