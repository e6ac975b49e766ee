// Package seed imports users, consultant availability and help-center FAQs
// from YAML fixture files and creates the initial admin account.
package seed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/psychx/careercoach/internal/model"
	"github.com/psychx/careercoach/internal/scheduling"
	"github.com/psychx/careercoach/internal/store"
)

// DefaultAdminEmail is the login of the admin created on an empty database.
const DefaultAdminEmail = "admin@careercoach.local"

// ErrAdminPassword is returned by Admin when a password is needed but missing.
var ErrAdminPassword = errors.New("admin password is required: set --admin-password flag or CAREERCOACH_ADMIN_PASSWORD env var")

// File is the layout of a seed YAML document.
type File struct {
	Users []User `yaml:"users"`
	FAQs  []FAQ  `yaml:"faqs"`
}

// FAQ is a pre-answered help-center entry. Category defaults to General.
type FAQ struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
	Category string `yaml:"category"`
}

// User is one account in a seed file. Availability only applies to
// consultants.
type User struct {
	FirstName    string        `yaml:"first_name"`
	LastName     string        `yaml:"last_name"`
	Email        string        `yaml:"email"`
	Password     string        `yaml:"password"`
	Role         string        `yaml:"role"`
	Tier         string        `yaml:"tier"`
	CurrentClass string        `yaml:"current_class"`
	Availability *Availability `yaml:"availability"`
}

// Availability is a consultant's weekly window in a seed file.
type Availability struct {
	Days      []string `yaml:"days"`
	StartTime string   `yaml:"start_time"`
	EndTime   string   `yaml:"end_time"`
}

// Result summarizes an import.
type Result struct {
	// Unchanged is set when the file matched the last imported hash and
	// nothing was read.
	Unchanged    bool `json:"unchanged"`
	Created      int  `json:"created"`
	Existing     int  `json:"existing"`
	Availability int  `json:"availability"`
	FAQs         int  `json:"faqs"`
}

// Parse decodes and validates a seed document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode seed yaml: %w", err)
	}
	for i, u := range f.Users {
		if err := u.validate(); err != nil {
			return nil, fmt.Errorf("user %d (%s): %w", i, u.Email, err)
		}
	}
	for i, q := range f.FAQs {
		if strings.TrimSpace(q.Question) == "" || strings.TrimSpace(q.Answer) == "" {
			return nil, fmt.Errorf("faq %d: question and answer are required", i)
		}
		if q.Category != "" && !model.FAQCategory(q.Category).Valid() {
			return nil, fmt.Errorf("faq %d: unknown category %q", i, q.Category)
		}
	}
	return &f, nil
}

func (u User) validate() error {
	if strings.TrimSpace(u.Email) == "" || u.Password == "" {
		return errors.New("email and password are required")
	}
	switch model.UserRole(u.Role) {
	case "", model.UserRoleLearner, model.UserRoleConsultant, model.UserRoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", u.Role)
	}
	switch model.Tier(strings.ToLower(u.Tier)) {
	case "", model.TierFree, model.TierStandard, model.TierPremium:
	default:
		return fmt.Errorf("unknown tier %q", u.Tier)
	}
	if u.Availability != nil {
		if model.UserRole(u.Role) != model.UserRoleConsultant {
			return errors.New("availability is only allowed for consultants")
		}
		if err := scheduling.ValidateAvailability(u.Availability.model("")); err != nil {
			return err
		}
	}
	return nil
}

func (a Availability) model(consultantID string) model.Availability {
	return model.Availability{
		ConsultantID: consultantID,
		Days:         a.Days,
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
	}
}

func (u User) model(hash string) *model.User {
	role := model.UserRole(u.Role)
	if role == "" {
		role = model.UserRoleLearner
	}
	out := &model.User{
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        strings.TrimSpace(u.Email),
		PasswordHash: hash,
		Role:         role,
		CurrentClass: u.CurrentClass,
		Active:       true,
	}
	if role == model.UserRoleLearner {
		out.Tier = model.Tier(strings.ToLower(u.Tier))
	}
	return out
}

// Import loads a seed document into s. name keys the recorded content hash;
// a document identical to the last one imported under name is skipped.
// Users whose email already exists are left untouched, but consultant
// availability is still applied to them. FAQs whose question already exists
// are skipped.
func Import(ctx context.Context, s *store.Store, name string, data []byte) (Result, error) {
	hash := sha256sum(data)
	stored, err := s.GetImportedFileHash(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("check import status for %s: %w", name, err)
	}
	if stored == hash {
		slog.Info("seed file unchanged, skipping", "name", name)
		return Result{Unchanged: true}, nil
	}

	f, err := Parse(data)
	if err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", name, err)
	}

	var res Result
	for _, su := range f.Users {
		u, err := s.GetUserByEmail(ctx, strings.TrimSpace(su.Email))
		if err != nil {
			return res, fmt.Errorf("look up %s: %w", su.Email, err)
		}
		if u == nil {
			pw, err := bcrypt.GenerateFromPassword([]byte(su.Password), bcrypt.DefaultCost)
			if err != nil {
				return res, fmt.Errorf("hash password for %s: %w", su.Email, err)
			}
			u = su.model(string(pw))
			if err := s.CreateUser(ctx, u); err != nil {
				return res, fmt.Errorf("create %s: %w", su.Email, err)
			}
			res.Created++
		} else {
			res.Existing++
		}

		if su.Availability != nil && u.Role == model.UserRoleConsultant {
			if err := s.UpsertAvailability(ctx, su.Availability.model(u.ID)); err != nil {
				return res, fmt.Errorf("save availability for %s: %w", su.Email, err)
			}
			res.Availability++
		}
	}

	if len(f.FAQs) > 0 {
		n, err := importFAQs(ctx, s, f.FAQs)
		res.FAQs = n
		if err != nil {
			return res, err
		}
	}

	if err := s.SetImportedFileHash(ctx, name, hash); err != nil {
		return res, fmt.Errorf("record import for %s: %w", name, err)
	}
	slog.Info("imported seed file", "name", name,
		"created", res.Created, "existing", res.Existing, "availability", res.Availability, "faqs", res.FAQs)
	return res, nil
}

func importFAQs(ctx context.Context, s *store.Store, faqs []FAQ) (int, error) {
	existing, err := s.ListFAQs(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list faqs: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, f := range existing {
		seen[strings.ToLower(f.Question)] = true
	}
	created := 0
	for _, q := range faqs {
		question := strings.TrimSpace(q.Question)
		if seen[strings.ToLower(question)] {
			continue
		}
		category := model.FAQCategory(q.Category)
		if category == "" {
			category = model.FAQGeneral
		}
		err := s.CreateFAQ(ctx, &model.FAQ{
			Question: question,
			Answer:   strings.TrimSpace(q.Answer),
			Category: category,
			Status:   model.FAQAnswered,
		})
		if err != nil {
			return created, fmt.Errorf("create faq %q: %w", question, err)
		}
		seen[strings.ToLower(question)] = true
		created++
	}
	return created, nil
}

// Admin creates the default admin account when the database has no users.
func Admin(ctx context.Context, s *store.Store, email, password string) error {
	count, err := s.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if password == "" {
		return ErrAdminPassword
	}
	if email == "" {
		email = DefaultAdminEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	err = s.CreateUser(ctx, &model.User{
		FirstName:    "Administrator",
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "email", email)
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
