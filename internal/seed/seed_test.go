package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/psychx/careercoach/internal/model"
	"github.com/psychx/careercoach/internal/store"
)

const fixture = `
users:
  - first_name: Asha
    last_name: Rao
    email: asha@example.com
    password: secret1
    role: consultant
    availability:
      days: [Monday, Wednesday]
      start_time: "09:00"
      end_time: "17:00"
  - first_name: Ravi
    email: ravi@example.com
    password: secret2
    role: learner
    tier: Standard
    current_class: "12"
`

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	res, err := Import(ctx, s, "seed.yaml", []byte(fixture))
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 2, Availability: 1}, res)

	asha, err := s.GetUserByEmail(ctx, "asha@example.com")
	require.NoError(t, err)
	require.NotNil(t, asha)
	assert.Equal(t, model.UserRoleConsultant, asha.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(asha.PasswordHash), []byte("secret1")))

	a, err := s.GetAvailability(ctx, asha.ID)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, []string{"Monday", "Wednesday"}, a.Days)

	ravi, err := s.GetUserByEmail(ctx, "ravi@example.com")
	require.NoError(t, err)
	require.NotNil(t, ravi)
	assert.Equal(t, model.TierStandard, ravi.Tier)
	assert.Equal(t, "12", ravi.CurrentClass)
}

func TestImportUnchangedFileIsSkipped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := Import(ctx, s, "seed.yaml", []byte(fixture))
	require.NoError(t, err)

	res, err := Import(ctx, s, "seed.yaml", []byte(fixture))
	require.NoError(t, err)
	assert.True(t, res.Unchanged)

	n, err := s.UserCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestImportChangedFileKeepsExistingUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := Import(ctx, s, "seed.yaml", []byte(fixture))
	require.NoError(t, err)

	changed := fixture + `
  - first_name: Meera
    email: meera@example.com
    password: secret3
`
	res, err := Import(ctx, s, "seed.yaml", []byte(changed))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 2, res.Existing)
	assert.Equal(t, 1, res.Availability)

	meera, err := s.GetUserByEmail(ctx, "meera@example.com")
	require.NoError(t, err)
	require.NotNil(t, meera)
	assert.Equal(t, model.UserRoleLearner, meera.Role)
	assert.Equal(t, model.TierFree, meera.Tier)
}

func TestImportFAQs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreateFAQ(ctx, &model.FAQ{
		Question: "How do I pay?", Answer: "UPI", Category: model.FAQBilling, Status: model.FAQAnswered,
	}))

	doc := `
faqs:
  - question: How do I pay?
    answer: By card.
    category: Billing
  - question: "  Can I change my consultant?  "
    answer: Yes, from the sessions page.
`
	res, err := Import(ctx, s, "faqs.yaml", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, res.FAQs, "existing questions are skipped")

	list, err := s.ListFAQs(ctx, model.FAQAnswered)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "UPI", list[0].Answer, "an existing answer is not overwritten")
	assert.Equal(t, "Can I change my consultant?", list[1].Question)
	assert.Equal(t, model.FAQGeneral, list[1].Category)
}

func TestParseRejectsInvalidUsers(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing password", "users:\n  - email: a@example.com\n"},
		{"unknown role", "users:\n  - email: a@example.com\n    password: x\n    role: superuser\n"},
		{"unknown tier", "users:\n  - email: a@example.com\n    password: x\n    tier: gold\n"},
		{"availability on learner", "users:\n  - email: a@example.com\n    password: x\n    availability:\n      days: [Monday]\n      start_time: \"09:00\"\n      end_time: \"10:00\"\n"},
		{"bad window", "users:\n  - email: a@example.com\n    password: x\n    role: consultant\n    availability:\n      days: [Monday]\n      start_time: \"9:00\"\n      end_time: \"10:00\"\n"},
		{"not yaml", "users: [\n"},
		{"faq without answer", "faqs:\n  - question: How do I pay?\n"},
		{"faq with unknown category", "faqs:\n  - question: How do I pay?\n    answer: UPI\n    category: Gossip\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestAdmin(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := Admin(ctx, s, "", "")
	assert.True(t, errors.Is(err, ErrAdminPassword))

	require.NoError(t, Admin(ctx, s, "", "adminpass"))
	admin, err := s.GetUserByEmail(ctx, DefaultAdminEmail)
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, model.UserRoleAdmin, admin.Role)

	// A populated database is left alone even without a password.
	require.NoError(t, Admin(ctx, s, "", ""))
	n, err := s.UserCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
