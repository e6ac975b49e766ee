// Package scheduling assigns consultation requests to available consultants.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"github.com/psychx/careercoach/internal/lock"
	"github.com/psychx/careercoach/internal/model"
	"github.com/psychx/careercoach/internal/store"
)

// Store is the persistence the engine reads and writes.
type Store interface {
	ListConsultants(ctx context.Context) ([]model.User, error)
	ListAvailability(ctx context.Context) (map[string]model.Availability, error)
	SlotTaken(ctx context.Context, consultantID, date, hhmm string) (bool, error)
	ActiveSessionCounts(ctx context.Context) (map[string]int, error)
	CreateSession(ctx context.Context, sess *model.Session) error
}

// Policy names how an eligible consultant is chosen.
type Policy string

const (
	// PolicyFirst picks the first eligible consultant in creation order.
	PolicyFirst Policy = "first"
	// PolicyLeastBooked picks the eligible consultant with the fewest
	// non-cancelled sessions, falling back to creation order on ties.
	PolicyLeastBooked Policy = "least-booked"
)

// ParsePolicy validates a policy name. Empty selects PolicyFirst.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyFirst:
		return PolicyFirst, nil
	case PolicyLeastBooked:
		return PolicyLeastBooked, nil
	}
	return "", fmt.Errorf("unknown assignment policy %q", s)
}

// Outcome classifies a booking attempt. Outcomes double as i18n message IDs.
type Outcome string

const (
	OutcomeBooked         Outcome = "BookingConfirmed"
	OutcomeNoAvailability Outcome = "BookingNoAvailability"
	OutcomeNotLoggedIn    Outcome = "BookingNotLoggedIn"
	OutcomeMissingSlot    Outcome = "BookingMissingSlot"
	OutcomeInvalidDate    Outcome = "BookingInvalidDate"
	OutcomeInvalidTime    Outcome = "BookingInvalidTime"
)

var defaultMessages = map[Outcome]string{
	OutcomeBooked:         "Session confirmed!",
	OutcomeNoAvailability: "At this given time, no counselor is available. Please select another time.",
	OutcomeNotLoggedIn:    "Not logged in",
	OutcomeMissingSlot:    "Please select both a date and a time.",
	OutcomeInvalidDate:    "Date must be in YYYY-MM-DD format.",
	OutcomeInvalidTime:    "Time must be in 24-hour HH:MM format.",
}

// Result is the answer to a booking request. Infeasible and invalid requests
// are results, not errors.
type Result struct {
	Success        bool
	Outcome        Outcome
	Message        string
	ConsultantName string
	Session        *model.Session
}

func result(o Outcome) Result {
	return Result{Success: o == OutcomeBooked, Outcome: o, Message: defaultMessages[o]}
}

var hhmmRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidTime reports whether s is a zero-padded 24-hour HH:MM time.
func ValidTime(s string) bool {
	return hhmmRegex.MatchString(s)
}

// ErrInvalidAvailability is returned by ValidateAvailability.
var ErrInvalidAvailability = errors.New("scheduling: availability needs at least one weekday and HH:MM start before end")

// ValidateAvailability checks that a names only known weekdays, at least one
// of them, and a well-formed window whose start is strictly before its end.
func ValidateAvailability(a model.Availability) error {
	if len(a.Days) == 0 {
		return ErrInvalidAvailability
	}
	for _, d := range a.Days {
		if !model.IsWeekday(d) {
			return fmt.Errorf("%w: unknown day %q", ErrInvalidAvailability, d)
		}
	}
	if !ValidTime(a.StartTime) || !ValidTime(a.EndTime) || a.StartTime >= a.EndTime {
		return fmt.Errorf("%w: window %q-%q", ErrInvalidAvailability, a.StartTime, a.EndTime)
	}
	return nil
}

// Weekday returns the English weekday name of a YYYY-MM-DD date.
func Weekday(date string) (string, error) {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return "", err
	}
	return d.Weekday().String(), nil
}

// Engine books sessions against consultant availability.
type Engine struct {
	store    Store
	locker   lock.Locker
	policy   Policy
	lockWait time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy sets the assignment policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithLockWait bounds how long a request waits for a contended slot.
func WithLockWait(d time.Duration) Option {
	return func(e *Engine) { e.lockWait = d }
}

// NewEngine returns an engine using locker to serialize writers per slot.
func NewEngine(s Store, locker lock.Locker, opts ...Option) *Engine {
	e := &Engine{store: s, locker: locker, policy: PolicyFirst, lockWait: 5 * time.Second}
	for _, o := range opts {
		o(e)
	}
	return e
}

// BookSession assigns the requester a consultant at date and time. The
// returned error is non-nil only for persistence or lock failures.
func (e *Engine) BookSession(ctx context.Context, requester *model.User, date, hhmm string) (Result, error) {
	if requester == nil {
		return result(OutcomeNotLoggedIn), nil
	}
	if date == "" || hhmm == "" {
		return result(OutcomeMissingSlot), nil
	}
	weekday, err := Weekday(date)
	if err != nil {
		return result(OutcomeInvalidDate), nil
	}
	if !ValidTime(hhmm) {
		return result(OutcomeInvalidTime), nil
	}

	candidates, err := e.candidates(ctx, weekday, hhmm)
	if err != nil {
		return Result{}, err
	}

	excluded := make(map[string]bool)
	for {
		c, err := e.pick(ctx, candidates, excluded, date, hhmm)
		if err != nil {
			return Result{}, err
		}
		if c == nil {
			slog.Info("no consultant available", "date", date, "time", hhmm, "weekday", weekday)
			return result(OutcomeNoAvailability), nil
		}

		sess, err := e.book(ctx, requester, c, date, hhmm)
		if errors.Is(err, store.ErrSlotTaken) {
			// Lost the race for this consultant; try the next one.
			excluded[c.ID] = true
			continue
		}
		if err != nil {
			return Result{}, err
		}
		slog.Info("session booked", "session_id", sess.ID, "consultant_id", c.ID, "date", date, "time", hhmm)
		r := result(OutcomeBooked)
		r.ConsultantName = sess.ConsultantName
		r.Session = sess
		return r, nil
	}
}

// candidates returns consultants whose availability covers weekday and hhmm,
// ordered by the engine's policy.
func (e *Engine) candidates(ctx context.Context, weekday, hhmm string) ([]model.User, error) {
	consultants, err := e.store.ListConsultants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list consultants: %w", err)
	}
	avail, err := e.store.ListAvailability(ctx)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	var out []model.User
	for _, c := range consultants {
		a, ok := avail[c.ID]
		if !ok || !a.HasDay(weekday) || !a.Covers(hhmm) {
			continue
		}
		out = append(out, c)
	}
	if e.policy == PolicyLeastBooked && len(out) > 1 {
		counts, err := e.store.ActiveSessionCounts(ctx)
		if err != nil {
			return nil, fmt.Errorf("count sessions: %w", err)
		}
		sort.SliceStable(out, func(i, j int) bool {
			return counts[out[i].ID] < counts[out[j].ID]
		})
	}
	return out, nil
}

// pick returns the first candidate without a conflicting session, or nil.
func (e *Engine) pick(ctx context.Context, candidates []model.User, excluded map[string]bool, date, hhmm string) (*model.User, error) {
	for i := range candidates {
		c := &candidates[i]
		if excluded[c.ID] {
			continue
		}
		taken, err := e.store.SlotTaken(ctx, c.ID, date, hhmm)
		if err != nil {
			return nil, fmt.Errorf("check slot: %w", err)
		}
		if !taken {
			return c, nil
		}
	}
	return nil, nil
}

func slotKey(consultantID, date, hhmm string) string {
	return "slot:" + consultantID + ":" + date + ":" + hhmm
}

// book holds the slot lock while inserting. The store re-checks the conflict
// inside its transaction, so ErrSlotTaken means another writer got there first.
func (e *Engine) book(ctx context.Context, requester, consultant *model.User, date, hhmm string) (*model.Session, error) {
	lctx, cancel := context.WithTimeout(ctx, e.lockWait)
	defer cancel()
	unlock, err := lock.Wait(lctx, e.locker, slotKey(consultant.ID, date, hhmm), lock.DefaultTTL, 25*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	defer unlock()

	sess := &model.Session{
		StudentID:      requester.ID,
		StudentName:    requester.DisplayName(),
		ConsultantID:   consultant.ID,
		ConsultantName: consultant.DisplayName(),
		Date:           date,
		Time:           hhmm,
		Status:         model.SessionScheduled,
	}
	if err := e.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}
