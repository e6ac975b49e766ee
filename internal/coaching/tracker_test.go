package coaching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/psychx/careercoach/internal/entitlement"
	"github.com/psychx/careercoach/internal/lock"
	"github.com/psychx/careercoach/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memRepo is an in-memory Repository that stores deep copies via the
// same encode/decode boundary a real store has.
type memRepo struct {
	mu       sync.Mutex
	roadmaps map[string]model.RoadmapEntry
	trackers []model.ProgressTracker
	active   map[string]int
	seq      int
	updates  int
}

func newMemRepo() *memRepo {
	return &memRepo{roadmaps: make(map[string]model.RoadmapEntry), active: make(map[string]int)}
}

func clonePlan(p model.WeeklyPlan) model.WeeklyPlan {
	p.Tasks = append([]model.WeeklyTask(nil), p.Tasks...)
	if p.Quiz != nil {
		q := *p.Quiz
		q.Questions = append([]model.QuizQuestion(nil), q.Questions...)
		q.UserAnswers = append([]int(nil), q.UserAnswers...)
		p.Quiz = &q
	}
	return p
}

func cloneTracker(t model.ProgressTracker) model.ProgressTracker {
	h := make([]model.WeeklyPlan, 0, len(t.History))
	for _, w := range t.History {
		h = append(h, clonePlan(w))
	}
	t.History = h
	t.CurrentWeek = clonePlan(t.CurrentWeek)
	return t
}

func (r *memRepo) CreateRoadmap(_ context.Context, e *model.RoadmapEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	r.roadmaps[e.ID] = *e
	return nil
}

func (r *memRepo) GetRoadmap(_ context.Context, id string) (*model.RoadmapEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.roadmaps[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *memRepo) CountRoadmapsByUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.roadmaps {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) CreateTracker(_ context.Context, t *model.ProgressTracker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.trackers {
		if existing.UserID == t.UserID && existing.RoadmapID == t.RoadmapID {
			return errors.New("duplicate tracker")
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	r.trackers = append(r.trackers, cloneTracker(*t))
	r.seq++
	r.active[t.ID] = r.seq
	return nil
}

func (r *memRepo) ActivateTracker(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[id]; !ok {
		return errors.New("not found")
	}
	r.seq++
	r.active[id] = r.seq
	return nil
}

func (r *memRepo) GetTrackerByRoadmap(_ context.Context, userID, roadmapID string) (*model.ProgressTracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.trackers {
		if t.UserID == userID && t.RoadmapID == roadmapID {
			c := cloneTracker(t)
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListTrackersByUser(_ context.Context, userID string) ([]model.ProgressTracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ProgressTracker
	for _, t := range r.trackers {
		if t.UserID == userID {
			out = append(out, cloneTracker(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.active[out[i].ID] > r.active[out[j].ID] })
	return out, nil
}

func (r *memRepo) UpdateTracker(_ context.Context, t *model.ProgressTracker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.trackers {
		if r.trackers[i].ID == t.ID {
			r.trackers[i] = cloneTracker(*t)
			r.updates++
			return nil
		}
	}
	return errors.New("not found")
}

func (r *memRepo) GetActiveTracker(_ context.Context, userID string) (*model.ProgressTracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *model.ProgressTracker
	for i, t := range r.trackers {
		if t.UserID == userID && (best == nil || r.active[t.ID] > r.active[best.ID]) {
			best = &r.trackers[i]
		}
	}
	if best == nil {
		return nil, nil
	}
	c := cloneTracker(*best)
	return &c, nil
}

// stubGen is a deterministic Generator.
type stubGen struct {
	mu       sync.Mutex
	planErr  error
	quizErr  error
	requests []model.PlanRequest
	quizzes  [][]string
	block    chan struct{}
	entered  chan struct{}
}

func (g *stubGen) GenerateWeeklyPlan(_ context.Context, req model.PlanRequest) (*model.WeeklyPlan, error) {
	if g.block != nil {
		g.entered <- struct{}{}
		<-g.block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.planErr != nil {
		return nil, g.planErr
	}
	return &model.WeeklyPlan{
		WeekNumber: req.WeekNumber,
		Title:      fmt.Sprintf("Week %d (%s)", req.WeekNumber, req.Directive),
		Tasks: []model.WeeklyTask{
			{ID: fmt.Sprintf("w%d-1", req.WeekNumber), Text: "Read the SQL primer", Category: model.CategoryLearning},
			{ID: fmt.Sprintf("w%d-2", req.WeekNumber), Text: "Write 5 queries", Category: model.CategoryPractice},
			{ID: fmt.Sprintf("w%d-3", req.WeekNumber), Text: "Message a mentor", Category: model.CategoryNetworking},
			{ID: fmt.Sprintf("w%d-4", req.WeekNumber), Text: "Watch a joins video", Category: model.CategoryLearning},
			{ID: fmt.Sprintf("w%d-5", req.WeekNumber), Text: "Solve 3 puzzles", Category: model.CategoryPractice},
		},
		Status: model.PlanActive,
	}, nil
}

func (g *stubGen) GenerateQuiz(_ context.Context, texts []string) (*model.WeeklyQuiz, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quizzes = append(g.quizzes, texts)
	if g.quizErr != nil {
		return nil, g.quizErr
	}
	q := &model.WeeklyQuiz{}
	for i := range 3 {
		q.Questions = append(q.Questions, model.QuizQuestion{
			ID: i + 1, Text: fmt.Sprintf("Q%d", i+1), Options: []string{"a", "b", "c", "d"}, CorrectOptionIndex: i,
		})
	}
	return q, nil
}

func (g *stubGen) GenerateRoadmap(_ context.Context, req model.RoadmapRequest) ([]model.RoadmapStep, error) {
	return []model.RoadmapStep{
		{Phase: "Foundation", Duration: "6 Months", Milestones: []string{"Learn SQL"}},
		{Phase: "Projects", Duration: "6 Months", Milestones: []string{"Build dashboards"}},
	}, nil
}

func (g *stubGen) lastRequest() model.PlanRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

type harness struct {
	svc     *Service
	repo    *memRepo
	gen     *stubGen
	learner *model.User
	roadmap *model.RoadmapEntry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := newMemRepo()
	gen := &stubGen{}
	svc := NewService(repo, gen, lock.NewLocal(), time.Minute)
	svc.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }
	u := &model.User{ID: "u1", FirstName: "Riya", Role: model.UserRoleLearner, Tier: model.TierStandard, CurrentClass: "12"}
	r, err := svc.CreateRoadmap(context.Background(), u, "Data Analyst", 4)
	require.NoError(t, err)
	return &harness{svc: svc, repo: repo, gen: gen, learner: u, roadmap: r}
}

func (h *harness) start(t *testing.T) *model.ProgressTracker {
	t.Helper()
	tr, err := h.svc.InitTracker(context.Background(), h.learner, h.roadmap.ID)
	require.NoError(t, err)
	return tr
}

func (h *harness) complete(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := h.svc.ToggleTask(context.Background(), h.learner.ID, id)
		require.NoError(t, err)
	}
}

func TestCreateRoadmap(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "2026-10-16", h.roadmap.Date)
	assert.Len(t, h.roadmap.Steps, 2)
	assert.Equal(t, "u1", h.roadmap.UserID)

	_, err := h.svc.CreateRoadmap(context.Background(), h.learner, "  ", 4)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	free := &model.User{ID: "u2", Role: model.UserRoleLearner, Tier: model.TierFree}
	_, err = h.svc.CreateRoadmap(context.Background(), free, "Pilot", 4)
	var d entitlement.Decision
	require.ErrorAs(t, err, &d)
	assert.Equal(t, entitlement.ReasonUpgradeRequired, d.Reason)
}

func TestInitTracker(t *testing.T) {
	h := newHarness(t)
	tr := h.start(t)

	assert.Equal(t, 0, tr.CurrentPhaseIndex)
	assert.Equal(t, 0, tr.TotalWeeksCompleted)
	assert.Equal(t, 0, tr.OverallProgressScore)
	assert.Empty(t, tr.History)
	assert.Equal(t, 1, tr.CurrentWeek.WeekNumber)
	assert.Equal(t, model.PlanActive, tr.CurrentWeek.Status)
	assert.Equal(t, "Data Analyst", tr.CareerTitle)

	req := h.gen.lastRequest()
	assert.Equal(t, model.DirectiveFirstWeek, req.Directive)
	assert.Equal(t, "Foundation", req.Phase)
	assert.Nil(t, req.Previous)

	_, err := h.svc.InitTracker(context.Background(), h.learner, h.roadmap.ID)
	assert.ErrorIs(t, err, ErrTrackerExists)
}

func TestInitTrackerFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	free := &model.User{ID: "u1", Role: model.UserRoleLearner, Tier: model.TierFree}
	_, err := h.svc.InitTracker(ctx, free, h.roadmap.ID)
	var d entitlement.Decision
	assert.ErrorAs(t, err, &d)

	_, err = h.svc.InitTracker(ctx, h.learner, "missing")
	assert.ErrorIs(t, err, ErrRoadmapNotFound)

	other := &model.User{ID: "u9", Role: model.UserRoleLearner, Tier: model.TierPremium}
	_, err = h.svc.InitTracker(ctx, other, h.roadmap.ID)
	assert.ErrorIs(t, err, ErrRoadmapNotFound, "roadmaps are private to their owner")

	empty := &model.RoadmapEntry{UserID: h.learner.ID, CareerTitle: "x"}
	require.NoError(t, h.repo.CreateRoadmap(ctx, empty))
	_, err = h.svc.InitTracker(ctx, h.learner, empty.ID)
	assert.ErrorIs(t, err, ErrEmptyRoadmap)

	hollow := &model.RoadmapEntry{UserID: h.learner.ID, CareerTitle: "x", Steps: []model.RoadmapStep{
		{Phase: "Orientation"}, {Phase: "Later"},
	}}
	require.NoError(t, h.repo.CreateRoadmap(ctx, hollow))
	_, err = h.svc.InitTracker(ctx, h.learner, hollow.ID)
	assert.ErrorIs(t, err, ErrEmptyRoadmap)

	h.gen.planErr = errors.New("upstream down")
	_, err = h.svc.InitTracker(ctx, h.learner, h.roadmap.ID)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	none, err := h.repo.GetActiveTracker(ctx, h.learner.ID)
	require.NoError(t, err)
	assert.Nil(t, none, "failed generation must not create a tracker")
}

func TestInitTrackerUsesAnyPhaseWithContent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	late := &model.RoadmapEntry{UserID: h.learner.ID, CareerTitle: "Chef", Steps: []model.RoadmapStep{
		{Phase: "Orientation"},
		{Phase: "Kitchen Basics", Milestones: []string{"Learn knife skills"}},
	}}
	require.NoError(t, h.repo.CreateRoadmap(ctx, late))

	tr, err := h.svc.InitTracker(ctx, h.learner, late.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, tr.CurrentPhaseIndex)
	assert.Equal(t, "Orientation", h.gen.lastRequest().Phase)
}

func TestTrackersPerRoadmap(t *testing.T) {
	h := newHarness(t)
	first := h.start(t)
	ctx := context.Background()

	second := &model.RoadmapEntry{UserID: h.learner.ID, CareerTitle: "Chef", Steps: []model.RoadmapStep{
		{Phase: "Kitchen Basics", Milestones: []string{"Learn knife skills"}},
	}}
	require.NoError(t, h.repo.CreateRoadmap(ctx, second))

	tr, err := h.svc.InitTracker(ctx, h.learner, second.ID)
	require.NoError(t, err, "a second roadmap gets its own tracker")
	assert.Equal(t, "Chef", tr.CareerTitle)

	active, err := h.svc.Tracker(ctx, h.learner.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.ID, active.ID, "the newest tracker becomes active")

	_, err = h.svc.InitTracker(ctx, h.learner, second.ID)
	assert.ErrorIs(t, err, ErrTrackerExists)
	_, err = h.svc.InitTracker(ctx, h.learner, h.roadmap.ID)
	assert.ErrorIs(t, err, ErrTrackerExists)

	back, err := h.svc.ActivateTracker(ctx, h.learner.ID, h.roadmap.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, back.ID)
	active, err = h.svc.Tracker(ctx, h.learner.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	list, err := h.svc.Trackers(ctx, h.learner.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)

	_, err = h.svc.ActivateTracker(ctx, h.learner.ID, "missing")
	assert.ErrorIs(t, err, ErrNoTracker)
}

func TestToggleTask(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	ctx := context.Background()

	tr, err := h.svc.ToggleTask(ctx, h.learner.ID, "w1-2")
	require.NoError(t, err)
	assert.True(t, tr.CurrentWeek.Tasks[1].IsCompleted)
	assert.Empty(t, tr.History)
	assert.Equal(t, 0, tr.OverallProgressScore)

	tr, err = h.svc.ToggleTask(ctx, h.learner.ID, "w1-2")
	require.NoError(t, err)
	assert.False(t, tr.CurrentWeek.Tasks[1].IsCompleted)

	_, err = h.svc.ToggleTask(ctx, h.learner.ID, "nope")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = h.svc.ToggleTask(ctx, "stranger", "w1-1")
	assert.ErrorIs(t, err, ErrNoTracker)
}

func TestSubmitWeekWithoutLearningSkipsQuiz(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.complete(t, "w1-2", "w1-3", "w1-5")

	res, err := h.svc.SubmitWeek(context.Background(), h.learner.ID)
	require.NoError(t, err)
	assert.Nil(t, res.PendingQuiz)
	assert.Empty(t, h.gen.quizzes)

	tr := res.Tracker
	require.Len(t, tr.History, 1)
	assert.Equal(t, 60, tr.History[0].CompletionRate)
	assert.Equal(t, model.PlanCompleted, tr.History[0].Status)
	assert.Nil(t, tr.History[0].Quiz)
	assert.Equal(t, 1, tr.TotalWeeksCompleted)
	assert.Equal(t, 5, tr.OverallProgressScore)
	assert.Equal(t, 2, tr.CurrentWeek.WeekNumber)

	req := h.gen.lastRequest()
	assert.Equal(t, model.DirectiveStandard, req.Directive)
	assert.Equal(t, 2, req.WeekNumber)
	require.NotNil(t, req.Previous)
	assert.Equal(t, 60, req.Previous.CompletionRate)
}

func TestSubmitWeekNothingCompletedStillAdvances(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	res, err := h.svc.SubmitWeek(context.Background(), h.learner.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Tracker.History[0].CompletionRate)
	assert.Equal(t, 0, res.Tracker.OverallProgressScore)
	assert.Equal(t, model.DirectiveReduced, h.gen.lastRequest().Directive)
}

func TestSubmitWeekQuizFlow(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	ctx := context.Background()
	h.complete(t, "w1-1", "w1-2", "w1-3", "w1-4", "w1-5")

	res, err := h.svc.SubmitWeek(ctx, h.learner.ID)
	require.NoError(t, err)
	require.NotNil(t, res.PendingQuiz)
	assert.Len(t, res.PendingQuiz.Questions, 3)
	assert.Equal(t, []string{"Read the SQL primer", "Watch a joins video"}, h.gen.quizzes[0],
		"quiz covers only completed Learning tasks")
	assert.Empty(t, res.Tracker.History, "week is not finalized until the quiz is answered")

	again, err := h.svc.SubmitWeek(ctx, h.learner.ID)
	require.NoError(t, err)
	assert.Equal(t, res.PendingQuiz.Questions, again.PendingQuiz.Questions)
	assert.Len(t, h.gen.quizzes, 1, "resubmitting returns the pending quiz")

	_, err = h.svc.ToggleTask(ctx, h.learner.ID, "w1-1")
	assert.ErrorIs(t, err, ErrQuizPending)

	_, err = h.svc.SubmitQuiz(ctx, h.learner.ID, []int{0, 1})
	assert.ErrorIs(t, err, ErrQuizIncomplete)
	_, err = h.svc.SubmitQuiz(ctx, h.learner.ID, []int{0, 1, 7})
	assert.ErrorIs(t, err, ErrInvalidAnswer)

	// Correct answers are 0, 1, 2; one right.
	tr, err := h.svc.SubmitQuiz(ctx, h.learner.ID, []int{0, 0, 0})
	require.NoError(t, err)
	require.Len(t, tr.History, 1)
	q := tr.History[0].Quiz
	require.NotNil(t, q)
	assert.True(t, q.Taken())
	assert.Equal(t, 1, q.Score)
	assert.False(t, q.Passed)
	assert.Equal(t, 100, tr.History[0].CompletionRate)
	assert.Equal(t, 10, tr.OverallProgressScore, "completion bonus only")
	assert.Equal(t, model.DirectiveRemedial, h.gen.lastRequest().Directive)
	assert.Nil(t, tr.CurrentWeek.Quiz)

	_, err = h.svc.SubmitQuiz(ctx, h.learner.ID, []int{0, 1, 2})
	assert.ErrorIs(t, err, ErrNoQuizPending)
}

func TestPerfectWeekEarnsTwenty(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	ctx := context.Background()
	h.complete(t, "w1-1", "w1-2", "w1-3", "w1-4", "w1-5")

	_, err := h.svc.SubmitWeek(ctx, h.learner.ID)
	require.NoError(t, err)
	tr, err := h.svc.SubmitQuiz(ctx, h.learner.ID, []int{0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, 20, tr.OverallProgressScore)
	assert.Equal(t, model.DirectiveChallenge, h.gen.lastRequest().Directive)
}

func TestHistoryAppendOnlyAndScoreMonotonic(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	ctx := context.Background()

	prevScore := 0
	snapshot := []model.WeeklyPlan{}
	patterns := [][]int{{2, 3}, {}, {2, 3, 5}, {1, 2, 3, 4, 5}, {3}}
	for week, pattern := range patterns {
		n := week + 1
		for _, i := range pattern {
			h.complete(t, fmt.Sprintf("w%d-%d", n, i))
		}
		res, err := h.svc.SubmitWeek(ctx, h.learner.ID)
		require.NoError(t, err)
		tr := res.Tracker
		if res.PendingQuiz != nil {
			tr, err = h.svc.SubmitQuiz(ctx, h.learner.ID, []int{0, 1, 2})
			require.NoError(t, err)
		}

		require.Len(t, tr.History, len(snapshot)+1)
		for i := range snapshot {
			assert.Equal(t, snapshot[i], tr.History[i], "week %d changed after it was finalized", i+1)
		}
		assert.GreaterOrEqual(t, tr.OverallProgressScore, prevScore)
		assert.Equal(t, n, tr.TotalWeeksCompleted)
		assert.Equal(t, n+1, tr.CurrentWeek.WeekNumber)
		for i, w := range tr.History {
			assert.Equal(t, i+1, w.WeekNumber)
		}

		prevScore = tr.OverallProgressScore
		snapshot = append([]model.WeeklyPlan(nil), tr.History...)
	}
}

func TestGenerationFailureLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	ctx := context.Background()
	h.complete(t, "w1-1", "w1-2")

	before, err := h.svc.Tracker(ctx, h.learner.ID)
	require.NoError(t, err)
	updates := h.repo.updates

	h.gen.quizErr = errors.New("timeout")
	_, err = h.svc.SubmitWeek(ctx, h.learner.ID)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	after, _ := h.svc.Tracker(ctx, h.learner.ID)
	assert.Equal(t, before, after)
	assert.Equal(t, updates, h.repo.updates)

	h.gen.quizErr = nil
	_, err = h.svc.SubmitWeek(ctx, h.learner.ID)
	require.NoError(t, err)
	pending, _ := h.svc.Tracker(ctx, h.learner.ID)

	h.gen.planErr = errors.New("malformed")
	_, err = h.svc.SubmitQuiz(ctx, h.learner.ID, []int{0, 1, 2})
	assert.ErrorIs(t, err, ErrGenerationFailed)
	after, _ = h.svc.Tracker(ctx, h.learner.ID)
	assert.Equal(t, pending, after, "quiz stays pending and tasks keep their state")
	assert.True(t, after.CurrentWeek.Tasks[0].IsCompleted)

	h.gen.planErr = nil
	tr, err := h.svc.SubmitQuiz(ctx, h.learner.ID, []int{0, 1, 2})
	require.NoError(t, err)
	assert.Len(t, tr.History, 1)
}

func TestConcurrentSubmitIsRejected(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	ctx := context.Background()

	h.gen.block = make(chan struct{})
	h.gen.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.SubmitWeek(ctx, h.learner.ID)
		done <- err
	}()
	<-h.gen.entered

	_, err := h.svc.SubmitWeek(ctx, h.learner.ID)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = h.svc.ToggleTask(ctx, h.learner.ID, "w1-1")
	assert.ErrorIs(t, err, ErrBusy)

	close(h.gen.block)
	require.NoError(t, <-done)
	h.gen.block = nil

	tr, err := h.svc.Tracker(ctx, h.learner.ID)
	require.NoError(t, err)
	assert.Len(t, tr.History, 1, "only one submission finalized")
}

func TestAdvancePhase(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	ctx := context.Background()

	tr, err := h.svc.AdvancePhase(ctx, h.learner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.CurrentPhaseIndex)

	tr, err = h.svc.AdvancePhase(ctx, h.learner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.CurrentPhaseIndex, "clamped at last phase")

	_, err = h.svc.SubmitWeek(ctx, h.learner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Projects", h.gen.lastRequest().Phase)
}

func TestPhaseNameFallsBack(t *testing.T) {
	h := newHarness(t)
	tr := h.start(t)
	tr.CurrentPhaseIndex = 9
	name, err := h.svc.phaseName(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, DefaultPhaseName, name)
}
