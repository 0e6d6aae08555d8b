package feedback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fastygo/taskpulse/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

type stubSource struct {
	mu    sync.Mutex
	calls int
	fb    domain.Feedback
	err   error
}

func (s *stubSource) GetFeedback(ctx context.Context, userID string, tasks []domain.Task) (domain.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.fb, s.err
}

func good(summary string) domain.Feedback {
	return domain.Feedback{Summary: summary, Insights: []string{"steady"}, Suggestions: []string{"rest"}}
}

func TestShouldUpdate_Rules(t *testing.T) {
	c := NewController(time.Hour, nil)
	tasks := []domain.Task{{ID: "a", UpdatedAt: t0.Add(-time.Minute)}}

	assert.True(t, c.ShouldUpdate(tasks, t0), "first evaluation")

	require.NoError(t, c.Complete(c.Begin(), good("ok"), nil, t0))
	assert.False(t, c.ShouldUpdate(tasks, t0.Add(30*time.Minute)))
	assert.False(t, c.ShouldUpdate(tasks, t0.Add(time.Hour)), "exactly one hour is still fresh")
	assert.True(t, c.ShouldUpdate(tasks, t0.Add(time.Hour+time.Second)))

	touched := []domain.Task{{ID: "a", UpdatedAt: t0.Add(time.Second)}}
	assert.True(t, c.ShouldUpdate(touched, t0.Add(time.Minute)))
}

func TestComplete_SuccessArmsClock(t *testing.T) {
	c := NewController(0, nil)
	gen := c.Begin()
	assert.True(t, c.Snapshot().Loading)
	assert.Equal(t, PhaseLoading, c.Snapshot().Phase)

	require.NoError(t, c.Complete(gen, good("on track"), nil, t0))

	st := c.Snapshot()
	assert.False(t, st.Loading)
	assert.Equal(t, PhaseReady, st.Phase)
	require.NotNil(t, st.Feedback)
	assert.Equal(t, "on track", st.Feedback.Summary)
	assert.Equal(t, t0, st.Feedback.FetchedAt)
	require.NotNil(t, st.LastUpdate)
	assert.Equal(t, t0, *st.LastUpdate)
}

func TestComplete_DegradedDoesNotArmClock(t *testing.T) {
	c := NewController(time.Hour, nil)
	err := c.Complete(c.Begin(), domain.UnavailableFeedback("quota"), nil, t0)

	assert.ErrorIs(t, err, domain.ErrFeedbackDegraded)
	st := c.Snapshot()
	assert.Equal(t, PhaseDegraded, st.Phase)
	assert.Nil(t, st.LastUpdate)
	assert.Contains(t, st.Notice, "unavailable")
	assert.True(t, c.ShouldUpdate(nil, t0.Add(time.Second)))
}

func TestComplete_DegradedAfterSuccessRetriesImmediately(t *testing.T) {
	c := NewController(time.Hour, nil)
	require.NoError(t, c.Complete(c.Begin(), good("fine"), nil, t0))

	err := c.Complete(c.Begin(), domain.Feedback{Summary: "Service Unavailable, try later"}, nil, t0.Add(time.Minute))
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeDegraded))

	st := c.Snapshot()
	assert.True(t, st.Stale)
	assert.Equal(t, "fine", st.Feedback.Summary)
	assert.Equal(t, t0, *st.LastUpdate)
	assert.True(t, c.ShouldUpdate(nil, t0.Add(2*time.Minute)))
}

func TestComplete_TransportFailureKeepsStalePayload(t *testing.T) {
	c := NewController(time.Hour, nil)
	require.NoError(t, c.Complete(c.Begin(), good("fine"), nil, t0))

	err := c.Complete(c.Begin(), domain.Feedback{}, errors.New("dial tcp: timeout"), t0.Add(time.Minute))
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnavailable))

	st := c.Snapshot()
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.True(t, st.Stale)
	require.NotNil(t, st.Feedback)
	assert.Equal(t, "fine", st.Feedback.Summary)
	assert.True(t, c.ShouldUpdate(nil, t0.Add(2*time.Minute)))

	require.NoError(t, c.Complete(c.Begin(), good("recovered"), nil, t0.Add(3*time.Minute)))
	assert.False(t, c.ShouldUpdate(nil, t0.Add(4*time.Minute)))
	assert.False(t, c.Snapshot().Stale)
}

func TestComplete_AppliesInCompletionOrder(t *testing.T) {
	c := NewController(time.Hour, nil)
	a := c.Begin()
	b := c.Begin()

	require.NoError(t, c.Complete(b, good("from B"), nil, t0))
	assert.True(t, c.Snapshot().Loading, "A is still outstanding")

	err := c.Complete(a, good("from A"), nil, t0.Add(time.Second))
	assert.ErrorIs(t, err, ErrStaleResult)

	st := c.Snapshot()
	assert.False(t, st.Loading)
	assert.Equal(t, PhaseReady, st.Phase)
	assert.Equal(t, "from B", st.Feedback.Summary)
	assert.Equal(t, t0, *st.LastUpdate)
}

func TestComplete_OlderFinishingFirstIsApplied(t *testing.T) {
	c := NewController(time.Hour, nil)
	a := c.Begin()
	b := c.Begin()

	require.NoError(t, c.Complete(a, good("from A"), nil, t0))
	require.NoError(t, c.Complete(b, good("from B"), nil, t0.Add(time.Second)))
	assert.Equal(t, "from B", c.Snapshot().Feedback.Summary)
}

func TestComplete_OutcomeWaitsForOutstandingFetches(t *testing.T) {
	tests := []struct {
		name  string
		fb    domain.Feedback
		err   error
		phase Phase
	}{
		{"transport failure", domain.Feedback{}, errors.New("connection reset"), PhaseFailed},
		{"degraded", domain.UnavailableFeedback("quota"), nil, PhaseDegraded},
		{"success", good("from B"), nil, PhaseReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(time.Hour, nil)
			a := c.Begin()
			b := c.Begin()

			_ = c.Complete(b, tt.fb, tt.err, t0)
			st := c.Snapshot()
			assert.True(t, st.Loading)
			assert.Equal(t, PhaseLoading, st.Phase, "A is still outstanding")

			assert.ErrorIs(t, c.Complete(a, good("from A"), nil, t0.Add(time.Second)), ErrStaleResult)
			st = c.Snapshot()
			assert.False(t, st.Loading)
			assert.Equal(t, tt.phase, st.Phase, "superseded fetch keeps the applied outcome")
		})
	}
}

type gatedSource struct {
	release map[string]chan struct{}
	started chan string
}

func (g *gatedSource) GetFeedback(ctx context.Context, userID string, tasks []domain.Task) (domain.Feedback, error) {
	g.started <- userID
	select {
	case <-g.release[userID]:
		return good("from " + userID), nil
	case <-ctx.Done():
		return domain.Feedback{}, ctx.Err()
	}
}

func TestRefresh_ConcurrentFetchesResolveByCompletion(t *testing.T) {
	c := NewController(time.Hour, nil)
	src := &gatedSource{
		release: map[string]chan struct{}{"A": make(chan struct{}), "B": make(chan struct{})},
		started: make(chan string),
	}
	clock := func() time.Time { return t0 }

	var wg sync.WaitGroup
	errs := make(map[string]error)
	var mu sync.Mutex
	run := func(label string) {
		defer wg.Done()
		_, _, err := c.Refresh(context.Background(), src, label, nil, clock, true)
		mu.Lock()
		errs[label] = err
		mu.Unlock()
	}

	wg.Add(1)
	go run("A")
	require.Equal(t, "A", <-src.started)
	wg.Add(1)
	go run("B")
	require.Equal(t, "B", <-src.started)

	close(src.release["B"])
	require.Eventually(t, func() bool {
		st := c.Snapshot()
		return st.Feedback != nil && st.Feedback.Summary == "from B"
	}, time.Second, time.Millisecond)

	close(src.release["A"])
	wg.Wait()

	assert.NoError(t, errs["B"])
	assert.ErrorIs(t, errs["A"], ErrStaleResult)
	assert.Equal(t, "from B", c.Snapshot().Feedback.Summary)
	assert.False(t, c.Snapshot().Loading)
}

func TestRefresh_SkipsWhenFresh(t *testing.T) {
	c := NewController(time.Hour, nil)
	src := &stubSource{fb: good("hello")}
	clock := func() time.Time { return t0 }

	st, fetched, err := c.Refresh(context.Background(), src, "u", nil, clock, false)
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Equal(t, "hello", st.Feedback.Summary)

	_, fetched, err = c.Refresh(context.Background(), src, "u", nil, clock, false)
	require.NoError(t, err)
	assert.False(t, fetched)
	assert.Equal(t, 1, src.calls)
}

func TestRestore(t *testing.T) {
	c := NewController(time.Hour, nil)
	c.Restore(domain.Feedback{Summary: "cached", FetchedAt: t0})

	assert.False(t, c.ShouldUpdate(nil, t0.Add(time.Minute)))
	assert.Equal(t, PhaseReady, c.Snapshot().Phase)

	c.Restore(domain.Feedback{Summary: "ignored", FetchedAt: t0.Add(time.Hour)})
	assert.Equal(t, "cached", c.Snapshot().Feedback.Summary)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	a, created := r.For("alice")
	assert.True(t, created)
	again, created := r.For("alice")
	assert.False(t, created)
	assert.Same(t, a, again)

	b, _ := r.For("bob")
	assert.NotSame(t, a, b)

	r.Forget("alice")
	fresh, created := r.For("alice")
	assert.True(t, created)
	assert.NotSame(t, a, fresh)
}
