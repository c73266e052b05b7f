package proposals

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"staffops/internal/modal"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func addEmployee(name string) modal.Payload {
	return modal.AddEmployee{Employee: modal.Employee{Name: name, Role: "Guard", Phone: "555-0100"}}
}

func TestProposeThenRejectNeverExecutes(t *testing.T) {
	m := NewManager()
	a, err := m.Propose("acme", "u1", addEmployee("Dana Reyes"), nil)
	require.NoError(t, err)
	assert.Equal(t, modal.StatusPending, a.Status)
	assert.Equal(t, modal.ActionAddEmployee, a.Type)

	got, err := m.Resolve(a.ID, modal.OutcomeRejected)
	require.NoError(t, err)
	assert.Equal(t, modal.StatusRejected, got.Status)
	require.NotNil(t, got.ProcessedAt)

	_, err = m.MarkExecuted(a.ID)
	assert.ErrorIs(t, err, modal.ErrNotApproved)
	stored, _ := m.Get(a.ID)
	assert.Equal(t, modal.StatusRejected, stored.Status)
	assert.Nil(t, stored.ExecutedAt)
}

func TestResolveNonPendingFails(t *testing.T) {
	m := NewManager()
	a, err := m.Propose("acme", "u1", addEmployee("Dana Reyes"), nil)
	require.NoError(t, err)

	_, err = m.Resolve(a.ID, modal.OutcomeApproved)
	require.NoError(t, err)
	_, err = m.Resolve(a.ID, modal.OutcomeApproved)
	assert.ErrorIs(t, err, modal.ErrNotPending)
	_, err = m.Resolve("missing", modal.OutcomeRejected)
	assert.ErrorIs(t, err, modal.ErrNotPending)
}

func TestConcurrentResolutionsResolveOnce(t *testing.T) {
	m := NewManager()
	a, err := m.Propose("acme", "u1", addEmployee("Dana Reyes"), nil)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Resolve(a.ID, modal.OutcomeApproved); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMostRecentPendingIsPerOwner(t *testing.T) {
	c := newClock()
	m := NewManager(WithClock(c.Now))

	first, err := m.Propose("acme", "u1", addEmployee("A"), nil)
	require.NoError(t, err)
	c.Advance(time.Second)
	other, err := m.Propose("acme", "u2", addEmployee("B"), nil)
	require.NoError(t, err)

	got, ok := m.MostRecentPending("u1")
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)

	got, ok = m.MostRecentPending("")
	require.True(t, ok)
	assert.Equal(t, other.ID, got.ID)

	_, ok = m.MostRecentPending("nobody")
	assert.False(t, ok)
}

func TestMostRecentPendingBreaksTimestampTiesByInsertion(t *testing.T) {
	c := newClock()
	m := NewManager(WithClock(c.Now))
	_, err := m.Propose("acme", "u1", addEmployee("A"), nil)
	require.NoError(t, err)
	second, err := m.Propose("acme", "u1", addEmployee("B"), nil)
	require.NoError(t, err)

	got, ok := m.MostRecentPending("u1")
	require.True(t, ok)
	assert.Equal(t, second.ID, got.ID)
}

func TestSupersedeKeepsOwnerAndCompany(t *testing.T) {
	m := NewManager()
	a, err := m.Propose("acme", "u1", addEmployee("Dana Reyes"), nil)
	require.NoError(t, err)

	old, repl, err := m.Supersede(a.ID, addEmployee("Dana Reyes-Ortiz"), nil)
	require.NoError(t, err)
	assert.Equal(t, modal.StatusCorrected, old.Status)
	assert.Equal(t, repl.ID, old.SupersededBy)
	assert.Equal(t, modal.StatusPending, repl.Status)
	assert.Equal(t, "acme", repl.CompanyID)
	assert.Equal(t, "u1", repl.OwnerID)

	_, _, err = m.Supersede(a.ID, addEmployee("again"), nil)
	assert.ErrorIs(t, err, modal.ErrNotPending)
}

func TestProposeRejectsInvalidPayload(t *testing.T) {
	m := NewManager()
	_, err := m.Propose("acme", "u1", modal.AddEmployee{}, nil)
	assert.ErrorIs(t, err, modal.ErrInvalidPayload)
	assert.Empty(t, m.Pending(""))
}

func TestExpireAndSweep(t *testing.T) {
	c := newClock()
	m := NewManager(WithClock(c.Now), WithGracePeriod(time.Minute))

	stale, err := m.Propose("acme", "u1", addEmployee("A"), nil)
	require.NoError(t, err)
	c.Advance(2 * time.Hour)
	fresh, err := m.Propose("acme", "u1", addEmployee("B"), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, m.Expire(time.Hour))
	got, _ := m.Get(stale.ID)
	assert.Equal(t, modal.StatusExpired, got.Status)
	got, _ = m.Get(fresh.ID)
	assert.Equal(t, modal.StatusPending, got.Status)

	assert.Equal(t, 0, m.Sweep())
	c.Advance(2 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	_, ok := m.Get(stale.ID)
	assert.False(t, ok)
}

func TestMarkFailedIsTerminalAndSwept(t *testing.T) {
	c := newClock()
	m := NewManager(WithClock(c.Now), WithGracePeriod(time.Minute))
	a, err := m.Propose("acme", "u1", addEmployee("A"), nil)
	require.NoError(t, err)

	_, err = m.MarkFailed(a.ID, "entity not found")
	assert.ErrorIs(t, err, modal.ErrNotApproved)

	_, err = m.Resolve(a.ID, modal.OutcomeApproved)
	require.NoError(t, err)
	c.Advance(time.Hour)
	got, err := m.MarkFailed(a.ID, "entity not found")
	require.NoError(t, err)
	assert.Equal(t, modal.StatusFailed, got.Status)
	assert.Equal(t, "entity not found", got.Failure)

	handled, ok := m.RecentlyHandled("u1")
	require.True(t, ok)
	assert.Equal(t, a.ID, handled.ID)

	c.Advance(2 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	_, ok = m.Get(a.ID)
	assert.False(t, ok)
}

func TestExpireAgesOutStuckApprovedActions(t *testing.T) {
	c := newClock()
	m := NewManager(WithClock(c.Now), WithGracePeriod(time.Minute))
	a, err := m.Propose("acme", "u1", addEmployee("A"), nil)
	require.NoError(t, err)
	_, err = m.Resolve(a.ID, modal.OutcomeApproved)
	require.NoError(t, err)

	c.Advance(30 * 24 * time.Hour)
	assert.Equal(t, 0, m.Sweep())
	assert.Equal(t, 1, m.Expire(24*time.Hour))
	got, _ := m.Get(a.ID)
	assert.Equal(t, modal.StatusExpired, got.Status)

	c.Advance(2 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
}

func TestRecentlyHandledWithinGrace(t *testing.T) {
	c := newClock()
	m := NewManager(WithClock(c.Now), WithGracePeriod(time.Minute))
	a, err := m.Propose("acme", "u1", addEmployee("A"), nil)
	require.NoError(t, err)
	_, err = m.Resolve(a.ID, modal.OutcomeApproved)
	require.NoError(t, err)

	_, ok := m.RecentlyHandled("u1")
	assert.False(t, ok, "approved but not executed is not finished")

	_, err = m.MarkExecuted(a.ID)
	require.NoError(t, err)
	got, ok := m.RecentlyHandled("u1")
	require.True(t, ok)
	assert.Equal(t, a.ID, got.ID)

	c.Advance(2 * time.Minute)
	_, ok = m.RecentlyHandled("u1")
	assert.False(t, ok)
}

func TestTransitionsAreAuditedAndLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := NewManager(WithLogger(zap.New(core)))

	a, err := m.Propose("acme", "u1", addEmployee("A"), nil)
	require.NoError(t, err)
	_, err = m.Resolve(a.ID, modal.OutcomeApproved)
	require.NoError(t, err)
	_, err = m.MarkExecuted(a.ID)
	require.NoError(t, err)

	var kinds []string
	for _, ev := range m.Audit(a.ID) {
		kinds = append(kinds, ev.Kind)
		assert.False(t, ev.At.IsZero())
	}
	assert.Equal(t, []string{"PROPOSED", "RESOLVED", "EXECUTED"}, kinds)

	entries := logs.FilterField(zap.String("actionID", a.ID)).All()
	assert.Len(t, entries, 3)
}

func TestRunStopsOnCancel(t *testing.T) {
	m := NewManager()
	_, err := m.Propose("acme", "u1", addEmployee("A"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, time.Millisecond, time.Nanosecond) }()

	require.Eventually(t, func() bool {
		_, ok := m.MostRecentPending("u1")
		return !ok
	}, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
