// Package proposals owns the lifecycle of pending actions.
//
// A Manager is the single writer for its actions: every read and transition
// goes through its mutex, and every transition out of pending is refused once
// the action is terminal. Callers share one Manager by injection.
package proposals

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"staffops/internal/modal"
)

// DefaultGracePeriod is how long a finished action stays visible so that a
// late duplicate reply can be recognized as already handled.
const DefaultGracePeriod = 5 * time.Minute

const maxAuditEvents = 1000

type entry struct {
	action modal.PendingAction
	seq    uint64
}

type Manager struct {
	mu      sync.Mutex
	actions map[string]*entry
	seq     uint64
	audit   []modal.AuditEvent

	grace  time.Duration
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithGracePeriod(d time.Duration) Option {
	return func(m *Manager) { m.grace = d }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		actions: make(map[string]*entry),
		grace:   DefaultGracePeriod,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Propose registers a new pending action for payload.
func (m *Manager) Propose(companyID, ownerID string, payload modal.Payload, derived *modal.Derived) (modal.PendingAction, error) {
	if payload == nil {
		return modal.PendingAction{}, fmt.Errorf("%w: payload is required", modal.ErrInvalidPayload)
	}
	if err := payload.Validate(); err != nil {
		return modal.PendingAction{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	a := modal.PendingAction{
		ID:        uuid.NewString(),
		Type:      payload.ActionType(),
		Payload:   payload,
		Derived:   derived,
		Status:    modal.StatusPending,
		CompanyID: companyID,
		OwnerID:   ownerID,
		CreatedAt: m.now().UTC(),
	}
	m.insertLocked(a)
	m.appendAuditLocked(a.ID, "PROPOSED", modal.DescribePayload(payload), map[string]any{
		"actionType": string(a.Type),
		"ownerID":    ownerID,
		"companyID":  companyID,
	})
	m.logger.Info("action proposed",
		zap.String("actionID", a.ID),
		zap.String("actionType", string(a.Type)),
		zap.String("ownerID", ownerID),
		zap.String("companyID", companyID))
	return a, nil
}

func (m *Manager) insertLocked(a modal.PendingAction) {
	m.seq++
	m.actions[a.ID] = &entry{action: a, seq: m.seq}
}

func (m *Manager) Get(id string) (modal.PendingAction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.actions[id]
	if !ok {
		return modal.PendingAction{}, false
	}
	return e.action, true
}

// MostRecentPending returns the latest pending action of ownerID. An empty
// ownerID matches every owner.
func (m *Manager) MostRecentPending(ownerID string) (modal.PendingAction, bool) {
	list := m.Pending(ownerID)
	if len(list) == 0 {
		return modal.PendingAction{}, false
	}
	return list[0], true
}

// Pending lists pending actions of ownerID, newest first.
func (m *Manager) Pending(ownerID string) []modal.PendingAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectLocked(func(a modal.PendingAction) bool {
		return a.Status == modal.StatusPending && (ownerID == "" || a.OwnerID == ownerID)
	})
}

func (m *Manager) selectLocked(keep func(modal.PendingAction) bool) []modal.PendingAction {
	var hits []*entry
	for _, e := range m.actions {
		if keep(e.action) {
			hits = append(hits, e)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		ai, aj := hits[i].action, hits[j].action
		if !ai.CreatedAt.Equal(aj.CreatedAt) {
			return ai.CreatedAt.After(aj.CreatedAt)
		}
		return hits[i].seq > hits[j].seq
	})
	out := make([]modal.PendingAction, len(hits))
	for i, e := range hits {
		out[i] = e.action
	}
	return out
}

// Resolve applies a human decision. Unknown and terminal ids fail with
// ErrNotPending.
func (m *Manager) Resolve(id string, outcome modal.Outcome) (modal.PendingAction, error) {
	var to modal.ActionStatus
	switch outcome {
	case modal.OutcomeApproved:
		to = modal.StatusApproved
	case modal.OutcomeRejected:
		to = modal.StatusRejected
	default:
		return modal.PendingAction{}, fmt.Errorf("unknown outcome %q", outcome)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.pendingLocked(id)
	if err != nil {
		return modal.PendingAction{}, err
	}
	now := m.now().UTC()
	e.action.Status = to
	e.action.ProcessedAt = &now
	m.appendAuditLocked(id, "RESOLVED", "action "+string(to), map[string]any{"outcome": string(outcome)})
	m.logger.Info("action resolved",
		zap.String("actionID", id),
		zap.String("outcome", string(outcome)))
	return e.action, nil
}

func (m *Manager) pendingLocked(id string) (*entry, error) {
	e, ok := m.actions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s is unknown", modal.ErrNotPending, id)
	}
	if e.action.Status != modal.StatusPending {
		return nil, fmt.Errorf("%w: %s is %s", modal.ErrNotPending, id, e.action.Status)
	}
	return e, nil
}

// Supersede marks id corrected and registers a new pending action carrying
// payload for the same company and owner.
func (m *Manager) Supersede(id string, payload modal.Payload, derived *modal.Derived) (old, replacement modal.PendingAction, err error) {
	if payload == nil {
		return old, replacement, fmt.Errorf("%w: payload is required", modal.ErrInvalidPayload)
	}
	if err := payload.Validate(); err != nil {
		return old, replacement, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.pendingLocked(id)
	if err != nil {
		return old, replacement, err
	}
	now := m.now().UTC()
	replacement = modal.PendingAction{
		ID:        uuid.NewString(),
		Type:      payload.ActionType(),
		Payload:   payload,
		Derived:   derived,
		Status:    modal.StatusPending,
		CompanyID: e.action.CompanyID,
		OwnerID:   e.action.OwnerID,
		CreatedAt: now,
	}
	e.action.Status = modal.StatusCorrected
	e.action.ProcessedAt = &now
	e.action.SupersededBy = replacement.ID
	m.insertLocked(replacement)

	m.appendAuditLocked(id, "CORRECTED", "superseded by "+replacement.ID, map[string]any{"supersededBy": replacement.ID})
	m.appendAuditLocked(replacement.ID, "PROPOSED", modal.DescribePayload(payload), map[string]any{
		"actionType": string(replacement.Type),
		"supersedes": id,
	})
	m.logger.Info("action superseded",
		zap.String("actionID", id),
		zap.String("replacementID", replacement.ID))
	return e.action, replacement, nil
}

// MarkExecuted moves an approved action to executed. The action is dropped
// by Sweep once the grace period has passed.
func (m *Manager) MarkExecuted(id string) (modal.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.actions[id]
	if !ok {
		return modal.PendingAction{}, fmt.Errorf("%w: %s is unknown", modal.ErrNotApproved, id)
	}
	if e.action.Status != modal.StatusApproved {
		return modal.PendingAction{}, fmt.Errorf("%w: %s is %s", modal.ErrNotApproved, id, e.action.Status)
	}
	now := m.now().UTC()
	e.action.Status = modal.StatusExecuted
	e.action.ExecutedAt = &now
	m.appendAuditLocked(id, "EXECUTED", "action executed", nil)
	m.logger.Info("action executed", zap.String("actionID", id))
	return e.action, nil
}

// MarkFailed moves an approved action whose execution can never succeed to
// failed. ProcessedAt is moved to the failure time so the action stays
// visible for the grace period.
func (m *Manager) MarkFailed(id, reason string) (modal.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.actions[id]
	if !ok {
		return modal.PendingAction{}, fmt.Errorf("%w: %s is unknown", modal.ErrNotApproved, id)
	}
	if e.action.Status != modal.StatusApproved {
		return modal.PendingAction{}, fmt.Errorf("%w: %s is %s", modal.ErrNotApproved, id, e.action.Status)
	}
	now := m.now().UTC()
	e.action.Status = modal.StatusFailed
	e.action.ProcessedAt = &now
	e.action.Failure = reason
	m.appendAuditLocked(id, "FAILED", reason, nil)
	m.logger.Warn("action failed", zap.String("actionID", id), zap.String("reason", reason))
	return e.action, nil
}

// RecentlyHandled returns the most recently finished action of ownerID that
// is still inside the grace window.
func (m *Manager) RecentlyHandled(ownerID string) (modal.PendingAction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.grace)

	var (
		best   modal.PendingAction
		bestAt time.Time
		found  bool
	)
	for _, e := range m.actions {
		a := e.action
		if !a.Status.Terminal() || (ownerID != "" && a.OwnerID != ownerID) {
			continue
		}
		at := finishedAt(a)
		if at.Before(cutoff) {
			continue
		}
		if !found || at.After(bestAt) {
			best, bestAt, found = a, at, true
		}
	}
	return best, found
}

func finishedAt(a modal.PendingAction) time.Time {
	if a.ExecutedAt != nil {
		return *a.ExecutedAt
	}
	if a.ProcessedAt != nil {
		return *a.ProcessedAt
	}
	return a.CreatedAt
}

// Expire moves pending actions, and approved actions that never finished
// executing, older than maxAge to expired. It returns how many it changed.
func (m *Manager) Expire(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	cutoff := now.Add(-maxAge)
	n := 0
	for id, e := range m.actions {
		open := e.action.Status == modal.StatusPending || e.action.Status == modal.StatusApproved
		if !open || !e.action.CreatedAt.Before(cutoff) {
			continue
		}
		processed := now
		from := e.action.Status
		e.action.Status = modal.StatusExpired
		e.action.ProcessedAt = &processed
		m.appendAuditLocked(id, "EXPIRED", string(from)+" action expired", map[string]any{"maxAge": maxAge.String()})
		n++
	}
	if n > 0 {
		m.logger.Info("expired actions", zap.Int("count", n), zap.Duration("maxAge", maxAge))
	}
	return n
}

// Sweep forgets terminal actions that finished before the grace window.
// Approved actions are kept until they are executed, fail or expire.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.grace)
	n := 0
	for id, e := range m.actions {
		if e.action.Status.Terminal() && finishedAt(e.action).Before(cutoff) {
			delete(m.actions, id)
			n++
		}
	}
	if n > 0 {
		m.logger.Debug("swept finished actions", zap.Int("count", n))
	}
	return n
}

// Run expires and sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval, maxAge time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.Expire(maxAge)
			m.Sweep()
		}
	}
}

// Audit returns the audit trail of one action, or of all actions when id is
// empty.
func (m *Manager) Audit(id string) []modal.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []modal.AuditEvent
	for _, ev := range m.audit {
		if id == "" || ev.ActionID == id {
			out = append(out, ev)
		}
	}
	return out
}

func (m *Manager) appendAuditLocked(actionID, kind, message string, data map[string]any) {
	m.audit = append(m.audit, modal.AuditEvent{
		At:       m.now().UTC(),
		ActionID: actionID,
		Kind:     kind,
		Message:  message,
		Data:     data,
	})
	if over := len(m.audit) - maxAuditEvents; over > 0 {
		m.audit = append(m.audit[:0:0], m.audit[over:]...)
	}
}
