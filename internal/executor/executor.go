// Package executor performs approved actions against the entity store.
//
// Every destructive mutation writes a backup of the affected records before
// the live document changes. A failed backup does not stop the mutation; the
// result reports BackupCreated=false instead.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"staffops/internal/modal"
	"staffops/internal/revenue"
	"staffops/internal/store"
)

const DefaultRetentionYears = 7

// Lifecycle is the slice of the proposal manager Execute needs.
type Lifecycle interface {
	Get(id string) (modal.PendingAction, bool)
	MarkExecuted(id string) (modal.PendingAction, error)
	MarkFailed(id, reason string) (modal.PendingAction, error)
}

type Executor struct {
	store     store.Store
	lifecycle Lifecycle
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger

	inflight sync.Map
}

type Option func(*Executor)

func WithRetentionYears(years int) Option {
	return func(e *Executor) {
		e.retention = time.Duration(years) * 365 * 24 * time.Hour
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New builds an executor. lifecycle may be nil when only Apply is used, as
// in the review workflow activity.
func New(s store.Store, lifecycle Lifecycle, opts ...Option) *Executor {
	e := &Executor{store: s, lifecycle: lifecycle, now: time.Now, logger: zap.NewNop()}
	WithRetentionYears(DefaultRetentionYears)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs an approved action and marks it executed. Concurrent calls
// for the same id execute it at most once.
func (e *Executor) Execute(ctx context.Context, actionID string) (modal.ExecutionResult, error) {
	if e.lifecycle == nil {
		return modal.ExecutionResult{}, errors.New("executor: no action lifecycle configured")
	}
	if _, busy := e.inflight.LoadOrStore(actionID, struct{}{}); busy {
		return modal.ExecutionResult{}, fmt.Errorf("%w: %s is already executing", modal.ErrNotApproved, actionID)
	}
	defer e.inflight.Delete(actionID)

	a, ok := e.lifecycle.Get(actionID)
	if !ok {
		return modal.ExecutionResult{}, fmt.Errorf("%w: %s is unknown", modal.ErrNotApproved, actionID)
	}
	if a.Status != modal.StatusApproved {
		return modal.ExecutionResult{}, fmt.Errorf("%w: %s is %s", modal.ErrNotApproved, actionID, a.Status)
	}
	res, err := e.Apply(ctx, a)
	if err != nil {
		if Permanent(err) {
			if _, merr := e.lifecycle.MarkFailed(actionID, err.Error()); merr != nil {
				e.logger.Warn("could not mark action failed", zap.String("actionID", actionID), zap.Error(merr))
			}
		}
		return res, err
	}
	if _, err := e.lifecycle.MarkExecuted(actionID); err != nil {
		return res, err
	}
	return res, nil
}

// Permanent reports whether retrying Apply with the same action cannot
// succeed. Store failures are not permanent.
func Permanent(err error) bool {
	return errors.Is(err, modal.ErrEntityNotFound) ||
		errors.Is(err, modal.ErrInvalidPayload) ||
		errors.Is(err, modal.ErrUnsupportedActionType)
}

// Apply performs the mutation described by a's payload. It does not check
// or change the action's lifecycle status.
func (e *Executor) Apply(ctx context.Context, a modal.PendingAction) (modal.ExecutionResult, error) {
	if a.Payload == nil {
		return modal.ExecutionResult{}, fmt.Errorf("%w: action %s has no payload", modal.ErrInvalidPayload, a.ID)
	}
	if err := a.Payload.Validate(); err != nil {
		return modal.ExecutionResult{}, err
	}

	var res modal.ExecutionResult
	_, err := e.store.Update(ctx, a.CompanyID, func(doc *modal.CompanyRecords) error {
		res = modal.ExecutionResult{ActionID: a.ID, Type: a.Payload.ActionType(), CompanyID: a.CompanyID}
		return e.mutate(ctx, doc, a, &res)
	})
	if err != nil {
		e.logger.Warn("action failed",
			zap.String("actionID", a.ID),
			zap.String("actionType", string(a.Payload.ActionType())),
			zap.Error(err))
		return modal.ExecutionResult{}, err
	}
	res.ExecutedAt = e.now().UTC()

	fields := []zap.Field{
		zap.String("actionID", a.ID),
		zap.String("actionType", string(res.Type)),
		zap.String("companyID", a.CompanyID),
		zap.Strings("affected", res.Affected),
	}
	if modal.Destructive(a.Payload) {
		fields = append(fields, zap.Bool("backupCreated", res.BackupCreated))
	}
	e.logger.Info("action applied", fields...)
	return res, nil
}

func (e *Executor) mutate(ctx context.Context, doc *modal.CompanyRecords, a modal.PendingAction, res *modal.ExecutionResult) error {
	now := e.now().UTC()

	switch p := a.Payload.(type) {
	case modal.AddEmployee:
		emp := p.Employee
		emp.ID = doc.NextID(modal.CollectionEmployees)
		emp.CreatedAt = now
		if emp.Status == "" {
			emp.Status = modal.EmployeeActive
		}
		doc.Employees = append(doc.Employees, emp)
		res.Affected = []string{emp.ID}
		res.Message = fmt.Sprintf("Added employee %s (ID %s).", emp.Name, emp.ID)

	case modal.AddClient:
		c := p.Client
		c.ID = doc.NextID(modal.CollectionClients)
		c.CreatedAt = now
		if c.Status == "" {
			c.Status = modal.ClientActive
		}
		rev := revenue.Calculate(c.Schedule, c.HourlyRate)
		if a.Derived != nil && a.Derived.Revenue != nil {
			rev = *a.Derived.Revenue
		}
		c.WeeklyHours, c.MonthlyRevenue = rev.WeeklyHours, rev.MonthlyRevenue
		doc.Clients = append(doc.Clients, c)
		res.Affected = []string{c.ID}
		res.Message = fmt.Sprintf("Added client %s (ID %s): %.0f hrs/week, $%.0f/month.", c.Name, c.ID, c.WeeklyHours, c.MonthlyRevenue)

	case modal.AddModule:
		m := p.Module
		m.ID = doc.NextID(modal.CollectionModules)
		m.CreatedAt = now
		doc.PlatformModules = append(doc.PlatformModules, m)
		res.Affected = []string{m.ID}
		res.Message = fmt.Sprintf("Added module %s.", m.Name)

	case modal.UpdateEmployeeStatus:
		i := doc.EmployeeIndex(p.EmployeeID)
		if i < 0 {
			return notFound("employee", p.EmployeeID)
		}
		emp := &doc.Employees[i]
		if p.Status.Deactivating() {
			e.backup(ctx, a, res, modal.BackupEmployeeStatus,
				fmt.Sprintf("Employee %s (%s) before status change %s -> %s", emp.Name, emp.ID, emp.Status, p.Status), *emp)
		}
		prev := emp.Status
		emp.TransitionStatus(p.Status, p.Reason, a.OwnerID, now, e.retention)
		res.Affected = []string{emp.ID}
		res.Message = fmt.Sprintf("Changed %s from %s to %s.", emp.Name, prev, p.Status)

	case modal.DeleteEmployee:
		i := doc.EmployeeIndex(p.EmployeeID)
		if i < 0 {
			return notFound("employee", p.EmployeeID)
		}
		emp := doc.Employees[i]
		e.backup(ctx, a, res, modal.BackupEmployeeDeletion,
			fmt.Sprintf("Employee %s (%s) before deletion", emp.Name, emp.ID), emp)
		doc.Employees = append(doc.Employees[:i], doc.Employees[i+1:]...)
		res.Affected = []string{emp.ID}
		res.Message = fmt.Sprintf("Deleted employee %s.", emp.Name)

	case modal.DeleteClient:
		i := doc.ClientIndex(p.ClientID)
		if i < 0 {
			return notFound("client", p.ClientID)
		}
		c := doc.Clients[i]
		e.backup(ctx, a, res, modal.BackupClientDeletion,
			fmt.Sprintf("Client %s (%s) before deletion", c.Name, c.ID), c)
		doc.Clients = append(doc.Clients[:i], doc.Clients[i+1:]...)
		res.Affected = []string{c.ID}
		res.Message = fmt.Sprintf("Deleted client %s.", c.Name)

	case modal.DeleteModule:
		i := doc.ModuleIndex(p.ModuleID)
		if i < 0 {
			return notFound("module", p.ModuleID)
		}
		m := doc.PlatformModules[i]
		e.backup(ctx, a, res, modal.BackupModuleDeletion,
			fmt.Sprintf("Module %s (%s) before deletion", m.Name, m.ID), m)
		doc.PlatformModules = append(doc.PlatformModules[:i], doc.PlatformModules[i+1:]...)
		res.Affected = []string{m.ID}
		res.Message = fmt.Sprintf("Deleted module %s.", m.Name)

	case modal.DeleteAllModules:
		if len(doc.PlatformModules) == 0 {
			res.Message = "There were no modules to delete."
			return nil
		}
		doomed, kept := approvedModules(doc.PlatformModules, p.Names)
		if len(doomed) == 0 {
			res.Message = "None of the approved modules exist any more."
			return nil
		}
		e.backup(ctx, a, res, modal.BackupModulesBulk,
			fmt.Sprintf("All %d modules before bulk deletion", len(doc.PlatformModules)), doc.PlatformModules)
		for _, m := range doomed {
			res.Affected = append(res.Affected, m.ID)
		}
		doc.PlatformModules = kept
		res.Message = fmt.Sprintf("Deleted all %d modules.", len(doomed))
		if len(kept) > 0 {
			names := make([]string, len(kept))
			for i, m := range kept {
				names[i] = m.Name
			}
			res.Message = fmt.Sprintf("Deleted %d approved modules; kept %s, added after approval.", len(doomed), strings.Join(names, ", "))
		}

	case modal.UpdateBillingRate:
		i := doc.ClientIndex(p.ClientID)
		if i < 0 {
			return notFound("client", p.ClientID)
		}
		c := &doc.Clients[i]
		hours := c.WeeklyHours
		if hours <= 0 {
			hours = revenue.DefaultWeeklyHours
		}
		rev := revenue.Reprice(hours, p.HourlyRate)
		prev := c.HourlyRate
		c.WeeklyHours, c.HourlyRate, c.MonthlyRevenue = rev.WeeklyHours, rev.HourlyRate, rev.MonthlyRevenue
		res.Affected = []string{c.ID}
		res.Message = fmt.Sprintf("Updated %s billing rate from $%.2f to $%.2f/hr; monthly revenue is now $%.0f.", c.Name, prev, c.HourlyRate, c.MonthlyRevenue)

	default:
		return fmt.Errorf("%w: %s", modal.ErrUnsupportedActionType, a.Payload.ActionType())
	}
	return nil
}

// backup writes a snapshot of records before they are destroyed. Failure is
// recorded on res and logged; it never aborts the mutation.
// approvedModules splits modules into those named in the approved list and
// the rest. An empty list approves every module.
func approvedModules(modules []modal.Module, names []string) (doomed, kept []modal.Module) {
	if len(names) == 0 {
		return modules, []modal.Module{}
	}
	approved := make(map[string]bool, len(names))
	for _, n := range names {
		approved[strings.ToLower(strings.TrimSpace(n))] = true
	}
	kept = []modal.Module{}
	for _, m := range modules {
		if approved[strings.ToLower(strings.TrimSpace(m.Name))] {
			doomed = append(doomed, m)
		} else {
			kept = append(kept, m)
		}
	}
	return doomed, kept
}

func (e *Executor) backup(ctx context.Context, a modal.PendingAction, res *modal.ExecutionResult, kind modal.BackupType, desc string, records any) {
	data, err := json.Marshal(records)
	if err == nil {
		var b modal.Backup
		b, err = e.store.WriteBackup(ctx, modal.Backup{
			CompanyID:   a.CompanyID,
			BackupType:  kind,
			Description: desc,
			Data:        data,
		})
		if err == nil {
			res.BackupCreated = true
			res.BackupID = b.ID
			res.BackupError = ""
			return
		}
	}
	err = fmt.Errorf("%w: %w", modal.ErrBackupFailed, err)
	res.BackupCreated = false
	res.BackupError = err.Error()
	e.logger.Error("backup before destructive change failed, continuing",
		zap.String("actionID", a.ID),
		zap.String("backupType", string(kind)),
		zap.Error(err))
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s no longer exists", modal.ErrEntityNotFound, kind, id)
}
