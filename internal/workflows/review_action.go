package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"staffops/internal/modal"
)

const TaskQueue = "STAFFOPS_REVIEW_TASK_QUEUE"
const ActionDecisionSignal = "ACTION_DECISION_SIGNAL"

const (
	QueryPendingAction = "pending_action"
	QueryAuditLog      = "audit_log"
)

// DefaultReviewMaxAge is used when a request does not set MaxAge.
const DefaultReviewMaxAge = 24 * time.Hour

// ReviewRequest starts a back-office review of one proposed action.
type ReviewRequest struct {
	Action modal.PendingAction `json:"action"`
	MaxAge time.Duration       `json:"maxAge,omitempty"`
}

type ReviewResult struct {
	ActionID string                 `json:"actionId"`
	Status   modal.ActionStatus     `json:"status"`
	Decision *modal.ActionDecision  `json:"decision,omitempty"`
	Result   *modal.ExecutionResult `json:"result,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

type workflowState struct {
	Action modal.PendingAction `json:"action"`
	Audit  []modal.AuditEvent  `json:"audit,omitempty"`
}

// ReviewAction holds a proposed action until a reviewer approves or rejects
// it, or until MaxAge passes. Approved actions are executed by the
// ExecuteAction activity.
func ReviewAction(ctx workflow.Context, req ReviewRequest) (ReviewResult, error) {
	logger := workflow.GetLogger(ctx)
	if req.Action.ID == "" || req.Action.Payload == nil {
		return ReviewResult{}, temporal.NewNonRetryableApplicationError("review request has no action", "InvalidRequest", nil)
	}
	logger.Info("review started", "actionID", req.Action.ID, "actionType", req.Action.Type)

	state := &workflowState{Action: req.Action, Audit: make([]modal.AuditEvent, 0)}
	state.Action.Status = modal.StatusPending

	appendAudit := func(kind, message string, data map[string]any) {
		state.Audit = append(state.Audit, modal.AuditEvent{
			At:       workflow.Now(ctx),
			ActionID: state.Action.ID,
			Kind:     kind,
			Message:  message,
			Data:     data,
		})
	}

	_ = workflow.SetQueryHandler(ctx, QueryPendingAction, func() (modal.PendingAction, error) {
		return state.Action, nil
	})
	_ = workflow.SetQueryHandler(ctx, QueryAuditLog, func() ([]modal.AuditEvent, error) {
		return state.Audit, nil
	})

	appendAudit("REVIEW_STARTED", modal.Describe(state.Action), map[string]any{
		"actionType":  string(state.Action.Type),
		"destructive": modal.Destructive(state.Action.Payload),
	})

	maxAge := req.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultReviewMaxAge
	}
	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	timer := workflow.NewTimer(timerCtx, maxAge)

	var (
		decision modal.ActionDecision
		decided  bool
		expired  bool
	)
	selector := workflow.NewSelector(ctx)
	sigCh := workflow.GetSignalChannel(ctx, ActionDecisionSignal)
	selector.AddReceive(sigCh, func(c workflow.ReceiveChannel, more bool) {
		var d modal.ActionDecision
		c.Receive(ctx, &d)
		if d.ActionID != state.Action.ID {
			appendAudit("DECISION_IGNORED", "decision for another action", map[string]any{"actionId": d.ActionID})
			return
		}
		if d.Outcome != modal.OutcomeApproved && d.Outcome != modal.OutcomeRejected {
			appendAudit("DECISION_IGNORED", "unknown outcome", map[string]any{"outcome": string(d.Outcome)})
			return
		}
		decision, decided = d, true
	})
	selector.AddFuture(timer, func(f workflow.Future) {
		if err := f.Get(ctx, nil); err == nil {
			expired = true
		}
	})

	for !decided && !expired {
		selector.Select(ctx)
	}
	cancelTimer()

	now := workflow.Now(ctx)
	if expired {
		state.Action.Status = modal.StatusExpired
		state.Action.ProcessedAt = &now
		appendAudit("EXPIRED", "no decision before max age", map[string]any{"maxAge": maxAge.String()})
		return ReviewResult{ActionID: state.Action.ID, Status: modal.StatusExpired}, nil
	}

	state.Action.ProcessedAt = &now
	appendAudit("DECIDED", "reviewer decision received", map[string]any{
		"outcome": string(decision.Outcome),
		"decider": decision.Decider,
		"notes":   decision.Notes,
	})
	if decision.Outcome == modal.OutcomeRejected {
		state.Action.Status = modal.StatusRejected
		return ReviewResult{ActionID: state.Action.ID, Status: modal.StatusRejected, Decision: &decision}, nil
	}
	state.Action.Status = modal.StatusApproved

	// Each attempt gets 30s; transient store failures retry with backoff.
	// Missing targets and invalid payloads are non-retryable.
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}
	actx := workflow.WithActivityOptions(ctx, ao)

	var res modal.ExecutionResult
	if err := workflow.ExecuteActivity(actx, "ExecuteAction", state.Action).Get(actx, &res); err != nil {
		appendAudit("ERROR", "ExecuteAction failed", map[string]any{"error": err.Error()})
		logger.Error("execute action failed", "actionID", state.Action.ID, "error", err)
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) && appErr.NonRetryable() {
			state.Action.Status = modal.StatusFailed
			state.Action.Failure = appErr.Error()
			return ReviewResult{ActionID: state.Action.ID, Status: modal.StatusFailed, Decision: &decision, Error: appErr.Error()}, nil
		}
		return ReviewResult{}, err
	}

	executed := workflow.Now(ctx)
	state.Action.Status = modal.StatusExecuted
	state.Action.ExecutedAt = &executed
	appendAudit("EXECUTED", res.Message, map[string]any{
		"affected":      res.Affected,
		"backupCreated": res.BackupCreated,
	})
	if modal.Destructive(state.Action.Payload) && !res.BackupCreated {
		appendAudit("BACKUP_MISSING", "executed without a backup", map[string]any{"backupError": res.BackupError})
	}
	return ReviewResult{ActionID: state.Action.ID, Status: modal.StatusExecuted, Decision: &decision, Result: &res}, nil
}
