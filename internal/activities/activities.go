package activities

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"staffops/internal/modal"
)

// Applier performs an approved action against the entity store.
type Applier interface {
	Apply(ctx context.Context, a modal.PendingAction) (modal.ExecutionResult, error)
}

type Activities struct {
	Executor Applier
}

// ExecuteAction applies an action the review workflow approved. Errors that
// retrying cannot fix are returned as non-retryable application errors.
func (a *Activities) ExecuteAction(ctx context.Context, action modal.PendingAction) (modal.ExecutionResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("executing reviewed action", "actionID", action.ID, "actionType", action.Type)

	res, err := a.Executor.Apply(ctx, action)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, modal.ErrEntityNotFound):
		return res, temporal.NewNonRetryableApplicationError(err.Error(), "EntityNotFound", err)
	case errors.Is(err, modal.ErrInvalidPayload), errors.Is(err, modal.ErrUnsupportedActionType):
		return res, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidAction", err)
	}
	return res, err
}
