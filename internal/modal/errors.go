package modal

import "errors"

var (
	// ErrNotPending is returned when resolving an unknown or terminal action.
	ErrNotPending = errors.New("action is not pending")
	// ErrNotApproved is returned when executing an action that was not approved.
	ErrNotApproved = errors.New("action is not approved")
	// ErrNoPendingAction means there is nothing outstanding to confirm or correct.
	ErrNoPendingAction = errors.New("no pending action")
	// ErrUnsupportedActionType is returned for action kinds an operation does
	// not handle.
	ErrUnsupportedActionType = errors.New("unsupported action type")
	// ErrAmbiguousIntent means a classifier declined to guess.
	ErrAmbiguousIntent = errors.New("ambiguous intent")
	// ErrEntityNotFound means every resolution strategy was exhausted.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrBackupFailed is non-fatal; it is surfaced on the execution result.
	ErrBackupFailed = errors.New("backup failed")
	// ErrInvalidPayload is returned when a payload fails validation or decoding.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrNoChanges means a correction left the record as it was.
	ErrNoChanges = errors.New("correction produced no changes")
)
