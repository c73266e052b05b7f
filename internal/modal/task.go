package modal

import (
	"encoding/json"
	"fmt"
	"time"
)

// PendingAction is a proposed mutation awaiting explicit human approval.
type PendingAction struct {
	ID           string       `json:"id"`
	Type         ActionType   `json:"actionType"`
	Payload      Payload      `json:"-"`
	Derived      *Derived     `json:"derivedData,omitempty"`
	Status       ActionStatus `json:"status"`
	CompanyID    string       `json:"companyId"`
	OwnerID      string       `json:"ownerId"`
	SupersededBy string       `json:"supersededBy,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	ProcessedAt  *time.Time   `json:"processedAt,omitempty"`
	ExecutedAt   *time.Time   `json:"executedAt,omitempty"`
	Failure      string       `json:"failure,omitempty"`
}

// Derived is data computed at proposal time for display and reused at
// execution.
type Derived struct {
	Revenue *RevenueBreakdown `json:"revenue,omitempty"`
}

type RevenueBreakdown struct {
	WeeklyHours    float64 `json:"weeklyHours"`
	HourlyRate     float64 `json:"hourlyRate"`
	WeeklyRevenue  float64 `json:"weeklyRevenue"`
	MonthlyRevenue float64 `json:"monthlyRevenue"`
	FromSchedule   bool    `json:"fromSchedule"`
}

type pendingActionJSON struct {
	pendingActionAlias
	Payload json.RawMessage `json:"payload"`
}

type pendingActionAlias PendingAction

func (a PendingAction) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	if a.Payload != nil {
		b, err := json.Marshal(a.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		raw = b
		a.Type = a.Payload.ActionType()
	}
	return json.Marshal(pendingActionJSON{pendingActionAlias: pendingActionAlias(a), Payload: raw})
}

func (a *PendingAction) UnmarshalJSON(data []byte) error {
	var wire pendingActionJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*a = PendingAction(wire.pendingActionAlias)
	if a.Type == "" {
		return nil
	}
	p, err := DecodePayload(a.Type, wire.Payload)
	if err != nil {
		return err
	}
	a.Payload = p
	return nil
}

// ActionDecision is an approve/reject decision for one action.
type ActionDecision struct {
	ActionID  string    `json:"actionId"`
	Outcome   Outcome   `json:"outcome"`
	Notes     string    `json:"notes,omitempty"`
	Decider   string    `json:"decider"`
	DecidedAt time.Time `json:"decidedAt"`
}

type AuditEvent struct {
	At       time.Time      `json:"at"`
	ActionID string         `json:"actionId,omitempty"`
	Kind     string         `json:"kind"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
}

// ExecutionResult reports what an executed action changed.
type ExecutionResult struct {
	ActionID      string     `json:"actionId"`
	Type          ActionType `json:"actionType"`
	CompanyID     string     `json:"companyId"`
	Message       string     `json:"message"`
	Affected      []string   `json:"affected,omitempty"`
	BackupCreated bool       `json:"backupCreated"`
	BackupID      string     `json:"backupId,omitempty"`
	BackupError   string     `json:"backupError,omitempty"`
	ExecutedAt    time.Time  `json:"executedAt"`
}
