// Package correction revises a pending add-employee proposal from a free
// text correction and restarts its approval cycle.
package correction

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"staffops/internal/modal"
)

// Patch maps canonical employee field names to their corrected values.
type Patch map[string]string

// Change is one field that a correction altered.
type Change struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

func (c Change) String() string {
	if c.From == "" {
		return fmt.Sprintf("%s set to %s", c.Field, c.To)
	}
	return fmt.Sprintf("%s changed from %s to %s", c.Field, c.From, c.To)
}

// Parser turns correction text into a patch over the original record.
type Parser interface {
	Parse(ctx context.Context, original modal.Employee, text string) (Patch, error)
}

// Proposals is the slice of the proposal manager a Handler needs.
type Proposals interface {
	Get(id string) (modal.PendingAction, bool)
	MostRecentPending(ownerID string) (modal.PendingAction, bool)
	Supersede(id string, payload modal.Payload, derived *modal.Derived) (modal.PendingAction, modal.PendingAction, error)
}

type Outcome struct {
	Previous modal.PendingAction `json:"previous"`
	Action   modal.PendingAction `json:"action"`
	Changes  []Change            `json:"changes"`
}

type Handler struct {
	proposals Proposals
	parser    Parser
	logger    *zap.Logger
}

func NewHandler(p Proposals, parser Parser, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{proposals: p, parser: parser, logger: logger}
}

// Apply corrects targetID, or the owner's most recent pending action when
// targetID is empty.
func (h *Handler) Apply(ctx context.Context, ownerID, text, targetID string) (Outcome, error) {
	target, err := h.target(ownerID, targetID)
	if err != nil {
		return Outcome{}, err
	}
	add, ok := target.Payload.(modal.AddEmployee)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: corrections are not supported for %s", modal.ErrUnsupportedActionType, target.Type)
	}

	patch, err := h.parser.Parse(ctx, add.Employee, text)
	if err != nil {
		return Outcome{}, fmt.Errorf("correction: parse: %w", err)
	}
	revised, changes := Merge(add.Employee, patch)
	if len(changes) == 0 {
		return Outcome{}, modal.ErrNoChanges
	}

	prev, next, err := h.proposals.Supersede(target.ID, modal.AddEmployee{Employee: revised}, target.Derived)
	if err != nil {
		return Outcome{}, err
	}
	h.logger.Info("correction applied",
		zap.String("actionID", prev.ID),
		zap.String("replacementID", next.ID),
		zap.Int("changes", len(changes)))
	return Outcome{Previous: prev, Action: next, Changes: changes}, nil
}

func (h *Handler) target(ownerID, targetID string) (modal.PendingAction, error) {
	if targetID != "" {
		a, ok := h.proposals.Get(targetID)
		if !ok {
			return modal.PendingAction{}, fmt.Errorf("%w: %s", modal.ErrNoPendingAction, targetID)
		}
		if a.Status != modal.StatusPending {
			return modal.PendingAction{}, fmt.Errorf("%w: %s is %s", modal.ErrNotPending, targetID, a.Status)
		}
		return a, nil
	}
	a, ok := h.proposals.MostRecentPending(ownerID)
	if !ok {
		return modal.PendingAction{}, modal.ErrNoPendingAction
	}
	return a, nil
}

// Merge applies patch over a copy of e. Fields not named in the patch keep
// their original values.
func Merge(e modal.Employee, patch Patch) (modal.Employee, []Change) {
	out := e
	var changes []Change
	for _, field := range fieldOrder {
		raw, ok := patch[field]
		if !ok {
			continue
		}
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		from := fieldValue(e, field)
		if field == "payRate" {
			rate, ok := parseMoney(val)
			if !ok || rate == e.PayRate {
				continue
			}
			out.PayRate = rate
			changes = append(changes, Change{Field: field, From: from, To: formatMoney(rate)})
			continue
		}
		if val == from {
			continue
		}
		setField(&out, field, val)
		changes = append(changes, Change{Field: field, From: from, To: val})
	}
	return out, changes
}

var fieldOrder = []string{"name", "role", "phone", "email", "payRate", "location", "hireDate"}

func fieldValue(e modal.Employee, field string) string {
	switch field {
	case "name":
		return e.Name
	case "role":
		return e.Role
	case "phone":
		return e.Phone
	case "email":
		return e.Email
	case "payRate":
		if e.PayRate == 0 {
			return ""
		}
		return formatMoney(e.PayRate)
	case "location":
		return e.Location
	case "hireDate":
		return e.HireDate
	}
	return ""
}

func setField(e *modal.Employee, field, val string) {
	switch field {
	case "name":
		e.Name = val
	case "role":
		e.Role = val
	case "phone":
		e.Phone = val
	case "email":
		e.Email = val
	case "location":
		e.Location = val
	case "hireDate":
		e.HireDate = val
	}
}

func parseMoney(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func formatMoney(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}
