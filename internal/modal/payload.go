package modal

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Payload is the record data an action writes. Each action type has exactly
// one payload struct, and the action type of a PendingAction is always taken
// from its payload.
type Payload interface {
	ActionType() ActionType
	Validate() error
	isPayload()
}

type AddEmployee struct {
	Employee Employee `json:"employee"`
}

type AddClient struct {
	Client Client `json:"client"`
}

type AddModule struct {
	Module Module `json:"module"`
}

type UpdateEmployeeStatus struct {
	EmployeeID   string         `json:"employeeId"`
	EmployeeName string         `json:"employeeName"`
	Status       EmployeeStatus `json:"status"`
	Reason       string         `json:"reason,omitempty"`
}

type DeleteEmployee struct {
	EmployeeID   string `json:"employeeId"`
	EmployeeName string `json:"employeeName"`
	Reason       string `json:"reason,omitempty"`
}

type DeleteClient struct {
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName"`
}

type DeleteModule struct {
	ModuleID   string `json:"moduleId"`
	ModuleName string `json:"moduleName"`
}

// DeleteAllModules removes the modules the user saw when approving, listed in
// Names. Modules added after approval survive. Empty Names removes every
// module present at execution time.
type DeleteAllModules struct {
	Names []string `json:"names,omitempty"`
}

type UpdateBillingRate struct {
	ClientID     string  `json:"clientId"`
	ClientName   string  `json:"clientName"`
	HourlyRate   float64 `json:"hourlyRate"`
	PreviousRate float64 `json:"previousRate,omitempty"`
}

func (AddEmployee) ActionType() ActionType          { return ActionAddEmployee }
func (AddClient) ActionType() ActionType            { return ActionAddClient }
func (AddModule) ActionType() ActionType            { return ActionAddModule }
func (UpdateEmployeeStatus) ActionType() ActionType { return ActionUpdateEmployeeStatus }
func (DeleteEmployee) ActionType() ActionType       { return ActionDeleteEmployee }
func (DeleteClient) ActionType() ActionType         { return ActionDeleteClient }
func (DeleteModule) ActionType() ActionType         { return ActionDeleteModule }
func (DeleteAllModules) ActionType() ActionType     { return ActionDeleteAllModules }
func (UpdateBillingRate) ActionType() ActionType    { return ActionUpdateBillingRate }

func (AddEmployee) isPayload()          {}
func (AddClient) isPayload()            {}
func (AddModule) isPayload()            {}
func (UpdateEmployeeStatus) isPayload() {}
func (DeleteEmployee) isPayload()       {}
func (DeleteClient) isPayload()         {}
func (DeleteModule) isPayload()         {}
func (DeleteAllModules) isPayload()     {}
func (UpdateBillingRate) isPayload()    {}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

func (p AddEmployee) Validate() error {
	if strings.TrimSpace(p.Employee.Name) == "" {
		return invalid("employee name is required")
	}
	if p.Employee.PayRate < 0 {
		return invalid("pay rate cannot be negative")
	}
	return nil
}

func (p AddClient) Validate() error {
	if strings.TrimSpace(p.Client.Name) == "" {
		return invalid("client name is required")
	}
	if p.Client.HourlyRate < 0 {
		return invalid("hourly rate cannot be negative")
	}
	return nil
}

func (p AddModule) Validate() error {
	if strings.TrimSpace(p.Module.Name) == "" {
		return invalid("module name is required")
	}
	return nil
}

func (p UpdateEmployeeStatus) Validate() error {
	if p.EmployeeID == "" {
		return invalid("employee id is required")
	}
	if _, ok := ParseEmployeeStatus(string(p.Status)); !ok {
		return invalid("unknown employee status %q", p.Status)
	}
	return nil
}

func (p DeleteEmployee) Validate() error {
	if p.EmployeeID == "" {
		return invalid("employee id is required")
	}
	return nil
}

func (p DeleteClient) Validate() error {
	if p.ClientID == "" {
		return invalid("client id is required")
	}
	return nil
}

func (p DeleteModule) Validate() error {
	if p.ModuleID == "" {
		return invalid("module id is required")
	}
	return nil
}

func (DeleteAllModules) Validate() error { return nil }

func (p UpdateBillingRate) Validate() error {
	if p.ClientID == "" {
		return invalid("client id is required")
	}
	if p.HourlyRate <= 0 {
		return invalid("hourly rate must be positive")
	}
	return nil
}

// Destructive reports whether executing the payload removes or deactivates
// records, and therefore needs a backup first.
func Destructive(p Payload) bool {
	switch v := p.(type) {
	case DeleteEmployee, DeleteClient, DeleteModule, DeleteAllModules:
		return true
	case UpdateEmployeeStatus:
		return v.Status.Deactivating()
	}
	return false
}

// DecodePayload decodes raw JSON into the payload struct registered for t.
func DecodePayload(t ActionType, raw []byte) (Payload, error) {
	switch t {
	case ActionAddEmployee:
		return decodeAs[AddEmployee](raw)
	case ActionAddClient:
		return decodeAs[AddClient](raw)
	case ActionAddModule:
		return decodeAs[AddModule](raw)
	case ActionUpdateEmployeeStatus:
		return decodeAs[UpdateEmployeeStatus](raw)
	case ActionDeleteEmployee:
		return decodeAs[DeleteEmployee](raw)
	case ActionDeleteClient:
		return decodeAs[DeleteClient](raw)
	case ActionDeleteModule:
		return decodeAs[DeleteModule](raw)
	case ActionDeleteAllModules:
		return decodeAs[DeleteAllModules](raw)
	case ActionUpdateBillingRate:
		return decodeAs[UpdateBillingRate](raw)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedActionType, t)
}

func decodeAs[T Payload](raw []byte) (Payload, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: decode %T: %v", ErrInvalidPayload, v, err)
	}
	return v, nil
}
