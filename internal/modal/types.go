package modal

type ActionType string

const (
	ActionAddEmployee          ActionType = "add_employee"
	ActionAddClient            ActionType = "add_client"
	ActionAddModule            ActionType = "add_module"
	ActionUpdateEmployeeStatus ActionType = "update_employee_status"
	ActionDeleteEmployee       ActionType = "delete_employee"
	ActionDeleteClient         ActionType = "delete_client"
	ActionDeleteModule         ActionType = "delete_module"
	ActionDeleteAllModules     ActionType = "delete_all_modules"
	ActionUpdateBillingRate    ActionType = "update_billing_rate"
)

// ActionStatus is the lifecycle state of a PendingAction.
//
//	pending -> approved -> executed | failed
//	pending -> rejected | corrected | expired
//	approved -> expired
type ActionStatus string

const (
	StatusPending   ActionStatus = "pending"
	StatusApproved  ActionStatus = "approved"
	StatusRejected  ActionStatus = "rejected"
	StatusCorrected ActionStatus = "corrected"
	StatusExpired   ActionStatus = "expired"
	StatusExecuted  ActionStatus = "executed"
	StatusFailed    ActionStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s ActionStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusCorrected, StatusExpired, StatusExecuted, StatusFailed:
		return true
	}
	return false
}

// Outcome is the human decision applied to a pending action.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

func (o Outcome) Valid() bool {
	return o == OutcomeApproved || o == OutcomeRejected
}

type EmployeeStatus string

const (
	EmployeeActive    EmployeeStatus = "Active"
	EmployeeInactive  EmployeeStatus = "Inactive"
	EmployeeOnLeave   EmployeeStatus = "On Leave"
	EmployeeSuspended EmployeeStatus = "Suspended"
	EmployeeRehired   EmployeeStatus = "Rehired"
)

// ParseEmployeeStatus accepts the canonical names case-insensitively, plus a
// few spellings people type in chat ("terminated", "on-leave").
func ParseEmployeeStatus(s string) (EmployeeStatus, bool) {
	switch normalizeWord(s) {
	case "active":
		return EmployeeActive, true
	case "inactive", "terminated", "fired", "let go":
		return EmployeeInactive, true
	case "on leave", "on-leave", "leave":
		return EmployeeOnLeave, true
	case "suspended":
		return EmployeeSuspended, true
	case "rehired", "rehire":
		return EmployeeRehired, true
	}
	return "", false
}

// Deactivating reports whether moving to this status takes the employee off
// the active roster.
func (s EmployeeStatus) Deactivating() bool {
	return s == EmployeeInactive || s == EmployeeSuspended
}

type ClientStatus string

const (
	ClientActive   ClientStatus = "Active"
	ClientInactive ClientStatus = "Inactive"
)

// Collection names one of the record arrays inside a company document.
type Collection string

const (
	CollectionEmployees Collection = "employees"
	CollectionClients   Collection = "clients"
	CollectionModules   Collection = "modules"
)

func ParseCollection(s string) (Collection, bool) {
	switch normalizeWord(s) {
	case "employees", "employee", "staff", "guards", "guard":
		return CollectionEmployees, true
	case "clients", "client", "customers", "customer":
		return CollectionClients, true
	case "modules", "module", "platformmodules":
		return CollectionModules, true
	}
	return "", false
}

type BackupType string

const (
	BackupEmployeeDeletion BackupType = "employee_deletion"
	BackupEmployeeStatus   BackupType = "employee_status_change"
	BackupClientDeletion   BackupType = "client_deletion"
	BackupModuleDeletion   BackupType = "module_deletion"
	BackupModulesBulk      BackupType = "modules_bulk_deletion"
)
