package modal

import (
	"fmt"
	"strings"
)

// DescribePayload renders a one-line summary of what a payload will do.
func DescribePayload(p Payload) string {
	switch v := p.(type) {
	case AddEmployee:
		parts := []string{fmt.Sprintf("add employee %s", v.Employee.Name)}
		if v.Employee.Role != "" {
			parts = append(parts, "role "+v.Employee.Role)
		}
		if v.Employee.Phone != "" {
			parts = append(parts, "phone "+v.Employee.Phone)
		}
		if v.Employee.PayRate > 0 {
			parts = append(parts, fmt.Sprintf("pay $%.2f/hr", v.Employee.PayRate))
		}
		return strings.Join(parts, ", ")
	case AddClient:
		return fmt.Sprintf("add client %s at $%.2f/hr", v.Client.Name, v.Client.HourlyRate)
	case AddModule:
		return fmt.Sprintf("add module %s", v.Module.Name)
	case UpdateEmployeeStatus:
		return fmt.Sprintf("change status of %s to %s", nameOrID(v.EmployeeName, v.EmployeeID), v.Status)
	case DeleteEmployee:
		return fmt.Sprintf("delete employee %s", nameOrID(v.EmployeeName, v.EmployeeID))
	case DeleteClient:
		return fmt.Sprintf("delete client %s", nameOrID(v.ClientName, v.ClientID))
	case DeleteModule:
		return fmt.Sprintf("delete module %s", nameOrID(v.ModuleName, v.ModuleID))
	case DeleteAllModules:
		if len(v.Names) == 0 {
			return "delete all modules"
		}
		return fmt.Sprintf("delete all %d modules (%s)", len(v.Names), strings.Join(v.Names, ", "))
	case UpdateBillingRate:
		return fmt.Sprintf("change billing rate for %s to $%.2f/hr", nameOrID(v.ClientName, v.ClientID), v.HourlyRate)
	case nil:
		return "unknown action"
	}
	return string(p.ActionType())
}

// Describe renders an action summary including derived revenue figures.
func Describe(a PendingAction) string {
	s := DescribePayload(a.Payload)
	if a.Derived != nil && a.Derived.Revenue != nil {
		r := a.Derived.Revenue
		s += fmt.Sprintf(" (%.0f hrs/week, $%.0f/month)", r.WeeklyHours, r.MonthlyRevenue)
	}
	return s
}

func nameOrID(name, id string) string {
	if name != "" {
		return fmt.Sprintf("%s (%s)", name, id)
	}
	return id
}
