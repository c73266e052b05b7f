package modal

import (
	"strconv"
	"strings"
	"time"
)

// StatusChange is one entry in an append-only status log.
type StatusChange struct {
	At       time.Time `json:"at"`
	Previous string    `json:"previous"`
	New      string    `json:"new"`
	Reason   string    `json:"reason,omitempty"`
	Actor    string    `json:"actor,omitempty"`
}

type Employee struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Role          string         `json:"role,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	Email         string         `json:"email,omitempty"`
	PayRate       float64        `json:"payRate,omitempty"`
	Location      string         `json:"location,omitempty"`
	HireDate      string         `json:"hireDate,omitempty"`
	Status        EmployeeStatus `json:"status"`
	StatusHistory []StatusChange `json:"statusHistory,omitempty"`
	TerminatedAt  *time.Time     `json:"terminatedAt,omitempty"`
	RetainUntil   *time.Time     `json:"retainUntil,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// TransitionStatus is the only way an employee status changes. It appends
// to StatusHistory and maintains the termination and retention stamps.
func (e *Employee) TransitionStatus(to EmployeeStatus, reason, actor string, at time.Time, retention time.Duration) {
	e.StatusHistory = append(e.StatusHistory, StatusChange{
		At:       at,
		Previous: string(e.Status),
		New:      string(to),
		Reason:   reason,
		Actor:    actor,
	})
	e.Status = to

	switch to {
	case EmployeeInactive:
		terminated := at
		retain := at.Add(retention)
		e.TerminatedAt = &terminated
		e.RetainUntil = &retain
	case EmployeeRehired, EmployeeActive:
		e.TerminatedAt = nil
		e.RetainUntil = nil
	}
}

type Client struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	ContactName    string         `json:"contactName,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Email          string         `json:"email,omitempty"`
	Address        string         `json:"address,omitempty"`
	Schedule       string         `json:"schedule,omitempty"`
	WeeklyHours    float64        `json:"weeklyHours"`
	HourlyRate     float64        `json:"hourlyRate"`
	MonthlyRevenue float64        `json:"monthlyRevenue"`
	Status         ClientStatus   `json:"status"`
	StatusHistory  []StatusChange `json:"statusHistory,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

type Module struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CompanyRecords is the whole persisted document for one company.
type CompanyRecords struct {
	CompanyID       string     `json:"companyId"`
	Version         int64      `json:"version"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	Employees       []Employee `json:"employees"`
	Clients         []Client   `json:"clients"`
	PlatformModules []Module   `json:"platformModules"`
}

// NewCompanyRecords returns the default document used when a company has
// nothing on file yet.
func NewCompanyRecords(companyID string) *CompanyRecords {
	return &CompanyRecords{
		CompanyID:       companyID,
		Employees:       []Employee{},
		Clients:         []Client{},
		PlatformModules: []Module{},
	}
}

func (r *CompanyRecords) EmployeeIndex(id string) int {
	for i := range r.Employees {
		if r.Employees[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *CompanyRecords) ClientIndex(id string) int {
	for i := range r.Clients {
		if r.Clients[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *CompanyRecords) ModuleIndex(id string) int {
	for i := range r.PlatformModules {
		if r.PlatformModules[i].ID == id {
			return i
		}
	}
	return -1
}

// NextID allocates max(numeric id)+1 within a collection. Non-numeric ids
// are ignored for allocation purposes.
func (r *CompanyRecords) NextID(c Collection) string {
	var ids []string
	switch c {
	case CollectionEmployees:
		for _, e := range r.Employees {
			ids = append(ids, e.ID)
		}
	case CollectionClients:
		for _, cl := range r.Clients {
			ids = append(ids, cl.ID)
		}
	case CollectionModules:
		for _, m := range r.PlatformModules {
			ids = append(ids, m.ID)
		}
	}
	highest := 0
	for _, id := range ids {
		n, err := strconv.Atoi(strings.TrimSpace(id))
		if err == nil && n > highest {
			highest = n
		}
	}
	return strconv.Itoa(highest + 1)
}
