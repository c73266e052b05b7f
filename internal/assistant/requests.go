package assistant

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"staffops/internal/deletion"
	"staffops/internal/modal"
	"staffops/internal/resolver"
)

// RequestDeletion turns a deletion message into a proposal. Modules go
// through the deletion disambiguator and may be deleted in bulk; employees
// and clients are resolved one at a time from identifier, or from the
// message when identifier is empty. A message that names no employee or
// client outright is stripped to its subject and handed to the resolver; the
// user is asked to pick only when that fails or several records fit.
func (a *Assistant) RequestDeletion(ctx context.Context, companyID, ownerID string, collection modal.Collection, message, identifier string) (Reply, error) {
	doc, err := a.store.Load(ctx, companyID)
	if err != nil {
		return Reply{}, err
	}
	candidates := resolver.Candidates(doc, collection)
	noun := strings.TrimSuffix(string(collection), "s")

	if collection == modal.CollectionModules && identifier == "" {
		in := deletion.Classify(message, candidates, noun, true)
		switch in.Scope {
		case deletion.ScopeSingle:
			return a.ProposeAction(ctx, companyID, ownerID, modal.DeleteModule{ModuleID: in.Target.ID, ModuleName: in.Target.Name})
		case deletion.ScopeAll:
			if len(candidates) == 0 {
				return Reply{Kind: ReplyNotice, Text: "There are no modules to delete."}, nil
			}
			names := make([]string, len(candidates))
			for i, c := range candidates {
				names[i] = c.Name
			}
			return a.ProposeAction(ctx, companyID, ownerID, modal.DeleteAllModules{Names: names})
		}
		return clarifyDeletion(in), nil
	}

	if identifier == "" {
		in := deletion.Classify(message, candidates, noun, false)
		switch in.Scope {
		case deletion.ScopeSingle:
			identifier = in.Target.ID
		case deletion.ScopeAll:
			return Reply{Kind: ReplyNotice, Text: fmt.Sprintf("Bulk deletion of %s is not supported. Name the %s you want to delete.", collection, noun)}, nil
		default:
			subject := deletion.Subject(message)
			if subject == "" || len(in.Mentioned) > 1 || len(candidates) == 0 {
				return clarifyDeletion(in), nil
			}
			m, err := a.resolver.Resolve(ctx, collection, candidates, subject)
			if err != nil {
				a.logger.Debug("deletion subject unresolved",
					zap.String("collection", string(collection)),
					zap.String("subject", subject),
					zap.Error(err))
				return clarifyDeletion(in), nil
			}
			identifier = m.Candidate.ID
		}
	}

	m, err := a.resolver.Resolve(ctx, collection, candidates, identifier)
	if err != nil {
		return a.notice(err)
	}
	var p modal.Payload
	switch collection {
	case modal.CollectionEmployees:
		p = modal.DeleteEmployee{EmployeeID: m.Candidate.ID, EmployeeName: m.Candidate.Name}
	case modal.CollectionClients:
		p = modal.DeleteClient{ClientID: m.Candidate.ID, ClientName: m.Candidate.Name}
	default:
		p = modal.DeleteModule{ModuleID: m.Candidate.ID, ModuleName: m.Candidate.Name}
	}
	return a.ProposeAction(ctx, companyID, ownerID, p)
}

func clarifyDeletion(in deletion.Intent) Reply {
	opts := make([]string, len(in.Available))
	for i, c := range in.Available {
		opts[i] = c.Name
	}
	if len(in.Available) == 0 {
		return Reply{Kind: ReplyNotice, Text: in.Question}
	}
	return Reply{Kind: ReplyClarify, Text: in.Question, Options: opts}
}

// RequestRateChange proposes a new hourly billing rate for a client.
func (a *Assistant) RequestRateChange(ctx context.Context, companyID, ownerID, clientIdentifier string, rate float64) (Reply, error) {
	doc, err := a.store.Load(ctx, companyID)
	if err != nil {
		return Reply{}, err
	}
	m, err := a.resolver.Resolve(ctx, modal.CollectionClients, resolver.Clients(doc.Clients), clientIdentifier)
	if err != nil {
		return a.notice(err)
	}
	c := doc.Clients[doc.ClientIndex(m.Candidate.ID)]
	return a.ProposeAction(ctx, companyID, ownerID, modal.UpdateBillingRate{
		ClientID:     c.ID,
		ClientName:   c.Name,
		HourlyRate:   rate,
		PreviousRate: c.HourlyRate,
	})
}

// RequestStatusChange proposes an employee status transition. status accepts
// the spellings modal.ParseEmployeeStatus does.
func (a *Assistant) RequestStatusChange(ctx context.Context, companyID, ownerID, employeeIdentifier, status, reason string) (Reply, error) {
	to, ok := modal.ParseEmployeeStatus(status)
	if !ok {
		return Reply{Kind: ReplyNotice, Text: fmt.Sprintf("%q is not a status I know. Use Active, Inactive, On Leave, Suspended or Rehired.", status)}, nil
	}
	doc, err := a.store.Load(ctx, companyID)
	if err != nil {
		return Reply{}, err
	}
	m, err := a.resolver.Resolve(ctx, modal.CollectionEmployees, resolver.Employees(doc.Employees), employeeIdentifier)
	if err != nil {
		return a.notice(err)
	}
	emp := doc.Employees[doc.EmployeeIndex(m.Candidate.ID)]
	if emp.Status == to {
		return Reply{Kind: ReplyNotice, Text: fmt.Sprintf("%s is already %s.", emp.Name, to)}, nil
	}
	return a.ProposeAction(ctx, companyID, ownerID, modal.UpdateEmployeeStatus{
		EmployeeID:   emp.ID,
		EmployeeName: emp.Name,
		Status:       to,
		Reason:       reason,
	})
}
