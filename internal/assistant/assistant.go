// Package assistant is the command surface the chat layer calls. It routes
// replies to pending actions, turns requests into proposals, and converts
// every recoverable pipeline error into a user-facing Reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"staffops/internal/correction"
	"staffops/internal/executor"
	"staffops/internal/intent"
	"staffops/internal/modal"
	"staffops/internal/proposals"
	"staffops/internal/resolver"
	"staffops/internal/revenue"
	"staffops/internal/store"
)

type ReplyKind string

const (
	ReplyProposed       ReplyKind = "proposed"
	ReplyExecuted       ReplyKind = "executed"
	ReplyRejected       ReplyKind = "rejected"
	ReplyCorrected      ReplyKind = "corrected"
	ReplyClarify        ReplyKind = "clarification"
	ReplyUnrelated      ReplyKind = "not_a_confirmation"
	ReplyAlreadyHandled ReplyKind = "already_handled"
	ReplyNotice         ReplyKind = "notice"
)

// Reply is what the chat layer shows the user. Unrelated replies carry no
// text; the caller handles the message as an ordinary command.
type Reply struct {
	Kind    ReplyKind              `json:"kind"`
	Text    string                 `json:"text,omitempty"`
	Action  *modal.PendingAction   `json:"action,omitempty"`
	Result  *modal.ExecutionResult `json:"result,omitempty"`
	Changes []correction.Change    `json:"changes,omitempty"`
	Options []string               `json:"options,omitempty"`
}

type Deps struct {
	Store       store.Store
	Proposals   *proposals.Manager
	Classifier  intent.Classifier
	Corrections *correction.Handler
	Resolver    *resolver.Resolver
	Executor    *executor.Executor
	Logger      *zap.Logger
}

type Assistant struct {
	store       store.Store
	proposals   *proposals.Manager
	classifier  intent.Classifier
	rules       *intent.RuleClassifier
	corrections *correction.Handler
	resolver    *resolver.Resolver
	executor    *executor.Executor
	logger      *zap.Logger
}

func New(d Deps) *Assistant {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	rules := intent.NewRuleClassifier()
	if d.Classifier == nil {
		d.Classifier = rules
	}
	if d.Resolver == nil {
		d.Resolver = resolver.New(nil, d.Logger)
	}
	if d.Corrections == nil {
		d.Corrections = correction.NewHandler(d.Proposals, correction.RuleParser{}, d.Logger)
	}
	if d.Executor == nil {
		d.Executor = executor.New(d.Store, d.Proposals, executor.WithLogger(d.Logger))
	}
	return &Assistant{
		store:       d.Store,
		proposals:   d.Proposals,
		classifier:  d.Classifier,
		rules:       rules,
		corrections: d.Corrections,
		resolver:    d.Resolver,
		executor:    d.Executor,
		logger:      d.Logger,
	}
}

// ProposeAction registers payload as a pending action awaiting approval.
// Client additions get their revenue projection attached.
func (a *Assistant) ProposeAction(ctx context.Context, companyID, ownerID string, payload modal.Payload) (Reply, error) {
	var derived *modal.Derived
	switch p := payload.(type) {
	case modal.AddClient:
		rev := revenue.Calculate(p.Client.Schedule, p.Client.HourlyRate)
		derived = &modal.Derived{Revenue: &rev}
	case modal.UpdateBillingRate:
		doc, err := a.store.Load(ctx, companyID)
		if err != nil {
			return Reply{}, err
		}
		hours := revenue.DefaultWeeklyHours
		if i := doc.ClientIndex(p.ClientID); i >= 0 && doc.Clients[i].WeeklyHours > 0 {
			hours = doc.Clients[i].WeeklyHours
		}
		rev := revenue.Reprice(hours, p.HourlyRate)
		derived = &modal.Derived{Revenue: &rev}
	}

	act, err := a.proposals.Propose(companyID, ownerID, payload, derived)
	if err != nil {
		return a.notice(err)
	}
	return Reply{Kind: ReplyProposed, Text: confirmPrompt(act), Action: &act}, nil
}

// ResolveMessage decides whether text answers the owner's pending action and
// acts on it.
func (a *Assistant) ResolveMessage(ctx context.Context, ownerID, text string) (Reply, error) {
	pending := a.proposals.Pending(ownerID)
	if len(pending) == 0 {
		return a.withoutPending(ctx, ownerID, text), nil
	}

	j, err := a.classifier.Classify(ctx, text, pending)
	if err != nil {
		a.logger.Warn("intent classification failed, treating message as unrelated",
			zap.String("ownerID", ownerID),
			zap.Error(err))
		return Reply{Kind: ReplyUnrelated}, nil
	}
	d := intent.Decide(j, pending)
	a.logger.Debug("message routed",
		zap.String("ownerID", ownerID),
		zap.String("kind", string(j.Kind)),
		zap.String("confidence", string(j.Confidence)),
		zap.String("route", string(d.Route)))

	switch d.Route {
	case intent.RouteConfirm:
		return a.confirm(ctx, ownerID, d.Target.ID)
	case intent.RouteReject:
		act, err := a.proposals.Resolve(d.Target.ID, modal.OutcomeRejected)
		if errors.Is(err, modal.ErrNotPending) {
			return a.alreadyHandled(ownerID), nil
		}
		if err != nil {
			return a.notice(err)
		}
		return Reply{Kind: ReplyRejected, Text: "Cancelled: " + modal.Describe(act) + ". Nothing was changed.", Action: &act}, nil
	case intent.RouteCorrect:
		return a.ApplyCorrection(ctx, ownerID, text, d.Target.ID)
	case intent.RouteClarify:
		return Reply{Kind: ReplyClarify, Text: d.Question, Action: d.Target}, nil
	}
	return Reply{Kind: ReplyUnrelated}, nil
}

func (a *Assistant) withoutPending(ctx context.Context, ownerID, text string) Reply {
	j, _ := a.rules.Classify(ctx, text, nil)
	if j.Kind == intent.KindConfirmation || j.Kind == intent.KindRejection {
		if _, ok := a.proposals.RecentlyHandled(ownerID); ok {
			return a.alreadyHandled(ownerID)
		}
	}
	return Reply{Kind: ReplyUnrelated}
}

func (a *Assistant) alreadyHandled(ownerID string) Reply {
	act, ok := a.proposals.RecentlyHandled(ownerID)
	if !ok {
		return Reply{Kind: ReplyNotice, Text: "That request was already handled."}
	}
	return Reply{
		Kind:   ReplyAlreadyHandled,
		Text:   fmt.Sprintf("That request was already handled (%s: %s).", act.Status, modal.Describe(act)),
		Action: &act,
	}
}

func (a *Assistant) confirm(ctx context.Context, ownerID, actionID string) (Reply, error) {
	if _, err := a.proposals.Resolve(actionID, modal.OutcomeApproved); err != nil {
		if errors.Is(err, modal.ErrNotPending) {
			return a.alreadyHandled(ownerID), nil
		}
		return a.notice(err)
	}
	res, err := a.executor.Execute(ctx, actionID)
	if err != nil {
		return a.notice(err)
	}
	act, _ := a.proposals.Get(actionID)
	return Reply{Kind: ReplyExecuted, Text: resultText(act, res), Action: &act, Result: &res}, nil
}

// ApplyCorrection revises the targeted (or most recent) pending action and
// asks for confirmation again.
func (a *Assistant) ApplyCorrection(ctx context.Context, ownerID, text, targetID string) (Reply, error) {
	out, err := a.corrections.Apply(ctx, ownerID, text, targetID)
	if err != nil {
		return a.notice(err)
	}
	changes := make([]string, len(out.Changes))
	for i, c := range out.Changes {
		changes[i] = c.String()
	}
	return Reply{
		Kind:    ReplyCorrected,
		Text:    "Updated: " + strings.Join(changes, "; ") + ". " + confirmPrompt(out.Action),
		Action:  &out.Action,
		Changes: out.Changes,
	}, nil
}

// ResolveEntity maps a typed identifier to a record of collection.
func (a *Assistant) ResolveEntity(ctx context.Context, companyID string, collection modal.Collection, identifier string) (resolver.Match, error) {
	doc, err := a.store.Load(ctx, companyID)
	if err != nil {
		return resolver.Match{}, err
	}
	return a.resolver.Resolve(ctx, collection, resolver.Candidates(doc, collection), identifier)
}

// ExecuteApproved runs an action that was approved out of band.
func (a *Assistant) ExecuteApproved(ctx context.Context, actionID string) (modal.ExecutionResult, error) {
	return a.executor.Execute(ctx, actionID)
}

// notice turns recoverable pipeline errors into a reply. Store failures and
// anything unexpected are returned as errors.
func (a *Assistant) notice(err error) (Reply, error) {
	var nf *resolver.NotFoundError
	switch {
	case errors.As(err, &nf):
		return Reply{Kind: ReplyNotice, Text: capitalize(nf.Error()) + ".", Options: nf.Suggestions}, nil
	case errors.Is(err, modal.ErrNoPendingAction):
		return Reply{Kind: ReplyNotice, Text: "There is no pending request to change."}, nil
	case errors.Is(err, modal.ErrUnsupportedActionType):
		return Reply{Kind: ReplyNotice, Text: "Corrections are only supported for new employees. Reply no to cancel this request and send a new one."}, nil
	case errors.Is(err, modal.ErrNoChanges):
		return Reply{Kind: ReplyNotice, Text: "I couldn't find anything to change in that correction. Try something like \"role to Patrol Driver\"."}, nil
	case errors.Is(err, modal.ErrNotPending), errors.Is(err, modal.ErrNotApproved):
		return Reply{Kind: ReplyNotice, Text: "That request is no longer waiting for approval."}, nil
	case errors.Is(err, modal.ErrEntityNotFound),
		errors.Is(err, modal.ErrInvalidPayload),
		errors.Is(err, modal.ErrAmbiguousIntent):
		return Reply{Kind: ReplyNotice, Text: capitalize(err.Error()) + "."}, nil
	}
	return Reply{}, err
}

func confirmPrompt(a modal.PendingAction) string {
	prefix := "Please confirm: "
	if modal.Destructive(a.Payload) {
		prefix = "This cannot be undone from chat. Please confirm: "
	}
	return prefix + modal.Describe(a) + ". Reply yes to proceed or no to cancel."
}

func resultText(a modal.PendingAction, res modal.ExecutionResult) string {
	text := res.Message
	if a.Payload != nil && modal.Destructive(a.Payload) && !res.BackupCreated && len(res.Affected) > 0 {
		text += " Warning: a backup could not be saved before this change."
	}
	return text
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
