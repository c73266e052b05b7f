// Package intent decides whether a chat message answers a pending action
// (approve, reject, correct) or is a new command.
package intent

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"staffops/internal/modal"
)

type Kind string

const (
	KindConfirmation  Kind = "confirmation"
	KindRejection     Kind = "rejection"
	KindNewCommand    Kind = "new_command"
	KindModification  Kind = "modification"
	KindClarification Kind = "needs_clarification"
	KindNone          Kind = "none"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Judgement is one classifier's reading of a message.
type Judgement struct {
	Kind       Kind       `json:"kind"`
	Confidence Confidence `json:"confidence"`
	Reasoning  string     `json:"reasoning,omitempty"`
	Question   string     `json:"question,omitempty"`
	Source     string     `json:"source,omitempty"`
}

type Classifier interface {
	Classify(ctx context.Context, message string, pending []modal.PendingAction) (Judgement, error)
}

// Chain tries each classifier in order and returns the first judgement that
// did not fail.
type Chain struct {
	classifiers []Classifier
	logger      *zap.Logger
}

func NewChain(logger *zap.Logger, classifiers ...Classifier) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{classifiers: classifiers, logger: logger}
}

func (c *Chain) Classify(ctx context.Context, message string, pending []modal.PendingAction) (Judgement, error) {
	var errs []error
	for _, cl := range c.classifiers {
		j, err := cl.Classify(ctx, message, pending)
		if err == nil {
			return j, nil
		}
		c.logger.Warn("intent classifier failed, falling back",
			zap.String("classifier", fmt.Sprintf("%T", cl)),
			zap.Error(err))
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return Judgement{Kind: KindNone, Confidence: ConfidenceLow}, nil
	}
	return Judgement{}, errors.Join(errs...)
}

type Route string

const (
	RouteConfirm   Route = "confirm"
	RouteReject    Route = "reject"
	RouteCorrect   Route = "correct"
	RouteClarify   Route = "clarify"
	RouteCommand   Route = "command"
	RouteUnrelated Route = "unrelated"
)

// Decision is what the router does with a message. Target is the pending
// action the message answers, pinned at decision time.
type Decision struct {
	Route    Route
	Target   *modal.PendingAction
	Question string
}

// Decide applies the routing policy to a judgement. pending is newest
// first; the newest entry is the target of any confirmation path.
func Decide(j Judgement, pending []modal.PendingAction) Decision {
	if len(pending) == 0 {
		return Decision{Route: RouteUnrelated}
	}
	target := pending[0]
	d := Decision{Target: &target}

	switch {
	case j.Kind == KindClarification:
		d.Route = RouteClarify
		d.Question = j.Question
		if d.Question == "" {
			d.Question = clarifyingQuestion(target)
		}
		return d
	case j.Confidence == ConfidenceMedium && j.Kind != KindNone:
		d.Route = RouteClarify
		d.Question = clarifyingQuestion(target)
		return d
	case j.Confidence != ConfidenceHigh:
		return Decision{Route: RouteUnrelated}
	}

	switch j.Kind {
	case KindConfirmation:
		d.Route = RouteConfirm
	case KindRejection:
		d.Route = RouteReject
	case KindModification:
		d.Route = RouteCorrect
	case KindNewCommand:
		return Decision{Route: RouteCommand}
	default:
		return Decision{Route: RouteUnrelated}
	}
	return d
}

func clarifyingQuestion(a modal.PendingAction) string {
	return fmt.Sprintf("I have a pending request to %s. Should I go ahead with it (yes/no), or is your message a new request?", modal.Describe(a))
}
