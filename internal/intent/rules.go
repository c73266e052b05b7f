package intent

import (
	"context"
	"strings"

	"staffops/internal/modal"
)

var approvalWords = []string{
	"yes", "y", "yeah", "yep", "yup", "sure", "confirm", "confirmed", "correct",
	"approve", "approved", "proceed", "ok", "okay", "go ahead", "do it",
	"looks good", "sounds good",
}

var rejectionWords = []string{
	"no", "n", "nope", "cancel", "wrong", "stop", "abort", "reject", "decline",
	"nevermind", "never mind", "don't", "do not",
}

// RuleClassifier only recognizes a whole message that is exactly one
// approval or rejection phrase. Anything else is KindNone.
type RuleClassifier struct {
	approve map[string]bool
	reject  map[string]bool
}

func NewRuleClassifier() *RuleClassifier {
	r := &RuleClassifier{approve: map[string]bool{}, reject: map[string]bool{}}
	for _, w := range approvalWords {
		r.approve[w] = true
	}
	for _, w := range rejectionWords {
		r.reject[w] = true
	}
	return r
}

func (r *RuleClassifier) Classify(_ context.Context, message string, _ []modal.PendingAction) (Judgement, error) {
	m := normalizeReply(message)
	switch {
	case r.approve[m]:
		return Judgement{Kind: KindConfirmation, Confidence: ConfidenceHigh, Reasoning: "exact approval phrase", Source: "rules"}, nil
	case r.reject[m]:
		return Judgement{Kind: KindRejection, Confidence: ConfidenceHigh, Reasoning: "exact rejection phrase", Source: "rules"}, nil
	}
	return Judgement{Kind: KindNone, Confidence: ConfidenceLow, Reasoning: "no exact phrase", Source: "rules"}, nil
}

func normalizeReply(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".!?, ")
	s = strings.ReplaceAll(s, "’", "'")
	return strings.Join(strings.Fields(s), " ")
}
