package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"staffops/internal/llm"
	"staffops/internal/modal"
)

const classifierSystem = `You read replies in a chat where an assistant manages records for a security staffing company.
The assistant proposed one or more changes and is waiting for the user to approve or reject them.
Decide whether the user's message responds to the pending change or is something else.

- isConfirmation: the user approves the pending change ("yes", "go ahead", "that's right, add him").
- isRejection: the user declines it ("no", "cancel that", "don't do it").
- isModification: the user wants the pending change altered before it is made ("make his role Patrol Driver instead", "phone should be 555-0199").
- isNewCommand: the user is asking for something unrelated to the pending change ("update client ABC rate to $25", "how many guards are active?").
- needsClarification: you cannot tell which of the above applies; put a short question in clarifyingQuestion.

Messages that start with an imperative like "update", "add" or "delete" followed by a different record are new commands, not confirmations.

Answer with JSON only:
{"isConfirmation": bool, "isRejection": bool, "isNewCommand": bool, "isModification": bool, "needsClarification": bool, "confidence": "high"|"medium"|"low", "reasoning": string, "clarifyingQuestion": string}`

type remoteJudgement struct {
	IsConfirmation     bool   `json:"isConfirmation"`
	IsRejection        bool   `json:"isRejection"`
	IsNewCommand       bool   `json:"isNewCommand"`
	IsModification     bool   `json:"isModification"`
	NeedsClarification bool   `json:"needsClarification"`
	Confidence         string `json:"confidence"`
	Reasoning          string `json:"reasoning"`
	ClarifyingQuestion string `json:"clarifyingQuestion"`
}

// RemoteClassifier asks a language model for a structured judgement.
type RemoteClassifier struct {
	gen     llm.Generator
	timeout time.Duration
}

func NewRemoteClassifier(gen llm.Generator, timeout time.Duration) *RemoteClassifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RemoteClassifier{gen: gen, timeout: timeout}
}

func (r *RemoteClassifier) Classify(ctx context.Context, message string, pending []modal.PendingAction) (Judgement, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.gen.Generate(ctx, classifierSystem, classifierPrompt(message, pending))
	if err != nil {
		return Judgement{}, fmt.Errorf("intent: remote classifier: %w", err)
	}
	var out remoteJudgement
	if err := llm.DecodeJSON(text, &out); err != nil {
		return Judgement{}, fmt.Errorf("intent: remote classifier: %w", err)
	}
	conf, err := parseConfidence(out.Confidence)
	if err != nil {
		return Judgement{}, err
	}
	return Judgement{
		Kind:       out.kind(),
		Confidence: conf,
		Reasoning:  out.Reasoning,
		Question:   strings.TrimSpace(out.ClarifyingQuestion),
		Source:     "remote",
	}, nil
}

// kind collapses the flags. Contradictory flags are treated as a request
// for clarification.
func (o remoteJudgement) kind() Kind {
	if o.NeedsClarification || (o.IsConfirmation && o.IsRejection) {
		return KindClarification
	}
	switch {
	case o.IsModification:
		return KindModification
	case o.IsConfirmation:
		return KindConfirmation
	case o.IsRejection:
		return KindRejection
	case o.IsNewCommand:
		return KindNewCommand
	}
	return KindNone
}

func parseConfidence(s string) (Confidence, error) {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh, nil
	case ConfidenceMedium:
		return ConfidenceMedium, nil
	case ConfidenceLow:
		return ConfidenceLow, nil
	}
	return "", fmt.Errorf("intent: remote classifier: unknown confidence %q", s)
}

func classifierPrompt(message string, pending []modal.PendingAction) string {
	var b strings.Builder
	b.WriteString("Pending changes (newest first):\n")
	if len(pending) == 0 {
		b.WriteString("- none\n")
	}
	for _, a := range pending {
		fmt.Fprintf(&b, "- [%s] %s\n", a.Type, modal.Describe(a))
	}
	fmt.Fprintf(&b, "\nUser message: %q\n", message)
	return b.String()
}
