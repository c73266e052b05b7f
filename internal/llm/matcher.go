package llm

import (
	"context"
	"fmt"
	"strings"
)

// NoMatch is the id the model answers with when nothing fits.
const NoMatch = "NONE"

const matcherSystem = `You match an informal reference typed in chat to one record of a security staffing company.
Candidates are listed as "name (id)". Tolerate nicknames, typos, case differences and partial names.
Answer with JSON only: {"id": "<candidate id>"} for the best match, or {"id": "NONE"} if no candidate plausibly matches.`

// EntityMatcher asks the model to pick a candidate id for a typed
// identifier.
type EntityMatcher struct {
	gen Generator
}

func NewEntityMatcher(gen Generator) *EntityMatcher {
	return &EntityMatcher{gen: gen}
}

func (m *EntityMatcher) MatchEntity(ctx context.Context, identifier string, labels []string) (string, bool, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Reference: %q\nCandidates:\n", identifier)
	for _, l := range labels {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteByte('\n')
	}

	text, err := m.gen.Generate(ctx, matcherSystem, b.String())
	if err != nil {
		return "", false, err
	}
	var out struct {
		ID any `json:"id"`
	}
	if err := DecodeJSON(text, &out); err != nil {
		return "", false, err
	}
	var id string
	switch v := out.ID.(type) {
	case string:
		id = strings.TrimSpace(v)
	case float64:
		id = fmt.Sprintf("%.0f", v)
	case nil:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("llm: unexpected id %v", v)
	}
	if id == "" || strings.EqualFold(id, NoMatch) || strings.EqualFold(id, "null") {
		return "", false, nil
	}
	return id, true, nil
}
