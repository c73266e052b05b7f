package correction

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"staffops/internal/llm"
	"staffops/internal/modal"
)

// fieldAliases maps how people name a field in chat to the canonical name.
// Longer aliases come first so "phone number" wins over "phone".
var fieldAliases = []struct {
	alias string
	field string
}{
	{"phone number", "phone"},
	{"pay rate", "payRate"},
	{"hourly rate", "payRate"},
	{"hire date", "hireDate"},
	{"start date", "hireDate"},
	{"e-mail", "email"},
	{"position", "role"},
	{"location", "location"},
	{"number", "phone"},
	{"email", "email"},
	{"phone", "phone"},
	{"title", "role"},
	{"wage", "payRate"},
	{"name", "name"},
	{"role", "role"},
	{"site", "location"},
	{"post", "location"},
	{"rate", "payRate"},
	{"pay", "payRate"},
	{"job", "role"},
}

// fieldVerb joins a field name to its new value.
const fieldVerb = `(?:\s+(?:should\s+(?:be|have\s+been)|needs\s+to\s+be|to|is|as)\b|\s*[=:])`

var (
	// softSplit marks places that may separate two clauses. They only do when
	// the text after them starts a new field phrase, so values such as
	// "12 Oak St, Springfield" or "Patrol and Response Driver" stay whole.
	softSplit   = regexp.MustCompile(`(?i)\s*(?:,\s*and\b|,|\band\b)\s*`)
	aliasGroup  = aliasAlternation()
	clauseStart = regexp.MustCompile(`(?i)^(?:(?:his|her|their|the)\s+)?(?:` + aliasGroup + `)` + fieldVerb)
	fieldPhrase = regexp.MustCompile(`(?i)\b(` + aliasGroup + `)` + fieldVerb + `\s*(.+)$`)
)

func aliasAlternation() string {
	alts := make([]string, len(fieldAliases))
	for i, a := range fieldAliases {
		alts[i] = regexp.QuoteMeta(a.alias)
	}
	return strings.Join(alts, "|")
}

// RuleParser understands "<field> to|is|should be <value>" phrases, one per
// clause.
type RuleParser struct{}

func (RuleParser) Parse(_ context.Context, _ modal.Employee, text string) (Patch, error) {
	patch := Patch{}
	for _, clause := range splitClauses(text) {
		m := fieldPhrase.FindStringSubmatch(clause)
		if m == nil {
			continue
		}
		field := canonicalField(m[1])
		val := strings.Trim(strings.TrimSpace(m[2]), `."'!`)
		if field == "" || val == "" {
			continue
		}
		patch[field] = val
	}
	return patch, nil
}

// splitClauses splits on semicolons, and on commas or "and" that are
// followed by another field phrase.
func splitClauses(text string) []string {
	var out []string
	for _, hard := range strings.Split(text, ";") {
		for _, p := range splitSoft(hard) {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func splitSoft(s string) []string {
	var parts []string
	start := 0
	for _, loc := range softSplit.FindAllStringIndex(s, -1) {
		if clauseStart.MatchString(s[loc[1]:]) {
			parts = append(parts, s[start:loc[0]])
			start = loc[1]
		}
	}
	return append(parts, s[start:])
}

func canonicalField(alias string) string {
	alias = strings.ToLower(alias)
	for _, a := range fieldAliases {
		if a.alias == alias {
			return a.field
		}
	}
	return ""
}

const parserSystem = `You revise a proposed new-employee record for a security staffing company using the user's correction.
Only change fields the correction mentions. Valid fields: name, role, phone, email, payRate, location, hireDate.
Answer with JSON only: {"fields": {"<field>": "<new value>"}}. Use an empty object when the correction changes nothing.`

// RemoteParser asks a language model which fields the correction changes.
type RemoteParser struct {
	gen     llm.Generator
	timeout time.Duration
}

func NewRemoteParser(gen llm.Generator, timeout time.Duration) *RemoteParser {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RemoteParser{gen: gen, timeout: timeout}
}

func (p *RemoteParser) Parse(ctx context.Context, original modal.Employee, text string) (Patch, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	record, err := json.Marshal(original)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf("Original record:\n%s\n\nCorrection: %q\n", record, text)
	answer, err := p.gen.Generate(ctx, parserSystem, prompt)
	if err != nil {
		return nil, err
	}
	var out struct {
		Fields map[string]any `json:"fields"`
	}
	if err := llm.DecodeJSON(answer, &out); err != nil {
		return nil, err
	}
	patch := Patch{}
	for k, v := range out.Fields {
		field := normalizeFieldName(k)
		if field == "" || v == nil {
			continue
		}
		patch[field] = strings.TrimSpace(fmt.Sprint(v))
	}
	return patch, nil
}

func normalizeFieldName(k string) string {
	for _, f := range fieldOrder {
		if strings.EqualFold(f, k) {
			return f
		}
	}
	return canonicalField(strings.ReplaceAll(k, "_", " "))
}

// Chain returns the first non-empty patch, skipping parsers that fail.
type Chain struct {
	parsers []Parser
	logger  *zap.Logger
}

func NewChain(logger *zap.Logger, parsers ...Parser) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{parsers: parsers, logger: logger}
}

func (c *Chain) Parse(ctx context.Context, original modal.Employee, text string) (Patch, error) {
	var (
		lastErr  error
		answered bool
	)
	for _, p := range c.parsers {
		patch, err := p.Parse(ctx, original, text)
		if err != nil {
			c.logger.Warn("correction parser failed, falling back",
				zap.String("parser", fmt.Sprintf("%T", p)),
				zap.Error(err))
			lastErr = err
			continue
		}
		if len(patch) > 0 {
			return patch, nil
		}
		answered = true
	}
	if !answered && lastErr != nil {
		return nil, lastErr
	}
	return Patch{}, nil
}
