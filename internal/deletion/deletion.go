// Package deletion classifies a deletion request as naming one target, all
// targets, or neither. Anything short of an unambiguous single or bulk
// request comes back as Unclear, with a question listing what exists.
package deletion

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"staffops/internal/resolver"
)

type Scope string

const (
	ScopeSingle  Scope = "single"
	ScopeAll     Scope = "all"
	ScopeUnclear Scope = "unclear"
)

type Intent struct {
	Scope     Scope                `json:"scope"`
	Target    *resolver.Candidate  `json:"target,omitempty"`
	Available []resolver.Candidate `json:"available,omitempty"`
	// Mentioned lists the targets an unclear message named or partly named.
	Mentioned []resolver.Candidate `json:"mentioned,omitempty"`
	Question  string               `json:"question,omitempty"`
}

// Allowed reports whether the intent is specific enough to act on.
func (i Intent) Allowed() bool {
	return i.Scope == ScopeSingle || i.Scope == ScopeAll
}

var bulkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(delete|remove|clear|wipe|drop|erase|purge)\s+(all|every|everything|each)\b`),
	regexp.MustCompile(`\b(delete|remove|clear|wipe|drop|erase|purge)\s+(all\s+)?(of\s+)?(the\s+)?(entire|whole)\b`),
	regexp.MustCompile(`\b(clear|wipe)\s+(out\s+)?everything\b`),
	regexp.MustCompile(`\ball\s+(of\s+)?(the\s+|my\s+|our\s+)?(modules|clients|employees|targets|records)\b`),
	regexp.MustCompile(`\bstart\s+(over|fresh)\b`),
}

// genericWords never identify a particular target on their own.
var genericWords = map[string]bool{
	"module": true, "modules": true, "the": true, "a": true, "an": true,
	"of": true, "and": true, "for": true, "my": true, "our": true,
	"system": true, "platform": true, "feature": true, "tab": true,
	"delete": true, "remove": true, "all": true,
}

// fillerWords carry the request but not the subject of a deletion.
var fillerWords = map[string]bool{
	"delete": true, "remove": true, "erase": true, "drop": true, "fire": true,
	"get": true, "rid": true, "of": true, "the": true, "a": true, "an": true,
	"please": true, "can": true, "you": true, "could": true, "i": true,
	"want": true, "to": true, "need": true, "my": true, "our": true,
	"employee": true, "employees": true, "staff": true, "guard": true, "guards": true,
	"client": true, "clients": true, "customer": true, "customers": true,
	"account": true, "record": true, "from": true, "list": true, "roster": true,
}

// Subject strips request verbs, fillers and collection nouns from message,
// leaving the words that name the target ("delete employee Bill" -> "bill").
func Subject(message string) string {
	var out []string
	for _, w := range strings.Fields(normalize(message)) {
		if !fillerWords[w] {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}

// Classify inspects message against the live target names. The noun is used
// only in the clarifying question ("module", "client"), which suggests a bulk
// deletion only when bulkAllowed is set.
func Classify(message string, targets []resolver.Candidate, noun string, bulkAllowed bool) Intent {
	msg := normalize(message)
	named, certain := namedTargets(msg, targets)
	bulk := matchesBulk(msg)

	switch {
	case len(named) == 1 && certain && !bulk:
		t := named[0]
		return Intent{Scope: ScopeSingle, Target: &t, Available: targets}
	case bulk && len(named) == 0:
		return Intent{Scope: ScopeAll, Available: targets}
	}
	return Intent{
		Scope:     ScopeUnclear,
		Available: targets,
		Mentioned: named,
		Question:  question(noun, targets, named, bulkAllowed),
	}
}

func matchesBulk(msg string) bool {
	for _, re := range bulkPatterns {
		if re.MatchString(msg) {
			return true
		}
	}
	return false
}

// namedTargets returns targets whose full name appears in msg. When one full
// name contains another ("Camera" inside "Camera Analytics"), the longer wins.
// Failing a full name, a target counts as named when msg has every one of its
// distinctive tokens, and as mentioned when msg has only some. certain is set
// only for full-name matches and for a single target named with nothing else
// mentioned; the returned list holds the named targets first.
func namedTargets(msg string, targets []resolver.Candidate) (named []resolver.Candidate, certain bool) {
	words := wordSet(msg)
	var full []resolver.Candidate
	for _, t := range targets {
		name := normalize(t.Name)
		if name != "" && containsPhrase(msg, name) {
			full = append(full, t)
		}
	}
	if len(full) > 0 {
		return dropShadowed(full), true
	}

	var complete, partial []resolver.Candidate
	for _, t := range targets {
		toks := distinctive(t.Name)
		hits := 0
		for _, tok := range toks {
			if words[tok] || words[tok+"s"] {
				hits++
			}
		}
		switch {
		case hits == 0:
		case hits == len(toks):
			complete = append(complete, t)
		default:
			partial = append(partial, t)
		}
	}
	return append(complete, partial...), len(complete) == 1 && len(partial) == 0
}

func dropShadowed(list []resolver.Candidate) []resolver.Candidate {
	var out []resolver.Candidate
	for i, a := range list {
		shadowed := false
		an := normalize(a.Name)
		for j, b := range list {
			if i == j {
				continue
			}
			bn := normalize(b.Name)
			if len(bn) > len(an) && containsPhrase(bn, an) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			out = append(out, a)
		}
	}
	return out
}

func distinctive(name string) []string {
	var out []string
	for _, w := range strings.Fields(normalize(name)) {
		if !genericWords[w] {
			out = append(out, w)
		}
	}
	return out
}

func question(noun string, targets, named []resolver.Candidate, bulkAllowed bool) string {
	if noun == "" {
		noun = "item"
	}
	if len(targets) == 0 {
		return fmt.Sprintf("There are no %ss to delete.", noun)
	}
	list := targets
	if len(named) > 1 {
		list = named
	}
	names := make([]string, len(list))
	for i, t := range list {
		names[i] = t.Name
	}
	q := fmt.Sprintf("Which %s do you want to delete? Available: %s.", noun, strings.Join(names, ", "))
	if !bulkAllowed {
		return q + " Say the exact name."
	}
	return q + fmt.Sprintf(" Say the exact name, or \"delete all %ss\" to remove every one.", noun)
}

func normalize(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func containsPhrase(haystack, phrase string) bool {
	return strings.Contains(" "+haystack+" ", " "+phrase+" ")
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		out[w] = true
	}
	return out
}
