// Package resolver maps a free-text identifier typed in chat to a canonical
// record: exact id, exact name, a remote semantic matcher, and finally a
// deterministic substring scorer when the matcher is unavailable.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"

	"staffops/internal/modal"
)

// MinScore is the lowest fallback score accepted as a match.
const MinScore = 3

type Method string

const (
	MethodID        Method = "id"
	MethodExactName Method = "exact_name"
	MethodRemote    Method = "remote"
	MethodScore     Method = "fallback_score"
)

type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Label is the "name (id)" form handed to the remote matcher.
func (c Candidate) Label() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.ID)
}

type Match struct {
	Candidate Candidate `json:"candidate"`
	Method    Method    `json:"method"`
	Score     int       `json:"score,omitempty"`
}

// Matcher picks the best semantic match for identifier among labels of the
// form "name (id)". found=false is an explicit "no match" answer; an error
// means the capability is unavailable.
type Matcher interface {
	MatchEntity(ctx context.Context, identifier string, labels []string) (id string, found bool, err error)
}

// NotFoundError is returned once every strategy is exhausted.
type NotFoundError struct {
	Collection  modal.Collection
	Identifier  string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("no %s matching %q", strings.TrimSuffix(string(e.Collection), "s"), e.Identifier)
	if len(e.Suggestions) > 0 {
		msg += "; did you mean " + strings.Join(e.Suggestions, ", ") + "?"
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return modal.ErrEntityNotFound }

type Resolver struct {
	matcher Matcher
	logger  *zap.Logger
	timeout time.Duration
}

type Option func(*Resolver)

// WithTimeout bounds each remote matcher call.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// New builds a resolver. A nil matcher means resolution goes straight from
// exact matching to the fallback scorer.
func New(matcher Matcher, logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{matcher: matcher, logger: logger, timeout: 15 * time.Second}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, collection modal.Collection, candidates []Candidate, identifier string) (Match, error) {
	ident := strings.TrimSpace(identifier)
	notFound := &NotFoundError{Collection: collection, Identifier: ident}
	if ident == "" || len(candidates) == 0 {
		return Match{}, notFound
	}

	if c, ok := byID(candidates, ident); ok {
		return Match{Candidate: c, Method: MethodID}, nil
	}
	for _, c := range candidates {
		if strings.EqualFold(strings.TrimSpace(c.Name), ident) {
			return Match{Candidate: c, Method: MethodExactName}, nil
		}
	}

	if r.matcher != nil {
		m, err := r.remote(ctx, candidates, ident)
		switch {
		case err == nil:
			return m, nil
		case errors.Is(err, modal.ErrEntityNotFound):
			notFound.Suggestions = suggest(candidates, ident)
			return Match{}, notFound
		default:
			r.logger.Warn("remote entity matcher unavailable, using fallback scorer",
				zap.String("collection", string(collection)),
				zap.String("identifier", ident),
				zap.Error(err))
		}
	}

	if c, score, ok := Score(candidates, ident); ok {
		return Match{Candidate: c, Method: MethodScore, Score: score}, nil
	}
	notFound.Suggestions = suggest(candidates, ident)
	return Match{}, notFound
}

func (r *Resolver) remote(ctx context.Context, candidates []Candidate, ident string) (Match, error) {
	labels := make([]string, len(candidates))
	for i, c := range candidates {
		labels[i] = c.Label()
	}
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	id, found, err := r.matcher.MatchEntity(cctx, ident, labels)
	if err != nil {
		return Match{}, err
	}
	if !found {
		return Match{}, modal.ErrEntityNotFound
	}
	for _, c := range candidates {
		if c.ID == strings.TrimSpace(id) {
			return Match{Candidate: c, Method: MethodRemote}, nil
		}
	}
	return Match{}, fmt.Errorf("matcher returned unknown id %q", id)
}

func byID(candidates []Candidate, ident string) (Candidate, bool) {
	raw := strings.TrimPrefix(ident, "#")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return Candidate{}, false
	}
	norm := strconv.Itoa(n)
	for _, c := range candidates {
		id := strings.TrimSpace(c.ID)
		if id == raw || id == norm {
			return c, true
		}
	}
	return Candidate{}, false
}

// Score runs the deterministic fallback: every identifier token found as a
// substring of a candidate name adds its length in characters to that
// candidate's score.
// The highest score wins, the earliest candidate on ties, and the winner
// must reach MinScore.
func Score(candidates []Candidate, identifier string) (Candidate, int, bool) {
	tokens := tokenize(identifier)
	best, bestScore := -1, 0
	for i, c := range candidates {
		name := strings.ToLower(c.Name)
		score := 0
		for _, tok := range tokens {
			if strings.Contains(name, tok) {
				score += utf8.RuneCountInString(tok)
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore < MinScore {
		return Candidate{}, bestScore, false
	}
	return candidates[best], bestScore, true
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func suggest(candidates []Candidate, ident string) []string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	matches := fuzzy.Find(strings.ToLower(ident), lowerAll(names))
	var out []string
	for _, m := range matches {
		out = append(out, names[m.Index])
		if len(out) == 3 {
			break
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// Employees lists employee candidates.
func Employees(list []modal.Employee) []Candidate {
	out := make([]Candidate, len(list))
	for i, e := range list {
		out[i] = Candidate{ID: e.ID, Name: e.Name}
	}
	return out
}

func Clients(list []modal.Client) []Candidate {
	out := make([]Candidate, len(list))
	for i, c := range list {
		out[i] = Candidate{ID: c.ID, Name: c.Name}
	}
	return out
}

func Modules(list []modal.Module) []Candidate {
	out := make([]Candidate, len(list))
	for i, m := range list {
		out[i] = Candidate{ID: m.ID, Name: m.Name}
	}
	return out
}

// Candidates returns the candidate list for one collection of a document.
func Candidates(doc *modal.CompanyRecords, c modal.Collection) []Candidate {
	switch c {
	case modal.CollectionEmployees:
		return Employees(doc.Employees)
	case modal.CollectionClients:
		return Clients(doc.Clients)
	case modal.CollectionModules:
		return Modules(doc.PlatformModules)
	}
	return nil
}
