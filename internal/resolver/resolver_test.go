package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffops/internal/modal"
)

var guards = []Candidate{
	{ID: "1", Name: "William Markham"},
	{ID: "2", Name: "Bill Johnson"},
}

type stubMatcher struct {
	id     string
	found  bool
	err    error
	labels []string
}

func (s *stubMatcher) MatchEntity(_ context.Context, _ string, labels []string) (string, bool, error) {
	s.labels = labels
	return s.id, s.found, s.err
}

func TestResolveFallbackScore(t *testing.T) {
	r := New(nil, nil)

	m, err := r.Resolve(context.Background(), modal.CollectionEmployees, guards, "william")
	require.NoError(t, err)
	assert.Equal(t, "1", m.Candidate.ID)
	assert.Equal(t, MethodScore, m.Method)
	assert.Equal(t, 7, m.Score)
}

func TestResolveUnknownIdentifier(t *testing.T) {
	r := New(nil, nil)

	_, err := r.Resolve(context.Background(), modal.CollectionEmployees, guards, "zzz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, modal.ErrEntityNotFound))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "zzz", nf.Identifier)
}

func TestResolveByIDAndExactName(t *testing.T) {
	r := New(&stubMatcher{err: errors.New("should not be called")}, nil)

	m, err := r.Resolve(context.Background(), modal.CollectionEmployees, guards, " 2 ")
	require.NoError(t, err)
	assert.Equal(t, MethodID, m.Method)
	assert.Equal(t, "Bill Johnson", m.Candidate.Name)

	m, err = r.Resolve(context.Background(), modal.CollectionEmployees, guards, "bill johnson")
	require.NoError(t, err)
	assert.Equal(t, MethodExactName, m.Method)
}

func TestResolveRemoteMatcher(t *testing.T) {
	stub := &stubMatcher{id: "2", found: true}
	r := New(stub, nil)

	m, err := r.Resolve(context.Background(), modal.CollectionEmployees, guards, "billy j")
	require.NoError(t, err)
	assert.Equal(t, MethodRemote, m.Method)
	assert.Equal(t, "2", m.Candidate.ID)
	assert.Equal(t, []string{"William Markham (1)", "Bill Johnson (2)"}, stub.labels)
}

func TestResolveRemoteNoMatchIsFinal(t *testing.T) {
	// An explicit "no match" must not be second-guessed by the scorer.
	r := New(&stubMatcher{found: false}, nil)

	_, err := r.Resolve(context.Background(), modal.CollectionEmployees, guards, "william")
	assert.True(t, errors.Is(err, modal.ErrEntityNotFound))
}

func TestResolveRemoteFailureFallsBack(t *testing.T) {
	for name, stub := range map[string]*stubMatcher{
		"error":      {err: errors.New("quota exceeded")},
		"unknown id": {id: "99", found: true},
	} {
		t.Run(name, func(t *testing.T) {
			r := New(stub, nil)
			m, err := r.Resolve(context.Background(), modal.CollectionEmployees, guards, "markham")
			require.NoError(t, err)
			assert.Equal(t, MethodScore, m.Method)
			assert.Equal(t, "1", m.Candidate.ID)
		})
	}
}

func TestScoreTieKeepsListOrder(t *testing.T) {
	c, score, ok := Score([]Candidate{{ID: "a", Name: "North Gate"}, {ID: "b", Name: "South Gate"}}, "gate")
	require.True(t, ok)
	assert.Equal(t, "a", c.ID)
	assert.Equal(t, 4, score)
}

func TestScoreBelowThreshold(t *testing.T) {
	_, score, ok := Score(guards, "jo")
	assert.False(t, ok)
	assert.Equal(t, 2, score)
}

func TestScoreCountsCharactersNotBytes(t *testing.T) {
	people := []Candidate{{ID: "1", Name: "Jérôme Dubois"}, {ID: "2", Name: "Zoë Martin"}}

	_, score, ok := Score(people, "jé")
	assert.False(t, ok)
	assert.Equal(t, 2, score)

	c, score, ok := Score(people, "zoë")
	require.True(t, ok)
	assert.Equal(t, "2", c.ID)
	assert.Equal(t, 3, score)
}

func TestNotFoundSuggestions(t *testing.T) {
	r := New(nil, nil)
	_, err := r.Resolve(context.Background(), modal.CollectionClients,
		[]Candidate{{ID: "1", Name: "Harbor Logistics"}, {ID: "2", Name: "Maple Mall"}}, "hbr")

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []string{"Harbor Logistics"}, nf.Suggestions)
	assert.Contains(t, err.Error(), "did you mean Harbor Logistics?")
}
