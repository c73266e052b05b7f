package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONToleratesModelNoise(t *testing.T) {
	cases := map[string]string{
		"plain":    `{"id": "3", "ok": true}`,
		"fenced":   "```json\n{\"id\": \"3\", \"ok\": true}\n```",
		"prose":    "Sure! Here you go: {\"id\": \"3\", \"ok\": true} hope that helps",
		"trailing": "{\n  // picked the closest\n  \"id\": \"3\",\n  \"ok\": true,\n}",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			var out struct {
				ID string `json:"id"`
				OK bool   `json:"ok"`
			}
			require.NoError(t, DecodeJSON(in, &out))
			assert.Equal(t, "3", out.ID)
			assert.True(t, out.OK)
		})
	}
}

func TestDecodeJSONBracesInsideStrings(t *testing.T) {
	var out struct {
		Reasoning string `json:"reasoning"`
	}
	require.NoError(t, DecodeJSON(`{"reasoning": "user typed } by mistake"}`, &out))
	assert.Equal(t, "user typed } by mistake", out.Reasoning)
}

func TestDecodeJSONRejectsNonJSON(t *testing.T) {
	var out map[string]any
	assert.Error(t, DecodeJSON("I cannot help with that.", &out))
	assert.Error(t, DecodeJSON(`{"id": `, &out))
}

func TestEntityMatcher(t *testing.T) {
	answer := func(text string) Generator {
		return GeneratorFunc(func(ctx context.Context, system, prompt string) (string, error) {
			assert.Contains(t, prompt, "William Markham (1)")
			return text, nil
		})
	}
	labels := []string{"William Markham (1)", "Dana Reyes (2)"}

	id, found, err := NewEntityMatcher(answer(`{"id": "1"}`)).MatchEntity(context.Background(), "bill", labels)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", id)

	id, found, err = NewEntityMatcher(answer(`{"id": 2}`)).MatchEntity(context.Background(), "dana", labels)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2", id)

	_, found, err = NewEntityMatcher(answer(`{"id": "NONE"}`)).MatchEntity(context.Background(), "zzz", labels)
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = NewEntityMatcher(answer(`no idea`)).MatchEntity(context.Background(), "zzz", labels)
	assert.Error(t, err)
}

func TestEntityMatcherPropagatesGeneratorError(t *testing.T) {
	boom := errors.New("quota exceeded")
	gen := GeneratorFunc(func(context.Context, string, string) (string, error) { return "", boom })
	_, _, err := NewEntityMatcher(gen).MatchEntity(context.Background(), "x", []string{"A (1)"})
	assert.ErrorIs(t, err, boom)
}
