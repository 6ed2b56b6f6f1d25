package reasoning

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONPlain(t *testing.T) {
	var out map[string]any
	require.NoError(t, DecodeJSON(`{"decision":"approved"}`, &out))
	assert.Equal(t, "approved", out["decision"])
}

func TestDecodeJSONStripsFences(t *testing.T) {
	raw := "```json\n{\"decision\":\"denied\",\"confidence\":0.8}\n```"
	var out map[string]any
	require.NoError(t, DecodeJSON(raw, &out))
	assert.Equal(t, "denied", out["decision"])

	// Bare fences without the language tag.
	raw = "```\n{\"ok\":true}\n```"
	out = nil
	require.NoError(t, DecodeJSON(raw, &out))
	assert.Equal(t, true, out["ok"])
}

func TestDecodeJSONEmpty(t *testing.T) {
	var out map[string]any
	err := DecodeJSON("   ", &out)
	assert.True(t, errors.Is(err, ErrEmpty))
}

func TestDecodeJSONMalformed(t *testing.T) {
	var out map[string]any
	err := DecodeJSON("I am sorry, I cannot answer that.", &out)
	assert.True(t, errors.Is(err, ErrMalformed))

	err = DecodeJSON("```json\nstill not json\n```", &out)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestStripFencesLeavesPlainTextAlone(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
}

func TestStringListSkipsNonStrings(t *testing.T) {
	got := StringList([]any{"user.income", 42.0, map[string]any{"x": 1}, " accounts.balance ", ""})
	assert.Equal(t, []string{"user.income", "accounts.balance"}, got)
}

func TestNumberAndTextDefaults(t *testing.T) {
	assert.Equal(t, 0.7, Number(0.7, 0.5))
	assert.Equal(t, 0.5, Number("high", 0.5))
	assert.Equal(t, 0.5, Number(nil, 0.5))

	assert.Equal(t, "low", Text("low", "medium"))
	assert.Equal(t, "medium", Text(12, "medium"))
	assert.Equal(t, "medium", Text("  ", "medium"))
}

func TestUnavailableClient(t *testing.T) {
	_, err := Unavailable{}.Generate(t.Context(), Request{Prompt: "hi"})
	assert.True(t, errors.Is(err, ErrUnavailable))
}
