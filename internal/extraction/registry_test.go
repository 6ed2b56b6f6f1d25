package extraction

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticSource(topic string, keywords []string, always bool, payload map[string]any, attrs ...string) Source {
	return Source{
		Topic:         topic,
		Keywords:      keywords,
		AlwaysInclude: always,
		Extract: func(context.Context, string) (Result, error) {
			return Result{Payload: payload, Attributes: attrs}, nil
		},
	}
}

func TestSelectMatchesKeywordSubstrings(t *testing.T) {
	r := NewRegistry(discardLogger(),
		staticSource("user", []string{"me", "my"}, true, map[string]any{"name": "x"}),
		staticSource("accounts", []string{"account", "balance"}, false, map[string]any{"n": 1}),
		staticSource("savings_accounts", []string{"savings", "goal"}, false, map[string]any{"n": 2}),
		staticSource("savings_goals", []string{"goal", "target"}, false, map[string]any{"n": 3}),
	)

	// One keyword can trigger several topics.
	topics := r.Select("how are my goals doing")
	assert.Equal(t, []string{"user", "savings_accounts", "savings_goals"}, topics)

	// Matching is substring-based, so "accountability" triggers accounts.
	topics = r.Select("accountability")
	assert.Contains(t, topics, "accounts")

	// Always-include sources run even with no match at all.
	topics = r.Select("tell a joke")
	assert.Equal(t, []string{"user"}, topics)
}

func TestSelectIsCaseInsensitive(t *testing.T) {
	r := NewRegistry(discardLogger(),
		staticSource("accounts", []string{"balance"}, false, map[string]any{"n": 1}),
	)
	assert.Equal(t, []string{"accounts"}, r.Select("What is my BALANCE?"))
}

func TestExtractAllMergesPayloadsAndAttributes(t *testing.T) {
	r := NewRegistry(discardLogger(),
		staticSource("user", nil, true, map[string]any{"name": "Jo"}, "user.firstName"),
		staticSource("accounts", []string{"balance"}, false,
			map[string]any{"total": 100.0}, "accounts.balance", "accounts.balance", "accounts.status"),
	)

	data, attrs := r.ExtractAll(context.Background(), "u1", "what is my balance")
	require.Contains(t, data, "user")
	require.Contains(t, data, "accounts")
	assert.Equal(t, []string{"user.firstName", "accounts.balance", "accounts.status"}, attrs)
}

func TestExtractAllSkipsEmptyAndFailedSources(t *testing.T) {
	r := NewRegistry(discardLogger(),
		staticSource("user", nil, true, map[string]any{"name": "Jo"}, "user.firstName"),
		Source{
			Topic: "accounts", Keywords: []string{"balance"},
			Extract: func(context.Context, string) (Result, error) {
				return Result{}, errors.New("store down")
			},
		},
		Source{
			Topic: "transactions", Keywords: []string{"balance"},
			// Consent denied: empty payload, no error.
			Extract: func(context.Context, string) (Result, error) { return Result{}, nil },
		},
	)

	data, attrs := r.ExtractAll(context.Background(), "u1", "balance please")
	assert.Len(t, data, 1)
	assert.NotContains(t, data, "accounts")
	assert.NotContains(t, data, "transactions")
	assert.Equal(t, []string{"user.firstName"}, attrs)
}

func TestExtractAllAlwaysIncludesUserTopic(t *testing.T) {
	r := NewRegistry(discardLogger(),
		// User source with AlwaysInclude false, simulating a misconfigured
		// table; the registry still forces it in.
		staticSource("user", []string{"profile"}, false, map[string]any{"name": "Jo"}, "user.firstName"),
	)

	data, _ := r.ExtractAll(context.Background(), "u1", "nothing relevant")
	assert.Contains(t, data, "user")
}
