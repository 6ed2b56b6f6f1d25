package chat

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glassbank/internal/attribution"
	"glassbank/internal/audit"
	"glassbank/internal/consent"
	"glassbank/internal/domain"
	"glassbank/internal/extraction"
	"glassbank/internal/reasoning"
	"glassbank/internal/storage"
	"glassbank/pkg/apperrors"
)

type scriptedReasoner struct {
	output string
	err    error
}

func (s *scriptedReasoner) Generate(context.Context, reasoning.Request) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.output, nil
}

func newTestService(t *testing.T, reasoner reasoning.Client) (*Service, *audit.InMemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mem := storage.NewMemory()
	require.NoError(t, mem.Users().Save(context.Background(), domain.User{ID: "u1", Income: 72000}))

	source := extraction.Source{
		Topic:         "user",
		AlwaysInclude: true,
		Extract: func(ctx context.Context, userID string) (extraction.Result, error) {
			user, err := mem.Users().Get(ctx, userID, "income")
			if err != nil {
				return extraction.Result{}, err
			}
			return extraction.Result{
				Payload:    map[string]any{"income": user.Income},
				Attributes: []string{"user.income"},
			}, nil
		},
	}
	registry := extraction.NewRegistry(logger, source)

	consentSvc := consent.NewService(consent.NewInMemoryStore(), nil, logger)
	auditStore := audit.NewInMemoryStore()
	audits := audit.NewService(auditStore, logger, nil)
	pipeline := attribution.New(registry, reasoner, consentSvc, audits, logger, nil, "gemini-test")

	return NewService(pipeline, logger), auditStore
}

func TestQueryType(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"Am I eligible for a loan?", "loan"},
		{"Can I borrow 50000?", "loan"},
		{"How is my vacation goal doing?", "goal"},
		{"Show my account balance", "account"},
		{"List my recent transactions", "transaction"},
		{"Any offers for me?", "offer"},
		{"Explain my profile", "explanation"},
		{"Hello there", "general"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, QueryType(tc.query), tc.query)
	}
}

func TestQueryTypeOrderOfPrecedence(t *testing.T) {
	// "loan" wins over "account" even though both keywords appear.
	assert.Equal(t, "loan", QueryType("loan against my account"))
	// "goal" wins over "savings" from the account set.
	assert.Equal(t, "goal", QueryType("my savings goal"))
}

func TestQueryAnswers(t *testing.T) {
	reasoner := &scriptedReasoner{output: `{
		"response": "Your income is **72,000**.",
		"attributes_used": ["user.income"],
		"confidence": 0.9
	}`}
	svc, auditStore := newTestService(t, reasoner)

	answer, err := svc.Query(context.Background(), "u1", "what is my income?")
	require.NoError(t, err)

	assert.Equal(t, "Your income is **72,000**.", answer.Response)
	assert.Equal(t, []string{"user.income"}, answer.AttributesUsed)
	assert.Equal(t, "explanation", answer.QueryType)
	assert.InDelta(t, 0.9, answer.Confidence, 1e-9)
	require.NotEmpty(t, answer.AuditID)

	record, err := auditStore.Get(context.Background(), "u1", answer.AuditID)
	require.NoError(t, err)
	assert.Equal(t, "explanation", record.Operation)
}

func TestQueryLenientValidation(t *testing.T) {
	// The model claims a well-formed attribute the narrow extraction window
	// never touched; chat accepts it. The garbage claim still gets dropped.
	reasoner := &scriptedReasoner{output: `{
		"response": "ok",
		"attributes_used": ["user.income", "savings_goals.status", "made.up"]
	}`}
	svc, _ := newTestService(t, reasoner)

	answer, err := svc.Query(context.Background(), "u1", "what is my income?")
	require.NoError(t, err)

	assert.Contains(t, answer.AttributesUsed, "savings_goals.status")
	assert.NotContains(t, answer.AttributesUsed, "made.up")
}

func TestQueryRejectsEmpty(t *testing.T) {
	svc, _ := newTestService(t, &scriptedReasoner{output: "{}"})

	_, err := svc.Query(context.Background(), "u1", "   ")
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestQueryPropagatesTimeout(t *testing.T) {
	svc, _ := newTestService(t, &scriptedReasoner{err: reasoning.ErrTimeout})

	_, err := svc.Query(context.Background(), "u1", "hello?")
	assert.True(t, apperrors.Is(err, apperrors.CodeReasoningTimeout))
}
