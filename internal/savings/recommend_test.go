package savings

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

func newTestRecommender(t *testing.T, reasoner reasoning.Client) *Recommender {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	mem := storage.NewMemory()
	require.NoError(t, mem.Users().Save(ctx, domain.User{ID: "u1", Income: 240000, CreditScore: 780}))
	require.NoError(t, mem.SavingsAccounts().Save(ctx, domain.SavingsAccount{
		ID: "s1", UserID: "u1", Balance: 15000, APY: 3,
	}))

	registry := extraction.NewRegistry(logger)
	consentSvc := consent.NewService(consent.NewInMemoryStore(), nil, logger)
	audits := audit.NewService(audit.NewInMemoryStore(), logger, nil)
	pipeline := attribution.New(registry, reasoner, consentSvc, audits, logger, nil, "gemini-test")

	return NewRecommender(mem.Users(), mem.Accounts(), mem.SavingsAccounts(), pipeline)
}

func TestRecommendParsesModelOutput(t *testing.T) {
	reasoner := &scriptedReasoner{output: `{
		"recommendedAccount": {
			"accountType": "High-Yield",
			"interestRate": 4.0,
			"apy": 4.08,
			"minimumBalance": 5000,
			"reasoning": "High balance and strong income support a high-yield account.",
			"factors": [
				{"attribute": "user.income", "value": 240000, "impact": "positive", "explanation": "Supports higher minimum balance"}
			],
			"attributes_used": ["user.income", "savings_accounts.balance"]
		},
		"attributes_used": ["user.income", "savings_accounts.balance"]
	}`}
	rec, err := newTestRecommender(t, reasoner).Recommend(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "High-Yield", rec.AccountType)
	assert.InDelta(t, 4.08, rec.RecommendedAPY, 1e-9)
	require.Len(t, rec.Factors, 1)
	assert.Equal(t, "user.income", rec.Factors[0].Attribute)
	// Estimated balance is max(existing savings, 10% income) = 24000.
	assert.Greater(t, rec.EstimatedMonthlyGrowth, 70.0)
	assert.NotEmpty(t, rec.AuditID)
}

func TestRecommendDefaultsWhenUnavailable(t *testing.T) {
	rec, err := newTestRecommender(t, &scriptedReasoner{err: reasoning.ErrUnavailable}).
		Recommend(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "Standard Savings", rec.AccountType)
	assert.InDelta(t, 2.53, rec.RecommendedAPY, 1e-9)
	assert.InDelta(t, 100.0, rec.RecommendedMinimumBalance, 1e-9)
	assert.Empty(t, rec.AuditID)
}

func TestRecommendPropagatesTimeout(t *testing.T) {
	_, err := newTestRecommender(t, &scriptedReasoner{err: reasoning.ErrTimeout}).
		Recommend(context.Background(), "u1")
	assert.True(t, apperrors.Is(err, apperrors.CodeReasoningTimeout))
}

func TestRecommendDefaultsLooseOutput(t *testing.T) {
	rec, err := newTestRecommender(t, &scriptedReasoner{output: `{"recommendedAccount": {}}`}).
		Recommend(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "Standard Savings", rec.AccountType)
	assert.Equal(t, "Standard recommendation", rec.Reasoning)
	assert.Empty(t, rec.Factors)
}
