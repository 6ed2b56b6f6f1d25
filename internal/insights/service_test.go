package insights

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glassbank/internal/attribution"
	"glassbank/internal/audit"
	"glassbank/internal/cache"
	"glassbank/internal/consent"
	"glassbank/internal/domain"
	"glassbank/internal/extraction"
	"glassbank/internal/observer"
	"glassbank/internal/reasoning"
	"glassbank/internal/storage"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type scriptedReasoner struct {
	output string
	err    error

	mu    sync.Mutex
	calls int
}

// Generate is called from parallel sub-tasks, so the counter is locked.
func (s *scriptedReasoner) Generate(context.Context, reasoning.Request) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.output, nil
}

func (s *scriptedReasoner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// seedData gives the user a profile that lands in known health bands:
// income 120000/yr (10000/mo), spending 6000/mo, savings 24000, credit 760.
func seedData(t *testing.T, mem *storage.Memory) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, mem.Users().Save(ctx, domain.User{ID: "u1", Income: 120000, CreditScore: 760}))
	require.NoError(t, mem.Accounts().Save(ctx, domain.Account{
		ID: "a1", UserID: "u1", Balance: 5000, Status: domain.AccountActive, CreatedAt: testNow.AddDate(0, -8, 0),
	}))
	require.NoError(t, mem.SavingsAccounts().Save(ctx, domain.SavingsAccount{
		ID: "s1", UserID: "u1", Balance: 24000, APY: 4, CreatedAt: testNow.AddDate(0, -8, 0),
	}))
	require.NoError(t, mem.SavingsGoals().Save(ctx, domain.SavingsGoal{
		ID: "g1", UserID: "u1", TargetAmount: 10000, CurrentAmount: 2000, MonthlyContribution: 500,
	}))
	for i, tx := range []domain.Transaction{
		{Amount: 20000, Type: domain.TransactionDebit, Category: "rent"},
		{Amount: 16000, Type: domain.TransactionDebit, Category: "food"},
		{Amount: 30000, Type: domain.TransactionCredit, Category: "salary"},
	} {
		tx.ID = string(rune('x' + i))
		tx.UserID = "u1"
		tx.CreatedAt = testNow.AddDate(0, 0, -10*(i+1))
		require.NoError(t, mem.Transactions().Save(ctx, tx))
	}
}

func newTestService(t *testing.T, reasoner reasoning.Client) (*Service, *cache.Memory) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mem := storage.NewMemory()
	seedData(t, mem)

	registry := extraction.NewRegistry(logger)
	consentSvc := consent.NewService(consent.NewInMemoryStore(), nil, logger)
	audits := audit.NewService(audit.NewInMemoryStore(), logger, nil)
	pipeline := attribution.New(registry, reasoner, consentSvc, audits, logger, nil, "gemini-test")

	c := cache.NewMemory().WithClock(func() time.Time { return testNow })
	svc := NewService(
		mem.Users(), mem.Accounts(), mem.Transactions(), mem.SavingsAccounts(), mem.SavingsGoals(),
		pipeline, consentSvc, c, logger, 30*time.Minute,
	).WithClock(func() time.Time { return testNow })
	return svc, c
}

func TestHealthScoreBanding(t *testing.T) {
	svc, _ := newTestService(t, &scriptedReasoner{err: reasoning.ErrUnavailable})

	out, err := svc.GetComprehensive(context.Background(), "u1", false)
	require.NoError(t, err)

	// Income 10000/mo, spending (20000+16000)/6 = 6000/mo.
	// Savings rate 40% -> 25, credit 760 -> 25, emergency fund 4 months -> 20,
	// spending 60% of income -> 25. Total 95.
	assert.Equal(t, 95, out.HealthScore.Overall)
	assert.InDelta(t, 40.0, out.HealthScore.SavingsRate, 0.01)
	assert.Equal(t, 760, out.HealthScore.CreditScore)
	assert.InDelta(t, 4.0, out.HealthScore.EmergencyFund, 0.01)
	assert.InDelta(t, 40.0, out.HealthScore.SpendingControl, 0.01)
}

func TestProfileSummary(t *testing.T) {
	svc, _ := newTestService(t, &scriptedReasoner{err: reasoning.ErrUnavailable})

	out, err := svc.GetComprehensive(context.Background(), "u1", false)
	require.NoError(t, err)

	summary := out.ProfileSummary
	assert.InDelta(t, 120000.0, summary.Income, 0.01)
	assert.InDelta(t, 5000.0, summary.TotalBalance, 0.01)
	assert.InDelta(t, 24000.0, summary.TotalSavings, 0.01)
	assert.InDelta(t, 6000.0, summary.MonthlySpending, 0.01)
	assert.Equal(t, 1, summary.ActiveGoals)
	assert.Equal(t, 1, summary.AccountCount)
}

func TestFallbacksWhenReasoningUnavailable(t *testing.T) {
	svc, _ := newTestService(t, &scriptedReasoner{err: reasoning.ErrUnavailable})

	out, err := svc.GetComprehensive(context.Background(), "u1", false)
	require.NoError(t, err)

	// Spending fallback: category rollup with stable trends, no waste.
	assert.InDelta(t, 36000.0, out.SpendingAnalysis.TotalSpending, 0.01)
	assert.Len(t, out.SpendingAnalysis.Categories, 2)
	for _, category := range out.SpendingAnalysis.Categories {
		assert.Equal(t, "stable", category.Trend)
	}
	assert.Empty(t, out.SpendingAnalysis.WasteAnalysis)

	// Planning fallback: savings cover > 3 months so no emergency plan, but
	// spending is under 80% of income so the savings-rate plan fires.
	require.Len(t, out.FinancialPlanning.Plans, 1)
	assert.Equal(t, "Optimize Savings Rate", out.FinancialPlanning.Plans[0].Title)
}

func TestAIResultsAreParsed(t *testing.T) {
	reasoner := &scriptedReasoner{output: `{
		"summary": "Solid position.",
		"categories": [{"category": "rent", "amount": 20000, "percentage": 55.6, "trend": "stable", "averageSpending": 3333}],
		"wasteAnalysis": [{"category": "food", "wastedAmount": 2000, "reason": "Frequent delivery", "monthlyImpact": 333, "recommendation": "Cook at home"}],
		"plans": [{"title": "Invest Surplus", "timeframe": "long-term", "priority": "medium", "steps": ["Open index fund"], "expectedOutcome": "Growth"}],
		"attributes_used": ["transactions.amount", "transactions.category"]
	}`}
	svc, _ := newTestService(t, reasoner)

	out, err := svc.GetComprehensive(context.Background(), "u1", false)
	require.NoError(t, err)

	require.Len(t, out.SpendingAnalysis.Categories, 1)
	assert.Equal(t, "rent", out.SpendingAnalysis.Categories[0].Category)
	require.Len(t, out.SpendingAnalysis.WasteAnalysis, 1)
	assert.InDelta(t, 333.0, out.SpendingAnalysis.WasteAnalysis[0].MonthlyImpact, 0.01)
	require.Len(t, out.FinancialPlanning.Plans, 1)
	assert.Equal(t, "Invest Surplus", out.FinancialPlanning.Plans[0].Title)
	assert.Equal(t, "Solid position.", out.FinancialPlanning.Summary)
	assert.Contains(t, out.AttributesUsed, "user.creditScore")
	assert.Contains(t, out.AttributesUsed, "transactions.amount")
}

func TestCachingAndRefresh(t *testing.T) {
	reasoner := &scriptedReasoner{err: reasoning.ErrUnavailable}
	svc, _ := newTestService(t, reasoner)
	ctx := context.Background()

	first, err := svc.GetComprehensive(ctx, "u1", false)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	callsAfterFirst := reasoner.callCount()

	second, err := svc.GetComprehensive(ctx, "u1", false)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.HealthScore, second.HealthScore)
	assert.Equal(t, callsAfterFirst, reasoner.callCount())

	third, err := svc.GetComprehensive(ctx, "u1", true)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Greater(t, reasoner.callCount(), callsAfterFirst)
}

func TestConsentFiltersFinalAttributes(t *testing.T) {
	svc, _ := newTestService(t, &scriptedReasoner{err: reasoning.ErrUnavailable})
	// Rebuild consent denial through a fresh service wired to the same
	// stores is heavier than needed; deny via the service's own filter.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	consentSvc := consent.NewService(consent.NewInMemoryStore(), nil, logger)
	_, err := consentSvc.Update(context.Background(), "u1", map[string]bool{"user.creditScore": false})
	require.NoError(t, err)
	svc.consent = consentSvc

	out, err := svc.GetComprehensive(context.Background(), "u1", false)
	require.NoError(t, err)
	assert.NotContains(t, out.AttributesUsed, "user.creditScore")
	assert.Contains(t, out.AttributesUsed, "user.income")
}

func TestMetricsQueriesRecordConsumedFields(t *testing.T) {
	svc, _ := newTestService(t, &scriptedReasoner{err: reasoning.ErrUnavailable})
	ctx, obs := observer.WithObserver(context.Background())

	_, err := svc.gatherMetrics(ctx, "u1")
	require.NoError(t, err)

	var txFields []string
	for _, read := range obs.Snapshot() {
		if read.Collection == storage.CollectionTransactions {
			txFields = read.Fields
		}
	}
	// The date filter reads createdAt, so the audit trail must show it.
	assert.Contains(t, txFields, "createdAt")
	assert.Contains(t, txFields, "amount")
}
