package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glassbank/internal/domain"
	"glassbank/internal/storage"
	"glassbank/pkg/requestcontext"
)

type allowAll struct{}

func (allowAll) IsAllowed(context.Context, string, string) (bool, error) { return true, nil }

type denyList map[string]bool

func (d denyList) IsAllowed(_ context.Context, _ string, attributeID string) (bool, error) {
	if denied, ok := d[attributeID]; ok && denied {
		return false, nil
	}
	return true, nil
}

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func seededExtractors(t *testing.T, consent ConsentChecker) (*Extractors, context.Context) {
	t.Helper()
	m := storage.NewMemory()
	ctx := requestcontext.WithTime(context.Background(), testNow)

	require.NoError(t, m.Save(ctx, domain.User{
		ID: "u1", FirstName: "Asha", LastName: "Rao", Email: "asha@example.com",
		Income: 95000, CreditScore: 740,
		EmploymentStatus: "employed",
		DateOfBirth:      time.Date(1992, 3, 10, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, m.Accounts().Save(ctx, domain.Account{
		ID: "a1", UserID: "u1", AccountNumber: "1001", AccountType: "checking",
		Balance: 3200, Status: domain.AccountActive, CreatedAt: testNow,
	}))
	require.NoError(t, m.Accounts().Save(ctx, domain.Account{
		ID: "a2", UserID: "u1", AccountNumber: "1002", AccountType: "checking",
		Balance: 999, Status: domain.AccountClosed, CreatedAt: testNow,
	}))
	require.NoError(t, m.Transactions().Save(ctx, domain.Transaction{
		ID: "t1", UserID: "u1", AccountID: "a1", Amount: 600,
		Type: domain.TransactionDebit, Category: "rent", CreatedAt: testNow.Add(-24 * time.Hour),
	}))
	require.NoError(t, m.Transactions().Save(ctx, domain.Transaction{
		ID: "t2", UserID: "u1", AccountID: "a1", Amount: 1200,
		Type: domain.TransactionCredit, Category: "salary", CreatedAt: testNow.Add(-48 * time.Hour),
	}))
	require.NoError(t, m.Transactions().Save(ctx, domain.Transaction{
		ID: "t-old", UserID: "u1", AccountID: "a1", Amount: 500,
		Type: domain.TransactionDebit, Category: "rent", CreatedAt: testNow.Add(-200 * 24 * time.Hour),
	}))
	require.NoError(t, m.SavingsAccounts().Save(ctx, domain.SavingsAccount{
		ID: "s1", UserID: "u1", Name: "Emergency Fund", AccountNumber: "2001",
		AccountType: "High-Yield Savings", Balance: 12000, APY: 12, CreatedAt: testNow,
	}))
	require.NoError(t, m.SavingsGoals().Save(ctx, domain.SavingsGoal{
		ID: "g1", UserID: "u1", Name: "Vacation", TargetAmount: 2000, CurrentAmount: 1000,
		MonthlyContribution: 100, Deadline: testNow.AddDate(0, 10, 0), CreatedAt: testNow,
	}))

	e := NewExtractors(m.Users(), m.Accounts(), m.Transactions(), m.SavingsAccounts(), m.SavingsGoals(), consent)
	return e, ctx
}

func TestUserExtractorDerivesAge(t *testing.T) {
	e, ctx := seededExtractors(t, allowAll{})

	res, err := e.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", res.Payload["name"])
	assert.Equal(t, 34, res.Payload["age"], "birthday already passed in 2026")
	assert.Contains(t, res.Attributes, "user.dateOfBirth")
	assert.NotContains(t, res.Payload, "dateOfBirth", "raw birth date never enters a prompt")
}

func TestAccountsExtractorSkipsClosedAccounts(t *testing.T) {
	e, ctx := seededExtractors(t, allowAll{})

	res, err := e.Accounts(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3200.0, res.Payload["total_balance"])
	assert.Equal(t, 1, res.Payload["account_count"])
}

func TestConsentDenialYieldsEmptyResult(t *testing.T) {
	e, ctx := seededExtractors(t, denyList{"accounts.balance": true})

	res, err := e.Accounts(ctx, "u1")
	require.NoError(t, err, "denial is a soft no-op, not an error")
	assert.Empty(t, res.Payload)
	assert.Empty(t, res.Attributes)
}

func TestTransactionsExtractorMonthlyFigures(t *testing.T) {
	e, ctx := seededExtractors(t, allowAll{})

	res, err := e.Transactions(ctx, "u1")
	require.NoError(t, err)
	// Only the two recent transactions are inside the 180-day window; the
	// single 600 debit averages to 100/month.
	assert.Equal(t, 2, res.Payload["recent_count"])
	assert.InDelta(t, 100.0, res.Payload["monthly_spending"].(float64), 0.001)

	categories := res.Payload["categories"].(map[string]float64)
	assert.Equal(t, 600.0, categories["rent"])
	assert.Equal(t, 1200.0, categories["salary"])
}

func TestSavingsAccountsExtractorComputesGrowth(t *testing.T) {
	e, ctx := seededExtractors(t, allowAll{})

	res, err := e.SavingsAccounts(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 12000.0, res.Payload["total_savings"])
	assert.InDelta(t, 113.8, res.Payload["total_monthly_growth"].(float64), 0.2)
}

func TestSavingsGoalsExtractorComputesStatus(t *testing.T) {
	e, ctx := seededExtractors(t, allowAll{})

	res, err := e.SavingsGoals(ctx, "u1")
	require.NoError(t, err)
	items := res.Payload["savings_goals"].([]map[string]any)
	require.Len(t, items, 1)
	assert.Equal(t, "On Track", items[0]["status"])
	assert.InDelta(t, 50.0, items[0]["progress_percentage"].(float64), 0.001)
	assert.Equal(t, 1, res.Payload["active_goals"])
}

func TestFullRegistryOverSeededData(t *testing.T) {
	e, ctx := seededExtractors(t, denyList{"transactions.amount": true})
	r := NewRegistry(discardLogger(), e.Sources()...)

	data, attrs := r.ExtractAll(ctx, "u1", "how is my spending and my savings goal")
	assert.Contains(t, data, "user")
	assert.Contains(t, data, "savings_accounts")
	assert.Contains(t, data, "savings_goals")
	// Denied topic extracted nothing even though its keyword matched.
	assert.NotContains(t, data, "transactions")
	for _, a := range attrs {
		assert.NotContains(t, a, "transactions.")
	}
}
