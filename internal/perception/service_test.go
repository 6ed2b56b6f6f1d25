package perception

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

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

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type scriptedReasoner struct {
	output string
	err    error
	calls  int
}

func (s *scriptedReasoner) Generate(context.Context, reasoning.Request) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.output, nil
}

const perceptionOutput = `{
	"summary": "Prudent spender with stable finances.",
	"attributes": [
		{"category": "Spending Habits", "label": "Prudent Spender", "confidence": 0.8, "evidence": ["High ratio of wise transactions"]},
		{"category": "Risk Profile", "label": "Low Risk", "confidence": 0.9, "evidence": ["Stable income"]}
	],
	"attributes_used": ["transactions.amount", "transactions.category"]
}`

func newTestService(t *testing.T, reasoner reasoning.Client) (*Service, *InMemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	mem := storage.NewMemory()
	require.NoError(t, mem.Users().Save(ctx, domain.User{ID: "u1", Income: 90000}))
	wise := domain.TransactionAnalysis{RiskLevel: "low", SpendingWisdom: "wise", WisdomScore: 0.9}
	unwise := domain.TransactionAnalysis{RiskLevel: "low", SpendingWisdom: "unwise", WisdomScore: 0.2}
	require.NoError(t, mem.Transactions().Save(ctx, domain.Transaction{
		ID: "t1", UserID: "u1", Amount: 100, Type: domain.TransactionDebit,
		Category: "food", Analysis: &wise, CreatedAt: testNow.AddDate(0, 0, -5),
	}))
	require.NoError(t, mem.Transactions().Save(ctx, domain.Transaction{
		ID: "t2", UserID: "u1", Amount: 300, Type: domain.TransactionDebit,
		Category: "shopping", Analysis: &unwise, CreatedAt: testNow.AddDate(0, 0, -3),
	}))

	registry := extraction.NewRegistry(logger)
	consentSvc := consent.NewService(consent.NewInMemoryStore(), nil, logger)
	audits := audit.NewService(audit.NewInMemoryStore(), logger, nil)
	pipeline := attribution.New(registry, reasoner, consentSvc, audits, logger, nil, "gemini-test")

	store := NewInMemoryStore()
	svc := NewService(store, mem.Transactions(), pipeline, logger, 24*time.Hour).
		WithClock(func() time.Time { return testNow })
	return svc, store
}

func TestGetGeneratesAndStores(t *testing.T) {
	svc, store := newTestService(t, &scriptedReasoner{output: perceptionOutput})

	p, err := svc.Get(context.Background(), "u1", false)
	require.NoError(t, err)

	assert.Equal(t, "Prudent spender with stable finances.", p.Summary)
	require.Len(t, p.Attributes, 2)
	assert.Equal(t, StatusActive, p.Attributes[0].Status)
	assert.Equal(t, testNow, p.LastAnalysis)
	assert.NotEmpty(t, p.AuditID)

	stored, err := store.GetPerception(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, p.Summary, stored.Summary)
}

func TestGetServesFreshSnapshotWithoutModelCall(t *testing.T) {
	reasoner := &scriptedReasoner{output: perceptionOutput}
	svc, _ := newTestService(t, reasoner)
	ctx := context.Background()

	_, err := svc.Get(ctx, "u1", false)
	require.NoError(t, err)
	require.Equal(t, 1, reasoner.calls)

	_, err = svc.Get(ctx, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, reasoner.calls)

	_, err = svc.Get(ctx, "u1", true)
	require.NoError(t, err)
	assert.Equal(t, 2, reasoner.calls)
}

func TestGetRegeneratesStaleSnapshot(t *testing.T) {
	reasoner := &scriptedReasoner{output: perceptionOutput}
	svc, store := newTestService(t, reasoner)
	ctx := context.Background()

	require.NoError(t, store.SavePerception(ctx, Perception{
		UserID:       "u1",
		Summary:      "old view",
		LastAnalysis: testNow.Add(-25 * time.Hour),
	}))

	p, err := svc.Get(ctx, "u1", false)
	require.NoError(t, err)
	assert.NotEqual(t, "old view", p.Summary)
	assert.Equal(t, 1, reasoner.calls)
}

func TestGetFallsBackWhenUnavailable(t *testing.T) {
	svc, store := newTestService(t, &scriptedReasoner{err: reasoning.ErrUnavailable})

	p, err := svc.Get(context.Background(), "u1", false)
	require.NoError(t, err)
	assert.Equal(t, "AI perception service currently unavailable.", p.Summary)
	assert.Empty(t, p.Attributes)

	// The fallback snapshot is not persisted; the next call retries.
	_, err = store.GetPerception(context.Background(), "u1")
	assert.Error(t, err)
}

func TestGetPropagatesMalformedOutput(t *testing.T) {
	svc, _ := newTestService(t, &scriptedReasoner{output: "not json"})

	_, err := svc.Get(context.Background(), "u1", false)
	assert.True(t, apperrors.Is(err, apperrors.CodeReasoningMalformed))
}

func TestDisputeFlipsMatchingAttribute(t *testing.T) {
	svc, store := newTestService(t, &scriptedReasoner{output: perceptionOutput})
	ctx := context.Background()

	_, err := svc.Get(ctx, "u1", false)
	require.NoError(t, err)

	d, err := svc.Dispute(ctx, "u1", Dispute{
		Category:   "Spending Habits",
		Label:      "Prudent Spender",
		Reason:     "I disagree with this characterization",
		Correction: "Balanced Spender",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "pending_review", d.Status)

	stored, err := store.GetPerception(ctx, "u1")
	require.NoError(t, err)
	for _, a := range stored.Attributes {
		if a.Label == "Prudent Spender" {
			assert.Equal(t, StatusDisputed, a.Status)
		} else {
			assert.Equal(t, StatusActive, a.Status)
		}
	}

	disputes, err := svc.Disputes(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, disputes, 1)
	assert.Equal(t, "Balanced Spender", disputes[0].Correction)
}

func TestDisputeValidatesInput(t *testing.T) {
	svc, _ := newTestService(t, &scriptedReasoner{output: perceptionOutput})

	_, err := svc.Dispute(context.Background(), "u1", Dispute{Category: "Risk Profile"})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestDisputeAgainstAbsentAttributeStillRecorded(t *testing.T) {
	svc, _ := newTestService(t, &scriptedReasoner{output: perceptionOutput})
	ctx := context.Background()

	d, err := svc.Dispute(ctx, "u1", Dispute{
		Category: "Risk Profile",
		Label:    "Gone",
		Reason:   "stale",
	})
	require.NoError(t, err)

	disputes, err := svc.Disputes(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, disputes, 1)
	assert.Equal(t, d.ID, disputes[0].ID)
}

func TestWisdomRollup(t *testing.T) {
	svc, _ := newTestService(t, &scriptedReasoner{output: perceptionOutput})

	summary, err := svc.wisdomRollup(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Transactions)
	assert.Equal(t, 1, summary.Wise)
	assert.Equal(t, 1, summary.Unwise)
	assert.InDelta(t, 0.55, summary.AverageScore, 1e-9)
	assert.Equal(t, 1, summary.CategoryCounts["shopping"]["unwise"])
}
