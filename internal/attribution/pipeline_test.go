package attribution

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glassbank/internal/audit"
	"glassbank/internal/consent"
	"glassbank/internal/domain"
	"glassbank/internal/extraction"
	"glassbank/internal/observer"
	"glassbank/internal/reasoning"
	"glassbank/internal/reconcile"
	"glassbank/internal/storage"
	"glassbank/pkg/apperrors"
)

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

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// incomeSource reads the seeded user through the observed store, so the
// observer sees a real projected read.
func incomeSource(store storage.UserStore) extraction.Source {
	return extraction.Source{
		Topic:         "user",
		AlwaysInclude: true,
		Extract: func(ctx context.Context, userID string) (extraction.Result, error) {
			user, err := store.Get(ctx, userID, "income")
			if err != nil {
				return extraction.Result{}, err
			}
			return extraction.Result{
				Payload:    map[string]any{"income": user.Income},
				Attributes: []string{"user.income"},
			}, nil
		},
	}
}

func buildPipeline(t *testing.T, reasoner reasoning.Client) (*Pipeline, *audit.InMemoryStore, *consent.Service) {
	t.Helper()
	logger := discardLogger()

	mem := storage.NewMemory()
	require.NoError(t, mem.Users().Save(context.Background(), domain.User{ID: "u1", Income: 85000}))

	registry := extraction.NewRegistry(logger, incomeSource(mem.Users()))

	consentSvc := consent.NewService(consent.NewInMemoryStore(), nil, logger)
	auditStore := audit.NewInMemoryStore()
	audits := audit.NewService(auditStore, logger, nil)

	p := New(registry, reasoner, consentSvc, audits, logger, nil, "gemini-test")
	return p, auditStore, consentSvc
}

func TestRunHappyPath(t *testing.T) {
	reasoner := &scriptedReasoner{
		output: `{"answer":"ok","attributes_used":["user.income"]}`,
	}
	p, auditStore, _ := buildPipeline(t, reasoner)

	out, err := p.Run(context.Background(), Request{
		UserID:      "u1",
		Operation:   "chat",
		QueryText:   "what is my income",
		BuildPrompt: func(map[string]any) string { return "prompt" },
	})
	require.NoError(t, err)

	assert.Equal(t, reconcile.StatusMatched, out.Status)
	assert.Equal(t, []string{"user.income"}, out.Attributes)
	assert.Equal(t, "ok", out.Parsed["answer"])
	require.NotEmpty(t, out.AuditID)

	record, err := auditStore.Get(context.Background(), "u1", out.AuditID)
	require.NoError(t, err)
	assert.Equal(t, "chat", record.Operation)
	assert.Equal(t, "matched", record.Status)
	assert.Equal(t, []string{"user.income"}, record.SelfReported)
	assert.Equal(t, reasoner.output, record.RawOutput)
	assert.NotEmpty(t, record.QueriesRun)
}

func TestRunDropsFabricationsKeepsAuditDetail(t *testing.T) {
	reasoner := &scriptedReasoner{
		output: `{"answer":"ok","attributes_used":["user.income","user.ssn"]}`,
	}
	p, auditStore, _ := buildPipeline(t, reasoner)

	out, err := p.Run(context.Background(), Request{
		UserID:      "u1",
		Operation:   "chat",
		QueryText:   "income?",
		BuildPrompt: func(map[string]any) string { return "prompt" },
	})
	require.NoError(t, err)

	assert.Equal(t, reconcile.StatusPartial, out.Status)
	assert.NotContains(t, out.Attributes, "user.ssn")

	record, err := auditStore.Get(context.Background(), "u1", out.AuditID)
	require.NoError(t, err)
	// The audit trail keeps the fabricated claim for forensics.
	assert.Contains(t, record.SelfReported, "user.ssn")
	assert.NotContains(t, record.Validated, "user.ssn")
}

func TestRunConsentFilterAppliesAfterValidation(t *testing.T) {
	reasoner := &scriptedReasoner{
		output: `{"answer":"ok","attributes_used":["user.income"]}`,
	}
	p, auditStore, consentSvc := buildPipeline(t, reasoner)

	_, err := consentSvc.Update(context.Background(), "u1", map[string]bool{"user.income": false})
	require.NoError(t, err)

	out, err := p.Run(context.Background(), Request{
		UserID:      "u1",
		Operation:   "chat",
		QueryText:   "income?",
		BuildPrompt: func(map[string]any) string { return "prompt" },
	})
	require.NoError(t, err)

	// Denied attribute is gone from the response...
	assert.NotContains(t, out.Attributes, "user.income")

	// ...but the audit record keeps the pre-filter validated list.
	record, err := auditStore.Get(context.Background(), "u1", out.AuditID)
	require.NoError(t, err)
	assert.Contains(t, record.Validated, "user.income")
}

func TestRunLenientPromotesWellFormedClaims(t *testing.T) {
	reasoner := &scriptedReasoner{
		output: `{"answer":"ok","attributes_used":["user.income","savings_goals.status","nonsense"]}`,
	}
	p, _, _ := buildPipeline(t, reasoner)

	out, err := p.Run(context.Background(), Request{
		UserID:      "u1",
		Operation:   "chat",
		QueryText:   "income?",
		Lenient:     true,
		BuildPrompt: func(map[string]any) string { return "prompt" },
	})
	require.NoError(t, err)

	assert.Contains(t, out.Attributes, "savings_goals.status")
	assert.NotContains(t, out.Attributes, "nonsense")
}

func TestRunReasoningFailuresAreCoded(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code apperrors.Code
	}{
		{"unavailable", reasoning.ErrUnavailable, apperrors.CodeReasoningUnavailable},
		{"timeout", reasoning.ErrTimeout, apperrors.CodeReasoningTimeout},
		{"empty output", reasoning.ErrEmpty, apperrors.CodeReasoningMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, auditStore, _ := buildPipeline(t, &scriptedReasoner{err: tc.err})

			_, err := p.Run(context.Background(), Request{
				UserID:      "u1",
				Operation:   "chat",
				QueryText:   "hi",
				BuildPrompt: func(map[string]any) string { return "prompt" },
			})
			assert.True(t, apperrors.Is(err, tc.code))

			// No audit record for a call that produced no answer.
			_, total, listErr := auditStore.List(context.Background(), "u1", 10, 0)
			require.NoError(t, listErr)
			assert.Zero(t, total)
		})
	}
}

func TestRunMalformedOutputIsCoded(t *testing.T) {
	p, _, _ := buildPipeline(t, &scriptedReasoner{output: "I refuse to emit JSON"})

	_, err := p.Run(context.Background(), Request{
		UserID:      "u1",
		Operation:   "chat",
		QueryText:   "hi",
		BuildPrompt: func(map[string]any) string { return "prompt" },
	})
	assert.True(t, apperrors.Is(err, apperrors.CodeReasoningMalformed))
}

func TestRunIsolatesObserversAcrossCalls(t *testing.T) {
	reasoner := &scriptedReasoner{output: `{"attributes_used":["user.income"]}`}
	p, auditStore, _ := buildPipeline(t, reasoner)

	ctx := context.Background()
	// A stray observer on the incoming context must not leak into the run.
	ctx, stray := observer.WithObserver(ctx)
	stray.Record("accounts", "balance")

	out, err := p.Run(ctx, Request{
		UserID:      "u1",
		Operation:   "chat",
		QueryText:   "income?",
		BuildPrompt: func(map[string]any) string { return "prompt" },
	})
	require.NoError(t, err)

	record, err := auditStore.Get(context.Background(), "u1", out.AuditID)
	require.NoError(t, err)
	assert.NotContains(t, record.Accessed, "accounts.balance")
}
