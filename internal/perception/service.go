package perception

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"glassbank/internal/attribution"
	"glassbank/internal/domain"
	"glassbank/internal/reasoning"
	"glassbank/internal/storage"
	"glassbank/pkg/apperrors"
	"glassbank/pkg/sentinel"
)

// Service generates, caches and lets users dispute perception snapshots.
type Service struct {
	store        Store
	transactions storage.TransactionStore
	pipeline     *attribution.Pipeline
	logger       *slog.Logger
	ttl          time.Duration
	now          func() time.Time
}

func NewService(
	store Store,
	transactions storage.TransactionStore,
	pipeline *attribution.Pipeline,
	logger *slog.Logger,
	ttl time.Duration,
) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		store:        store,
		transactions: transactions,
		pipeline:     pipeline,
		logger:       logger,
		ttl:          ttl,
		now:          time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns the user's perception, regenerating when the stored snapshot
// is older than the TTL or refresh is requested. A model outage yields an
// explicit unavailable snapshot rather than an error.
func (s *Service) Get(ctx context.Context, userID string, refresh bool) (Perception, error) {
	if !refresh {
		stored, err := s.store.GetPerception(ctx, userID)
		switch {
		case err == nil:
			if s.now().Sub(stored.LastAnalysis) < s.ttl {
				return stored, nil
			}
		case errors.Is(err, sentinel.ErrNotFound):
		default:
			return Perception{}, err
		}
	}
	return s.generate(ctx, userID)
}

func (s *Service) generate(ctx context.Context, userID string) (Perception, error) {
	wisdom, err := s.wisdomRollup(ctx, userID)
	if err != nil {
		return Perception{}, err
	}

	out, err := s.pipeline.Run(ctx, attribution.Request{
		UserID:    userID,
		Operation: "perception",
		QueryText: "How does the bank perceive my financial behavior and profile?",
		System:    "You are a transparent AI banking advisor. Output valid JSON.",
		BuildPrompt: func(data map[string]any) string {
			return perceptionPrompt(data, wisdom)
		},
		MaxTokens: 5000,
		Timeout:   90 * time.Second,
	})
	if err != nil {
		if apperrors.Is(err, apperrors.CodeReasoningUnavailable) {
			return Perception{
				UserID:       userID,
				Summary:      "AI perception service currently unavailable.",
				Attributes:   []Attribute{},
				LastAnalysis: s.now(),
			}, nil
		}
		return Perception{}, err
	}

	now := s.now()
	p := Perception{
		UserID:       userID,
		Summary:      reasoning.Text(out.Parsed["summary"], "Analysis complete."),
		Attributes:   parseAttributes(out.Parsed["attributes"], now),
		LastAnalysis: now,
		AuditID:      out.AuditID,
	}
	if err := s.store.SavePerception(ctx, p); err != nil {
		s.logger.WarnContext(ctx, "failed to store perception", "user_id", userID, "error", err)
	}
	return p, nil
}

// Dispute records the challenge and flips the matching attribute to
// disputed. A dispute against an attribute the snapshot no longer carries is
// still recorded for review.
func (s *Service) Dispute(ctx context.Context, userID string, d Dispute) (Dispute, error) {
	if d.Category == "" || d.Label == "" || d.Reason == "" {
		return Dispute{}, apperrors.New(apperrors.CodeValidation, "category, label and reason are required")
	}

	d.ID = uuid.NewString()
	d.UserID = userID
	d.Status = "pending_review"
	d.CreatedAt = s.now()
	if err := s.store.AppendDispute(ctx, d); err != nil {
		return Dispute{}, err
	}

	matched, err := s.store.SetAttributeStatus(ctx, userID, d.Category, d.Label, StatusDisputed)
	if err != nil {
		return Dispute{}, err
	}
	if !matched {
		s.logger.InfoContext(ctx, "dispute filed against absent perception attribute",
			"user_id", userID,
			"category", d.Category,
			"label", d.Label,
		)
	}
	return d, nil
}

// Disputes lists the user's filed disputes.
func (s *Service) Disputes(ctx context.Context, userID string) ([]Dispute, error) {
	return s.store.ListDisputes(ctx, userID)
}

// wisdomSummary aggregates the stored per-transaction wisdom analysis.
type wisdomSummary struct {
	Transactions   int
	Wise           int
	Unwise         int
	AverageScore   float64
	CategoryCounts map[string]map[string]int
}

func (s *Service) wisdomRollup(ctx context.Context, userID string) (wisdomSummary, error) {
	txs, err := s.transactions.ListByUser(ctx, userID, 50, "amount", "category", "aiAnalysis")
	if err != nil {
		return wisdomSummary{}, err
	}

	summary := wisdomSummary{CategoryCounts: map[string]map[string]int{}}
	cutoff := s.now().AddDate(0, 0, -180)
	var totalScore float64
	for _, tx := range txs {
		if tx.Type != domain.TransactionDebit || tx.CreatedAt.Before(cutoff) {
			continue
		}
		summary.Transactions++

		wisdom := "neutral"
		score := 0.5
		if tx.Analysis != nil {
			if tx.Analysis.SpendingWisdom != "" {
				wisdom = tx.Analysis.SpendingWisdom
			}
			if tx.Analysis.WisdomScore > 0 {
				score = tx.Analysis.WisdomScore
			}
		}
		switch wisdom {
		case "wise":
			summary.Wise++
		case "unwise":
			summary.Unwise++
		}
		totalScore += score

		category := tx.Category
		if category == "" {
			category = "other"
		}
		if summary.CategoryCounts[category] == nil {
			summary.CategoryCounts[category] = map[string]int{}
		}
		summary.CategoryCounts[category][wisdom]++
	}
	if summary.Transactions > 0 {
		summary.AverageScore = totalScore / float64(summary.Transactions)
	} else {
		summary.AverageScore = 0.5
	}
	return summary, nil
}

func parseAttributes(raw any, now time.Time) []Attribute {
	items, ok := raw.([]any)
	if !ok {
		return []Attribute{}
	}
	out := make([]Attribute, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		a := Attribute{
			Category:    reasoning.Text(m["category"], "Unknown"),
			Label:       reasoning.Text(m["label"], "Unknown"),
			Confidence:  reasoning.Number(m["confidence"], 0.5),
			Evidence:    []string{},
			LastUpdated: now,
			Status:      StatusActive,
		}
		if evidence, ok := m["evidence"].([]any); ok {
			a.Evidence = reasoning.StringList(evidence)
		}
		out = append(out, a)
	}
	return out
}

func perceptionPrompt(data map[string]any, wisdom wisdomSummary) string {
	payload, _ := json.Marshal(data)
	categories, _ := json.Marshal(wisdom.CategoryCounts)
	summary := fmt.Sprintf(
		"%d recent transactions analyzed. Wisdom score: %.2f, Wise: %d, Unwise: %d. Category patterns: %s",
		wisdom.Transactions, wisdom.AverageScore, wisdom.Wise, wisdom.Unwise, categories,
	)
	return fmt.Sprintf(`Analyze this user's banking profile to create a "Digital Perception" based on their financial behavior.

User Data: %s
Transaction Analysis: %s

Generate 4-6 key perception attributes in these categories: "Risk Profile", "Spending Habits", "Financial Health".

IMPORTANT: Consider spending wisdom patterns:
- If user has many "unwise" transactions, they may be "Impulsive Spender" or "Poor Financial Discipline"
- If user has many "wise" transactions, they may be "Prudent Spender" or "Goal-Oriented"
- Consider category patterns, since frequent unwise spending in one category indicates a habit

For each attribute, provide:
- category: "Risk Profile" | "Spending Habits" | "Financial Health"
- label: Descriptive label (e.g., "Impulsive Spender", "Prudent Saver", "High-Risk Spender")
- confidence: 0.0-1.0 (how confident you are in this assessment)
- evidence: 1-2 specific evidence points from the data

Return valid JSON with this structure:
{
  "summary": "2 sentence summary of how the bank sees this user, including spending wisdom patterns.",
  "attributes": [
    {
      "category": "Spending Habits",
      "label": "Impulsive Spender",
      "confidence": 0.85,
      "evidence": ["High ratio of unwise transactions", "Frequent impulse purchases"]
    }
  ],
  "attributes_used": ["user.income", "transactions.amount"]
}`, payload, summary)
}
