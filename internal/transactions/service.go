// Package transactions implements the ledger operations: listing, creation
// with optional AI fraud analysis, deletion with balance reversal, 30-day
// stats and cached spending recommendations. Fraud analysis is advisory and
// never blocks a write; any model failure stores the fixed low-risk default.
package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"glassbank/internal/cache"
	"glassbank/internal/domain"
	"glassbank/internal/reasoning"
	"glassbank/internal/storage"
	"glassbank/pkg/apperrors"
	"glassbank/pkg/sentinel"
)

const (
	statsWindow       = 30 * 24 * time.Hour
	patternWindow     = 180 * 24 * time.Hour
	recommendationTTL = time.Hour
)

// Request describes a new ledger entry.
type Request struct {
	AccountID    string  `json:"accountId"`
	Type         string  `json:"type"`
	Amount       float64 `json:"amount"`
	Description  string  `json:"description"`
	Category     string  `json:"category"`
	MerchantName string  `json:"merchantName,omitempty"`
	// SkipAnalysis stores the low-risk default instead of calling the model.
	// Bulk imports and seed data use it to avoid per-row model calls.
	SkipAnalysis bool `json:"skipAiAnalysis,omitempty"`
}

// Stats aggregates the last 30 days of activity.
type Stats struct {
	TotalTransactions int                `json:"totalTransactions"`
	TotalSpent        float64            `json:"totalSpent"`
	TotalReceived     float64            `json:"totalReceived"`
	FlaggedCount      int                `json:"flaggedCount"`
	CategoryBreakdown map[string]float64 `json:"categoryBreakdown"`
}

// Recommendation is one actionable spending insight.
type Recommendation struct {
	Insight          string  `json:"insight"`
	Recommendation   string  `json:"recommendation"`
	PotentialSavings float64 `json:"potentialSavings,omitempty"`
	Category         string  `json:"category"`
	Priority         string  `json:"priority"`
}

// Service owns transaction writes and the derived read models.
type Service struct {
	accounts     storage.AccountStore
	transactions storage.TransactionStore
	reasoner     reasoning.Client
	cache        cache.Cache
	invalidator  *cache.UserInvalidator
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(
	accounts storage.AccountStore,
	transactions storage.TransactionStore,
	reasoner reasoning.Client,
	store cache.Cache,
	invalidator *cache.UserInvalidator,
	logger *slog.Logger,
) *Service {
	return &Service{
		accounts:     accounts,
		transactions: transactions,
		reasoner:     reasoner,
		cache:        store,
		invalidator:  invalidator,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// List returns the user's most recent transactions, newest first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	txs, err := s.transactions.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return txs, nil
}

// Get returns a single transaction owned by the user.
func (s *Service) Get(ctx context.Context, userID, id string) (domain.Transaction, error) {
	tx, err := s.transactions.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.Transaction{}, apperrors.New(apperrors.CodeNotFound, "transaction not found")
		}
		return domain.Transaction{}, err
	}
	return tx, nil
}

// Create validates the request against the target account, runs fraud
// analysis unless skipped, persists the entry and applies the balance change.
// Derived caches for the user are invalidated so stale AI output never
// outlives the ledger it was computed from.
func (s *Service) Create(ctx context.Context, userID string, req Request) (domain.Transaction, error) {
	if err := validateRequest(req); err != nil {
		return domain.Transaction{}, err
	}

	account, err := s.accounts.Get(ctx, req.AccountID)
	if err != nil || account.UserID != userID {
		if err == nil || errors.Is(err, sentinel.ErrNotFound) {
			return domain.Transaction{}, apperrors.New(apperrors.CodeNotFound, "account not found")
		}
		return domain.Transaction{}, err
	}

	txType := domain.TransactionType(req.Type)
	newBalance := account.Balance + req.Amount
	if txType == domain.TransactionDebit {
		newBalance = account.Balance - req.Amount
		if newBalance < 0 {
			return domain.Transaction{}, apperrors.Newf(apperrors.CodeInsufficientFunds,
				"insufficient funds: balance %.2f, debit %.2f", account.Balance, req.Amount)
		}
	}

	analysis := s.analyze(ctx, userID, req)
	tx := domain.Transaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		AccountID:    account.ID,
		Amount:       req.Amount,
		Type:         txType,
		Category:     req.Category,
		Description:  req.Description,
		MerchantName: req.MerchantName,
		Analysis:     &analysis,
		CreatedAt:    s.now(),
	}
	if err := s.transactions.Save(ctx, tx); err != nil {
		return domain.Transaction{}, err
	}
	account.Balance = newBalance
	if err := s.accounts.Save(ctx, account); err != nil {
		return domain.Transaction{}, err
	}

	s.invalidator.InvalidateUser(ctx, userID)
	s.logger.InfoContext(ctx, "transaction created",
		"user_id", userID,
		"transaction_id", tx.ID,
		"type", string(tx.Type),
		"risk_level", analysis.RiskLevel,
	)
	return tx, nil
}

// Delete removes a transaction and reverses its balance effect on the
// account. A missing account is logged and skipped so orphaned entries can
// still be cleaned up.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	tx, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	account, err := s.accounts.Get(ctx, tx.AccountID)
	switch {
	case err == nil && account.UserID == userID:
		account.Balance -= tx.Signed()
		if err := s.accounts.Save(ctx, account); err != nil {
			return err
		}
	case err != nil && !errors.Is(err, sentinel.ErrNotFound):
		return err
	default:
		s.logger.WarnContext(ctx, "deleting transaction without account reversal",
			"transaction_id", id,
			"account_id", tx.AccountID,
		)
	}

	if err := s.transactions.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.invalidator.InvalidateUser(ctx, userID)
	return nil
}

// GetStats aggregates the last 30 days. Flagged entries are those whose
// stored analysis rated risk medium or high.
func (s *Service) GetStats(ctx context.Context, userID string) (Stats, error) {
	txs, err := s.transactions.ListByUser(ctx, userID, 0)
	if err != nil {
		return Stats{}, err
	}

	cutoff := s.now().Add(-statsWindow)
	stats := Stats{CategoryBreakdown: map[string]float64{}}
	for _, tx := range txs {
		if tx.CreatedAt.Before(cutoff) {
			continue
		}
		stats.TotalTransactions++
		switch tx.Type {
		case domain.TransactionDebit:
			stats.TotalSpent += tx.Amount
			cat := tx.Category
			if cat == "" {
				cat = "other"
			}
			stats.CategoryBreakdown[cat] += tx.Amount
		case domain.TransactionCredit:
			stats.TotalReceived += tx.Amount
		}
		if tx.Analysis != nil && (tx.Analysis.RiskLevel == "medium" || tx.Analysis.RiskLevel == "high") {
			stats.FlaggedCount++
		}
	}
	return stats, nil
}

// Recommendations returns AI spending recommendations for the user, cached
// for an hour. No transactions or no model both yield an empty list rather
// than an error.
func (s *Service) Recommendations(ctx context.Context, userID string) ([]Recommendation, error) {
	key := cache.RecommendationsKey(userID)
	if entry, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "recommendation cache read failed", "error", err)
	} else if ok {
		var cached []Recommendation
		if err := json.Unmarshal(entry.Data, &cached); err == nil {
			return cached, nil
		}
	}

	recs, err := s.generateRecommendations(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, recs, recommendationTTL); err != nil {
		s.logger.WarnContext(ctx, "recommendation cache write failed", "error", err)
	}
	return recs, nil
}

func (s *Service) generateRecommendations(ctx context.Context, userID string) ([]Recommendation, error) {
	txs, err := s.transactions.ListByUser(ctx, userID, 100,
		"amount", "category", "type", "description", "createdAt")
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-patternWindow)
	monthly := map[string]float64{}
	byCategory := map[string]float64{}
	var counted int
	for _, tx := range txs {
		if tx.CreatedAt.Before(cutoff) {
			continue
		}
		counted++
		if tx.Type != domain.TransactionDebit {
			continue
		}
		monthly[tx.CreatedAt.Format("2006-01")] += tx.Amount
		cat := tx.Category
		if cat == "" {
			cat = "other"
		}
		byCategory[cat] += tx.Amount
	}
	if counted == 0 {
		return []Recommendation{}, nil
	}

	var total float64
	for _, v := range monthly {
		total += v
	}
	avgMonthly := 0.0
	if len(monthly) > 0 {
		avgMonthly = total / float64(len(monthly))
	}

	raw, err := s.reasoner.Generate(ctx, reasoning.Request{
		System:       "You are a financial advisor AI. Provide specific, actionable recommendations.",
		Prompt:       recommendationPrompt(total, avgMonthly, byCategory, monthly),
		JSONResponse: true,
		Timeout:      30 * time.Second,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "recommendation generation failed", "error", err)
		return []Recommendation{}, nil
	}

	var parsed struct {
		Recommendations []map[string]any `json:"recommendations"`
	}
	if err := reasoning.DecodeJSON(raw, &parsed); err != nil {
		s.logger.WarnContext(ctx, "recommendation output malformed", "error", err)
		return []Recommendation{}, nil
	}

	out := make([]Recommendation, 0, len(parsed.Recommendations))
	for _, rec := range parsed.Recommendations {
		out = append(out, Recommendation{
			Insight:          reasoning.Text(rec["insight"], ""),
			Recommendation:   reasoning.Text(rec["recommendation"], ""),
			PotentialSavings: reasoning.Number(rec["potentialSavings"], 0),
			Category:         reasoning.Text(rec["category"], "general"),
			Priority:         reasoning.Text(rec["priority"], "medium"),
		})
	}
	return out, nil
}

// analyze runs the fraud model against the transaction and the user's recent
// patterns. Every failure path stores the fixed low-risk default.
func (s *Service) analyze(ctx context.Context, userID string, req Request) domain.TransactionAnalysis {
	if req.SkipAnalysis {
		analysis := domain.DefaultTransactionAnalysis()
		analysis.Insights = "Transaction processed successfully"
		return analysis
	}

	recent, err := s.transactions.ListByUser(ctx, userID, 50,
		"amount", "category", "type", "merchantName")
	if err != nil {
		s.logger.WarnContext(ctx, "pattern lookup failed, using default analysis", "error", err)
		return domain.DefaultTransactionAnalysis()
	}
	cutoff := s.now().Add(-patternWindow)
	var avgAmount float64
	counts := map[string]int{}
	var n int
	for _, tx := range recent {
		if tx.CreatedAt.Before(cutoff) {
			continue
		}
		n++
		avgAmount += tx.Amount
		cat := tx.Category
		if cat == "" {
			cat = "other"
		}
		counts[cat]++
	}
	if n > 0 {
		avgAmount /= float64(n)
	}

	raw, err := s.reasoner.Generate(ctx, reasoning.Request{
		System:       "You are a fraud detection AI. Analyze transactions for suspicious activity.",
		Prompt:       fraudPrompt(req, avgAmount, counts),
		JSONResponse: true,
		Timeout:      30 * time.Second,
	})
	if err != nil {
		if !errors.Is(err, reasoning.ErrUnavailable) {
			s.logger.WarnContext(ctx, "fraud analysis failed, using default", "error", err)
		}
		return domain.DefaultTransactionAnalysis()
	}

	var parsed map[string]any
	if err := reasoning.DecodeJSON(raw, &parsed); err != nil {
		s.logger.WarnContext(ctx, "fraud analysis output malformed, using default", "error", err)
		return domain.DefaultTransactionAnalysis()
	}
	return domain.TransactionAnalysis{
		FraudScore:         clamp01(reasoning.Number(parsed["fraudScore"], 0.1)),
		RiskLevel:          riskLevel(reasoning.Text(parsed["riskLevel"], "low")),
		CategoryConfidence: clamp01(reasoning.Number(parsed["categoryConfidence"], 0.8)),
		AnomalyScore:       clamp01(reasoning.Number(parsed["anomalyScore"], 0)),
		Insights:           reasoning.Text(parsed["explanation"], ""),
		SpendingWisdom:     wisdom(reasoning.Text(parsed["spendingWisdom"], "neutral")),
		WisdomScore:        clamp01(reasoning.Number(parsed["wisdomScore"], 0.5)),
	}
}

func validateRequest(req Request) error {
	switch {
	case req.AccountID == "":
		return apperrors.New(apperrors.CodeValidation, "accountId is required")
	case req.Amount <= 0:
		return apperrors.New(apperrors.CodeValidation, "amount must be positive")
	case req.Type != string(domain.TransactionDebit) && req.Type != string(domain.TransactionCredit):
		return apperrors.Newf(apperrors.CodeValidation, "type must be %q or %q",
			domain.TransactionDebit, domain.TransactionCredit)
	case strings.TrimSpace(req.Description) == "":
		return apperrors.New(apperrors.CodeValidation, "description is required")
	case strings.TrimSpace(req.Category) == "":
		return apperrors.New(apperrors.CodeValidation, "category is required")
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func riskLevel(v string) string {
	switch v {
	case "low", "medium", "high":
		return v
	}
	return "low"
}

func wisdom(v string) string {
	switch v {
	case "wise", "unwise", "neutral":
		return v
	}
	return "neutral"
}

func fraudPrompt(req Request, avgAmount float64, categories map[string]int) string {
	merchant := req.MerchantName
	if merchant == "" {
		merchant = "Unknown"
	}
	return fmt.Sprintf(`Analyze this transaction for fraud risk and provide insights:

Transaction:
- Amount: %.2f
- Type: %s
- Description: %s
- Category: %s
- Merchant: %s

User's Typical Patterns:
- Average transaction amount: %.2f
- Common categories: %s

Analyze:
1. Fraud risk score (0-1, where 0 is safe and 1 is highly suspicious)
2. Risk level (low, medium, high)
3. Category confidence (0-1)
4. Anomaly score (0-1) - how unusual this transaction is
5. Spending wisdom (wise, unwise, neutral) and a wisdom score (0-1)
6. Brief explanation

Return JSON:
{
  "fraudScore": 0.0,
  "riskLevel": "low|medium|high",
  "categoryConfidence": 0.0,
  "anomalyScore": 0.0,
  "spendingWisdom": "wise|unwise|neutral",
  "wisdomScore": 0.0,
  "explanation": "Brief explanation of the analysis"
}`, req.Amount, req.Type, req.Description, req.Category, merchant, avgAmount, formatCounts(categories))
}

func recommendationPrompt(total, avgMonthly float64, byCategory, monthly map[string]float64) string {
	return fmt.Sprintf(`Analyze this user's spending patterns and provide actionable recommendations:

Spending Data:
- Total spending (6 months): %.2f
- Average monthly spending: %.2f
- Category breakdown: %s
- Monthly trends: %s

Provide 3-5 specific, actionable recommendations to help save money and improve financial health.
Focus on:
1. Spending reduction opportunities
2. Category-specific insights
3. Behavioral patterns

Return JSON:
{
  "recommendations": [
    {
      "insight": "What pattern you noticed",
      "recommendation": "Specific actionable advice",
      "potentialSavings": 0.00,
      "category": "category_name",
      "priority": "high|medium|low"
    }
  ]
}`, total, avgMonthly, formatAmounts(byCategory), formatAmounts(monthly))
}

func formatCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, m[k]))
	}
	return strings.Join(parts, ", ")
}

func formatAmounts(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %.2f", k, m[k]))
	}
	return strings.Join(parts, ", ")
}
