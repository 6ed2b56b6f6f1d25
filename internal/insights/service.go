// Package insights produces the comprehensive financial insights view:
// deterministic health scoring plus two AI sub-analyses that degrade to
// rule-based fallbacks when the model is slow or unavailable.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"glassbank/internal/attr"
	"glassbank/internal/attribution"
	"glassbank/internal/cache"
	"glassbank/internal/domain"
	"glassbank/internal/reasoning"
	"glassbank/internal/storage"
)

// SpendingCategory is one category's share of recent spending.
type SpendingCategory struct {
	Category        string  `json:"category"`
	Amount          float64 `json:"amount"`
	Percentage      float64 `json:"percentage"`
	Trend           string  `json:"trend"`
	AverageSpending float64 `json:"averageSpending"`
	Recommendation  string  `json:"recommendation,omitempty"`
}

// WasteAnalysis flags a wasteful spending pattern.
type WasteAnalysis struct {
	Category       string  `json:"category"`
	WastedAmount   float64 `json:"wastedAmount"`
	Reason         string  `json:"reason"`
	MonthlyImpact  float64 `json:"monthlyImpact"`
	Recommendation string  `json:"recommendation"`
}

// FinancialPlan is one actionable plan.
type FinancialPlan struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Timeframe       string   `json:"timeframe"`
	Priority        string   `json:"priority"`
	Steps           []string `json:"steps"`
	ExpectedOutcome string   `json:"expectedOutcome"`
	AttributesUsed  []string `json:"attributes_used"`
}

// SpendingAnalysis is the spending sub-report.
type SpendingAnalysis struct {
	TotalSpending  float64            `json:"totalSpending"`
	MonthlyAverage float64            `json:"monthlyAverage"`
	Categories     []SpendingCategory `json:"categories"`
	WasteAnalysis  []WasteAnalysis    `json:"wasteAnalysis"`
	AttributesUsed []string           `json:"attributes_used"`
}

// FinancialPlanning is the planning sub-report.
type FinancialPlanning struct {
	Summary        string          `json:"summary"`
	Plans          []FinancialPlan `json:"plans"`
	AttributesUsed []string        `json:"attributes_used"`
}

// ProfileSummary is the deterministic headline metrics block.
type ProfileSummary struct {
	Income              float64 `json:"income"`
	CreditScore         int     `json:"creditScore"`
	TotalBalance        float64 `json:"totalBalance"`
	TotalSavings        float64 `json:"totalSavings"`
	SavingsRate         float64 `json:"savingsRate"`
	EmergencyFundMonths float64 `json:"emergencyFundMonths"`
	MonthlySpending     float64 `json:"monthlySpending"`
	MonthlyIncome       float64 `json:"monthlyIncome"`
	ActiveGoals         int     `json:"activeGoals"`
	AccountCount        int     `json:"accountCount"`
}

// HealthScore is the deterministic 0-100 financial health banding.
type HealthScore struct {
	Overall         int     `json:"overall"`
	SavingsRate     float64 `json:"savingsRate"`
	CreditScore     int     `json:"creditScore"`
	EmergencyFund   float64 `json:"emergencyFund"`
	SpendingControl float64 `json:"spendingControl"`
}

// Insights is the full comprehensive response.
type Insights struct {
	ProfileSummary    ProfileSummary    `json:"profileSummary"`
	FinancialPlanning FinancialPlanning `json:"financialPlanning"`
	SpendingAnalysis  SpendingAnalysis  `json:"spendingAnalysis"`
	HealthScore       HealthScore       `json:"healthScore"`
	AttributesUsed    []string          `json:"attributes_used"`
	Cached            bool              `json:"cached"`
	CacheAgeSeconds   float64           `json:"cacheAgeSeconds,omitempty"`
}

// ConsentFilter narrows the final attribute list to consented ones.
type ConsentFilter interface {
	FilterAllowed(ctx context.Context, userID string, ids []string) ([]string, error)
}

// Service assembles comprehensive insights.
type Service struct {
	users           storage.UserStore
	accounts        storage.AccountStore
	transactions    storage.TransactionStore
	savingsAccounts storage.SavingsAccountStore
	savingsGoals    storage.SavingsGoalStore
	pipeline        *attribution.Pipeline
	consent         ConsentFilter
	cache           cache.Cache
	logger          *slog.Logger
	ttl             time.Duration
	taskTimeout     time.Duration
	now             func() time.Time
}

func NewService(
	users storage.UserStore,
	accounts storage.AccountStore,
	transactions storage.TransactionStore,
	savingsAccounts storage.SavingsAccountStore,
	savingsGoals storage.SavingsGoalStore,
	pipeline *attribution.Pipeline,
	consentFilter ConsentFilter,
	c cache.Cache,
	logger *slog.Logger,
	ttl time.Duration,
) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Service{
		users:           users,
		accounts:        accounts,
		transactions:    transactions,
		savingsAccounts: savingsAccounts,
		savingsGoals:    savingsGoals,
		pipeline:        pipeline,
		consent:         consentFilter,
		cache:           c,
		logger:          logger,
		ttl:             ttl,
		taskTimeout:     40 * time.Second,
		now:             time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithTaskTimeout overrides the per-AI-task deadline.
func (s *Service) WithTaskTimeout(d time.Duration) *Service {
	s.taskTimeout = d
	return s
}

// GetComprehensive returns the full insights view. Responses are cached for
// the TTL window; refresh bypasses the cache. The two AI sub-analyses run in
// parallel and each falls back to a deterministic report on failure, so the
// endpoint never fails because the model did.
func (s *Service) GetComprehensive(ctx context.Context, userID string, refresh bool) (Insights, error) {
	if !refresh {
		if cached, ok := s.cachedInsights(ctx, userID); ok {
			return cached, nil
		}
	}

	m, err := s.gatherMetrics(ctx, userID)
	if err != nil {
		return Insights{}, err
	}

	var spending SpendingAnalysis
	var planning FinancialPlanning
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		spending = s.spendingAnalysis(gctx, userID, m)
		return nil
	})
	g.Go(func() error {
		planning = s.financialPlanning(gctx, userID, m)
		return nil
	})
	// Sub-tasks never return errors; failures become fallbacks.
	_ = g.Wait()

	all := append(append([]string{}, spending.AttributesUsed...), planning.AttributesUsed...)
	all = append(all, m.attributes()...)
	allowed, err := s.consent.FilterAllowed(ctx, userID, attr.SortedDedupe(all))
	if err != nil {
		return Insights{}, err
	}

	out := Insights{
		ProfileSummary:    m.profileSummary(),
		FinancialPlanning: planning,
		SpendingAnalysis:  spending,
		HealthScore:       m.healthScore(),
		AttributesUsed:    allowed,
	}

	if err := s.cache.Set(ctx, cache.InsightsKey(userID), out, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "failed to cache insights", "user_id", userID, "error", err)
	}
	return out, nil
}

func (s *Service) cachedInsights(ctx context.Context, userID string) (Insights, bool) {
	entry, ok, err := s.cache.Get(ctx, cache.InsightsKey(userID))
	if err != nil {
		s.logger.WarnContext(ctx, "insights cache read failed", "user_id", userID, "error", err)
		return Insights{}, false
	}
	if !ok || !entry.Fresh(s.now(), s.ttl) {
		return Insights{}, false
	}
	var out Insights
	if err := json.Unmarshal(entry.Data, &out); err != nil {
		s.logger.WarnContext(ctx, "corrupt insights cache entry", "user_id", userID, "error", err)
		return Insights{}, false
	}
	out.Cached = true
	out.CacheAgeSeconds = entry.Age(s.now()).Seconds()
	return out, true
}

// metrics is the deterministic base data every part of the response shares.
type metrics struct {
	income           float64
	creditScore      int
	totalBalance     float64
	totalSavings     float64
	monthlySpending  float64
	categorySpending map[string]float64
	hasTransactions  bool
	hasAccounts      bool
	hasSavings       bool
	hasGoals         bool
	activeGoals      int
	accountCount     int
}

func (s *Service) gatherMetrics(ctx context.Context, userID string) (metrics, error) {
	var m metrics

	user, err := s.users.Get(ctx, userID, "income", "creditScore")
	if err != nil {
		return m, err
	}
	m.income = user.Income
	m.creditScore = user.CreditScore

	accounts, err := s.accounts.ListByUser(ctx, userID, "balance")
	if err != nil {
		return m, err
	}
	for _, acc := range accounts {
		m.totalBalance += acc.Balance
	}
	m.hasAccounts = len(accounts) > 0
	m.accountCount = len(accounts)

	savings, err := s.savingsAccounts.ListByUser(ctx, userID, "balance")
	if err != nil {
		return m, err
	}
	for _, acc := range savings {
		m.totalSavings += acc.Balance
	}
	m.hasSavings = len(savings) > 0

	goals, err := s.savingsGoals.ListByUser(ctx, userID, "targetAmount", "currentAmount", "status")
	if err != nil {
		return m, err
	}
	now := s.now()
	for _, g := range goals {
		if g.Status(now) != domain.GoalCompleted {
			m.activeGoals++
		}
	}
	m.hasGoals = len(goals) > 0

	txs, err := s.transactions.ListByUser(ctx, userID, 100, "amount", "type", "category", "createdAt")
	if err != nil {
		return m, err
	}
	cutoff := now.AddDate(0, 0, -180)
	m.categorySpending = map[string]float64{}
	for _, tx := range txs {
		if tx.CreatedAt.Before(cutoff) || tx.Type != domain.TransactionDebit {
			continue
		}
		m.hasTransactions = true
		category := tx.Category
		if category == "" {
			category = "other"
		}
		m.categorySpending[category] += tx.Amount
		m.monthlySpending += tx.Amount
	}
	m.monthlySpending /= 6
	return m, nil
}

func (m metrics) totalSpending() float64 {
	var total float64
	for _, amount := range m.categorySpending {
		total += amount
	}
	return total
}

func (m metrics) monthlyIncome() float64 {
	if m.income > 0 {
		return m.income / 12
	}
	return 1
}

func (m metrics) savingsRate() float64 {
	monthly := m.monthlyIncome()
	return (monthly - m.monthlySpending) / monthly * 100
}

func (m metrics) emergencyFundMonths() float64 {
	if m.monthlySpending <= 0 {
		return 0
	}
	return m.totalSavings / m.monthlySpending
}

func (m metrics) profileSummary() ProfileSummary {
	return ProfileSummary{
		Income:              m.income,
		CreditScore:         m.creditScore,
		TotalBalance:        round2(m.totalBalance),
		TotalSavings:        round2(m.totalSavings),
		SavingsRate:         round2(m.savingsRate()),
		EmergencyFundMonths: round1(m.emergencyFundMonths()),
		MonthlySpending:     round2(m.monthlySpending),
		MonthlyIncome:       round2(m.monthlyIncome()),
		ActiveGoals:         m.activeGoals,
		AccountCount:        m.accountCount,
	}
}

// healthScore bands four signals into a 0-100 score: savings rate, credit
// score, emergency fund coverage, and spending control, 25 points each.
func (m metrics) healthScore() HealthScore {
	score := 0

	switch rate := m.savingsRate(); {
	case rate >= 20:
		score += 25
	case rate >= 10:
		score += 15
	case rate >= 5:
		score += 10
	}

	switch {
	case m.creditScore >= 750:
		score += 25
	case m.creditScore >= 700:
		score += 20
	case m.creditScore >= 650:
		score += 15
	}

	switch months := m.emergencyFundMonths(); {
	case months >= 6:
		score += 25
	case months >= 3:
		score += 20
	case months >= 1:
		score += 10
	}

	monthly := m.monthlyIncome()
	switch {
	case m.monthlySpending <= monthly*0.8:
		score += 25
	case m.monthlySpending <= monthly*0.9:
		score += 20
	case m.monthlySpending <= monthly:
		score += 15
	}

	return HealthScore{
		Overall:         score,
		SavingsRate:     round1(m.savingsRate()),
		CreditScore:     m.creditScore,
		EmergencyFund:   round1(m.emergencyFundMonths()),
		SpendingControl: round1((1 - m.monthlySpending/monthly) * 100),
	}
}

// attributes lists the identifiers the deterministic metric pass touched.
func (m metrics) attributes() []string {
	var out []string
	if m.creditScore > 0 {
		out = append(out, "user.creditScore")
	}
	if m.income > 0 {
		out = append(out, "user.income")
	}
	if m.hasAccounts {
		out = append(out, "accounts.balance", "accounts.accountType")
	}
	if m.hasSavings {
		out = append(out, "savings_accounts.balance", "savings_accounts.apy")
	}
	if m.hasGoals {
		out = append(out, "savings_goals.targetAmount", "savings_goals.status", "savings_goals.currentAmount")
	}
	if m.hasTransactions {
		out = append(out, "transactions.amount", "transactions.category")
	}
	return out
}

// spendingAnalysis asks the model for trends and waste patterns on top of
// the precomputed category data. Any failure yields the basic analysis.
func (s *Service) spendingAnalysis(ctx context.Context, userID string, m metrics) SpendingAnalysis {
	if !m.hasTransactions {
		return SpendingAnalysis{
			Categories:     []SpendingCategory{},
			WasteAnalysis:  []WasteAnalysis{},
			AttributesUsed: []string{},
		}
	}

	out, err := s.pipeline.Run(ctx, attribution.Request{
		UserID:    userID,
		Operation: "spending_analysis",
		QueryText: "Analyze my transaction spending patterns",
		System:    "You are a financial advisor AI. Analyze spending patterns and identify wasteful spending with specific recommendations. Be concise and direct in your analysis.",
		BuildPrompt: func(map[string]any) string {
			return spendingPrompt(m)
		},
		MaxTokens: 4000,
		Timeout:   s.taskTimeout,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "spending analysis fell back to basic report",
			"user_id", userID, "error", err)
		return s.basicSpendingAnalysis(m)
	}

	analysis := SpendingAnalysis{
		TotalSpending:  round2(m.totalSpending()),
		MonthlyAverage: round2(m.monthlySpending),
		Categories:     parseCategories(out.Parsed["categories"]),
		WasteAnalysis:  parseWaste(out.Parsed["wasteAnalysis"]),
		AttributesUsed: out.Attributes,
	}
	return analysis
}

// basicSpendingAnalysis is the rule-based fallback: category totals with a
// stable trend and no waste detection.
func (s *Service) basicSpendingAnalysis(m metrics) SpendingAnalysis {
	total := m.totalSpending()
	categories := make([]SpendingCategory, 0, len(m.categorySpending))
	for category, amount := range m.categorySpending {
		percentage := 0.0
		if total > 0 {
			percentage = amount / total * 100
		}
		categories = append(categories, SpendingCategory{
			Category:        category,
			Amount:          round2(amount),
			Percentage:      round2(percentage),
			Trend:           "stable",
			AverageSpending: round2(amount / 6),
		})
	}
	return SpendingAnalysis{
		TotalSpending:  round2(total),
		MonthlyAverage: round2(m.monthlySpending),
		Categories:     categories,
		WasteAnalysis:  []WasteAnalysis{},
		AttributesUsed: []string{"transactions.amount", "transactions.category"},
	}
}

// financialPlanning asks the model for 3-4 plans. Any failure yields the
// rule-based emergency-fund and savings-rate plans.
func (s *Service) financialPlanning(ctx context.Context, userID string, m metrics) FinancialPlanning {
	out, err := s.pipeline.Run(ctx, attribution.Request{
		UserID:    userID,
		Operation: "financial_planning",
		QueryText: "Create financial plans from my accounts, savings and goals",
		System:    "You are a financial planner AI. Create actionable plans. Be concise and direct in your recommendations.",
		BuildPrompt: func(map[string]any) string {
			return planningPrompt(m)
		},
		MaxTokens: 4000,
		Timeout:   s.taskTimeout,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "financial planning fell back to basic plans",
			"user_id", userID, "error", err)
		return s.basicFinancialPlanning(m)
	}

	return FinancialPlanning{
		Summary:        reasoning.Text(out.Parsed["summary"], ""),
		Plans:          parsePlans(out.Parsed["plans"]),
		AttributesUsed: out.Attributes,
	}
}

func (s *Service) basicFinancialPlanning(m metrics) FinancialPlanning {
	plans := []FinancialPlan{}

	if m.totalSavings < m.monthlySpending*3 {
		plans = append(plans, FinancialPlan{
			Title:       "Build Emergency Fund",
			Description: "Create a safety net for unexpected expenses",
			Timeframe:   "short-term",
			Priority:    "high",
			Steps: []string{
				"Set up automatic savings transfer",
				"Aim to save 3-6 months of expenses",
				"Keep funds in high-yield savings account",
			},
			ExpectedOutcome: "Financial security and peace of mind",
			AttributesUsed:  []string{"user.income", "transactions.amount"},
		})
	}
	if m.income > 0 && m.monthlySpending < m.income/12*0.8 {
		plans = append(plans, FinancialPlan{
			Title:       "Optimize Savings Rate",
			Description: "Increase your savings and investment contributions",
			Timeframe:   "medium-term",
			Priority:    "medium",
			Steps: []string{
				"Review current spending habits",
				"Increase retirement contributions",
				"Consider investment opportunities",
			},
			ExpectedOutcome: "Improved long-term financial growth",
			AttributesUsed:  []string{"user.income", "savings_accounts.balance"},
		})
	}

	return FinancialPlanning{
		Summary:        "Basic financial recommendations based on your current situation",
		Plans:          plans,
		AttributesUsed: []string{"user.income", "transactions.amount", "savings_accounts.balance"},
	}
}

func parseCategories(raw any) []SpendingCategory {
	items, ok := raw.([]any)
	if !ok {
		return []SpendingCategory{}
	}
	out := make([]SpendingCategory, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, SpendingCategory{
			Category:        reasoning.Text(m["category"], "other"),
			Amount:          reasoning.Number(m["amount"], 0),
			Percentage:      reasoning.Number(m["percentage"], 0),
			Trend:           reasoning.Text(m["trend"], "stable"),
			AverageSpending: reasoning.Number(m["averageSpending"], 0),
			Recommendation:  reasoning.Text(m["recommendation"], ""),
		})
	}
	return out
}

func parseWaste(raw any) []WasteAnalysis {
	items, ok := raw.([]any)
	if !ok {
		return []WasteAnalysis{}
	}
	out := make([]WasteAnalysis, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, WasteAnalysis{
			Category:       reasoning.Text(m["category"], "other"),
			WastedAmount:   reasoning.Number(m["wastedAmount"], 0),
			Reason:         reasoning.Text(m["reason"], ""),
			MonthlyImpact:  reasoning.Number(m["monthlyImpact"], 0),
			Recommendation: reasoning.Text(m["recommendation"], ""),
		})
	}
	return out
}

func parsePlans(raw any) []FinancialPlan {
	items, ok := raw.([]any)
	if !ok {
		return []FinancialPlan{}
	}
	out := make([]FinancialPlan, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		plan := FinancialPlan{
			Title:           reasoning.Text(m["title"], ""),
			Description:     reasoning.Text(m["description"], ""),
			Timeframe:       reasoning.Text(m["timeframe"], "short-term"),
			Priority:        reasoning.Text(m["priority"], "medium"),
			ExpectedOutcome: reasoning.Text(m["expectedOutcome"], ""),
		}
		if steps, ok := m["steps"].([]any); ok {
			plan.Steps = reasoning.StringList(steps)
		}
		if attrs, ok := m["attributes_used"].([]any); ok {
			plan.AttributesUsed = reasoning.StringList(attrs)
		}
		out = append(out, plan)
	}
	return out
}

func spendingPrompt(m metrics) string {
	categories := make([]map[string]any, 0, len(m.categorySpending))
	total := m.totalSpending()
	for category, amount := range m.categorySpending {
		percentage := 0.0
		if total > 0 {
			percentage = amount / total * 100
		}
		categories = append(categories, map[string]any{
			"category":   category,
			"amount":     round2(amount),
			"percentage": round2(percentage),
		})
	}
	payload, _ := json.Marshal(categories)
	return fmt.Sprintf(`Monthly Income: %.0f
Monthly Spending: %.0f

Categories: %s

For each category, add:
- trend: "increasing"/"stable"/"decreasing"
- averageSpending: monthly average (amount/6)
- recommendation: brief 1-sentence advice or null

Identify 2-3 wasteful spending patterns (if any).

Return JSON:
{
  "categories": [{"category": "food", "amount": 5000, "percentage": 25, "trend": "stable", "averageSpending": 833, "recommendation": "Consider meal planning"}],
  "wasteAnalysis": [{"category": "dining", "wastedAmount": 1000, "reason": "Frequent eating out", "monthlyImpact": 167, "recommendation": "Cook more at home"}],
  "attributes_used": ["transactions.amount", "transactions.category", "user.income"]
}`, m.monthlyIncome(), m.monthlySpending, payload)
}

func planningPrompt(m metrics) string {
	return fmt.Sprintf(`Income: %.0f/yr | Credit: %d | Savings: %.0f | Monthly Spend: %.0f | Goals: %d

Create 3-4 financial plans (short-term, medium-term, long-term).

Each plan needs: title, description, timeframe, priority, 3-4 steps, expectedOutcome.

Return JSON:
{
  "summary": "Brief 1-sentence summary",
  "plans": [{"title": "Build Emergency Fund", "description": "Save 3-6 months expenses", "timeframe": "short-term", "priority": "high", "steps": ["Save X/month", "Open high-yield account"], "expectedOutcome": "Financial security", "attributes_used": ["user.income"]}],
  "attributes_used": ["user.income", "savings_accounts.balance"]
}`, m.income, m.creditScore, m.totalSavings, m.monthlySpending, m.activeGoals)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round1(v float64) float64 { return math.Round(v*10) / 10 }
