package savings

import (
	"context"
	"fmt"
	"math"

	"glassbank/internal/attribution"
	"glassbank/internal/reasoning"
	"glassbank/internal/storage"
	"glassbank/pkg/apperrors"
)

// RecommendationFactor explains one input to the account recommendation.
type RecommendationFactor struct {
	Attribute   string `json:"attribute"`
	Value       any    `json:"value"`
	Impact      string `json:"impact"`
	Explanation string `json:"explanation"`
}

// AccountRecommendation is the advised savings account configuration.
type AccountRecommendation struct {
	AccountType               string                 `json:"accountType"`
	RecommendedInterestRate   float64                `json:"recommendedInterestRate"`
	RecommendedAPY            float64                `json:"recommendedAPY"`
	RecommendedMinimumBalance float64                `json:"recommendedMinimumBalance"`
	Reasoning                 string                 `json:"reasoning"`
	Factors                   []RecommendationFactor `json:"factors"`
	EstimatedMonthlyGrowth    float64                `json:"estimatedMonthlyGrowth"`
	AttributesUsed            []string               `json:"attributes_used"`
	AuditID                   string                 `json:"queryLogId,omitempty"`
}

// Recommender produces AI account-type recommendations with a fixed
// deterministic default when the model is unavailable.
type Recommender struct {
	users    storage.UserStore
	accounts storage.AccountStore
	savings  storage.SavingsAccountStore
	pipeline *attribution.Pipeline
}

func NewRecommender(
	users storage.UserStore,
	accounts storage.AccountStore,
	savingsAccounts storage.SavingsAccountStore,
	pipeline *attribution.Pipeline,
) *Recommender {
	return &Recommender{
		users:    users,
		accounts: accounts,
		savings:  savingsAccounts,
		pipeline: pipeline,
	}
}

func defaultRecommendation() AccountRecommendation {
	return AccountRecommendation{
		AccountType:               "Standard Savings",
		RecommendedInterestRate:   2.5,
		RecommendedAPY:            2.53,
		RecommendedMinimumBalance: 100,
		Reasoning:                 "Standard savings account suitable for most users",
		Factors:                   []RecommendationFactor{},
		AttributesUsed:            []string{},
	}
}

// Recommend analyzes the user's profile and advises an account type. Model
// unavailability degrades to the standard default instead of failing.
func (r *Recommender) Recommend(ctx context.Context, userID string) (AccountRecommendation, error) {
	user, err := r.users.Get(ctx, userID, "income", "creditScore")
	if err != nil {
		return AccountRecommendation{}, err
	}
	mainAccounts, err := r.accounts.ListByUser(ctx, userID, "balance")
	if err != nil {
		return AccountRecommendation{}, err
	}
	var totalBalance float64
	for _, acc := range mainAccounts {
		totalBalance += acc.Balance
	}
	existing, err := r.savings.ListByUser(ctx, userID, "balance")
	if err != nil {
		return AccountRecommendation{}, err
	}
	var existingSavings float64
	for _, acc := range existing {
		existingSavings += acc.Balance
	}

	out, err := r.pipeline.Run(ctx, attribution.Request{
		UserID:    userID,
		Operation: "savings_recommendation",
		QueryText: "Which savings account type fits my balance and spending profile?",
		System:    "You are a transparent financial advisor AI. Always explain WHY you make recommendations and which user attributes influenced your decision.",
		BuildPrompt: func(map[string]any) string {
			return recommendPrompt(user.Income, user.CreditScore, totalBalance, existingSavings, len(existing))
		},
	})
	if err != nil {
		if apperrors.Is(err, apperrors.CodeReasoningUnavailable) {
			return defaultRecommendation(), nil
		}
		return AccountRecommendation{}, err
	}

	recommended, _ := out.Parsed["recommendedAccount"].(map[string]any)
	if recommended == nil {
		recommended = map[string]any{}
	}

	apy := reasoning.Number(recommended["apy"], 2.5)
	estimatedBalance := existingSavings
	if user.Income > 0 {
		estimatedBalance = math.Max(existingSavings, user.Income*0.1)
	}

	rec := AccountRecommendation{
		AccountType:               reasoning.Text(recommended["accountType"], "Standard Savings"),
		RecommendedInterestRate:   reasoning.Number(recommended["interestRate"], 2.5),
		RecommendedAPY:            reasoning.Number(recommended["apy"], 2.53),
		RecommendedMinimumBalance: reasoning.Number(recommended["minimumBalance"], 100),
		Reasoning:                 reasoning.Text(recommended["reasoning"], "Standard recommendation"),
		Factors:                   parseFactors(recommended["factors"]),
		EstimatedMonthlyGrowth:    monthlyGrowth(estimatedBalance, apy),
		AttributesUsed:            out.Attributes,
		AuditID:                   out.AuditID,
	}
	return rec, nil
}

func parseFactors(raw any) []RecommendationFactor {
	items, ok := raw.([]any)
	if !ok {
		return []RecommendationFactor{}
	}
	out := make([]RecommendationFactor, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, RecommendationFactor{
			Attribute:   reasoning.Text(m["attribute"], ""),
			Value:       m["value"],
			Impact:      reasoning.Text(m["impact"], "neutral"),
			Explanation: reasoning.Text(m["explanation"], ""),
		})
	}
	return out
}

func monthlyGrowth(balance, apy float64) float64 {
	if balance <= 0 || apy <= 0 {
		return 0
	}
	rate := math.Pow(1+apy/100, 1.0/12) - 1
	return math.Round(balance*rate*100) / 100
}

func recommendPrompt(income float64, creditScore int, totalBalance, existingSavings float64, accountCount int) string {
	return fmt.Sprintf(`Analyze this user's financial profile and recommend the BEST savings account type for them:

User Profile:
- Annual Income: %.0f (%.0f/month)
- Credit Score: %d
- Total Account Balance: %.0f
- Existing Savings: %.0f
- Existing Savings Accounts: %d

Available Savings Account Types:
1. High-Yield Savings: 4.0-4.5%% APY, Min Balance: 0-10,000
   - Best for: Users with higher balances who want maximum returns
2. Money Market: 3.5-4.0%% APY, Min Balance: 1,000-5,000
   - Best for: Moderate balances, emergency funds
3. Standard Savings: 2.0-3.0%% APY, Min Balance: 100-1,000
   - Best for: Low balances, beginners, frequent access needed

CRITICAL REQUIREMENTS:
1. Recommend the BEST account type for this specific user
2. Explain WHY this account type fits their profile (be specific)
3. List ALL user attributes you considered (use format: user.income, accounts.balance, etc.)
4. Provide specific interest rate and APY recommendations
5. Estimate monthly growth based on their likely balance
6. Break down factors showing which attributes influenced your decision

Return JSON:
{
  "recommendedAccount": {
    "accountType": "High-Yield|Money Market|Standard Savings",
    "interestRate": 0.0-100.0,
    "apy": 0.0-100.0,
    "minimumBalance": 0.0,
    "reasoning": "Clear explanation of why this account type fits the user",
    "factors": [
      {
        "attribute": "user.income",
        "value": %.0f,
        "impact": "positive|negative|neutral",
        "explanation": "Why this matters for recommendation"
      }
    ],
    "attributes_used": ["user.income", "accounts.balance"]
  },
  "attributes_used": ["user.income", "accounts.balance"]
}`, income, income/12, creditScore, totalBalance, existingSavings, accountCount, income)
}
