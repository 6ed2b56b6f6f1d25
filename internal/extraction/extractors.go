package extraction

import (
	"context"
	"fmt"
	"time"

	"glassbank/internal/domain"
	"glassbank/internal/storage"
	"glassbank/pkg/requestcontext"
)

// ConsentChecker is the slice of the consent service extractors need.
type ConsentChecker interface {
	IsAllowed(ctx context.Context, userID, attributeID string) (bool, error)
}

// Extractors holds the banking data sources. Each extractor gates on the
// topic's representative attribute: a user who denies accounts.balance gets
// no account data in any AI prompt, full stop.
type Extractors struct {
	users           storage.UserStore
	accounts        storage.AccountStore
	transactions    storage.TransactionStore
	savingsAccounts storage.SavingsAccountStore
	savingsGoals    storage.SavingsGoalStore
	consent         ConsentChecker
}

func NewExtractors(
	users storage.UserStore,
	accounts storage.AccountStore,
	transactions storage.TransactionStore,
	savingsAccounts storage.SavingsAccountStore,
	savingsGoals storage.SavingsGoalStore,
	consent ConsentChecker,
) *Extractors {
	return &Extractors{
		users:           users,
		accounts:        accounts,
		transactions:    transactions,
		savingsAccounts: savingsAccounts,
		savingsGoals:    savingsGoals,
		consent:         consent,
	}
}

// Sources returns the full registry table.
func (e *Extractors) Sources() []Source {
	return []Source{
		{
			Topic:         "user",
			Keywords:      []string{"user", "profile", "me", "my", "personal"},
			AlwaysInclude: true,
			Extract:       e.User,
		},
		{
			Topic:    "accounts",
			Keywords: []string{"account", "balance", "checking", "deposit", "withdraw"},
			Extract:  e.Accounts,
		},
		{
			Topic:    "transactions",
			Keywords: []string{"transaction", "spending", "purchase", "payment", "spent", "expense"},
			Extract:  e.Transactions,
		},
		{
			Topic:    "savings_accounts",
			Keywords: []string{"savings", "saving", "goal", "emergency fund", "target", "apy", "interest"},
			Extract:  e.SavingsAccounts,
		},
		{
			Topic:    "savings_goals",
			Keywords: []string{"goal", "target", "saving goal", "financial goal", "milestone", "deadline"},
			Extract:  e.SavingsGoals,
		},
	}
}

// User extracts the basic profile. Identity fields always flow; financial
// profile fields ride along when present, age is derived rather than exposing
// the raw birth date.
func (e *Extractors) User(ctx context.Context, userID string) (Result, error) {
	user, err := e.users.Get(ctx, userID,
		"firstName", "lastName", "email", "income", "creditScore", "employmentStatus", "dateOfBirth")
	if err != nil {
		return Result{}, fmt.Errorf("extract user: %w", err)
	}

	payload := map[string]any{
		"name":      user.FirstName + " " + user.LastName,
		"firstName": user.FirstName,
		"lastName":  user.LastName,
		"email":     user.Email,
	}
	attributes := []string{"user.email", "user.firstName", "user.lastName"}

	if user.Income > 0 || user.CreditScore > 0 {
		payload["income"] = user.Income
		payload["creditScore"] = user.CreditScore
		payload["employmentStatus"] = user.EmploymentStatus
		attributes = append(attributes, "user.income", "user.creditScore", "user.employmentStatus")

		if !user.DateOfBirth.IsZero() {
			payload["age"] = user.Age(requestcontext.Now(ctx))
			attributes = append(attributes, "user.dateOfBirth")
		}
	}

	return Result{Payload: payload, Attributes: attributes}, nil
}

// Accounts extracts open accounts and their aggregate balance.
func (e *Extractors) Accounts(ctx context.Context, userID string) (Result, error) {
	allowed, err := e.consent.IsAllowed(ctx, userID, "accounts.balance")
	if err != nil {
		return Result{}, err
	}
	if !allowed {
		return Result{}, nil
	}

	accounts, err := e.accounts.ListByUser(ctx, userID, "balance", "accountType", "accountNumber", "status")
	if err != nil {
		return Result{}, fmt.Errorf("extract accounts: %w", err)
	}

	var open []map[string]any
	total := 0.0
	for _, acct := range accounts {
		if acct.Status == domain.AccountClosed {
			continue
		}
		open = append(open, map[string]any{
			"type":          acct.AccountType,
			"balance":       acct.Balance,
			"accountNumber": acct.AccountNumber,
			"status":        string(acct.Status),
		})
		total += acct.Balance
	}
	if len(open) == 0 {
		return Result{}, nil
	}

	return Result{
		Payload: map[string]any{
			"accounts":      open,
			"total_balance": total,
			"account_count": len(open),
		},
		Attributes: []string{
			"accounts.balance",
			"accounts.accountType",
			"accounts.accountNumber",
			"accounts.status",
		},
	}, nil
}

// Transactions extracts the last six months of activity with per-category
// totals and the derived monthly spending figure.
func (e *Extractors) Transactions(ctx context.Context, userID string) (Result, error) {
	allowed, err := e.consent.IsAllowed(ctx, userID, "transactions.amount")
	if err != nil {
		return Result{}, err
	}
	if !allowed {
		return Result{}, nil
	}

	txs, err := e.transactions.ListByUser(ctx, userID, 50,
		"amount", "category", "type", "description", "createdAt")
	if err != nil {
		return Result{}, fmt.Errorf("extract transactions: %w", err)
	}

	cutoff := requestcontext.Now(ctx).Add(-180 * 24 * time.Hour)
	categories := make(map[string]float64)
	totalDebits := 0.0
	count := 0
	for _, tx := range txs {
		if tx.CreatedAt.Before(cutoff) {
			continue
		}
		count++
		categories[defaultCategory(tx.Category)] += abs(tx.Amount)
		if tx.Type == domain.TransactionDebit {
			totalDebits += abs(tx.Amount)
		}
	}
	if count == 0 {
		return Result{}, nil
	}

	return Result{
		Payload: map[string]any{
			"recent_count": count,
			// Six-month window averaged to a monthly figure.
			"monthly_spending": totalDebits / 6,
			"categories":       categories,
		},
		Attributes: []string{
			"transactions.amount",
			"transactions.category",
			"transactions.type",
			"transactions.description",
			"transactions.createdAt",
		},
	}, nil
}

// SavingsAccounts extracts savings balances with projected monthly growth.
func (e *Extractors) SavingsAccounts(ctx context.Context, userID string) (Result, error) {
	allowed, err := e.consent.IsAllowed(ctx, userID, "savings_accounts.balance")
	if err != nil {
		return Result{}, err
	}
	if !allowed {
		return Result{}, nil
	}

	accounts, err := e.savingsAccounts.ListByUser(ctx, userID,
		"name", "balance", "accountType", "accountNumber", "apy", "interestRate", "minimumBalance")
	if err != nil {
		return Result{}, fmt.Errorf("extract savings accounts: %w", err)
	}
	if len(accounts) == 0 {
		return Result{}, nil
	}

	var items []map[string]any
	totalBalance, totalGrowth, totalAPY := 0.0, 0.0, 0.0
	for _, acct := range accounts {
		growth := acct.MonthlyGrowth()
		items = append(items, map[string]any{
			"name":           acct.Name,
			"type":           acct.AccountType,
			"balance":        acct.Balance,
			"accountNumber":  acct.AccountNumber,
			"apy":            acct.APY,
			"interestRate":   acct.InterestRate,
			"monthlyGrowth":  growth,
			"minimumBalance": acct.MinimumBalance,
		})
		totalBalance += acct.Balance
		totalGrowth += growth
		totalAPY += acct.APY
	}

	return Result{
		Payload: map[string]any{
			"savings_accounts":     items,
			"total_savings":        totalBalance,
			"total_monthly_growth": totalGrowth,
			"average_apy":          totalAPY / float64(len(accounts)),
		},
		Attributes: []string{
			"savings_accounts.balance",
			"savings_accounts.accountType",
			"savings_accounts.apy",
			"savings_accounts.interestRate",
		},
	}, nil
}

// SavingsGoals extracts goals with derived progress and status.
func (e *Extractors) SavingsGoals(ctx context.Context, userID string) (Result, error) {
	allowed, err := e.consent.IsAllowed(ctx, userID, "savings_goals.targetAmount")
	if err != nil {
		return Result{}, err
	}
	if !allowed {
		return Result{}, nil
	}

	goals, err := e.savingsGoals.ListByUser(ctx, userID,
		"name", "targetAmount", "currentAmount", "deadline", "monthlyContribution", "priority", "category")
	if err != nil {
		return Result{}, fmt.Errorf("extract savings goals: %w", err)
	}
	if len(goals) == 0 {
		return Result{}, nil
	}

	now := requestcontext.Now(ctx)
	var items []map[string]any
	totalTarget, totalCurrent := 0.0, 0.0
	active := 0
	for _, goal := range goals {
		status := goal.Status(now)
		if status != domain.GoalCompleted {
			active++
		}
		item := map[string]any{
			"name":                goal.Name,
			"targetAmount":        goal.TargetAmount,
			"currentAmount":       goal.CurrentAmount,
			"monthlyContribution": goal.MonthlyContribution,
			"priority":            goal.Priority,
			"category":            goal.Category,
			"status":              string(status),
			"progress_percentage": goal.Progress(),
			"remaining":           goal.TargetAmount - goal.CurrentAmount,
		}
		if !goal.Deadline.IsZero() {
			item["deadline"] = goal.Deadline.Format(time.RFC3339)
		}
		items = append(items, item)
		totalTarget += goal.TargetAmount
		totalCurrent += goal.CurrentAmount
	}

	return Result{
		Payload: map[string]any{
			"savings_goals": items,
			"total_goals":   len(goals),
			"total_target":  totalTarget,
			"total_current": totalCurrent,
			"active_goals":  active,
		},
		Attributes: []string{
			"savings_goals.targetAmount",
			"savings_goals.currentAmount",
			"savings_goals.monthlyContribution",
			"savings_goals.status",
		},
	}, nil
}

func defaultCategory(category string) string {
	if category == "" {
		return "other"
	}
	return category
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
