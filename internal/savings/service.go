// Package savings manages savings accounts and goals. The savings account
// balance is the single source of truth; the unified accounts view derives
// savings entries by account-number lookup instead of double-writing.
package savings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"glassbank/internal/domain"
	"glassbank/internal/storage"
	"glassbank/pkg/apperrors"
	"glassbank/pkg/sentinel"
)

// AccountRequest creates or updates a savings account.
type AccountRequest struct {
	Name           string  `json:"name"`
	AccountType    string  `json:"accountType"`
	InterestRate   float64 `json:"interestRate"`
	APY            float64 `json:"apy"`
	MinimumBalance float64 `json:"minimumBalance"`
	Institution    string  `json:"institution,omitempty"`
}

// AccountView is a savings account with its projected monthly growth.
type AccountView struct {
	domain.SavingsAccount
	MonthlyGrowth float64 `json:"monthlyGrowth"`
}

// GoalRequest creates or updates a savings goal. Deadline is YYYY-MM-DD.
type GoalRequest struct {
	Name                string  `json:"name"`
	TargetAmount        float64 `json:"targetAmount"`
	Deadline            string  `json:"deadline"`
	MonthlyContribution float64 `json:"monthlyContribution"`
	Priority            string  `json:"priority,omitempty"`
	Category            string  `json:"category,omitempty"`
	AccountID           string  `json:"accountId,omitempty"`
}

// GoalView is a savings goal with its computed status and progress.
type GoalView struct {
	domain.SavingsGoal
	Status   domain.GoalStatus `json:"status"`
	Progress float64           `json:"progress"`
}

// Summary is the rollup across all savings accounts and goals.
type Summary struct {
	TotalSavings       float64 `json:"totalSavings"`
	TotalMonthlyGrowth float64 `json:"totalMonthlyGrowth"`
	AverageAPY         float64 `json:"averageAPY"`
	ActiveGoals        int     `json:"activeGoals"`
	TotalAccounts      int     `json:"totalAccounts"`
}

// Service owns the savings domain operations.
type Service struct {
	accounts        storage.AccountStore
	savingsAccounts storage.SavingsAccountStore
	savingsGoals    storage.SavingsGoalStore
	logger          *slog.Logger
	now             func() time.Time
	accountNumber   func() string
}

func NewService(
	accounts storage.AccountStore,
	savingsAccounts storage.SavingsAccountStore,
	savingsGoals storage.SavingsGoalStore,
	logger *slog.Logger,
) *Service {
	return &Service{
		accounts:        accounts,
		savingsAccounts: savingsAccounts,
		savingsGoals:    savingsGoals,
		logger:          logger,
		now:             time.Now,
		accountNumber:   randomAccountNumber,
	}
}

// WithClock overrides the clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithAccountNumberSource overrides account number generation, for tests.
func (s *Service) WithAccountNumberSource(gen func() string) *Service {
	s.accountNumber = gen
	return s
}

func randomAccountNumber() string {
	return fmt.Sprintf("%04d%04d", rand.Intn(9000)+1000, rand.Intn(9000)+1000)
}

// ListAccounts returns the user's savings accounts with projected growth.
func (s *Service) ListAccounts(ctx context.Context, userID string) ([]AccountView, error) {
	accounts, err := s.savingsAccounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]AccountView, 0, len(accounts))
	for _, acc := range accounts {
		views = append(views, AccountView{SavingsAccount: acc, MonthlyGrowth: acc.MonthlyGrowth()})
	}
	return views, nil
}

// GetAccount returns one savings account.
func (s *Service) GetAccount(ctx context.Context, userID, accountID string) (AccountView, error) {
	acc, err := s.getOwned(ctx, userID, accountID)
	if err != nil {
		return AccountView{}, err
	}
	return AccountView{SavingsAccount: acc, MonthlyGrowth: acc.MonthlyGrowth()}, nil
}

// CreateAccount opens a savings account with a zero balance and a fresh
// account number unique across the savings and main account namespaces.
func (s *Service) CreateAccount(ctx context.Context, userID string, req AccountRequest) (AccountView, error) {
	if err := validateAccountRequest(req); err != nil {
		return AccountView{}, err
	}

	number, err := s.uniqueAccountNumber(ctx, userID)
	if err != nil {
		return AccountView{}, err
	}

	now := s.now()
	acc := domain.SavingsAccount{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           req.Name,
		AccountNumber:  number,
		AccountType:    req.AccountType,
		Balance:        0,
		MinimumBalance: req.MinimumBalance,
		APY:            req.APY,
		InterestRate:   req.InterestRate,
		Institution:    defaultInstitution(req.Institution),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.savingsAccounts.Save(ctx, acc); err != nil {
		return AccountView{}, err
	}
	return AccountView{SavingsAccount: acc, MonthlyGrowth: acc.MonthlyGrowth()}, nil
}

// UpdateAccount changes the account's terms. Balance and account number are
// immutable here; money moves only through Deposit and Withdraw.
func (s *Service) UpdateAccount(ctx context.Context, userID, accountID string, req AccountRequest) (AccountView, error) {
	if err := validateAccountRequest(req); err != nil {
		return AccountView{}, err
	}
	acc, err := s.getOwned(ctx, userID, accountID)
	if err != nil {
		return AccountView{}, err
	}

	acc.Name = req.Name
	acc.AccountType = req.AccountType
	acc.InterestRate = req.InterestRate
	acc.APY = req.APY
	acc.MinimumBalance = req.MinimumBalance
	acc.Institution = defaultInstitution(req.Institution)
	acc.UpdatedAt = s.now()
	if err := s.savingsAccounts.Save(ctx, acc); err != nil {
		return AccountView{}, err
	}
	return AccountView{SavingsAccount: acc, MonthlyGrowth: acc.MonthlyGrowth()}, nil
}

// Deposit adds funds and returns the new balance.
func (s *Service) Deposit(ctx context.Context, userID, accountID string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, apperrors.New(apperrors.CodeValidation, "amount must be positive")
	}
	acc, err := s.getOwned(ctx, userID, accountID)
	if err != nil {
		return 0, err
	}
	acc.Balance += amount
	acc.UpdatedAt = s.now()
	if err := s.savingsAccounts.Save(ctx, acc); err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// Withdraw removes funds. The balance may not drop below the account's
// minimum; a violating withdrawal fails without mutating anything.
func (s *Service) Withdraw(ctx context.Context, userID, accountID string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, apperrors.New(apperrors.CodeValidation, "amount must be positive")
	}
	acc, err := s.getOwned(ctx, userID, accountID)
	if err != nil {
		return 0, err
	}
	if acc.Balance-amount < acc.MinimumBalance {
		return 0, apperrors.Newf(apperrors.CodeInsufficientFunds,
			"insufficient balance, minimum balance required: %.2f", acc.MinimumBalance)
	}
	acc.Balance -= amount
	acc.UpdatedAt = s.now()
	if err := s.savingsAccounts.Save(ctx, acc); err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// DeleteAccount removes an emptied savings account.
func (s *Service) DeleteAccount(ctx context.Context, userID, accountID string) error {
	acc, err := s.getOwned(ctx, userID, accountID)
	if err != nil {
		return err
	}
	if acc.Balance > 0 {
		return apperrors.New(apperrors.CodeConflict,
			"cannot delete account with non-zero balance, withdraw funds first")
	}
	return s.savingsAccounts.Delete(ctx, userID, accountID)
}

// UnifiedAccounts merges the user's main accounts with savings accounts
// presented as account entries. Savings balances come straight from the
// savings store, never from a duplicated record.
func (s *Service) UnifiedAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	main, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	savingsAccounts, err := s.savingsAccounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(main))
	out := make([]domain.Account, 0, len(main)+len(savingsAccounts))
	for _, acc := range main {
		seen[acc.AccountNumber] = struct{}{}
		out = append(out, acc)
	}
	for _, sa := range savingsAccounts {
		if _, dup := seen[sa.AccountNumber]; dup {
			continue
		}
		out = append(out, domain.Account{
			ID:            sa.ID,
			UserID:        sa.UserID,
			AccountNumber: sa.AccountNumber,
			AccountType:   "savings",
			Balance:       sa.Balance,
			Status:        domain.AccountActive,
			CreatedAt:     sa.CreatedAt,
		})
	}
	return out, nil
}

// ListGoals returns the user's goals with computed status and progress.
func (s *Service) ListGoals(ctx context.Context, userID string) ([]GoalView, error) {
	goals, err := s.savingsGoals.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]GoalView, 0, len(goals))
	for _, g := range goals {
		views = append(views, GoalView{SavingsGoal: g, Status: g.Status(now), Progress: g.Progress()})
	}
	return views, nil
}

// CreateGoal opens a goal at zero progress. A linked account must exist and
// belong to the user.
func (s *Service) CreateGoal(ctx context.Context, userID string, req GoalRequest) (GoalView, error) {
	deadline, err := s.validateGoalRequest(ctx, userID, req)
	if err != nil {
		return GoalView{}, err
	}

	now := s.now()
	goal := domain.SavingsGoal{
		ID:                  uuid.NewString(),
		UserID:              userID,
		Name:                req.Name,
		TargetAmount:        req.TargetAmount,
		CurrentAmount:       0,
		MonthlyContribution: req.MonthlyContribution,
		Deadline:            deadline,
		Priority:            defaultString(req.Priority, "Medium"),
		Category:            defaultString(req.Category, "Custom"),
		LinkedAccountID:     req.AccountID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.savingsGoals.Save(ctx, goal); err != nil {
		return GoalView{}, err
	}
	return GoalView{SavingsGoal: goal, Status: goal.Status(now), Progress: goal.Progress()}, nil
}

// UpdateGoal rewrites the goal's plan, keeping the accumulated amount.
func (s *Service) UpdateGoal(ctx context.Context, userID, goalID string, req GoalRequest) (GoalView, error) {
	deadline, err := s.validateGoalRequest(ctx, userID, req)
	if err != nil {
		return GoalView{}, err
	}
	goal, err := s.getOwnedGoal(ctx, userID, goalID)
	if err != nil {
		return GoalView{}, err
	}

	goal.Name = req.Name
	goal.TargetAmount = req.TargetAmount
	goal.Deadline = deadline
	goal.MonthlyContribution = req.MonthlyContribution
	goal.Priority = defaultString(req.Priority, "Medium")
	goal.Category = defaultString(req.Category, "Custom")
	goal.LinkedAccountID = req.AccountID
	goal.UpdatedAt = s.now()
	if err := s.savingsGoals.Save(ctx, goal); err != nil {
		return GoalView{}, err
	}
	now := s.now()
	return GoalView{SavingsGoal: goal, Status: goal.Status(now), Progress: goal.Progress()}, nil
}

// Contribute adds to the goal, clamped at the target. When the goal is
// funded from a linked account the applied amount is withdrawn from it,
// provided the account holds enough.
func (s *Service) Contribute(ctx context.Context, userID, goalID string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, apperrors.New(apperrors.CodeValidation, "amount must be positive")
	}
	goal, err := s.getOwnedGoal(ctx, userID, goalID)
	if err != nil {
		return 0, err
	}

	newAmount := min(goal.CurrentAmount+amount, goal.TargetAmount)
	applied := newAmount - goal.CurrentAmount

	// The linked account funds the contribution, so it is debited first; a
	// contribution it cannot cover is rejected rather than partially applied.
	if goal.LinkedAccountID != "" && applied > 0 {
		acc, err := s.getOwned(ctx, userID, goal.LinkedAccountID)
		if err != nil {
			return 0, err
		}
		if acc.Balance < applied {
			s.logger.WarnContext(ctx, "goal contribution rejected, linked account cannot cover it",
				"goal_id", goalID, "account_id", goal.LinkedAccountID,
				"balance", acc.Balance, "applied", applied)
			return 0, apperrors.Newf(apperrors.CodeInsufficientFunds,
				"linked account balance %.2f cannot cover contribution %.2f", acc.Balance, applied)
		}
		acc.Balance -= applied
		acc.UpdatedAt = s.now()
		if err := s.savingsAccounts.Save(ctx, acc); err != nil {
			return 0, err
		}
	}

	goal.CurrentAmount = newAmount
	goal.UpdatedAt = s.now()
	if err := s.savingsGoals.Save(ctx, goal); err != nil {
		return 0, err
	}
	return newAmount, nil
}

// DeleteGoal removes the goal, refunding accumulated funds to the linked
// account when there is one.
func (s *Service) DeleteGoal(ctx context.Context, userID, goalID string) error {
	goal, err := s.getOwnedGoal(ctx, userID, goalID)
	if err != nil {
		return err
	}

	if goal.CurrentAmount > 0 && goal.LinkedAccountID != "" {
		acc, err := s.getOwned(ctx, userID, goal.LinkedAccountID)
		if err == nil {
			acc.Balance += goal.CurrentAmount
			acc.UpdatedAt = s.now()
			if err := s.savingsAccounts.Save(ctx, acc); err != nil {
				s.logger.WarnContext(ctx, "failed to refund linked account on goal deletion",
					"goal_id", goalID, "account_id", goal.LinkedAccountID, "error", err)
			}
		}
	}
	return s.savingsGoals.Delete(ctx, userID, goalID)
}

// GetSummary aggregates savings balances, growth and goal activity.
func (s *Service) GetSummary(ctx context.Context, userID string) (Summary, error) {
	accounts, err := s.savingsAccounts.ListByUser(ctx, userID, "balance", "apy")
	if err != nil {
		return Summary{}, err
	}
	goals, err := s.savingsGoals.ListByUser(ctx, userID, "currentAmount", "targetAmount")
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	summary.TotalAccounts = len(accounts)
	var apySum float64
	var apyCount int
	for _, acc := range accounts {
		summary.TotalSavings += acc.Balance
		summary.TotalMonthlyGrowth += acc.MonthlyGrowth()
		if acc.APY > 0 {
			apySum += acc.APY
			apyCount++
		}
	}
	if apyCount > 0 {
		summary.AverageAPY = apySum / float64(apyCount)
	}
	for _, g := range goals {
		if g.Progress() < 100 {
			summary.ActiveGoals++
		}
	}
	return summary, nil
}

func (s *Service) getOwned(ctx context.Context, userID, accountID string) (domain.SavingsAccount, error) {
	acc, err := s.savingsAccounts.Get(ctx, userID, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.SavingsAccount{}, apperrors.New(apperrors.CodeNotFound, "savings account not found")
		}
		return domain.SavingsAccount{}, err
	}
	return acc, nil
}

func (s *Service) getOwnedGoal(ctx context.Context, userID, goalID string) (domain.SavingsGoal, error) {
	goal, err := s.savingsGoals.Get(ctx, userID, goalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.SavingsGoal{}, apperrors.New(apperrors.CodeNotFound, "savings goal not found")
		}
		return domain.SavingsGoal{}, err
	}
	return goal, nil
}

func (s *Service) uniqueAccountNumber(ctx context.Context, userID string) (string, error) {
	for range 20 {
		number := s.accountNumber()
		if s.numberTaken(ctx, userID, number) {
			continue
		}
		return number, nil
	}
	return "", apperrors.New(apperrors.CodeInternal, "could not allocate account number")
}

func (s *Service) numberTaken(ctx context.Context, userID, number string) bool {
	if _, err := s.accounts.GetByNumber(ctx, userID, number); err == nil {
		return true
	}
	savingsAccounts, err := s.savingsAccounts.ListByUser(ctx, userID, "accountNumber")
	if err != nil {
		return false
	}
	for _, acc := range savingsAccounts {
		if acc.AccountNumber == number {
			return true
		}
	}
	return false
}

func (s *Service) validateGoalRequest(ctx context.Context, userID string, req GoalRequest) (time.Time, error) {
	if strings.TrimSpace(req.Name) == "" {
		return time.Time{}, apperrors.New(apperrors.CodeValidation, "goal name is required")
	}
	if req.TargetAmount <= 0 {
		return time.Time{}, apperrors.New(apperrors.CodeValidation, "target amount must be positive")
	}
	if req.MonthlyContribution <= 0 {
		return time.Time{}, apperrors.New(apperrors.CodeValidation, "monthly contribution must be positive")
	}
	deadline, err := time.Parse("2006-01-02", req.Deadline)
	if err != nil {
		return time.Time{}, apperrors.New(apperrors.CodeValidation, "invalid date format, use YYYY-MM-DD")
	}
	if req.AccountID != "" {
		if _, err := s.getOwned(ctx, userID, req.AccountID); err != nil {
			return time.Time{}, apperrors.New(apperrors.CodeNotFound, "linked savings account not found")
		}
	}
	return deadline, nil
}

func validateAccountRequest(req AccountRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.New(apperrors.CodeValidation, "account name is required")
	}
	if req.InterestRate < 0 || req.InterestRate > 100 {
		return apperrors.New(apperrors.CodeValidation, "interest rate must be between 0 and 100")
	}
	if req.APY < 0 || req.APY > 100 {
		return apperrors.New(apperrors.CodeValidation, "apy must be between 0 and 100")
	}
	if req.MinimumBalance < 0 {
		return apperrors.New(apperrors.CodeValidation, "minimum balance must not be negative")
	}
	return nil
}

func defaultInstitution(v string) string {
	if v == "" {
		return "GlassBank"
	}
	return v
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
