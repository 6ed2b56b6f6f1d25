package storage

import (
	"context"
	"sort"
	"sync"

	"glassbank/internal/domain"
	"glassbank/internal/observer"
)

// Memory is the in-memory implementation of every collection store. It backs
// tests and local development; production swaps in a document database behind
// the same interfaces.
type Memory struct {
	mu              sync.RWMutex
	users           map[string]domain.User
	accounts        map[string]domain.Account
	transactions    map[string]domain.Transaction
	savingsAccounts map[string]domain.SavingsAccount
	savingsGoals    map[string]domain.SavingsGoal
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:           make(map[string]domain.User),
		accounts:        make(map[string]domain.Account),
		transactions:    make(map[string]domain.Transaction),
		savingsAccounts: make(map[string]domain.SavingsAccount),
		savingsGoals:    make(map[string]domain.SavingsGoal),
	}
}

// record reports a successful read to the request observer, if any.
// Failed reads must not call this.
func record(ctx context.Context, collection string, fields []string) {
	observer.FromContext(ctx).Record(collection, fields...)
}

// --- users ---

func (m *Memory) Get(ctx context.Context, id string, fields ...string) (domain.User, error) {
	m.mu.RLock()
	user, ok := m.users[id]
	m.mu.RUnlock()
	if !ok {
		return domain.User{}, notFound(CollectionUsers, id)
	}
	record(ctx, CollectionUsers, fields)
	return user, nil
}

func (m *Memory) Save(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

// Users exposes the user-store view of the memory store.
func (m *Memory) Users() UserStore { return m }

// Accounts exposes the account-store view.
func (m *Memory) Accounts() AccountStore { return accountView{m} }

// Transactions exposes the transaction-store view.
func (m *Memory) Transactions() TransactionStore { return transactionView{m} }

// SavingsAccounts exposes the savings-account-store view.
func (m *Memory) SavingsAccounts() SavingsAccountStore { return savingsAccountView{m} }

// SavingsGoals exposes the savings-goal-store view.
func (m *Memory) SavingsGoals() SavingsGoalStore { return savingsGoalView{m} }

// --- accounts ---

type accountView struct{ *Memory }

func (v accountView) Get(ctx context.Context, id string, fields ...string) (domain.Account, error) {
	v.mu.RLock()
	acct, ok := v.accounts[id]
	v.mu.RUnlock()
	if !ok {
		return domain.Account{}, notFound(CollectionAccounts, id)
	}
	record(ctx, CollectionAccounts, fields)
	return acct, nil
}

func (v accountView) GetByNumber(ctx context.Context, userID, accountNumber string, fields ...string) (domain.Account, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, acct := range v.accounts {
		if acct.UserID == userID && acct.AccountNumber == accountNumber {
			record(ctx, CollectionAccounts, fields)
			return acct, nil
		}
	}
	return domain.Account{}, notFound(CollectionAccounts, accountNumber)
}

func (v accountView) ListByUser(ctx context.Context, userID string, fields ...string) ([]domain.Account, error) {
	v.mu.RLock()
	var out []domain.Account
	for _, acct := range v.accounts {
		if acct.UserID == userID {
			out = append(out, acct)
		}
	}
	v.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	record(ctx, CollectionAccounts, fields)
	return out, nil
}

func (v accountView) Save(_ context.Context, account domain.Account) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accounts[account.ID] = account
	return nil
}

// --- transactions ---

type transactionView struct{ *Memory }

func (v transactionView) Get(ctx context.Context, userID, id string, fields ...string) (domain.Transaction, error) {
	v.mu.RLock()
	tx, ok := v.transactions[id]
	v.mu.RUnlock()
	if !ok || tx.UserID != userID {
		return domain.Transaction{}, notFound(CollectionTransactions, id)
	}
	record(ctx, CollectionTransactions, fields)
	return tx, nil
}

func (v transactionView) ListByUser(ctx context.Context, userID string, limit int, fields ...string) ([]domain.Transaction, error) {
	v.mu.RLock()
	var out []domain.Transaction
	for _, tx := range v.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	v.mu.RUnlock()
	// Newest first, matching how statements are read.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	record(ctx, CollectionTransactions, fields)
	return out, nil
}

func (v transactionView) Save(_ context.Context, tx domain.Transaction) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.transactions[tx.ID] = tx
	return nil
}

func (v transactionView) Delete(_ context.Context, userID, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	tx, ok := v.transactions[id]
	if !ok || tx.UserID != userID {
		return notFound(CollectionTransactions, id)
	}
	delete(v.transactions, id)
	return nil
}

// --- savings accounts ---

type savingsAccountView struct{ *Memory }

func (v savingsAccountView) Get(ctx context.Context, userID, id string, fields ...string) (domain.SavingsAccount, error) {
	v.mu.RLock()
	acct, ok := v.savingsAccounts[id]
	v.mu.RUnlock()
	if !ok || acct.UserID != userID {
		return domain.SavingsAccount{}, notFound(CollectionSavingsAccounts, id)
	}
	record(ctx, CollectionSavingsAccounts, fields)
	return acct, nil
}

func (v savingsAccountView) ListByUser(ctx context.Context, userID string, fields ...string) ([]domain.SavingsAccount, error) {
	v.mu.RLock()
	var out []domain.SavingsAccount
	for _, acct := range v.savingsAccounts {
		if acct.UserID == userID {
			out = append(out, acct)
		}
	}
	v.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	record(ctx, CollectionSavingsAccounts, fields)
	return out, nil
}

func (v savingsAccountView) Save(_ context.Context, account domain.SavingsAccount) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.savingsAccounts[account.ID] = account
	return nil
}

func (v savingsAccountView) Delete(_ context.Context, userID, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	acct, ok := v.savingsAccounts[id]
	if !ok || acct.UserID != userID {
		return notFound(CollectionSavingsAccounts, id)
	}
	delete(v.savingsAccounts, id)
	return nil
}

// --- savings goals ---

type savingsGoalView struct{ *Memory }

func (v savingsGoalView) Get(ctx context.Context, userID, id string, fields ...string) (domain.SavingsGoal, error) {
	v.mu.RLock()
	goal, ok := v.savingsGoals[id]
	v.mu.RUnlock()
	if !ok || goal.UserID != userID {
		return domain.SavingsGoal{}, notFound(CollectionSavingsGoals, id)
	}
	record(ctx, CollectionSavingsGoals, fields)
	return goal, nil
}

func (v savingsGoalView) ListByUser(ctx context.Context, userID string, fields ...string) ([]domain.SavingsGoal, error) {
	v.mu.RLock()
	var out []domain.SavingsGoal
	for _, goal := range v.savingsGoals {
		if goal.UserID == userID {
			out = append(out, goal)
		}
	}
	v.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	record(ctx, CollectionSavingsGoals, fields)
	return out, nil
}

func (v savingsGoalView) Save(_ context.Context, goal domain.SavingsGoal) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.savingsGoals[goal.ID] = goal
	return nil
}

func (v savingsGoalView) Delete(_ context.Context, userID, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	goal, ok := v.savingsGoals[id]
	if !ok || goal.UserID != userID {
		return notFound(CollectionSavingsGoals, id)
	}
	delete(v.savingsGoals, id)
	return nil
}
