// Package storage is the document-store boundary. Read methods take an
// optional field projection and report every successful read to the request's
// query observer, which is what makes attribute attribution verifiable.
package storage

import (
	"context"

	"glassbank/internal/domain"
)

// Collection names, used both as store identifiers and as observer keys.
const (
	CollectionUsers           = "users"
	CollectionAccounts        = "accounts"
	CollectionTransactions    = "transactions"
	CollectionSavingsAccounts = "savings_accounts"
	CollectionSavingsGoals    = "savings_goals"
)

// CollectionTopics maps collection names to attribute topics for expanding
// observer snapshots into attribute identifiers.
var CollectionTopics = map[string]string{
	CollectionUsers:           "user",
	CollectionAccounts:        "accounts",
	CollectionTransactions:    "transactions",
	CollectionSavingsAccounts: "savings_accounts",
	CollectionSavingsGoals:    "savings_goals",
}

// Stores are interface-driven to keep the domain logic testable and to allow
// swapping in-memory or external persistence without rewiring business code.
type UserStore interface {
	// Get reads a user. fields is the projection recorded to the observer;
	// empty means an unprojected full-document read.
	Get(ctx context.Context, id string, fields ...string) (domain.User, error)
	Save(ctx context.Context, user domain.User) error
}

type AccountStore interface {
	Get(ctx context.Context, id string, fields ...string) (domain.Account, error)
	GetByNumber(ctx context.Context, userID, accountNumber string, fields ...string) (domain.Account, error)
	ListByUser(ctx context.Context, userID string, fields ...string) ([]domain.Account, error)
	Save(ctx context.Context, account domain.Account) error
}

type TransactionStore interface {
	Get(ctx context.Context, userID, id string, fields ...string) (domain.Transaction, error)
	ListByUser(ctx context.Context, userID string, limit int, fields ...string) ([]domain.Transaction, error)
	Save(ctx context.Context, tx domain.Transaction) error
	Delete(ctx context.Context, userID, id string) error
}

type SavingsAccountStore interface {
	Get(ctx context.Context, userID, id string, fields ...string) (domain.SavingsAccount, error)
	ListByUser(ctx context.Context, userID string, fields ...string) ([]domain.SavingsAccount, error)
	Save(ctx context.Context, account domain.SavingsAccount) error
	Delete(ctx context.Context, userID, id string) error
}

type SavingsGoalStore interface {
	Get(ctx context.Context, userID, id string, fields ...string) (domain.SavingsGoal, error)
	ListByUser(ctx context.Context, userID string, fields ...string) ([]domain.SavingsGoal, error)
	Save(ctx context.Context, goal domain.SavingsGoal) error
	Delete(ctx context.Context, userID, id string) error
}
