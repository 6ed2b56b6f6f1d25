package domain

import "time"

// AccountStatus is the lifecycle state of a bank account.
type AccountStatus string

const (
	AccountActive AccountStatus = "active"
	AccountFrozen AccountStatus = "frozen"
	AccountClosed AccountStatus = "closed"
)

// Account is a checking or primary account. Savings balances live on
// SavingsAccount; the account list view resolves them by account number so
// there is exactly one source of truth per balance.
type Account struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId"`
	AccountNumber string        `json:"accountNumber"`
	AccountType   string        `json:"accountType"`
	Balance       float64       `json:"balance"`
	Status        AccountStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
}
