package domain

import "time"

// TransactionType distinguishes money leaving from money entering an account.
type TransactionType string

const (
	TransactionDebit  TransactionType = "debit"
	TransactionCredit TransactionType = "credit"
)

// TransactionAnalysis is the per-transaction AI assessment stored alongside
// the transaction. When analysis is skipped or the model is unavailable the
// fixed low-risk defaults below are stored instead.
type TransactionAnalysis struct {
	FraudScore         float64 `json:"fraudScore"`
	RiskLevel          string  `json:"riskLevel"`
	CategoryConfidence float64 `json:"categoryConfidence"`
	AnomalyScore       float64 `json:"anomalyScore"`
	Insights           string  `json:"insights,omitempty"`
	// SpendingWisdom classifies the purchase as wise, unwise or neutral.
	// Empty means the analysis predates wisdom scoring; readers treat it as
	// neutral.
	SpendingWisdom string  `json:"spendingWisdom,omitempty"`
	WisdomScore    float64 `json:"wisdomScore,omitempty"`
}

// DefaultTransactionAnalysis is stored verbatim whenever AI analysis does not
// run. Keeping it a function prevents callers from mutating a shared value.
func DefaultTransactionAnalysis() TransactionAnalysis {
	return TransactionAnalysis{
		FraudScore:         0.0,
		RiskLevel:          "low",
		CategoryConfidence: 0.8,
		AnomalyScore:       0.0,
	}
}

// Transaction is a single ledger entry against an account.
type Transaction struct {
	ID           string               `json:"id"`
	UserID       string               `json:"userId"`
	AccountID    string               `json:"accountId"`
	Amount       float64              `json:"amount"`
	Type         TransactionType      `json:"type"`
	Category     string               `json:"category"`
	Description  string               `json:"description"`
	MerchantName string               `json:"merchantName,omitempty"`
	Analysis     *TransactionAnalysis `json:"aiAnalysis,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
}

// Signed returns the amount with debit sign convention applied.
func (t Transaction) Signed() float64 {
	if t.Type == TransactionDebit {
		return -t.Amount
	}
	return t.Amount
}
