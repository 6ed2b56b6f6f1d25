package domain

import (
	"math"
	"time"
)

// SavingsAccount is an interest-bearing account. Its balance is authoritative;
// the accounts view derives savings entries from here by account number.
type SavingsAccount struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Name           string    `json:"name"`
	AccountNumber  string    `json:"accountNumber"`
	AccountType    string    `json:"accountType"`
	Balance        float64   `json:"balance"`
	MinimumBalance float64   `json:"minimumBalance"`
	APY            float64   `json:"apy"`
	InterestRate   float64   `json:"interestRate"`
	Institution    string    `json:"institution,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt,omitzero"`
}

// MonthlyGrowth is the projected interest for one month at the account's APY,
// using the monthly compound rate.
func (a SavingsAccount) MonthlyGrowth() float64 {
	if a.APY <= 0 || a.Balance <= 0 {
		return 0
	}
	monthlyRate := math.Pow(1+a.APY/100, 1.0/12) - 1
	return a.Balance * monthlyRate
}

// GoalStatus classifies progress toward a savings goal.
type GoalStatus string

const (
	GoalCompleted GoalStatus = "Completed"
	GoalAhead     GoalStatus = "Ahead"
	GoalOnTrack   GoalStatus = "On Track"
	GoalBehind    GoalStatus = "Behind"
)

// SavingsGoal tracks a target amount with a monthly contribution plan,
// optionally funded from a linked savings account.
type SavingsGoal struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"userId"`
	Name                string    `json:"name"`
	TargetAmount        float64   `json:"targetAmount"`
	CurrentAmount       float64   `json:"currentAmount"`
	MonthlyContribution float64   `json:"monthlyContribution"`
	Deadline            time.Time `json:"deadline,omitzero"`
	Priority            string    `json:"priority,omitempty"`
	Category            string    `json:"category,omitempty"`
	LinkedAccountID     string    `json:"linkedAccountId,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt,omitzero"`
}

// Progress is percent of target reached, capped at 100.
func (g SavingsGoal) Progress() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	p := g.CurrentAmount / g.TargetAmount * 100
	return math.Min(p, 100)
}

// RequiredMonthly is the contribution needed to hit the target by the
// deadline. A past or missing deadline with an unmet target yields +Inf so
// status classification lands on Behind.
func (g SavingsGoal) RequiredMonthly(now time.Time) float64 {
	remaining := g.TargetAmount - g.CurrentAmount
	if remaining <= 0 {
		return 0
	}
	if g.Deadline.IsZero() || !g.Deadline.After(now) {
		return math.Inf(1)
	}
	months := g.Deadline.Sub(now).Hours() / 24 / 30
	if months < 1 {
		months = 1
	}
	return remaining / months
}

// Status classifies the goal by comparing the required monthly amount against
// the planned contribution.
func (g SavingsGoal) Status(now time.Time) GoalStatus {
	if g.Progress() >= 100 {
		return GoalCompleted
	}
	required := g.RequiredMonthly(now)
	switch {
	case required <= g.MonthlyContribution*0.9:
		return GoalAhead
	case required <= g.MonthlyContribution*1.1:
		return GoalOnTrack
	default:
		return GoalBehind
	}
}
