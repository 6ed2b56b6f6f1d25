package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonthlyGrowthUsesCompoundMonthlyRate(t *testing.T) {
	acct := SavingsAccount{Balance: 12000, APY: 12}
	assert.InDelta(t, 113.8, acct.MonthlyGrowth(), 0.2)

	assert.Zero(t, SavingsAccount{Balance: 12000, APY: 0}.MonthlyGrowth())
	assert.Zero(t, SavingsAccount{Balance: 0, APY: 5}.MonthlyGrowth())
}

func TestGoalProgressCapsAtHundred(t *testing.T) {
	g := SavingsGoal{TargetAmount: 1000, CurrentAmount: 2500}
	assert.Equal(t, 100.0, g.Progress())

	assert.Zero(t, SavingsGoal{TargetAmount: 0, CurrentAmount: 50}.Progress())
}

func TestGoalStatusBands(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deadline := now.AddDate(0, 10, 0)

	// remaining 1000 over ~10 months, required ~100/month.
	base := SavingsGoal{
		TargetAmount:  2000,
		CurrentAmount: 1000,
		Deadline:      deadline,
	}

	ahead := base
	ahead.MonthlyContribution = 200
	assert.Equal(t, GoalAhead, ahead.Status(now))

	onTrack := base
	onTrack.MonthlyContribution = 100
	assert.Equal(t, GoalOnTrack, onTrack.Status(now))

	behind := base
	behind.MonthlyContribution = 50
	assert.Equal(t, GoalBehind, behind.Status(now))
}

func TestGoalStatusCompletedWinsOverDeadline(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := SavingsGoal{
		TargetAmount:        500,
		CurrentAmount:       500,
		MonthlyContribution: 10,
		Deadline:            now.AddDate(0, -1, 0),
	}
	assert.Equal(t, GoalCompleted, g.Status(now))
}

func TestGoalPastDeadlineIsBehind(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := SavingsGoal{
		TargetAmount:        500,
		CurrentAmount:       100,
		MonthlyContribution: 1000,
		Deadline:            now.AddDate(0, -1, 0),
	}
	assert.True(t, math.IsInf(g.RequiredMonthly(now), 1))
	assert.Equal(t, GoalBehind, g.Status(now))
}

func TestUserAgeHonorsBirthday(t *testing.T) {
	dob := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)
	u := User{DateOfBirth: dob}

	beforeBirthday := time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 35, u.Age(beforeBirthday))

	onBirthday := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 36, u.Age(onBirthday))
}
