package attr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCollapsesDoubledTopicPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"savings_accounts.savings_accounts.balance", "savings_accounts.balance"},
		{"user.user.income", "user.income"},
		{"user.user.user.income", "user.income"},
		{"accounts.balance", "accounts.balance"},
		{"  transactions.amount ", "transactions.amount"},
		{"User.Income", "User.Income"},
		{"SAVINGS_ACCOUNTS.savings_accounts.apy", "savings_accounts.apy"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"savings_accounts.savings_accounts.balance",
		"user.income",
		"Accounts.Balance",
		"not-an-attribute",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestKeyEqualityIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, Key("User.Income"), Key("user.income"))
	assert.Equal(t, Key("user.user.income"), Key("USER.INCOME"))
}

func TestWellFormed(t *testing.T) {
	assert.True(t, WellFormed("user.income"))
	assert.True(t, WellFormed("SAVINGS_GOALS.status"))
	assert.False(t, WellFormed("income"))
	assert.False(t, WellFormed("unknown_topic.field"))
	assert.False(t, WellFormed("user."))
	assert.False(t, WellFormed(""))
}

func TestDedupeKeepsFirstSpelling(t *testing.T) {
	in := []string{"User.Income", "user.income", "accounts.balance", "user.user.income"}
	assert.Equal(t, []string{"User.Income", "accounts.balance"}, Dedupe(in))
}

func TestSortedDedupeIsStableAcrossInputOrder(t *testing.T) {
	a := SortedDedupe([]string{"user.income", "accounts.balance", "user.creditScore"})
	b := SortedDedupe([]string{"accounts.balance", "user.creditScore", "user.income"})
	assert.Equal(t, a, b)
	assert.Equal(t, []string{"accounts.balance", "user.creditScore", "user.income"}, a)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "user", Topic("User.Income"))
	assert.Equal(t, "savings_accounts", Topic("savings_accounts.savings_accounts.apy"))
	assert.Equal(t, "", Topic("plain"))
}

func TestCatalogIsWellFormed(t *testing.T) {
	for _, info := range Catalog {
		assert.True(t, WellFormed(info.ID), "catalog entry %q", info.ID)
		assert.Equal(t, info.Topic, Topic(info.ID), "catalog entry %q", info.ID)
	}
	assert.NotEmpty(t, TopicAttributes("user"))
	assert.Len(t, CatalogIDs(), len(Catalog))
}
