package render

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/opensplit/splitbot/internal/backend"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestUserBalanceEmpty(t *testing.T) {
	require.Equal(t, noGroupsMessage, UserBalance(nil))
}

func TestUserBalance(t *testing.T) {
	view := backend.BalanceView{
		{Name: "flatmates", Amount: dec("12.5")},
		{Name: "road trip", Amount: dec("-3")},
		{Name: "office", Amount: dec("0")},
	}
	got := UserBalance(view)
	want := "Your balance per group:\n" +
		"\nflatmates: +12.50€" +
		"\nroad trip: -3.00€" +
		"\noffice: 0.00€"
	require.Equal(t, want, got)
}

func TestGroupBalanceBalanced(t *testing.T) {
	require.Equal(t, balancedMessage, GroupBalance(nil))
	require.Equal(t, balancedMessage, GroupBalance(backend.BalanceView{
		{Name: "ana", Amount: dec("0")},
		{Name: "bob", Amount: dec("0.00")},
	}))
}

func TestGroupBalanceBuckets(t *testing.T) {
	view := backend.BalanceView{
		{Name: "zoe", Amount: dec("-3.5")},
		{Name: "ana", Amount: dec("7")},
		{Name: "bob", Amount: dec("-3.5")},
		{Name: "eve", Amount: dec("0")},
	}
	got := GroupBalance(view)
	want := "These members owe money:\n" +
		"zoe: -3.50€\n" +
		"bob: -3.50€\n\n" +
		"These members are owed money:\n" +
		"ana: 7.00€\n\n" +
		"These members are even:\n" +
		"eve: 0.00€"
	require.Equal(t, want, got)
}

func TestGroupBalanceOmitsEmptyBuckets(t *testing.T) {
	view := backend.BalanceView{
		{Name: "ana", Amount: dec("5")},
		{Name: "bob", Amount: dec("-5")},
	}
	got := GroupBalance(view)
	require.NotContains(t, got, "These members are even:")
	require.Contains(t, got, "These members owe money:\nbob: -5.00€")
	require.Contains(t, got, "These members are owed money:\nana: 5.00€")
}

func TestExchangesEmpty(t *testing.T) {
	require.Equal(t, noExchangesMessage, Exchanges(nil))
}

func TestExchanges(t *testing.T) {
	list := []backend.Exchange{
		{Payer: "bob", Receiver: "ana", Amount: dec("3.5")},
		{Payer: "zoe", Receiver: "ana", Amount: dec("1")},
	}
	got := Exchanges(list)
	want := "Suggested exchanges to settle the group:\n" +
		"\nbob owes 3.50€ to ana" +
		"\nzoe owes 1.00€ to ana"
	require.Equal(t, want, got)
}
