// Package render turns backend payloads into chat messages. Output is
// deterministic: buckets are fixed, entries keep the order of the payload.
package render

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/opensplit/splitbot/internal/backend"
)

const (
	noGroupsMessage    = "You are not a member of any OpenSplit group yet."
	balancedMessage    = "The group is balanced. Nobody owes anything."
	noExchangesMessage = "No exchanges needed. The group is settled."
)

// money renders a signed two-decimal amount with the currency glyph.
func money(d decimal.Decimal) string {
	return d.StringFixed(2) + "€"
}

// UserBalance renders one line per group the user belongs to. Positive
// amounts carry an explicit sign so the direction is obvious at a glance.
func UserBalance(view backend.BalanceView) string {
	if len(view) == 0 {
		return noGroupsMessage
	}
	var b strings.Builder
	b.WriteString("Your balance per group:\n")
	for _, e := range view {
		b.WriteString("\n")
		b.WriteString(e.Name)
		b.WriteString(": ")
		if e.Amount.IsPositive() {
			b.WriteString("+")
		}
		b.WriteString(money(e.Amount))
	}
	return b.String()
}

// GroupBalance partitions members into owing, owed, and even buckets. Empty
// buckets are omitted; members keep payload order inside each bucket.
func GroupBalance(view backend.BalanceView) string {
	if view.AllZero() {
		return balancedMessage
	}

	var owes, owed, even []backend.BalanceEntry
	for _, e := range view {
		switch {
		case e.Amount.IsNegative():
			owes = append(owes, e)
		case e.Amount.IsPositive():
			owed = append(owed, e)
		default:
			even = append(even, e)
		}
	}

	var b strings.Builder
	writeBucket := func(label string, entries []backend.BalanceEntry) {
		if len(entries) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(label)
		for _, e := range entries {
			b.WriteString("\n")
			b.WriteString(e.Name)
			b.WriteString(": ")
			b.WriteString(money(e.Amount))
		}
	}
	writeBucket("These members owe money:", owes)
	writeBucket("These members are owed money:", owed)
	writeBucket("These members are even:", even)
	return b.String()
}

// Exchanges renders one settlement suggestion per line, payload order
// preserved.
func Exchanges(list []backend.Exchange) string {
	if len(list) == 0 {
		return noExchangesMessage
	}
	var b strings.Builder
	b.WriteString("Suggested exchanges to settle the group:\n")
	for _, ex := range list {
		b.WriteString("\n")
		b.WriteString(ex.Payer)
		b.WriteString(" owes ")
		b.WriteString(money(ex.Amount))
		b.WriteString(" to ")
		b.WriteString(ex.Receiver)
	}
	return b.String()
}
