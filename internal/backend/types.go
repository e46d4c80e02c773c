package backend

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BalanceEntry is one member (or group) with its signed balance.
type BalanceEntry struct {
	Name   string
	Amount decimal.Decimal
}

// BalanceView is a decoded balance response. Entries keep the order of the
// keys in the backend payload; the formatter relies on it.
type BalanceView []BalanceEntry

// AllZero reports whether every entry balances out.
func (v BalanceView) AllZero() bool {
	for _, e := range v {
		if !e.Amount.IsZero() {
			return false
		}
	}
	return true
}

// Exchange is one settlement suggestion computed by the backend.
type Exchange struct {
	Payer    string          `json:"payer"`
	Receiver string          `json:"receiver"`
	Amount   decimal.Decimal `json:"amount"`
}

// ErrorKind distinguishes unreachable-backend failures from non-2xx replies.
type ErrorKind string

const (
	// KindTransport covers connect failures, timeouts, and malformed bodies.
	KindTransport ErrorKind = "transport"
	// KindStatus covers responses with a non-success HTTP status.
	KindStatus ErrorKind = "status"
)

// Error is the only error type the gateway returns. Detail is meant for logs,
// not for the chat.
type Error struct {
	Kind   ErrorKind
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("backend: status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend: %s: %s", e.Kind, e.Detail)
}

// Code reports a stable error code for log correlation.
func (e *Error) Code() string {
	if e.Kind == KindStatus {
		return "GATEWAY_STATUS"
	}
	return "GATEWAY_TRANSPORT"
}
