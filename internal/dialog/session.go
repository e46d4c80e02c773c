// Package dialog drives the multi-turn expense collection flow: one active
// session per chat, per-state validation, and a single submission attempt
// when the record is complete.
package dialog

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/opensplit/splitbot/internal/expense"
)

// State identifies a step of the expense dialog.
type State string

const (
	// StateIdle indicates there is no active dialog in the chat.
	StateIdle State = "idle"
	// StateAwaitingName waits for the free-text expense name.
	StateAwaitingName State = "awaiting_name"
	// StateAwaitingPayer waits for exactly one mention of the payer.
	StateAwaitingPayer State = "awaiting_payer"
	// StateAwaitingAmount waits for text matching the amount grammar.
	StateAwaitingAmount State = "awaiting_amount"
	// StateAwaitingReceivers waits for one or more receiver mentions.
	StateAwaitingReceivers State = "awaiting_receivers"
)

// Session holds the fields collected so far for one chat's dialog. Fields are
// populated strictly in state order; a field is meaningful only once its
// collection state has been passed.
type Session struct {
	State     State
	Name      string
	Payer     expense.UserRef
	Amount    decimal.Decimal
	Receivers []expense.UserRef
}

// Record freezes the session into the immutable submission payload.
func (s *Session) Record() expense.Record {
	return expense.Record{
		Name:      s.Name,
		Payer:     s.Payer,
		Amount:    s.Amount,
		Receivers: append([]expense.UserRef(nil), s.Receivers...),
	}
}

// Store keeps at most one session per chat. Implementations must be safe for
// concurrent use; the machine additionally serializes per chat.
type Store interface {
	// Get returns the chat's session or nil when none exists.
	Get(ctx context.Context, chatID int64) (*Session, error)
	// Save inserts or replaces the chat's session.
	Save(ctx context.Context, chatID int64, sess *Session) error
	// Clear removes the chat's session if present.
	Clear(ctx context.Context, chatID int64) error
}
