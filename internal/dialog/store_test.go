package dialog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/opensplit/splitbot/internal/expense"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sess, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, sess)

	saved := &Session{
		State: StateAwaitingReceivers,
		Name:  "dinner",
		Payer: expense.UserRef{Username: "ana"},
	}
	require.NoError(t, s.Save(ctx, 1, saved))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, saved, got)

	// The store holds a detached copy.
	saved.Name = "mutated"
	got, err = s.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "dinner", got.Name)

	require.NoError(t, s.Clear(ctx, 1))
	got, err = s.Get(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMemoryStoreIsolatesChats(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, 1, &Session{State: StateAwaitingName}))
	require.NoError(t, s.Save(ctx, 2, &Session{State: StateAwaitingAmount}))

	a, err := s.Get(ctx, 1)
	require.NoError(t, err)
	b, err := s.Get(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingName, a.State)
	require.Equal(t, StateAwaitingAmount, b.State)

	require.NoError(t, s.Clear(ctx, 1))
	b, err = s.Get(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, b)
}

func TestSessionRowRoundTrip(t *testing.T) {
	sess := &Session{
		State:  StateAwaitingReceivers,
		Name:   "weekend trip",
		Payer:  expense.UserRef{ID: 7, Username: "ana"},
		Amount: decimal.RequireFromString("104.20"),
		Receivers: []expense.UserRef{
			{Username: "bob"},
			{ID: 99},
		},
	}

	row, err := toRow(42, sess)
	require.NoError(t, err)
	require.Equal(t, int64(42), row.ChatID)
	require.Equal(t, "awaiting_receivers", row.State)
	require.Equal(t, "104.2", row.Amount)

	back, err := row.toSession()
	require.NoError(t, err)
	require.Equal(t, sess.State, back.State)
	require.Equal(t, sess.Name, back.Name)
	require.Equal(t, sess.Payer, back.Payer)
	require.True(t, sess.Amount.Equal(back.Amount))
	require.Equal(t, sess.Receivers, back.Receivers)
}

func TestSessionRowEmptyFields(t *testing.T) {
	row, err := toRow(1, &Session{State: StateAwaitingName})
	require.NoError(t, err)

	back, err := row.toSession()
	require.NoError(t, err)
	require.Equal(t, StateAwaitingName, back.State)
	require.True(t, back.Amount.IsZero())
	require.Empty(t, back.Receivers)
}
