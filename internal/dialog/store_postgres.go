package dialog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/opensplit/splitbot/internal/expense"
)

type postgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore returns a Store backed by the dialog_sessions table, so a
// half-collected expense survives a bot restart.
func NewPostgresStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

type sessionRow struct {
	ChatID    int64  `db:"chat_id"`
	State     string `db:"state"`
	Name      string `db:"name"`
	Payer     []byte `db:"payer"`
	Amount    string `db:"amount"`
	Receivers []byte `db:"receivers"`
}

func (p *postgresStore) Get(ctx context.Context, chatID int64) (*Session, error) {
	var row sessionRow
	err := p.db.GetContext(ctx, &row,
		`SELECT chat_id, state, name, payer, amount, receivers
		 FROM dialog_sessions WHERE chat_id = $1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dialog store get: %w", err)
	}
	return row.toSession()
}

func (p *postgresStore) Save(ctx context.Context, chatID int64, sess *Session) error {
	row, err := toRow(chatID, sess)
	if err != nil {
		return err
	}
	_, err = p.db.NamedExecContext(ctx,
		`INSERT INTO dialog_sessions (chat_id, state, name, payer, amount, receivers, updated_at)
		 VALUES (:chat_id, :state, :name, :payer, :amount, :receivers, now())
		 ON CONFLICT (chat_id) DO UPDATE SET
		   state = EXCLUDED.state,
		   name = EXCLUDED.name,
		   payer = EXCLUDED.payer,
		   amount = EXCLUDED.amount,
		   receivers = EXCLUDED.receivers,
		   updated_at = now()`, row)
	if err != nil {
		return fmt.Errorf("dialog store save: %w", err)
	}
	return nil
}

func (p *postgresStore) Clear(ctx context.Context, chatID int64) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM dialog_sessions WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("dialog store clear: %w", err)
	}
	return nil
}

func toRow(chatID int64, sess *Session) (sessionRow, error) {
	payer, err := json.Marshal(sess.Payer)
	if err != nil {
		return sessionRow{}, fmt.Errorf("dialog store encode payer: %w", err)
	}
	receivers, err := json.Marshal(sess.Receivers)
	if err != nil {
		return sessionRow{}, fmt.Errorf("dialog store encode receivers: %w", err)
	}
	return sessionRow{
		ChatID:    chatID,
		State:     string(sess.State),
		Name:      sess.Name,
		Payer:     payer,
		Amount:    sess.Amount.String(),
		Receivers: receivers,
	}, nil
}

func (r sessionRow) toSession() (*Session, error) {
	sess := &Session{
		State: State(r.State),
		Name:  r.Name,
	}
	if len(r.Payer) > 0 {
		if err := json.Unmarshal(r.Payer, &sess.Payer); err != nil {
			return nil, fmt.Errorf("dialog store decode payer: %w", err)
		}
	}
	if len(r.Receivers) > 0 {
		var refs []expense.UserRef
		if err := json.Unmarshal(r.Receivers, &refs); err != nil {
			return nil, fmt.Errorf("dialog store decode receivers: %w", err)
		}
		sess.Receivers = refs
	}
	if r.Amount != "" {
		amount, err := decimal.NewFromString(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("dialog store decode amount: %w", err)
		}
		sess.Amount = amount
	}
	return sess, nil
}
