package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/opensplit/splitbot/core/logger"
	"github.com/opensplit/splitbot/internal/expense"
)

const (
	promptName      = "Please, enter the name of the new expense."
	promptPayer     = "Okay, now enter the user who has paid the expense. Please, remember to mention them using @."
	promptAmount    = "Perfect! Now enter the amount that was paid."
	promptReceivers = "We are almost done! Finally, enter the users to whom %s has paid, separated by spaces. Remember to mention them using @."

	unexpectedNotice = "I can't understand you. Please check the format of your message and answer again."

	wrongChatText  = "Sorry, this function is only available for group chats."
	inProgressText = "An expense is already being added in this chat. Finish it or send /cancel first."
	canceledText   = "The expense addition has been canceled"
	nothingText    = "There is no expense being added right now."
	submitOKFmt    = "Saved! %s paid %s for %q, split between %s."
	submitFailText = "The expense could not be saved. Please try again later with /add_expense."
	storeFailText  = "Something went wrong on our side. Please try again later."
)

// Gateway is the single outbound dependency of the machine.
type Gateway interface {
	SubmitExpense(ctx context.Context, groupID int64, rec expense.Record) error
}

// Reply is what the transport layer should send back to the chat for one
// processed turn.
type Reply struct {
	Text string
	// ForceReply marks prompts that should request a reply from the user.
	ForceReply bool
}

// Options configure the Machine.
type Options struct {
	Store   Store
	Gateway Gateway
	// AllowZeroAmount accepts "0" as an expense amount when true.
	AllowZeroAmount bool
	// SubmitTimeout bounds the single backend submission call.
	SubmitTimeout time.Duration
}

// Machine owns the dialog sessions of every chat. All access for one chat is
// serialized through a per-chat lock; chats never block each other.
type Machine struct {
	store         Store
	gw            Gateway
	allowZero     bool
	submitTimeout time.Duration

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewMachine builds the dialog machine.
func NewMachine(opts Options) *Machine {
	timeout := opts.SubmitTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Machine{
		store:         opts.Store,
		gw:            opts.Gateway,
		allowZero:     opts.AllowZeroAmount,
		submitTimeout: timeout,
		locks:         make(map[int64]*sync.Mutex),
	}
}

func (m *Machine) lockFor(chatID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[chatID] = l
	}
	return l
}

// groupChat reports whether the chat kind supports expense dialogs.
func groupChat(kind tele.ChatType) bool {
	return kind == tele.ChatGroup || kind == tele.ChatSuperGroup
}

// Start begins a new dialog for the chat. Private chats are redirected and a
// second start while a session is active leaves the running session alone.
func (m *Machine) Start(ctx context.Context, chat *tele.Chat) (Reply, error) {
	if chat == nil || !groupChat(chat.Type) {
		logger.Debug(ctx, "dialog", "start.reject",
			slog.String("reason", "chat_type"),
		)
		return Reply{Text: wrongChatText}, nil
	}

	l := m.lockFor(chat.ID)
	l.Lock()
	defer l.Unlock()

	sess, err := m.store.Get(ctx, chat.ID)
	if err != nil {
		return m.storeFailure(ctx, "start", err)
	}
	if active(sess) {
		logger.Debug(ctx, "dialog", "start.reject",
			slog.String("reason", "in_progress"),
			slog.String("state", string(sess.State)),
		)
		return Reply{Text: inProgressText}, nil
	}

	if err := m.store.Save(ctx, chat.ID, &Session{State: StateAwaitingName}); err != nil {
		return m.storeFailure(ctx, "start", err)
	}
	logger.Info(ctx, "dialog", "start",
		slog.String("status", "ok"),
		slog.String("state", string(StateAwaitingName)),
	)
	return Reply{Text: promptName, ForceReply: true}, nil
}

// Cancel clears the chat's session from any non-idle state.
func (m *Machine) Cancel(ctx context.Context, chatID int64) (Reply, error) {
	l := m.lockFor(chatID)
	l.Lock()
	defer l.Unlock()

	sess, err := m.store.Get(ctx, chatID)
	if err != nil {
		return m.storeFailure(ctx, "cancel", err)
	}
	if !active(sess) {
		return Reply{Text: nothingText}, nil
	}
	if err := m.store.Clear(ctx, chatID); err != nil {
		return m.storeFailure(ctx, "cancel", err)
	}
	logger.Info(ctx, "dialog", "cancel",
		slog.String("status", "ok"),
		slog.String("state", string(sess.State)),
	)
	return Reply{Text: canceledText}, nil
}

// InProgress reports whether the chat has an active dialog.
func (m *Machine) InProgress(ctx context.Context, chatID int64) bool {
	sess, err := m.store.Get(ctx, chatID)
	if err != nil {
		logger.Warn(ctx, "dialog", "store.get.fail", slog.String("err", err.Error()))
		return false
	}
	return active(sess)
}

// HandleMessage validates one turn against the current state. The boolean is
// false when the chat has no active dialog and the message belongs to the
// regular routing chain instead.
func (m *Machine) HandleMessage(ctx context.Context, chatID int64, msg *tele.Message) (Reply, bool, error) {
	l := m.lockFor(chatID)
	l.Lock()
	defer l.Unlock()

	sess, err := m.store.Get(ctx, chatID)
	if err != nil {
		reply, err := m.storeFailure(ctx, "turn", err)
		return reply, true, err
	}
	if !active(sess) {
		return Reply{}, false, nil
	}

	validate := validators[sess.State]
	if validate == nil {
		// Unknown persisted state; recover by dropping the session.
		_ = m.store.Clear(ctx, chatID)
		logger.Warn(ctx, "dialog", "state.unknown", slog.String("state", string(sess.State)))
		return Reply{Text: storeFailText}, true, nil
	}

	next, verr := validate(msg, sess, m.allowZero)
	if verr != nil {
		logger.Debug(ctx, "dialog", "turn.reject",
			slog.String("state", string(sess.State)),
			slog.String("err", verr.Error()),
		)
		return m.reprompt(sess), true, nil
	}

	if next == StateIdle {
		// Receivers collected; the record is complete.
		reply, err := m.submit(ctx, chatID, sess)
		return reply, true, err
	}

	sess.State = next
	if err := m.store.Save(ctx, chatID, sess); err != nil {
		reply, err := m.storeFailure(ctx, "turn", err)
		return reply, true, err
	}
	logger.Debug(ctx, "dialog", "turn",
		slog.String("status", "ok"),
		slog.String("state", string(next)),
	)
	return Reply{Text: m.promptFor(sess), ForceReply: true}, true, nil
}

// validator checks one turn's input against a state, fills the session field
// on success, and names the follow-up state. StateIdle means the dialog is
// complete and ready for submission.
type validator func(msg *tele.Message, sess *Session, allowZero bool) (State, error)

var validators = map[State]validator{
	StateAwaitingName:      collectName,
	StateAwaitingPayer:     collectPayer,
	StateAwaitingAmount:    collectAmount,
	StateAwaitingReceivers: collectReceivers,
}

// errNotFreeText rejects empty input and commands in free-text steps.
var errNotFreeText = errors.New("expected free text")

func collectName(msg *tele.Message, sess *Session, _ bool) (State, error) {
	text := strings.TrimSpace(msg.Text)
	if text == "" || strings.HasPrefix(text, "/") {
		return "", errNotFreeText
	}
	sess.Name = text
	return StateAwaitingPayer, nil
}

func collectPayer(msg *tele.Message, sess *Session, _ bool) (State, error) {
	ref, err := expense.FirstMention(msg)
	if err != nil {
		return "", err
	}
	sess.Payer = ref
	return StateAwaitingAmount, nil
}

func collectAmount(msg *tele.Message, sess *Session, allowZero bool) (State, error) {
	amount, err := expense.ParseAmount(msg.Text)
	if err != nil {
		return "", err
	}
	if amount.IsZero() && !allowZero {
		return "", expense.ErrInvalidAmount
	}
	sess.Amount = amount
	return StateAwaitingReceivers, nil
}

func collectReceivers(msg *tele.Message, sess *Session, _ bool) (State, error) {
	refs := expense.Mentions(msg)
	if len(refs) == 0 {
		return "", expense.ErrNoMention
	}
	sess.Receivers = refs
	return StateIdle, nil
}

// submit clears the session first so the record is sent at most once, then
// performs the single submission attempt.
func (m *Machine) submit(ctx context.Context, chatID int64, sess *Session) (Reply, error) {
	rec := sess.Record()
	if err := m.store.Clear(ctx, chatID); err != nil {
		return m.storeFailure(ctx, "submit", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.submitTimeout)
	defer cancel()

	start := time.Now()
	if err := m.gw.SubmitExpense(callCtx, chatID, rec); err != nil {
		logger.Error(ctx, "dialog", "submit.fail",
			slog.String("name", rec.Name),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		return Reply{Text: submitFailText}, err
	}

	logger.Info(ctx, "dialog", "submit",
		slog.String("status", "ok"),
		slog.String("name", rec.Name),
		slog.String("amount", rec.Amount.String()),
		slog.Int("receivers", len(rec.Receivers)),
		slog.Duration("duration", logger.Took(start)),
	)
	return Reply{Text: confirmation(rec)}, nil
}

func confirmation(rec expense.Record) string {
	names := make([]string, 0, len(rec.Receivers))
	for _, r := range rec.Receivers {
		names = append(names, r.Display())
	}
	return fmt.Sprintf(submitOKFmt,
		rec.Payer.Display(),
		rec.Amount.StringFixed(2)+"€",
		rec.Name,
		strings.Join(names, ", "),
	)
}

// reprompt repeats the original instruction of the current state without
// touching collected fields.
func (m *Machine) reprompt(sess *Session) Reply {
	return Reply{
		Text:       unexpectedNotice + "\n\n" + m.promptFor(sess),
		ForceReply: true,
	}
}

func (m *Machine) promptFor(sess *Session) string {
	switch sess.State {
	case StateAwaitingName:
		return promptName
	case StateAwaitingPayer:
		return promptPayer
	case StateAwaitingAmount:
		return promptAmount
	case StateAwaitingReceivers:
		return fmt.Sprintf(promptReceivers, sess.Payer.Display())
	}
	return promptName
}

func (m *Machine) storeFailure(ctx context.Context, op string, err error) (Reply, error) {
	logger.Error(ctx, "dialog", "store.fail",
		slog.String("operation", op),
		slog.String("err", err.Error()),
	)
	return Reply{Text: storeFailText}, err
}

func active(sess *Session) bool {
	return sess != nil && sess.State != StateIdle && sess.State != ""
}
