package dialog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/opensplit/splitbot/internal/expense"
)

type fakeGateway struct {
	submissions []expense.Record
	err         error
}

func (f *fakeGateway) SubmitExpense(_ context.Context, _ int64, rec expense.Record) error {
	if f.err != nil {
		return f.err
	}
	f.submissions = append(f.submissions, rec)
	return nil
}

func newTestMachine(gw Gateway) *Machine {
	return NewMachine(Options{
		Store:   NewMemoryStore(),
		Gateway: gw,
	})
}

func groupChatFor(id int64) *tele.Chat {
	return &tele.Chat{ID: id, Type: tele.ChatGroup, Title: "flatmates"}
}

func textMsg(text string) *tele.Message {
	return &tele.Message{Text: text}
}

func mention(text string, offset, length int) *tele.Message {
	return &tele.Message{
		Text:     text,
		Entities: []tele.MessageEntity{{Type: tele.EntityMention, Offset: offset, Length: length}},
	}
}

func TestStartRejectsPrivateChat(t *testing.T) {
	m := newTestMachine(&fakeGateway{})
	reply, err := m.Start(context.Background(), &tele.Chat{ID: 1, Type: tele.ChatPrivate})
	require.NoError(t, err)
	require.Equal(t, wrongChatText, reply.Text)
	require.False(t, m.InProgress(context.Background(), 1))
}

func TestStartPromptsForName(t *testing.T) {
	m := newTestMachine(&fakeGateway{})
	reply, err := m.Start(context.Background(), groupChatFor(10))
	require.NoError(t, err)
	require.Equal(t, promptName, reply.Text)
	require.True(t, reply.ForceReply)
	require.True(t, m.InProgress(context.Background(), 10))
}

func TestStartWhileActiveRedirects(t *testing.T) {
	m := newTestMachine(&fakeGateway{})
	ctx := context.Background()
	_, err := m.Start(ctx, groupChatFor(10))
	require.NoError(t, err)

	reply, err := m.Start(ctx, groupChatFor(10))
	require.NoError(t, err)
	require.Equal(t, inProgressText, reply.Text)

	// The running session is untouched: the next turn still collects the name.
	reply, handled, err := m.HandleMessage(ctx, 10, textMsg("groceries"))
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, promptPayer, reply.Text)
}

func TestHappyPathSubmitsOnce(t *testing.T) {
	gw := &fakeGateway{}
	m := newTestMachine(gw)
	ctx := context.Background()
	chatID := int64(77)

	_, err := m.Start(ctx, groupChatFor(chatID))
	require.NoError(t, err)

	reply, handled, err := m.HandleMessage(ctx, chatID, textMsg("pizza night"))
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, promptPayer, reply.Text)

	reply, handled, err = m.HandleMessage(ctx, chatID, mention("@ana", 0, 4))
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, promptAmount, reply.Text)

	reply, handled, err = m.HandleMessage(ctx, chatID, textMsg("12,50€"))
	require.NoError(t, err)
	require.True(t, handled)
	require.Contains(t, reply.Text, "@ana")

	msg := &tele.Message{
		Text: "@bob @carol",
		Entities: []tele.MessageEntity{
			{Type: tele.EntityMention, Offset: 0, Length: 4},
			{Type: tele.EntityMention, Offset: 5, Length: 6},
		},
	}
	reply, handled, err = m.HandleMessage(ctx, chatID, msg)
	require.NoError(t, err)
	require.True(t, handled)
	require.Contains(t, reply.Text, "Saved!")

	require.Len(t, gw.submissions, 1)
	rec := gw.submissions[0]
	require.Equal(t, "pizza night", rec.Name)
	require.Equal(t, expense.UserRef{Username: "ana"}, rec.Payer)
	require.Equal(t, "12.5", rec.Amount.String())
	require.Equal(t, []expense.UserRef{{Username: "bob"}, {Username: "carol"}}, rec.Receivers)

	// The dialog is over; further text belongs to the regular routing chain.
	require.False(t, m.InProgress(ctx, chatID))
	_, handled, err = m.HandleMessage(ctx, chatID, textMsg("hello"))
	require.NoError(t, err)
	require.False(t, handled)
}

func TestUnexpectedInputReprompts(t *testing.T) {
	m := newTestMachine(&fakeGateway{})
	ctx := context.Background()
	chatID := int64(5)

	_, err := m.Start(ctx, groupChatFor(chatID))
	require.NoError(t, err)
	_, _, err = m.HandleMessage(ctx, chatID, textMsg("dinner"))
	require.NoError(t, err)

	// A payer turn without a mention keeps the state and repeats the prompt.
	reply, handled, err := m.HandleMessage(ctx, chatID, textMsg("just a name"))
	require.NoError(t, err)
	require.True(t, handled)
	require.Contains(t, reply.Text, unexpectedNotice)
	require.Contains(t, reply.Text, promptPayer)
	require.True(t, reply.ForceReply)

	reply, handled, err = m.HandleMessage(ctx, chatID, mention("@ana", 0, 4))
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, promptAmount, reply.Text)
}

func TestZeroAmountPolicy(t *testing.T) {
	ctx := context.Background()

	restrictive := NewMachine(Options{Store: NewMemoryStore(), Gateway: &fakeGateway{}})
	restrictive.allowZero = false
	_, err := restrictive.Start(ctx, groupChatFor(1))
	require.NoError(t, err)
	_, _, err = restrictive.HandleMessage(ctx, 1, textMsg("coffee"))
	require.NoError(t, err)
	_, _, err = restrictive.HandleMessage(ctx, 1, mention("@ana", 0, 4))
	require.NoError(t, err)
	reply, handled, err := restrictive.HandleMessage(ctx, 1, textMsg("0"))
	require.NoError(t, err)
	require.True(t, handled)
	require.Contains(t, reply.Text, unexpectedNotice)

	permissive := NewMachine(Options{Store: NewMemoryStore(), Gateway: &fakeGateway{}, AllowZeroAmount: true})
	_, err = permissive.Start(ctx, groupChatFor(2))
	require.NoError(t, err)
	_, _, err = permissive.HandleMessage(ctx, 2, textMsg("coffee"))
	require.NoError(t, err)
	_, _, err = permissive.HandleMessage(ctx, 2, mention("@ana", 0, 4))
	require.NoError(t, err)
	reply, _, err = permissive.HandleMessage(ctx, 2, textMsg("0"))
	require.NoError(t, err)
	require.Contains(t, reply.Text, "@ana")
}

func TestCancelClearsSession(t *testing.T) {
	m := newTestMachine(&fakeGateway{})
	ctx := context.Background()
	chatID := int64(9)

	reply, err := m.Cancel(ctx, chatID)
	require.NoError(t, err)
	require.Equal(t, nothingText, reply.Text)

	_, err = m.Start(ctx, groupChatFor(chatID))
	require.NoError(t, err)
	_, _, err = m.HandleMessage(ctx, chatID, textMsg("trip"))
	require.NoError(t, err)

	reply, err = m.Cancel(ctx, chatID)
	require.NoError(t, err)
	require.Equal(t, canceledText, reply.Text)
	require.False(t, m.InProgress(ctx, chatID))

	// No field leaks into the next dialog: the new session starts at the name.
	reply, err = m.Start(ctx, groupChatFor(chatID))
	require.NoError(t, err)
	require.Equal(t, promptName, reply.Text)
	reply, handled, err := m.HandleMessage(ctx, chatID, textMsg("new expense"))
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, promptPayer, reply.Text)
}

func TestSubmitFailureClearsSession(t *testing.T) {
	gw := &fakeGateway{err: errors.New("backend down")}
	m := newTestMachine(gw)
	ctx := context.Background()
	chatID := int64(3)

	_, err := m.Start(ctx, groupChatFor(chatID))
	require.NoError(t, err)
	_, _, err = m.HandleMessage(ctx, chatID, textMsg("taxi"))
	require.NoError(t, err)
	_, _, err = m.HandleMessage(ctx, chatID, mention("@ana", 0, 4))
	require.NoError(t, err)
	_, _, err = m.HandleMessage(ctx, chatID, textMsg("8"))
	require.NoError(t, err)

	reply, handled, err := m.HandleMessage(ctx, chatID, mention("@bob", 0, 4))
	require.Error(t, err)
	require.True(t, handled)
	require.Equal(t, submitFailText, reply.Text)

	// At most once: the record is gone even though the submission failed.
	require.False(t, m.InProgress(ctx, chatID))
	require.Empty(t, gw.submissions)
}

func TestCommandDuringNameStepReprompts(t *testing.T) {
	m := newTestMachine(&fakeGateway{})
	ctx := context.Background()

	_, err := m.Start(ctx, groupChatFor(4))
	require.NoError(t, err)

	reply, handled, err := m.HandleMessage(ctx, 4, textMsg("/balance"))
	require.NoError(t, err)
	require.True(t, handled)
	require.Contains(t, reply.Text, unexpectedNotice)
	require.Contains(t, reply.Text, promptName)
}
