package bot

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/opensplit/splitbot/core/config"
	"github.com/opensplit/splitbot/core/telegram"
	"github.com/opensplit/splitbot/internal/backend"
	"github.com/opensplit/splitbot/internal/dialog"
)

// fakeTeleContext implements the handful of tele.Context methods the
// handlers touch. Anything else panics, which is fine in tests.
type fakeTeleContext struct {
	tele.Context

	chat   *tele.Chat
	sender *tele.User
	msg    *tele.Message
	kv     map[string]any
	sent   []string
}

func (f *fakeTeleContext) Chat() *tele.Chat       { return f.chat }
func (f *fakeTeleContext) Sender() *tele.User     { return f.sender }
func (f *fakeTeleContext) Message() *tele.Message { return f.msg }
func (f *fakeTeleContext) Update() tele.Update    { return tele.Update{} }

func (f *fakeTeleContext) Text() string {
	if f.msg == nil {
		return ""
	}
	return f.msg.Text
}

func (f *fakeTeleContext) Get(key string) any { return f.kv[key] }

func (f *fakeTeleContext) Set(key string, val any) {
	if f.kv == nil {
		f.kv = make(map[string]any)
	}
	f.kv[key] = val
}

func (f *fakeTeleContext) Send(what any, _ ...any) error {
	if s, ok := what.(string); ok {
		f.sent = append(f.sent, s)
	}
	return nil
}

func newDialogApp(t *testing.T) (*App, dialog.Store) {
	t.Helper()
	store := dialog.NewMemoryStore()
	machine := dialog.NewMachine(dialog.Options{Store: store})
	return &App{cfg: &config.Config{}, machine: machine}, store
}

func TestGuardedCommandMidDialogReprompts(t *testing.T) {
	app, store := newDialogApp(t)
	require.NoError(t, store.Save(context.Background(), 10, &dialog.Session{State: dialog.StateAwaitingName}))

	var ran bool
	h := app.guardDialog(func(tele.Context) error { ran = true; return nil })

	c := &fakeTeleContext{
		chat: &tele.Chat{ID: 10, Type: tele.ChatGroup},
		msg:  &tele.Message{Text: "/balance"},
	}
	require.NoError(t, h(c))
	require.False(t, ran, "command handler must not run while a dialog is active")
	require.Len(t, c.sent, 1)
	require.Contains(t, c.sent[0], "I can't understand you")

	sess, err := store.Get(context.Background(), 10)
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, dialog.StateAwaitingName, sess.State)
}

func TestGuardedCommandWithoutDialogRuns(t *testing.T) {
	app, _ := newDialogApp(t)

	var ran bool
	h := app.guardDialog(func(tele.Context) error { ran = true; return nil })

	c := &fakeTeleContext{
		chat: &tele.Chat{ID: 11, Type: tele.ChatGroup},
		msg:  &tele.Message{Text: "/balance"},
	}
	require.NoError(t, h(c))
	require.True(t, ran)
	require.Empty(t, c.sent)
}

func TestCaptureIdentityStoresBotID(t *testing.T) {
	app := &App{}
	rt := telegram.Runtime{Bot: &tele.Bot{Me: &tele.User{ID: 77}}}
	require.NoError(t, app.captureIdentity(context.Background(), rt))
	require.Equal(t, int64(77), app.botID)

	// A hook call without bot identity leaves the captured ID alone.
	require.NoError(t, app.captureIdentity(context.Background(), telegram.Runtime{}))
	require.Equal(t, int64(77), app.botID)
}

func TestUserJoinedRegistersGroup(t *testing.T) {
	var method, path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
	}))
	t.Cleanup(srv.Close)

	gw, err := backend.New(backend.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	app := &App{gateway: gw, botID: 7}
	c := &fakeTeleContext{
		chat: &tele.Chat{ID: 55, Type: tele.ChatGroup, Title: "Trip to Rome"},
		msg:  &tele.Message{UserJoined: &tele.User{ID: 7}},
	}
	require.NoError(t, app.handleUserJoined(c))
	require.Equal(t, http.MethodPut, method)
	require.Equal(t, "/groups/55", path)
	require.JSONEq(t, `{"name":"Trip to Rome"}`, body)
	require.Equal(t, []string{"Trip to Rome added to OpenSplit."}, c.sent)
}

func TestUserJoinedIgnoresOtherMembers(t *testing.T) {
	app := &App{botID: 7}
	c := &fakeTeleContext{
		chat: &tele.Chat{ID: 55, Type: tele.ChatGroup, Title: "Trip"},
		msg:  &tele.Message{UserJoined: &tele.User{ID: 8}},
	}
	require.NoError(t, app.handleUserJoined(c))
	require.Empty(t, c.sent)
}

func TestExchangesAliasResolves(t *testing.T) {
	app, _ := newDialogApp(t)
	reg := app.buildRegistry()

	key, cmd, ok := reg.LookupCommand("/exchanges")
	require.True(t, ok)
	require.Equal(t, "/calculate_exchanges", key)
	require.NotNil(t, cmd.Handler)
}
