package bot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestLoadHelp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "help.json")
	doc := `{
		"message": "I split expenses.",
		"commands": {
			"balance": "Show the current balance",
			"add_expense": "Add a shared expense"
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	got, err := LoadHelp(path)
	require.NoError(t, err)
	want := "I split expenses.\n\n" +
		"/add_expense: Add a shared expense\n" +
		"/balance: Show the current balance\n"
	require.Equal(t, want, got)
}

func TestLoadHelpMissingFile(t *testing.T) {
	_, err := LoadHelp(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestBotJoined(t *testing.T) {
	me := int64(101)

	require.True(t, botJoined(&tele.Message{UserJoined: &tele.User{ID: me}}, me))
	require.True(t, botJoined(&tele.Message{UsersJoined: []tele.User{{ID: 5}, {ID: me}}}, me))
	require.False(t, botJoined(&tele.Message{UsersJoined: []tele.User{{ID: 5}}}, me))
	require.False(t, botJoined(&tele.Message{}, me))
}
