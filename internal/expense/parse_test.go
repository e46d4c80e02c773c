package expense

import (
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestParseAmountAccepted(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"12.50", "12.5"},
		{"12,50", "12.5"},
		{"12,50€", "12.5"},
		{"12.50€", "12.5"},
		{"0", "0"},
		{"0.5", "0.5"},
		{",5", "0.5"},
		{".5", "0.5"},
		{"100", "100"},
		{"  7,25  ", "7.25"},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		require.Equal(t, tc.want, got.String(), "input %q", tc.in)
	}
}

func TestParseAmountEquivalence(t *testing.T) {
	a, err := ParseAmount("12,50€")
	require.NoError(t, err)
	b, err := ParseAmount("12.50")
	require.NoError(t, err)
	require.True(t, a.Equal(b))
}

func TestParseAmountRejected(t *testing.T) {
	for _, in := range []string{
		"", "   ", "abc", "-5", "1.2.3", "01", "€", "12€50", "1,", "5 euros",
	} {
		_, err := ParseAmount(in)
		require.ErrorIs(t, err, ErrInvalidAmount, "input %q", in)
	}
}

func mentionMsg(text string, entities ...tele.MessageEntity) *tele.Message {
	return &tele.Message{Text: text, Entities: entities}
}

func TestMentionsOrderAndDedup(t *testing.T) {
	// "@ana @bob @ana" -> ana, bob (first occurrence wins)
	msg := mentionMsg("@ana @bob @ana",
		tele.MessageEntity{Type: tele.EntityMention, Offset: 0, Length: 4},
		tele.MessageEntity{Type: tele.EntityMention, Offset: 5, Length: 4},
		tele.MessageEntity{Type: tele.EntityMention, Offset: 10, Length: 4},
	)
	refs := Mentions(msg)
	require.Equal(t, []UserRef{{Username: "ana"}, {Username: "bob"}}, refs)
}

func TestMentionsUTF16Offsets(t *testing.T) {
	// The emoji occupies two UTF-16 code units, shifting the entity offset
	// past the rune count of the prefix.
	text := "\U0001F600 @ana"
	msg := mentionMsg(text,
		tele.MessageEntity{Type: tele.EntityMention, Offset: 3, Length: 4},
	)
	refs := Mentions(msg)
	require.Equal(t, []UserRef{{Username: "ana"}}, refs)
}

func TestMentionsTextMention(t *testing.T) {
	msg := mentionMsg("Carla pays",
		tele.MessageEntity{Type: tele.EntityTMention, Offset: 0, Length: 5, User: &tele.User{ID: 42}},
	)
	refs := Mentions(msg)
	require.Equal(t, []UserRef{{ID: 42}}, refs)
	require.Equal(t, "user 42", refs[0].Display())
}

func TestFirstMention(t *testing.T) {
	_, err := FirstMention(mentionMsg("no mention here"))
	require.ErrorIs(t, err, ErrNoMention)

	ref, err := FirstMention(mentionMsg("@zoe first",
		tele.MessageEntity{Type: tele.EntityMention, Offset: 0, Length: 4},
	))
	require.NoError(t, err)
	require.Equal(t, UserRef{Username: "zoe"}, ref)
}
