package expense

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

// amountRe mirrors the grammar accepted by the original bot: an optional
// integer part, an optional fractional part with '.' or ',' separator, and an
// optional trailing euro glyph.
var amountRe = regexp.MustCompile(`^(?:[1-9]\d*|0)?(?:[.,]\d+)?€?$`)

// ParseAmount normalizes a user-typed amount into a decimal value. "12,50€"
// and "12.50" yield the same result. Negative and unparseable input fails
// with ErrInvalidAmount; the zero policy is enforced by the dialog, not here.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" || !amountRe.MatchString(s) {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.TrimSuffix(s, "€")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Mentions extracts every mentioned user from a message, in entity offset
// order, deduplicated by identity with the first occurrence winning. Entity
// offsets are UTF-16 code units per the Telegram API, so the text is
// re-encoded before slicing.
func Mentions(msg *tele.Message) []UserRef {
	if msg == nil || len(msg.Entities) == 0 {
		return nil
	}

	entities := append([]tele.MessageEntity(nil), msg.Entities...)
	sort.SliceStable(entities, func(i, j int) bool { return entities[i].Offset < entities[j].Offset })

	units := utf16.Encode([]rune(msg.Text))
	seen := make(map[string]struct{})
	var refs []UserRef
	for _, e := range entities {
		var ref UserRef
		switch e.Type {
		case tele.EntityMention:
			if e.Offset < 0 || e.Length <= 0 || e.Offset+e.Length > len(units) {
				continue
			}
			span := string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
			name := strings.TrimPrefix(span, "@")
			if name == "" {
				continue
			}
			ref = UserRef{Username: name}
		case tele.EntityTMention:
			if e.User == nil {
				continue
			}
			ref = UserRef{ID: e.User.ID, Username: e.User.Username}
		default:
			continue
		}
		if _, dup := seen[ref.Key()]; dup {
			continue
		}
		seen[ref.Key()] = struct{}{}
		refs = append(refs, ref)
	}
	return refs
}

// FirstMention returns the first mentioned user or ErrNoMention.
func FirstMention(msg *tele.Message) (UserRef, error) {
	refs := Mentions(msg)
	if len(refs) == 0 {
		return UserRef{}, ErrNoMention
	}
	return refs[0], nil
}
