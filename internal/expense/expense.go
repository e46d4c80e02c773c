// Package expense defines the expense record collected by the dialog and the
// normalization of raw Telegram input into its typed fields.
package expense

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// UserRef identifies a chat member resolved from a mention. Plain @mentions
// only carry a username; text mentions of users without a username carry the
// Telegram ID instead.
type UserRef struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
}

// Key returns the identity used for deduplication and equality. Telegram IDs
// win over usernames because a username can be renamed mid-dialog.
func (u UserRef) Key() string {
	if u.ID != 0 {
		return "id:" + strconv.FormatInt(u.ID, 10)
	}
	return "u:" + strings.ToLower(u.Username)
}

// Display returns the user reference as shown in chat messages.
func (u UserRef) Display() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return "user " + strconv.FormatInt(u.ID, 10)
}

// Record is the finalized expense payload submitted to the backend exactly
// once per completed dialog.
type Record struct {
	Name      string
	Payer     UserRef
	Amount    decimal.Decimal
	Receivers []UserRef
}
