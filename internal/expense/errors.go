package expense

import "errors"

// Validation errors returned by the normalizer and dialog validators. They
// trigger a re-prompt inside the dialog, never a termination.
var (
	// ErrInvalidAmount indicates the text does not match the amount grammar
	// or parses to a negative value.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrNoMention indicates a step required at least one mention and the
	// message carried none.
	ErrNoMention = errors.New("no mention found")
	// ErrWrongChatType indicates a group-only feature was invoked elsewhere.
	ErrWrongChatType = errors.New("wrong chat type")
)
