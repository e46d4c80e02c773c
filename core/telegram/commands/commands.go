package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and aliases.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	Aliases     []string
}
