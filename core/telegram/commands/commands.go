package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly restricts execution to the operator; others are rejected.
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}
