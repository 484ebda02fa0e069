package support

import (
	"context"
	"strconv"
	"time"

	"github.com/m3rciful/supportbot/internal/repository"
)

// Sender identifies who produced an event.
type Sender struct {
	ID       int64
	Username string
	FullName string
}

// Handle renders "@username", falling back to "User <id>".
func (s Sender) Handle() string {
	if s.Username != "" {
		return "@" + s.Username
	}
	return "User " + strconv.FormatInt(s.ID, 10)
}

// CommandName is a slash command without the leading slash.
type CommandName string

const (
	CommandStart CommandName = "start"
	CommandHelp  CommandName = "help"
	CommandAdmin CommandName = "admin"
	CommandStats CommandName = "stats"
)

// Event is one inbound update decoded by the transport.
type Event interface {
	Origin() Sender
}

// Command is a slash command.
type Command struct {
	From   Sender
	ChatID int64
	Name   CommandName
}

// TextMessage is a plain text message.
type TextMessage struct {
	From   Sender
	ChatID int64
	Text   string
}

// CallbackPress is an inline button press. MessageID is the message carrying the button.
type CallbackPress struct {
	From      Sender
	ChatID    int64
	MessageID int
	Action    Action
}

func (e Command) Origin() Sender       { return e.From }
func (e TextMessage) Origin() Sender   { return e.From }
func (e CallbackPress) Origin() Sender { return e.From }

// Button is an inline button carrying either callback data or a URL.
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard is a list of button rows.
type Keyboard [][]Button

// Messenger delivers outbound messages. Text is Markdown.
type Messenger interface {
	// Send returns the id of the sent message.
	Send(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	// Notify sends in the background; failures are only logged.
	Notify(ctx context.Context, chatID int64, text string, kb Keyboard)
}

// Repository is the durable storage used by the router.
type Repository interface {
	TouchUser(ctx context.Context, userID int64, username, fullName string, at time.Time) error
	OpenSession(ctx context.Context, userID int64, at time.Time) (int64, error)
	CloseSession(ctx context.Context, sessionID int64, reason repository.EndReason, messageCount int, at time.Time) error
	CloseActiveSessions(ctx context.Context, reason repository.EndReason, at time.Time) (int64, error)
	ListUserIDs(ctx context.Context, activeOnly bool) ([]int64, error)
	SetUserActive(ctx context.Context, userID int64, active bool) error
	IsBlocked(ctx context.Context, userID int64) (bool, error)
	Stats(ctx context.Context, now time.Time) (repository.Stats, error)
	RecentUsers(ctx context.Context, limit int) ([]repository.User, error)
	RecentSessions(ctx context.Context, limit int) ([]repository.SessionSummary, error)
}
