package transport

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/supportbot/core/logger"
	tg "github.com/m3rciful/supportbot/core/telegram"
	"github.com/m3rciful/supportbot/core/telegram/callbacks"
	"github.com/m3rciful/supportbot/core/telegram/commands"
	"github.com/m3rciful/supportbot/core/telegram/helpers"
	"github.com/m3rciful/supportbot/core/telegram/router"
	"github.com/m3rciful/supportbot/internal/support"
)

const (
	textUnsupportedAction = "Unsupported action"
	textTextOnly          = "⚠️ Only text messages are supported. Please describe your issue in words."
)

// EventHandler consumes decoded events; *support.Router implements it.
type EventHandler interface {
	Handle(ctx context.Context, ev support.Event) error
}

// Handlers decode telebot updates into support events.
type Handlers struct {
	events EventHandler
}

func NewHandlers(events EventHandler) *Handlers {
	return &Handlers{events: events}
}

func senderOf(u *tele.User) support.Sender {
	if u == nil {
		return support.Sender{}
	}
	return support.Sender{
		ID:       u.ID,
		Username: u.Username,
		FullName: strings.TrimSpace(u.FirstName + " " + u.LastName),
	}
}

func chatIDOf(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

// Command returns a handler emitting the named command.
func (h *Handlers) Command(name support.CommandName) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Sender() == nil {
			return nil
		}
		return h.events.Handle(helpers.BuildContext(c), support.Command{
			From:   senderOf(c.Sender()),
			ChatID: chatIDOf(c),
			Name:   name,
		})
	}
}

// Text emits a text message event.
func (h *Handlers) Text(c tele.Context) error {
	if c.Sender() == nil || c.Message() == nil {
		return nil
	}
	return h.events.Handle(helpers.BuildContext(c), support.TextMessage{
		From:   senderOf(c.Sender()),
		ChatID: chatIDOf(c),
		Text:   c.Text(),
	})
}

// Callback answers the button press and emits the decoded action.
func (h *Handlers) Callback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil || c.Sender() == nil {
		return nil
	}
	ctx := helpers.BuildContext(c)
	key, _ := callbacks.ParseCallbackData(cb)
	action, err := support.ParseAction(key)
	if err != nil {
		return h.rejectCallback(ctx, c, err)
	}
	if err := c.Respond(); err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "callback.answer_failed",
			slog.String("err", err.Error()),
		)
	}
	ev := support.CallbackPress{
		From:   senderOf(c.Sender()),
		ChatID: chatIDOf(c),
		Action: action,
	}
	if cb.Message != nil {
		ev.MessageID = cb.Message.ID
	}
	return h.events.Handle(ctx, ev)
}

// CallbackNotFound answers presses whose payload is outside the action set.
func (h *Handlers) CallbackNotFound(c tele.Context) error {
	return h.rejectCallback(helpers.BuildContext(c), c, support.ErrUnknownAction)
}

func (h *Handlers) rejectCallback(ctx context.Context, c tele.Context, err error) error {
	logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "callback.rejected",
		slog.String("cb_key", callbacks.CallbackKey(c)),
		slog.String("err", err.Error()),
	)
	return c.Respond(&tele.CallbackResponse{Text: textUnsupportedAction})
}

// Unsupported replies to media messages with text-only guidance.
func (h *Handlers) Unsupported(c tele.Context) error {
	return c.Send(textTextOnly)
}

// KnownAction reports whether key decodes into a support action.
func KnownAction(key string) bool {
	_, err := support.ParseAction(key)
	return !errors.Is(err, support.ErrUnknownAction)
}

// Register publishes the commands and fallbacks on reg.
func Register(reg *tg.Registry, h *Handlers) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.Command(support.CommandStart),
		Description: "Start the bot and show main menu",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     h.Command(support.CommandHelp),
		Description: "Show the main menu",
		Hidden:      true,
	})
	reg.RegisterCommand("/admin", commands.Command{
		Handler:     h.Command(support.CommandAdmin),
		Description: "Admin panel (admin only)",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     h.Command(support.CommandStats),
		Description: "Show bot statistics (admin only)",
		AdminOnly:   true,
	})
	reg.SetCallbackHandler(h.Callback)
	reg.SetCallbackNotFound(h.CallbackNotFound)
	reg.SetTextFallback(h.Text)
}

// Routes binds commands, callbacks and messages. Operator-only commands
// from anyone else still reach the router, which answers with a refusal.
func Routes(reg *tg.Registry, h *Handlers, adminID int64) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: adminID,
		OnAdminReject: func(c tele.Context) error {
			key, _, ok := reg.LookupCommand(c.Text())
			if !ok {
				return nil
			}
			return h.Command(support.CommandName(strings.TrimPrefix(key, "/")))(c)
		},
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		Known:    KnownAction,
		NotFound: h.CallbackNotFound,
	}))
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{
		Unsupported: h.Unsupported,
	})...)
	return routes
}
