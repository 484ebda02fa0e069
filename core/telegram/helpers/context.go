package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/supportbot/core/logger"
)

// contextSlot is the tele.Context key holding the update's context.Context.
const contextSlot = "update_ctx"

// StoreContext replaces the context carried by c.
func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(contextSlot, ctx)
	}
}

// ContextFrom returns the context carried by c, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextSlot).(context.Context)
	return ctx, ok
}

// IDs returns the sender and chat ids of the update; zero when absent.
func IDs(c tele.Context) (userID, chatID int64) {
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	return userID, chatID
}

// BuildContext returns the context carried by c. When no middleware stored
// one yet, a correlated context is built from the update and stored.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	userID, chatID := IDs(c)
	ctx := logger.NewUpdateContext(c.Update().ID, userID, chatID)
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the carried context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler != "" {
		ctx = logger.WithHandler(ctx, handler)
		StoreContext(c, ctx)
	}
	return ctx
}
