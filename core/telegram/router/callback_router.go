package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/supportbot/core/telegram"
	"github.com/m3rciful/supportbot/core/telegram/callbacks"
)

// CallbackOptions customises routing and fallback behaviour for callbacks.
type CallbackOptions struct {
	// Known reports whether the callback key is part of the bot's closed action set.
	// Unknown keys go to the NotFound handler. A nil Known accepts every key.
	Known    func(key string) bool
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes every callback through the registry.
// Panics are left to the bot's recover middleware.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}

		key, _ := callbacks.ParseCallbackData(c.Callback())
		s := newSummary("callback." + normalizeHandlerName(actionName(key))).with(slog.String("cb_key", key))

		cbHandler := reg.CallbackHandler()
		if cbHandler == nil || (opts.Known != nil && !opts.Known(key)) {
			fallback := reg.CallbackNotFound()
			if fallback == nil {
				fallback = opts.NotFound
			}
			s = s.skipped().with(slog.String("reason", "not_found"))
			return s.run(c, func() error {
				if fallback != nil {
					return fallback(c)
				}
				return c.Respond()
			})
		}

		return s.run(c, func() error { return cbHandler(c) })
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  handler,
	}
}
