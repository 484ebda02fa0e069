package router

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/supportbot/core/telegram"
)

// TextOptions controls fallback behaviour for text and non-text messages.
type TextOptions struct {
	UnknownText tele.HandlerFunc
	// Unsupported handles messages without text (media, stickers, ...).
	Unsupported tele.HandlerFunc
}

// TextRoutes builds handlers for plain text routing.
// Commands typed as text resolve through the registry first, then the
// registry's text fallback receives everything else. Panics are left to the
// bot's recover middleware.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		text := c.Text()

		if reg != nil && len(text) > 1 && text[0] == '/' {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				return newSummary(normalizeHandlerName(key)).run(c, func() error { return cmd.Handler(c) })
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return newSummary("text").run(c, func() error { return fb(c) })
			}
		}

		if opts.UnknownText != nil {
			return newSummary("unknown_text").run(c, func() error { return opts.UnknownText(c) })
		}

		newSummary("unknown_text").skipped().log(c, nil)
		return nil
	}

	unsupported := func(c tele.Context) error {
		s := newSummary("unsupported_message")
		if opts.Unsupported != nil {
			return s.run(c, func() error { return opts.Unsupported(c) })
		}
		s.skipped().log(c, nil)
		return nil
	}

	routes := []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  handler,
		},
	}
	for _, ep := range []string{tele.OnPhoto, tele.OnDocument, tele.OnSticker, tele.OnVoice, tele.OnVideo} {
		routes = append(routes, tg.Route{
			Endpoint: ep,
			Handler:  unsupported,
		})
	}
	return routes
}
