package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/supportbot/core/logger"
	tghelpers "github.com/m3rciful/supportbot/core/telegram/helpers"
)

// PanicHook is invoked after a handler panic has been recovered and logged.
type PanicHook func(c tele.Context, err error)

// RecoverWithHook catches panics, logs them with the stack and hands the
// recovered value to hook, e.g. to notify the operator.
func RecoverWithHook(hook PanicHook) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				perr := fmt.Errorf("panic: %v", r)
				ctx := tghelpers.BuildContext(c)
				logger.LogEvent(ctx, logger.TG, slog.LevelError, "tg.panic",
					slog.String("err", perr.Error()),
					slog.String("stack", string(debug.Stack())),
				)
				if hook != nil {
					hook(c, perr)
				}
				err = nil
			}()
			return next(c)
		}
	}
}
