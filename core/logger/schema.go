package logger

import (
	"log/slog"
	"strings"
)

var statusValues = map[string]bool{
	"ok": true, "fail": true, "skip": true, "retry": true, "rate_limited": true, "cancelled": true,
}

var outcomeValues = map[string]bool{
	"ok": true, "fail": true, "cancelled": true, "rate_limited": true,
}

// defaultKeyOrder puts correlation keys first, then support-session fields,
// then transport details and errors. Unlisted keys follow alphabetically.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano", "update_id", "user_id", "chat_id", "chat_type",
	"handler", "action", "cb_key", "outcome", "duration_ms", "messages", "kb",
	"state", "mode", "session_id", "target_user_id", "reason", "message_count",
	"scope", "targets", "sent", "failed", "deleted", "closed", "swept", "count", "payload",
	"username", "listen", "public_url", "url", "method", "path", "http_code",
	"db", "driver", "host", "port",
	"err", "err_code", "cause", "retryable", "attempts", "backoff_ms", "rate_limited",
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseKeyOrder reads a comma separated key list; empty or "default" keeps
// the built-in order.
func parseKeyOrder(list string) []string {
	list = strings.TrimSpace(list)
	if list == "" || list == "default" {
		return defaultKeyOrder
	}
	var order []string
	for _, k := range strings.Split(list, ",") {
		if k = strings.TrimSpace(k); k != "" {
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		return defaultKeyOrder
	}
	return order
}
