package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData splits callback data into a routing key and payload.
// Telebot's "\f<unique>|<payload>" encoding is unpacked; raw data without
// the "\f" marker is returned whole as the key.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	// "\f" is whitespace to TrimSpace, so the marker is checked first.
	encoded, ok := strings.CutPrefix(strings.TrimLeft(cb.Data, " \t\r\n"), "\f")
	if !ok {
		return strings.TrimSpace(cb.Data), ""
	}
	unique, payload, _ := strings.Cut(encoded, "|")
	return strings.TrimSpace(unique), payload
}

// CallbackKey returns the routing key of the current callback.
func CallbackKey(c tele.Context) string {
	k, _ := ParseCallbackData(c.Callback())
	return k
}
