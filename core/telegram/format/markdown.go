// Package format holds text helpers for Telegram parse modes.
package format

import "regexp"

var mdV1Re = regexp.MustCompile("[_*`\\[]")

// Escape escapes text for legacy Markdown, the parse mode used by the bot.
func Escape(text string) string {
	return mdV1Re.ReplaceAllString(text, `\$0`)
}
