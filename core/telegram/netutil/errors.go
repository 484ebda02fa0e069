// Package netutil classifies errors returned by Bot API calls.
package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Error kinds reported in logs.
const (
	KindTimeout     = "timeout"
	KindDNS         = "dns"
	KindDial        = "dial"
	KindTLS         = "tls"
	KindRateLimited = "rate_limited"
	KindHTTP4xx     = "http_4xx"
	KindHTTP5xx     = "http_5xx"
	KindUnknown     = "unknown"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Classify names the failure class of err, or "" for nil.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindDial
	}
	var alert tls.AlertError
	if errors.As(err, &alert) {
		return KindTLS
	}
	switch code := StatusCode(err); {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code >= 500:
		return KindHTTP5xx
	case code >= 400:
		return KindHTTP4xx
	}
	return KindUnknown
}

// ShouldRetry reports whether another attempt may succeed: timeouts, dial
// and lookup failures, Telegram 5xx and flood control.
func ShouldRetry(err error) bool {
	switch Classify(err) {
	case KindTimeout, KindDial, KindDNS, KindRateLimited, KindHTTP5xx:
		return true
	}
	return false
}

// RetryAfter returns the wait requested by Telegram flood control, or 0.
func RetryAfter(err error) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return 0
}

// StatusCode extracts the Bot API status code from err, or 0.
func StatusCode(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}
	// telebot reports unknown API failures as "telegram: <description> (<code>)".
	msg := err.Error()
	lp, rp := strings.LastIndexByte(msg, '('), strings.LastIndexByte(msg, ')')
	if lp < 0 || rp <= lp+1 {
		return 0
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(msg[lp+1 : rp]))
	if convErr != nil {
		return 0
	}
	return code
}

// Redact hides bot tokens embedded in request URLs of err's message.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
