package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err   error
		kind  string
		retry bool
	}{
		{context.DeadlineExceeded, KindTimeout, true},
		{&net.OpError{Op: "dial", Err: errors.New("refused")}, KindDial, true},
		{&net.OpError{Op: "dial", Err: &net.DNSError{Err: "no such host"}}, KindDNS, true},
		{&tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}, KindHTTP4xx, false},
		{errors.New("telegram: internal error (502)"), KindHTTP5xx, true},
		{tele.FloodError{RetryAfter: 3}, KindRateLimited, true},
		{&url.Error{Op: "Post", URL: "u", Err: &net.OpError{Op: "dial", Err: errors.New("refused")}}, KindDial, true},
		{errors.New("whatever"), KindUnknown, false},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.kind {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.kind)
		}
		if got := ShouldRetry(tt.err); got != tt.retry {
			t.Errorf("ShouldRetry(%v) = %v, want %v", tt.err, got, tt.retry)
		}
	}
	if Classify(nil) != "" || ShouldRetry(nil) {
		t.Fatal("nil error must not classify")
	}
}

// sendErr wraps without formatting the cause; a FloodError built outside
// telebot has no description to print.
type sendErr struct{ cause error }

func (sendErr) Error() string   { return "send failed" }
func (e sendErr) Unwrap() error { return e.cause }

func TestRetryAfter(t *testing.T) {
	if got := RetryAfter(sendErr{cause: tele.FloodError{RetryAfter: 4}}); got != 4*time.Second {
		t.Fatalf("retry after = %s", got)
	}
	if RetryAfter(errors.New("x")) != 0 {
		t.Fatal("plain errors carry no wait")
	}
}

func TestRedact(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:ABC-def_ghi/sendMessage": timeout`)
	if got := Redact(err); got != `Post "https://api.telegram.org/bot<redacted>/sendMessage": timeout` {
		t.Fatalf("token leaked: %s", got)
	}
}
