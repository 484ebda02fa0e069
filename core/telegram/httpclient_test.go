package telegram

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestBuildHTTPClientAttemptOnceByDefault(t *testing.T) {
	c := BuildHTTPClient(HTTPClientOptions{})
	if _, ok := c.Transport.(*http.Transport); !ok {
		t.Fatalf("transport = %T, want *http.Transport without retries", c.Transport)
	}
	if c.Timeout != defaultClientTimeout {
		t.Fatalf("timeout = %s", c.Timeout)
	}
}

func TestBuildHTTPClientRetriesAndPollTimeout(t *testing.T) {
	c := BuildHTTPClient(HTTPClientOptions{Retries: 2, PollTimeout: 60 * time.Second})
	rt, ok := c.Transport.(*retryTransport)
	if !ok {
		t.Fatalf("transport = %T, want *retryTransport", c.Transport)
	}
	if rt.maxRetries != 2 {
		t.Fatalf("maxRetries = %d", rt.maxRetries)
	}
	if c.Timeout != 70*time.Second {
		t.Fatalf("timeout = %s, want poll timeout plus margin", c.Timeout)
	}
}

func TestRetryTransportReplaysBody(t *testing.T) {
	var bodies []string
	rt := &retryTransport{
		maxRetries: 2,
		backoff:    time.Millisecond,
		base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			b, _ := io.ReadAll(r.Body)
			bodies = append(bodies, string(b))
			if len(bodies) < 3 {
				return nil, &net.OpError{Op: "dial", Err: errors.New("refused")}
			}
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
		}),
	}
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid/sendMessage", strings.NewReader("text=hi"))
	resp, err := rt.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("resp=%v err=%v", resp, err)
	}
	if len(bodies) != 3 || bodies[2] != "text=hi" {
		t.Fatalf("bodies = %q", bodies)
	}
}

func TestRetryTransportStopsOnPermanentError(t *testing.T) {
	calls := 0
	rt := &retryTransport{
		maxRetries: 3,
		backoff:    time.Millisecond,
		base: roundTripFunc(func(*http.Request) (*http.Response, error) {
			calls++
			return nil, errors.New("malformed")
		}),
	}
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/getMe", nil)
	if _, err := rt.RoundTrip(req); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}
