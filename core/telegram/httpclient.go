package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/supportbot/core/logger"
	"github.com/m3rciful/supportbot/core/telegram/netutil"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultClientTimeout     = 30 * time.Second
	pollTimeoutMargin        = 10 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryBackoff      = 2 * time.Second
)

// HTTPClientOptions configures BuildHTTPClient.
type HTTPClientOptions struct {
	// Retries is the number of extra attempts made on transient network
	// errors. Zero makes every Bot API call attempt-once.
	Retries int
	// PollTimeout is the long polling timeout; the client timeout is kept above it.
	PollTimeout time.Duration
}

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
func BuildHTTPClient(opts HTTPClientOptions) *http.Client {
	timeout := defaultClientTimeout
	if opts.PollTimeout+pollTimeoutMargin > timeout {
		timeout = opts.PollTimeout + pollTimeoutMargin
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if opts.Retries <= 0 {
		return &http.Client{
			Timeout:   timeout,
			Transport: transport,
		}
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &retryTransport{
			base:       transport,
			maxRetries: opts.Retries,
			backoff:    defaultRetryBackoff,
		},
	}
}

// retryTransport repeats a round trip on transient network errors. Requests
// whose body cannot be rewound are attempted once.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.maxRetries && netutil.ShouldRetry(err); attempt++ {
		retry, rewindErr := rewind(req)
		if rewindErr != nil {
			return nil, err
		}
		if waitErr := sleepCtx(req.Context(), t.backoff*time.Duration(attempt)); waitErr != nil {
			return nil, waitErr
		}
		logger.LogEvent(req.Context(), logger.TWire, slog.LevelDebug, "http.retry",
			slog.Int("attempt", attempt+1),
			slog.String("err_kind", netutil.Classify(err)),
		)
		resp, err = base.RoundTrip(retry)
	}
	return resp, err
}

var errNoRewind = errors.New("request body cannot be replayed")

func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errNoRewind
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
