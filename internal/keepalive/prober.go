// Package keepalive pings the bot's own public URL so free hosting tiers
// do not idle it to sleep.
package keepalive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/m3rciful/supportbot/core/logger"
)

// Options configures a Prober.
type Options struct {
	URL      string
	Interval time.Duration
	Delay    time.Duration
	Client   *http.Client
}

// Prober issues periodic GET requests to a fixed URL.
type Prober struct {
	url      string
	interval time.Duration
	delay    time.Duration
	client   *http.Client
}

func New(opts Options) (*Prober, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("keepalive: empty url")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("keepalive: interval must be > 0")
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Prober{url: opts.URL, interval: opts.Interval, delay: opts.Delay, client: client}, nil
}

// Run probes after the initial delay and then on every interval until ctx
// is done. Probe failures are logged and never stop the loop.
func (p *Prober) Run(ctx context.Context) {
	logger.HTTP.Info("keep-alive scheduled",
		slog.String("event", "keepalive.start"),
		slog.String("url", p.url),
		slog.Duration("delay", p.delay),
		slog.Duration("interval", p.interval),
	)

	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		status, err := p.Probe(ctx)
		p.log(ctx, status, err)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Probe performs a single GET and returns the status code.
func (p *Prober) Probe(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, fmt.Errorf("keepalive: status %s", resp.Status)
	}
	return resp.StatusCode, nil
}

func (p *Prober) log(ctx context.Context, status int, err error) {
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		logger.LogEvent(ctx, logger.HTTP, slog.LevelWarn, "keepalive.fail",
			slog.String("url", p.url),
			slog.Int("status", status),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return
	}
	logger.LogEvent(ctx, logger.HTTP, slog.LevelInfo, "keepalive.ok",
		slog.String("url", p.url),
		slog.Int("status", status),
	)
}
