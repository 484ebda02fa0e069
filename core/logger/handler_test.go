package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/supportbot/core/config"
)

func capture(t *testing.T, format logFormat, emit func(*slog.Logger)) string {
	t.Helper()
	buf := &bytes.Buffer{}
	w := newAsyncWriter([]io.Writer{buf}, 1024)
	emit(slog.New(newStructuredHandler(handlerConfig{writer: w, format: format})))
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestKVLineOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-1"), 42, 7, 9)
	line := capture(t, formatKV, func(l *slog.Logger) {
		LogEvent(ctx, l.With("component", "support"), slog.LevelInfo, "session.open",
			slog.String("status", "OK"),
			slog.Int64("session_id", 3),
		)
	})

	want := []string{"ts=", "level=INFO", "component=support", "event=session.open", "status=ok", "rid=rid-1", "update_id=42", "user_id=7", "chat_id=9", "session_id=3"}
	tokens := strings.Fields(line)
	if len(tokens) != len(want) {
		t.Fatalf("line = %s", line)
	}
	for i, prefix := range want {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, want prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestJSONLine(t *testing.T) {
	ctx := WithHandler(WithRID(context.Background(), "12:34:56"), "start")
	line := capture(t, formatJSON, func(l *slog.Logger) {
		LogEvent(ctx, l, slog.LevelError, "relay.user",
			slog.Group("relay",
				slog.Duration("duration", 1500*time.Microsecond),
				slog.Any("err", errors.New("blocked")),
			),
			slog.String("outcome", "exploded"),
			slog.String("empty", ""),
		)
	})

	var got map[string]any
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("invalid json %s: %v", line, err)
	}
	checks := map[string]any{
		"level":             "ERROR",
		"component":         "app",
		"event":             "relay.user",
		"rid":               CompactRID("12:34:56"),
		"rid_full":          "12:34:56",
		"handler":           "start",
		"relay.duration_ms": float64(2),
		"relay.err":         "blocked",
	}
	for k, v := range checks {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
	for _, k := range []string{"outcome", "empty"} {
		if _, ok := got[k]; ok {
			t.Errorf("%s must be dropped", k)
		}
	}
	if _, ok := got["ts_unix_nano"]; !ok {
		t.Error("ts_unix_nano missing")
	}
	if !strings.HasPrefix(line, `{"ts":`) {
		t.Errorf("ts must lead: %s", line)
	}
}

func TestKVQuotesAndEventFallback(t *testing.T) {
	line := capture(t, formatKV, func(l *slog.Logger) {
		l.Info("plain message", slog.String("payload", `say "hi"`))
	})
	if !strings.Contains(line, "event=\"plain message\"") {
		t.Fatalf("message not used as event: %s", line)
	}
	if !strings.Contains(line, `payload="say \"hi\""`) {
		t.Fatalf("payload not quoted: %s", line)
	}
	if strings.Contains(line, "rid_full") {
		t.Fatalf("rid_full is JSON only: %s", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	line := capture(t, formatKV, func(l *slog.Logger) {
		l.Debug("hidden")
	})
	if line != "" {
		t.Fatalf("debug line written at info level: %s", line)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriterIsolatesFailingSink(t *testing.T) {
	good := &bytes.Buffer{}
	w := newAsyncWriter([]io.Writer{failingWriter{}, good}, 1)
	for _, line := range []string{"one\n", "two\n"} {
		if err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err == nil {
		t.Fatal("close must report the failed sink")
	}
	if good.String() != "one\ntwo\n" {
		t.Fatalf("healthy sink got %q", good.String())
	}
	if err := w.Write([]byte("late\n")); !errors.Is(err, errWriterClosed) {
		t.Fatalf("write after close = %v", err)
	}
}

func TestWriterFlushIncludesQueuedLines(t *testing.T) {
	buf := &bytes.Buffer{}
	w := newAsyncWriter([]io.Writer{buf}, 4096)
	for i := 0; i < 50; i++ {
		_ = w.Write([]byte("x\n"))
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := strings.Count(buf.String(), "x"); n != 50 {
		t.Fatalf("lines = %d", n)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	allowed := 0
	for i := 0; i < 9; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("allowed = %d, want 3", allowed)
	}
	s.Set(0, 0)
	if !s.Allow() || !s.Allow() {
		t.Fatal("zero ratio must admit everything")
	}
}

func TestParseRatioSpec(t *testing.T) {
	tests := []struct {
		spec     string
		num, den int
	}{
		{"", 0, 0},
		{"1/50", 1, 50},
		{" 2 / 5 ", 2, 5},
		{"10", 1, 10},
		{"0", 0, 0},
		{"a/b", 0, 0},
	}
	for _, tt := range tests {
		if num, den := parseRatioSpec(tt.spec); num != tt.num || den != tt.den {
			t.Errorf("parseRatioSpec(%q) = %d/%d, want %d/%d", tt.spec, num, den, tt.num, tt.den)
		}
	}
}

func TestResolveSettings(t *testing.T) {
	s := resolve(&coreconfig.Config{Logging: coreconfig.LoggingConfig{
		Level:     "warning",
		Profile:   "Dev",
		KeysOrder: "event, ts",
		Dir:       "logs",
		BotFile:   "bot.log",
	}})
	if s.level != slog.LevelWarn || s.format != formatKV || s.profile != "dev" {
		t.Fatalf("settings = %+v", s)
	}
	if len(s.keyOrder) != 2 || s.keyOrder[0] != "event" {
		t.Fatalf("key order = %v", s.keyOrder)
	}
	if !strings.HasSuffix(s.file, "bot.log") {
		t.Fatalf("file = %q", s.file)
	}

	def := resolve(nil)
	if def.format != formatJSON || def.sampleNum != 1 || def.sampleDen != 50 {
		t.Fatalf("defaults = %+v", def)
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("a\x00b\u200bc\td", 10); got != "abc\td" {
		t.Fatalf("sanitize = %q", got)
	}
	if got := SanitizeLimit("привет", 3); got != "при" {
		t.Fatalf("limit = %q", got)
	}
	if SanitizeLimit("x", 0) != "" {
		t.Fatal("zero limit must be empty")
	}
}

func TestCompactRID(t *testing.T) {
	if got := CompactRID("35:36:10"); got != "z.10.a" {
		t.Fatalf("compact = %q", got)
	}
	for _, rid := range []string{"", "rid-1", "1:2", "1:x:3"} {
		if CompactRID(rid) != rid {
			t.Errorf("CompactRID(%q) changed the input", rid)
		}
	}
}

func TestUpdateContext(t *testing.T) {
	ctx := NewUpdateContext(5, 6, 7)
	if RIDFrom(ctx) != "5:7:6" || UserIDFrom(ctx) != 6 || ChatIDFrom(ctx) != 7 || UpdateIDFrom(ctx) != 5 {
		t.Fatalf("meta = %q %d %d %d", RIDFrom(ctx), UserIDFrom(ctx), ChatIDFrom(ctx), UpdateIDFrom(ctx))
	}
	if FromContext(ctx) != TG {
		t.Fatal("update context must carry the tg logger")
	}
	if HandlerFrom(WithHandler(ctx, "")) != "" {
		t.Fatal("empty handler must not be stored")
	}
}
