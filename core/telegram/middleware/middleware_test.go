package middleware

import (
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

// fakeContext is the minimal tele.Context used by middleware tests.
type fakeContext struct {
	tele.Context
	update tele.Update
	sender *tele.User
	store  map[string]interface{}
	sent   int
}

func newFakeContext(userID int64, upd tele.Update) *fakeContext {
	return &fakeContext{
		update: upd,
		sender: &tele.User{ID: userID},
		store:  map[string]interface{}{},
	}
}

func (f *fakeContext) Update() tele.Update           { return f.update }
func (f *fakeContext) Sender() *tele.User            { return f.sender }
func (f *fakeContext) Chat() *tele.Chat              { return &tele.Chat{ID: f.sender.ID, Type: tele.ChatPrivate} }
func (f *fakeContext) Text() string                  { return "" }
func (f *fakeContext) Callback() *tele.Callback      { return f.update.Callback }
func (f *fakeContext) Get(key string) interface{}    { return f.store[key] }
func (f *fakeContext) Set(key string, v interface{}) { f.store[key] = v }
func (f *fakeContext) Send(interface{}, ...interface{}) error {
	f.sent++
	return nil
}

func TestAdminOnlyMiddleware(t *testing.T) {
	rejected, passed := 0, 0
	h := AdminOnlyMiddleware(AdminOptions{
		AdminID:  7,
		OnReject: func(tele.Context) error { rejected++; return nil },
	})(func(tele.Context) error { passed++; return nil })

	_ = h(newFakeContext(7, tele.Update{ID: 1}))
	_ = h(newFakeContext(8, tele.Update{ID: 2}))

	if passed != 1 || rejected != 1 {
		t.Fatalf("passed=%d rejected=%d", passed, rejected)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limited := 0
	calls := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		Exclude:   map[string]struct{}{"callback": {}},
		Bypass:    map[int64]struct{}{99: {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	h := mw(func(tele.Context) error { calls++; return nil })

	msg := tele.Update{Message: &tele.Message{}}
	_ = h(newFakeContext(1, msg))
	_ = h(newFakeContext(1, msg))
	if calls != 1 || limited != 1 {
		t.Fatalf("calls=%d limited=%d after two messages", calls, limited)
	}

	cb := tele.Update{Callback: &tele.Callback{Data: "admin_panel"}}
	_ = h(newFakeContext(1, cb))
	if calls != 2 {
		t.Fatal("excluded callback must pass")
	}

	_ = h(newFakeContext(99, msg))
	_ = h(newFakeContext(99, msg))
	if calls != 4 {
		t.Fatal("bypassed user must never be limited")
	}
}

func TestRecoverWithHook(t *testing.T) {
	var got error
	h := RecoverWithHook(func(_ tele.Context, err error) { got = err })(func(tele.Context) error {
		panic("boom")
	})
	if err := h(newFakeContext(1, tele.Update{ID: 3})); err != nil {
		t.Fatalf("recovered handler returned %v", err)
	}
	if got == nil || got.Error() != "panic: boom" {
		t.Fatalf("hook got %v", got)
	}

	plain := RecoverWithHook(nil)(func(tele.Context) error { return errors.New("regular") })
	if err := plain(newFakeContext(1, tele.Update{ID: 4})); err == nil {
		t.Fatal("non-panic errors must pass through")
	}
}

func TestMessageMetricsMiddleware(t *testing.T) {
	fc := newFakeContext(5, tele.Update{ID: 10, Message: &tele.Message{}})
	h := LoggerMiddleware(MessageMetricsMiddleware(func(c tele.Context) error {
		if err := c.Send("hi"); err != nil {
			return err
		}
		return c.Send("menu", &tele.ReplyMarkup{})
	}))
	if err := h(fc); err != nil {
		t.Fatalf("handler: %v", err)
	}
	msgs, kb := GetCounters(fc)
	if msgs != 2 || !kb {
		t.Fatalf("counters = (%d, %v), want (2, true)", msgs, kb)
	}
	if fc.sent != 2 {
		t.Fatalf("sent = %d", fc.sent)
	}
}

func TestLimiterSweepsStaleEntries(t *testing.T) {
	l := &limiter{interval: time.Second, sweepAt: 2, last: make(map[int64]time.Time)}
	base := time.Unix(1000, 0)
	l.allow(1, base)
	l.allow(2, base)
	if !l.allow(3, base.Add(2*time.Second)) {
		t.Fatal("new user must pass")
	}
	if len(l.last) != 1 {
		t.Fatalf("stale entries kept: %d", len(l.last))
	}
	if l.allow(3, base.Add(2500*time.Millisecond)) {
		t.Fatal("user within interval must be limited")
	}
}
