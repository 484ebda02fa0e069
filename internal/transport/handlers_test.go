package transport

import (
	"context"
	"testing"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/supportbot/core/telegram"
	"github.com/m3rciful/supportbot/internal/support"
)

type recorder struct {
	events []support.Event
}

func (r *recorder) Handle(_ context.Context, ev support.Event) error {
	r.events = append(r.events, ev)
	return nil
}

type fakeContext struct {
	tele.Context
	update    tele.Update
	sender    *tele.User
	store     map[string]interface{}
	responses []*tele.CallbackResponse
	sent      []interface{}
}

func newFakeContext(user *tele.User, upd tele.Update) *fakeContext {
	return &fakeContext{update: upd, sender: user, store: map[string]interface{}{}}
}

func (f *fakeContext) Update() tele.Update           { return f.update }
func (f *fakeContext) Sender() *tele.User            { return f.sender }
func (f *fakeContext) Chat() *tele.Chat              { return &tele.Chat{ID: f.sender.ID, Type: tele.ChatPrivate} }
func (f *fakeContext) Message() *tele.Message        { return f.update.Message }
func (f *fakeContext) Callback() *tele.Callback      { return f.update.Callback }
func (f *fakeContext) Get(key string) interface{}    { return f.store[key] }
func (f *fakeContext) Set(key string, v interface{}) { f.store[key] = v }

func (f *fakeContext) Text() string {
	if f.update.Message != nil {
		return f.update.Message.Text
	}
	return ""
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	if len(resp) == 0 {
		resp = []*tele.CallbackResponse{nil}
	}
	f.responses = append(f.responses, resp...)
	return nil
}

func (f *fakeContext) Send(what interface{}, _ ...interface{}) error {
	f.sent = append(f.sent, what)
	return nil
}

var tgUser = &tele.User{ID: 5, Username: "carol", FirstName: "Carol", LastName: "King"}

func TestTextHandler(t *testing.T) {
	rec := &recorder{}
	h := NewHandlers(rec)
	c := newFakeContext(tgUser, tele.Update{ID: 1, Message: &tele.Message{Text: "hello"}})

	if err := h.Text(c); err != nil {
		t.Fatalf("text: %v", err)
	}
	ev, ok := rec.events[0].(support.TextMessage)
	if !ok {
		t.Fatalf("event = %T", rec.events[0])
	}
	want := support.Sender{ID: 5, Username: "carol", FullName: "Carol King"}
	if ev.From != want || ev.ChatID != 5 || ev.Text != "hello" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestCallbackHandler(t *testing.T) {
	rec := &recorder{}
	h := NewHandlers(rec)
	cb := &tele.Callback{Data: "reply_77", Message: &tele.Message{ID: 12}}
	c := newFakeContext(tgUser, tele.Update{ID: 2, Callback: cb})

	if err := h.Callback(c); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if len(c.responses) != 1 {
		t.Fatal("callback not answered")
	}
	ev := rec.events[0].(support.CallbackPress)
	if ev.Action != (support.Action{Kind: support.ActionReply, UserID: 77}) || ev.MessageID != 12 || ev.ChatID != 5 {
		t.Fatalf("event = %+v", ev)
	}
}

func TestCallbackRejectsUnknownPayload(t *testing.T) {
	rec := &recorder{}
	h := NewHandlers(rec)
	c := newFakeContext(tgUser, tele.Update{ID: 3, Callback: &tele.Callback{Data: "reply_abc"}})

	if err := h.Callback(c); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if len(rec.events) != 0 {
		t.Fatal("malformed payload reached the router")
	}
	if len(c.responses) != 1 || c.responses[0] == nil || c.responses[0].Text != textUnsupportedAction {
		t.Fatalf("responses = %+v", c.responses)
	}
}

func TestCommandHandler(t *testing.T) {
	rec := &recorder{}
	h := NewHandlers(rec)
	c := newFakeContext(tgUser, tele.Update{ID: 4, Message: &tele.Message{Text: "/stats"}})

	if err := h.Command(support.CommandStats)(c); err != nil {
		t.Fatalf("command: %v", err)
	}
	ev := rec.events[0].(support.Command)
	if ev.Name != support.CommandStats || ev.From.ID != 5 {
		t.Fatalf("event = %+v", ev)
	}
}

func TestUnsupportedReplies(t *testing.T) {
	c := newFakeContext(tgUser, tele.Update{ID: 5, Message: &tele.Message{}})
	if err := NewHandlers(&recorder{}).Unsupported(c); err != nil {
		t.Fatalf("unsupported: %v", err)
	}
	if len(c.sent) != 1 || c.sent[0] != textTextOnly {
		t.Fatalf("sent = %v", c.sent)
	}
}

func TestKnownAction(t *testing.T) {
	for key, want := range map[string]bool{
		"help_support": true,
		"block_12":     true,
		"block_x":      false,
		"":             false,
		"menu":         false,
	} {
		if got := KnownAction(key); got != want {
			t.Errorf("KnownAction(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestRegisterAndRoutes(t *testing.T) {
	reg := tg.NewRegistry()
	h := NewHandlers(&recorder{})
	Register(reg, h)

	visible := reg.ListCommands(true)
	if len(visible) != 3 {
		t.Fatalf("visible commands = %+v", visible)
	}
	if reg.CallbackHandler() == nil || reg.TextFallback() == nil {
		t.Fatal("fallbacks not registered")
	}

	routes := Routes(reg, h, 1000)
	endpoints := map[interface{}]bool{}
	for _, r := range routes {
		endpoints[r.Endpoint] = true
	}
	for _, ep := range []interface{}{"/start", "/help", "/admin", "/stats", tele.OnCallback, tele.OnText, tele.OnPhoto} {
		if !endpoints[ep] {
			t.Errorf("missing route %v", ep)
		}
	}
}

func TestAdminCommandRejectionReachesRouter(t *testing.T) {
	reg := tg.NewRegistry()
	rec := &recorder{}
	h := NewHandlers(rec)
	Register(reg, h)

	var admin tele.HandlerFunc
	for _, r := range Routes(reg, h, 1000) {
		if r.Endpoint == "/admin" {
			admin = r.Handler
		}
	}
	c := newFakeContext(tgUser, tele.Update{ID: 6, Message: &tele.Message{Text: "/admin"}})
	if err := admin(c); err != nil {
		t.Fatalf("admin: %v", err)
	}
	if len(rec.events) != 1 || rec.events[0].(support.Command).Name != support.CommandAdmin {
		t.Fatalf("events = %+v", rec.events)
	}
}
