package router

import (
	"testing"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/supportbot/core/telegram"
	"github.com/m3rciful/supportbot/core/telegram/middleware"
)

type fakeContext struct {
	tele.Context
	update tele.Update
	sender *tele.User
	store  map[string]interface{}
}

func newFakeContext(userID int64, upd tele.Update) *fakeContext {
	return &fakeContext{update: upd, sender: &tele.User{ID: userID}, store: map[string]interface{}{}}
}

func (f *fakeContext) Update() tele.Update           { return f.update }
func (f *fakeContext) Sender() *tele.User            { return f.sender }
func (f *fakeContext) Chat() *tele.Chat              { return &tele.Chat{ID: f.sender.ID, Type: tele.ChatPrivate} }
func (f *fakeContext) Callback() *tele.Callback      { return f.update.Callback }
func (f *fakeContext) Get(key string) interface{}    { return f.store[key] }
func (f *fakeContext) Set(key string, v interface{}) { f.store[key] = v }

func (f *fakeContext) Text() string {
	if f.update.Message != nil {
		return f.update.Message.Text
	}
	return ""
}

func (f *fakeContext) Respond(...*tele.CallbackResponse) error { return nil }

func panicking(tele.Context) error { panic("handler exploded") }

// Route handlers must let panics reach the bot-level recover hook, which
// reports them to the operator.
func TestRoutePanicsReachRecoverHook(t *testing.T) {
	reg := tg.NewRegistry()
	reg.SetCallbackHandler(panicking)
	reg.SetTextFallback(panicking)

	var hooked []error
	recoverWith := middleware.RecoverWithHook(func(_ tele.Context, err error) { hooked = append(hooked, err) })

	routes := map[string]struct {
		handler tele.HandlerFunc
		update  tele.Update
	}{
		"callback": {
			handler: CallbackRoute(reg, CallbackOptions{}).Handler,
			update:  tele.Update{ID: 1, Callback: &tele.Callback{Data: "admin_panel"}},
		},
		"text": {
			handler: TextRoutes(reg, TextOptions{})[0].Handler,
			update:  tele.Update{ID: 2, Message: &tele.Message{Text: "hello"}},
		},
		"unsupported": {
			handler: TextRoutes(reg, TextOptions{Unsupported: panicking})[1].Handler,
			update:  tele.Update{ID: 3, Message: &tele.Message{}},
		},
	}
	for name, rt := range routes {
		before := len(hooked)
		if err := recoverWith(rt.handler)(newFakeContext(5, rt.update)); err != nil {
			t.Fatalf("%s: recovered handler returned %v", name, err)
		}
		if len(hooked) != before+1 {
			t.Fatalf("%s: panic hook not called", name)
		}
		if hooked[before].Error() != "panic: handler exploded" {
			t.Fatalf("%s: hook got %v", name, hooked[before])
		}
	}
}

func TestCallbackRouteRejectsUnknownKeys(t *testing.T) {
	reg := tg.NewRegistry()
	called, fallback := 0, 0
	reg.SetCallbackHandler(func(tele.Context) error { called++; return nil })
	reg.SetCallbackNotFound(func(tele.Context) error { fallback++; return nil })

	h := CallbackRoute(reg, CallbackOptions{Known: func(key string) bool { return key == "admin_panel" }}).Handler
	_ = h(newFakeContext(5, tele.Update{Callback: &tele.Callback{Data: "admin_panel"}}))
	_ = h(newFakeContext(5, tele.Update{Callback: &tele.Callback{Data: "drop_table"}}))

	if called != 1 || fallback != 1 {
		t.Fatalf("handler=%d fallback=%d", called, fallback)
	}
}
