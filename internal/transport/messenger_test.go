package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/supportbot/core/telegram/helpers"
	"github.com/m3rciful/supportbot/core/telegram/sender"
	"github.com/m3rciful/supportbot/internal/support"
)

type botCall struct {
	to   string
	what interface{}
	opts []interface{}
}

type fakeBot struct {
	mu         sync.Mutex
	sends      []botCall
	edits      []botCall
	deletes    int
	sendErr    error
	editErr    error
	deleteErrs []error
}

func (b *fakeBot) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return nil, b.sendErr
	}
	b.sends = append(b.sends, botCall{to: to.Recipient(), what: what, opts: opts})
	return &tele.Message{ID: 40 + len(b.sends)}, nil
}

func (b *fakeBot) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, _ := msg.MessageSig()
	b.edits = append(b.edits, botCall{to: id, what: what, opts: opts})
	return nil, b.editErr
}

func (b *fakeBot) Delete(tele.Editable) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes++
	if len(b.deleteErrs) >= b.deletes {
		return b.deleteErrs[b.deletes-1]
	}
	return nil
}

func (b *fakeBot) sendCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sends)
}

func TestSendRendersMarkdownAndKeyboard(t *testing.T) {
	bot := &fakeBot{}
	m := NewMessenger(bot, nil)
	ctx, counters := helpers.WithCounters(context.Background())

	id, err := m.Send(ctx, 42, "*hi*", support.Keyboard{
		{{Text: "Contact", Data: "help_support"}},
		{{Text: "Site", URL: "https://example.com"}},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != 41 {
		t.Fatalf("id = %d", id)
	}
	call := bot.sends[0]
	if call.to != "42" || call.what != "*hi*" {
		t.Fatalf("call = %+v", call)
	}
	opts := call.opts[0].(*tele.SendOptions)
	if opts.ParseMode != tele.ModeMarkdown {
		t.Fatalf("parse mode = %q", opts.ParseMode)
	}
	rows := opts.ReplyMarkup.InlineKeyboard
	if len(rows) != 2 || rows[0][0].Data != "help_support" || rows[1][0].URL != "https://example.com" {
		t.Fatalf("keyboard = %+v", rows)
	}
	if n, kb := counters.Snapshot(); n != 1 || !kb {
		t.Fatalf("counters = %d, %v", n, kb)
	}
}

func TestSendWithoutKeyboard(t *testing.T) {
	bot := &fakeBot{}
	if _, err := NewMessenger(bot, nil).Send(context.Background(), 1, "x", nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	if opts := bot.sends[0].opts[0].(*tele.SendOptions); opts.ReplyMarkup != nil {
		t.Fatalf("unexpected markup: %+v", opts.ReplyMarkup)
	}
}

func TestSendError(t *testing.T) {
	bot := &fakeBot{sendErr: errors.New("telegram: Forbidden: bot was blocked by the user (403)")}
	if _, err := NewMessenger(bot, nil).Send(context.Background(), 1, "x", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestEditTreatsUnchangedAsSuccess(t *testing.T) {
	bot := &fakeBot{editErr: tele.ErrSameMessageContent}
	m := NewMessenger(bot, nil)
	if err := m.Edit(context.Background(), 1, 9, "same", nil); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if bot.edits[0].to != "9" {
		t.Fatalf("edited message %q", bot.edits[0].to)
	}

	bot.editErr = errors.New("telegram: message can't be edited (400)")
	if err := m.Edit(context.Background(), 1, 9, "other", nil); err == nil {
		t.Fatal("expected edit error")
	}
}

func TestDeleteRetriesTransientErrors(t *testing.T) {
	bot := &fakeBot{deleteErrs: []error{&net.OpError{Op: "dial", Err: errors.New("refused")}}}
	m := NewMessenger(bot, nil)
	m.backoff = time.Millisecond

	if err := m.Delete(context.Background(), 1, 5); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if bot.deletes != 2 {
		t.Fatalf("attempts = %d, want 2", bot.deletes)
	}
}

func TestDeleteBoundedAttempts(t *testing.T) {
	dial := &net.OpError{Op: "dial", Err: errors.New("refused")}
	bot := &fakeBot{deleteErrs: []error{dial, dial, dial, dial}}
	m := NewMessenger(bot, nil)
	m.backoff = time.Millisecond

	if err := m.Delete(context.Background(), 1, 5); err == nil {
		t.Fatal("expected error")
	}
	if bot.deletes != deleteAttempts {
		t.Fatalf("attempts = %d, want %d", bot.deletes, deleteAttempts)
	}
}

func TestDeleteDoesNotRetryRejections(t *testing.T) {
	bot := &fakeBot{deleteErrs: []error{errors.New("telegram: message to delete not found (400)")}}
	if err := NewMessenger(bot, nil).Delete(context.Background(), 1, 5); err == nil {
		t.Fatal("expected error")
	}
	if bot.deletes != 1 {
		t.Fatalf("attempts = %d, want 1", bot.deletes)
	}
}

func TestNotify(t *testing.T) {
	bot := &fakeBot{}
	NewMessenger(bot, nil).Notify(context.Background(), 1, "inline", nil)
	if bot.sendCount() != 1 {
		t.Fatalf("inline notify sends = %d", bot.sendCount())
	}

	d := sender.NewDispatcher(sender.Options{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	NewMessenger(bot, d).Notify(ctx, 1, "queued", nil)
	cancel()
	d.Close()
	if bot.sendCount() != 2 {
		t.Fatalf("queued notify sends = %d", bot.sendCount())
	}
}
