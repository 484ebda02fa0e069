package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/supportbot/core/logger"
	"github.com/m3rciful/supportbot/core/telegram/helpers"
	"github.com/m3rciful/supportbot/core/telegram/keyboard"
	"github.com/m3rciful/supportbot/core/telegram/netutil"
	"github.com/m3rciful/supportbot/core/telegram/sender"
	"github.com/m3rciful/supportbot/internal/support"
)

const (
	deleteAttempts = 3
	deleteBackoff  = 300 * time.Millisecond
)

// BotAPI is the subset of *tele.Bot used for outbound messages.
type BotAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// Messenger implements support.Messenger on top of telebot.
type Messenger struct {
	api        BotAPI
	dispatcher *sender.Dispatcher
	backoff    time.Duration
}

// NewMessenger wraps api. Notifications go through dispatcher; a nil
// dispatcher sends them inline.
func NewMessenger(api BotAPI, dispatcher *sender.Dispatcher) *Messenger {
	return &Messenger{api: api, dispatcher: dispatcher, backoff: deleteBackoff}
}

func sendOptions(kb support.Keyboard) *tele.SendOptions {
	return &tele.SendOptions{
		ParseMode:   tele.ModeMarkdown,
		ReplyMarkup: markup(kb),
	}
}

func markup(kb support.Keyboard) *tele.ReplyMarkup {
	rows := make([][]keyboard.InlineBtn, 0, len(kb))
	for _, row := range kb {
		r := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			r = append(r, keyboard.InlineBtn{Text: b.Text, Data: b.Data, URL: b.URL})
		}
		rows = append(rows, r)
	}
	return keyboard.InlineButtonsRows(rows...)
}

// Send delivers text to chatID once and returns the message id.
func (m *Messenger) Send(ctx context.Context, chatID int64, text string, kb support.Keyboard) (int, error) {
	opts := sendOptions(kb)
	msg, err := m.api.Send(tele.ChatID(chatID), text, opts)
	if err != nil {
		return 0, fmt.Errorf("send to %d: %w", chatID, err)
	}
	helpers.CountSend(ctx, opts.ReplyMarkup != nil)
	return msg.ID, nil
}

// Edit replaces the text and keyboard of an existing message.
// An unchanged message counts as a successful edit.
func (m *Messenger) Edit(ctx context.Context, chatID int64, messageID int, text string, kb support.Keyboard) error {
	opts := sendOptions(kb)
	_, err := m.api.Edit(stored(chatID, messageID), text, opts)
	if err != nil && !errors.Is(err, tele.ErrSameMessageContent) {
		return fmt.Errorf("edit %d/%d: %w", chatID, messageID, err)
	}
	helpers.CountSend(ctx, opts.ReplyMarkup != nil)
	return nil
}

// Delete removes a message. Transient network failures are retried a
// bounded number of times; API rejections are returned at once.
func (m *Messenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	var err error
	for attempt := 1; attempt <= deleteAttempts; attempt++ {
		err = m.api.Delete(stored(chatID, messageID))
		if err == nil || !netutil.ShouldRetry(err) || attempt == deleteAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(max(m.backoff*time.Duration(attempt), netutil.RetryAfter(err))):
		}
	}
	if err != nil {
		return fmt.Errorf("delete %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

// Notify sends in the background. The update context may be gone by the
// time the job runs, so cancellation is detached.
func (m *Messenger) Notify(ctx context.Context, chatID int64, text string, kb support.Keyboard) {
	ctx = context.WithoutCancel(ctx)
	err := m.dispatcher.Submit(ctx, "notify", "sendMessage", func() error {
		_, err := m.Send(ctx, chatID, text, kb)
		return err
	})
	if err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "notify.failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

func stored(chatID int64, messageID int) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
}
