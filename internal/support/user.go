package support

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/supportbot/core/logger"
	"github.com/m3rciful/supportbot/internal/repository"
)

func (r *Router) onCommand(ctx context.Context, e Command) error {
	switch e.Name {
	case CommandStart, CommandHelp:
		return r.start(ctx, e)
	case CommandAdmin:
		if !r.isOperator(e.From.ID) {
			_, err := r.msg.Send(ctx, e.ChatID, textNoAdmin, nil)
			return err
		}
		r.store.ClearMode()
		_, err := r.msg.Send(ctx, e.ChatID, textPanelAdmin, r.adminMenu())
		return err
	case CommandStats:
		if !r.isOperator(e.From.ID) {
			_, err := r.msg.Send(ctx, e.ChatID, textAdminOnly, nil)
			return err
		}
		st, err := r.repo.Stats(ctx, r.now())
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		_, err = r.msg.Send(ctx, e.ChatID, quickStatsText(st, r.store.Count()), nil)
		return err
	default:
		return fmt.Errorf("unsupported command %q", e.Name)
	}
}

// start resets the sender: any open chat is ended by the user.
func (r *Router) start(ctx context.Context, e Command) error {
	if err := r.touch(ctx, e.From); err != nil {
		return err
	}
	if entry, ok := r.store.Get(e.From.ID); ok {
		if err := r.closeEntry(ctx, entry, repository.EndedByUser); err != nil {
			return fmt.Errorf("end chat on start: %w", err)
		}
	}
	if r.isOperator(e.From.ID) {
		r.store.ClearMode()
		_, err := r.msg.Send(ctx, e.ChatID, adminWelcomeText(r.opts.Production), r.adminMenu())
		return err
	}
	_, err := r.msg.Send(ctx, e.ChatID, textStart, r.userMenu())
	return err
}

func (r *Router) onUserText(ctx context.Context, e TextMessage) error {
	if r.store.State(e.From.ID) == StateIdle {
		if err := r.touch(ctx, e.From); err != nil {
			return err
		}
		_, err := r.msg.Send(ctx, e.ChatID, textIdleHint, r.userMenu())
		return err
	}

	entry, _ := r.store.Update(e.From.ID, func(c *ChatEntry) {
		c.MessageCount++
		c.Username = e.From.Username
		c.FullName = e.From.FullName
	})
	if err := r.touch(ctx, e.From); err != nil {
		return err
	}

	first := entry.WaitingForFirstMessage
	text := ongoingText(e.From.ID, e.Text)
	if first {
		text = newRequestText(e.From, e.Text, r.now())
	}
	msgID, err := r.msg.Send(ctx, r.opts.AdminID, text, adminChatKeyboard(e.From.ID))
	if err != nil {
		logger.LogEvent(ctx, logger.Support, slog.LevelError, "relay.user_failed",
			slog.Int64("user_id", e.From.ID),
			slog.Bool("first", first),
			slog.String("err", err.Error()),
		)
		_, sendErr := r.msg.Send(ctx, e.ChatID, textNotDelivered, supportMenu())
		return sendErr
	}

	r.store.Update(e.From.ID, func(c *ChatEntry) {
		c.WaitingForFirstMessage = false
		c.OperatorMessageIDs = append(c.OperatorMessageIDs, msgID)
	})
	logger.LogEvent(ctx, logger.Support, slog.LevelInfo, "relay.user",
		slog.Int64("user_id", e.From.ID),
		slog.Int64("session_id", entry.SessionID),
		slog.Bool("first", first),
		slog.Int("messages", entry.MessageCount),
	)
	if logger.ShouldSampleDebug() {
		logger.LogEvent(ctx, logger.Support, slog.LevelDebug, "relay.payload",
			slog.String("preview", logger.SanitizeLimit(e.Text, 64)),
		)
	}

	confirm := textMessageSent
	if first {
		confirm = textFirstSent
	}
	_, err = r.msg.Send(ctx, e.ChatID, confirm, supportMenu())
	return err
}

// openSupport is the entry point. Pressing it again while a chat is open
// re-shows the confirmation without opening a second session.
func (r *Router) openSupport(ctx context.Context, e CallbackPress) error {
	if r.store.State(e.From.ID) != StateIdle {
		logger.LogEvent(ctx, logger.Support, slog.LevelDebug, "session.reentry",
			slog.Int64("user_id", e.From.ID),
		)
		return r.show(ctx, e.ChatID, e.MessageID, textSupportStart, supportMenu())
	}

	now := r.now()
	sessionID, err := r.repo.OpenSession(ctx, e.From.ID, now)
	if err != nil {
		_, _ = r.msg.Send(ctx, e.ChatID, textUnavailable, nil)
		return fmt.Errorf("open session for %d: %w", e.From.ID, err)
	}
	r.store.Put(ChatEntry{
		UserID:                 e.From.ID,
		Username:               e.From.Username,
		FullName:               e.From.FullName,
		SessionID:              sessionID,
		InSupport:              true,
		WaitingForFirstMessage: true,
		StartedAt:              now,
	})
	logger.LogEvent(ctx, logger.Support, slog.LevelInfo, "session.open",
		slog.Int64("user_id", e.From.ID),
		slog.Int64("session_id", sessionID),
	)
	return r.show(ctx, e.ChatID, e.MessageID, textSupportStart, supportMenu())
}

func (r *Router) endSupport(ctx context.Context, e CallbackPress) error {
	entry, ok := r.store.Get(e.From.ID)
	if ok {
		if err := r.closeEntry(ctx, entry, repository.EndedByUser); err != nil {
			return fmt.Errorf("end support for %d: %w", e.From.ID, err)
		}
	}
	if err := r.show(ctx, e.ChatID, e.MessageID, textSupportEnded, r.userMenu()); err != nil {
		return err
	}
	if ok {
		r.msg.Notify(ctx, r.opts.AdminID, userEndedText(e.From.ID), nil)
	}
	return nil
}

func (r *Router) touch(ctx context.Context, s Sender) error {
	if err := r.repo.TouchUser(ctx, s.ID, s.Username, s.FullName, r.now()); err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	return nil
}
