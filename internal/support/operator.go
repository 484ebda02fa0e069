package support

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/m3rciful/supportbot/core/logger"
	"github.com/m3rciful/supportbot/internal/repository"
)

func (r *Router) onOperatorText(ctx context.Context, e TextMessage) error {
	mode := r.store.Mode()
	switch mode.Kind {
	case ModeReplying:
		return r.relayReply(ctx, e, mode.TargetUserID)
	case ModeBroadcasting:
		_, err := r.Broadcast(ctx, e.ChatID, mode.Scope, e.Text)
		return err
	default:
		_, err := r.msg.Send(ctx, e.ChatID, textPanelIdle, r.adminMenu())
		return err
	}
}

// startReply puts the operator into replying mode. The prompt is a new
// message so the forwarded request keeps its buttons.
func (r *Router) startReply(ctx context.Context, e CallbackPress) error {
	target := e.Action.UserID
	r.store.SetMode(Replying(target))
	logger.LogEvent(ctx, logger.Support, slog.LevelInfo, "operator.mode",
		slog.String("mode", ModeReplying.String()),
		slog.Int64("target_user_id", target),
	)
	msgID, err := r.msg.Send(ctx, e.ChatID, replyPromptText(target), cancelKeyboard())
	if err != nil {
		return err
	}
	r.store.Update(target, func(c *ChatEntry) {
		c.OperatorMessageIDs = append(c.OperatorMessageIDs, msgID)
	})
	return nil
}

// relayReply sends the operator's text to target. Replying mode is kept
// when delivery fails so the operator can retry.
func (r *Router) relayReply(ctx context.Context, e TextMessage, target int64) error {
	kb := r.userMenu()
	if _, ok := r.store.Get(target); ok {
		kb = supportMenu()
	}
	if _, err := r.msg.Send(ctx, target, operatorReplyText(e.Text), kb); err != nil {
		logger.LogEvent(ctx, logger.Support, slog.LevelError, "relay.operator_failed",
			slog.Int64("target_user_id", target),
			slog.String("err", err.Error()),
		)
		_, sendErr := r.msg.Send(ctx, e.ChatID, replyFailedText(target, err), adminChatKeyboard(target))
		return sendErr
	}
	r.store.ClearMode()
	logger.LogEvent(ctx, logger.Support, slog.LevelInfo, "relay.operator",
		slog.Int64("target_user_id", target),
	)
	_, err := r.msg.Send(ctx, e.ChatID, replySentText(target), adminChatKeyboard(target))
	return err
}

// closeAndClean ends a chat on the operator's side and deletes the operator
// messages recorded for it. Deletions are independent; failures are counted.
func (r *Router) closeAndClean(ctx context.Context, e CallbackPress) error {
	target := e.Action.UserID
	entry, ok := r.store.Get(target)
	if !ok {
		return r.show(ctx, e.ChatID, e.MessageID, chatNotActiveText(target), backToPanelKeyboard())
	}
	if err := r.closeEntry(ctx, entry, repository.EndedByAdmin); err != nil {
		return r.showError(ctx, e, fmt.Sprintf("ERROR CLOSING CHAT FOR USER %d", target), err)
	}
	r.store.ClearReplyTo(target)

	deleted, failed := 0, 0
	for _, id := range entry.OperatorMessageIDs {
		if err := r.msg.Delete(ctx, r.opts.AdminID, id); err != nil {
			failed++
			logger.LogEvent(ctx, logger.Support, slog.LevelDebug, "chat.delete_failed",
				slog.Int("message_id", id),
				slog.String("err", err.Error()),
			)
			continue
		}
		deleted++
	}
	logger.LogEvent(ctx, logger.Support, slog.LevelInfo, "chat.closed",
		slog.Int64("user_id", target),
		slog.Int("deleted", deleted),
		slog.Int("failed", failed),
	)

	if _, err := r.msg.Send(ctx, target, textResolved, r.userMenu()); err != nil {
		logger.LogEvent(ctx, logger.Support, slog.LevelWarn, "chat.notify_failed",
			slog.Int64("user_id", target),
			slog.String("err", err.Error()),
		)
	}

	// The pressed message may have been one of the deleted ones.
	msgID := e.MessageID
	if slices.Contains(entry.OperatorMessageIDs, msgID) {
		msgID = 0
	}
	return r.show(ctx, e.ChatID, msgID, chatClosedText(entry, deleted, failed, r.now()), backToPanelKeyboard())
}

// block deactivates a user. An open chat is closed by the operator without
// a confirmation to the user.
func (r *Router) block(ctx context.Context, e CallbackPress) error {
	target := e.Action.UserID
	if r.isOperator(target) {
		return r.show(ctx, e.ChatID, e.MessageID, textCannotBlock, backToPanelKeyboard())
	}
	if err := r.repo.SetUserActive(ctx, target, false); err != nil {
		return r.showError(ctx, e, fmt.Sprintf("ERROR BLOCKING USER %d", target), err)
	}
	if entry, ok := r.store.Get(target); ok {
		if err := r.closeEntry(ctx, entry, repository.EndedByAdmin); err != nil {
			return r.showError(ctx, e, fmt.Sprintf("ERROR CLOSING CHAT FOR USER %d", target), err)
		}
	}
	r.store.ClearReplyTo(target)
	logger.LogEvent(ctx, logger.Support, slog.LevelInfo, "user.blocked", slog.Int64("user_id", target))

	if err := r.show(ctx, e.ChatID, e.MessageID, userBlockedText(target), blockedKeyboard(target)); err != nil {
		return err
	}
	r.msg.Notify(ctx, target, textBlockedUser, nil)
	return nil
}

func (r *Router) unblock(ctx context.Context, e CallbackPress) error {
	target := e.Action.UserID
	if err := r.repo.SetUserActive(ctx, target, true); err != nil {
		return r.showError(ctx, e, fmt.Sprintf("ERROR UNBLOCKING USER %d", target), err)
	}
	logger.LogEvent(ctx, logger.Support, slog.LevelInfo, "user.unblocked", slog.Int64("user_id", target))
	return r.show(ctx, e.ChatID, e.MessageID, userUnblockedText(target), backToPanelKeyboard())
}

func (r *Router) viewChat(ctx context.Context, e CallbackPress) error {
	entry, ok := r.store.Get(e.Action.UserID)
	if !ok {
		return r.show(ctx, e.ChatID, e.MessageID, chatNotActiveText(e.Action.UserID), backToPanelKeyboard())
	}
	return r.show(ctx, e.ChatID, e.MessageID, chatDetailsText(entry), adminChatKeyboard(entry.UserID))
}

func (r *Router) showActiveChats(ctx context.Context, e CallbackPress) error {
	entries := r.store.Active()
	if len(entries) == 0 {
		return r.show(ctx, e.ChatID, e.MessageID, textNoChats, backKeyboard())
	}
	return r.show(ctx, e.ChatID, e.MessageID, activeChatsText(len(entries)), activeChatsKeyboard(entries))
}

func (r *Router) showStats(ctx context.Context, e CallbackPress) error {
	st, err := r.repo.Stats(ctx, r.now())
	if err != nil {
		return r.showError(ctx, e, "ERROR LOADING STATISTICS", err)
	}
	text := statsText(st, r.store.Count(), r.opts.Production, r.opts.AdminID)
	return r.show(ctx, e.ChatID, e.MessageID, text, refreshKeyboard(ActionBotStats))
}

func (r *Router) showUsers(ctx context.Context, e CallbackPress) error {
	users, err := r.repo.RecentUsers(ctx, listLimit)
	if err != nil {
		return r.showError(ctx, e, "ERROR LOADING USER DATA", err)
	}
	return r.show(ctx, e.ChatID, e.MessageID, recentUsersText(users), refreshKeyboard(ActionUserManagement))
}

func (r *Router) showHistory(ctx context.Context, e CallbackPress) error {
	sessions, err := r.repo.RecentSessions(ctx, listLimit)
	if err != nil {
		return r.showError(ctx, e, "ERROR LOADING SUPPORT HISTORY", err)
	}
	return r.show(ctx, e.ChatID, e.MessageID, historyText(sessions), refreshKeyboard(ActionSupportHistory))
}

// cleanChat deletes messages preceding the panel, newest first, and stops
// at the first message that cannot be deleted.
func (r *Router) cleanChat(ctx context.Context, e CallbackPress) error {
	deleted := 0
	for i := 1; i < cleanChatDepth && e.MessageID-i > 0; i++ {
		if err := r.msg.Delete(ctx, e.ChatID, e.MessageID-i); err != nil {
			break
		}
		deleted++
	}
	logger.LogEvent(ctx, logger.Support, slog.LevelInfo, "chat.cleaned", slog.Int("deleted", deleted))
	return r.show(ctx, e.ChatID, e.MessageID, cleanChatText(deleted), backKeyboard())
}
