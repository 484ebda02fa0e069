package support

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/supportbot/core/logger"
)

// BroadcastReport summarizes one broadcast. Sent+Failed always equals Targets.
type BroadcastReport struct {
	Scope   BroadcastScope
	Targets int
	Sent    int
	Failed  int
}

func (r *Router) showBroadcastMenu(ctx context.Context, e CallbackPress) error {
	all, err := r.broadcastTargets(ctx, ScopeAll)
	if err != nil {
		return r.showError(ctx, e, "ERROR LOADING USERS", err)
	}
	active, _ := r.broadcastTargets(ctx, ScopeActive)
	return r.show(ctx, e.ChatID, e.MessageID, broadcastMenuText(len(all), len(active)), broadcastKeyboard())
}

// startBroadcast switches the operator into broadcasting mode; the next
// plain text becomes the broadcast body.
func (r *Router) startBroadcast(ctx context.Context, e CallbackPress, scope BroadcastScope) error {
	targets, err := r.broadcastTargets(ctx, scope)
	if err != nil {
		return r.showError(ctx, e, "ERROR LOADING USERS", err)
	}
	r.store.SetMode(Broadcasting(scope))
	logger.LogEvent(ctx, logger.Support, slog.LevelInfo, "operator.mode",
		slog.String("mode", ModeBroadcasting.String()),
		slog.String("scope", string(scope)),
	)
	return r.show(ctx, e.ChatID, e.MessageID, broadcastPromptText(scope, len(targets)), cancelKeyboard())
}

// Broadcast sends text to every recipient in scope except the operator,
// one attempt each. A failed recipient never stops the rest. Progress and
// the summary are posted to chatID and broadcasting mode is cleared.
func (r *Router) Broadcast(ctx context.Context, chatID int64, scope BroadcastScope, text string) (BroadcastReport, error) {
	rep := BroadcastReport{Scope: scope}
	targets, err := r.broadcastTargets(ctx, scope)
	r.store.ClearMode()
	if err != nil {
		_, _ = r.msg.Send(ctx, chatID, errorText("ERROR LOADING USERS", err), backKeyboard())
		return rep, fmt.Errorf("broadcast targets: %w", err)
	}
	rep.Targets = len(targets)
	if rep.Targets == 0 {
		_, err := r.msg.Send(ctx, chatID, broadcastEmptyText(scope), r.adminMenu())
		return rep, err
	}

	statusID, err := r.msg.Send(ctx, chatID, broadcastProgressText(scope, rep.Targets), nil)
	if err != nil {
		statusID = 0
	}

	body := broadcastMessageText(text)
	for _, id := range targets {
		if _, err := r.msg.Send(ctx, id, body, nil); err != nil {
			rep.Failed++
			logger.LogEvent(ctx, logger.Support, slog.LevelDebug, "broadcast.failed",
				slog.Int64("user_id", id),
				slog.String("err", err.Error()),
			)
			continue
		}
		rep.Sent++
	}
	logger.LogEvent(ctx, logger.Support, slog.LevelInfo, "broadcast.done",
		slog.String("scope", string(scope)),
		slog.Int("targets", rep.Targets),
		slog.Int("sent", rep.Sent),
		slog.Int("failed", rep.Failed),
	)
	return rep, r.show(ctx, chatID, statusID, broadcastDoneText(rep, text), r.adminMenu())
}

func (r *Router) broadcastTargets(ctx context.Context, scope BroadcastScope) ([]int64, error) {
	var ids []int64
	switch scope {
	case ScopeAll:
		all, err := r.repo.ListUserIDs(ctx, true)
		if err != nil {
			return nil, err
		}
		ids = all
	case ScopeActive:
		ids = r.store.ActiveUserIDs()
	default:
		return nil, fmt.Errorf("unknown broadcast scope %q", scope)
	}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !r.isOperator(id) {
			out = append(out, id)
		}
	}
	return out, nil
}
