package support

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/supportbot/core/logger"
	"github.com/m3rciful/supportbot/internal/repository"
)

// Links are optional URL buttons on the user menu.
type Links struct {
	WebsiteURL string
	ChannelURL string
}

// Options configures a Router.
type Options struct {
	AdminID    int64
	Production bool
	Links      Links
	// StorageName is shown on the settings screen.
	StorageName string
	Clock       func() time.Time
}

// Router applies the support state machine to inbound events.
// Handle serializes events; each runs to completion before the next starts.
type Router struct {
	mu    sync.Mutex
	repo  Repository
	msg   Messenger
	store *Store
	opts  Options
}

// NewRouter validates dependencies and returns a router. A nil store starts empty.
func NewRouter(repo Repository, msg Messenger, store *Store, opts Options) (*Router, error) {
	if repo == nil {
		return nil, errors.New("support: nil repository")
	}
	if msg == nil {
		return nil, errors.New("support: nil messenger")
	}
	if opts.AdminID <= 0 {
		return nil, fmt.Errorf("support: invalid admin id %d", opts.AdminID)
	}
	if store == nil {
		store = NewStore()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Router{repo: repo, msg: msg, store: store, opts: opts}, nil
}

// Store exposes the in-memory chat state.
func (r *Router) Store() *Store { return r.store }

// Handle processes one event. Errors are logged and reported to the operator
// instead of being returned, so a failing event never stops the bot.
func (r *Router) Handle(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.dispatch(ctx, ev); err != nil {
		r.reportError(ctx, ev, err)
	}
	return nil
}

func (r *Router) dispatch(ctx context.Context, ev Event) error {
	from := ev.Origin()
	operator := r.isOperator(from.ID)
	if !operator {
		blocked, err := r.repo.IsBlocked(ctx, from.ID)
		if err != nil {
			return fmt.Errorf("check blocked: %w", err)
		}
		if blocked {
			logger.LogEvent(ctx, logger.Support, slog.LevelInfo, "user.ignored",
				slog.Int64("user_id", from.ID),
				slog.String("reason", "blocked"),
			)
			return nil
		}
	}

	switch e := ev.(type) {
	case Command:
		return r.onCommand(ctx, e)
	case TextMessage:
		if operator {
			return r.onOperatorText(ctx, e)
		}
		return r.onUserText(ctx, e)
	case CallbackPress:
		if e.Action.OperatorOnly() && !operator {
			logger.LogEvent(ctx, logger.Support, slog.LevelWarn, "callback.denied",
				slog.Int64("user_id", from.ID),
				slog.String("action", e.Action.Kind.String()),
			)
			return nil
		}
		return r.onCallback(ctx, e)
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}
}

func (r *Router) onCallback(ctx context.Context, e CallbackPress) error {
	switch e.Action.Kind {
	case ActionHelpSupport:
		return r.openSupport(ctx, e)
	case ActionEndSupport:
		return r.endSupport(ctx, e)
	case ActionAdminPanel:
		r.store.ClearMode()
		return r.show(ctx, e.ChatID, e.MessageID, textPanel, r.adminMenu())
	case ActionViewActiveChats:
		return r.showActiveChats(ctx, e)
	case ActionBotStats:
		return r.showStats(ctx, e)
	case ActionBroadcastMenu:
		return r.showBroadcastMenu(ctx, e)
	case ActionBroadcastAll:
		return r.startBroadcast(ctx, e, ScopeAll)
	case ActionBroadcastActive:
		return r.startBroadcast(ctx, e, ScopeActive)
	case ActionUserManagement:
		return r.showUsers(ctx, e)
	case ActionSupportHistory:
		return r.showHistory(ctx, e)
	case ActionBotSettings:
		return r.show(ctx, e.ChatID, e.MessageID, settingsText(r.opts.AdminID, r.opts.StorageName, r.opts.Production), settingsKeyboard())
	case ActionCleanChat:
		return r.cleanChat(ctx, e)
	case ActionViewChat:
		return r.viewChat(ctx, e)
	case ActionReply:
		return r.startReply(ctx, e)
	case ActionCloseClean:
		return r.closeAndClean(ctx, e)
	case ActionBlock:
		return r.block(ctx, e)
	case ActionUnblock:
		return r.unblock(ctx, e)
	default:
		return fmt.Errorf("%w: kind %d", ErrUnknownAction, e.Action.Kind)
	}
}

// Reconcile closes durable sessions left active by a previous process.
// The in-memory store starts empty, so no active row can have an entry.
func (r *Router) Reconcile(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.repo.CloseActiveSessions(ctx, repository.EndedBySystem, r.now())
	if err != nil {
		return fmt.Errorf("reconcile sessions: %w", err)
	}
	level := slog.LevelInfo
	if n > 0 {
		level = slog.LevelWarn
	}
	logger.LogEvent(ctx, logger.Support, level, "session.reconcile", slog.Int64("closed", n))
	return nil
}

// Shutdown closes every open chat with reason system and its last known
// message count, then sweeps any remaining active rows.
func (r *Router) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	now := r.now()
	closed := 0
	for _, e := range r.store.Active() {
		err := r.repo.CloseSession(ctx, e.SessionID, repository.EndedBySystem, e.MessageCount, now)
		if err != nil && !errors.Is(err, repository.ErrSessionNotActive) {
			errs = append(errs, err)
			continue
		}
		r.store.Remove(e.UserID)
		closed++
	}
	swept, err := r.repo.CloseActiveSessions(ctx, repository.EndedBySystem, now)
	if err != nil {
		errs = append(errs, err)
	}
	logger.LogEvent(ctx, logger.Support, slog.LevelInfo, "session.shutdown",
		slog.Int("closed", closed),
		slog.Int64("swept", swept),
		slog.Int("errors", len(errs)),
	)
	return errors.Join(errs...)
}

// closeEntry closes the session row of an open chat and drops the entry.
// A row that is already closed is tolerated; the entry is dropped either way.
func (r *Router) closeEntry(ctx context.Context, e ChatEntry, reason repository.EndReason) error {
	err := r.repo.CloseSession(ctx, e.SessionID, reason, e.MessageCount, r.now())
	switch {
	case errors.Is(err, repository.ErrSessionNotActive):
		logger.LogEvent(ctx, logger.Support, slog.LevelWarn, "session.close_stale",
			slog.Int64("user_id", e.UserID),
			slog.Int64("session_id", e.SessionID),
		)
	case err != nil:
		return err
	}
	r.store.Remove(e.UserID)
	logger.LogEvent(ctx, logger.Support, slog.LevelInfo, "session.close",
		slog.Int64("user_id", e.UserID),
		slog.Int64("session_id", e.SessionID),
		slog.String("reason", string(reason)),
		slog.Int("messages", e.MessageCount),
	)
	return nil
}

// show edits messageID in place, falling back to a new message when the
// edit fails or there is nothing to edit.
func (r *Router) show(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error {
	if messageID > 0 {
		err := r.msg.Edit(ctx, chatID, messageID, text, kb)
		if err == nil {
			return nil
		}
		logger.LogEvent(ctx, logger.Support, slog.LevelDebug, "show.edit_failed",
			slog.Int64("chat_id", chatID),
			slog.Int("message_id", messageID),
			slog.String("err", err.Error()),
		)
	}
	_, err := r.msg.Send(ctx, chatID, text, kb)
	return err
}

// showError reports a storage failure inline with a back button.
func (r *Router) showError(ctx context.Context, e CallbackPress, title string, err error) error {
	logger.LogEvent(ctx, logger.Support, slog.LevelError, "storage.error",
		slog.String("action", e.Action.Kind.String()),
		slog.String("err", err.Error()),
	)
	return r.show(ctx, e.ChatID, e.MessageID, errorText(title, err), backKeyboard())
}

func (r *Router) reportError(ctx context.Context, ev Event, err error) {
	from := ev.Origin()
	logger.LogEvent(ctx, logger.Support, slog.LevelError, "router.error",
		slog.Int64("user_id", from.ID),
		slog.String("event_type", fmt.Sprintf("%T", ev)),
		slog.String("err", err.Error()),
	)
	r.msg.Notify(ctx, r.opts.AdminID, botErrorText(err, r.now()), nil)
}

// ReportPanic forwards a recovered handler panic to the operator.
func (r *Router) ReportPanic(ctx context.Context, err error) {
	r.msg.Notify(ctx, r.opts.AdminID, botErrorText(err, r.now()), nil)
}

func (r *Router) isOperator(userID int64) bool { return userID == r.opts.AdminID }

func (r *Router) now() time.Time { return r.opts.Clock() }
