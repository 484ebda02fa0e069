package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/supportbot/core/logger"
)

var (
	// ErrSessionNotActive is returned when closing a session that is already closed or unknown.
	ErrSessionNotActive = errors.New("repository: session not active")
	// ErrUserNotFound is returned when updating a user that was never seen.
	ErrUserNotFound = errors.New("repository: user not found")
)

// Repository persists users and support sessions.
type Repository struct {
	db *sqlx.DB
}

// New wraps an open database handle.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// stamp normalizes timestamps so stored values compare correctly as text on sqlite.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// TouchUser upserts the user, bumps last_seen and total_messages, and marks them active.
func (r *Repository) TouchUser(ctx context.Context, userID int64, username, fullName string, at time.Time) error {
	at = stamp(at)
	q := r.db.Rebind(`
		INSERT INTO users (user_id, username, full_name, first_seen, last_seen, total_messages, is_active)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			username = excluded.username,
			full_name = excluded.full_name,
			last_seen = excluded.last_seen,
			total_messages = users.total_messages + 1,
			is_active = excluded.is_active`)
	if _, err := r.db.ExecContext(ctx, q, userID, username, fullName, at, at, true); err != nil {
		return fmt.Errorf("touch user %d: %w", userID, err)
	}
	return nil
}

// OpenSession inserts an active session for the user and returns its id.
// A lingering active row for the same user is closed with reason system first.
func (r *Repository) OpenSession(ctx context.Context, userID int64, at time.Time) (int64, error) {
	at = stamp(at)
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("open session: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE support_sessions SET ended_at = ?, ended_by = ?, status = ?
		WHERE user_id = ? AND status = ?`),
		at, string(EndedBySystem), statusClosed, userID, statusActive)
	if err != nil {
		return 0, fmt.Errorf("open session: close stale: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.DB.Warn("stale session closed",
			slog.String("event", "session.stale"),
			slog.Int64("user_id", userID),
			slog.Int64("closed", n),
		)
	}

	var id int64
	if err := tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO support_sessions (user_id, started_at, message_count, status)
		VALUES (?, ?, 0, ?) RETURNING session_id`),
		userID, at, statusActive).Scan(&id); err != nil {
		return 0, fmt.Errorf("open session: insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("open session: commit: %w", err)
	}
	return id, nil
}

// CloseSession closes an active session. Closing twice returns ErrSessionNotActive.
func (r *Repository) CloseSession(ctx context.Context, sessionID int64, reason EndReason, messageCount int, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE support_sessions SET ended_at = ?, ended_by = ?, message_count = ?, status = ?
		WHERE session_id = ? AND status = ?`),
		stamp(at), string(reason), messageCount, statusClosed, sessionID, statusActive)
	if err != nil {
		return fmt.Errorf("close session %d: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close session %d: %w", sessionID, err)
	}
	if n == 0 {
		return fmt.Errorf("close session %d: %w", sessionID, ErrSessionNotActive)
	}
	return nil
}

// CloseActiveSessions closes every active session with reason and returns how many were closed.
// Message counts keep their stored value.
func (r *Repository) CloseActiveSessions(ctx context.Context, reason EndReason, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE support_sessions SET ended_at = ?, ended_by = ?, status = ?
		WHERE status = ?`),
		stamp(at), string(reason), statusClosed, statusActive)
	if err != nil {
		return 0, fmt.Errorf("close active sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("close active sessions: %w", err)
	}
	return n, nil
}

// ListUserIDs returns every known user id, or only non-blocked ones when activeOnly is set.
func (r *Repository) ListUserIDs(ctx context.Context, activeOnly bool) ([]int64, error) {
	var (
		ids []int64
		err error
	)
	if activeOnly {
		err = r.db.SelectContext(ctx, &ids, r.db.Rebind(`SELECT user_id FROM users WHERE is_active = ? ORDER BY user_id`), true)
	} else {
		err = r.db.SelectContext(ctx, &ids, `SELECT user_id FROM users ORDER BY user_id`)
	}
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}

// SetUserActive blocks (false) or unblocks (true) a user without touching their history.
func (r *Repository) SetUserActive(ctx context.Context, userID int64, active bool) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET is_active = ? WHERE user_id = ?`), active, userID)
	if err != nil {
		return fmt.Errorf("set user %d active=%t: %w", userID, active, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user %d active=%t: %w", userID, active, err)
	}
	if n == 0 {
		return fmt.Errorf("set user %d active=%t: %w", userID, active, ErrUserNotFound)
	}
	return nil
}

// IsBlocked reports whether the user exists and is marked inactive.
func (r *Repository) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	var active bool
	err := r.db.GetContext(ctx, &active, r.db.Rebind(`SELECT is_active FROM users WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is blocked %d: %w", userID, err)
	}
	return !active, nil
}

// Stats computes usage figures relative to now. "Today" starts at midnight in now's location.
func (r *Repository) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var st Stats
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := now.Add(-7 * 24 * time.Hour)

	counts := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&st.TotalUsers, `SELECT COUNT(*) FROM users`, nil},
		{&st.UsersToday, `SELECT COUNT(*) FROM users WHERE last_seen >= ?`, []any{stamp(dayStart)}},
		{&st.UsersWeek, `SELECT COUNT(*) FROM users WHERE last_seen >= ?`, []any{stamp(weekStart)}},
		{&st.TotalSessions, `SELECT COUNT(*) FROM support_sessions`, nil},
		{&st.ActiveSessions, `SELECT COUNT(*) FROM support_sessions WHERE status = ?`, []any{statusActive}},
	}
	for _, c := range counts {
		if err := r.db.GetContext(ctx, c.dst, r.db.Rebind(c.query), c.args...); err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
	}

	var avg sql.NullFloat64
	if err := r.db.GetContext(ctx, &avg, r.db.Rebind(`SELECT AVG(message_count) FROM support_sessions WHERE status = ?`), statusClosed); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	if avg.Valid {
		st.AvgMessages = math.Round(avg.Float64*10) / 10
	}
	return st, nil
}

// RecentUsers returns up to limit users ordered by last activity.
func (r *Repository) RecentUsers(ctx context.Context, limit int) ([]User, error) {
	var users []User
	err := r.db.SelectContext(ctx, &users, r.db.Rebind(`
		SELECT user_id, COALESCE(username, '') AS username, COALESCE(full_name, '') AS full_name,
			first_seen, last_seen, total_messages, is_active
		FROM users ORDER BY last_seen DESC, user_id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("recent users: %w", err)
	}
	return users, nil
}

// RecentSessions returns up to limit sessions ordered by start time, newest first.
func (r *Repository) RecentSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	var sessions []SessionSummary
	err := r.db.SelectContext(ctx, &sessions, r.db.Rebind(`
		SELECT s.session_id, s.user_id, COALESCE(u.username, '') AS username, s.started_at,
			s.ended_at, s.ended_by, s.message_count, s.status
		FROM support_sessions s
		LEFT JOIN users u ON u.user_id = s.user_id
		ORDER BY s.started_at DESC, s.session_id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}
	return sessions, nil
}
