package repository

import (
	"database/sql"
	"time"
)

// EndReason records who closed a support session.
type EndReason string

const (
	// EndedByAdmin marks sessions closed by the operator.
	EndedByAdmin EndReason = "admin"
	// EndedByUser marks sessions ended by the user.
	EndedByUser EndReason = "user"
	// EndedBySystem marks sessions closed by startup reconciliation or shutdown.
	EndedBySystem EndReason = "system"
)

const (
	statusActive = "active"
	statusClosed = "closed"
)

// User is one row of the users table.
type User struct {
	UserID        int64     `db:"user_id"`
	Username      string    `db:"username"`
	FullName      string    `db:"full_name"`
	FirstSeen     time.Time `db:"first_seen"`
	LastSeen      time.Time `db:"last_seen"`
	TotalMessages int       `db:"total_messages"`
	IsActive      bool      `db:"is_active"`
}

// SessionSummary is a support session joined with its user's handle.
type SessionSummary struct {
	SessionID    int64          `db:"session_id"`
	UserID       int64          `db:"user_id"`
	Username     string         `db:"username"`
	StartedAt    time.Time      `db:"started_at"`
	EndedAt      sql.NullTime   `db:"ended_at"`
	EndedBy      sql.NullString `db:"ended_by"`
	MessageCount int            `db:"message_count"`
	Status       string         `db:"status"`
}

// Active reports whether the session is still open.
func (s SessionSummary) Active() bool { return s.Status == statusActive }

// Stats aggregates usage figures for the operator.
type Stats struct {
	TotalUsers     int
	UsersToday     int
	UsersWeek      int
	TotalSessions  int
	ActiveSessions int
	// AvgMessages is the mean message count of closed sessions, rounded to one decimal.
	AvgMessages float64
}
