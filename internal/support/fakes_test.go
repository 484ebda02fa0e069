package support

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/supportbot/internal/repository"
)

type fakeSession struct {
	id     int64
	userID int64
	reason repository.EndReason
	count  int
	active bool
}

type fakeRepo struct {
	mu       sync.Mutex
	users    map[int64]*repository.User
	sessions []*fakeSession
	nextID   int64

	failOpen    error
	failClose   error
	failBlocked error
	failList    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[int64]*repository.User)}
}

func (f *fakeRepo) TouchUser(_ context.Context, userID int64, username, fullName string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		u = &repository.User{UserID: userID, FirstSeen: at}
		f.users[userID] = u
	}
	u.Username, u.FullName, u.LastSeen = username, fullName, at
	u.TotalMessages++
	u.IsActive = true
	return nil
}

func (f *fakeRepo) OpenSession(_ context.Context, userID int64, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOpen != nil {
		return 0, f.failOpen
	}
	for _, s := range f.sessions {
		if s.userID == userID && s.active {
			s.active, s.reason = false, repository.EndedBySystem
		}
	}
	f.nextID++
	f.sessions = append(f.sessions, &fakeSession{id: f.nextID, userID: userID, active: true})
	return f.nextID, nil
}

func (f *fakeRepo) CloseSession(_ context.Context, sessionID int64, reason repository.EndReason, count int, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failClose != nil {
		return f.failClose
	}
	for _, s := range f.sessions {
		if s.id == sessionID && s.active {
			s.active, s.reason, s.count = false, reason, count
			return nil
		}
	}
	return fmt.Errorf("close session %d: %w", sessionID, repository.ErrSessionNotActive)
}

func (f *fakeRepo) CloseActiveSessions(_ context.Context, reason repository.EndReason, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.sessions {
		if s.active {
			s.active, s.reason = false, reason
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) ListUserIDs(_ context.Context, activeOnly bool) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	var ids []int64
	for id, u := range f.users {
		if !activeOnly || u.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeRepo) SetUserActive(_ context.Context, userID int64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.IsActive = active
	return nil
}

func (f *fakeRepo) IsBlocked(_ context.Context, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBlocked != nil {
		return false, f.failBlocked
	}
	u, ok := f.users[userID]
	return ok && !u.IsActive, nil
}

func (f *fakeRepo) Stats(context.Context, time.Time) (repository.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := repository.Stats{TotalUsers: len(f.users), TotalSessions: len(f.sessions)}
	for _, s := range f.sessions {
		if s.active {
			st.ActiveSessions++
		}
	}
	return st, nil
}

func (f *fakeRepo) RecentUsers(context.Context, int) ([]repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeRepo) RecentSessions(context.Context, int) ([]repository.SessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.SessionSummary
	for _, s := range f.sessions {
		status := "closed"
		if s.active {
			status = "active"
		}
		out = append(out, repository.SessionSummary{SessionID: s.id, UserID: s.userID, MessageCount: s.count, Status: status})
	}
	return out, nil
}

func (f *fakeRepo) activeSessions(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		if s.userID == userID && s.active {
			n++
		}
	}
	return n
}

func (f *fakeRepo) totalActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		if s.active {
			n++
		}
	}
	return n
}

func (f *fakeRepo) sessionsOf(userID int64) []fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeSession
	for _, s := range f.sessions {
		if s.userID == userID {
			out = append(out, *s)
		}
	}
	return out
}

type outbound struct {
	chatID int64
	msgID  int
	text   string
	kb     Keyboard
}

type fakeMessenger struct {
	mu       sync.Mutex
	nextID   int
	attempts map[int64]int
	sent     []outbound
	edited   []outbound
	deleted  []int
	notified []outbound

	failSend   map[int64]bool
	failDelete map[int]bool
	failEdit   bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		nextID:     100,
		attempts:   make(map[int64]int),
		failSend:   make(map[int64]bool),
		failDelete: make(map[int]bool),
	}
}

func (m *fakeMessenger) Send(_ context.Context, chatID int64, text string, kb Keyboard) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[chatID]++
	if m.failSend[chatID] {
		return 0, errors.New("telegram: Forbidden: bot was blocked by the user (403)")
	}
	m.nextID++
	m.sent = append(m.sent, outbound{chatID: chatID, msgID: m.nextID, text: text, kb: kb})
	return m.nextID, nil
}

func (m *fakeMessenger) Edit(_ context.Context, chatID int64, messageID int, text string, kb Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failEdit {
		return errors.New("telegram: message can't be edited (400)")
	}
	m.edited = append(m.edited, outbound{chatID: chatID, msgID: messageID, text: text, kb: kb})
	return nil
}

func (m *fakeMessenger) Delete(_ context.Context, _ int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete[messageID] {
		return errors.New("telegram: message to delete not found (400)")
	}
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *fakeMessenger) Notify(_ context.Context, chatID int64, text string, kb Keyboard) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, outbound{chatID: chatID, text: text, kb: kb})
}

// sentTo returns messages delivered to chatID that contain substr.
func (m *fakeMessenger) sentTo(chatID int64, substr string) []outbound {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []outbound
	for _, o := range m.sent {
		if o.chatID == chatID && strings.Contains(o.text, substr) {
			out = append(out, o)
		}
	}
	return out
}

func (m *fakeMessenger) last() outbound {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return outbound{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *fakeMessenger) lastEdit() outbound {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.edited) == 0 {
		return outbound{}
	}
	return m.edited[len(m.edited)-1]
}
