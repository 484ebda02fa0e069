package support

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// ChatState is the per-user position in the support flow.
type ChatState int

const (
	StateIdle ChatState = iota
	StateAwaitingFirstMessage
	StateInSupport
)

func (s ChatState) String() string {
	switch s {
	case StateAwaitingFirstMessage:
		return "awaiting_first_message"
	case StateInSupport:
		return "in_support"
	default:
		return "idle"
	}
}

// ChatEntry is the in-memory record of an open support chat.
// An entry exists only while its session row is active.
type ChatEntry struct {
	UserID                 int64
	Username               string
	FullName               string
	SessionID              int64
	InSupport              bool
	WaitingForFirstMessage bool
	// OperatorMessageIDs lists messages in the operator chat emitted for this user, in order.
	OperatorMessageIDs []int
	MessageCount       int
	StartedAt          time.Time
}

func (e ChatEntry) clone() ChatEntry {
	e.OperatorMessageIDs = slices.Clone(e.OperatorMessageIDs)
	return e
}

// ModeKind tags the operator's composition mode.
type ModeKind int

const (
	ModeIdle ModeKind = iota
	ModeReplying
	ModeBroadcasting
)

func (k ModeKind) String() string {
	switch k {
	case ModeReplying:
		return "replying"
	case ModeBroadcasting:
		return "broadcasting"
	default:
		return "idle"
	}
}

// BroadcastScope selects broadcast recipients.
type BroadcastScope string

const (
	ScopeAll    BroadcastScope = "all"
	ScopeActive BroadcastScope = "active"
)

// OperatorMode decides what the operator's next plain text means.
// Replying and broadcasting are exclusive by construction.
type OperatorMode struct {
	Kind         ModeKind
	TargetUserID int64
	Scope        BroadcastScope
}

// Replying returns the mode for composing a reply to userID.
func Replying(userID int64) OperatorMode {
	return OperatorMode{Kind: ModeReplying, TargetUserID: userID}
}

// Broadcasting returns the mode for composing a broadcast to scope.
func Broadcasting(scope BroadcastScope) OperatorMode {
	return OperatorMode{Kind: ModeBroadcasting, Scope: scope}
}

// Store holds open chats and the operator mode. Nothing is persisted.
type Store struct {
	mu    sync.RWMutex
	chats map[int64]*ChatEntry
	mode  OperatorMode
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{chats: make(map[int64]*ChatEntry)}
}

// Get returns a copy of the entry for userID.
func (s *Store) Get(userID int64) (ChatEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.chats[userID]
	if !ok {
		return ChatEntry{}, false
	}
	return e.clone(), true
}

// Put inserts or replaces the entry keyed by entry.UserID.
func (s *Store) Put(entry ChatEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry.clone()
	s.chats[entry.UserID] = &e
}

// Update applies fn to the stored entry and returns the result.
func (s *Store) Update(userID int64, fn func(*ChatEntry)) (ChatEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[userID]
	if !ok {
		return ChatEntry{}, false
	}
	fn(e)
	return e.clone(), true
}

// Remove deletes the entry and returns what was stored.
func (s *Store) Remove(userID int64) (ChatEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[userID]
	if !ok {
		return ChatEntry{}, false
	}
	delete(s.chats, userID)
	return *e, true
}

// Active returns entries in support, oldest first.
func (s *Store) Active() []ChatEntry {
	s.mu.RLock()
	out := make([]ChatEntry, 0, len(s.chats))
	for _, e := range s.chats {
		if e.InSupport {
			out = append(out, e.clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// ActiveUserIDs lists users currently in support.
func (s *Store) ActiveUserIDs() []int64 {
	entries := s.Active()
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	return ids
}

// Count returns the number of users in support.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.chats {
		if e.InSupport {
			n++
		}
	}
	return n
}

// State derives the flow state of userID.
func (s *Store) State(userID int64) ChatState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.chats[userID]
	switch {
	case !ok || !e.InSupport:
		return StateIdle
	case e.WaitingForFirstMessage:
		return StateAwaitingFirstMessage
	default:
		return StateInSupport
	}
}

func (s *Store) Mode() OperatorMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Store) SetMode(m OperatorMode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

func (s *Store) ClearMode() {
	s.SetMode(OperatorMode{})
}

// ClearReplyTo leaves replying mode if it targets userID.
func (s *Store) ClearReplyTo(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode.Kind == ModeReplying && s.mode.TargetUserID == userID {
		s.mode = OperatorMode{}
		return true
	}
	return false
}
