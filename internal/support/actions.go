package support

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownAction is returned for callback payloads outside the known set.
var ErrUnknownAction = errors.New("support: unknown action")

// ActionKind enumerates the button presses the router understands.
type ActionKind int

const (
	ActionHelpSupport ActionKind = iota + 1
	ActionEndSupport
	ActionAdminPanel
	ActionViewActiveChats
	ActionBotStats
	ActionBroadcastMenu
	ActionBroadcastAll
	ActionBroadcastActive
	ActionUserManagement
	ActionSupportHistory
	ActionBotSettings
	ActionCleanChat
	ActionViewChat
	ActionReply
	ActionCloseClean
	ActionBlock
	ActionUnblock
)

var actionTokens = map[string]ActionKind{
	"help_support":      ActionHelpSupport,
	"end_support":       ActionEndSupport,
	"admin_panel":       ActionAdminPanel,
	"view_active_chats": ActionViewActiveChats,
	"bot_stats":         ActionBotStats,
	"broadcast":         ActionBroadcastMenu,
	"broadcast_all":     ActionBroadcastAll,
	"broadcast_active":  ActionBroadcastActive,
	"user_management":   ActionUserManagement,
	"support_history":   ActionSupportHistory,
	"bot_settings":      ActionBotSettings,
	"clean_chat":        ActionCleanChat,
}

// Actions carrying a user id are encoded as prefix + decimal id.
var actionPrefixes = []struct {
	prefix string
	kind   ActionKind
}{
	{"close_clean_", ActionCloseClean},
	{"view_chat_", ActionViewChat},
	{"unblock_", ActionUnblock},
	{"block_", ActionBlock},
	{"reply_", ActionReply},
}

// Action is a decoded callback payload.
type Action struct {
	Kind ActionKind
	// UserID is set for per-user actions only.
	UserID int64
}

// ParseAction decodes callback data into an Action.
func ParseAction(data string) (Action, error) {
	if kind, ok := actionTokens[data]; ok {
		return Action{Kind: kind}, nil
	}
	for _, p := range actionPrefixes {
		rest, ok := strings.CutPrefix(data, p.prefix)
		if !ok {
			continue
		}
		id, err := parseUserID(rest)
		if err != nil {
			return Action{}, fmt.Errorf("%w: %q: %v", ErrUnknownAction, data, err)
		}
		return Action{Kind: p.kind, UserID: id}, nil
	}
	return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, data)
}

func parseUserID(s string) (int64, error) {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return 0, errors.New("user id must be a positive integer")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("user id must be a positive integer")
	}
	return id, nil
}

// Data encodes the action back into callback data.
func (a Action) Data() string {
	for token, kind := range actionTokens {
		if kind == a.Kind {
			return token
		}
	}
	for _, p := range actionPrefixes {
		if p.kind == a.Kind {
			return p.prefix + strconv.FormatInt(a.UserID, 10)
		}
	}
	return ""
}

// OperatorOnly reports whether only the operator may trigger the action.
func (a Action) OperatorOnly() bool {
	return a.Kind != ActionHelpSupport && a.Kind != ActionEndSupport
}

func (k ActionKind) String() string {
	for _, p := range actionPrefixes {
		if p.kind == k {
			return strings.TrimSuffix(p.prefix, "_")
		}
	}
	for token, kind := range actionTokens {
		if kind == k {
			return token
		}
	}
	return "unknown"
}
