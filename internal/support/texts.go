package support

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/supportbot/core/telegram/format"
	"github.com/m3rciful/supportbot/internal/repository"
)

const (
	textStart        = "👋 *Welcome to Support Bot!*\n\nI'm here to help you get assistance from our team. Use the buttons below to get started."
	textIdleHint     = "👋 *Welcome!* Use the menu below:"
	textNoAdmin      = "❌ You don't have admin access."
	textAdminOnly    = "❌ Admin only command."
	textSupportStart = "💬 *SUPPORT CHAT STARTED*\n\nYou are now connected to support. Our admin will respond as soon as possible.\n\n📝 *Send your message below:*"
	textFirstSent    = "✅ *Message sent to admin!*\n\nStay here, admin will respond soon, if you left the chat the conversation will stop."
	textMessageSent  = "📤 *Message sent!*"
	textNotDelivered = "⚠️ *Message not delivered.* Please try again in a moment."
	textSupportEnded = "❌ *SUPPORT CHAT ENDED*\n\nYou have ended the support chat.\nThank you for contacting us!"
	textUnavailable  = "⚠️ Support is temporarily unavailable. Please try again later."
	textResolved     = "✅ *SUPPORT CHAT COMPLETED*\n\nThank you for contacting us! Your issue has been resolved.\n\nFeel free to contact us again anytime."
	textBlockedUser  = "🚫 You have been blocked from using this bot."
	textNoChats      = "📭 *NO ACTIVE CHATS*\n\nNo users are currently in support mode."
	textPanel        = "🔧 *ADMIN PANEL*\n\nChoose an option:"
	textPanelIdle    = "🔧 *ADMIN PANEL*\n\nYou're not currently replying to anyone.\nUse the buttons below or send /admin"
	textPanelAdmin   = "🔧 *ENHANCED ADMIN PANEL*\n\nManage your bot with advanced features!"
	textCannotBlock  = "⚠️ *You cannot block yourself.*"

	timeLayout     = "15:04:05"
	previewRunes   = 50
	listLimit      = 10
	cleanChatDepth = 50
)

func hostingLabel(production bool) string {
	if production {
		return "🟢 Production"
	}
	return "🟡 Development"
}

func handleOf(username string, userID int64) string {
	if username != "" {
		return "@" + format.Escape(username)
	}
	return fmt.Sprintf("User %d", userID)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewRunes {
		return text
	}
	return string(r[:previewRunes]) + "..."
}

func adminWelcomeText(production bool) string {
	env := "Development"
	if production {
		env = "Production"
	}
	return "🔧 *ADMIN PANEL*\n\nWelcome to the enhanced admin dashboard!\nHosting: " + env
}

func newRequestText(from Sender, text string, at time.Time) string {
	return fmt.Sprintf("🆘 *NEW SUPPORT REQUEST*\n\n👤 User: %s\n🆔 ID: `%d`\n📝 Name: %s\n🕐 Time: %s\n\n💬 *First Message:*\n%s",
		handleOf(from.Username, from.ID), from.ID, format.Escape(orDefault(from.FullName, "Unknown")),
		at.Format(timeLayout), format.Escape(text))
}

func ongoingText(userID int64, text string) string {
	return fmt.Sprintf("💬 *User %d:* %s", userID, format.Escape(text))
}

func operatorReplyText(text string) string {
	return "👨‍💼 *Admin:* " + format.Escape(text)
}

func userEndedText(userID int64) string {
	return fmt.Sprintf("ℹ️ User %d ended their support chat.", userID)
}

func replyPromptText(userID int64) string {
	return fmt.Sprintf("✍️ *REPLY MODE ACTIVATED*\n\n👤 Replying to User %d\n💬 Type your message and it will be sent instantly.", userID)
}

func replySentText(userID int64) string {
	return fmt.Sprintf("✅ *Reply sent to User %d!*\n\nUser can continue chatting.", userID)
}

func replyFailedText(userID int64, err error) string {
	return fmt.Sprintf("❌ *Failed to send reply to User %d*\n\nError: %s", userID, format.Escape(err.Error()))
}

func errorText(title string, err error) string {
	return fmt.Sprintf("❌ *%s*\n\nError: %s", title, format.Escape(err.Error()))
}

func botErrorText(err error, at time.Time) string {
	msg := strings.ReplaceAll(err.Error(), "`", "'")
	return fmt.Sprintf("⚠️ *BOT ERROR*\n\nError: `%s`\nTime: %s", msg, at.Format(time.DateTime))
}

func activeChatsText(n int) string {
	return fmt.Sprintf("💬 *ACTIVE SUPPORT CHATS* (%d)\n\nSelect a chat to manage:", n)
}

func statsText(st repository.Stats, activeChats int, production bool, adminID int64) string {
	status := "🟡 Development"
	if production {
		status = "🟢 Production (24/7)"
	}
	return fmt.Sprintf("📊 *ENHANCED BOT STATISTICS*\n\n"+
		"👥 *Users:*\n• Total Users: %d\n• Today: %d\n• This Week: %d\n\n"+
		"💬 *Support:*\n• Active Chats: %d\n• Total Sessions: %d\n• Open Sessions: %d\n• Avg Messages/Session: %.1f\n\n"+
		"🔧 *Status:* %s\n🤖 *Admin:* %d",
		st.TotalUsers, st.UsersToday, st.UsersWeek,
		activeChats, st.TotalSessions, st.ActiveSessions, st.AvgMessages,
		status, adminID)
}

func quickStatsText(st repository.Stats, activeChats int) string {
	return fmt.Sprintf("📊 *QUICK STATS*\n\n👥 Total Users: %d\n💬 Active Chats: %d\n📈 Today's Users: %d",
		st.TotalUsers, activeChats, st.UsersToday)
}

func broadcastMenuText(all, active int) string {
	return fmt.Sprintf("📢 *BROADCAST MESSAGE*\n\nAll Users: %d\nActive Chats: %d\n\nChoose broadcast type:", all, active)
}

func broadcastPromptText(scope BroadcastScope, n int) string {
	if scope == ScopeActive {
		return fmt.Sprintf("💬 *BROADCAST TO ACTIVE CHATS*\n\nReady to send to %d users in active support chats.\n\n💬 *Type your message now:*", n)
	}
	return fmt.Sprintf("📢 *BROADCAST TO ALL USERS*\n\nReady to send to %d total users.\n\n💬 *Type your message now:*", n)
}

func scopeLabel(scope BroadcastScope) string {
	if scope == ScopeActive {
		return "active chat users"
	}
	return "all users"
}

func broadcastEmptyText(scope BroadcastScope) string {
	return fmt.Sprintf("❌ No %s found to send broadcast to.", scopeLabel(scope))
}

func broadcastProgressText(scope BroadcastScope, n int) string {
	return fmt.Sprintf("📡 *BROADCASTING...*\n\nSending to %d %s...", n, scopeLabel(scope))
}

func broadcastMessageText(text string) string {
	return "📢 *ADMIN BROADCAST*\n\n" + format.Escape(text)
}

func broadcastDoneText(rep BroadcastReport, text string) string {
	return fmt.Sprintf("📊 *BROADCAST COMPLETE*\n\n🎯 Target: %s\n✅ Successfully sent: %d\n❌ Failed to send: %d\n📝 Message preview: %s\n\nTotal reach: %d/%d users",
		scopeLabel(rep.Scope), rep.Sent, rep.Failed, format.Escape(preview(text)), rep.Sent, rep.Targets)
}

func chatClosedText(e ChatEntry, deleted, failed int, at time.Time) string {
	return fmt.Sprintf("✅ *CHAT CLOSED & CLEANED*\n\n👤 User: %s\n🆔 ID: %d\n💬 Total Messages: %d\n🗑️ Deleted Messages: %d\n⚠️ Not Deleted: %d\n🕐 Closed: %s",
		handleOf(e.Username, e.UserID), e.UserID, e.MessageCount, deleted, failed, at.Format(timeLayout))
}

func chatNotActiveText(userID int64) string {
	return fmt.Sprintf("📭 *CHAT NOT ACTIVE*\n\nUser %d has no open support chat.", userID)
}

func chatDetailsText(e ChatEntry) string {
	return fmt.Sprintf("👤 *USER CHAT DETAILS*\n\n🆔 ID: %d\n👤 Username: %s\n📝 Name: %s\n💬 Messages: %d\n🟢 Status: %s\n🕐 Started: %s",
		e.UserID, handleOf(e.Username, e.UserID), format.Escape(orDefault(e.FullName, "Unknown")),
		e.MessageCount, chatStatus(e), e.StartedAt.Format(time.DateTime))
}

func chatStatus(e ChatEntry) string {
	if e.WaitingForFirstMessage {
		return "Waiting for first message"
	}
	return "Active in support"
}

func userBlockedText(userID int64) string {
	return fmt.Sprintf("🚫 *USER BLOCKED*\n\nUser %d has been blocked and removed from active chats.\nThey won't receive broadcasts anymore.", userID)
}

func userUnblockedText(userID int64) string {
	return fmt.Sprintf("✅ *USER UNBLOCKED*\n\nUser %d has been unblocked and can use the bot again.", userID)
}

func cleanChatText(deleted int) string {
	return fmt.Sprintf("🗑️ *CHAT CLEANED*\n\nDeleted %d recent messages.\n\nNote: Due to Telegram limitations, only recent messages can be deleted.", deleted)
}

func recentUsersText(users []repository.User) string {
	var b strings.Builder
	b.WriteString("👥 *RECENT USERS*\n\n")
	if len(users) == 0 {
		b.WriteString("No users found.")
		return b.String()
	}
	for _, u := range users {
		handle := "No username"
		if u.Username != "" {
			handle = "@" + format.Escape(u.Username)
		}
		blocked := ""
		if !u.IsActive {
			blocked = " 🚫"
		}
		fmt.Fprintf(&b, "• %s (%s) - ID: %d%s\n", format.Escape(orDefault(u.FullName, "Unknown")), handle, u.UserID, blocked)
	}
	return b.String()
}

func historyText(sessions []repository.SessionSummary) string {
	var b strings.Builder
	b.WriteString("📝 *SUPPORT HISTORY*\n\n")
	if len(sessions) == 0 {
		b.WriteString("No support sessions found.")
		return b.String()
	}
	for _, s := range sessions {
		emoji := "🔴"
		if s.Active() {
			emoji = "🟢"
		}
		fmt.Fprintf(&b, "%s %s - %d msgs (%s) - %s\n",
			emoji, handleOf(s.Username, s.UserID), s.MessageCount, endedInfo(s), s.StartedAt.Format("01/02 15:04"))
	}
	return b.String()
}

func endedInfo(s repository.SessionSummary) string {
	switch repository.EndReason(s.EndedBy.String) {
	case repository.EndedByAdmin:
		return "closed by admin"
	case repository.EndedByUser:
		return "ended by user"
	case repository.EndedBySystem:
		return "system closed"
	}
	if s.Active() {
		return "ongoing"
	}
	return "completed"
}

func settingsText(adminID int64, storage string, production bool) string {
	hosting := "Development"
	if production {
		hosting = "Production 24/7"
	}
	return fmt.Sprintf("🔧 *BOT SETTINGS*\n\n🤖 Bot Token: Configured\n👨‍💼 Admin ID: %d\n💾 Database: %s Active\n📊 Analytics: Enabled\n📢 Broadcast: Enabled\n🔒 Error Handler: Active\n🌐 Hosting: %s\n\n✅ All systems operational",
		adminID, orDefault(storage, "SQLite"), hosting)
}
