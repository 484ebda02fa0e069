package support

import "fmt"

func btn(text string, a Action) Button {
	return Button{Text: text, Data: a.Data()}
}

func backKeyboard() Keyboard {
	return Keyboard{{btn("🔙 Back", Action{Kind: ActionAdminPanel})}}
}

func backToPanelKeyboard() Keyboard {
	return Keyboard{{btn("🔙 Back to Admin Panel", Action{Kind: ActionAdminPanel})}}
}

func refreshKeyboard(kind ActionKind) Keyboard {
	return Keyboard{
		{btn("🔄 Refresh", Action{Kind: kind})},
		{btn("🔙 Back", Action{Kind: ActionAdminPanel})},
	}
}

// userMenu is the entry-point menu. Link buttons appear only when configured.
func (r *Router) userMenu() Keyboard {
	kb := Keyboard{{btn("💬 Contact Support", Action{Kind: ActionHelpSupport})}}
	if u := r.opts.Links.WebsiteURL; u != "" {
		kb = append(kb, []Button{{Text: "📱 Our Website", URL: u}})
	}
	if u := r.opts.Links.ChannelURL; u != "" {
		kb = append(kb, []Button{{Text: "📢 Updates Channel", URL: u}})
	}
	return kb
}

func supportMenu() Keyboard {
	return Keyboard{{btn("❌ End Support Chat", Action{Kind: ActionEndSupport})}}
}

func (r *Router) adminMenu() Keyboard {
	return Keyboard{
		{
			btn(fmt.Sprintf("💬 Active Chats (%d)", r.store.Count()), Action{Kind: ActionViewActiveChats}),
			btn("📊 Statistics", Action{Kind: ActionBotStats}),
		},
		{
			btn("📢 Broadcast Message", Action{Kind: ActionBroadcastMenu}),
			btn("👥 User Management", Action{Kind: ActionUserManagement}),
		},
		{
			btn("📝 Support History", Action{Kind: ActionSupportHistory}),
			btn("🔧 Bot Status "+hostingLabel(r.opts.Production), Action{Kind: ActionBotSettings}),
		},
		{btn("🗑️ Clean Chat History", Action{Kind: ActionCleanChat})},
	}
}

func adminChatKeyboard(userID int64) Keyboard {
	return Keyboard{
		{
			btn("💬 Reply", Action{Kind: ActionReply, UserID: userID}),
			btn("❌ Close & Clean", Action{Kind: ActionCloseClean, UserID: userID}),
		},
		{btn("⚠️ Block User", Action{Kind: ActionBlock, UserID: userID})},
		{btn("🔙 Back to Admin Panel", Action{Kind: ActionAdminPanel})},
	}
}

func activeChatsKeyboard(entries []ChatEntry) Keyboard {
	kb := make(Keyboard, 0, len(entries)+1)
	for _, e := range entries {
		label := fmt.Sprintf("💬 %s (Active)", Sender{ID: e.UserID, Username: e.Username}.Handle())
		kb = append(kb, []Button{btn(label, Action{Kind: ActionViewChat, UserID: e.UserID})})
	}
	return append(kb, []Button{btn("🔙 Back to Admin Panel", Action{Kind: ActionAdminPanel})})
}

func broadcastKeyboard() Keyboard {
	return Keyboard{
		{btn("📢 Send to All Users", Action{Kind: ActionBroadcastAll})},
		{btn("💬 Send to Active Chats Only", Action{Kind: ActionBroadcastActive})},
		{btn("❌ Cancel", Action{Kind: ActionAdminPanel})},
	}
}

func cancelKeyboard() Keyboard {
	return Keyboard{{btn("❌ Cancel", Action{Kind: ActionAdminPanel})}}
}

func blockedKeyboard(userID int64) Keyboard {
	return Keyboard{
		{btn(fmt.Sprintf("🔓 Unblock %d", userID), Action{Kind: ActionUnblock, UserID: userID})},
		{btn("🔙 Back to Admin Panel", Action{Kind: ActionAdminPanel})},
	}
}

func settingsKeyboard() Keyboard {
	return Keyboard{
		{btn("📊 View Stats", Action{Kind: ActionBotStats})},
		{btn("🔙 Back", Action{Kind: ActionAdminPanel})},
	}
}
