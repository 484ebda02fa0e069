package telegram

import (
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/supportbot/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestRegistryLookupCommand(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start", Aliases: []string{"help"}})
	reg.RegisterCommand("/admin", commands.Command{Handler: noop, Description: "Admin", AdminOnly: true})

	tests := []struct {
		text string
		key  string
		ok   bool
	}{
		{"/start", "/start", true},
		{"/start@support_bot", "/start", true},
		{"/start payload", "/start", true},
		{"/help", "/start", true},
		{"/admin", "/admin", true},
		{"hello", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		key, _, ok := reg.LookupCommand(tt.text)
		if ok != tt.ok || key != tt.key {
			t.Errorf("LookupCommand(%q) = %q, %v; want %q, %v", tt.text, key, ok, tt.key, tt.ok)
		}
	}
}

func TestRegistryRejectsInvalidCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("start", commands.Command{Handler: noop, Description: "no slash"})
	reg.RegisterCommand("/nodesc", commands.Command{Handler: noop})
	reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "Stats"})
	reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "Duplicate"})

	if got := len(reg.Commands()); got != 1 {
		t.Fatalf("commands = %d, want 1", got)
	}
	if reg.Commands()["/stats"].Description != "Stats" {
		t.Fatal("duplicate registration must not replace the first command")
	}
}

func TestRegistryListCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "Stats", AdminOnly: true})
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start"})
	reg.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "Debug", Hidden: true})

	list := reg.ListCommands(true)
	if len(list) != 2 || list[0].Text != "start" || list[1].Text != "stats" {
		t.Fatalf("unexpected visible commands: %+v", list)
	}
	if all := reg.ListCommands(false); len(all) != 3 {
		t.Fatalf("unexpected command count: %d", len(all))
	}
}

func TestRegistryAliasesCannotShadowCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "Stats"})
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start", Aliases: []string{"/stats", "go"}})
	reg.RegisterCommand("/go", commands.Command{Handler: noop, Description: "Taken by alias"})

	if key, _, _ := reg.LookupCommand("/stats"); key != "/stats" {
		t.Fatalf("/stats resolved to %q", key)
	}
	if key, _, _ := reg.LookupCommand("go"); key != "/start" {
		t.Fatalf("go resolved to %q", key)
	}
	if len(reg.Commands()) != 2 {
		t.Fatalf("commands = %d, alias name must not be registered twice", len(reg.Commands()))
	}
}
