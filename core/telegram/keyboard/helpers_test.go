package keyboard

import "testing"

func TestInlineButtonsRows(t *testing.T) {
	m := InlineButtonsRows(
		[]InlineBtn{{Text: "Reply", Data: "reply_7"}, {Text: "Close", Data: "close_clean_7"}},
		nil,
		[]InlineBtn{{Text: "Site", URL: "https://example.com"}},
		[]InlineBtn{{Text: "Menu", Unique: "menu", Data: "open"}},
	)
	if m == nil || len(m.InlineKeyboard) != 3 {
		t.Fatalf("unexpected markup: %+v", m)
	}
	if got := m.InlineKeyboard[0][1]; got.Data != "close_clean_7" || got.Unique != "" {
		t.Fatalf("raw data button = %+v", got)
	}
	if got := m.InlineKeyboard[1][0]; got.URL != "https://example.com" || got.Data != "" {
		t.Fatalf("url button = %+v", got)
	}
	if got := m.InlineKeyboard[2][0]; got.Unique != "menu" {
		t.Fatalf("unique button = %+v", got)
	}
}

func TestInlineButtonsRowsEmpty(t *testing.T) {
	if m := InlineButtonsRows(); m != nil {
		t.Fatalf("expected nil markup, got %+v", m)
	}
}

func TestInlineButtonsNPerRow(t *testing.T) {
	btns := []InlineBtn{{Text: "a", Data: "a"}, {Text: "b", Data: "b"}, {Text: "c", Data: "c"}}
	m := InlineButtonsNPerRow(btns, 2)
	if len(m.InlineKeyboard) != 2 || len(m.InlineKeyboard[0]) != 2 || len(m.InlineKeyboard[1]) != 1 {
		t.Fatalf("unexpected rows: %+v", m.InlineKeyboard)
	}
	if m := InlineButtonsNPerRow(btns, 1); len(m.InlineKeyboard) != 3 {
		t.Fatalf("one per row expected, got %d rows", len(m.InlineKeyboard))
	}
}
