package format

import "testing"

func TestEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"@user_name", `@user\_name`},
		{"snake_case *bold* `code` [link]", `snake\_case \*bold\* \` + "`" + `code\` + "`" + ` \[link]`},
		{"v1.5 (approx) 2+2=4!", "v1.5 (approx) 2+2=4!"},
	}
	for _, tt := range tests {
		if got := Escape(tt.in); got != tt.want {
			t.Errorf("Escape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
