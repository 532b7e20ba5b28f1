package logsanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "login_required", want: "login_required"},
		{name: "newline", in: "bad\nline", want: "bad_line"},
		{name: "tab kept", in: "a\tb", want: "a\tb"},
		{name: "del and c1", in: "a\x7fb\u0085c", want: "a_b_c"},
		{name: "c0 bounds", in: "\x00x\x1f", want: "_x_"},
		{name: "c1 bounds", in: "\u0080x\u009f\u00a0", want: "_x_\u00a0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeTruncates(t *testing.T) {
	long := strings.Repeat("é", 300)

	got := Sanitize(long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncation marker, got %q", got[len(got)-10:])
	}
	if len(got) > maxLen+3 {
		t.Errorf("length = %d, want <= %d", len(got), maxLen+3)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a multi-byte rune")
	}
}
