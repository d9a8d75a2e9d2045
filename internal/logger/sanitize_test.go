package logger

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		maxLength int
		want      string
	}{
		{name: "empty", input: "", maxLength: 10, want: ""},
		{name: "control characters removed", input: "a\x00b\x1bc", maxLength: 10, want: "abc"},
		{name: "newline kept", input: "a\nb", maxLength: 10, want: "a\nb"},
		{name: "truncated", input: "abcdefghij", maxLength: 4, want: "abcd..."},
		{name: "truncated on rune boundary", input: "ééééé", maxLength: 2, want: "éé..."},
		{name: "invalid utf8 dropped", input: "ok\xffok", maxLength: 10, want: "okok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeString(tt.input, tt.maxLength); got != tt.want {
				t.Errorf("SanitizeString(%q, %d) = %q, want %q", tt.input, tt.maxLength, got, tt.want)
			}
		})
	}
}

func TestSanitizeDebugContent(t *testing.T) {
	t.Parallel()

	got := SanitizeDebugContent("  fix\n\nthe   build  ")
	if got != "fix the build" {
		t.Errorf("SanitizeDebugContent() = %q", got)
	}

	long := SanitizeDebugContent(strings.Repeat("x", 200))
	if len(long) != MaxPreviewLength+len("...") {
		t.Errorf("preview length = %d", len(long))
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	if SanitizeError(nil) != "" {
		t.Error("SanitizeError(nil) should be empty")
	}
	if got := SanitizeError(errors.New("boom\x07")); got != "boom" {
		t.Errorf("SanitizeError() = %q", got)
	}
}

func TestSanitizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "credentials redacted", input: "postgres://user:secret@db:5432/capture?sslmode=disable", want: "postgres://redacted@db:5432/capture"},
		{name: "no credentials", input: "redis://localhost:6379/0", want: "redis://localhost:6379/0"},
		{name: "not a url", input: "user=me password=secret", want: "[redacted]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeURL(tt.input); got != tt.want {
				t.Errorf("SanitizeURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if strings.Contains(SanitizeURL(tt.input), "secret") {
				t.Error("secret leaked")
			}
		})
	}
}
