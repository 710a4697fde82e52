package utils

import (
	"strings"
	"testing"
)

func TestTailLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  string
	}{
		{"empty", "", 5, ""},
		{"fewer than n", "a\nb\n", 5, "a|b"},
		{"exactly n", "a\nb\nc\n", 3, "a|b|c"},
		{"more than n", "a\nb\nc\nd\ne\n", 2, "d|e"},
		{"no trailing newline", "a\nb", 1, "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(TailLines(tt.input, tt.n), "|")
			if got != tt.want {
				t.Errorf("TailLines(%q, %d) = %q; want %q", tt.input, tt.n, got, tt.want)
			}
		})
	}
}

func TestShortSHA(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0123456789abcdef", "0123456"},
		{"abc", "abc"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ShortSHA(tt.input); got != tt.expected {
				t.Errorf("ShortSHA(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}
