package validation

import (
	"strings"
	"testing"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"plain", "Work", "Work", nil},
		{"trimmed", "  Work  ", "Work", nil},
		{"inner whitespace", "Dev\t\tbox\nA", "Dev box A", nil},
		{"control chars", "Ga\x00m\x07es", "Games", nil},
		{"unicode", "Büro 🎮", "Büro 🎮", nil},
		{"empty", "   ", "", ErrInputEmpty},
		{"only control", "\x01\x02", "", ErrInputEmpty},
		{"too long", strings.Repeat("é", 11), "", ErrInputTooLong},
		{"max length", strings.Repeat("é", 10), strings.Repeat("é", 10), nil},
		{"invalid utf8", "ab\xff", "", ErrInputInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanName(tt.input, 10)
			if err != tt.wantErr {
				t.Fatalf("CleanName(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CleanName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsID(t *testing.T) {
	if !IsID("0b7e9a4e-4f3c-4a8e-9a51-0f1f5b7f2c11") {
		t.Error("expected uuid to be accepted")
	}
	for _, id := range []string{"", "42", "../etc/passwd", "0b7e9a4e-4f3c-4a8e-9a51"} {
		if IsID(id) {
			t.Errorf("IsID(%q) = true", id)
		}
	}
}
