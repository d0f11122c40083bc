// Package validation provides input validation and sanitization utilities.
package validation

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	// ErrInputEmpty indicates input that is empty after trimming.
	ErrInputEmpty = errors.New("input is empty")
	// ErrInputTooLong indicates input exceeds maximum length.
	ErrInputTooLong = errors.New("input exceeds maximum length")
	// ErrInputInvalid indicates input contains invalid characters.
	ErrInputInvalid = errors.New("input contains invalid characters")
)

// CleanName normalizes a display name (pack, device): whitespace runs
// collapse to one space, other control characters are dropped, and the
// result must hold 1 to maxLength characters.
func CleanName(name string, maxLength int) (string, error) {
	if !utf8.ValidString(name) {
		return "", ErrInputInvalid
	}

	var b strings.Builder
	space := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}

	cleaned := b.String()
	if cleaned == "" {
		return "", ErrInputEmpty
	}
	if utf8.RuneCountInString(cleaned) > maxLength {
		return "", ErrInputTooLong
	}
	return cleaned, nil
}

// IsID reports whether id looks like a resource id issued by the server.
func IsID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
