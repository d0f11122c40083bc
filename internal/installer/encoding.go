package installer

import (
	"encoding/base64"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeCommand returns s as base64 of its UTF-16LE bytes, the format
// PowerShell accepts for -EncodedCommand and decodes with
// [Text.Encoding]::Unicode.
func EncodeCommand(s string) (string, error) {
	raw, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return "", fmt.Errorf("encode utf-16: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeCommand reverses EncodeCommand.
func DecodeCommand(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	if len(raw)%2 != 0 {
		return "", fmt.Errorf("decode utf-16: odd payload length %d", len(raw))
	}
	text, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode utf-16: %w", err)
	}
	return string(text), nil
}
