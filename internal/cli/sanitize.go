package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxPayloadSize bounds payloads read from arguments or stdin.
const DefaultMaxPayloadSize = 1 << 20

// EnvMaxPayloadSize overrides DefaultMaxPayloadSize.
const EnvMaxPayloadSize = "PATHFLOW_MAX_PAYLOAD_SIZE"

var (
	ErrPayloadTooLarge = errors.New("payload exceeds maximum allowed size")
	ErrInvalidUTF8     = errors.New("payload contains invalid UTF-8 sequences")
)

// SanitizeInput rejects oversized or non UTF-8 input and strips control
// characters other than newline, tab and carriage return.
func SanitizeInput(input string) (string, error) {
	if limit := MaxPayloadSize(); len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrPayloadTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}
	if !strings.ContainsFunc(input, unsafeControl) {
		return input, nil
	}
	return strings.Map(func(r rune) rune {
		if unsafeControl(r) {
			return -1
		}
		return r
	}, input), nil
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

// MaxPayloadSize returns the payload limit, honoring EnvMaxPayloadSize.
func MaxPayloadSize() int {
	if v := os.Getenv(EnvMaxPayloadSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultMaxPayloadSize
}
