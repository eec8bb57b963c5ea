package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Request limits applied by the gateway before a body reaches the chat
// service.
const (
	// DefaultMaxJSONDepth bounds the nesting of a JSON body. Chat requests
	// are flat, so anything deeper is rejected before decoding.
	DefaultMaxJSONDepth = 32
	// MaxIdentifierLen bounds session and user IDs.
	MaxIdentifierLen = 128
)

var (
	ErrJSONTooDeep       = errors.New("JSON nesting exceeds maximum depth")
	ErrInvalidJSON       = errors.New("invalid JSON")
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// ValidateJSONDepth walks the tokens of data and fails once nesting goes
// past limit (DefaultMaxJSONDepth when limit <= 0), or on malformed JSON.
// An empty body is valid.
func ValidateJSONDepth(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxJSONDepth
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	for depth := 0; ; {
		tok, err := dec.Token()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}

		d, ok := tok.(json.Delim)
		if !ok {
			continue
		}
		if d == '{' || d == '[' {
			if depth++; depth > limit {
				return fmt.Errorf("%w: depth %d (max %d)", ErrJSONTooDeep, depth, limit)
			}
		} else {
			depth--
		}
	}
}

// ValidateIdentifier checks a client-supplied session or user ID. Empty is
// accepted: the chat service creates a session or treats the user as
// anonymous. Otherwise the ID is at most MaxIdentifierLen bytes of
// letters, digits and "._:@-", which keeps IDs safe to log and to echo in
// URLs.
func ValidateIdentifier(field, id string) error {
	if len(id) > MaxIdentifierLen {
		return fmt.Errorf("%w: %s longer than %d bytes", ErrInvalidIdentifier, field, MaxIdentifierLen)
	}
	for i := 0; i < len(id); i++ {
		if !identByte(id[i]) {
			return fmt.Errorf("%w: %s contains %q", ErrInvalidIdentifier, field, id[i])
		}
	}
	return nil
}

func identByte(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '.', '_', ':', '@', '-':
		return true
	}
	return false
}
