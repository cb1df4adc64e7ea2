// Package sharing issues and validates public share tokens. A token is the
// only capability needed to read a completed session's result, so it must
// be unguessable: 128 random bits, hex encoded.
package sharing

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

// TokenLength is the hex-encoded token length.
const TokenLength = 32

var tokenPattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

// NewToken returns a fresh share token.
func NewToken() (string, error) {
	buf := make([]byte, TokenLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Valid reports whether s has the shape of a share token. Lookups for
// malformed tokens never reach the database.
func Valid(s string) bool {
	return tokenPattern.MatchString(s)
}
