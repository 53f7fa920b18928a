package appointment

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TokenBytes is the entropy of a confirmation token; hex encoding doubles it to 64 chars.
const TokenBytes = 32

// NewConfirmationToken returns 64 lowercase hex characters from crypto/rand.
func NewConfirmationToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate confirmation token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ValidToken reports whether s has the shape of a confirmation token.
func ValidToken(s string) bool {
	if len(s) != TokenBytes*2 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
