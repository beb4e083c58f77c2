package utils

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

// GenerateSecureRandomString returns a URL-safe random string built from n random bytes.
// It is used for the state and nonce correlation values of authorization requests.
func GenerateSecureRandomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MaskToken masks a token, showing only the first 8 characters
func MaskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:8] + strings.Repeat("*", len(token)-8)
}
