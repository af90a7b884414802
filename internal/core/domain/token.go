package domain

import (
	"encoding/base64"
	"strings"

	"github.com/yndnr/sessionguard/pkg/token"
)

// Token constants.
const (
	// TokenPrefix is the prefix for credentials handed to clients.
	TokenPrefix = "sgtk_"

	// TokenBodyLength is the Base64 RawURL encoded length (32 bytes -> 43 chars).
	TokenBodyLength = 43

	// TokenLength is the total token length (prefix + body).
	TokenLength = len(TokenPrefix) + TokenBodyLength
)

// GenerateToken generates an opaque, unguessable credential.
// The token carries no claims; it only means something through the identity store.
func GenerateToken() (string, error) {
	body, err := token.Generate()
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return TokenPrefix + body, nil
}

// ValidateTokenFormat checks if a string has the shape of a generated token.
func ValidateTokenFormat(tok string) bool {
	if len(tok) != TokenLength || !strings.HasPrefix(tok, TokenPrefix) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(tok[len(TokenPrefix):])
	return err == nil
}

// TokensEqual compares two credentials in constant time.
func TokensEqual(a, b string) bool {
	return token.Equal(a, b)
}

// MaskToken masks a token for safe logging.
// Example: sgtk_ABC...xyz
func MaskToken(tok string) string {
	if !strings.HasPrefix(tok, TokenPrefix) {
		return "***REDACTED***"
	}
	body := tok[len(TokenPrefix):]
	if len(body) > 6 {
		return TokenPrefix + body[:3] + "..." + body[len(body)-3:]
	}
	return TokenPrefix + "***"
}
