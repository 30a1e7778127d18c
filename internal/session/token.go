package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenSize en bytes: 256 bits de entropia.
const tokenSize = 32

// NewToken genera un token de sesion opaco, apto para cookie y header.
func NewToken() (string, error) {
	b := make([]byte, tokenSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// tokenPrefix recorta el token para logs.
func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
