package application

import (
	"crypto/rand"
	"encoding/hex"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const etagAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// NewConcurrencyToken returns a random opaque version stamp for a meeting.
func NewConcurrencyToken() string {
	token, err := gonanoid.Generate(etagAlphabet, 21)
	if err != nil {
		return ""
	}
	return token
}

// NewSessionToken returns 32 random bytes encoded as hex.
func NewSessionToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
