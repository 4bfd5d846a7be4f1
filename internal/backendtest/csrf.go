package backendtest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const csrfRandLength = 32

func formMessage(sessionID, randValue string) []byte {
	return fmt.Appendf(nil, "%d!%s!%d!%s", len(sessionID), sessionID, len(randValue), randValue)
}

// NewCSRFToken returns a token bound to sessionID the way the backend issues them.
func NewCSRFToken(sessionID string, key []byte) string {
	buf := make([]byte, csrfRandLength)
	_, _ = rand.Read(buf)
	randValue := hex.EncodeToString(buf)

	hash := hmac.New(sha256.New, key)
	hash.Write(formMessage(sessionID, randValue))

	return hex.EncodeToString(hash.Sum(nil)) + "." + hex.EncodeToString([]byte(randValue))
}

func ValidateCSRFToken(token, sessionID string, key []byte) bool {
	hmacHex, randHex, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}

	receivedHmacValue, err := hex.DecodeString(hmacHex)
	if err != nil {
		return false
	}

	randValue, err := hex.DecodeString(randHex)
	if err != nil {
		return false
	}

	hash := hmac.New(sha256.New, key)
	hash.Write(formMessage(sessionID, string(randValue)))

	return hmac.Equal(receivedHmacValue, hash.Sum(nil))
}
