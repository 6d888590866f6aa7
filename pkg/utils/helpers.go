package utils

import (
	cryptorand "crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"golang.org/x/exp/rand"
)

func init() {
	rand.Seed(uint64(time.Now().UnixNano()))
}

func GenerateRandomString(limit int) string {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, limit)
	for i := range result {
		result[i] = chars[rand.Intn(len(chars))]
	}

	return string(result)
}

// NormalizeEmail lower-cases and trims an e-mail address. Stored addresses are
// always in this form, lookups must use it too.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GenerateSecret returns n bytes from crypto/rand, base64url encoded. Use it
// for signing keys and passwords, GenerateRandomString is not unpredictable.
func GenerateSecret(n int) string {
	b := make([]byte, n)
	if _, err := cryptorand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
