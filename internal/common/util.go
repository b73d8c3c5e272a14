package common

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// MakeRandHexString generates a random hexadecimal string of the given size.
// The result is twice as long as size since each byte expands to two hex
// characters.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// WipeByteArray overwrites b with zeros. Nil is ignored.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// TimestampLayout is RFC 3339 with a fixed six-digit fraction, so stored
// strings sort lexically in time order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Timestamp renders t the way every datastore column expects it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// MaskSecret keeps the first n characters of s and hides the rest.
func MaskSecret(s string, n int) string {
	if s == "" {
		return ""
	}
	if len(s) <= n {
		return strings.Repeat("*", len(s))
	}
	return s[:n] + "..."
}
