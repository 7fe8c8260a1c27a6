package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
)

// HMACSHA256 computes HMAC-SHA-256(secret, data).
func HMACSHA256(secret, data []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	return mac.Sum(nil)
}

// VerifyHMACSHA256 recomputes the MAC and compares in constant time.
func VerifyHMACSHA256(secret, data, signature []byte) bool {
	expected := HMACSHA256(secret, data)
	return ConstantTimeEqual(expected, signature)
}

// ConstantTimeEqual compares two byte slices without leaking timing
// information about where they first differ.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
