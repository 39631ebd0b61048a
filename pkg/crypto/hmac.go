package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
)

// HMACSize is the length of an HMAC-SHA256 tag in bytes.
const HMACSize = sha256.Size

// HMACSHA256 computes the HMAC-SHA256 of a message using the given key.
//
// Returns a 32-byte MAC.
func HMACSHA256(key, message []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(message)
	return h.Sum(nil)
}

// HMACEqual compares two MACs for equality in constant time.
// This should be used instead of bytes.Equal to prevent timing attacks.
func HMACEqual(mac1, mac2 []byte) bool {
	return hmac.Equal(mac1, mac2)
}
