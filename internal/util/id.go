package util

import (
	"crypto/rand"
	"encoding/hex"
)

const autoIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewID returns a 128-bit random hex identifier, optionally prefixed.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewAutoID returns a 20 character alphanumeric key for stored records.
func NewAutoID() string {
	const size = 20
	buf := make([]byte, size)
	_, _ = rand.Read(buf)
	out := make([]byte, size)
	for i, b := range buf {
		// 248 is the largest multiple of 62 below 256; rejecting above it
		// keeps the distribution uniform.
		for b >= 248 {
			var one [1]byte
			_, _ = rand.Read(one[:])
			b = one[0]
		}
		out[i] = autoIDAlphabet[int(b)%len(autoIDAlphabet)]
	}
	return string(out)
}
