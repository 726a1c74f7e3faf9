package util

import "crypto/rand"

// NewID returns a random base32 identifier carrying at least 128 bits. It
// names wizard sessions, request ids and stored objects.
func NewID() string {
	return rand.Text()
}
