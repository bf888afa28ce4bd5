package model

import (
	"crypto/rand"
	"encoding/hex"
)

// SecureRandomHex returns n cryptographically random bytes as a hex string.
// Client ids, secrets, authorization codes and token values all come from
// here, so they are long, random and opaque.
func SecureRandomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// No usable entropy source means nothing safe can be issued.
		panic(err)
	}
	return hex.EncodeToString(b)
}
