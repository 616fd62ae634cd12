package multicast

import (
	"crypto/rand"
	"encoding/binary"
)

// RandomSource supplies the randomness used to spread report times. The
// second return value reports whether a random value could be produced;
// on failure callers substitute a deterministic fallback, never an error.
type RandomSource interface {
	Uint32() (uint32, bool)
}

// RandomFunc adapts a plain function to the RandomSource interface.
type RandomFunc func() (uint32, bool)

// Uint32 calls f.
func (f RandomFunc) Uint32() (uint32, bool) { return f() }

type cryptoSource struct{}

func (cryptoSource) Uint32() (uint32, bool) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b[:]), true
}

// DefaultRandomSource draws from the operating system's entropy source.
var DefaultRandomSource RandomSource = cryptoSource{}
