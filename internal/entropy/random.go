// Package entropy provides the random sources used to lay out particles.
// Runs are seeded from crypto/rand unless the host pins a seed, so
// unpinned runs are statistically equivalent but never identical.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
	"sync/atomic"
	"time"
)

// fallbackCounter decorrelates time-based seeds drawn in the same instant.
var fallbackCounter atomic.Int64

// Seed returns a non-zero seed drawn from crypto/rand.
// Falls back to the clock if the system source fails.
func Seed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; the clock still gives a usable seed.
		slog.Debug("crypto seed failed, using clock", "error", err)
		return time.Now().UnixNano() + fallbackCounter.Add(1)
	}
	s := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if s == 0 {
		s = 1
	}
	return s
}

// Resolve returns seed unchanged when pinned, or a fresh one when zero.
func Resolve(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return Seed()
}

// NewRand returns a generator for one simulation instance. The generator is
// not safe for concurrent use; each instance owns its own.
func NewRand(seed int64) *mrand.Rand {
	return mrand.New(mrand.NewSource(seed))
}
