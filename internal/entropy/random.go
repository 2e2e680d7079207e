// Package entropy provides the seeded random sources owned by each simulation run.
// A zero seed means "pick one": it is replaced by a value from crypto/rand.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
)

// pcgStream is xored into the seed to build the second PCG word.
const pcgStream = 0x9e3779b97f4a7c15

// New returns a PCG-backed generator for the given seed. The generator also
// satisfies rand.Source, so it can feed gonum distributions directly.
func New(seed uint64) *mrand.Rand {
	return mrand.New(mrand.NewPCG(seed, seed^pcgStream))
}

// Resolve returns seed unchanged unless it is zero, in which case a fresh
// seed is drawn from crypto/rand.
func Resolve(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return CryptoSeed()
}

// Derive mixes a base seed with a sequence of keys (cell index, realization
// number, ...) into an independent child seed. Same inputs, same output.
func Derive(base uint64, keys ...uint64) uint64 {
	h := splitmix(base)
	for _, k := range keys {
		h = splitmix(h ^ splitmix(k+1))
	}
	if h == 0 {
		// Zero is reserved for "random".
		h = pcgStream
	}
	return h
}

// Chance reports whether a Bernoulli trial with probability p succeeds.
func Chance(rng *mrand.Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return rng.Float64() < p
}

// CryptoSeed generates a non-zero seed using crypto/rand.
func CryptoSeed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		return pcgStream
	}
	s := binary.LittleEndian.Uint64(buf[:])
	if s == 0 {
		return pcgStream
	}
	return s
}

func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
