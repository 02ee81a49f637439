package sandbox

import (
	"hash/fnv"
	"math/rand/v2"
	"strings"
)

// HashSeed maps a seed string to a 32-bit FNV-1a hash.
func HashSeed(seed string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(seed))
	return h.Sum32()
}

// NormalizeSeed trims a seed and reports whether one was given.
func NormalizeSeed(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	return v, v != ""
}

type rng struct {
	*rand.Rand
}

func newRng(seed string) rng {
	h := uint64(HashSeed(seed))
	return rng{rand.New(rand.NewPCG(h, h<<32|h))}
}

// between returns an int in [lo, hi].
func (r rng) between(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + r.IntN(hi-lo+1)
}

func (r rng) chance(p float64) bool {
	return r.Float64() < p
}

func pick[T any](r rng, items []T) T {
	return items[r.IntN(len(items))]
}
