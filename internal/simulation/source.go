package simulation

import "math/rand/v2"

// RandomSource supplies the draws a tick consumes. *rand.Rand satisfies it.
type RandomSource interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// IntN returns a value in [0, n).
	IntN(n int) int
}

// NewSource returns a generator seeded with seed, or from the runtime's
// entropy when seed is zero.
func NewSource(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// uniform draws from [lo, hi).
func uniform(r RandomSource, lo, hi float64) float64 {
	return lo + (hi-lo)*r.Float64()
}

// uniformInt draws from [lo, hi] inclusive.
func uniformInt(r RandomSource, lo, hi int) int {
	return lo + r.IntN(hi-lo+1)
}

func clamp(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}
