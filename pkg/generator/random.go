package generator

import (
	"math/rand/v2"
	"sync"
)

// RandomSource picks uniformly distributed integers in [0, n).
// *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	IntN(n int) int
}

// globalSource draws from the process-wide math/rand/v2 generator, which is safe
// for concurrent use.
type globalSource struct{}

func (globalSource) IntN(n int) int {
	return rand.IntN(n)
}

// lockedSource serialises access to a non-thread-safe *rand.Rand.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// NewSeededSource returns a reproducible source that is safe for concurrent use.
func NewSeededSource(seed uint64) RandomSource {
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}
