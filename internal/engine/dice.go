package engine

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
	"sync"
)

// RNG is the only source of randomness the engine consumes. Initiative rolls
// use IntN; critical hits use Float64.
type RNG interface {
	IntN(n int) int
	Float64() float64
}

// NewRNG returns a seeded PCG generator. A zero seed draws one from crypto/rand.
func NewRNG(seed uint64) RNG {
	if seed == 0 {
		seed = NewSeed()
	}
	return mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewSeed draws a seed from the operating system.
func NewSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 1
	}
	return binary.LittleEndian.Uint64(b[:])
}

// D20 rolls a twenty-sided die.
func D20(r RNG) int {
	return r.IntN(20) + 1
}

// SequenceRNG replays scripted values for deterministic tests. Ints are die
// faces (1..n) and are converted to the 0-based IntN result; both queues
// cycle when exhausted.
type SequenceRNG struct {
	mu     sync.Mutex
	Ints   []int
	Floats []float64
	ii, fi int
}

func (s *SequenceRNG) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Ints) == 0 || n <= 0 {
		return 0
	}
	v := s.Ints[s.ii%len(s.Ints)] - 1
	s.ii++
	if v < 0 {
		v = 0
	}
	if v >= n {
		v = n - 1
	}
	return v
}

func (s *SequenceRNG) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Floats) == 0 {
		return 0.99
	}
	v := s.Floats[s.fi%len(s.Floats)]
	s.fi++
	return v
}
