// rand/rand.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package rand

import (
	"time"

	"github.com/MichaelTJones/pcg"
)

// Source is the subset of random number generation that the simulation
// needs; tests substitute scripted sequences for it.
type Source interface {
	// Float32 returns a uniformly-distributed value in [0,1).
	Float32() float32
}

///////////////////////////////////////////////////////////////////////////
// Random numbers.

type Rand struct {
	r *pcg.PCG32
}

func New() *Rand {
	r := &Rand{r: pcg.NewPCG32()}
	r.Seed(time.Now().UnixNano())
	return r
}

// NewSeeded returns a generator whose sequence is fully determined by s.
func NewSeeded(s int64) *Rand {
	r := &Rand{r: pcg.NewPCG32()}
	r.Seed(s)
	return r
}

func (r *Rand) Seed(s int64) {
	r.r.Seed(uint64(s), 0xda3e39cb94b95bdb)
}

func (r *Rand) Intn(n int) int {
	return int(r.r.Bounded(uint32(n)))
}

// Float32 uses the top 24 bits so that the result is exactly representable
// and never rounds up to 1.
func (r *Rand) Float32() float32 {
	return float32(r.r.Random()>>8) / (1 << 24)
}

func (r *Rand) Uint32() uint32 {
	return r.r.Random()
}

// Sequence is a Source that replays a fixed list of values, wrapping
// around when it reaches the end. It's handy for tests that need to force
// particular random outcomes.
type Sequence struct {
	Values []float32
	next   int
}

func (s *Sequence) Float32() float32 {
	if len(s.Values) == 0 {
		return 0
	}
	v := s.Values[s.next%len(s.Values)]
	s.next++
	return v
}

// Constant is a Source that always returns the same value.
type Constant float32

func (c Constant) Float32() float32 { return float32(c) }
