package core

import (
	"math"
	"sync/atomic"
)

// AtomicFloat is a float64 that can be stored and loaded atomically.
// The zero value holds 0.
type AtomicFloat struct {
	bits atomic.Uint64
}

// Load returns the current value.
func (f *AtomicFloat) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

// Store sets the value.
func (f *AtomicFloat) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}
