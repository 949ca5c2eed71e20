// Package oscillator provides a wavetable phase-accumulator oscillator for
// use as a low-frequency modulation source.
package oscillator

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-flanger/dsp/core"
	"github.com/cwbudde/algo-flanger/dsp/wavetable"
)

// Errors returned by Initialize.
var (
	ErrNoTable           = errors.New("oscillator: wavetable is nil")
	ErrInvalidSampleRate = errors.New("oscillator: sample rate must be > 0 and finite")
)

// Oscillator reads a shared wavetable at a settable frequency and gain.
//
// NextSample and Reset belong to the audio goroutine. SetFrequency and
// SetGain may be called from any goroutine; the new value is used by the
// next NextSample call.
type Oscillator struct {
	table      *wavetable.Table
	sampleRate float64
	phase      float64

	frequency core.AtomicFloat
	gain      core.AtomicFloat
}

// Initialize binds o to table and sets the initial frequency.
// The table is referenced, not owned. Gain is left unchanged.
func (o *Oscillator) Initialize(table *wavetable.Table, frequencyHz, sampleRate float64) error {
	if table == nil {
		return ErrNoTable
	}

	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("%w: %f", ErrInvalidSampleRate, sampleRate)
	}

	o.table = table
	o.sampleRate = sampleRate
	o.phase = 0
	o.frequency.Store(frequencyHz)

	return nil
}

// SetFrequency sets the oscillation frequency in Hz without touching phase.
func (o *Oscillator) SetFrequency(hz float64) {
	o.frequency.Store(hz)
}

// SetGain sets the output gain.
func (o *Oscillator) SetGain(g float64) {
	o.gain.Store(g)
}

// Frequency returns the current frequency in Hz.
func (o *Oscillator) Frequency() float64 { return o.frequency.Load() }

// Gain returns the current gain.
func (o *Oscillator) Gain() float64 { return o.gain.Load() }

// Phase returns the current normalized phase in [0, 1).
func (o *Oscillator) Phase() float64 { return o.phase }

// Bound reports whether the oscillator is bound to a wavetable.
func (o *Oscillator) Bound() bool { return o.table != nil }

// NextSample returns gain * table(phase) and advances phase by one sample.
// An unbound oscillator returns 0.
func (o *Oscillator) NextSample() float64 {
	if o.table == nil {
		return 0
	}

	out := o.gain.Load() * o.table.ReadPhase(o.phase)

	o.phase += o.frequency.Load() / o.sampleRate
	if o.phase >= 1 || o.phase < 0 {
		o.phase -= math.Floor(o.phase)
		if o.phase >= 1 {
			o.phase = 0
		}
	}

	return out
}

// Reset zeroes phase and releases the wavetable binding.
// The table itself is shared and left untouched.
func (o *Oscillator) Reset() {
	o.table = nil
	o.sampleRate = 0
	o.phase = 0
}
