package core

import "sync/atomic"

// Module is the lifecycle contract shared by block-based DSP modules.
//
// Initialize is called once before audio flows and allocates everything the
// module needs. Process runs on the audio goroutine and must not allocate or
// block. Clear drops buffered history but keeps the module ready. Reset
// releases resources and returns the module to its unprepared state.
// Initialize and Reset must not overlap with Process.
type Module interface {
	Initialize(spec ProcessSpec) error
	Clear()
	Reset()
	Process(buf [][]float64)
}

// Lifecycle holds the prepared spec and readiness flag of a Module.
// Modules embed it and call Initialize/Reset from their own lifecycle methods.
type Lifecycle struct {
	spec  ProcessSpec
	ready atomic.Bool
}

// Initialize validates and stores spec. The module is not marked ready;
// call MarkReady once the module's own allocation succeeded.
func (l *Lifecycle) Initialize(spec ProcessSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	l.spec = spec

	return nil
}

// MarkReady flags the module as prepared.
func (l *Lifecycle) MarkReady() {
	l.ready.Store(true)
}

// Reset clears the stored spec and readiness flag.
func (l *Lifecycle) Reset() {
	l.ready.Store(false)
	l.spec = ProcessSpec{}
}

// Ready reports whether the module is prepared. Safe to call from any goroutine.
func (l *Lifecycle) Ready() bool {
	return l.ready.Load()
}

// Spec returns the prepared spec, or the zero spec when not prepared.
func (l *Lifecycle) Spec() ProcessSpec {
	return l.spec
}
