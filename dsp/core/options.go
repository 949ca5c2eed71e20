package core

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSpec is returned when a ProcessSpec cannot be used for processing.
var ErrInvalidSpec = errors.New("core: invalid process spec")

// ProcessSpec describes the fixed processing configuration a module is
// prepared for. The zero value is the "not prepared" sentinel.
type ProcessSpec struct {
	SampleRate  float64
	BlockSize   int
	NumChannels int
}

// Validate reports whether the spec is usable for processing.
func (s ProcessSpec) Validate() error {
	if s.SampleRate <= 0 || math.IsNaN(s.SampleRate) || math.IsInf(s.SampleRate, 0) {
		return fmt.Errorf("%w: sample rate must be > 0 and finite: %f", ErrInvalidSpec, s.SampleRate)
	}

	if s.BlockSize <= 0 {
		return fmt.Errorf("%w: block size must be > 0: %d", ErrInvalidSpec, s.BlockSize)
	}

	if s.NumChannels <= 0 {
		return fmt.Errorf("%w: channel count must be > 0: %d", ErrInvalidSpec, s.NumChannels)
	}

	return nil
}

// IsZero reports whether s is the zero sentinel.
func (s ProcessSpec) IsZero() bool {
	return s == ProcessSpec{}
}

// ProcessorOption mutates a ProcessSpec.
type ProcessorOption func(*ProcessSpec)

// DefaultProcessSpec returns sensible defaults for offline and streaming use.
func DefaultProcessSpec() ProcessSpec {
	return ProcessSpec{
		SampleRate:  48000,
		BlockSize:   512,
		NumChannels: 2,
	}
}

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) ProcessorOption {
	return func(spec *ProcessSpec) {
		if sampleRate > 0 {
			spec.SampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the processing block size.
func WithBlockSize(blockSize int) ProcessorOption {
	return func(spec *ProcessSpec) {
		if blockSize > 0 {
			spec.BlockSize = blockSize
		}
	}
}

// WithNumChannels sets the number of processed channels.
func WithNumChannels(channels int) ProcessorOption {
	return func(spec *ProcessSpec) {
		if channels > 0 {
			spec.NumChannels = channels
		}
	}
}

// ApplyProcessorOptions applies zero or more options to the default spec.
func ApplyProcessorOptions(opts ...ProcessorOption) ProcessSpec {
	spec := DefaultProcessSpec()
	for _, opt := range opts {
		if opt != nil {
			opt(&spec)
		}
	}
	return spec
}
