package signal

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-flanger/dsp/core"
	"github.com/cwbudde/algo-vecmath"
)

// ErrInvalidLength is returned when a requested signal has no samples.
var ErrInvalidLength = errors.New("signal: length must be > 0")

// Generator creates deterministic signals for a process spec.
type Generator struct {
	spec core.ProcessSpec
	seed int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets deterministic random seed for noise generation.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// NewGenerator creates a signal generator for the given spec options.
func NewGenerator(opts ...core.ProcessorOption) *Generator {
	return &Generator{
		spec: core.ApplyProcessorOptions(opts...),
		seed: 1,
	}
}

// NewGeneratorWithOptions creates a signal generator with signal-specific options.
func NewGeneratorWithOptions(coreOpts []core.ProcessorOption, opts ...Option) *Generator {
	g := NewGenerator(coreOpts...)
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Spec returns the generator process spec.
func (g *Generator) Spec() core.ProcessSpec {
	return g.spec
}

// Seed returns the noise seed.
func (g *Generator) Seed() int64 {
	return g.seed
}

// SetSeed replaces the noise seed.
func (g *Generator) SetSeed(seed int64) {
	g.seed = seed
}

// Sine generates a sine wave.
func (g *Generator) Sine(freqHz, amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("%w: sine: %d", ErrInvalidLength, samples)
	}
	if err := g.spec.Validate(); err != nil {
		return nil, fmt.Errorf("signal: sine: %w", err)
	}
	out := make([]float64, samples)
	step := 2 * math.Pi * freqHz / g.spec.SampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out, nil
}

// WhiteNoise generates deterministic white noise in [-amplitude, amplitude].
func (g *Generator) WhiteNoise(amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("%w: noise: %d", ErrInvalidLength, samples)
	}
	if amplitude < 0 {
		return nil, fmt.Errorf("signal: noise amplitude must be >= 0: %f", amplitude)
	}
	out := make([]float64, samples)
	rng := rand.New(rand.NewSource(g.seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out, nil
}

// Impulse generates a single sample of the given amplitude at pos.
func (g *Generator) Impulse(amplitude float64, samples, pos int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("%w: impulse: %d", ErrInvalidLength, samples)
	}
	if pos < 0 || pos >= samples {
		return nil, fmt.Errorf("signal: impulse position %d outside [0, %d)", pos, samples)
	}
	out := make([]float64, samples)
	out[pos] = amplitude
	return out, nil
}

// Channels replicates mono into the spec's channel count.
func (g *Generator) Channels(mono []float64) [][]float64 {
	channels := max(g.spec.NumChannels, 1)
	block := core.NewBlock(channels, len(mono))
	for ch := range block {
		copy(block[ch], mono)
	}
	return block
}

// Normalize scales data to target peak amplitude and returns a new slice.
func Normalize(data []float64, targetPeak float64) ([]float64, error) {
	if targetPeak < 0 {
		return nil, fmt.Errorf("signal: normalize target peak must be >= 0: %f", targetPeak)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: normalize", ErrInvalidLength)
	}

	maxAbs := 0.0
	for _, v := range data {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}

	out := make([]float64, len(data))
	if maxAbs == 0 || targetPeak == 0 {
		return out, nil
	}

	vecmath.ScaleBlock(out, data, targetPeak/maxAbs)
	return out, nil
}

// MixInto adds src scaled by gain to dst in place. Only the overlapping
// prefix is mixed; scratch is reused when it is long enough.
func MixInto(dst, src, scratch []float64, gain float64) []float64 {
	n := min(len(dst), len(src))
	scratch = core.EnsureLen(scratch, n)
	vecmath.ScaleBlock(scratch[:n], src[:n], gain)
	vecmath.AddBlockInPlace(dst[:n], scratch[:n])
	return scratch
}

// Interleave packs a [channel][sample] block into frame-major order.
func Interleave(block [][]float64) []float64 {
	channels := len(block)
	frames := core.BlockLen(block)
	out := make([]float64, channels*frames)
	for ch := range block {
		for i := 0; i < frames; i++ {
			out[i*channels+ch] = block[ch][i]
		}
	}
	return out
}

// Deinterleave splits frame-major samples into a [channel][sample] block.
// A trailing partial frame is dropped.
func Deinterleave(data []float64, channels int) ([][]float64, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("signal: channels must be > 0: %d", channels)
	}
	frames := len(data) / channels
	block := core.NewBlock(channels, frames)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			block[ch][i] = data[i*channels+ch]
		}
	}
	return block, nil
}
