package modulation

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-flanger/dsp/core"
	"github.com/cwbudde/algo-flanger/dsp/delay"
	"github.com/cwbudde/algo-flanger/dsp/interp"
	"github.com/cwbudde/algo-flanger/dsp/oscillator"
	"github.com/cwbudde/algo-flanger/dsp/wavetable"
)

// DefaultFlangerMaxDelaySeconds is the delay capacity used by Initialize.
const DefaultFlangerMaxDelaySeconds = 1.0

// ErrInvalidMaxDelay is returned when the maximum delay is not a positive finite number.
var ErrInvalidMaxDelay = errors.New("flanger: maximum delay must be > 0 and finite")

// FlangerParameters holds the control values read by the audio goroutine.
// Every field is individually atomic; no consistency across fields is kept.
type FlangerParameters struct {
	Mix          core.AtomicFloat
	Feedback     core.AtomicFloat
	DelaySeconds core.AtomicFloat
	LFOAmp       core.AtomicFloat
	LFOFreqHz    core.AtomicFloat
}

func (p *FlangerParameters) reset() {
	p.Mix.Store(0)
	p.Feedback.Store(0)
	p.DelaySeconds.Store(0)
	p.LFOAmp.Store(0)
	p.LFOFreqHz.Store(0)
}

// FlangerSettings is a plain snapshot of FlangerParameters.
type FlangerSettings struct {
	Mix          float64
	Feedback     float64
	DelaySeconds float64
	LFOAmp       float64
	LFOFreqHz    float64
}

// FlangerOption configures a Flanger at construction.
type FlangerOption func(*Flanger)

// WithFlangerInterpolation selects the fractional delay read kernel.
func WithFlangerInterpolation(mode interp.Mode) FlangerOption {
	return func(f *Flanger) {
		f.mode = mode
	}
}

// WithFlangerWavetable replaces the shared sine table driving the LFO.
// The table is initialized with wavetable.DefaultSize if it is still empty.
func WithFlangerWavetable(table *wavetable.Table) FlangerOption {
	return func(f *Flanger) {
		if table != nil {
			f.table = table
		}
	}
}

// WithFlangerMaxDelaySeconds sets the delay capacity used by Initialize.
// Non-positive values are ignored.
func WithFlangerMaxDelaySeconds(seconds float64) FlangerOption {
	return func(f *Flanger) {
		if seconds > 0 && !math.IsInf(seconds, 0) {
			f.defaultMaxDelay = seconds
		}
	}
}

// Flanger mixes the input with a copy of itself delayed by
// delayTime + lfo(t) seconds, fed back into the delay line.
//
// Per sample it advances the LFO once, sets the delay line offset, and for
// each channel pops the delayed sample, writes input+delayed*feedback back
// and blends that wet value with the dry input by mix.
//
// Process runs on the audio goroutine. Setters may be called concurrently
// from a control goroutine; they are no-ops until the flanger is initialized.
type Flanger struct {
	state core.Lifecycle

	params          FlangerParameters
	maxDelaySeconds float64
	defaultMaxDelay float64

	mode  interp.Mode
	table *wavetable.Table
	line  *delay.Line
	lfo   oscillator.Oscillator

	mono [1][]float64
}

var _ core.Module = (*Flanger)(nil)

// NewFlanger returns an uninitialized flanger.
func NewFlanger(opts ...FlangerOption) *Flanger {
	f := &Flanger{
		defaultMaxDelay: DefaultFlangerMaxDelaySeconds,
		mode:            interp.Linear,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	return f
}

// Initialize prepares the flanger with the configured maximum delay.
func (f *Flanger) Initialize(spec core.ProcessSpec) error {
	return f.InitializeWithMaxDelay(spec, f.defaultMaxDelay)
}

// InitializeWithMaxDelay allocates a delay line of ceil(sampleRate*maxDelaySeconds)
// samples per channel and binds the LFO to its wavetable. The LFO picks up
// the currently stored amplitude and frequency.
//
// On failure the flanger keeps its previous state. Initializing a ready
// flanger releases the previous delay line and keeps the parameters.
func (f *Flanger) InitializeWithMaxDelay(spec core.ProcessSpec, maxDelaySeconds float64) error {
	if !(maxDelaySeconds > 0) || math.IsInf(maxDelaySeconds, 0) {
		return fmt.Errorf("%w: %f", ErrInvalidMaxDelay, maxDelaySeconds)
	}

	if err := spec.Validate(); err != nil {
		return err
	}

	line, err := delay.NewForDuration(maxDelaySeconds, spec.SampleRate, delay.WithMode(f.mode))
	if err != nil {
		return fmt.Errorf("flanger: %w", err)
	}

	if err := line.Prepare(spec); err != nil {
		return fmt.Errorf("flanger: %w", err)
	}

	if f.Ready() {
		f.teardown()
	}

	if err := f.state.Initialize(spec); err != nil {
		return err
	}

	table := f.table
	if table == nil {
		table = wavetable.Sine()
	}
	table.Initialize(wavetable.DefaultSize)

	if err := f.lfo.Initialize(table, f.params.LFOFreqHz.Load(), spec.SampleRate); err != nil {
		f.state.Reset()
		return fmt.Errorf("flanger: %w", err)
	}
	f.lfo.SetGain(f.params.LFOAmp.Load())

	f.line = line
	f.maxDelaySeconds = maxDelaySeconds
	f.state.MarkReady()

	return nil
}

// Ready reports whether the flanger is initialized. Safe from any goroutine.
func (f *Flanger) Ready() bool { return f.state.Ready() }

// Spec returns the prepared process spec, the zero spec when not ready.
func (f *Flanger) Spec() core.ProcessSpec { return f.state.Spec() }

// Clear zeroes the delay history. The flanger stays ready.
func (f *Flanger) Clear() {
	if !f.Ready() {
		return
	}

	f.line.Reset()
}

// Reset releases the delay line, unbinds the LFO and zeroes all parameters.
// The flanger must be initialized again before use.
func (f *Flanger) Reset() {
	if !f.Ready() {
		return
	}

	f.state.Reset()
	f.teardown()
	f.params.reset()
	f.lfo.SetGain(0)
	f.lfo.SetFrequency(0)
	f.maxDelaySeconds = 0
}

func (f *Flanger) teardown() {
	if f.line != nil {
		f.line.Release()
		f.line = nil
	}

	f.lfo.Reset()
}

// Process applies the flanger to buf in place. buf is indexed [channel][sample].
// Channels beyond the prepared channel count are left untouched.
// Process is a no-op until the flanger is initialized.
func (f *Flanger) Process(buf [][]float64) {
	if !f.Ready() {
		return
	}

	channels := min(len(buf), f.line.NumChannels())
	if channels == 0 {
		return
	}

	sampleRate := f.Spec().SampleRate
	n := core.BlockLen(buf[:channels])

	for i := 0; i < n; i++ {
		base := f.params.DelaySeconds.Load()
		f.line.SetDelay((base + f.lfo.NextSample()) * sampleRate)

		feedback := f.params.Feedback.Load()
		mix := f.params.Mix.Load()

		for ch := 0; ch < channels; ch++ {
			dry := buf[ch][i]
			wet := dry + f.line.PopSample(ch)*feedback
			f.line.PushSample(ch, core.FlushDenormals(wet))
			buf[ch][i] = wet*mix + dry*(1-mix)
		}
	}
}

// ProcessMono applies the flanger to a single channel in place.
func (f *Flanger) ProcessMono(buf []float64) {
	f.mono[0] = buf
	f.Process(f.mono[:])
	f.mono[0] = nil
}

// SetMix sets the wet amount, clamped to [0, 1].
func (f *Flanger) SetMix(value float64) {
	if !f.Ready() || math.IsNaN(value) {
		return
	}

	f.store(&f.params.Mix, core.Clamp(value, 0, 1))
}

// SetFeedback sets the feedback amount, clamped to [0, 1].
func (f *Flanger) SetFeedback(value float64) {
	if !f.Ready() || math.IsNaN(value) {
		return
	}

	f.store(&f.params.Feedback, core.Clamp(value, 0, 1))
}

// SetDelayTime sets the base delay in seconds, clamped to >= 0.
// Delays beyond the maximum delay are limited by the delay line.
func (f *Flanger) SetDelayTime(seconds float64) {
	if !f.Ready() || math.IsNaN(seconds) {
		return
	}

	f.store(&f.params.DelaySeconds, core.ClampMin(seconds, 0))
}

// SetLFOAmp sets the LFO amplitude in seconds of delay excursion.
// The LFO uses it from its next sample.
func (f *Flanger) SetLFOAmp(seconds float64) {
	if !f.Ready() || !core.IsFinite(seconds) {
		return
	}

	f.lfo.SetGain(seconds)
	if !f.store(&f.params.LFOAmp, seconds) {
		f.lfo.SetGain(0)
	}
}

// SetLFOFreq sets the LFO frequency in Hz. The LFO uses it from its next sample.
func (f *Flanger) SetLFOFreq(hz float64) {
	if !f.Ready() || !core.IsFinite(hz) {
		return
	}

	f.lfo.SetFrequency(hz)
	if !f.store(&f.params.LFOFreqHz, hz) {
		f.lfo.SetFrequency(0)
	}
}

// store writes v to p. A setter can pass its Ready check just before a
// concurrent Reset zeroes the parameters, so readiness is checked again
// after the write and p is zeroed if the flanger was released meanwhile.
// It reports whether the value was kept.
func (f *Flanger) store(p *core.AtomicFloat, v float64) bool {
	p.Store(v)
	if f.Ready() {
		return true
	}

	p.Store(0)

	return false
}

// Mix returns the wet amount in [0, 1].
func (f *Flanger) Mix() float64 { return f.params.Mix.Load() }

// Feedback returns the feedback amount in [0, 1].
func (f *Flanger) Feedback() float64 { return f.params.Feedback.Load() }

// DelayTime returns the base delay in seconds.
func (f *Flanger) DelayTime() float64 { return f.params.DelaySeconds.Load() }

// LFOAmp returns the LFO amplitude in seconds.
func (f *Flanger) LFOAmp() float64 { return f.params.LFOAmp.Load() }

// LFOFreq returns the LFO frequency in Hz.
func (f *Flanger) LFOFreq() float64 { return f.params.LFOFreqHz.Load() }

// Latency returns the processing latency in samples. The dry path is
// undelayed, so it is always 0.
func (f *Flanger) Latency() int { return 0 }

// MaxDelaySeconds returns the prepared delay capacity in seconds, 0 when not ready.
func (f *Flanger) MaxDelaySeconds() float64 { return f.maxDelaySeconds }

// Settings returns a snapshot of all parameters.
func (f *Flanger) Settings() FlangerSettings {
	return FlangerSettings{
		Mix:          f.Mix(),
		Feedback:     f.Feedback(),
		DelaySeconds: f.DelayTime(),
		LFOAmp:       f.LFOAmp(),
		LFOFreqHz:    f.LFOFreq(),
	}
}

// Apply sets every parameter from s.
func (f *Flanger) Apply(s FlangerSettings) {
	f.SetDelayTime(s.DelaySeconds)
	f.SetFeedback(s.Feedback)
	f.SetMix(s.Mix)
	f.SetLFOAmp(s.LFOAmp)
	f.SetLFOFreq(s.LFOFreqHz)
}
