package host

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-flanger/dsp/core"
	"github.com/cwbudde/algo-flanger/dsp/effects/modulation"
	"github.com/cwbudde/algo-flanger/dsp/interp"
	"github.com/cwbudde/algo-flanger/dsp/wavetable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Errors returned by the host adapter.
var (
	ErrUnknownParameter = errors.New("host: unknown parameter")
	ErrInvalidValue     = errors.New("host: parameter value must be finite")
)

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the lifecycle logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRegisterer registers the processor metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Processor) {
		p.registerer = reg
	}
}

// WithMaxDelaySeconds sets the delay capacity allocated on prepare.
// Non-positive values are ignored.
func WithMaxDelaySeconds(seconds float64) Option {
	return func(p *Processor) {
		if seconds > 0 {
			p.maxDelaySeconds = seconds
		}
	}
}

// WithInterpolation selects the delay line read kernel.
func WithInterpolation(mode interp.Mode) Option {
	return func(p *Processor) {
		p.mode = mode
	}
}

// WithLFOShape selects the LFO waveform. The default is the shared sine
// table. Unknown shapes are ignored.
func WithLFOShape(shape wavetable.Shape) Option {
	return func(p *Processor) {
		if shape >= wavetable.ShapeSine && shape <= wavetable.ShapeSaw {
			p.shape = shape
		}
	}
}

// Processor drives a Flanger from host callbacks.
//
// PrepareToPlay, ProcessBlock and ReleaseResources follow the host contract:
// ProcessBlock runs on the audio goroutine and is never concurrent with
// prepare or release. ParameterChanged, Value and Parameters may be called
// from any goroutine at any time.
type Processor struct {
	flanger *modulation.Flanger
	params  *store

	maxDelaySeconds float64
	mode            interp.Mode
	shape           wavetable.Shape

	logger     zerolog.Logger
	registerer prometheus.Registerer
	metrics    *metrics
}

// NewProcessor creates an unprepared processor with default parameter values.
func NewProcessor(opts ...Option) (*Processor, error) {
	p := &Processor{
		params:          newStore(),
		maxDelaySeconds: modulation.DefaultFlangerMaxDelaySeconds,
		mode:            interp.Linear,
		logger:          zerolog.Nop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	m, err := newMetrics(p.registerer)
	if err != nil {
		return nil, fmt.Errorf("host: register metrics: %w", err)
	}
	p.metrics = m

	p.logger = p.logger.With().Str("component", "flanger").Logger()
	flangerOpts := []modulation.FlangerOption{
		modulation.WithFlangerInterpolation(p.mode),
		modulation.WithFlangerMaxDelaySeconds(p.maxDelaySeconds),
	}
	if p.shape != wavetable.ShapeSine {
		flangerOpts = append(flangerOpts, modulation.WithFlangerWavetable(wavetable.New(p.shape)))
	}
	p.flanger = modulation.NewFlanger(flangerOpts...)

	return p, nil
}

// PrepareToPlay allocates the engine for the given stream format and applies
// the stored parameter values. Preparing an already prepared processor
// re-allocates it.
func (p *Processor) PrepareToPlay(sampleRate float64, blockSize, channels int) error {
	spec := core.ProcessSpec{SampleRate: sampleRate, BlockSize: blockSize, NumChannels: channels}

	if err := p.flanger.InitializeWithMaxDelay(spec, p.maxDelaySeconds); err != nil {
		p.metrics.prepareFailures.Inc()
		p.logger.Error().Err(err).
			Float64("sample_rate", sampleRate).
			Int("block_size", blockSize).
			Int("channels", channels).
			Msg("prepare failed")

		return fmt.Errorf("host: prepare: %w", err)
	}

	p.params.pushAll(p.flanger)

	p.logger.Info().
		Float64("sample_rate", sampleRate).
		Int("block_size", blockSize).
		Int("channels", channels).
		Float64("max_delay_s", p.maxDelaySeconds).
		Str("interpolation", p.mode.String()).
		Str("lfo_shape", p.shape.String()).
		Msg("prepared")

	return nil
}

// Prepared reports whether ProcessBlock will process audio.
func (p *Processor) Prepared() bool {
	return p.flanger.Ready()
}

// ProcessBlock applies the effect in place. buf is indexed [channel][sample].
// It is a no-op before PrepareToPlay and after ReleaseResources.
func (p *Processor) ProcessBlock(buf [][]float64) {
	if !p.flanger.Ready() {
		return
	}

	p.flanger.Process(buf)

	p.metrics.blocks.Inc()
	p.metrics.samples.Add(float64(core.BlockLen(buf)))
}

// ReleaseResources frees the engine buffers. Parameter values are kept.
func (p *Processor) ReleaseResources() {
	if !p.flanger.Ready() {
		return
	}

	p.flanger.Reset()
	p.logger.Info().Msg("released")
}

// ParameterChanged stores value for id, clamped to the parameter range, and
// forwards it to the engine.
func (p *Processor) ParameterChanged(id string, value float64) error {
	sl, ok := p.params.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, id)
	}

	if !core.IsFinite(value) {
		return fmt.Errorf("%w: %s=%v", ErrInvalidValue, id, value)
	}

	v := sl.def.Clamp(value)
	sl.value.Store(v)
	sl.apply(p.flanger, v)

	p.metrics.paramChanges.WithLabelValues(id).Inc()

	return nil
}

// ParameterChangedNormalized is ParameterChanged with a value in [0, 1].
func (p *Processor) ParameterChangedNormalized(id string, normalized float64) error {
	sl, ok := p.params.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, id)
	}

	if !core.IsFinite(normalized) {
		return fmt.Errorf("%w: %s=%v", ErrInvalidValue, id, normalized)
	}

	return p.ParameterChanged(id, sl.def.Denormalize(normalized))
}

// Value returns the stored plain value of id.
func (p *Processor) Value(id string) (float64, error) {
	sl, ok := p.params.lookup(id)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownParameter, id)
	}

	return sl.value.Load(), nil
}

// Parameters returns the parameter table in display order.
func (p *Processor) Parameters() []Parameter {
	out := make([]Parameter, len(p.params.order))
	for i, sl := range p.params.order {
		out[i] = sl.def
	}

	return out
}

// Settings returns the stored parameter values.
func (p *Processor) Settings() modulation.FlangerSettings {
	return p.params.settings()
}

// Engine returns the underlying flanger, for analysis of a prepared processor.
func (p *Processor) Engine() *modulation.Flanger {
	return p.flanger
}
