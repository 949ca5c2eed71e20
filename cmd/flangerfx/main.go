// Command flangerfx renders audio through the flanger and measures its
// comb-filter response.
//
// Usage:
//
//	flangerfx [flags]
//
// Input is either a WAV file (-in) or a generated test signal (-gen).
// The processed result is written to -out, optionally rescaled to a peak
// with -normalize. With -analyze the static comb response for the chosen
// parameters is printed instead.
//
// Examples:
//
//	flangerfx -in guitar.wav -out flanged.wav -mix 0.5 -feedback 0.7
//	flangerfx -gen noise -duration 5s -lfoFreq 0.25 -out sweep.wav
//	flangerfx -gen sine -noise 0.05 -lfo-shape triangle -normalize 0.9 -out tri.wav
//	flangerfx -analyze -delay 0.004 -feedback 0.8
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cwbudde/algo-flanger/dsp/core"
	"github.com/cwbudde/algo-flanger/dsp/interp"
	"github.com/cwbudde/algo-flanger/dsp/signal"
	"github.com/cwbudde/algo-flanger/dsp/wavetable"
	"github.com/cwbudde/algo-flanger/host"
	"github.com/rs/zerolog"
)

type config struct {
	in        string
	out       string
	gen       string
	duration  time.Duration
	freq      float64
	amplitude float64
	noise     float64
	seed      int64
	rate      int
	channels  int
	bits      int
	block     int
	maxDelay  float64
	hermite   bool
	lfoShape  string
	normalize float64
	analyze   bool
	length    int
	logLevel  string
	params    map[string]*float64
}

var errUsage = errors.New("usage error")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		logger.Error().Err(err).Msg("flangerfx failed")
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (config, error) {
	var cfg config

	fs := flag.NewFlagSet("flangerfx", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.in, "in", "", "input WAV file")
	fs.StringVar(&cfg.out, "out", "", "output WAV file")
	fs.StringVar(&cfg.gen, "gen", "", "generate input instead of reading a file: sine, noise or impulse")
	fs.DurationVar(&cfg.duration, "duration", 2*time.Second, "length of the generated input")
	fs.Float64Var(&cfg.freq, "freq", 440, "sine frequency in Hz")
	fs.Float64Var(&cfg.amplitude, "amp", 0.5, "generated signal peak amplitude")
	fs.Float64Var(&cfg.noise, "noise", 0, "peak of white noise mixed into the generated input")
	fs.Int64Var(&cfg.seed, "seed", 1, "noise seed")
	fs.IntVar(&cfg.rate, "rate", 48000, "sample rate of the generated input")
	fs.IntVar(&cfg.channels, "channels", 2, "channel count of the generated input")
	fs.IntVar(&cfg.bits, "bits", 16, "output bit depth for generated input")
	fs.IntVar(&cfg.block, "block", 512, "processing block size in samples")
	fs.Float64Var(&cfg.maxDelay, "max-delay", 1, "delay line capacity in seconds")
	fs.BoolVar(&cfg.hermite, "hermite", false, "use 4-point Hermite delay interpolation")
	fs.StringVar(&cfg.lfoShape, "lfo-shape", "sine", "LFO waveform: sine, triangle or saw")
	fs.Float64Var(&cfg.normalize, "normalize", 0, "scale the rendered output to this peak, 0 keeps the level")
	fs.BoolVar(&cfg.analyze, "analyze", false, "print the static comb response instead of rendering")
	fs.IntVar(&cfg.length, "length", 8192, "impulse response length for -analyze")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug, info, warn, error, disabled")

	cfg.params = make(map[string]*float64)
	for _, p := range host.DefaultParameters() {
		usage := fmt.Sprintf("%s [%g, %g]", p.Name, p.Min, p.Max)
		if p.Unit != "" {
			usage += " " + p.Unit
		}
		cfg.params[p.ID] = fs.Float64(p.ID, p.Default, usage)
	}

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: flangerfx [flags]\n\n")
		fmt.Fprintf(stderr, "Renders audio through a feedback flanger or analyzes its comb response.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  flangerfx -in guitar.wav -out flanged.wav -mix 0.5 -feedback 0.7\n")
		fmt.Fprintf(stderr, "  flangerfx -gen noise -duration 5s -lfoFreq 0.25 -out sweep.wav\n")
		fmt.Fprintf(stderr, "  flangerfx -gen sine -noise 0.05 -lfo-shape triangle -normalize 0.9 -out tri.wav\n")
		fmt.Fprintf(stderr, "  flangerfx -analyze -delay 0.004 -feedback 0.8\n")
	}

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if fs.NArg() > 0 {
		return config{}, fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}

	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch {
	case c.analyze:
		return nil
	case c.out == "":
		return fmt.Errorf("%w: -out is required", errUsage)
	case c.in == "" && c.gen == "":
		return fmt.Errorf("%w: one of -in or -gen is required", errUsage)
	case c.in != "" && c.gen != "":
		return fmt.Errorf("%w: -in and -gen are exclusive", errUsage)
	case c.block <= 0:
		return fmt.Errorf("%w: -block must be > 0", errUsage)
	case c.bits != 16 && c.bits != 24 && c.bits != 32:
		return fmt.Errorf("%w: -bits must be 16, 24 or 32", errUsage)
	case !(c.normalize >= 0 && c.normalize <= 1):
		return fmt.Errorf("%w: -normalize must be in [0, 1]", errUsage)
	case !(c.noise >= 0):
		return fmt.Errorf("%w: -noise must be >= 0", errUsage)
	}

	return nil
}

func newLogger(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("%w: -log-level: %v", errUsage, err)
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		Level(lvl).
		With().Timestamp().Logger(), nil
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.logLevel, stderr)
	if err != nil {
		return err
	}

	shape, err := wavetable.ParseShape(cfg.lfoShape)
	if err != nil {
		return fmt.Errorf("%w: -lfo-shape: %v", errUsage, err)
	}

	opts := []host.Option{
		host.WithLogger(logger),
		host.WithMaxDelaySeconds(cfg.maxDelay),
		host.WithLFOShape(shape),
	}
	if cfg.hermite {
		opts = append(opts, host.WithInterpolation(interp.Hermite))
	}

	proc, err := host.NewProcessor(opts...)
	if err != nil {
		return err
	}

	for _, p := range proc.Parameters() {
		if err := proc.ParameterChanged(p.ID, *cfg.params[p.ID]); err != nil {
			return err
		}
	}

	if cfg.analyze {
		return analyze(proc, cfg, stdout)
	}

	input, err := loadInput(cfg)
	if err != nil {
		return err
	}

	logger.Debug().
		Int("channels", input.channels()).
		Int("frames", input.frames()).
		Int("sample_rate", input.sampleRate).
		Msg("input loaded")

	if err := proc.PrepareToPlay(float64(input.sampleRate), cfg.block, input.channels()); err != nil {
		return err
	}

	render(proc, input.block, cfg.block)
	proc.ReleaseResources()

	if cfg.normalize > 0 {
		if input.block, err = normalize(input.block, cfg.normalize); err != nil {
			return err
		}
	}

	if err := writeWAV(cfg.out, input); err != nil {
		return err
	}

	logger.Info().Str("out", cfg.out).Dur("length", framesDuration(input)).Msg("rendered")

	return nil
}

func framesDuration(p pcm) time.Duration {
	if p.sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(p.frames()) / float64(p.sampleRate) * float64(time.Second))
}

func loadInput(cfg config) (pcm, error) {
	if cfg.in != "" {
		return readWAV(cfg.in)
	}

	return generate(cfg)
}

func generate(cfg config) (pcm, error) {
	g := signal.NewGeneratorWithOptions([]core.ProcessorOption{
		core.WithSampleRate(float64(cfg.rate)),
		core.WithNumChannels(cfg.channels),
	}, signal.WithSeed(cfg.seed))

	spec := g.Spec()
	if int(spec.SampleRate) != cfg.rate || spec.NumChannels != cfg.channels {
		return pcm{}, fmt.Errorf("%w: -rate and -channels must be > 0", errUsage)
	}

	frames := int(cfg.duration.Seconds() * spec.SampleRate)

	var (
		mono []float64
		err  error
	)

	switch cfg.gen {
	case "sine":
		mono, err = g.Sine(cfg.freq, cfg.amplitude, frames)
	case "noise":
		mono, err = g.WhiteNoise(cfg.amplitude, frames)
	case "impulse":
		mono, err = g.Impulse(cfg.amplitude, frames, 0)
	default:
		return pcm{}, fmt.Errorf("%w: unknown -gen %q (sine, noise, impulse)", errUsage, cfg.gen)
	}
	if err != nil {
		return pcm{}, err
	}

	if cfg.noise > 0 {
		noise, err := g.WhiteNoise(cfg.noise, frames)
		if err != nil {
			return pcm{}, err
		}
		signal.MixInto(mono, noise, nil, 1)
	}

	return pcm{block: g.Channels(mono), sampleRate: cfg.rate, bitDepth: cfg.bits}, nil
}

// normalize scales all channels by one gain so the loudest sample reaches
// peak. Inter-channel balance is kept.
func normalize(block [][]float64, peak float64) ([][]float64, error) {
	if core.BlockLen(block) == 0 {
		return block, nil
	}

	flat, err := signal.Normalize(signal.Interleave(block), peak)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	return signal.Deinterleave(flat, len(block))
}
