package response

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

// Errors returned by response analysis.
var (
	ErrNilProcessor      = errors.New("response: processor is nil")
	ErrInvalidSampleRate = errors.New("response: sample rate must be positive")
	ErrInvalidLength     = errors.New("response: length must be >= 4")
	ErrNoDecay           = errors.New("response: insufficient decay for decay time")
)

const (
	defaultLength     = 4096
	defaultBlockSize  = 512
	defaultNotchRatio = 0.5
	floorDB           = -200
	flatTolerance     = 1e-9
)

// Processor is a mono block processor with resettable state.
// Process receives a single-channel [channel][sample] buffer.
type Processor interface {
	Clear()
	Process(buf [][]float64)
}

// Result holds the measured response.
type Result struct {
	Impulse   []float64 // processed unit impulse, Length samples
	Magnitude []float64 // |H(k)| for bins 0..FFTSize/2
	BinHz     float64   // frequency spacing of Magnitude
	FFTSize   int
	Notches   []float64 // notch frequencies in Hz, ascending
	DecayTime float64   // -60 dB decay time in seconds, 0 if not measurable
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLength sets the impulse response length in samples.
func WithLength(n int) Option {
	return func(a *Analyzer) {
		a.Length = n
	}
}

// WithBlockSize sets the block size used to drive the processor.
func WithBlockSize(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.BlockSize = n
		}
	}
}

// WithNotchRatio sets the fraction of the magnitude range, measured up from
// the smallest magnitude, below which a local minimum counts as a notch.
func WithNotchRatio(ratio float64) Option {
	return func(a *Analyzer) {
		if ratio > 0 && ratio <= 1 {
			a.NotchRatio = ratio
		}
	}
}

// Analyzer measures impulse and magnitude responses.
type Analyzer struct {
	SampleRate float64
	Length     int
	BlockSize  int
	NotchRatio float64
}

// NewAnalyzer creates an analyzer for the given sample rate.
func NewAnalyzer(sampleRate float64, opts ...Option) *Analyzer {
	a := &Analyzer{
		SampleRate: sampleRate,
		Length:     defaultLength,
		BlockSize:  defaultBlockSize,
		NotchRatio: defaultNotchRatio,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Analyze clears p, feeds it a unit impulse and measures the output.
// p must already be prepared for a.SampleRate.
func (a *Analyzer) Analyze(p Processor) (Result, error) {
	if p == nil {
		return Result{}, ErrNilProcessor
	}
	if a.SampleRate <= 0 || math.IsInf(a.SampleRate, 0) || math.IsNaN(a.SampleRate) {
		return Result{}, ErrInvalidSampleRate
	}
	if a.Length < 4 {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidLength, a.Length)
	}

	impulse := a.ImpulseResponse(p)

	mag, fftSize, err := MagnitudeResponse(impulse)
	if err != nil {
		return Result{}, err
	}

	binHz := a.SampleRate / float64(fftSize)
	res := Result{
		Impulse:   impulse,
		Magnitude: mag,
		BinHz:     binHz,
		FFTSize:   fftSize,
		Notches:   FindNotches(mag, binHz, a.NotchRatio),
	}

	if rt, err := a.DecayTime(impulse); err == nil {
		res.DecayTime = rt
	}

	return res, nil
}

// ImpulseResponse clears p and returns its response to a unit impulse,
// processed in blocks of a.BlockSize.
func (a *Analyzer) ImpulseResponse(p Processor) []float64 {
	out := make([]float64, max(a.Length, 0))
	if len(out) == 0 {
		return out
	}
	out[0] = 1

	p.Clear()

	block := max(a.BlockSize, 1)
	buf := make([][]float64, 1)
	for start := 0; start < len(out); start += block {
		buf[0] = out[start:min(start+block, len(out))]
		p.Process(buf)
	}

	return out
}

// MagnitudeResponse zero-pads h to a power of two and returns |H(k)| for the
// non-negative frequency bins together with the FFT size.
func MagnitudeResponse(h []float64) ([]float64, int, error) {
	if len(h) == 0 {
		return nil, 0, fmt.Errorf("%w: 0", ErrInvalidLength)
	}

	n := nextPow2(len(h))

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, 0, fmt.Errorf("response: fft plan: %w", err)
	}

	in := make([]complex128, n)
	for i, v := range h {
		in[i] = complex(v, 0)
	}

	spec := make([]complex128, n)
	if err := plan.Forward(spec, in); err != nil {
		return nil, 0, fmt.Errorf("response: fft: %w", err)
	}

	bins := n/2 + 1
	re := make([]float64, bins)
	im := make([]float64, bins)
	for k := 0; k < bins; k++ {
		re[k] = real(spec[k])
		im[k] = imag(spec[k])
	}

	mag := make([]float64, bins)
	vecmath.Magnitude(mag, re, im)

	return mag, n, nil
}

// FindNotches returns the frequencies of interior local minima of mag that lie
// in the lower ratio of its range, between the smallest and largest magnitude.
// A flat response has no notches.
func FindNotches(mag []float64, binHz, ratio float64) []float64 {
	if len(mag) < 3 {
		return nil
	}

	lo, hi := math.Inf(1), 0.0
	for _, v := range mag {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo <= flatTolerance*hi {
		return nil
	}
	threshold := lo + ratio*(hi-lo)

	var notches []float64
	for k := 1; k < len(mag)-1; k++ {
		if mag[k] < mag[k-1] && mag[k] <= mag[k+1] && mag[k] < threshold {
			notches = append(notches, float64(k)*binHz)
		}
	}

	return notches
}

// ExpectedNotches returns the notch frequencies (k+1/2)/delay of a positive
// feedback comb up to maxHz.
func ExpectedNotches(delaySeconds, maxHz float64) []float64 {
	if !(delaySeconds > 0) || !(maxHz > 0) {
		return nil
	}

	var out []float64
	for k := 0; ; k++ {
		f := (float64(k) + 0.5) / delaySeconds
		if f > maxHz {
			return out
		}
		out = append(out, f)
	}
}

// ExpectedDecayTime returns the time in seconds for the echoes of a feedback
// comb with the given loop delay and gain to fall by 60 dB.
// It returns 0 for gains outside (0, 1).
func ExpectedDecayTime(delaySeconds, feedback float64) float64 {
	if !(delaySeconds > 0) || !(feedback > 0) || feedback >= 1 {
		return 0
	}

	return -3 * delaySeconds / math.Log10(feedback)
}

// DecayTime estimates the -60 dB decay time of h by linear regression on the
// Schroeder curve between -5 and -35 dB, falling back to -5 to -25 dB.
func (a *Analyzer) DecayTime(h []float64) (float64, error) {
	if len(h) == 0 {
		return 0, fmt.Errorf("%w: 0", ErrInvalidLength)
	}
	if a.SampleRate <= 0 {
		return 0, ErrInvalidSampleRate
	}

	curve := schroeder(h)

	if rt := a.fitDecay(curve, -5, -35); rt > 0 {
		return rt, nil
	}
	if rt := a.fitDecay(curve, -5, -25); rt > 0 {
		return rt, nil
	}

	return 0, ErrNoDecay
}

// schroeder returns the backward-integrated energy of h in dB re total energy.
func schroeder(h []float64) []float64 {
	out := make([]float64, len(h))

	var sum float64
	for i := len(h) - 1; i >= 0; i-- {
		sum += h[i] * h[i]
		out[i] = sum
	}

	total := out[0]
	if total <= 0 {
		return out
	}

	for i := range out {
		ratio := out[i] / total
		if ratio <= 0 {
			out[i] = floorDB
		} else {
			out[i] = 10 * math.Log10(ratio)
		}
	}

	return out
}

func (a *Analyzer) fitDecay(curve []float64, startDB, endDB float64) float64 {
	start, end := -1, -1
	for i, v := range curve {
		if start < 0 && v <= startDB {
			start = i
		}
		if start >= 0 && v <= endDB {
			end = i
			break
		}
	}

	if start < 0 || end <= start {
		return 0
	}

	var sumX, sumY, sumXX, sumXY float64
	for i := start; i <= end; i++ {
		x := float64(i - start)
		y := curve[i]
		sumX += x
		sumY += y
		sumXX += x * x
		sumXY += x * y
	}

	n := float64(end - start + 1)
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}

	slope := (n*sumXY - sumX*sumY) / denom // dB per sample
	if slope >= 0 {
		return 0
	}

	return -60 / (slope * a.SampleRate)
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
