package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// DeterministicNoise generates white noise in [-amplitude, amplitude) with a fixed seed.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// EchoTrain returns the impulse response of a feedback comb with an integer
// period: 1 at index 0 and gain^k at index k*period, scaled by mix for k > 0.
func EchoTrain(length, period int, gain, mix float64) []float64 {
	out := make([]float64, length)
	if length == 0 {
		return out
	}
	out[0] = 1
	if period <= 0 {
		return out
	}
	g := 1.0
	for i := period; i < length; i += period {
		g *= gain
		out[i] = g * mix
	}
	return out
}

// RunBlocks copies in and feeds it to process in consecutive blocks of at
// most blockSize samples. It returns the processed copy.
func RunBlocks(in []float64, blockSize int, process func([]float64)) []float64 {
	out := make([]float64, len(in))
	copy(out, in)
	if blockSize <= 0 {
		blockSize = len(out)
	}
	for start := 0; start < len(out); start += blockSize {
		process(out[start:min(start+blockSize, len(out))])
	}
	return out
}
