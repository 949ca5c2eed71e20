package delay

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-flanger/dsp/core"
	"github.com/cwbudde/algo-flanger/dsp/interp"
)

// Errors returned by the delay line.
var (
	ErrInvalidCapacity = errors.New("delay: capacity must be in [1, MaxCapacity]")
	ErrInvalidDuration = errors.New("delay: duration and sample rate must be > 0 and finite")
)

// MaxCapacity is the largest delay in samples a Line accepts.
const MaxCapacity = math.MaxInt32

// guard is the number of extra slots kept beyond capacity so that every
// interpolation tap at the longest delay stays inside the buffer.
const guard = 2

// Option configures a Line.
type Option func(*Line)

// WithMode selects the fractional read kernel. Unknown modes are ignored.
func WithMode(mode interp.Mode) Option {
	return func(l *Line) {
		if mode == interp.Linear || mode == interp.Hermite {
			l.mode = mode
		}
	}
}

// Line is a multichannel circular delay line with a shared fractional delay.
//
// Within one sample frame callers pop before they push. The most recently
// pushed sample therefore sits one sample behind the write head, and any
// delay below one sample reads with an effective delay of one sample.
// A delay of D >= 1 samples returns the sample pushed D frames earlier.
type Line struct {
	capacity int
	mode     interp.Mode

	buffers  [][]float64
	writePos []int

	delay     float64
	delayInt  int
	delayFrac float64
}

// New returns an unprepared delay line holding up to capacity samples of delay.
func New(capacity int, opts ...Option) (*Line, error) {
	if capacity <= 0 || capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	l := &Line{capacity: capacity, mode: interp.Linear}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	l.SetDelay(0)

	return l, nil
}

// NewForDuration returns a delay line with capacity ceil(sampleRate*maxDelaySeconds).
func NewForDuration(maxDelaySeconds, sampleRate float64, opts ...Option) (*Line, error) {
	if !(maxDelaySeconds > 0) || !(sampleRate > 0) || math.IsInf(maxDelaySeconds, 0) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("%w: duration=%f sampleRate=%f", ErrInvalidDuration, maxDelaySeconds, sampleRate)
	}

	samples := math.Ceil(sampleRate * maxDelaySeconds)
	if samples > MaxCapacity {
		return nil, fmt.Errorf("%w: %g samples exceeds %d", ErrInvalidDuration, samples, MaxCapacity)
	}

	return New(int(samples), opts...)
}

// Prepare allocates one buffer per channel of spec. It must be called before
// any PushSample/PopSample and replaces previous storage.
func (l *Line) Prepare(spec core.ProcessSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	size := l.capacity + guard
	backing := make([]float64, spec.NumChannels*size)

	l.buffers = make([][]float64, spec.NumChannels)
	for ch := range l.buffers {
		l.buffers[ch] = backing[ch*size : (ch+1)*size : (ch+1)*size]
	}

	l.writePos = make([]int, spec.NumChannels)

	return nil
}

// Prepared reports whether storage is allocated.
func (l *Line) Prepared() bool {
	return l.buffers != nil
}

// Capacity returns the maximum delay in samples.
func (l *Line) Capacity() int {
	return l.capacity
}

// NumChannels returns the number of prepared channels.
func (l *Line) NumChannels() int {
	return len(l.buffers)
}

// Mode returns the fractional read kernel.
func (l *Line) Mode() interp.Mode {
	return l.mode
}

// Delay returns the current (clamped) delay in samples.
func (l *Line) Delay() float64 {
	return l.delay
}

// SetDelay sets the fractional read offset, clamped to [0, capacity).
// NaN is treated as 0.
func (l *Line) SetDelay(samples float64) {
	maxDelay := math.Nextafter(float64(l.capacity), 0)

	switch {
	case !(samples > 0):
		samples = 0
	case samples > maxDelay:
		samples = maxDelay
	}

	l.delay = samples

	effective := samples
	if effective < 1 {
		effective = 1
	}

	l.delayInt = int(effective)
	l.delayFrac = effective - float64(l.delayInt)
}

// PushSample writes value at the write head of channel ch and advances the head.
func (l *Line) PushSample(ch int, value float64) {
	if ch < 0 || ch >= len(l.buffers) {
		return
	}

	buf := l.buffers[ch]
	w := l.writePos[ch]
	buf[w] = value

	w++
	if w == len(buf) {
		w = 0
	}

	l.writePos[ch] = w
}

// PopSample returns the interpolated sample of channel ch at the current delay.
func (l *Line) PopSample(ch int) float64 {
	if ch < 0 || ch >= len(l.buffers) {
		return 0
	}

	buf := l.buffers[ch]
	w := l.writePos[ch]
	i := l.delayInt

	x0 := buf[wrap(w-i, len(buf))]
	x1 := buf[wrap(w-i-1, len(buf))]

	if l.mode == interp.Hermite {
		xm1 := buf[wrap(w-max(1, i-1), len(buf))]
		x2 := buf[wrap(w-i-2, len(buf))]

		return interp.Hermite4(l.delayFrac, xm1, x0, x1, x2)
	}

	return interp.Linear2(l.delayFrac, x0, x1)
}

// Reset clears all buffered samples and write heads but keeps the allocation.
func (l *Line) Reset() {
	for ch, buf := range l.buffers {
		core.Zero(buf)
		l.writePos[ch] = 0
	}
}

// Release drops storage. Prepare must be called before the line is used again.
func (l *Line) Release() {
	l.buffers = nil
	l.writePos = nil
}

func wrap(idx, size int) int {
	if idx < 0 {
		idx += size
	}

	return idx
}
