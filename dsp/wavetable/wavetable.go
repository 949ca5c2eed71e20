package wavetable

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/algo-flanger/dsp/interp"
)

const (
	// MinSize is the smallest table length Initialize will allocate.
	MinSize = 2
	// DefaultSize is the length of the shared sine table.
	DefaultSize = 4096
)

// Shape selects the waveform stored in a Table.
type Shape int

const (
	// ShapeSine is one period of sin(2*pi*p).
	ShapeSine Shape = iota
	// ShapeTriangle rises from 0 to 1, falls to -1 and returns to 0.
	ShapeTriangle
	// ShapeSaw rises from 0 to 1, jumps to -1 and rises back to 0.
	ShapeSaw
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeSine:
		return "sine"
	case ShapeTriangle:
		return "triangle"
	case ShapeSaw:
		return "saw"
	default:
		return "unknown"
	}
}

// ErrUnknownShape is returned by ParseShape for an unrecognized name.
var ErrUnknownShape = errors.New("wavetable: unknown shape")

// ParseShape returns the shape whose String form is name.
func ParseShape(name string) (Shape, error) {
	for _, s := range []Shape{ShapeSine, ShapeTriangle, ShapeSaw} {
		if s.String() == name {
			return s, nil
		}
	}

	return ShapeSine, fmt.Errorf("%w: %q", ErrUnknownShape, name)
}

// Table is a one-cycle lookup table. The zero value is an uninitialized sine table.
type Table struct {
	shape   Shape
	once    sync.Once
	samples []float64
}

// New returns an uninitialized table of the given shape.
func New(shape Shape) *Table {
	return &Table{shape: shape}
}

var shared Table

// Sine returns the process-wide sine table of DefaultSize samples.
func Sine() *Table {
	shared.Initialize(DefaultSize)
	return &shared
}

// Initialize allocates and fills size samples covering one period.
// Only the first call has an effect.
func (t *Table) Initialize(size int) {
	t.once.Do(func() {
		if size < MinSize {
			size = MinSize
		}

		samples := make([]float64, size)
		for i := range samples {
			samples[i] = t.shape.value(float64(i) / float64(size))
		}

		t.samples = samples
	})
}

// Initialized reports whether Initialize has run.
func (t *Table) Initialized() bool {
	return len(t.samples) > 0
}

// Shape returns the table waveform.
func (t *Table) Shape() Shape {
	return t.shape
}

// Len returns the number of samples in one cycle, 0 before Initialize.
func (t *Table) Len() int {
	return len(t.samples)
}

// At returns the stored sample at i, wrapping periodically.
func (t *Table) At(i int) float64 {
	n := len(t.samples)
	if n == 0 {
		return 0
	}

	i %= n
	if i < 0 {
		i += n
	}

	return t.samples[i]
}

// Read linearly interpolates the table at a fractional index, wrapping at
// the table boundary. An uninitialized table reads as 0.
func (t *Table) Read(index float64) float64 {
	n := len(t.samples)
	if n == 0 || math.IsNaN(index) || math.IsInf(index, 0) {
		return 0
	}

	size := float64(n)
	if index < 0 || index >= size {
		index = math.Mod(index, size)
		if index < 0 {
			index += size
		}
	}

	i0 := int(index)
	if i0 >= n {
		i0 = 0
	}

	i1 := i0 + 1
	if i1 == n {
		i1 = 0
	}

	return interp.Linear2(index-float64(i0), t.samples[i0], t.samples[i1])
}

// ReadPhase reads the table at a normalized phase, where 1 is one full cycle.
func (t *Table) ReadPhase(phase float64) float64 {
	return t.Read(phase * float64(len(t.samples)))
}

func (s Shape) value(p float64) float64 {
	switch s {
	case ShapeTriangle:
		switch {
		case p < 0.25:
			return 4 * p
		case p < 0.75:
			return 2 - 4*p
		default:
			return 4*p - 4
		}
	case ShapeSaw:
		if p < 0.5 {
			return 2 * p
		}
		return 2*p - 2
	default:
		return math.Sin(2 * math.Pi * p)
	}
}
