package main

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/cwbudde/algo-flanger/dsp/signal"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var errNotWAV = errors.New("not a valid WAV file")

// pcm is a decoded or to-be-encoded stream in [channel][sample] layout.
type pcm struct {
	block      [][]float64
	sampleRate int
	bitDepth   int
}

func (p pcm) channels() int { return len(p.block) }

func (p pcm) frames() int {
	if len(p.block) == 0 {
		return 0
	}
	return len(p.block[0])
}

func fullScale(bitDepth int) float64 {
	return float64(int64(1) << (bitDepth - 1))
}

// offset is the integer code for silence. 8-bit WAV PCM is unsigned and
// centered on 128; wider depths are signed.
func offset(bitDepth int) int {
	if bitDepth == 8 {
		return 128
	}
	return 0
}

func toFloat(v, bitDepth int) float64 {
	return float64(v-offset(bitDepth)) / fullScale(bitDepth)
}

func toInt(x float64, bitDepth int) int {
	scale := fullScale(bitDepth)
	return int(math.Max(-scale, math.Min(scale-1, math.Round(x*scale)))) + offset(bitDepth)
}

func readWAV(path string) (pcm, error) {
	f, err := os.Open(path)
	if err != nil {
		return pcm{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return pcm{}, fmt.Errorf("%s: %w", path, errNotWAV)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return pcm{}, fmt.Errorf("%s: decode: %w", path, err)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 || bitDepth > 32 {
		return pcm{}, fmt.Errorf("%s: unsupported bit depth %d", path, bitDepth)
	}

	data := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		data[i] = toFloat(v, bitDepth)
	}

	block, err := signal.Deinterleave(data, int(dec.NumChans))
	if err != nil {
		return pcm{}, fmt.Errorf("%s: %w", path, err)
	}

	return pcm{block: block, sampleRate: int(dec.SampleRate), bitDepth: bitDepth}, nil
}

func writeWAV(path string, p pcm) (err error) {
	if p.channels() == 0 {
		return fmt.Errorf("%s: no channels to write", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc := wav.NewEncoder(f, p.sampleRate, p.bitDepth, p.channels(), 1)

	flat := signal.Interleave(p.block)
	data := make([]int, len(flat))
	for i, v := range flat {
		data[i] = toInt(v, p.bitDepth)
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: p.channels(), SampleRate: p.sampleRate},
		Data:           data,
		SourceBitDepth: p.bitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("%s: encode: %w", path, err)
	}

	return enc.Close()
}
