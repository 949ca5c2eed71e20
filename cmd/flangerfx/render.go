package main

import (
	"github.com/cwbudde/algo-flanger/dsp/core"
	"github.com/cwbudde/algo-flanger/host"
)

// render processes block in place in consecutive slices of blockSize frames.
func render(proc *host.Processor, block [][]float64, blockSize int) {
	frames := core.BlockLen(block)
	view := make([][]float64, len(block))

	for start := 0; start < frames; start += blockSize {
		end := min(start+blockSize, frames)
		for ch := range block {
			view[ch] = block[ch][start:end]
		}
		proc.ProcessBlock(view)
	}
}
