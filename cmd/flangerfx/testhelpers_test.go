package main

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeText(path, text string) error {
	return os.WriteFile(path, []byte(text), 0o600)
}

// writeRawWAV encodes data as stored integer codes, bypassing the float
// conversion under test.
func writeRawWAV(path string, data []int, sampleRate, bitDepth, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}

	return enc.Close()
}

func readRawWAV(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		return nil, err
	}

	return buf.Data, nil
}
