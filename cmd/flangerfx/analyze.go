package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cwbudde/algo-flanger/host"
	"github.com/cwbudde/algo-flanger/measure/response"
)

const maxListedNotches = 8

// analyze prepares proc as a mono engine with the LFO stopped and prints its
// comb response next to the closed-form expectation.
func analyze(proc *host.Processor, cfg config, w io.Writer) error {
	if err := proc.ParameterChanged(host.ParamLFOAmp, 0); err != nil {
		return err
	}

	sampleRate := float64(cfg.rate)
	if err := proc.PrepareToPlay(sampleRate, cfg.block, 1); err != nil {
		return err
	}
	defer proc.ReleaseResources()

	a := response.NewAnalyzer(sampleRate, response.WithLength(cfg.length), response.WithBlockSize(cfg.block))

	res, err := a.Analyze(proc.Engine())
	if err != nil {
		return err
	}

	s := proc.Settings()
	expected := response.ExpectedNotches(max(s.DelaySeconds, 1/sampleRate), sampleRate/2)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "delay\t%.6f s\n", s.DelaySeconds)
	fmt.Fprintf(tw, "feedback\t%.3f\n", s.Feedback)
	fmt.Fprintf(tw, "mix\t%.3f\n", s.Mix)
	fmt.Fprintf(tw, "fft size\t%d (%.3f Hz/bin)\n", res.FFTSize, res.BinHz)
	fmt.Fprintf(tw, "decay time\t%.4f s (expected %.4f s)\n", res.DecayTime,
		response.ExpectedDecayTime(max(s.DelaySeconds, 1/sampleRate), s.Feedback))
	fmt.Fprintf(tw, "notches\t%d (expected %d)\n", len(res.Notches), len(expected))
	fmt.Fprintf(tw, "\nnotch\tmeasured [Hz]\texpected [Hz]\n")
	fmt.Fprintf(tw, "-----\t-------------\t-------------\n")

	for i := 0; i < min(maxListedNotches, max(len(res.Notches), len(expected))); i++ {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, cell(res.Notches, i), cell(expected, i))
	}

	return tw.Flush()
}

func cell(values []float64, i int) string {
	if i >= len(values) {
		return "-"
	}
	return fmt.Sprintf("%.2f", values[i])
}
