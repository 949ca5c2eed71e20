package modulation

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/cwbudde/algo-flanger/dsp/core"
	"github.com/cwbudde/algo-flanger/dsp/delay"
	"github.com/cwbudde/algo-flanger/dsp/interp"
	"github.com/cwbudde/algo-flanger/dsp/oscillator"
	"github.com/cwbudde/algo-flanger/dsp/wavetable"
	"github.com/cwbudde/algo-flanger/internal/testutil"
)

func monoSpec(sampleRate float64) core.ProcessSpec {
	return core.ProcessSpec{SampleRate: sampleRate, BlockSize: 64, NumChannels: 1}
}

func newReady(t *testing.T, spec core.ProcessSpec, maxDelay float64, s FlangerSettings) *Flanger {
	t.Helper()

	f := NewFlanger()
	if err := f.InitializeWithMaxDelay(spec, maxDelay); err != nil {
		t.Fatalf("InitializeWithMaxDelay() error = %v", err)
	}
	f.Apply(s)

	return f
}

// --- lifecycle ---

func TestFlangerInitializeValidation(t *testing.T) {
	for _, maxDelay := range []float64{0, -0.5, math.NaN(), math.Inf(1)} {
		f := NewFlanger()
		err := f.InitializeWithMaxDelay(monoSpec(48000), maxDelay)
		if !errors.Is(err, ErrInvalidMaxDelay) {
			t.Fatalf("maxDelay=%v: error = %v, want ErrInvalidMaxDelay", maxDelay, err)
		}
		if f.Ready() {
			t.Fatalf("maxDelay=%v: flanger ready after failed initialize", maxDelay)
		}
	}

	f := NewFlanger()
	if err := f.InitializeWithMaxDelay(monoSpec(48000), 1e300); !errors.Is(err, delay.ErrInvalidDuration) {
		t.Fatalf("maxDelay=1e300: error = %v, want delay.ErrInvalidDuration", err)
	}
	if f.Ready() {
		t.Fatal("flanger ready after oversized max delay")
	}

	err := f.InitializeWithMaxDelay(core.ProcessSpec{SampleRate: 48000, BlockSize: 64}, 1)
	if !errors.Is(err, core.ErrInvalidSpec) {
		t.Fatalf("invalid spec: error = %v, want ErrInvalidSpec", err)
	}
	if f.Ready() || !f.Spec().IsZero() {
		t.Fatal("flanger ready after invalid spec")
	}
}

func TestFlangerInitializeSucceeds(t *testing.T) {
	spec := core.ProcessSpec{SampleRate: 44100, BlockSize: 128, NumChannels: 2}

	f := NewFlanger(WithFlangerMaxDelaySeconds(0.02))
	if err := f.Initialize(spec); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if !f.Ready() || f.Spec() != spec {
		t.Fatalf("ready=%v spec=%#v", f.Ready(), f.Spec())
	}
	if f.Latency() != 0 {
		t.Fatalf("Latency() = %d, want 0", f.Latency())
	}
	if f.MaxDelaySeconds() != 0.02 {
		t.Fatalf("MaxDelaySeconds() = %v, want 0.02", f.MaxDelaySeconds())
	}
	if got, want := f.line.Capacity(), int(math.Ceil(44100*0.02)); got != want {
		t.Fatalf("capacity = %d, want %d", got, want)
	}
	if f.line.NumChannels() != 2 {
		t.Fatalf("delay channels = %d, want 2", f.line.NumChannels())
	}
}

func TestFlangerDefaultMaxDelay(t *testing.T) {
	f := NewFlanger(WithFlangerMaxDelaySeconds(-1))
	if err := f.Initialize(monoSpec(1000)); err != nil {
		t.Fatal(err)
	}
	if f.MaxDelaySeconds() != DefaultFlangerMaxDelaySeconds {
		t.Fatalf("MaxDelaySeconds() = %v, want default", f.MaxDelaySeconds())
	}
}

func TestFlangerSettersAreNoOpsUntilReady(t *testing.T) {
	f := NewFlanger()
	f.Apply(FlangerSettings{Mix: 0.5, Feedback: 0.5, DelaySeconds: 0.002, LFOAmp: 0.001, LFOFreqHz: 2})

	if got := f.Settings(); got != (FlangerSettings{}) {
		t.Fatalf("settings stored before initialize: %#v", got)
	}
	if f.lfo.Gain() != 0 || f.lfo.Frequency() != 0 {
		t.Fatal("LFO configured before initialize")
	}
}

func TestFlangerProcessIsNoOpUntilReady(t *testing.T) {
	f := NewFlanger()
	buf := [][]float64{{1, 2, 3}}
	f.Process(buf)
	f.Clear()
	f.Reset()

	testutil.RequireSliceNearlyEqual(t, buf[0], []float64{1, 2, 3}, 0)
}

func TestFlangerSetterClamping(t *testing.T) {
	f := newReady(t, monoSpec(48000), 0.1, FlangerSettings{})

	tests := []struct {
		name string
		set  func(float64)
		get  func() float64
		in   float64
		want float64
	}{
		{"mix above", f.SetMix, f.Mix, 1.5, 1},
		{"mix below", f.SetMix, f.Mix, -0.2, 0},
		{"mix inside", f.SetMix, f.Mix, 0.3, 0.3},
		{"mix +inf", f.SetMix, f.Mix, math.Inf(1), 1},
		{"feedback above", f.SetFeedback, f.Feedback, 3, 1},
		{"feedback below", f.SetFeedback, f.Feedback, -1, 0},
		{"feedback inside", f.SetFeedback, f.Feedback, 0.7, 0.7},
		{"delay negative", f.SetDelayTime, f.DelayTime, -0.004, 0},
		{"delay inside", f.SetDelayTime, f.DelayTime, 0.003, 0.003},
		{"lfo amp", f.SetLFOAmp, f.LFOAmp, 0.002, 0.002},
		{"lfo freq", f.SetLFOFreq, f.LFOFreq, 7.5, 7.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.set(tt.in)
			if got := tt.get(); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlangerSettersIgnoreNaN(t *testing.T) {
	f := newReady(t, monoSpec(48000), 0.1, FlangerSettings{Mix: 0.4, Feedback: 0.2, DelaySeconds: 0.001, LFOAmp: 0.001, LFOFreqHz: 1})
	want := f.Settings()

	f.Apply(FlangerSettings{Mix: math.NaN(), Feedback: math.NaN(), DelaySeconds: math.NaN(), LFOAmp: math.NaN(), LFOFreqHz: math.NaN()})
	f.SetLFOAmp(math.Inf(1))
	f.SetLFOFreq(math.Inf(-1))

	if got := f.Settings(); got != want {
		t.Fatalf("settings = %#v, want %#v", got, want)
	}
}

func TestFlangerReinitializeKeepsParameters(t *testing.T) {
	s := FlangerSettings{Mix: 0.4, Feedback: 0.2, DelaySeconds: 0.001, LFOAmp: 0.0005, LFOFreqHz: 1}
	f := newReady(t, monoSpec(48000), 0.1, s)

	if err := f.InitializeWithMaxDelay(monoSpec(96000), 0.05); err != nil {
		t.Fatal(err)
	}
	if f.Settings() != s {
		t.Fatalf("settings = %#v, want %#v", f.Settings(), s)
	}
	if f.lfo.Gain() != s.LFOAmp || f.lfo.Frequency() != s.LFOFreqHz {
		t.Fatal("LFO not re-armed with stored parameters")
	}

	if err := f.InitializeWithMaxDelay(monoSpec(96000), 0); err == nil {
		t.Fatal("expected error")
	}
	if !f.Ready() || f.MaxDelaySeconds() != 0.05 {
		t.Fatal("failed re-initialize changed a ready flanger")
	}
}

func TestFlangerResetReturnsToUninitialized(t *testing.T) {
	f := newReady(t, monoSpec(48000), 0.1, FlangerSettings{Mix: 1, Feedback: 0.5, DelaySeconds: 0.002, LFOAmp: 0.001, LFOFreqHz: 3})

	f.Reset()

	if f.Ready() || !f.Spec().IsZero() || f.MaxDelaySeconds() != 0 {
		t.Fatalf("ready=%v spec=%#v max=%v", f.Ready(), f.Spec(), f.MaxDelaySeconds())
	}
	if f.Settings() != (FlangerSettings{}) {
		t.Fatalf("parameters not zeroed: %#v", f.Settings())
	}
	if f.line != nil || f.lfo.Bound() {
		t.Fatal("resources kept after reset")
	}

	f.SetMix(0.5)
	if f.Mix() != 0 {
		t.Fatal("setter active after reset")
	}
}

// --- signal behaviour ---

func TestFlangerDryPassthroughAtZeroMix(t *testing.T) {
	f := newReady(t, core.ProcessSpec{SampleRate: 48000, BlockSize: 256, NumChannels: 2}, 0.05,
		FlangerSettings{Mix: 0, Feedback: 0.9, DelaySeconds: 0.004, LFOAmp: 0.002, LFOFreqHz: 0.7})

	left := testutil.DeterministicNoise(1, 1, 2048)
	right := testutil.DeterministicSine(440, 48000, 0.8, 2048)

	buf := [][]float64{append([]float64(nil), left...), append([]float64(nil), right...)}
	for start := 0; start < 2048; start += 256 {
		f.Process([][]float64{buf[0][start : start+256], buf[1][start : start+256]})
	}

	testutil.RequireSliceNearlyEqual(t, buf[0], left, 0)
	testutil.RequireSliceNearlyEqual(t, buf[1], right, 0)
}

func TestFlangerFeedbackEchoesAtConfiguredDelay(t *testing.T) {
	const feedback = 0.5

	f := newReady(t, monoSpec(1000), 0.1,
		FlangerSettings{Mix: 1, Feedback: feedback, DelaySeconds: 0.005})

	out := testutil.RunBlocks(testutil.Impulse(32, 0), 7, f.ProcessMono)

	testutil.RequireSliceNearlyEqual(t, out, testutil.EchoTrain(32, 5, feedback, 1), 1e-12)
}

func TestFlangerZeroFeedbackIsTransparent(t *testing.T) {
	f := newReady(t, monoSpec(1000), 0.1, FlangerSettings{Mix: 1, Feedback: 0, DelaySeconds: 0.005})

	in := testutil.DeterministicNoise(7, 1, 256)
	out := testutil.RunBlocks(in, 64, f.ProcessMono)

	testutil.RequireSliceNearlyEqual(t, out, in, 0)
}

func TestFlangerMixBlendsWetAndDry(t *testing.T) {
	const (
		feedback = 0.8
		mix      = 0.25
	)

	f := newReady(t, monoSpec(1000), 0.1, FlangerSettings{Mix: mix, Feedback: feedback, DelaySeconds: 0.004})

	out := testutil.RunBlocks(testutil.Impulse(16, 0), 16, f.ProcessMono)

	// wet = dry + feedback*delayed, out = wet*mix + dry*(1-mix)
	testutil.RequireSliceNearlyEqual(t, out, testutil.EchoTrain(16, 4, feedback, mix), 1e-12)
}

func TestFlangerZeroDelayHasOneSampleMinimum(t *testing.T) {
	f := newReady(t, monoSpec(1000), 0.1, FlangerSettings{Mix: 1, Feedback: 0.5})

	out := testutil.RunBlocks(testutil.Impulse(6, 0), 6, f.ProcessMono)
	testutil.RequireSliceNearlyEqual(t, out, testutil.EchoTrain(6, 1, 0.5, 1), 1e-12)
}

func TestFlangerOutputStaysBounded(t *testing.T) {
	const feedback = 0.95

	spec := core.ProcessSpec{SampleRate: 48000, BlockSize: 480, NumChannels: 2}
	f := newReady(t, spec, 0.02, FlangerSettings{Mix: 0.7, Feedback: feedback, DelaySeconds: 0.003, LFOAmp: 0.002, LFOFreqHz: 0.5})

	// |wet| <= |x|max / (1 - feedback)
	limit := 1/(1-feedback) + 1e-9

	buf := core.NewBlock(2, spec.BlockSize)
	for block := 0; block < 400; block++ {
		noise := testutil.DeterministicNoise(int64(block), 1, spec.BlockSize)
		copy(buf[0], noise)
		copy(buf[1], testutil.DC(1, spec.BlockSize))

		f.Process(buf)

		for ch := range buf {
			testutil.RequireBounded(t, buf[ch], limit)
		}
	}
}

func TestFlangerResetReinitializeRoundTrip(t *testing.T) {
	spec := core.ProcessSpec{SampleRate: 44100, BlockSize: 100, NumChannels: 2}
	s := FlangerSettings{Mix: 0.6, Feedback: 0.7, DelaySeconds: 0.003, LFOAmp: 0.002, LFOFreqHz: 1.3}

	render := func(f *Flanger) [][]float64 {
		buf := [][]float64{
			testutil.DeterministicNoise(3, 1, 1000),
			testutil.DeterministicSine(220, spec.SampleRate, 1, 1000),
		}
		for start := 0; start < 1000; start += spec.BlockSize {
			end := start + spec.BlockSize
			if start == 500 {
				f.SetLFOFreq(4)
				f.SetFeedback(0.3)
			}
			f.Process([][]float64{buf[0][start:end], buf[1][start:end]})
		}
		return buf
	}

	f := newReady(t, spec, 0.01, s)
	first := render(f)

	f.Reset()
	if err := f.InitializeWithMaxDelay(spec, 0.01); err != nil {
		t.Fatal(err)
	}
	f.Apply(s)
	second := render(f)

	for ch := range first {
		testutil.RequireSliceNearlyEqual(t, second[ch], first[ch], 0)
	}
}

func TestFlangerClearDropsHistory(t *testing.T) {
	f := newReady(t, monoSpec(1000), 0.1, FlangerSettings{Mix: 1, Feedback: 0.9, DelaySeconds: 0.003})

	testutil.RunBlocks(testutil.Impulse(4, 0), 4, f.ProcessMono)
	f.Clear()

	if !f.Ready() {
		t.Fatal("Clear left the ready state")
	}

	out := testutil.RunBlocks(make([]float64, 32), 32, f.ProcessMono)
	testutil.RequireSliceNearlyEqual(t, out, make([]float64, 32), 0)
}

func TestFlangerChannelsDoNotInteract(t *testing.T) {
	spec := core.ProcessSpec{SampleRate: 1000, BlockSize: 32, NumChannels: 2}
	f := newReady(t, spec, 0.1, FlangerSettings{Mix: 0.5, Feedback: 0.9, DelaySeconds: 0.003, LFOAmp: 0.001, LFOFreqHz: 5})

	buf := [][]float64{testutil.Impulse(32, 0), make([]float64, 32)}
	f.Process(buf)

	testutil.RequireSliceNearlyEqual(t, buf[1], make([]float64, 32), 0)
}

func TestFlangerIgnoresExtraChannels(t *testing.T) {
	f := newReady(t, monoSpec(1000), 0.1, FlangerSettings{Mix: 1, Feedback: 0.5, DelaySeconds: 0.002})

	extra := []float64{1, 1, 1, 1}
	f.Process([][]float64{testutil.Impulse(4, 0), extra})
	f.Process(nil)

	testutil.RequireSliceNearlyEqual(t, extra, []float64{1, 1, 1, 1}, 0)
}

func TestFlangerLFOChangeAppliesOnNextSample(t *testing.T) {
	const (
		sampleRate = 8000.0
		base       = 0.004
	)

	f := newReady(t, monoSpec(sampleRate), 0.02, FlangerSettings{Mix: 1, DelaySeconds: base, LFOAmp: 0.001, LFOFreqHz: 2})

	var ref oscillator.Oscillator
	if err := ref.Initialize(wavetable.Sine(), 2, sampleRate); err != nil {
		t.Fatal(err)
	}
	ref.SetGain(0.001)

	buf := make([]float64, 1)
	for i := 0; i < 50; i++ {
		f.ProcessMono(buf)
		ref.NextSample()
	}

	f.SetLFOAmp(0.003)
	f.SetLFOFreq(40)
	ref.SetGain(0.003)
	ref.SetFrequency(40)

	for i := 0; i < 5; i++ {
		f.ProcessMono(buf)
		want := (base + ref.NextSample()) * sampleRate
		if got := f.line.Delay(); !core.NearlyEqual(got, want, 1e-12) {
			t.Fatalf("sample %d after change: delay %v, want %v", i, got, want)
		}
	}
}

func TestFlangerDelayIsBoundedByCapacity(t *testing.T) {
	f := newReady(t, monoSpec(1000), 0.01, FlangerSettings{Mix: 1, Feedback: 0.5, DelaySeconds: 5, LFOAmp: 1, LFOFreqHz: 3})

	out := testutil.RunBlocks(testutil.DeterministicNoise(2, 1, 512), 64, f.ProcessMono)
	testutil.RequireFinite(t, out)

	if d := f.line.Delay(); d < 0 || d >= float64(f.line.Capacity()) {
		t.Fatalf("delay %v escaped [0, %d)", d, f.line.Capacity())
	}
}

func TestFlangerHermiteInterpolation(t *testing.T) {
	f := NewFlanger(WithFlangerInterpolation(interp.Hermite), WithFlangerWavetable(wavetable.New(wavetable.ShapeTriangle)))
	if err := f.InitializeWithMaxDelay(monoSpec(48000), 0.02); err != nil {
		t.Fatal(err)
	}
	f.Apply(FlangerSettings{Mix: 0.5, Feedback: 0.6, DelaySeconds: 0.003, LFOAmp: 0.002, LFOFreqHz: 1})

	if f.line.Mode() != interp.Hermite {
		t.Fatalf("delay mode = %v, want Hermite", f.line.Mode())
	}

	out := testutil.RunBlocks(testutil.DeterministicSine(1000, 48000, 1, 4800), 480, f.ProcessMono)
	testutil.RequireFinite(t, out)
}

func TestFlangerProcessDoesNotAllocate(t *testing.T) {
	spec := core.ProcessSpec{SampleRate: 48000, BlockSize: 256, NumChannels: 2}
	f := newReady(t, spec, 0.02, FlangerSettings{Mix: 0.5, Feedback: 0.5, DelaySeconds: 0.003, LFOAmp: 0.002, LFOFreqHz: 1})

	buf := core.NewBlock(2, spec.BlockSize)
	mono := make([]float64, spec.BlockSize)

	allocs := testing.AllocsPerRun(100, func() {
		f.Process(buf)
		f.ProcessMono(mono)
	})
	if allocs != 0 {
		t.Fatalf("Process allocated %v times per run", allocs)
	}
}

func TestFlangerConcurrentParameterUpdates(t *testing.T) {
	spec := core.ProcessSpec{SampleRate: 48000, BlockSize: 128, NumChannels: 2}
	f := newReady(t, spec, 0.02, FlangerSettings{Mix: 0.5, Feedback: 0.5, DelaySeconds: 0.003, LFOAmp: 0.001, LFOFreqHz: 1})

	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			v := float64(i%100) / 100
			f.SetMix(v)
			f.SetFeedback(v * 0.9)
			f.SetDelayTime(0.001 + v*0.005)
			f.SetLFOAmp(v * 0.002)
			f.SetLFOFreq(v * 10)
		}
	}()

	buf := core.NewBlock(2, spec.BlockSize)
	for block := 0; block < 200; block++ {
		copy(buf[0], testutil.DeterministicNoise(int64(block), 1, spec.BlockSize))
		copy(buf[1], buf[0])
		f.Process(buf)
		testutil.RequireFinite(t, buf[0])
	}

	close(done)
	wg.Wait()
}

func TestFlangerResetDuringAutomationZeroesParameters(t *testing.T) {
	spec := monoSpec(1000)
	settings := FlangerSettings{Mix: 0.5, Feedback: 0.5, DelaySeconds: 0.003, LFOAmp: 0.001, LFOFreqHz: 1}

	for round := 0; round < 200; round++ {
		f := newReady(t, spec, 0.02, settings)

		start := make(chan struct{})
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := 0; i < 50; i++ {
					f.Apply(settings)
				}
			}()
		}

		close(start)
		f.Reset()
		wg.Wait()

		if f.Ready() {
			t.Fatal("Ready after Reset")
		}
		if got := f.Settings(); got != (FlangerSettings{}) {
			t.Fatalf("round %d: parameters after Reset = %+v, want zero", round, got)
		}
	}
}

// --- benchmarks ---

func BenchmarkFlangerProcessStereo(b *testing.B) {
	spec := core.ProcessSpec{SampleRate: 48000, BlockSize: 512, NumChannels: 2}
	f := NewFlanger()
	_ = f.InitializeWithMaxDelay(spec, 1)
	f.Apply(FlangerSettings{Mix: 0.3, Feedback: 0.3, DelaySeconds: 0.003, LFOAmp: 0.003, LFOFreqHz: 1})

	buf := core.NewBlock(2, spec.BlockSize)
	copy(buf[0], testutil.DeterministicNoise(1, 1, spec.BlockSize))
	copy(buf[1], buf[0])
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		f.Process(buf)
	}
}
