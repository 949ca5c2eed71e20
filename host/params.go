package host

import (
	"github.com/cwbudde/algo-flanger/dsp/core"
	"github.com/cwbudde/algo-flanger/dsp/effects/modulation"
)

// Parameter IDs exposed to the host.
const (
	ParamMix      = "mix"
	ParamFeedback = "feedback"
	ParamDelay    = "delay"
	ParamLFOAmp   = "lfoAmp"
	ParamLFOFreq  = "lfoFreq"
)

// Parameter describes one automatable value in plain units.
type Parameter struct {
	ID      string
	Name    string
	Unit    string
	Min     float64
	Max     float64
	Default float64
}

// Clamp limits v to [Min, Max].
func (p Parameter) Clamp(v float64) float64 {
	return core.Clamp(v, p.Min, p.Max)
}

// Normalize maps a plain value to [0, 1].
func (p Parameter) Normalize(plain float64) float64 {
	if p.Max <= p.Min {
		return 0
	}
	return (p.Clamp(plain) - p.Min) / (p.Max - p.Min)
}

// Denormalize maps a value in [0, 1] to plain units.
func (p Parameter) Denormalize(normalized float64) float64 {
	return p.Min + core.Clamp(normalized, 0, 1)*(p.Max-p.Min)
}

// DefaultParameters returns the parameter table in display order.
func DefaultParameters() []Parameter {
	return []Parameter{
		{ID: ParamMix, Name: "Mix", Min: 0, Max: 1, Default: 0.3},
		{ID: ParamFeedback, Name: "Feedback", Min: 0, Max: 1, Default: 0.3},
		{ID: ParamDelay, Name: "Delay", Unit: "s", Min: 0, Max: 0.01, Default: 0.003},
		{ID: ParamLFOAmp, Name: "LFO Amount", Unit: "s", Min: 0, Max: 0.005, Default: 0.003},
		{ID: ParamLFOFreq, Name: "LFO Frequency", Unit: "Hz", Min: 0, Max: 20, Default: 1},
	}
}

type slot struct {
	def   Parameter
	value core.AtomicFloat
	apply func(*modulation.Flanger, float64)
}

// store is built once and never resized, so lookups need no lock.
type store struct {
	slots map[string]*slot
	order []*slot
}

func newStore() *store {
	setters := map[string]func(*modulation.Flanger, float64){
		ParamMix:      (*modulation.Flanger).SetMix,
		ParamFeedback: (*modulation.Flanger).SetFeedback,
		ParamDelay:    (*modulation.Flanger).SetDelayTime,
		ParamLFOAmp:   (*modulation.Flanger).SetLFOAmp,
		ParamLFOFreq:  (*modulation.Flanger).SetLFOFreq,
	}

	defs := DefaultParameters()
	s := &store{
		slots: make(map[string]*slot, len(defs)),
		order: make([]*slot, 0, len(defs)),
	}

	for _, def := range defs {
		sl := &slot{def: def, apply: setters[def.ID]}
		sl.value.Store(def.Default)
		s.slots[def.ID] = sl
		s.order = append(s.order, sl)
	}

	return s
}

func (s *store) lookup(id string) (*slot, bool) {
	sl, ok := s.slots[id]
	return sl, ok
}

func (s *store) pushAll(f *modulation.Flanger) {
	for _, sl := range s.order {
		sl.apply(f, sl.value.Load())
	}
}

func (s *store) settings() modulation.FlangerSettings {
	load := func(id string) float64 { return s.slots[id].value.Load() }

	return modulation.FlangerSettings{
		Mix:          load(ParamMix),
		Feedback:     load(ParamFeedback),
		DelaySeconds: load(ParamDelay),
		LFOAmp:       load(ParamLFOAmp),
		LFOFreqHz:    load(ParamLFOFreq),
	}
}
