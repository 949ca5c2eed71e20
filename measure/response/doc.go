// Package response measures the linear response of a prepared flanger, or any
// mono block processor, by feeding it a unit impulse.
//
// With the LFO amplitude at zero the flanger is a feedback comb filter.
// [Analyzer.Analyze] returns its impulse response, magnitude response, notch
// frequencies and feedback decay time, which can be compared against the
// closed forms [ExpectedNotches] and [ExpectedDecayTime].
//
// # Usage
//
//	a := response.NewAnalyzer(48000, response.WithLength(8192))
//	res, err := a.Analyze(flanger)
//	fmt.Println(res.Notches, res.DecayTime)
package response
