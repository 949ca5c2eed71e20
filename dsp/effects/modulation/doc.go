// Package modulation provides modulated-delay effects.
//
// Included processors:
//   - Flanger: short LFO-modulated delay with feedback and wet/dry mix,
//     safe to automate from a control goroutine while audio is processed.
package modulation
