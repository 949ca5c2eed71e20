// Package wavetable provides single-cycle lookup tables read with periodic
// linear interpolation.
//
// A [Table] is filled once by [Table.Initialize] and is immutable afterwards,
// so any number of oscillators may read it concurrently. Further Initialize
// calls are no-ops regardless of the requested size. Sizes below [MinSize]
// are clamped to [MinSize].
package wavetable
