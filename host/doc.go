// Package host adapts the flanger engine to a plugin-style host lifecycle:
// prepare, parameter automation by string ID, block processing and release.
//
// Parameter values live in a lock-free store that survives release, so a
// host may change parameters before the first prepare and between prepares.
// The store is pushed into the engine on every PrepareToPlay.
package host
