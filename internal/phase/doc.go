// Package phase implements the phase-domain signal processing core:
// a frame-length invariant encode/decode codec against a Gaussian reference
// wave, amplitude-weighted complex mixing, first-order phase extrapolation,
// and a bounded history buffer with coherent superposition blending.
package phase
