// Package control holds the shared mutable control state: five mixing
// levels clamped to [0, 1], written by the control surfaces and snapshot-read
// by the audio loop once per frame, plus the single-key command table and
// raw-terminal key reader for the interactive control loop.
package control
