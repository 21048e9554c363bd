// Package pcm converts between the engine's float64 frames and the device's
// native 16-bit signed PCM encoding, and provides WAV containerization for
// audio segments shipped to the language-model collaborator.
package pcm
