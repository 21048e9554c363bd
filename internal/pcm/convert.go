package pcm

import (
	"encoding/binary"
	"fmt"
)

// scale maps the int16 range onto [-1, 1).
const scale = 32768.0

// ToFloat64 converts 16-bit signed samples to normalized float64 samples.
func ToFloat64(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / scale
	}
	return out
}

// ToInt16 converts normalized float64 samples to 16-bit signed samples,
// clipping to [-1, 1] first. The device write path requires clipped input;
// doing it here keeps the clamp in one place.
func ToInt16(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := Clip(s) * scale
		if v > scale-1 {
			v = scale - 1
		}
		out[i] = int16(v)
	}
	return out
}

// Clip clamps a sample to [-1, 1].
func Clip(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// ClipFrame clamps every sample of a frame to [-1, 1] in place and returns it.
func ClipFrame(frame []float64) []float64 {
	for i, s := range frame {
		frame[i] = Clip(s)
	}
	return frame
}

// BytesToInt16 decodes little-endian PCM-16 bytes into samples.
func BytesToInt16(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even, got %d bytes", len(data))
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples, nil
}

// Int16ToBytes encodes samples as little-endian PCM-16 bytes.
func Int16ToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}
