package pcm

import (
	"math"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	samples := make([]int16, 1024)
	for i := range samples {
		samples[i] = int16(i % 100)
	}

	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(data) != wavHeaderSize+len(samples)*2 {
		t.Errorf("Expected %d bytes, got %d", wavHeaderSize+len(samples)*2, len(data))
	}

	if string(data[0:4]) != "RIFF" {
		t.Error("Expected RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		t.Error("Expected WAVE format")
	}
}

func TestEncodeWAVValidation(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("Expected error for empty samples")
	}
	if _, err := EncodeWAV(make([]int16, 10), 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
	if _, err := EncodeWAV(make([]int16, 10), -8000); err == nil {
		t.Error("Expected error for negative sample rate")
	}
}

func TestWAVRoundTrip(t *testing.T) {
	samples := make([]int16, 512)
	for i := range samples {
		samples[i] = int16(1000 * math.Sin(float64(i)/20))
	}

	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(decoded))
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Fatalf("Sample %d mismatch: got %d, want %d", i, decoded[i], samples[i])
		}
	}
}

func TestDecodeWAVInvalid(t *testing.T) {
	if _, _, err := DecodeWAV(make([]byte, 10)); err == nil {
		t.Error("Expected error for truncated data")
	}

	data, err := EncodeWAV(make([]int16, 16), 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	corrupted := append([]byte(nil), data...)
	copy(corrupted[0:4], "JUNK")
	if _, _, err := DecodeWAV(corrupted); err == nil {
		t.Error("Expected error for missing RIFF header")
	}
}

func TestWAVDuration(t *testing.T) {
	samples := make([]int16, 16000) // one second at 16 kHz

	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	duration, err := WAVDuration(data)
	if err != nil {
		t.Fatalf("WAVDuration failed: %v", err)
	}

	if math.Abs(duration-1.0) > 1e-9 {
		t.Errorf("Expected 1 second, got %g", duration)
	}
}
