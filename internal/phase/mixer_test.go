package phase

import (
	"errors"
	"math"
	"testing"
)

func TestMixWeightZeroReproducesA(t *testing.T) {
	codec, err := NewCodec(256, DefaultSigma)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	a := testFrame(256)
	b := make(Frame, 256)
	for i := range b {
		b[i] = -0.5
	}

	mixed, err := codec.Mix(a, b, 0)
	if err != nil {
		t.Fatalf("Mix failed: %v", err)
	}

	for i := range a {
		if math.Abs(mixed[i]-a[i]) > roundTripTolerance {
			t.Fatalf("mix(a,b,0) mismatch at sample %d: got %g, want %g", i, mixed[i], a[i])
		}
	}
}

func TestMixWeightOneReproducesB(t *testing.T) {
	codec, err := NewCodec(256, DefaultSigma)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	a := testFrame(256)
	b := make(Frame, 256)
	for i := range b {
		b[i] = 0.3 * math.Cos(float64(i)/10)
	}

	mixed, err := codec.Mix(a, b, 1)
	if err != nil {
		t.Fatalf("Mix failed: %v", err)
	}

	for i := range b {
		if math.Abs(mixed[i]-b[i]) > roundTripTolerance {
			t.Fatalf("mix(a,b,1) mismatch at sample %d: got %g, want %g", i, mixed[i], b[i])
		}
	}
}

func TestMixEqualWeightOfIdenticalFrames(t *testing.T) {
	codec, err := NewCodec(128, DefaultSigma)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	a := testFrame(128)

	mixed, err := codec.Mix(a, a, 0.5)
	if err != nil {
		t.Fatalf("Mix failed: %v", err)
	}

	// Superposing a signal with itself leaves its phase untouched.
	for i := range a {
		if math.Abs(mixed[i]-a[i]) > roundTripTolerance {
			t.Fatalf("mix(a,a,0.5) mismatch at sample %d: got %g, want %g", i, mixed[i], a[i])
		}
	}
}

func TestMixWeightClamping(t *testing.T) {
	codec, err := NewCodec(64, DefaultSigma)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	a := testFrame(64)
	b := ZeroFrame(64)

	below, err := codec.Mix(a, b, -2)
	if err != nil {
		t.Fatalf("Mix failed: %v", err)
	}
	above, err := codec.Mix(a, b, 3)
	if err != nil {
		t.Fatalf("Mix failed: %v", err)
	}

	for i := range a {
		if math.Abs(below[i]-a[i]) > roundTripTolerance {
			t.Fatalf("Expected weight -2 to clamp to 0 at sample %d", i)
		}
		if math.Abs(above[i]-b[i]) > roundTripTolerance {
			t.Fatalf("Expected weight 3 to clamp to 1 at sample %d", i)
		}
	}
}

func TestMixLengthContract(t *testing.T) {
	codec, err := NewCodec(64, DefaultSigma)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	_, err = codec.Mix(make(Frame, 32), make(Frame, 64), 0.5)
	if !errors.Is(err, ErrFrameLength) {
		t.Errorf("Expected ErrFrameLength for short first frame, got %v", err)
	}

	_, err = codec.Mix(make(Frame, 64), make(Frame, 65), 0.5)
	if !errors.Is(err, ErrFrameLength) {
		t.Errorf("Expected ErrFrameLength for long second frame, got %v", err)
	}
}

func TestMixOutputLength(t *testing.T) {
	codec, err := NewCodec(1024, DefaultSigma)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	mixed, err := codec.Mix(testFrame(1024), ZeroFrame(1024), 0.3)
	if err != nil {
		t.Fatalf("Mix failed: %v", err)
	}

	if len(mixed) != 1024 {
		t.Errorf("Expected 1024 mixed samples, got %d", len(mixed))
	}
}
