package phase

import (
	"errors"
	"math"
	"testing"
)

func newTestHistory(t *testing.T, frameLen, capacity int) *History {
	t.Helper()

	codec, err := NewCodec(frameLen, DefaultSigma)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	history, err := NewHistory(codec, capacity)
	if err != nil {
		t.Fatalf("NewHistory failed: %v", err)
	}
	return history
}

func constantFrame(n int, value float64) Frame {
	frame := make(Frame, n)
	for i := range frame {
		frame[i] = value
	}
	return frame
}

func TestNewHistoryValidation(t *testing.T) {
	codec, err := NewCodec(64, DefaultSigma)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	if _, err := NewHistory(nil, 5); err == nil {
		t.Error("Expected error for nil codec")
	}
	if _, err := NewHistory(codec, 0); err == nil {
		t.Error("Expected error for zero capacity")
	}
}

func TestHistoryFIFOEviction(t *testing.T) {
	history := newTestHistory(t, 16, 3)

	// Append F1..F4 into capacity 3: F1 must be evicted.
	for i := 1; i <= 4; i++ {
		if err := history.Append(constantFrame(16, float64(i)/10)); err != nil {
			t.Fatalf("Append F%d failed: %v", i, err)
		}
	}

	if history.Len() != 3 {
		t.Fatalf("Expected 3 stored frames, got %d", history.Len())
	}

	want := []float64{0.2, 0.3, 0.4}
	for i, frame := range history.Frames() {
		if frame[0] != want[i] {
			t.Errorf("Expected frame %d to hold %g, got %g", i, want[i], frame[0])
		}
	}

	stats := history.Stats()
	if stats.Appends != 4 {
		t.Errorf("Expected 4 appends, got %d", stats.Appends)
	}
	if stats.Evictions != 1 {
		t.Errorf("Expected 1 eviction, got %d", stats.Evictions)
	}
}

func TestHistoryAppendCopiesFrame(t *testing.T) {
	history := newTestHistory(t, 8, 2)

	frame := constantFrame(8, 0.5)
	if err := history.Append(frame); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	frame[0] = -1

	if history.Frames()[0][0] != 0.5 {
		t.Error("Expected stored frame to be unaffected by caller mutation")
	}
}

func TestHistoryAppendLengthContract(t *testing.T) {
	history := newTestHistory(t, 16, 3)

	err := history.Append(make(Frame, 15))
	if !errors.Is(err, ErrFrameLength) {
		t.Errorf("Expected ErrFrameLength, got %v", err)
	}
}

func TestBlendEmptyReturnsZeroFrame(t *testing.T) {
	history := newTestHistory(t, 32, 3)

	blended := history.Blend(0.5)

	if len(blended) != 32 {
		t.Fatalf("Expected 32 samples, got %d", len(blended))
	}
	for i, s := range blended {
		if s != 0 {
			t.Fatalf("Expected zero at sample %d, got %g", i, s)
		}
	}
}

func TestBlendClassicalIsArithmeticMean(t *testing.T) {
	history := newTestHistory(t, 16, 4)

	history.Append(constantFrame(16, 0.2))
	history.Append(constantFrame(16, 0.4))

	blended := history.Blend(0) // pure classical

	for i, s := range blended {
		if math.Abs(s-0.3) > 1e-12 {
			t.Fatalf("Expected mean 0.3 at sample %d, got %g", i, s)
		}
	}
}

func TestBlendQuantumOfIdenticalFrames(t *testing.T) {
	history := newTestHistory(t, 64, 4)

	frame := testFrame(64)
	history.Append(frame)
	history.Append(frame)
	history.Append(frame)

	blended := history.Blend(1) // pure quantum

	// Coherent superposition of identical signals preserves their phase.
	for i := range frame {
		if math.Abs(blended[i]-frame[i]) > roundTripTolerance {
			t.Fatalf("Expected phase preserved at sample %d: got %g, want %g",
				i, blended[i], frame[i])
		}
	}
}

func TestBlendInterpolatesBetweenPaths(t *testing.T) {
	history := newTestHistory(t, 16, 4)

	history.Append(constantFrame(16, 0.2))
	history.Append(constantFrame(16, 0.6))

	quantum := history.Blend(1)
	classical := history.Blend(0)
	mid := history.Blend(0.5)

	for i := range mid {
		want := 0.5*quantum[i] + 0.5*classical[i]
		if math.Abs(mid[i]-want) > 1e-12 {
			t.Fatalf("Expected interpolated value %g at sample %d, got %g", want, i, mid[i])
		}
	}
}

func TestBlendInterferenceClamping(t *testing.T) {
	history := newTestHistory(t, 16, 2)
	history.Append(constantFrame(16, 0.3))

	low := history.Blend(-1)
	classical := history.Blend(0)
	high := history.Blend(2)
	quantum := history.Blend(1)

	for i := range low {
		if low[i] != classical[i] {
			t.Fatalf("Expected interference -1 to clamp to 0 at sample %d", i)
		}
		if high[i] != quantum[i] {
			t.Fatalf("Expected interference 2 to clamp to 1 at sample %d", i)
		}
	}
}
