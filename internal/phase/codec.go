package phase

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// ErrFrameLength indicates that a frame or phase signal does not match the
// codec's configured frame length. Every downstream stage assumes that
// length, so callers must abort the current iteration instead of padding
// or truncating.
var ErrFrameLength = errors.New("phase: frame length mismatch")

// Frame is a fixed-length block of real audio samples, nominally in [-1, 1].
type Frame []float64

// PhaseSignal is the complex parallel of a Frame: element i carries sample i
// in its phase angle. It is always derived from a Frame, never persisted.
type PhaseSignal []complex128

// DefaultSigma is the Gaussian shape parameter used when none is configured.
const DefaultSigma = 0.35

// Codec converts frames to and from their phase-domain representation
// against a fixed reference wave. The reference wave is a Born-normalized
// Gaussian envelope with zero phase, precomputed once from the frame length
// and shape parameter.
type Codec struct {
	frameLen  int
	step      float64
	envelope  []float64
	reference PhaseSignal
}

// NewCodec creates a codec for frames of exactly frameLen samples.
// sigma controls the width of the Gaussian reference envelope; values
// outside (0, 1] fall back to DefaultSigma.
func NewCodec(frameLen int, sigma float64) (*Codec, error) {
	if frameLen <= 0 {
		return nil, fmt.Errorf("frame length must be positive, got %d", frameLen)
	}

	if sigma <= 0 || sigma > 1 {
		sigma = DefaultSigma
	}

	// Gaussian envelope over the frame, then Born-rule normalization:
	// sum of squared magnitudes times the step size integrates to 1.
	envelope := make([]float64, frameLen)
	for i := range envelope {
		envelope[i] = 1
	}
	window.Gaussian{Sigma: sigma}.Transform(envelope)

	step := 1.0 / float64(frameLen)
	norm := floats.Dot(envelope, envelope) * step
	if norm <= 0 {
		return nil, fmt.Errorf("degenerate reference envelope (norm %g)", norm)
	}
	floats.Scale(1/math.Sqrt(norm), envelope)

	reference := make(PhaseSignal, frameLen)
	for i, g := range envelope {
		reference[i] = complex(g, 0)
	}

	return &Codec{
		frameLen:  frameLen,
		step:      step,
		envelope:  envelope,
		reference: reference,
	}, nil
}

// FrameLen returns the configured frame length in samples.
func (c *Codec) FrameLen() int {
	return c.frameLen
}

// Reference returns the codec's reference wave.
func (c *Codec) Reference() PhaseSignal {
	return c.reference
}

// Encode maps a frame to its phase-domain representation. Element i has
// the Born-normalized envelope magnitude and carries sample i as its phase.
func (c *Codec) Encode(frame Frame) (PhaseSignal, error) {
	if len(frame) != c.frameLen {
		return nil, fmt.Errorf("%w: encode expects %d samples, got %d", ErrFrameLength, c.frameLen, len(frame))
	}

	signal := make(PhaseSignal, c.frameLen)
	for i, s := range frame {
		signal[i] = cmplx.Rect(c.envelope[i], s)
	}
	return signal, nil
}

// Decode recovers a frame from a phase signal as the per-element phase
// difference between the Born-normalized signal and the reference wave.
// With the zero-phase reference this reduces to phase extraction, so
// Decode(Encode(frame)) reproduces frame up to floating-point rounding.
func (c *Codec) Decode(signal, reference PhaseSignal) (Frame, error) {
	if len(signal) != c.frameLen || len(reference) != c.frameLen {
		return nil, fmt.Errorf("%w: decode expects %d elements, got signal=%d reference=%d",
			ErrFrameLength, c.frameLen, len(signal), len(reference))
	}

	normalized := c.normalize(signal)

	frame := make(Frame, c.frameLen)
	for i := range frame {
		frame[i] = wrapPhase(cmplx.Phase(normalized[i]) - cmplx.Phase(reference[i]))
	}
	return frame, nil
}

// normalize rescales a signal so its squared magnitudes integrate to 1
// under the codec step size. A zero signal is returned unchanged.
func (c *Codec) normalize(signal PhaseSignal) PhaseSignal {
	var sum float64
	for _, v := range signal {
		re, im := real(v), imag(v)
		sum += re*re + im*im
	}
	sum *= c.step
	if sum == 0 {
		return signal
	}

	scale := complex(1/math.Sqrt(sum), 0)
	out := make(PhaseSignal, len(signal))
	for i, v := range signal {
		out[i] = v * scale
	}
	return out
}

// ExtractPhase returns the per-element phase angles of a signal.
func ExtractPhase(signal PhaseSignal) Frame {
	frame := make(Frame, len(signal))
	for i, v := range signal {
		frame[i] = cmplx.Phase(v)
	}
	return frame
}

// ZeroFrame returns an all-zero frame of n samples.
func ZeroFrame(n int) Frame {
	return make(Frame, n)
}

// wrapPhase folds an angle into (-pi, pi].
func wrapPhase(x float64) float64 {
	for x > math.Pi {
		x -= 2 * math.Pi
	}
	for x <= -math.Pi {
		x += 2 * math.Pi
	}
	return x
}
