package phase

import "math/cmplx"

// Predict extrapolates the next frame from the phase delta between the two
// most recent decoded frames. Both frames are encoded with unit-magnitude
// zero-offset complex exponentials; the element-wise phase difference is
// treated as an instantaneous momentum and applied once more to the current
// frame (first-order, constant-velocity extrapolation).
//
// When previous is nil or its length does not match, no extrapolation is
// possible and current is returned unchanged. Repeated extrapolation has no
// stability bound; divergence is an accepted property of the design.
func Predict(current, previous Frame) Frame {
	if len(previous) != len(current) || len(current) == 0 {
		return current
	}

	out := make(Frame, len(current))
	for i := range current {
		cur := cmplx.Exp(complex(0, current[i]))
		prev := cmplx.Exp(complex(0, previous[i]))

		momentum := cmplx.Phase(cur * cmplx.Conj(prev))
		out[i] = cmplx.Phase(cur * cmplx.Exp(complex(0, momentum)))
	}
	return out
}
