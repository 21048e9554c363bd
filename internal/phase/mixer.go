package phase

import (
	"math"
	"math/cmplx"
)

// Mix combines two frames as an amplitude-weighted complex superposition:
// sqrt(1-weight)*Encode(a) + sqrt(weight)*Encode(b), returning the phase of
// the sum. weight is clamped to [0, 1]; weight 0 reproduces a, weight 1
// reproduces b. The same operation serves mic/feedback, processed/prediction
// and processed/model-audio mixing.
func (c *Codec) Mix(a, b Frame, weight float64) (Frame, error) {
	ea, err := c.Encode(a)
	if err != nil {
		return nil, err
	}
	eb, err := c.Encode(b)
	if err != nil {
		return nil, err
	}

	if weight < 0 {
		weight = 0
	} else if weight > 1 {
		weight = 1
	}
	wa := complex(math.Sqrt(1-weight), 0)
	wb := complex(math.Sqrt(weight), 0)

	out := make(Frame, c.frameLen)
	for i := range out {
		out[i] = cmplx.Phase(wa*ea[i] + wb*eb[i])
	}
	return out, nil
}
