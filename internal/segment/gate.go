package segment

import (
	"fmt"
	"math"
	"time"
)

// Gate decides whether a segment carries enough signal to be worth
// uploading. It combines an RMS energy threshold with a minimum duration.
type Gate struct {
	threshold   float64
	minDuration time.Duration
}

// NewGate creates an activity gate. The threshold applies to RMS energy of
// normalized samples, so 0.01 corresponds to roughly -40 dBFS.
func NewGate(threshold float64, minDuration time.Duration) (*Gate, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}

	if minDuration < 0 {
		return nil, fmt.Errorf("minimum duration cannot be negative, got %v", minDuration)
	}

	return &Gate{
		threshold:   threshold,
		minDuration: minDuration,
	}, nil
}

// Admit reports whether the segment should be uploaded.
func (g *Gate) Admit(seg *Segment) bool {
	if seg == nil || len(seg.Samples) == 0 {
		return false
	}

	if seg.Duration < g.minDuration {
		return false
	}

	return Energy(seg.Samples) >= g.threshold
}

// Energy computes the RMS energy of the samples on a normalized scale.
func Energy(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var energy float64
	for _, sample := range samples {
		s := float64(sample) / 32768.0
		energy += s * s
	}

	return math.Sqrt(energy / float64(len(samples)))
}
