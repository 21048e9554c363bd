package phase

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/floats"
)

// History is a bounded FIFO of prior output frames. It is owned and mutated
// exclusively by the orchestrator's audio loop, so it carries no locking.
type History struct {
	codec    *Codec
	capacity int
	frames   []Frame

	appends   uint64
	evictions uint64
}

// HistoryStats reports buffer occupancy and turnover.
type HistoryStats struct {
	Capacity  int    `json:"capacity"`
	Length    int    `json:"length"`
	Appends   uint64 `json:"appends"`
	Evictions uint64 `json:"evictions"`
}

// NewHistory creates a history buffer holding at most capacity frames.
func NewHistory(codec *Codec, capacity int) (*History, error) {
	if codec == nil {
		return nil, fmt.Errorf("codec cannot be nil")
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("history capacity must be positive, got %d", capacity)
	}

	return &History{
		codec:    codec,
		capacity: capacity,
		frames:   make([]Frame, 0, capacity),
	}, nil
}

// Append pushes a frame to the back, evicting the oldest frame when the
// buffer is at capacity. The frame is copied so later mutation by the
// caller cannot corrupt stored history.
func (h *History) Append(frame Frame) error {
	if len(frame) != h.codec.frameLen {
		return fmt.Errorf("%w: history expects %d samples, got %d", ErrFrameLength, h.codec.frameLen, len(frame))
	}

	stored := make(Frame, len(frame))
	copy(stored, frame)

	if len(h.frames) == h.capacity {
		copy(h.frames, h.frames[1:])
		h.frames[len(h.frames)-1] = stored
		h.evictions++
	} else {
		h.frames = append(h.frames, stored)
	}
	h.appends++
	return nil
}

// Len returns the number of stored frames.
func (h *History) Len() int {
	return len(h.frames)
}

// Frames returns the stored frames, oldest first.
func (h *History) Frames() []Frame {
	return h.frames
}

// Blend produces the feedback frame from the stored history. With no
// entries it returns an all-zero frame. Otherwise it computes a coherent
// "quantum" superposition (phase-encoded frames summed, scaled by
// 1/sqrt(count), phase extracted) and a "classical" arithmetic mean, then
// interpolates between them with the quantum-interference level:
// 1.0 selects the pure superposition, 0.0 the plain moving average.
func (h *History) Blend(interference float64) Frame {
	n := h.codec.frameLen
	if len(h.frames) == 0 {
		return ZeroFrame(n)
	}

	if interference < 0 {
		interference = 0
	} else if interference > 1 {
		interference = 1
	}

	sum := make(PhaseSignal, n)
	classical := make(Frame, n)
	for _, f := range h.frames {
		encoded, err := h.codec.Encode(f)
		if err != nil {
			// Stored frames are length-checked on Append.
			continue
		}
		cmplxs.Add(sum, encoded)
		floats.Add(classical, f)
	}

	count := float64(len(h.frames))
	cmplxs.Scale(complex(1/math.Sqrt(count), 0), sum)
	floats.Scale(1/count, classical)

	blended := make(Frame, n)
	for i := range blended {
		quantum := cmplx.Phase(sum[i])
		blended[i] = interference*quantum + (1-interference)*classical[i]
	}
	return blended
}

// Stats returns occupancy and turnover counters.
func (h *History) Stats() HistoryStats {
	return HistoryStats{
		Capacity:  h.capacity,
		Length:    len(h.frames),
		Appends:   h.appends,
		Evictions: h.evictions,
	}
}
