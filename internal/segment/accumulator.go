package segment

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/resonatelabs/resonate/internal/pcm"
)

// Segment is a contiguous run of microphone audio captured between two
// context updates.
type Segment struct {
	ID        string        `json:"id"`
	Samples   []int16       `json:"-"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// AccumulatorStats represents accumulator statistics
type AccumulatorStats struct {
	PendingSamples  int           `json:"pending_samples"`
	PendingDuration time.Duration `json:"pending_duration"`
	TotalFrames     uint64        `json:"total_frames"`
	TotalSegments   uint64        `json:"total_segments"`
}

// Accumulator collects microphone frames from the audio loop until the
// context loop drains them as a single segment. The audio loop appends and
// the context loop flushes, so access is serialized with a mutex.
type Accumulator struct {
	sampleRate int

	samples       []int16
	totalFrames   uint64
	totalSegments uint64

	mu sync.Mutex
}

// NewAccumulator creates an accumulator for audio at the given sample rate.
func NewAccumulator(sampleRate int) (*Accumulator, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	return &Accumulator{
		sampleRate: sampleRate,
	}, nil
}

// Append adds one frame of normalized samples to the pending segment.
func (a *Accumulator) Append(frame []float64) {
	if len(frame) == 0 {
		return
	}

	converted := pcm.ToInt16(frame)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.samples = append(a.samples, converted...)
	a.totalFrames++
}

// Flush drains all pending samples into a segment. Returns nil when
// nothing has accumulated since the last flush.
func (a *Accumulator) Flush() *Segment {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.samples) == 0 {
		return nil
	}

	samples := a.samples
	a.samples = nil
	a.totalSegments++

	return &Segment{
		ID:        uuid.New().String(),
		Samples:   samples,
		Duration:  time.Duration(len(samples)) * time.Second / time.Duration(a.sampleRate),
		CreatedAt: time.Now(),
	}
}

// PendingDuration returns the duration of audio accumulated so far.
func (a *Accumulator) PendingDuration() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()

	return time.Duration(len(a.samples)) * time.Second / time.Duration(a.sampleRate)
}

// GetStats returns current accumulator statistics
func (a *Accumulator) GetStats() AccumulatorStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return AccumulatorStats{
		PendingSamples:  len(a.samples),
		PendingDuration: time.Duration(len(a.samples)) * time.Second / time.Duration(a.sampleRate),
		TotalFrames:     a.totalFrames,
		TotalSegments:   a.totalSegments,
	}
}
