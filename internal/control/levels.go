package control

import (
	"fmt"
	"sync"
)

// Level names accepted by Adjust and Set.
const (
	LevelMic        = "mic"
	LevelFeedback   = "feedback"
	LevelPrediction = "prediction"
	LevelQuantum    = "quantum"
	LevelModel      = "model"
)

// Step is the fixed increment applied by single-key adjustments.
const Step = 0.1

// Snapshot is a consistent copy of all five levels. The audio loop takes
// one snapshot per frame; it never reads levels individually mid-iteration.
type Snapshot struct {
	Mic        float64 `json:"mic"`
	Feedback   float64 `json:"feedback"`
	Prediction float64 `json:"prediction"`
	Quantum    float64 `json:"quantum"`
	Model      float64 `json:"model"`
}

// Levels is the shared mutable control state. Writes come only from the
// control surfaces (key loop, HTTP API); the audio loop reads snapshots.
// The lock is held for the duration of a scalar copy and never longer.
type Levels struct {
	mu      sync.RWMutex
	current Snapshot
}

// NewLevels creates the control state from initial values, clamping each
// to [0, 1].
func NewLevels(initial Snapshot) *Levels {
	return &Levels{
		current: Snapshot{
			Mic:        clamp01(initial.Mic),
			Feedback:   clamp01(initial.Feedback),
			Prediction: clamp01(initial.Prediction),
			Quantum:    clamp01(initial.Quantum),
			Model:      clamp01(initial.Model),
		},
	}
}

// Snapshot returns a consistent copy of all levels.
func (l *Levels) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Adjust shifts one level by delta, clamped to [0, 1], and returns the new
// value.
func (l *Levels) Adjust(name string, delta float64) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	target, err := l.levelRef(name)
	if err != nil {
		return 0, err
	}

	*target = clamp01(*target + delta)
	return *target, nil
}

// Set assigns one level to an absolute value, clamped to [0, 1], and
// returns the stored value.
func (l *Levels) Set(name string, value float64) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	target, err := l.levelRef(name)
	if err != nil {
		return 0, err
	}

	*target = clamp01(value)
	return *target, nil
}

// levelRef resolves a level name to its storage. Callers hold l.mu.
func (l *Levels) levelRef(name string) (*float64, error) {
	switch name {
	case LevelMic:
		return &l.current.Mic, nil
	case LevelFeedback:
		return &l.current.Feedback, nil
	case LevelPrediction:
		return &l.current.Prediction, nil
	case LevelQuantum:
		return &l.current.Quantum, nil
	case LevelModel:
		return &l.current.Model, nil
	default:
		return nil, fmt.Errorf("unknown control level %q", name)
	}
}

// Names returns the valid level names.
func Names() []string {
	return []string{LevelMic, LevelFeedback, LevelPrediction, LevelQuantum, LevelModel}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
