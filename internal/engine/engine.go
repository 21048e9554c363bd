package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/resonatelabs/resonate/internal/config"
	"github.com/resonatelabs/resonate/internal/control"
	"github.com/resonatelabs/resonate/internal/metrics"
	"github.com/resonatelabs/resonate/internal/model"
	"github.com/resonatelabs/resonate/internal/phase"
	"github.com/resonatelabs/resonate/internal/segment"
)

// State represents the orchestrator lifecycle state
type State int32

const (
	StateUninitialized State = iota
	StateDevicesOpening
	StateRunning
	StateShuttingDown
	StateStopped
)

// String returns the human-readable state name
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateDevicesOpening:
		return "devices_opening"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Device is the frame-exact audio I/O boundary the audio loop runs against.
type Device interface {
	ReadFrame() ([]float64, error)
	WriteFrame(frame []float64) error
	Close() error
}

// Collaborator is the language model boundary consumed by the context loop
// and, for synthesis, by the audio loop.
type Collaborator interface {
	UpdateContext(ctx context.Context, samples []int16, sampleRate int) (*model.ContextUpdate, error)
	GenerateContinuation(ctx context.Context, maxLength int) (*model.Continuation, error)
	SynthesizeAudio(ctx context.Context, text string, frameLen int) ([]float64, error)
}

// KeySource delivers single-key commands to the control loop.
type KeySource interface {
	Keys() <-chan byte
	Close() error
}

// Engine coordinates the audio, context, and control loops around shared
// control state and the phase-domain processing chain.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	open         func() (Device, error)
	collaborator Collaborator
	keys         KeySource

	codec       *phase.Codec
	history     *phase.History
	levels      *control.Levels
	queue       *TextQueue
	accumulator *segment.Accumulator
	gate        *segment.Gate

	device Device

	// Audio-loop-owned state, never touched by the other loops
	prediction phase.Frame

	iterations atomic.Uint64
	violations atomic.Uint64

	state   State
	stateMu sync.RWMutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options carries the engine's external collaborators. Collaborator and
// Keys may be nil; the corresponding loop is then not started.
type Options struct {
	Open         func() (Device, error)
	Collaborator Collaborator
	Keys         KeySource
	Levels       *control.Levels
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// New creates an engine from validated configuration.
func New(cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if opts.Open == nil {
		return nil, fmt.Errorf("device opener cannot be nil")
	}
	if opts.Levels == nil {
		return nil, fmt.Errorf("levels cannot be nil")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	codec, err := phase.NewCodec(cfg.Audio.FrameSize, cfg.Audio.Sigma)
	if err != nil {
		return nil, fmt.Errorf("failed to create codec: %w", err)
	}

	history, err := phase.NewHistory(codec, cfg.History.Depth)
	if err != nil {
		return nil, fmt.Errorf("failed to create history: %w", err)
	}

	accumulator, err := segment.NewAccumulator(cfg.Audio.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to create accumulator: %w", err)
	}

	gate, err := segment.NewGate(cfg.Model.ActivityThreshold, cfg.Model.GetMinSegmentDuration())
	if err != nil {
		return nil, fmt.Errorf("failed to create gate: %w", err)
	}

	return &Engine{
		cfg:          cfg,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		open:         opts.Open,
		collaborator: opts.Collaborator,
		keys:         opts.Keys,
		codec:        codec,
		history:      history,
		levels:       opts.Levels,
		queue:        NewTextQueue(),
		accumulator:  accumulator,
		gate:         gate,
		state:        StateUninitialized,
	}, nil
}

// Run opens the device and drives all loops until ctx is cancelled or Stop
// is called. Returns an error only when the device cannot be opened; loop
// failures are handled internally and never abort the run.
func (e *Engine) Run(ctx context.Context) error {
	e.setState(StateDevicesOpening)

	device, err := e.open()
	if err != nil {
		e.setState(StateStopped)
		return fmt.Errorf("failed to open device session: %w", err)
	}
	e.device = device
	// Release exactly once on every exit path
	defer device.Close()

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	defer cancel()

	e.setState(StateRunning)
	e.logger.Info("Engine running",
		slog.Int("frame_size", e.cfg.Audio.FrameSize),
		slog.Int("sample_rate", e.cfg.Audio.SampleRate),
		slog.Int("history_depth", e.cfg.History.Depth),
	)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.audioLoop(loopCtx)
	}()

	if e.collaborator != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.contextLoop(loopCtx)
		}()
	}

	if e.keys != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.controlLoop(loopCtx)
		}()
	}

	<-loopCtx.Done()
	e.setState(StateShuttingDown)
	e.logger.Info("Engine shutting down")

	e.wg.Wait()
	e.setState(StateStopped)

	e.logger.Info("Engine stopped",
		slog.Uint64("iterations", e.iterations.Load()),
		slog.Uint64("contract_violations", e.violations.Load()),
	)

	return nil
}

// Stop requests cooperative shutdown. Safe to call before Run has started
// the loops or more than once.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
}

// Levels returns the shared control state.
func (e *Engine) Levels() *control.Levels {
	return e.levels
}

// Status summarizes the engine for the monitoring API.
type Status struct {
	State      string                   `json:"state"`
	Iterations uint64                   `json:"iterations"`
	Violations uint64                   `json:"contract_violations"`
	Levels     control.Snapshot         `json:"levels"`
	Segments   segment.AccumulatorStats `json:"segments"`
	TextQueue  int                      `json:"text_queue_depth"`
}

// GetStatus returns a point-in-time engine status snapshot. History stats
// are omitted here since the history buffer is owned by the audio loop.
func (e *Engine) GetStatus() Status {
	return Status{
		State:      e.State().String(),
		Iterations: e.iterations.Load(),
		Violations: e.violations.Load(),
		Levels:     e.levels.Snapshot(),
		Segments:   e.accumulator.GetStats(),
		TextQueue:  e.queue.Len(),
	}
}
