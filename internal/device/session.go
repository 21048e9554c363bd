package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/resonatelabs/resonate/internal/pcm"
)

// ErrOpenFailed indicates the session could not be opened after exhausting
// all retry attempts. The orchestrator must not start the audio loop.
var ErrOpenFailed = errors.New("device: open failed after all attempts")

// ErrFrameSize indicates a read or write with the wrong sample count; this
// is a contract violation, not a recoverable device condition.
var ErrFrameSize = errors.New("device: frame size mismatch")

// Config selects devices and fixes the stream format.
type Config struct {
	SampleRate   int
	FrameSize    int
	InputDevice  int // -1 selects the default input device
	OutputDevice int // -1 selects the default output device
	MaxAttempts  int
}

// Info describes an enumerated audio device.
type Info struct {
	Index             int     `json:"index"`
	Name              string  `json:"name"`
	MaxInputChannels  int     `json:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
}

// SessionStats reports I/O counters for monitoring.
type SessionStats struct {
	FramesRead    uint64 `json:"frames_read"`
	FramesWritten uint64 `json:"frames_written"`
	Overflows     uint64 `json:"overflows"`
	Underflows    uint64 `json:"underflows"`
}

// Session owns an open input/output stream pair at a fixed sample rate and
// exact frame size (mono, 16-bit). Reads and writes block for exactly one
// frame; input overflow is tolerated rather than escalated.
type Session struct {
	config Config
	logger *slog.Logger

	input  *portaudio.Stream
	output *portaudio.Stream
	inBuf  []int16
	outBuf []int16

	inputName  string
	outputName string

	framesRead    atomic.Uint64
	framesWritten atomic.Uint64
	overflows     atomic.Uint64
	underflows    atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// Enumerate lists the audio devices visible to PortAudio. It initializes
// and terminates the library around the call, so it must not be used while
// a session is open.
func Enumerate() ([]Info, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	infos := make([]Info, 0, len(devices))
	for i, d := range devices {
		infos = append(infos, Info{
			Index:             i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		})
	}
	return infos, nil
}

// Open opens the input and output streams, retrying up to
// Config.MaxAttempts times. After a failed attempt any partially opened
// handle is closed and the next attempt waits 2*attempt seconds. Exhausting
// all attempts returns ErrOpenFailed.
func Open(cfg Config, logger *slog.Logger) (*Session, error) {
	if cfg.FrameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", cfg.FrameSize)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	s := &Session{
		config: cfg,
		logger: logger,
		inBuf:  make([]int16, cfg.FrameSize),
		outBuf: make([]int16, cfg.FrameSize),
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := s.openStreams(); err != nil {
			lastErr = err
			s.closeStreams()

			logger.Warn("Device open attempt failed",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", cfg.MaxAttempts),
				slog.String("error", err.Error()),
			)

			if attempt < cfg.MaxAttempts {
				backoff := time.Duration(2*attempt) * time.Second
				time.Sleep(backoff)
			}
			continue
		}

		logger.Info("Device session opened",
			slog.String("input", s.inputName),
			slog.String("output", s.outputName),
			slog.Int("sample_rate", cfg.SampleRate),
			slog.Int("frame_size", cfg.FrameSize),
		)
		return s, nil
	}

	portaudio.Terminate()
	return nil, fmt.Errorf("%w: %d attempts, last error: %v", ErrOpenFailed, cfg.MaxAttempts, lastErr)
}

// openStreams resolves the configured devices and opens both streams.
func (s *Session) openStreams() error {
	input, err := resolveDevice(s.config.InputDevice, true, s.logger)
	if err != nil {
		return fmt.Errorf("input device: %w", err)
	}
	output, err := resolveDevice(s.config.OutputDevice, false, s.logger)
	if err != nil {
		return fmt.Errorf("output device: %w", err)
	}

	inParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   input,
			Channels: 1,
			Latency:  input.DefaultLowInputLatency,
		},
		SampleRate:      float64(s.config.SampleRate),
		FramesPerBuffer: s.config.FrameSize,
	}
	inStream, err := portaudio.OpenStream(inParams, s.inBuf)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	s.input = inStream
	s.inputName = input.Name

	outParams := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   output,
			Channels: 1,
			Latency:  output.DefaultLowOutputLatency,
		},
		SampleRate:      float64(s.config.SampleRate),
		FramesPerBuffer: s.config.FrameSize,
	}
	outStream, err := portaudio.OpenStream(outParams, s.outBuf)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	s.output = outStream
	s.outputName = output.Name

	if err := s.input.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	if err := s.output.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}

	return nil
}

// resolveDevice maps a configured index to a device, falling back to the
// default device when the index is -1 or unusable.
func resolveDevice(index int, input bool, logger *slog.Logger) (*portaudio.DeviceInfo, error) {
	if index >= 0 {
		devices, err := portaudio.Devices()
		if err == nil && index < len(devices) {
			d := devices[index]
			if (input && d.MaxInputChannels > 0) || (!input && d.MaxOutputChannels > 0) {
				return d, nil
			}
		}
		logger.Warn("Configured device index unusable, falling back to default",
			slog.Int("index", index),
			slog.Bool("input", input),
		)
	}

	if input {
		d, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("no default input device: %w", err)
		}
		return d, nil
	}

	d, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, fmt.Errorf("no default output device: %w", err)
	}
	return d, nil
}

// ReadFrame blocks until exactly one frame of samples is available and
// returns it as normalized float64 values. Input overflow means the
// hardware dropped samples; it is counted but not escalated, since exact
// cadence takes priority over completeness.
func (s *Session) ReadFrame() ([]float64, error) {
	err := s.input.Read()
	if err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			s.overflows.Add(1)
		} else {
			return nil, fmt.Errorf("device read failed: %w", err)
		}
	}

	s.framesRead.Add(1)
	return pcm.ToFloat64(s.inBuf), nil
}

// WriteFrame writes exactly one frame of normalized samples to the output
// device. Values are clipped to [-1, 1] during conversion to the device's
// native 16-bit encoding. A wrong-sized frame is a contract violation.
func (s *Session) WriteFrame(frame []float64) error {
	if len(frame) != s.config.FrameSize {
		return fmt.Errorf("%w: write expects %d samples, got %d", ErrFrameSize, s.config.FrameSize, len(frame))
	}

	copy(s.outBuf, pcm.ToInt16(frame))

	err := s.output.Write()
	if err != nil {
		if errors.Is(err, portaudio.OutputUnderflowed) {
			s.underflows.Add(1)
		} else {
			return fmt.Errorf("device write failed: %w", err)
		}
	}

	s.framesWritten.Add(1)
	return nil
}

// FrameSize returns the fixed frame size in samples.
func (s *Session) FrameSize() int {
	return s.config.FrameSize
}

// Stats returns I/O counters.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		FramesRead:    s.framesRead.Load(),
		FramesWritten: s.framesWritten.Load(),
		Overflows:     s.overflows.Load(),
		Underflows:    s.underflows.Load(),
	}
}

// Close stops and releases both streams and terminates PortAudio. It is
// safe to call from any exit path; the release happens exactly once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.closeStreams()
		portaudio.Terminate()

		if s.logger != nil {
			stats := s.Stats()
			s.logger.Info("Device session closed",
				slog.Uint64("frames_read", stats.FramesRead),
				slog.Uint64("frames_written", stats.FramesWritten),
				slog.Uint64("overflows", stats.Overflows),
				slog.Uint64("underflows", stats.Underflows),
			)
		}
	})
	return s.closeErr
}

// closeStreams releases whatever streams are open, tolerating partial state
// from a failed open attempt.
func (s *Session) closeStreams() error {
	var errs []error

	if s.input != nil {
		s.input.Stop()
		if err := s.input.Close(); err != nil {
			errs = append(errs, fmt.Errorf("input close: %w", err))
		}
		s.input = nil
	}
	if s.output != nil {
		s.output.Stop()
		if err := s.output.Close(); err != nil {
			errs = append(errs, fmt.Errorf("output close: %w", err))
		}
		s.output = nil
	}

	return errors.Join(errs...)
}
