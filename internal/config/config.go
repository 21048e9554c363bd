package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration.
type Config struct {
	Audio   AudioConfig   `yaml:"audio"`
	Device  DeviceConfig  `yaml:"device"`
	Levels  LevelsConfig  `yaml:"levels"`
	History HistoryConfig `yaml:"history"`
	Model   ModelConfig   `yaml:"model"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// AudioConfig contains the fixed audio format parameters. The frame size
// is fixed for the process lifetime; every pipeline stage assumes it.
type AudioConfig struct {
	SampleRate int     `yaml:"sample_rate"`
	Channels   int     `yaml:"channels"`
	BitDepth   int     `yaml:"bit_depth"`
	FrameSize  int     `yaml:"frame_size"` // samples per frame
	Sigma      float64 `yaml:"sigma"`      // Gaussian reference wave shape
}

// DeviceConfig selects input/output devices and bounds the open retries.
type DeviceConfig struct {
	InputDevice  int `yaml:"input_device"`  // -1 selects the default device
	OutputDevice int `yaml:"output_device"` // -1 selects the default device
	MaxAttempts  int `yaml:"max_attempts"`
}

// LevelsConfig holds the initial control levels; all must lie in [0, 1].
type LevelsConfig struct {
	Mic        float64 `yaml:"mic"`
	Feedback   float64 `yaml:"feedback"`
	Prediction float64 `yaml:"prediction"`
	Quantum    float64 `yaml:"quantum"`
	Model      float64 `yaml:"model"`
}

// HistoryConfig bounds the feedback history buffer.
type HistoryConfig struct {
	Depth int `yaml:"depth"` // frames retained for feedback blending
}

// ModelConfig contains the language-model collaborator client configuration.
type ModelConfig struct {
	Endpoint           string  `yaml:"endpoint"`
	APIKey             string  `yaml:"api_key"`
	Timeout            int     `yaml:"timeout"`           // seconds
	SynthesisTimeout   float64 `yaml:"synthesis_timeout"` // seconds; bounds audio-loop synth calls
	MaxRetries         int     `yaml:"max_retries"`
	MaxConcurrent      int     `yaml:"max_concurrent"`
	UpdateInterval     float64 `yaml:"update_interval"`      // seconds between context updates
	MaxContinuation    int     `yaml:"max_continuation"`     // tokens per generated continuation
	ContextWindow      int     `yaml:"context_window"`       // collaborator token budget
	ActivityThreshold  float64 `yaml:"activity_threshold"`   // RMS gate for context updates
	MinSegmentDuration float64 `yaml:"min_segment_duration"` // seconds
}

// HTTPConfig contains the control/monitoring API server configuration.
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			BitDepth:   16,
			FrameSize:  1024,
			Sigma:      0.35,
		},
		Device: DeviceConfig{
			InputDevice:  -1,
			OutputDevice: -1,
			MaxAttempts:  5,
		},
		Levels: LevelsConfig{
			Mic:        0.7,
			Feedback:   0.3,
			Prediction: 0.5,
			Quantum:    0.5,
			Model:      0.5,
		},
		History: HistoryConfig{
			Depth: 5,
		},
		Model: ModelConfig{
			Endpoint:           "http://localhost:8475",
			Timeout:            30,
			SynthesisTimeout:   0.25,
			MaxRetries:         3,
			MaxConcurrent:      4,
			UpdateInterval:     5.0,
			MaxContinuation:    32,
			ContextWindow:      2048,
			ActivityThreshold:  0.01,
			MinSegmentDuration: 0.5,
		},
		HTTP: HTTPConfig{
			Port:    8476,
			Address: "127.0.0.1",
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file. Missing fields keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device config: %w", err)
	}

	if err := c.Levels.Validate(); err != nil {
		return fmt.Errorf("levels config: %w", err)
	}

	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history config: %w", err)
	}

	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration.
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	if a.FrameSize < 64 || a.FrameSize > 8192 {
		return fmt.Errorf("frame_size must be between 64 and 8192 samples, got %d", a.FrameSize)
	}

	if a.Sigma <= 0 || a.Sigma > 1 {
		return fmt.Errorf("sigma must be in (0, 1], got %f", a.Sigma)
	}

	return nil
}

// Validate validates device configuration.
func (d *DeviceConfig) Validate() error {
	if d.InputDevice < -1 {
		return fmt.Errorf("input_device must be a device index or -1, got %d", d.InputDevice)
	}

	if d.OutputDevice < -1 {
		return fmt.Errorf("output_device must be a device index or -1, got %d", d.OutputDevice)
	}

	if d.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", d.MaxAttempts)
	}

	return nil
}

// Validate validates the initial control levels.
func (l *LevelsConfig) Validate() error {
	levels := map[string]float64{
		"mic":        l.Mic,
		"feedback":   l.Feedback,
		"prediction": l.Prediction,
		"quantum":    l.Quantum,
		"model":      l.Model,
	}

	for name, value := range levels {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, value)
		}
	}

	return nil
}

// Validate validates history configuration.
func (h *HistoryConfig) Validate() error {
	if h.Depth < 1 || h.Depth > 64 {
		return fmt.Errorf("depth must be between 1 and 64 frames, got %d", h.Depth)
	}

	return nil
}

// Validate validates collaborator client configuration.
func (m *ModelConfig) Validate() error {
	if m.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if m.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", m.Timeout)
	}

	if m.SynthesisTimeout <= 0 {
		return fmt.Errorf("synthesis_timeout must be positive, got %f", m.SynthesisTimeout)
	}

	if m.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", m.MaxRetries)
	}

	if m.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", m.MaxConcurrent)
	}

	if m.UpdateInterval <= 0 {
		return fmt.Errorf("update_interval must be positive, got %f", m.UpdateInterval)
	}

	if m.MaxContinuation < 1 {
		return fmt.Errorf("max_continuation must be at least 1 token, got %d", m.MaxContinuation)
	}

	if m.ContextWindow < m.MaxContinuation {
		return fmt.Errorf("context_window (%d) must be at least max_continuation (%d)",
			m.ContextWindow, m.MaxContinuation)
	}

	if m.ActivityThreshold < 0 || m.ActivityThreshold > 1 {
		return fmt.Errorf("activity_threshold must be between 0 and 1, got %f", m.ActivityThreshold)
	}

	if m.MinSegmentDuration < 0 {
		return fmt.Errorf("min_segment_duration cannot be negative, got %f", m.MinSegmentDuration)
	}

	return nil
}

// Validate validates HTTP configuration.
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output accepts stdout, stderr, or a file path.
	return nil
}

// FrameDuration returns the hardware cadence of one frame.
func (a *AudioConfig) FrameDuration() time.Duration {
	return time.Duration(float64(a.FrameSize) / float64(a.SampleRate) * float64(time.Second))
}

// GetTimeoutDuration returns the collaborator request timeout.
func (m *ModelConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(m.Timeout) * time.Second
}

// GetSynthesisTimeoutDuration returns the bound on audio-loop synthesis calls.
func (m *ModelConfig) GetSynthesisTimeoutDuration() time.Duration {
	return time.Duration(m.SynthesisTimeout * float64(time.Second))
}

// GetUpdateIntervalDuration returns the model-context update period.
func (m *ModelConfig) GetUpdateIntervalDuration() time.Duration {
	return time.Duration(m.UpdateInterval * float64(time.Second))
}

// GetMinSegmentDuration returns the minimum segment length worth uploading.
func (m *ModelConfig) GetMinSegmentDuration() time.Duration {
	return time.Duration(m.MinSegmentDuration * float64(time.Second))
}
