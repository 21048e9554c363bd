package device

import (
	"log/slog"
	"os"
	"testing"
)

func TestOpenRejectsInvalidFrameSize(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	_, err := Open(Config{SampleRate: 16000, FrameSize: 0, MaxAttempts: 1}, logger)
	if err == nil {
		t.Error("expected error for zero frame size")
	}

	_, err = Open(Config{SampleRate: 16000, FrameSize: -5, MaxAttempts: 1}, logger)
	if err == nil {
		t.Error("expected error for negative frame size")
	}
}

func TestOpenRejectsInvalidSampleRate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	_, err := Open(Config{SampleRate: 0, FrameSize: 1024, MaxAttempts: 1}, logger)
	if err == nil {
		t.Error("expected error for zero sample rate")
	}
}
