package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/resonatelabs/resonate/internal/control"
	"github.com/resonatelabs/resonate/internal/pcm"
	"github.com/resonatelabs/resonate/internal/phase"
)

// audioLoop runs the per-frame processing chain until cancellation. Each
// iteration runs to completion; cancellation is observed at the top, so a
// frame in flight is always written before the loop exits.
func (e *Engine) audioLoop(ctx context.Context) {
	e.logger.Info("Audio loop started")

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Audio loop stopping")
			return
		default:
		}

		start := time.Now()

		input, err := e.device.ReadFrame()
		if err != nil {
			e.logger.Error("Device read failed", slog.String("error", err.Error()))
			if e.metrics != nil {
				e.metrics.RecordReadError()
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if len(input) != e.cfg.Audio.FrameSize {
			e.recordViolation("read", len(input))
			continue
		}

		// Raw input feeds the context loop's segment accumulator
		e.accumulator.Append(input)

		levels := e.levels.Snapshot()

		output, err := e.process(ctx, input, levels)
		if err != nil {
			if errors.Is(err, phase.ErrFrameLength) {
				e.recordViolation("process", len(input))
				continue
			}
			// Transient failure: pass the raw input through so the
			// stream never stops
			e.logger.Warn("Frame processing failed, passing input through",
				slog.String("error", err.Error()),
			)
			output = input
		}

		output = pcm.ClipFrame(output)

		if err := e.history.Append(output); err != nil {
			e.recordViolation("history", len(output))
			continue
		}

		if err := e.device.WriteFrame(output); err != nil {
			e.logger.Error("Device write failed", slog.String("error", err.Error()))
			if e.metrics != nil {
				e.metrics.RecordWriteError()
			}
		}

		e.iterations.Add(1)
		if e.metrics != nil {
			e.metrics.RecordIteration(time.Since(start).Seconds())
			e.metrics.SetHistoryDepth(e.history.Len())
			e.metrics.SetTextQueueDepth(e.queue.Len())
		}
	}
}

// process transforms one input frame through the phase chain: codec round
// trip, history feedback mix, prediction mix, and optional model audio mix.
func (e *Engine) process(ctx context.Context, input phase.Frame, levels control.Snapshot) (phase.Frame, error) {
	encoded, err := e.codec.Encode(input)
	if err != nil {
		return nil, err
	}
	decoded, err := e.codec.Decode(encoded, e.codec.Reference())
	if err != nil {
		return nil, err
	}

	// Feedback: blend of prior output frames, quantum level selects
	// between coherent superposition and plain averaging
	feedback := e.history.Blend(levels.Quantum)
	mixed, err := e.codec.Mix(decoded, feedback, feedbackWeight(levels))
	if err != nil {
		return nil, err
	}

	// First-order phase extrapolation from the previous mixed frame
	predicted := phase.Predict(mixed, e.prediction)
	e.prediction = mixed

	output, err := e.codec.Mix(mixed, predicted, levels.Prediction)
	if err != nil {
		return nil, err
	}

	// At most one pending continuation is synthesized per iteration
	if e.collaborator != nil && levels.Model > 0 {
		if text, ok := e.queue.TryPop(); ok {
			output, err = e.mixModelAudio(ctx, output, text, levels.Model)
			if err != nil {
				return nil, err
			}
		}
	}

	return output, nil
}

// mixModelAudio synthesizes one continuation and folds it into the output.
// Synthesis failure is transient: the frame passes through unmixed.
func (e *Engine) mixModelAudio(ctx context.Context, output phase.Frame, text string, level float64) (phase.Frame, error) {
	modelFrame, err := e.collaborator.SynthesizeAudio(ctx, text, e.cfg.Audio.FrameSize)
	if err != nil {
		e.logger.Warn("Audio synthesis failed",
			slog.String("text", text),
			slog.String("error", err.Error()),
		)
		if e.metrics != nil {
			e.metrics.RecordSynthesis(false)
		}
		return output, nil
	}

	if e.metrics != nil {
		e.metrics.RecordSynthesis(true)
	}

	return e.codec.Mix(output, modelFrame, level)
}

// feedbackWeight normalizes the mic and feedback levels so they sum to 1,
// yielding the blend weight toward the feedback signal. Both levels at
// zero means pure mic.
func feedbackWeight(levels control.Snapshot) float64 {
	total := levels.Mic + levels.Feedback
	if total == 0 {
		return 0
	}
	return levels.Feedback / total
}

// recordViolation logs a frame length contract violation. The iteration is
// aborted loudly rather than padded or truncated, since silent coercion
// would corrupt the phase math downstream.
func (e *Engine) recordViolation(stage string, gotLen int) {
	e.violations.Add(1)
	e.logger.Error("Frame length contract violation",
		slog.String("stage", stage),
		slog.Int("expected", e.cfg.Audio.FrameSize),
		slog.Int("got", gotLen),
	)
	if e.metrics != nil {
		e.metrics.RecordContractViolation()
	}
}
