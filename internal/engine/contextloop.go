package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/resonatelabs/resonate/internal/model"
)

// contextLoop periodically drains accumulated microphone audio into the
// collaborator's context and requests a text continuation. Failures here
// are logged and never reach the audio loop; the worst case is that the
// text queue stays empty.
func (e *Engine) contextLoop(ctx context.Context) {
	interval := e.cfg.Model.GetUpdateIntervalDuration()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Context loop started",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Context loop stopping")
			return
		case <-ticker.C:
			e.updateContext(ctx)
		}
	}
}

// updateContext runs one context update cycle: flush the accumulator, gate
// on activity, upload, then request a continuation for the text queue.
func (e *Engine) updateContext(ctx context.Context) {
	seg := e.accumulator.Flush()
	if seg == nil {
		return
	}

	if !e.gate.Admit(seg) {
		e.logger.Debug("Segment gated out",
			slog.String("segment_id", seg.ID),
			slog.Float64("duration", seg.Duration.Seconds()),
		)
		if e.metrics != nil {
			e.metrics.RecordSegmentGated()
		}
		return
	}

	update, err := e.collaborator.UpdateContext(ctx, seg.Samples, e.cfg.Audio.SampleRate)
	if err != nil {
		e.logger.Warn("Context update failed",
			slog.String("segment_id", seg.ID),
			slog.String("error", err.Error()),
		)
		if e.metrics != nil {
			e.metrics.RecordContextUpdate(false)
		}
		return
	}

	e.logger.Debug("Context updated",
		slog.String("segment_id", seg.ID),
		slog.Int("tokens", len(update.Tokens)),
		slog.Float64("duration", seg.Duration.Seconds()),
	)
	if e.metrics != nil {
		e.metrics.RecordContextUpdate(true)
	}

	cont, err := e.collaborator.GenerateContinuation(ctx, e.cfg.Model.MaxContinuation)
	if err != nil {
		if errors.Is(err, model.ErrNoContext) {
			return
		}
		e.logger.Warn("Continuation failed", slog.String("error", err.Error()))
		if e.metrics != nil {
			e.metrics.RecordContinuation(false)
		}
		return
	}

	if cont.Text != "" {
		e.queue.Push(cont.Text)
	}
	if e.metrics != nil {
		e.metrics.RecordContinuation(true)
	}
}
