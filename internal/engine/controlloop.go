package engine

import (
	"context"
	"log/slog"

	"github.com/resonatelabs/resonate/internal/control"
)

// controlLoop maps single-key commands onto level adjustments. The quit
// key cancels the whole engine; everything else is a clamped ±step on one
// level. Unknown keys are ignored.
func (e *Engine) controlLoop(ctx context.Context) {
	defer e.keys.Close()

	e.logger.Info("Control loop started")
	e.logger.Info(control.Help())

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Control loop stopping")
			return
		case key, ok := <-e.keys.Keys():
			if !ok {
				e.logger.Info("Key source closed, control loop stopping")
				return
			}
			if key == control.KeyQuit {
				e.logger.Info("Quit key pressed")
				e.Stop()
				return
			}
			e.handleKey(key)
		}
	}
}

// handleKey applies one level adjustment and publishes the new value.
func (e *Engine) handleKey(key byte) {
	cmd, ok := control.Lookup(key)
	if !ok {
		return
	}

	value, err := e.levels.Adjust(cmd.Level, cmd.Delta)
	if err != nil {
		e.logger.Warn("Level adjustment failed",
			slog.String("level", cmd.Level),
			slog.String("error", err.Error()),
		)
		return
	}

	e.logger.Info("Level adjusted",
		slog.String("level", cmd.Level),
		slog.Float64("value", value),
	)
	if e.metrics != nil {
		e.metrics.SetLevel(cmd.Level, value)
	}
}
