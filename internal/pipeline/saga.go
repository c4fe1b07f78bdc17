package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// saga records undo actions as pipeline stages succeed and replays them
// in reverse when a later stage fails fatally. Undo failures are logged
// and never mask the primary error.
type saga struct {
	logger *slog.Logger
	undos  []undoAction
}

type undoAction struct {
	name string
	fn   func(context.Context) error
}

func newSaga(logger *slog.Logger) *saga {
	return &saga{logger: logger}
}

// onFailure registers an undo action for a completed stage.
func (s *saga) onFailure(name string, fn func(context.Context) error) {
	s.undos = append(s.undos, undoAction{name: name, fn: fn})
}

// compensate replays the recorded undo actions in reverse order.
// Each action runs to completion regardless of earlier undo failures.
func (s *saga) compensate(ctx context.Context) {
	for i := len(s.undos) - 1; i >= 0; i-- {
		s.runUndo(ctx, s.undos[i])
	}
	s.undos = nil
}

func (s *saga) runUndo(ctx context.Context, u undoAction) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("compensation panicked",
				slog.String("action", u.name),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	if err := u.fn(ctx); err != nil {
		s.logger.Warn("compensation failed",
			slog.String("action", u.name),
			slog.String("error", err.Error()),
		)
	}
}
