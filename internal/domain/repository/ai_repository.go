package repository

import (
	"context"
	"time"
)

// DateInterpreter turns free-form user text ("tomorrow at 9") into an instant
type DateInterpreter interface {
	InterpretDate(ctx context.Context, text string, now time.Time) (time.Time, error)
}
