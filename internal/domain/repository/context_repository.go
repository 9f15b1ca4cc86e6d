package repository

import (
	"context"
	"errors"

	"github.com/yourusername/carpool-bot/internal/domain/entity"
)

// ErrContextNotFound user has no active dialogue
var ErrContextNotFound = errors.New("user context not found")

// ContextRepository storage of active dialogue contexts, one per user
type ContextRepository interface {
	// Save stores the context, replacing any previous one of the same user
	Save(ctx context.Context, userID string, userCtx *entity.UserContext) error

	// Get active context of the user
	Get(ctx context.Context, userID string) (*entity.UserContext, error)

	// Delete discards the active context
	Delete(ctx context.Context, userID string) error
}
