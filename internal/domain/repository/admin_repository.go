package repository

import (
	"context"

	"github.com/yourusername/carpool-bot/internal/domain/entity"
)

// AdminRepository admin sessions and audit log
type AdminRepository interface {
	// CreateSession starts an admin session
	CreateSession(ctx context.Context, session entity.AdminSession) error

	// DeleteSession ends the session (logout)
	DeleteSession(ctx context.Context, telegramID int64) error

	// IsAdmin reports whether the user has a live session
	IsAdmin(ctx context.Context, telegramID int64) (bool, error)

	// LogAction appends an audit entry
	LogAction(ctx context.Context, action entity.AdminAction) error

	// Actions audit entries, oldest first
	Actions(ctx context.Context) ([]entity.AdminAction, error)
}
