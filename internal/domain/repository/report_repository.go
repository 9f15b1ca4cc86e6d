package repository

import (
	"context"

	"github.com/yourusername/carpool-bot/internal/domain/entity"
)

// RideReport renders rides into a downloadable document
type RideReport interface {
	// Render returns file name and content
	Render(ctx context.Context, rides []entity.Ride) (string, []byte, error)
}
