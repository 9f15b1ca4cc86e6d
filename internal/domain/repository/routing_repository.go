package repository

import (
	"context"
	"errors"
	"time"

	"github.com/yourusername/carpool-bot/internal/domain/entity"
)

// ErrNoRoute routing engine found no path between the points
var ErrNoRoute = errors.New("no route found")

// Route best path summary between two points
type Route struct {
	Distance float64 // meters
	Duration time.Duration
}

// RoutingRepository distance/duration engine
type RoutingRepository interface {
	Distance(ctx context.Context, from, to entity.Point) (Route, error)
}
