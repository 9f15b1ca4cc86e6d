package repository

import (
	"context"
	"errors"
	"time"

	"github.com/yourusername/carpool-bot/internal/domain/entity"
)

var (
	// ErrRequestNotFound request does not exist or does not belong to the caller
	ErrRequestNotFound = errors.New("ride request not found")

	// ErrRequestNotOpen request already left the open state
	ErrRequestNotOpen = errors.New("ride request is not open")

	// ErrRideNotFound ride does not exist
	ErrRideNotFound = errors.New("ride not found")
)

// RideRepository persistence of ride requests and confirmed rides.
// Every method is safe to re-run: a repeated call leaves the store in the same state.
type RideRepository interface {
	// SaveRequest stores a new ride request
	SaveRequest(ctx context.Context, request entity.RideRequest) error

	// GetRequest request by id
	GetRequest(ctx context.Context, id string) (*entity.RideRequest, error)

	// ListRequestsByTelegramID requests of one user, newest first
	ListRequestsByTelegramID(ctx context.Context, telegramID string) ([]entity.RideRequest, error)

	// LoadOpenDriverRequests open driver requests, oldest first
	LoadOpenDriverRequests(ctx context.Context) ([]entity.RideRequest, error)

	// LoadOpenPassengerRequests open passenger requests, oldest first
	LoadOpenPassengerRequests(ctx context.Context) ([]entity.RideRequest, error)

	// MarkRequestMatched moves an open request to matched; matched stays matched
	MarkRequestMatched(ctx context.Context, id string) error

	// CancelRequest moves an open request to canceled; canceled stays canceled
	CancelRequest(ctx context.Context, id string) error

	// ExpireRequests moves open requests whose ride date ended before the given instant to expired
	// and returns them
	ExpireRequests(ctx context.Context, before time.Time) ([]entity.RideRequest, error)

	// CommitRide marks both requests of the ride matched and stores the ride as one step.
	// Nothing changes and ErrRequestNotOpen (or ErrRequestNotFound) is returned when either request
	// is no longer open. Committing a pair that already has a ride is a no-op.
	CommitRide(ctx context.Context, ride entity.Ride) error

	// SaveRide stores a ride; a second ride for the same driver/passenger pair is ignored
	SaveRide(ctx context.Context, ride entity.Ride) error

	// LoadConfirmedRides rides whose ride time falls into [from, to]
	LoadConfirmedRides(ctx context.Context, from, to time.Time) ([]entity.Ride, error)

	// MarkRideReminded records that the given participant got the reminder
	MarkRideReminded(ctx context.Context, rideID string, participant entity.Role) error
}
