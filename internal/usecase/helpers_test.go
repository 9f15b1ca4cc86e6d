package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

var testNow = time.Date(2030, 5, 1, 8, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSender collects notifications; fail makes Send reject them
type recordingSender struct {
	mu   sync.Mutex
	sent []entity.Notification
	fail bool
}

func (s *recordingSender) Send(n entity.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return errors.New("stream closed")
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSender) ofKind(kind entity.NotificationKind) []entity.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []entity.Notification
	for _, n := range s.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// routeFunc routing collaborator backed by a function
type routeFunc func(ctx context.Context, from, to entity.Point) (repository.Route, error)

func (f routeFunc) Distance(ctx context.Context, from, to entity.Point) (repository.Route, error) {
	return f(ctx, from, to)
}

func fixedRoute(distance float64, duration time.Duration) routeFunc {
	return func(ctx context.Context, from, to entity.Point) (repository.Route, error) {
		return repository.Route{Distance: distance, Duration: duration}, nil
	}
}

// flakyRides injects failures into a working ride repository
type flakyRides struct {
	repository.RideRepository

	mu             sync.Mutex
	commitFailures int
	commitCalls    int
	beforeCommit   func(ctx context.Context, ride entity.Ride)
	markFailures   int
	loadRidesGate  chan struct{}
}

func (f *flakyRides) CommitRide(ctx context.Context, ride entity.Ride) error {
	f.mu.Lock()
	f.commitCalls++
	if f.commitFailures > 0 {
		f.commitFailures--
		f.mu.Unlock()
		return errors.New("disk I/O error")
	}
	hook := f.beforeCommit
	f.mu.Unlock()

	if hook != nil {
		hook(ctx, ride)
	}
	return f.RideRepository.CommitRide(ctx, ride)
}

func (f *flakyRides) MarkRideReminded(ctx context.Context, rideID string, participant entity.Role) error {
	f.mu.Lock()
	if f.markFailures > 0 {
		f.markFailures--
		f.mu.Unlock()
		return errors.New("disk I/O error")
	}
	f.mu.Unlock()
	return f.RideRepository.MarkRideReminded(ctx, rideID, participant)
}

func (f *flakyRides) LoadConfirmedRides(ctx context.Context, from, to time.Time) ([]entity.Ride, error) {
	if f.loadRidesGate != nil {
		<-f.loadRidesGate
	}
	return f.RideRepository.LoadConfirmedRides(ctx, from, to)
}

func rideRequest(id string, role entity.Role, telegramID string, created time.Duration, start time.Time) entity.RideRequest {
	return entity.RideRequest{
		ID:               id,
		Role:             role,
		TelegramID:       telegramID,
		DeparturePoint:   entity.Point{Latitude: 55.75, Longitude: 37.61},
		DestinationPoint: entity.Point{Latitude: 55.80, Longitude: 37.70},
		RideDate:         entity.RideDate{Start: start, End: start.Add(time.Hour)},
		Status:           entity.RequestOpen,
		CreatedAt:        testNow.Add(-created),
	}
}
