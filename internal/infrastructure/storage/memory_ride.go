package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

type memoryRideRepository struct {
	mu       sync.RWMutex
	requests map[string]entity.RideRequest
	rides    map[string]entity.Ride
	pairs    map[string]string // driver|passenger request ids -> ride id
}

// NewMemoryRideRepository in-memory ride repository
func NewMemoryRideRepository() repository.RideRepository {
	return &memoryRideRepository{
		requests: make(map[string]entity.RideRequest),
		rides:    make(map[string]entity.Ride),
		pairs:    make(map[string]string),
	}
}

// SaveRequest stores a new ride request
func (m *memoryRideRepository) SaveRequest(ctx context.Context, request entity.RideRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests[request.ID] = request
	return nil
}

// GetRequest request by id
func (m *memoryRideRepository) GetRequest(ctx context.Context, id string) (*entity.RideRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	request, exists := m.requests[id]
	if !exists {
		return nil, repository.ErrRequestNotFound
	}
	return &request, nil
}

// ListRequestsByTelegramID requests of one user, newest first
func (m *memoryRideRepository) ListRequestsByTelegramID(ctx context.Context, telegramID string) ([]entity.RideRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []entity.RideRequest
	for _, request := range m.requests {
		if request.TelegramID == telegramID {
			out = append(out, request)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// LoadOpenDriverRequests open driver requests
func (m *memoryRideRepository) LoadOpenDriverRequests(ctx context.Context) ([]entity.RideRequest, error) {
	return m.loadOpen(entity.RoleDriver), nil
}

// LoadOpenPassengerRequests open passenger requests
func (m *memoryRideRepository) LoadOpenPassengerRequests(ctx context.Context) ([]entity.RideRequest, error) {
	return m.loadOpen(entity.RolePassenger), nil
}

func (m *memoryRideRepository) loadOpen(role entity.Role) []entity.RideRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []entity.RideRequest
	for _, request := range m.requests {
		if request.Role == role && request.Status == entity.RequestOpen {
			out = append(out, request)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MarkRequestMatched open -> matched
func (m *memoryRideRepository) MarkRequestMatched(ctx context.Context, id string) error {
	return m.transition(id, entity.RequestMatched)
}

// CancelRequest open -> canceled
func (m *memoryRideRepository) CancelRequest(ctx context.Context, id string) error {
	return m.transition(id, entity.RequestCanceled)
}

func (m *memoryRideRepository) transition(id string, to entity.RequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	request, exists := m.requests[id]
	if !exists {
		return repository.ErrRequestNotFound
	}
	if request.Status == to {
		return nil
	}
	if request.Status != entity.RequestOpen {
		return repository.ErrRequestNotOpen
	}

	request.Status = to
	m.requests[id] = request
	return nil
}

// ExpireRequests open requests whose window ended before the given instant become expired
func (m *memoryRideRepository) ExpireRequests(ctx context.Context, before time.Time) ([]entity.RideRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []entity.RideRequest
	for id, request := range m.requests {
		if request.Status == entity.RequestOpen && request.RideDate.End.Before(before) {
			request.Status = entity.RequestExpired
			m.requests[id] = request
			expired = append(expired, request)
		}
	}

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].CreatedAt.Before(expired[j].CreatedAt)
	})
	return expired, nil
}

// CommitRide open driver and passenger requests -> matched, plus the ride, under one lock
func (m *memoryRideRepository) CommitRide(ctx context.Context, ride entity.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.pairs[pairKey(ride)]; exists {
		return nil
	}

	ids := []string{ride.DriverRequestID, ride.PassengerRequestID}
	for _, id := range ids {
		request, exists := m.requests[id]
		if !exists {
			return repository.ErrRequestNotFound
		}
		if request.Status != entity.RequestOpen {
			return repository.ErrRequestNotOpen
		}
	}

	for _, id := range ids {
		request := m.requests[id]
		request.Status = entity.RequestMatched
		m.requests[id] = request
	}
	m.storeRide(ride)
	return nil
}

// SaveRide stores the ride once per driver/passenger pair
func (m *memoryRideRepository) SaveRide(ctx context.Context, ride entity.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.pairs[pairKey(ride)]; exists {
		return nil
	}
	m.storeRide(ride)
	return nil
}

func (m *memoryRideRepository) storeRide(ride entity.Ride) {
	m.pairs[pairKey(ride)] = ride.ID
	m.rides[ride.ID] = ride
}

func pairKey(ride entity.Ride) string {
	return ride.DriverRequestID + "|" + ride.PassengerRequestID
}

// LoadConfirmedRides rides with ride time in [from, to], earliest first
func (m *memoryRideRepository) LoadConfirmedRides(ctx context.Context, from, to time.Time) ([]entity.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []entity.Ride
	for _, ride := range m.rides {
		if !ride.RideDateTime.Before(from) && !ride.RideDateTime.After(to) {
			out = append(out, ride)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].RideDateTime.Before(out[j].RideDateTime)
	})
	return out, nil
}

// MarkRideReminded records the reminder of one participant
func (m *memoryRideRepository) MarkRideReminded(ctx context.Context, rideID string, participant entity.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ride, exists := m.rides[rideID]
	if !exists {
		return repository.ErrRideNotFound
	}

	if participant == entity.RoleDriver {
		ride.DriverReminded = true
	} else {
		ride.PassengerReminded = true
	}
	m.rides[rideID] = ride
	return nil
}
