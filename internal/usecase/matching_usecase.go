package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

// MatchReport outcome of one matching cycle
type MatchReport struct {
	Expired    int
	Drivers    int
	Passengers int
	Matched    int
	Deferred   int
}

// MatchingConfig matching thresholds and collaborator limits
type MatchingConfig struct {
	MaxDistance         float64 // meters between departure points
	MaxDuration         time.Duration
	CommitAttempts      int
	CollaboratorTimeout time.Duration
	Location            *time.Location
}

// MatchingUseCase periodic pairing of open driver and passenger requests
type MatchingUseCase interface {
	// RunCycle runs one scan-match-commit cycle. Returns ErrCycleInProgress without doing anything
	// when another cycle is still running.
	RunCycle(ctx context.Context) (MatchReport, error)
}

type matchingUseCase struct {
	rides    repository.RideRepository
	routing  repository.RoutingRepository
	notifier NotificationSender
	cfg      MatchingConfig
	log      *slog.Logger
	now      func() time.Time
	running  atomic.Bool
}

// NewMatchingUseCase creates the matching engine
func NewMatchingUseCase(
	rides repository.RideRepository,
	routing repository.RoutingRepository,
	notifier NotificationSender,
	cfg MatchingConfig,
	log *slog.Logger,
) MatchingUseCase {
	if cfg.CommitAttempts < 1 {
		cfg.CommitAttempts = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &matchingUseCase{
		rides:    rides,
		routing:  routing,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// RunCycle Idle -> Scanning -> Matching -> Committing -> Idle
func (u *matchingUseCase) RunCycle(ctx context.Context) (MatchReport, error) {
	if !u.running.CompareAndSwap(false, true) {
		return MatchReport{}, ErrCycleInProgress
	}
	defer u.running.Store(false)

	var report MatchReport
	now := u.now()

	// Scanning
	u.expire(ctx, now, &report)

	drivers, err := u.loadOpen(ctx, u.rides.LoadOpenDriverRequests)
	if err != nil {
		return report, fmt.Errorf("load driver requests: %w", err)
	}
	passengers, err := u.loadOpen(ctx, u.rides.LoadOpenPassengerRequests)
	if err != nil {
		return report, fmt.Errorf("load passenger requests: %w", err)
	}
	report.Drivers = len(drivers)
	report.Passengers = len(passengers)

	// Matching: oldest passenger first, each takes the oldest free compatible driver
	taken := make(map[string]bool, len(drivers))
	for _, passenger := range passengers {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		driver, ok := u.findDriver(ctx, now, passenger, drivers, taken)
		if !ok {
			continue
		}
		// a driver is offered once per cycle even if the commit fails
		taken[driver.ID] = true

		// Committing
		ride := ResolveRide(driver, passenger)
		ride.ID = uuid.New().String()
		ride.CreatedAt = now

		if err := u.commit(ctx, ride); err != nil {
			report.Deferred++
			if errors.Is(err, repository.ErrRequestNotOpen) || errors.Is(err, repository.ErrRequestNotFound) {
				u.log.Info("request left the open state before commit, pair dropped",
					"action", "match_commit_rejected",
					"driver_request_id", driver.ID,
					"passenger_request_id", passenger.ID,
					"error", err)
				continue
			}
			u.log.Error("ride commit failed, pair deferred to next cycle",
				"action", "match_commit_failed",
				"driver_request_id", driver.ID,
				"passenger_request_id", passenger.ID,
				"error", err)
			continue
		}

		report.Matched++
		u.log.Info("ride matched",
			"action", "ride_matched",
			"ride_id", ride.ID,
			"ride_date_time", ride.RideDateTime)
		u.notify(newNotification(ride.DriverTelegramID, entity.KindRideMatched, ride.ID,
			matchedMessage(ride, entity.RoleDriver, u.cfg.Location), now))
		u.notify(newNotification(ride.PassengerTelegramID, entity.KindRideMatched, ride.ID,
			matchedMessage(ride, entity.RolePassenger, u.cfg.Location), now))
	}

	return report, nil
}

func (u *matchingUseCase) expire(ctx context.Context, now time.Time, report *MatchReport) {
	callCtx, cancel := context.WithTimeout(ctx, u.cfg.CollaboratorTimeout)
	defer cancel()

	expired, err := u.rides.ExpireRequests(callCtx, now)
	if err != nil {
		u.log.Error("expiring stale requests failed", "action", "expire_requests_failed", "error", err)
		return
	}

	report.Expired = len(expired)
	for _, request := range expired {
		u.notify(newNotification(request.TelegramID, entity.KindRequestExpired, "",
			expiredMessage(request, u.cfg.Location), now))
	}
}

func (u *matchingUseCase) loadOpen(ctx context.Context, load func(context.Context) ([]entity.RideRequest, error)) ([]entity.RideRequest, error) {
	callCtx, cancel := context.WithTimeout(ctx, u.cfg.CollaboratorTimeout)
	defer cancel()

	requests, err := load(callCtx)
	if err != nil {
		return nil, err
	}
	sortOldestFirst(requests)
	return requests, nil
}

func (u *matchingUseCase) findDriver(ctx context.Context, now time.Time, passenger entity.RideRequest, drivers []entity.RideRequest, taken map[string]bool) (entity.RideRequest, bool) {
	for _, driver := range drivers {
		if taken[driver.ID] || driver.TelegramID == passenger.TelegramID {
			continue
		}
		if !driver.RideDate.Overlaps(passenger.RideDate) {
			continue
		}
		// the ride would start in the past
		if ResolveRide(driver, passenger).RideDateTime.Before(now) {
			continue
		}

		compatible, err := u.withinReach(ctx, driver.DeparturePoint, passenger.DeparturePoint)
		if err != nil {
			u.log.Warn("routing lookup failed, pair skipped",
				"action", "routing_failed",
				"driver_request_id", driver.ID,
				"passenger_request_id", passenger.ID,
				"error", err)
			continue
		}
		if compatible {
			return driver, true
		}
	}
	return entity.RideRequest{}, false
}

func (u *matchingUseCase) withinReach(ctx context.Context, from, to entity.Point) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, u.cfg.CollaboratorTimeout)
	defer cancel()

	route, err := u.routing.Distance(callCtx, from, to)
	if err != nil {
		return false, err
	}
	return route.Distance <= u.cfg.MaxDistance && route.Duration <= u.cfg.MaxDuration, nil
}

func (u *matchingUseCase) commit(ctx context.Context, ride entity.Ride) error {
	var err error
	for attempt := 1; attempt <= u.cfg.CommitAttempts; attempt++ {
		if err = u.commitOnce(ctx, ride); err == nil {
			return nil
		}
		// a request left the open state; retrying cannot succeed
		if errors.Is(err, repository.ErrRequestNotOpen) || errors.Is(err, repository.ErrRequestNotFound) {
			return err
		}
		u.log.Warn("ride commit attempt failed",
			"action", "match_commit_retry",
			"attempt", attempt,
			"error", err)
	}
	return err
}

func (u *matchingUseCase) commitOnce(ctx context.Context, ride entity.Ride) error {
	callCtx, cancel := context.WithTimeout(ctx, u.cfg.CollaboratorTimeout)
	defer cancel()

	if err := u.rides.CommitRide(callCtx, ride); err != nil {
		return fmt.Errorf("commit ride: %w", err)
	}
	return nil
}

func (u *matchingUseCase) notify(n entity.Notification) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.Send(n); err != nil {
		u.log.Warn("notification rejected", "action", "notification_rejected", "kind", n.Kind, "error", err)
	}
}

func sortOldestFirst(requests []entity.RideRequest) {
	sort.SliceStable(requests, func(i, j int) bool {
		if !requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].CreatedAt.Before(requests[j].CreatedAt)
		}
		return requests[i].ID < requests[j].ID
	})
}
