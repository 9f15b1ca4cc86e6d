package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

// ReminderConfig reminder lead time and collaborator limits
type ReminderConfig struct {
	LeadTime            time.Duration
	CollaboratorTimeout time.Duration
	Location            *time.Location
}

// ReminderUseCase periodic reminders before ride start
type ReminderUseCase interface {
	// RunCycle sends due reminders and returns how many were handed to the notification stream.
	// Returns ErrCycleInProgress when another cycle is still running.
	RunCycle(ctx context.Context) (int, error)
}

type reminderUseCase struct {
	rides    repository.RideRepository
	notifier NotificationSender
	cfg      ReminderConfig
	log      *slog.Logger
	now      func() time.Time
	running  atomic.Bool
}

// NewReminderUseCase creates the reminder scheduler logic
func NewReminderUseCase(
	rides repository.RideRepository,
	notifier NotificationSender,
	cfg ReminderConfig,
	log *slog.Logger,
) ReminderUseCase {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &reminderUseCase{
		rides:    rides,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

var participants = []entity.Role{entity.RoleDriver, entity.RolePassenger}

func (u *reminderUseCase) RunCycle(ctx context.Context) (int, error) {
	if !u.running.CompareAndSwap(false, true) {
		return 0, ErrCycleInProgress
	}
	defer u.running.Store(false)

	now := u.now()
	rides, err := u.loadDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("load confirmed rides: %w", err)
	}

	sent := 0
	for _, ride := range rides {
		for _, role := range participants {
			if ride.Reminded(role) {
				continue
			}

			n := newNotification(ride.Participant(role), entity.KindRideReminder, ride.ID,
				reminderMessage(ride, role, u.cfg.Location), now)
			if err := u.notifier.Send(n); err != nil {
				// not marked, so the next cycle tries again
				u.log.Warn("reminder rejected by notification stream",
					"action", "reminder_rejected", "ride_id", ride.ID, "role", role, "error", err)
				continue
			}
			sent++

			// a failed mark may cause one duplicate reminder next cycle, never a lost one
			if err := u.markReminded(ctx, ride.ID, role); err != nil {
				u.log.Error("marking ride reminded failed",
					"action", "mark_reminded_failed", "ride_id", ride.ID, "role", role, "error", err)
			}
		}
	}
	return sent, nil
}

func (u *reminderUseCase) loadDue(ctx context.Context, now time.Time) ([]entity.Ride, error) {
	callCtx, cancel := context.WithTimeout(ctx, u.cfg.CollaboratorTimeout)
	defer cancel()
	return u.rides.LoadConfirmedRides(callCtx, now, now.Add(u.cfg.LeadTime))
}

func (u *reminderUseCase) markReminded(ctx context.Context, rideID string, role entity.Role) error {
	callCtx, cancel := context.WithTimeout(ctx, u.cfg.CollaboratorTimeout)
	defer cancel()
	return u.rides.MarkRideReminded(callCtx, rideID, role)
}
