package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/carpool-bot/internal/domain/entity"
)

// NotificationSender producer side of the notification stream
type NotificationSender interface {
	Send(n entity.Notification) error
}

const rideTimeLayout = "2006-01-02 15:04"

func newNotification(telegramID string, kind entity.NotificationKind, rideID, message string, now time.Time) entity.Notification {
	return entity.Notification{
		ID:         uuid.New().String(),
		TelegramID: telegramID,
		Kind:       kind,
		RideID:     rideID,
		Message:    message,
		CreatedAt:  now,
	}
}

func reminderMessage(ride entity.Ride, role entity.Role, loc *time.Location) string {
	when := ride.RideDateTime.In(loc).Format(rideTimeLayout)
	if role == entity.RoleDriver {
		return fmt.Sprintf("⏰ Reminder: your ride starts at %s. Pick up your passenger at %s.", when, ride.StartingPosition)
	}
	return fmt.Sprintf("⏰ Reminder: your ride starts at %s. Be ready at %s.", when, ride.StartingPosition)
}

func matchedMessage(ride entity.Ride, role entity.Role, loc *time.Location) string {
	when := ride.RideDateTime.In(loc).Format(rideTimeLayout)
	if role == entity.RoleDriver {
		return fmt.Sprintf("🚗 We found you a passenger! Pick-up at %s on %s.", ride.StartingPosition, when)
	}
	return fmt.Sprintf("🚗 We found you a driver! Be ready at %s on %s.", ride.StartingPosition, when)
}

func expiredMessage(request entity.RideRequest, loc *time.Location) string {
	return fmt.Sprintf("⌛ Your %s request for %s expired without a match.",
		request.Role, request.RideDate.Start.In(loc).Format(rideTimeLayout))
}
