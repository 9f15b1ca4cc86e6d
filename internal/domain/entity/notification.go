package entity

import "time"

// NotificationKind what the notification is about
type NotificationKind string

const (
	KindRideReminder   NotificationKind = "ride_reminder"
	KindRideMatched    NotificationKind = "ride_matched"
	KindRequestExpired NotificationKind = "request_expired"
)

// Notification immutable message decided by the core, delivered by a transport
type Notification struct {
	ID         string
	TelegramID string
	Kind       NotificationKind
	RideID     string
	Message    string
	CreatedAt  time.Time
}
