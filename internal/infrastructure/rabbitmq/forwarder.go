package rabbitmq

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/yourusername/carpool-bot/internal/domain/entity"
)

// Publisher sink for encoded notifications
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// notificationMessage wire format of a forwarded notification
type notificationMessage struct {
	ID         string    `json:"id"`
	TelegramID string    `json:"telegram_id"`
	Kind       string    `json:"kind"`
	RideID     string    `json:"ride_id,omitempty"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// Forwarder copies the notification stream to a message broker for other consumers
type Forwarder struct {
	pub Publisher
	log *slog.Logger
}

// NewForwarder creates a forwarder publishing through pub
func NewForwarder(pub Publisher, log *slog.Logger) *Forwarder {
	return &Forwarder{pub: pub, log: log}
}

// Run forwards every notification until the stream closes. Publish failures are logged and skipped.
func (f *Forwarder) Run(stream <-chan entity.Notification) {
	for n := range stream {
		body, err := json.Marshal(notificationMessage{
			ID:         n.ID,
			TelegramID: n.TelegramID,
			Kind:       string(n.Kind),
			RideID:     n.RideID,
			Message:    n.Message,
			CreatedAt:  n.CreatedAt.UTC(),
		})
		if err != nil {
			f.log.Error("notification encode failed", "action", "forward_encode_failed", "notification_id", n.ID, "error", err)
			continue
		}

		if err := f.pub.Publish(context.Background(), string(n.Kind), body); err != nil {
			f.log.Error("notification forward failed", "action", "forward_failed", "notification_id", n.ID, "error", err)
			continue
		}
		f.log.Debug("notification forwarded", "action", "notification_forwarded", "notification_id", n.ID)
	}
}
