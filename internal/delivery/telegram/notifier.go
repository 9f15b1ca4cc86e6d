package telegram

import (
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/yourusername/carpool-bot/internal/domain/entity"
)

// Notifier delivers notifications from the stream as direct messages
type Notifier struct {
	bot Sender
	log *slog.Logger
}

// NewNotifier creates the delivery loop
func NewNotifier(bot Sender, log *slog.Logger) *Notifier {
	return &Notifier{bot: bot, log: log}
}

// Run sends every notification until the stream closes. Delivery failures are logged, never retried.
func (n *Notifier) Run(stream <-chan entity.Notification) {
	for notification := range stream {
		n.deliver(notification)
	}
	n.log.Info("notification delivery stopped", "action", "notifier_stopped")
}

func (n *Notifier) deliver(notification entity.Notification) {
	chatID, err := strconv.ParseInt(notification.TelegramID, 10, 64)
	if err != nil {
		n.log.Error("notification has invalid telegram id",
			"action", "notification_invalid_recipient",
			"notification_id", notification.ID,
			"telegram_id", notification.TelegramID)
		return
	}

	if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, notification.Message)); err != nil {
		n.log.Error("notification delivery failed",
			"action", "notification_delivery_failed",
			"notification_id", notification.ID,
			"kind", notification.Kind,
			"error", err)
		return
	}

	n.log.Info("notification delivered",
		"action", "notification_delivered",
		"notification_id", notification.ID,
		"kind", notification.Kind,
		"ride_id", notification.RideID)
}
