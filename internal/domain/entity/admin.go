package entity

import "time"

// AdminSession admin session
type AdminSession struct {
	TelegramID   int64
	LoginTime    time.Time
	LastActivity time.Time
}

// AdminAction audit entry of an admin command
type AdminAction struct {
	ID         string
	TelegramID int64
	Action     string // "login", "match_now", "export_rides"
	Details    string
	Timestamp  time.Time
}
