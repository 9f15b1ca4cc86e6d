package entity

import "time"

// Ride confirmed pairing of one driver request and one passenger request
type Ride struct {
	ID                  string
	DriverRequestID     string
	PassengerRequestID  string
	DriverTelegramID    string
	PassengerTelegramID string
	StartingPosition    Point
	RideDateTime        time.Time
	DriverReminded      bool
	PassengerReminded   bool
	CreatedAt           time.Time
}

// Participant telegram id of the given side
func (r Ride) Participant(role Role) string {
	if role == RoleDriver {
		return r.DriverTelegramID
	}
	return r.PassengerTelegramID
}

// Reminded reports whether the given side already got its reminder
func (r Ride) Reminded(role Role) bool {
	if role == RoleDriver {
		return r.DriverReminded
	}
	return r.PassengerReminded
}
