package entity

import (
	"fmt"
	"time"
)

// RequestStatus lifecycle status of a ride request
type RequestStatus string

const (
	RequestOpen     RequestStatus = "open"
	RequestMatched  RequestStatus = "matched"
	RequestCanceled RequestStatus = "canceled"
	RequestExpired  RequestStatus = "expired"
)

// Point geographic point
type Point struct {
	Latitude  float64
	Longitude float64
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude)
}

// IsZero reports whether the point was never set
func (p Point) IsZero() bool {
	return p.Latitude == 0 && p.Longitude == 0
}

// RideDate interval during which the requester is ready to leave
type RideDate struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether both intervals share at least one instant
func (d RideDate) Overlaps(other RideDate) bool {
	return !d.Start.After(other.End) && !other.Start.After(d.End)
}

// RideRequest driver or passenger intent to travel
type RideRequest struct {
	ID               string
	Role             Role
	TelegramID       string
	DeparturePoint   Point
	DestinationPoint Point
	RideDate         RideDate
	Status           RequestStatus
	CreatedAt        time.Time
}
