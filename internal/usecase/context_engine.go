package usecase

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/carpool-bot/internal/domain/entity"
)

// CreateUserContext fresh dialogue context with role and telegram id already filled in.
// Only the cancel command is available; the dialogue driver adds field commands itself.
func CreateUserContext(userID string, contextType entity.ContextType) *entity.UserContext {
	userCtx := entity.NewUserContext(contextType)
	userCtx.Fields[entity.FieldRole] = string(contextType.Role())
	userCtx.Fields[entity.FieldTelegramID] = userID
	userCtx.AvailableCommands[entity.CommandCancel] = struct{}{}
	return userCtx
}

// BuildRideRequest converts a completed dialogue into an open ride request
func BuildRideRequest(userCtx *entity.UserContext, id string, now time.Time, flexibility time.Duration) (entity.RideRequest, error) {
	if missing := userCtx.Missing(); len(missing) > 0 {
		return entity.RideRequest{}, fmt.Errorf("%w: %s", ErrMissingField, missing[0])
	}

	departure, err := ParsePoint(userCtx.Fields[entity.FieldDeparturePoint])
	if err != nil {
		return entity.RideRequest{}, fmt.Errorf("departure point: %w", err)
	}
	destination, err := ParsePoint(userCtx.Fields[entity.FieldDestinationPoint])
	if err != nil {
		return entity.RideRequest{}, fmt.Errorf("destination point: %w", err)
	}
	start, err := time.Parse(time.RFC3339, userCtx.Fields[entity.FieldRideDate])
	if err != nil {
		return entity.RideRequest{}, fmt.Errorf("%w: ride date: %v", ErrInvalidAnswer, err)
	}

	return entity.RideRequest{
		ID:               id,
		Role:             entity.Role(userCtx.Fields[entity.FieldRole]),
		TelegramID:       userCtx.Fields[entity.FieldTelegramID],
		DeparturePoint:   departure,
		DestinationPoint: destination,
		RideDate:         entity.RideDate{Start: start, End: start.Add(flexibility)},
		Status:           entity.RequestOpen,
		CreatedAt:        now,
	}, nil
}

// ParsePoint parses "lat,lon"
func ParsePoint(raw string) (entity.Point, error) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) != 2 {
		return entity.Point{}, fmt.Errorf("%w: expected \"lat,lon\"", ErrInvalidAnswer)
	}

	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return entity.Point{}, fmt.Errorf("%w: coordinates must be numbers", ErrInvalidAnswer)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return entity.Point{}, fmt.Errorf("%w: coordinates out of range", ErrInvalidAnswer)
	}
	return entity.Point{Latitude: lat, Longitude: lon}, nil
}
