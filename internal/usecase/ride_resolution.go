package usecase

import "github.com/yourusername/carpool-bot/internal/domain/entity"

// ResolveRide canonical ride of a compatible driver/passenger pair: pick-up at the passenger's
// departure point, at the later of the two requested start times. Ride id and creation time are
// left to the caller.
func ResolveRide(driver, passenger entity.RideRequest) entity.Ride {
	rideDateTime := driver.RideDate.Start
	if passenger.RideDate.Start.After(rideDateTime) {
		rideDateTime = passenger.RideDate.Start
	}

	return entity.Ride{
		DriverRequestID:     driver.ID,
		PassengerRequestID:  passenger.ID,
		DriverTelegramID:    driver.TelegramID,
		PassengerTelegramID: passenger.TelegramID,
		StartingPosition:    passenger.DeparturePoint,
		RideDateTime:        rideDateTime,
	}
}
