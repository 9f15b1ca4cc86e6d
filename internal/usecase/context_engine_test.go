package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yourusername/carpool-bot/internal/domain/entity"
)

func TestCreateUserContext(t *testing.T) {
	for _, contextType := range []entity.ContextType{entity.CreateDriverRequest, entity.CreatePassengerRequest} {
		t.Run(contextType.String(), func(t *testing.T) {
			userCtx := CreateUserContext("42", contextType)

			require.Equal(t, contextType, userCtx.Type())
			require.Equal(t, map[entity.FieldName]string{
				entity.FieldRole:       string(contextType.Role()),
				entity.FieldTelegramID: "42",
			}, userCtx.Fields)
			require.Equal(t, []string{entity.CommandCancel}, userCtx.Commands())
			require.Equal(t, []entity.FieldName{
				entity.FieldDeparturePoint, entity.FieldDestinationPoint, entity.FieldRideDate,
			}, userCtx.Missing())
		})
	}
}

func TestCreateUserContextIsFresh(t *testing.T) {
	first := CreateUserContext("1", entity.CreateDriverRequest)
	first.Fields[entity.FieldRideDate] = "x"

	second := CreateUserContext("1", entity.CreateDriverRequest)
	require.NotContains(t, second.Fields, entity.FieldRideDate)
}

func TestBuildRideRequest(t *testing.T) {
	userCtx := CreateUserContext("42", entity.CreatePassengerRequest)
	userCtx.Fields[entity.FieldDeparturePoint] = "55.750000,37.610000"
	userCtx.Fields[entity.FieldDestinationPoint] = "55.800000,37.700000"

	_, err := BuildRideRequest(userCtx, "r1", testNow, time.Hour)
	require.ErrorIs(t, err, ErrMissingField)

	userCtx.Fields[entity.FieldRideDate] = "2030-05-01T09:00:00Z"
	request, err := BuildRideRequest(userCtx, "r1", testNow, time.Hour)
	require.NoError(t, err)

	start := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)
	require.Equal(t, "r1", request.ID)
	require.Equal(t, entity.RolePassenger, request.Role)
	require.Equal(t, "42", request.TelegramID)
	require.Equal(t, entity.Point{Latitude: 55.75, Longitude: 37.61}, request.DeparturePoint)
	require.True(t, request.RideDate.Start.Equal(start))
	require.True(t, request.RideDate.End.Equal(start.Add(time.Hour)))
	require.Equal(t, entity.RequestOpen, request.Status)
	require.Equal(t, testNow, request.CreatedAt)
}

func TestParsePoint(t *testing.T) {
	tests := []struct {
		raw     string
		want    entity.Point
		wantErr bool
	}{
		{raw: "55.75,37.61", want: entity.Point{Latitude: 55.75, Longitude: 37.61}},
		{raw: " -33.9 , 151.2 ", want: entity.Point{Latitude: -33.9, Longitude: 151.2}},
		{raw: "55.75", wantErr: true},
		{raw: "north,east", wantErr: true},
		{raw: "91,0", wantErr: true},
		{raw: "0,181", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParsePoint(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAnswer)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
