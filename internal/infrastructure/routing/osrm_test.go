package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

func TestOSRMClientDistance(t *testing.T) {
	from := entity.Point{Latitude: 55.75, Longitude: 37.61}
	to := entity.Point{Latitude: 55.76, Longitude: 37.62}

	tests := []struct {
		name     string
		status   int
		body     string
		wantDist float64
		wantDur  time.Duration
		wantErr  error
		anyErr   bool
	}{
		{
			name:     "ok",
			status:   http.StatusOK,
			body:     `{"code":"Ok","routes":[{"distance":1234.5,"duration":90.5}]}`,
			wantDist: 1234.5,
			wantDur:  90500 * time.Millisecond,
		},
		{
			name:    "no route",
			status:  http.StatusOK,
			body:    `{"code":"NoRoute","routes":[]}`,
			wantErr: repository.ErrNoRoute,
		},
		{
			name:    "empty routes",
			status:  http.StatusOK,
			body:    `{"code":"Ok","routes":[]}`,
			wantErr: repository.ErrNoRoute,
		},
		{
			name:   "invalid query",
			status: http.StatusBadRequest,
			body:   `{"code":"InvalidQuery","message":"Query string malformed"}`,
			anyErr: true,
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			body:   `bad gateway`,
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewOSRMClient(server.Client(), server.URL+"/")
			route, err := client.Distance(context.Background(), from, to)

			require.Equal(t, "/route/v1/driving/37.610000,55.750000;37.620000,55.760000", gotPath)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				require.Error(t, err)
			default:
				require.NoError(t, err)
				require.InDelta(t, tt.wantDist, route.Distance, 1e-9)
				require.Equal(t, tt.wantDur, route.Duration)
			}
		})
	}
}

func TestOSRMClientHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewOSRMClient(nil, server.URL).Distance(ctx, entity.Point{}, entity.Point{})
	require.Error(t, err)
}
