package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

// OSRMClient driving routes from an OSRM server
type OSRMClient struct {
	httpClient *http.Client
	baseURL    string
}

var _ repository.RoutingRepository = (*OSRMClient)(nil)

// NewOSRMClient constructs a new OSRM client
func NewOSRMClient(httpClient *http.Client, baseURL string) *OSRMClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &OSRMClient{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
	} `json:"routes"`
}

// Distance driving distance and duration between two points
func (c *OSRMClient) Distance(ctx context.Context, from, to entity.Point) (repository.Route, error) {
	// OSRM takes lon,lat
	endpoint := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=false",
		c.baseURL, from.Longitude, from.Latitude, to.Longitude, to.Latitude)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return repository.Route{}, fmt.Errorf("osrm: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return repository.Route{}, fmt.Errorf("osrm: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return repository.Route{}, fmt.Errorf("osrm: read body: %w", err)
	}

	var out osrmResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode >= 300 {
			return repository.Route{}, fmt.Errorf("osrm: http %s: %s", resp.Status, strings.TrimSpace(string(body)))
		}
		return repository.Route{}, fmt.Errorf("osrm: decode: %w", err)
	}

	switch out.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return repository.Route{}, repository.ErrNoRoute
	default:
		return repository.Route{}, fmt.Errorf("osrm: code=%s: %s", out.Code, out.Message)
	}
	if len(out.Routes) == 0 {
		return repository.Route{}, repository.ErrNoRoute
	}

	route := out.Routes[0]
	return repository.Route{
		Distance: route.Distance,
		Duration: time.Duration(route.Duration * float64(time.Second)),
	}, nil
}
