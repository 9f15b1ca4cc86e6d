package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

// CachedRouting keeps routing answers in Redis; departure points repeat across cycles
type CachedRouting struct {
	rdb  *redis.Client
	next repository.RoutingRepository
	ttl  time.Duration
	log  *slog.Logger
}

var _ repository.RoutingRepository = (*CachedRouting)(nil)

// NewCachedRouting wraps next with a Redis cache
func NewCachedRouting(rdb *redis.Client, next repository.RoutingRepository, ttl time.Duration, log *slog.Logger) *CachedRouting {
	return &CachedRouting{rdb: rdb, next: next, ttl: ttl, log: log}
}

type cachedRoute struct {
	Distance float64 `json:"distance"`
	Duration int64   `json:"duration_ms"`
}

func routeKey(from, to entity.Point) string {
	// ~1m precision
	return fmt.Sprintf("carpool:route:%.5f,%.5f:%.5f,%.5f", from.Latitude, from.Longitude, to.Latitude, to.Longitude)
}

// Distance cached lookup; cache failures fall through to the wrapped client
func (c *CachedRouting) Distance(ctx context.Context, from, to entity.Point) (repository.Route, error) {
	key := routeKey(from, to)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedRoute
		if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
			return repository.Route{
				Distance: cached.Distance,
				Duration: time.Duration(cached.Duration) * time.Millisecond,
			}, nil
		}
	case !errors.Is(err, redis.Nil):
		c.log.Warn("route cache read failed", "action", "route_cache_failed", "error", err)
	}

	route, err := c.next.Distance(ctx, from, to)
	if err != nil {
		return route, err
	}

	payload, _ := json.Marshal(cachedRoute{Distance: route.Distance, Duration: route.Duration.Milliseconds()})
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.Warn("route cache write failed", "action", "route_cache_failed", "error", err)
	}
	return route, nil
}
