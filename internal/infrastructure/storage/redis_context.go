package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

type redisContextRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisContextRepository dialogue contexts in Redis, so they survive restarts and are shared
// between bot instances. Keys expire after ttl of inactivity.
func NewRedisContextRepository(rdb *redis.Client, ttl time.Duration) repository.ContextRepository {
	return &redisContextRepository{rdb: rdb, ttl: ttl}
}

// storedContext wire form of entity.UserContext
type storedContext struct {
	Type     entity.ContextType          `json:"type"`
	Fields   map[entity.FieldName]string `json:"fields"`
	Commands []string                    `json:"commands"`
}

func contextKey(userID string) string {
	return fmt.Sprintf("carpool:context:%s", userID)
}

func encodeContext(userCtx *entity.UserContext) ([]byte, error) {
	return json.Marshal(storedContext{
		Type:     userCtx.Type(),
		Fields:   userCtx.Fields,
		Commands: userCtx.Commands(),
	})
}

func decodeContext(data []byte) (*entity.UserContext, error) {
	var stored storedContext
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	if !stored.Type.Valid() {
		return nil, fmt.Errorf("unknown context type %d", stored.Type)
	}

	userCtx := entity.NewUserContext(stored.Type)
	for k, v := range stored.Fields {
		userCtx.Fields[k] = v
	}
	for _, cmd := range stored.Commands {
		userCtx.AvailableCommands[cmd] = struct{}{}
	}
	return userCtx, nil
}

// Save replaces the user's context
func (r *redisContextRepository) Save(ctx context.Context, userID string, userCtx *entity.UserContext) error {
	data, err := encodeContext(userCtx)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	return r.rdb.Set(ctx, contextKey(userID), data, r.ttl).Err()
}

// Get active context
func (r *redisContextRepository) Get(ctx context.Context, userID string) (*entity.UserContext, error) {
	data, err := r.rdb.Get(ctx, contextKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrContextNotFound
	}
	if err != nil {
		return nil, err
	}

	userCtx, err := decodeContext(data)
	if err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	return userCtx, nil
}

// Delete discards the context
func (r *redisContextRepository) Delete(ctx context.Context, userID string) error {
	return r.rdb.Del(ctx, contextKey(userID)).Err()
}
