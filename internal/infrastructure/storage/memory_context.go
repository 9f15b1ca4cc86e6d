package storage

import (
	"context"
	"sync"
	"time"

	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

type contextEntry struct {
	userCtx  *entity.UserContext
	lastUsed time.Time
}

type memoryContextRepository struct {
	mu       sync.RWMutex
	contexts map[string]contextEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryContextRepository in-memory dialogue contexts; idle ones vanish after ttl (0 = never)
func NewMemoryContextRepository(ttl time.Duration) repository.ContextRepository {
	return &memoryContextRepository{
		contexts: make(map[string]contextEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Save replaces the user's context
func (m *memoryContextRepository) Save(ctx context.Context, userID string, userCtx *entity.UserContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.contexts[userID] = contextEntry{userCtx: userCtx.Clone(), lastUsed: m.now()}
	return nil
}

// Get active context
func (m *memoryContextRepository) Get(ctx context.Context, userID string) (*entity.UserContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.contexts[userID]
	if !exists {
		return nil, repository.ErrContextNotFound
	}

	// Idle timeout
	if m.ttl > 0 && m.now().Sub(entry.lastUsed) > m.ttl {
		delete(m.contexts, userID)
		return nil, repository.ErrContextNotFound
	}

	return entry.userCtx.Clone(), nil
}

// Delete discards the context
func (m *memoryContextRepository) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.contexts, userID)
	return nil
}
