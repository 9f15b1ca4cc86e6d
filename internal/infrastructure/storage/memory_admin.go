package storage

import (
	"context"
	"sync"
	"time"

	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

// adminSessionTimeout idle admin sessions expire after this
const adminSessionTimeout = 24 * time.Hour

type memoryAdminRepository struct {
	mu       sync.RWMutex
	sessions map[int64]entity.AdminSession
	actions  []entity.AdminAction
	now      func() time.Time
}

// NewMemoryAdminRepository in-memory admin repository
func NewMemoryAdminRepository() repository.AdminRepository {
	return &memoryAdminRepository{
		sessions: make(map[int64]entity.AdminSession),
		now:      time.Now,
	}
}

// CreateSession starts an admin session
func (m *memoryAdminRepository) CreateSession(ctx context.Context, session entity.AdminSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session.LastActivity = m.now()
	m.sessions[session.TelegramID] = session
	return nil
}

// DeleteSession logout
func (m *memoryAdminRepository) DeleteSession(ctx context.Context, telegramID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, telegramID)
	return nil
}

// IsAdmin live session check; activity extends the session
func (m *memoryAdminRepository) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[telegramID]
	if !exists {
		return false, nil
	}

	now := m.now()
	if now.Sub(session.LastActivity) > adminSessionTimeout {
		delete(m.sessions, telegramID)
		return false, nil
	}

	session.LastActivity = now
	m.sessions[telegramID] = session
	return true, nil
}

// LogAction appends an audit entry
func (m *memoryAdminRepository) LogAction(ctx context.Context, action entity.AdminAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.actions = append(m.actions, action)
	return nil
}

// Actions audit entries, oldest first
func (m *memoryAdminRepository) Actions(ctx context.Context) ([]entity.AdminAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]entity.AdminAction, len(m.actions))
	copy(out, m.actions)
	return out, nil
}
