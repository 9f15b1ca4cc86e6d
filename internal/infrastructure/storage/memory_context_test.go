package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

func TestMemoryContextReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryContextRepository(0)

	driver := entity.NewUserContext(entity.CreateDriverRequest)
	require.NoError(t, repo.Save(ctx, "1", driver))

	passenger := entity.NewUserContext(entity.CreatePassengerRequest)
	require.NoError(t, repo.Save(ctx, "1", passenger))

	got, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, entity.CreatePassengerRequest, got.Type())

	require.NoError(t, repo.Delete(ctx, "1"))
	_, err = repo.Get(ctx, "1")
	require.ErrorIs(t, err, repository.ErrContextNotFound)
}

func TestMemoryContextIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryContextRepository(0)

	userCtx := entity.NewUserContext(entity.CreateDriverRequest)
	require.NoError(t, repo.Save(ctx, "1", userCtx))
	userCtx.Fields[entity.FieldRideDate] = "changed after save"

	got, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	require.NotContains(t, got.Fields, entity.FieldRideDate)
}

func TestMemoryContextExpires(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryContextRepository(time.Minute).(*memoryContextRepository)

	now := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	require.NoError(t, repo.Save(ctx, "1", entity.NewUserContext(entity.CreateDriverRequest)))

	now = now.Add(2 * time.Minute)
	_, err := repo.Get(ctx, "1")
	require.ErrorIs(t, err, repository.ErrContextNotFound)
}

func TestRedisContextEncoding(t *testing.T) {
	userCtx := entity.NewUserContext(entity.CreatePassengerRequest)
	userCtx.Fields[entity.FieldRole] = "passenger"
	userCtx.Fields[entity.FieldTelegramID] = "42"
	userCtx.AvailableCommands[entity.CommandCancel] = struct{}{}
	userCtx.AvailableCommands[entity.CommandDate] = struct{}{}

	data, err := encodeContext(userCtx)
	require.NoError(t, err)

	decoded, err := decodeContext(data)
	require.NoError(t, err)
	require.Equal(t, entity.CreatePassengerRequest, decoded.Type())
	require.Equal(t, userCtx.Fields, decoded.Fields)
	require.Equal(t, []string{entity.CommandCancel, entity.CommandDate}, decoded.Commands())

	_, err = decodeContext([]byte(`{"type":99}`))
	require.Error(t, err)
}

func TestMemoryAdminSessions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAdminRepository().(*memoryAdminRepository)

	now := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.CreateSession(ctx, entity.AdminSession{TelegramID: 7}))
	ok, err := repo.IsAdmin(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(25 * time.Hour)
	ok, err = repo.IsAdmin(ctx, 7)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.LogAction(ctx, entity.AdminAction{ID: "a", Action: "login"}))
	actions, err := repo.Actions(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
}
