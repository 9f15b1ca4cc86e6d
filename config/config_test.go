package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, cfg.MatchingInterval)
	require.Equal(t, 30*time.Minute, cfg.MinutesBeforeRideStart)
	require.Equal(t, 3000, cfg.MatchMaxDistance)
	require.Equal(t, 2, cfg.MatchCommitAttempts)
	require.Equal(t, time.UTC, cfg.TimeZone)
	require.Equal(t, "carpool.notifications", cfg.RabbitMQExchange)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("MATCHING_INTERVAL_MINUTES", "15")
	t.Setenv("MINUTES_BEFORE_RIDE_START", "45")
	t.Setenv("TIME_ZONE", "Europe/Moscow")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, cfg.MatchingInterval)
	require.Equal(t, 45*time.Minute, cfg.MinutesBeforeRideStart)
	require.Equal(t, "Europe/Moscow", cfg.TimeZone.String())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("MATCHING_INTERVAL_MINUTES", "five")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("MATCHING_INTERVAL_MINUTES", "0")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
}
