package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	TelegramToken string
	AdminPassword string
	RideDBPath    string
	TimeZone      *time.Location
	LogLevel      string

	// Matching scheduler
	MatchingInterval    time.Duration
	MatchMaxDistance    int // meters
	MatchMaxDuration    time.Duration
	MatchCommitAttempts int
	RequestFlexibility  time.Duration

	// Reminder scheduler
	ReminderInterval       time.Duration
	MinutesBeforeRideStart time.Duration

	CollaboratorTimeout time.Duration
	CycleTimeout        time.Duration

	OSRMURL      string
	GeminiAPIKey string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ContextTTL    time.Duration

	RabbitMQURL      string
	RabbitMQExchange string
}

// Load reads the configuration from the environment (and .env when present)
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := &Config{
		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
		RideDBPath:       "data/carpool.db",
		OSRMURL:          "https://router.project-osrm.org",
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		RabbitMQExchange: "carpool.notifications",
		TimeZone:         time.UTC,
		LogLevel:         "info",
	}

	if dbPath := os.Getenv("RIDE_DB_PATH"); dbPath != "" {
		config.RideDBPath = dbPath
	}
	if osrm := os.Getenv("OSRM_URL"); osrm != "" {
		config.OSRMURL = osrm
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if exchange := os.Getenv("RABBITMQ_EXCHANGE"); exchange != "" {
		config.RabbitMQExchange = exchange
	}

	if tz := os.Getenv("TIME_ZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("TIME_ZONE is invalid: %v", err)
		}
		config.TimeZone = loc
	}

	ints := []struct {
		key    string
		def    int
		minVal int
		target *int
	}{
		{"MATCH_MAX_DISTANCE_METERS", 3000, 1, &config.MatchMaxDistance},
		{"MATCH_COMMIT_ATTEMPTS", 2, 1, &config.MatchCommitAttempts},
		{"REDIS_DB", 0, 0, &config.RedisDB},
	}
	for _, item := range ints {
		v, err := intEnv(item.key, item.def, item.minVal)
		if err != nil {
			return nil, err
		}
		*item.target = v
	}

	durations := []struct {
		key    string
		def    int
		unit   time.Duration
		target *time.Duration
	}{
		{"MATCHING_INTERVAL_MINUTES", 5, time.Minute, &config.MatchingInterval},
		{"MATCH_MAX_DURATION_MINUTES", 10, time.Minute, &config.MatchMaxDuration},
		{"REQUEST_FLEXIBILITY_MINUTES", 60, time.Minute, &config.RequestFlexibility},
		{"REMINDER_INTERVAL_MINUTES", 1, time.Minute, &config.ReminderInterval},
		{"MINUTES_BEFORE_RIDE_START", 30, time.Minute, &config.MinutesBeforeRideStart},
		{"COLLABORATOR_TIMEOUT_SECONDS", 10, time.Second, &config.CollaboratorTimeout},
		{"CYCLE_TIMEOUT_SECONDS", 120, time.Second, &config.CycleTimeout},
		{"CONTEXT_TTL_MINUTES", 60, time.Minute, &config.ContextTTL},
	}
	for _, item := range durations {
		v, err := intEnv(item.key, item.def, 1)
		if err != nil {
			return nil, err
		}
		*item.target = time.Duration(v) * item.unit
	}

	// Validation
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is empty")
	}

	return config, nil
}

func intEnv(key string, def, minVal int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid format: %v", key, err)
	}
	if parsed < minVal {
		return 0, fmt.Errorf("%s must be >= %d", key, minVal)
	}
	return parsed, nil
}
