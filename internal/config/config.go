package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ShardModeLocal  = "local"
	ShardModeRemote = "remote"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	RedisURL      string
	RedisPassword string
	RedisDB       int

	RoomTTL         time.Duration
	FinishedRoomTTL time.Duration
	CleanupInterval time.Duration

	TurnTimeLimit    time.Duration
	EventInterval    time.Duration
	EventProbability float64
	EventMinTurns    int
	ReconnectGrace   time.Duration

	ShardMode          string
	ColumnNodeURLs     []string
	ShardRetryAttempts int
	ShardRetryBase     time.Duration
	ShardTimeout       time.Duration

	// Column node settings, read by cmd/column.
	ColumnIndex int
	ColumnPort  string
}

var AppConfig *Config

var defaults = map[string]any{
	"PORT":                      "8080",
	"ALLOWED_ORIGINS":           "http://localhost:5173",
	"LOG_LEVEL":                 "info",
	"REDIS_URL":                 "",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"ROOM_TTL_MINUTES":          24 * 60,
	"FINISHED_ROOM_TTL_MINUTES": 60,
	"CLEANUP_INTERVAL_MINUTES":  10,
	"TURN_TIME_LIMIT_SECONDS":   30,
	"EVENT_INTERVAL_SECONDS":    15,
	"EVENT_PROBABILITY":         0.3,
	"EVENT_MIN_TURNS":           3,
	"RECONNECT_GRACE_SECONDS":   30,
	"SHARD_MODE":                ShardModeLocal,
	"COLUMN_NODE_URLS":          "",
	"SHARD_RETRY_ATTEMPTS":      3,
	"SHARD_RETRY_BASE_MS":       50,
	"SHARD_TIMEOUT_MS":          2000,
	"COLUMN_INDEX":              0,
	"COLUMN_PORT":               "8100",
}

// LoadConfig reads the environment (already populated from .env by the
// caller) on top of the defaults above.
func LoadConfig() *Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	AppConfig = &Config{
		Port:           v.GetString("PORT"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		LogLevel:       strings.ToLower(v.GetString("LOG_LEVEL")),

		RedisURL:      v.GetString("REDIS_URL"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		RoomTTL:         time.Duration(v.GetInt("ROOM_TTL_MINUTES")) * time.Minute,
		FinishedRoomTTL: time.Duration(v.GetInt("FINISHED_ROOM_TTL_MINUTES")) * time.Minute,
		CleanupInterval: time.Duration(v.GetInt("CLEANUP_INTERVAL_MINUTES")) * time.Minute,

		TurnTimeLimit:    time.Duration(v.GetInt("TURN_TIME_LIMIT_SECONDS")) * time.Second,
		EventInterval:    time.Duration(v.GetInt("EVENT_INTERVAL_SECONDS")) * time.Second,
		EventProbability: v.GetFloat64("EVENT_PROBABILITY"),
		EventMinTurns:    v.GetInt("EVENT_MIN_TURNS"),
		ReconnectGrace:   time.Duration(v.GetInt("RECONNECT_GRACE_SECONDS")) * time.Second,

		ShardMode:          strings.ToLower(v.GetString("SHARD_MODE")),
		ColumnNodeURLs:     splitList(v.GetString("COLUMN_NODE_URLS")),
		ShardRetryAttempts: v.GetInt("SHARD_RETRY_ATTEMPTS"),
		ShardRetryBase:     time.Duration(v.GetInt("SHARD_RETRY_BASE_MS")) * time.Millisecond,
		ShardTimeout:       time.Duration(v.GetInt("SHARD_TIMEOUT_MS")) * time.Millisecond,

		ColumnIndex: v.GetInt("COLUMN_INDEX"),
		ColumnPort:  v.GetString("COLUMN_PORT"),
	}
	return AppConfig
}

// Validate reports settings the coordinator cannot run with.
func (c *Config) Validate() error {
	switch c.ShardMode {
	case ShardModeLocal:
	case ShardModeRemote:
		if len(c.ColumnNodeURLs) != 7 {
			return fmt.Errorf("SHARD_MODE=remote needs 7 COLUMN_NODE_URLS, got %d", len(c.ColumnNodeURLs))
		}
	default:
		return fmt.Errorf("unknown SHARD_MODE %q", c.ShardMode)
	}
	if c.EventProbability < 0 || c.EventProbability > 1 {
		return fmt.Errorf("EVENT_PROBABILITY must be within [0,1], got %v", c.EventProbability)
	}
	if c.TurnTimeLimit <= 0 {
		return fmt.Errorf("TURN_TIME_LIMIT_SECONDS must be positive")
	}
	if c.ColumnIndex < 0 || c.ColumnIndex > 6 {
		return fmt.Errorf("COLUMN_INDEX must be within [0,6], got %d", c.ColumnIndex)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
