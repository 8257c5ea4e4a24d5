// Package config reads battle-client settings from the environment. main
// loads .env via godotenv before calling Load, so local overrides work
// without exporting anything.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is everything the binaries need.
type Config struct {
	ServerWSURL   string // e.g. ws://localhost:8000
	ServerHTTPURL string // e.g. http://localhost:8000

	MatchID  int
	PlayerID int

	RoundDurationSec   int
	InactivityLimitSec int
	RoundEndSummarySec int
	TickIntervalMS     int
	FallbackDeadlineMS int

	ReconnectBaseDelayMS int
	ReconnectMaxAttempts int
}

// Load reads the environment, applying production defaults.
func Load() (Config, error) {
	cfg := Config{
		ServerWSURL:          getEnv("BATTLE_WS_URL", "ws://localhost:8000"),
		ServerHTTPURL:        getEnv("BATTLE_HTTP_URL", "http://localhost:8000"),
		MatchID:              getEnvAsInt("BATTLE_MATCH_ID", 0),
		PlayerID:             getEnvAsInt("BATTLE_PLAYER_ID", 0),
		RoundDurationSec:     getEnvAsInt("BATTLE_ROUND_DURATION_SEC", 60),
		InactivityLimitSec:   getEnvAsInt("BATTLE_INACTIVITY_SEC", 10),
		RoundEndSummarySec:   getEnvAsInt("BATTLE_ROUND_END_SUMMARY_SEC", 5),
		TickIntervalMS:       getEnvAsInt("BATTLE_TICK_MS", 100),
		FallbackDeadlineMS:   getEnvAsInt("BATTLE_FALLBACK_DEADLINE_MS", 3000),
		ReconnectBaseDelayMS: getEnvAsInt("BATTLE_RECONNECT_BASE_MS", 1000),
		ReconnectMaxAttempts: getEnvAsInt("BATTLE_RECONNECT_ATTEMPTS", 5),
	}
	if cfg.RoundDurationSec <= 0 || cfg.InactivityLimitSec <= 0 {
		return Config{}, fmt.Errorf("round duration and inactivity limit must be positive")
	}
	return cfg, nil
}

// RoundDuration is the live-phase length for rep-counted exercises.
func (c Config) RoundDuration() time.Duration {
	return time.Duration(c.RoundDurationSec) * time.Second
}

// InactivityLimit is the no-rep window that ends a live round.
func (c Config) InactivityLimit() time.Duration {
	return time.Duration(c.InactivityLimitSec) * time.Second
}

// RoundEndSummary is how long the round outcome stays on screen before the
// next round is requested.
func (c Config) RoundEndSummary() time.Duration {
	return time.Duration(c.RoundEndSummarySec) * time.Second
}

// TickInterval is the state machine tick cadence.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// FallbackDeadline is how long to wait for GAME_STATE before the REST
// fallback fires.
func (c Config) FallbackDeadline() time.Duration {
	return time.Duration(c.FallbackDeadlineMS) * time.Millisecond
}

// ReconnectBaseDelay is the unit delay for linear reconnect backoff.
func (c Config) ReconnectBaseDelay() time.Duration {
	return time.Duration(c.ReconnectBaseDelayMS) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
