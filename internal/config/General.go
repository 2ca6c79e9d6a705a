package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// LogLevel is the zerolog level name ("debug", "info", ...).
	LogLevel string

	// WebPort is the port the read-only dashboard API listens on.
	WebPort string

	// CrankInterval is how often the engine attempts a settlement crank.
	CrankInterval time.Duration

	// FeedURL is the websocket endpoint supplying volatility samples.
	// Optional: an empty value runs the engine without a live feed.
	FeedURL string

	// DatabaseURL is the postgres connection string. Optional: an empty
	// value runs the engine without persistence.
	DatabaseURL string
)

// Parameter-set identity used when loading and saving engine parameters.
const (
	DefaultParamsName    = "default_aev_engine"
	DefaultParamsVersion = 1
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	LogLevel, err = getEnv("AEV_LOG_LEVEL")
	if err != nil {
		return err
	}

	WebPort, err = getEnv("AEV_WEB_PORT")
	if err != nil {
		return err
	}

	intervalSeconds, err := getEnvAsUint64("AEV_CRANK_INTERVAL_SECONDS")
	if err != nil {
		return err
	}
	if intervalSeconds == 0 {
		return errors.New("environment variable AEV_CRANK_INTERVAL_SECONDS must be positive")
	}
	CrankInterval = time.Duration(intervalSeconds) * time.Second

	FeedURL = os.Getenv("AEV_FEED_URL")
	DatabaseURL = os.Getenv("DATABASE_URL")

	log.Debug().
		Str("LogLevel", LogLevel).
		Str("WebPort", WebPort).
		Dur("CrankInterval", CrankInterval).
		Bool("FeedConfigured", FeedURL != "").
		Bool("DatabaseConfigured", DatabaseURL != "").
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}
