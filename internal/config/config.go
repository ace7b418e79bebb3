package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/DoyleJ11/golf-pickem/internal/engine"
	"github.com/DoyleJ11/golf-pickem/internal/store"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

const (
	StoreMemory = "memory"
	StoreGorm   = "gorm"
)

type Config struct {
	Port          string
	Env           string
	LogLevel      zapcore.Level
	Store         string
	DBDriver      string
	DatabaseURL   string
	Rules         engine.Rules
	SubmitRetries int
}

func (c Config) Addr() string { return ":" + c.Port }

func (c Config) IsDevelopment() bool { return c.Env == "development" }

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read %s: %w", f, err)
		}
	}

	cfg := Config{
		Port:        getenv("PORT", "8080"),
		Env:         getenv("APP_ENV", "development"),
		Store:       getenv("STORE", StoreMemory),
		DBDriver:    getenv("DB_DRIVER", store.DriverSQLite),
		DatabaseURL: getenv("DATABASE_URL", "golf-pickem.db"),
	}

	level, err := zapcore.ParseLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	switch cfg.Store {
	case StoreMemory, StoreGorm:
	default:
		return Config{}, fmt.Errorf("STORE must be %q or %q, got %q", StoreMemory, StoreGorm, cfg.Store)
	}
	switch cfg.DBDriver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", store.DriverSQLite, store.DriverPostgres, cfg.DBDriver)
	}

	rosterCap, err := getint("ROSTER_CAP", 4)
	if err != nil {
		return Config{}, err
	}
	if rosterCap <= 0 {
		return Config{}, fmt.Errorf("ROSTER_CAP must be positive, got %d", rosterCap)
	}
	format, err := engine.ParseFormat(getenv("DRAFT_FORMAT", string(engine.FormatRoundRobin)))
	if err != nil {
		return Config{}, fmt.Errorf("DRAFT_FORMAT: %w", err)
	}
	cfg.Rules = engine.Rules{RosterCap: rosterCap, Format: format}

	cfg.SubmitRetries, err = getint("SUBMIT_RETRIES", 1)
	if err != nil {
		return Config{}, err
	}
	if cfg.SubmitRetries < 0 {
		return Config{}, fmt.Errorf("SUBMIT_RETRIES must not be negative, got %d", cfg.SubmitRetries)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
