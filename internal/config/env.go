package config

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Environment variables that override the file.
const (
	EnvSeed      = "BILAYER_SEED"
	EnvWorkers   = "BILAYER_WORKERS"
	EnvLogLevel  = "BILAYER_LOG_LEVEL"
	EnvOutputDir = "BILAYER_OUTPUT_DIR"
	EnvAgeTable  = "BILAYER_AGE_TABLE"
)

// applyEnv loads .env if present and applies BILAYER_* overrides.
func applyEnv(cfg *Config) error {
	_ = godotenv.Load()

	if v := getEnv(EnvSeed, ""); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvSeed, v, err)
		}
		cfg.Seed = seed
	}
	cfg.Workers = getEnvAsInt(EnvWorkers, cfg.Workers)
	cfg.LogLevel = getEnv(EnvLogLevel, cfg.LogLevel)
	cfg.OutputDir = getEnv(EnvOutputDir, cfg.OutputDir)
	cfg.AgeTable = getEnv(EnvAgeTable, cfg.AgeTable)
	return nil
}

// DefaultWorkers returns the logical CPU count.
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

// ParseLogLevel maps a config string to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
