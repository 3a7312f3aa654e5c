package appconf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays SHIFTPLANNER_* environment variables on cfg.
func ApplyEnv(cfg Config) (Config, error) {
	var err error

	if v := os.Getenv("SHIFTPLANNER_ENV"); v != "" {
		if cfg.Env, err = ParseEnvironment(v); err != nil {
			return cfg, err
		}
	}
	if cfg.Port, err = getIntEnv("SHIFTPLANNER_PORT", cfg.Port); err != nil {
		return cfg, err
	}
	if cfg.RateLimit, err = getIntEnv("SHIFTPLANNER_RATE_LIMIT", cfg.RateLimit); err != nil {
		return cfg, err
	}
	cfg.ApiKeys = getCSVEnv("SHIFTPLANNER_API_KEYS", cfg.ApiKeys)
	cfg.LogLevel = getEnv("SHIFTPLANNER_LOG_LEVEL", cfg.LogLevel)
	if cfg.WriteTimeout, err = getDurationEnv("SHIFTPLANNER_WRITE_TIMEOUT", cfg.WriteTimeout); err != nil {
		return cfg, err
	}
	if cfg.RequestTimeout, err = getDurationEnv("SHIFTPLANNER_REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return cfg, err
	}

	cfg.DBDriver = getEnv("SHIFTPLANNER_DB_DRIVER", cfg.DBDriver)
	cfg.DBPath = getEnv("SHIFTPLANNER_DB_PATH", getEnv("DATABASE_URL", cfg.DBPath))
	cfg.GTFSPath = getEnv("SHIFTPLANNER_GTFS_PATH", cfg.GTFSPath)

	cfg.RoutingURL = getEnv("SHIFTPLANNER_ROUTING_URL", cfg.RoutingURL)
	cfg.ElevationURL = getEnv("SHIFTPLANNER_ELEVATION_URL", cfg.ElevationURL)
	if cfg.ResolverTimeout, err = getDurationEnv("SHIFTPLANNER_RESOLVER_TIMEOUT", cfg.ResolverTimeout); err != nil {
		return cfg, err
	}
	if cfg.ResolverBaseBackoff, err = getDurationEnv("SHIFTPLANNER_RESOLVER_BACKOFF", cfg.ResolverBaseBackoff); err != nil {
		return cfg, err
	}
	if cfg.ResolverMaxAttempts, err = getIntEnv("SHIFTPLANNER_RESOLVER_MAX_ATTEMPTS", cfg.ResolverMaxAttempts); err != nil {
		return cfg, err
	}

	cfg.ArtifactBackend = getEnv("SHIFTPLANNER_ARTIFACT_BACKEND", cfg.ArtifactBackend)
	cfg.ArtifactDir = getEnv("SHIFTPLANNER_ARTIFACT_DIR", cfg.ArtifactDir)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.NatsURL = getEnv("NATS_URL", cfg.NatsURL)

	if cfg.StatsWorkers, err = getIntEnv("SHIFTPLANNER_STATS_WORKERS", cfg.StatsWorkers); err != nil {
		return cfg, err
	}
	if cfg.Verbose, err = getBoolEnv("SHIFTPLANNER_VERBOSE", cfg.Verbose); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %q", key, v)
	}
	return i, nil
}

func getBoolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %q", key, v)
	}
	return b, nil
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func getCSVEnv(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
