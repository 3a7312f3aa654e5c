package appconf

import (
	"fmt"
	"strings"
	"time"
)

type Environment int

const (
	Development Environment = iota
	Test
	Production
)

func (e Environment) String() string {
	switch e {
	case Development:
		return "development"
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return fmt.Sprintf("environment(%d)", int(e))
	}
}

// ParseEnvironment accepts the long and short spellings used in config files.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "development", "dev", "":
		return Development, nil
	case "test":
		return Test, nil
	case "production", "prod":
		return Production, nil
	default:
		return Development, fmt.Errorf("unknown environment %q", s)
	}
}

// Artifact store backends.
const (
	ArtifactBackendFile  = "file"
	ArtifactBackendRedis = "redis"
	ArtifactBackendNATS  = "nats"
)

// Config holds the runtime configuration of the API server and its engine.
type Config struct {
	Port      int
	Env       Environment
	ApiKeys   []string
	Verbose   bool
	RateLimit int
	LogLevel  string

	// WriteTimeout bounds how long the server may take to write a response.
	// RequestTimeout is the deadline of handlers that call the routing and
	// elevation services; it must leave room to write the error before
	// WriteTimeout cuts the connection. A zero RequestTimeout leaves those
	// handlers unbounded.
	WriteTimeout   time.Duration
	RequestTimeout time.Duration

	// DBDriver is one of sqlite3, sqlite or pgx. DBPath is a file path for the
	// SQLite drivers and a DSN for pgx.
	DBDriver string
	DBPath   string
	GTFSPath string

	RoutingURL                string
	ElevationURL              string
	ResolverTimeout           time.Duration
	ResolverMaxAttempts       int
	ResolverBaseBackoff       time.Duration
	ResolverRequestsPerSecond int

	ArtifactBackend string
	ArtifactDir     string
	ArtifactBucket  string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// NatsURL enables domain events (and the nats artifact backend) when set.
	NatsURL       string
	EventsSubject string

	StatsWorkers      int
	AuxiliaryCalendar string
	AuxiliaryRouteID  string

	// Depots are registered at startup. Their stops must exist in the feed.
	Depots []Depot
}

type Depot struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	StopID string `json:"stop-id"`
}

// Default returns a configuration suitable for local development.
func Default() Config {
	return Config{
		Port:                      4000,
		Env:                       Development,
		RateLimit:                 100,
		LogLevel:                  "info",
		WriteTimeout:              10 * time.Second,
		RequestTimeout:            8 * time.Second,
		DBDriver:                  "sqlite3",
		DBPath:                    "shiftplanner.db",
		RoutingURL:                "http://localhost:5000",
		ElevationURL:              "http://localhost:8080",
		ResolverTimeout:           10 * time.Second,
		ResolverMaxAttempts:       3,
		ResolverBaseBackoff:       200 * time.Millisecond,
		ResolverRequestsPerSecond: 10,
		ArtifactBackend:           ArtifactBackendFile,
		ArtifactDir:               "artifacts",
		ArtifactBucket:            "profiles",
		EventsSubject:             "shiftplanner",
		StatsWorkers:              4,
		AuxiliaryCalendar:         "auxiliary",
		AuxiliaryRouteID:          "auxiliary",
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate-limit must not be negative, got %d", c.RateLimit)
	}
	if c.RequestTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("request-timeout and write-timeout must not be negative")
	}
	if c.WriteTimeout > 0 && c.RequestTimeout >= c.WriteTimeout {
		return fmt.Errorf("request-timeout (%s) must be shorter than write-timeout (%s)", c.RequestTimeout, c.WriteTimeout)
	}
	switch c.DBDriver {
	case "sqlite3", "sqlite", "pgx":
	default:
		return fmt.Errorf("unsupported db-driver %q", c.DBDriver)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db-path is required")
	}
	if c.Env == Test && c.DBDriver != "pgx" && c.DBPath != ":memory:" {
		return fmt.Errorf("test environment must use an in-memory database, got %s", c.DBPath)
	}
	switch c.ArtifactBackend {
	case ArtifactBackendFile:
		if c.ArtifactDir == "" {
			return fmt.Errorf("artifact-dir is required for the file backend")
		}
	case ArtifactBackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis-addr is required for the redis backend")
		}
	case ArtifactBackendNATS:
		if c.NatsURL == "" {
			return fmt.Errorf("nats-url is required for the nats backend")
		}
	default:
		return fmt.Errorf("unsupported artifact-backend %q", c.ArtifactBackend)
	}
	if c.ResolverMaxAttempts < 1 {
		return fmt.Errorf("resolver-max-attempts must be at least 1")
	}
	if c.StatsWorkers < 1 {
		return fmt.Errorf("stats-workers must be at least 1")
	}
	if strings.TrimSpace(c.AuxiliaryCalendar) == "" {
		return fmt.Errorf("auxiliary-calendar is required")
	}
	seen := make(map[string]bool, len(c.Depots))
	for i, d := range c.Depots {
		if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.StopID) == "" {
			return fmt.Errorf("depots[%d]: id and stop-id are required", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("depots[%d]: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}
