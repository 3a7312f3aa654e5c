package appconf

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// JSONConfig mirrors the on-disk config file. Zero values fall back to Default().
type JSONConfig struct {
	Port      int      `json:"port"`
	Env       string   `json:"env"`
	ApiKeys   []string `json:"api-keys"`
	Verbose   bool     `json:"verbose"`
	RateLimit *int     `json:"rate-limit"`
	LogLevel  string   `json:"log-level"`

	WriteTimeout   string `json:"write-timeout"`
	RequestTimeout string `json:"request-timeout"`

	DBDriver string `json:"db-driver"`
	DBPath   string `json:"db-path"`
	GTFSPath string `json:"gtfs-path"`

	Resolver struct {
		RoutingURL        string `json:"routing-url"`
		ElevationURL      string `json:"elevation-url"`
		Timeout           string `json:"timeout"`
		MaxAttempts       int    `json:"max-attempts"`
		BaseBackoff       string `json:"base-backoff"`
		RequestsPerSecond int    `json:"requests-per-second"`
	} `json:"resolver"`

	Artifacts struct {
		Backend       string `json:"backend"`
		Dir           string `json:"dir"`
		Bucket        string `json:"bucket"`
		RedisAddr     string `json:"redis-addr"`
		RedisPassword string `json:"redis-password"`
		RedisDB       int    `json:"redis-db"`
	} `json:"artifacts"`

	NatsURL       string `json:"nats-url"`
	EventsSubject string `json:"events-subject"`

	StatsWorkers      int    `json:"stats-workers"`
	AuxiliaryCalendar string `json:"auxiliary-calendar"`
	AuxiliaryRouteID  string `json:"auxiliary-route-id"`

	Depots []Depot `json:"depots"`
}

// LoadFromFile reads and validates a JSON config file.
func LoadFromFile(path string) (*JSONConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg JSONConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}

	if _, err := cfg.ToAppConfigChecked(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ToAppConfig converts the file representation, ignoring conversion errors
// already rejected by LoadFromFile.
func (j *JSONConfig) ToAppConfig() Config {
	cfg, _ := j.toConfig()
	return cfg
}

// ToAppConfigChecked converts and validates the file representation.
func (j *JSONConfig) ToAppConfigChecked() (Config, error) {
	cfg, err := j.toConfig()
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (j *JSONConfig) toConfig() (Config, error) {
	cfg := Default()

	env, err := ParseEnvironment(j.Env)
	if err != nil {
		return cfg, err
	}
	cfg.Env = env
	cfg.Verbose = j.Verbose
	if j.ApiKeys != nil {
		cfg.ApiKeys = j.ApiKeys
	}

	setInt(&cfg.Port, j.Port)
	if j.RateLimit != nil {
		cfg.RateLimit = *j.RateLimit
	}
	setString(&cfg.LogLevel, j.LogLevel)
	if err := setDuration(&cfg.WriteTimeout, j.WriteTimeout); err != nil {
		return cfg, fmt.Errorf("write-timeout: %w", err)
	}
	if err := setDuration(&cfg.RequestTimeout, j.RequestTimeout); err != nil {
		return cfg, fmt.Errorf("request-timeout: %w", err)
	}
	setString(&cfg.DBDriver, j.DBDriver)
	setString(&cfg.DBPath, j.DBPath)
	setString(&cfg.GTFSPath, j.GTFSPath)

	setString(&cfg.RoutingURL, j.Resolver.RoutingURL)
	setString(&cfg.ElevationURL, j.Resolver.ElevationURL)
	if err := setDuration(&cfg.ResolverTimeout, j.Resolver.Timeout); err != nil {
		return cfg, fmt.Errorf("resolver.timeout: %w", err)
	}
	if err := setDuration(&cfg.ResolverBaseBackoff, j.Resolver.BaseBackoff); err != nil {
		return cfg, fmt.Errorf("resolver.base-backoff: %w", err)
	}
	setInt(&cfg.ResolverMaxAttempts, j.Resolver.MaxAttempts)
	setInt(&cfg.ResolverRequestsPerSecond, j.Resolver.RequestsPerSecond)

	setString(&cfg.ArtifactBackend, j.Artifacts.Backend)
	setString(&cfg.ArtifactDir, j.Artifacts.Dir)
	setString(&cfg.ArtifactBucket, j.Artifacts.Bucket)
	setString(&cfg.RedisAddr, j.Artifacts.RedisAddr)
	setString(&cfg.RedisPassword, j.Artifacts.RedisPassword)
	setInt(&cfg.RedisDB, j.Artifacts.RedisDB)

	setString(&cfg.NatsURL, j.NatsURL)
	setString(&cfg.EventsSubject, j.EventsSubject)
	setInt(&cfg.StatsWorkers, j.StatsWorkers)
	setString(&cfg.AuxiliaryCalendar, j.AuxiliaryCalendar)
	setString(&cfg.AuxiliaryRouteID, j.AuxiliaryRouteID)
	cfg.Depots = j.Depots

	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
