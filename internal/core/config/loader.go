package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	var cfg AppConfig
	cfg.applyDefaults()
	return &cfg
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 9090
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMemory
	}
	if c.Storage.Path == "" {
		switch c.Storage.Driver {
		case DriverFile:
			c.Storage.Path = "./data"
		case DriverSQLite:
			c.Storage.Path = "./supervisor.db"
		}
	}

	r := &c.Recovery
	if r.MaxRetries == 0 {
		r.MaxRetries = 3
	}
	if r.RetryDelays == nil {
		r.RetryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	}
	if r.MaxSnapshots == 0 {
		r.MaxSnapshots = 50
	}
	if r.RollbackCandidates == 0 {
		r.RollbackCandidates = 3
	}
	if r.RollbackAttempts == 0 {
		r.RollbackAttempts = 1
	}
	if r.LoopWindowSize == 0 {
		r.LoopWindowSize = 10
	}
	if r.LoopRepetitionThreshold == 0 {
		r.LoopRepetitionThreshold = 3
	}
}

// Validate rejects limits that would disable the engine's bounds.
func (c *AppConfig) Validate() error {
	var errs []error
	r := c.Recovery

	if r.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("recovery.max_retries must be >= 1, got %d", r.MaxRetries))
	}
	for i, d := range r.RetryDelays {
		if d < 0 {
			errs = append(errs, fmt.Errorf("recovery.retry_delays[%d] must not be negative", i))
		}
	}
	if r.MaxSnapshots < 1 {
		errs = append(errs, fmt.Errorf("recovery.max_snapshots must be >= 1, got %d", r.MaxSnapshots))
	}
	if r.RollbackCandidates < 1 {
		errs = append(errs, fmt.Errorf("recovery.rollback_candidates must be >= 1, got %d", r.RollbackCandidates))
	}
	if r.RollbackAttempts < 1 {
		errs = append(errs, fmt.Errorf("recovery.rollback_attempts must be >= 1, got %d", r.RollbackAttempts))
	}
	if r.LoopWindowSize < 1 {
		errs = append(errs, fmt.Errorf("recovery.loop_window_size must be >= 1, got %d", r.LoopWindowSize))
	}
	if r.LoopRepetitionThreshold < 1 {
		errs = append(errs, fmt.Errorf("recovery.loop_repetition_threshold must be >= 1, got %d", r.LoopRepetitionThreshold))
	}
	if r.TicketAutoResolveAfter < 0 {
		errs = append(errs, errors.New("recovery.ticket_auto_resolve_after must not be negative"))
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverFile, DriverSQLite:
	case DriverPostgres:
		if c.Storage.Database.URL == "" {
			errs = append(errs, errors.New("storage.database.url is required for the postgres driver"))
		}
	case DriverRedis:
		if c.Storage.Redis.URL == "" {
			errs = append(errs, errors.New("storage.redis.url is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	if c.Notify.RedisChannel != "" && c.Storage.Redis.URL == "" {
		errs = append(errs, errors.New("notify.redis_channel requires storage.redis.url"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
