package config

import (
	"time"

	redisclient "github.com/vietddude/supervisor/internal/infra/redis"
	"github.com/vietddude/supervisor/internal/infra/storage/postgres"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// StorageConfig selects and configures the durable backend.
type StorageConfig struct {
	Driver   string             `yaml:"driver"`
	Path     string             `yaml:"path"` // file dir or sqlite db path
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
}

// RecoveryConfig holds the recovery policy.
type RecoveryConfig struct {
	MaxRetries              int             `yaml:"max_retries"`
	RetryDelays             []time.Duration `yaml:"retry_delays"`
	MaxSnapshots            int             `yaml:"max_snapshots"`
	RollbackCandidates      int             `yaml:"rollback_candidates"`
	RollbackAttempts        int             `yaml:"rollback_attempts"`
	LoopDetectionEnabled    *bool           `yaml:"loop_detection_enabled"`
	LoopWindowSize          int             `yaml:"loop_window_size"`
	LoopRepetitionThreshold int             `yaml:"loop_repetition_threshold"`
	EscalationEnabled       *bool           `yaml:"escalation_enabled"`
	TicketAutoResolveAfter  time.Duration   `yaml:"ticket_auto_resolve_after"` // 0 = disabled
}

// LoopDetection reports whether loop detection is on (default true).
func (r RecoveryConfig) LoopDetection() bool {
	return r.LoopDetectionEnabled == nil || *r.LoopDetectionEnabled
}

// Escalation reports whether escalation is on (default true).
func (r RecoveryConfig) Escalation() bool {
	return r.EscalationEnabled == nil || *r.EscalationEnabled
}

// NotifyConfig selects notification sinks for escalated incidents.
type NotifyConfig struct {
	Log          *bool  `yaml:"log"`
	RedisChannel string `yaml:"redis_channel"`
}

// LogEnabled reports whether the log sink is on (default true).
func (n NotifyConfig) LogEnabled() bool {
	return n.Log == nil || *n.Log
}
