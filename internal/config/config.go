package config

import (
	"time"
)

// Collaborator modes.
const (
	ModeTemplate = "template"
	ModeHTTP     = "http"
)

// Config is the complete snc configuration. It is passed explicitly to the
// components that need it.
type Config struct {
	Database       string             `yaml:"database" json:"database" validate:"required"`
	Workers        int                `yaml:"workers" json:"workers" validate:"min=1,max=256"`
	Parallel       bool               `yaml:"parallel" json:"parallel"`
	Validate       bool               `yaml:"validate" json:"validate"`
	RepairAttempts int                `yaml:"repair_attempts" json:"repair_attempts" validate:"min=0,max=10"`
	Retry          RetryConfig        `yaml:"retry" json:"retry"`
	Collaborator   CollaboratorConfig `yaml:"collaborator" json:"collaborator"`
	Log            LogConfig          `yaml:"log" json:"log"`
	MetricsFile    string             `yaml:"metrics_file" json:"metrics_file"`
}

// RetryConfig bounds collaborator retries within one task.
type RetryConfig struct {
	MaxAttempts     int      `yaml:"max_attempts" json:"max_attempts" validate:"min=1,max=20"`
	InitialInterval Duration `yaml:"initial_interval" json:"initial_interval"`
	MaxInterval     Duration `yaml:"max_interval" json:"max_interval" validate:"gtefield=InitialInterval"`
}

// CollaboratorConfig selects and configures the code collaborators.
type CollaboratorConfig struct {
	Mode            string        `yaml:"mode" json:"mode" validate:"oneof=template http"`
	Endpoint        string        `yaml:"endpoint" json:"endpoint" validate:"required_if=Mode http"`
	Timeout         Duration      `yaml:"timeout" json:"timeout" validate:"gt=0"`
	ValidateCommand []string      `yaml:"validate_command" json:"validate_command"`
	Breaker         BreakerConfig `yaml:"breaker" json:"breaker"`
}

// BreakerConfig configures the circuit breaker around remote collaborators.
type BreakerConfig struct {
	MaxRequests  uint32   `yaml:"max_requests" json:"max_requests" validate:"min=1"`
	Interval     Duration `yaml:"interval" json:"interval"`
	Timeout      Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	FailureRatio float64  `yaml:"failure_ratio" json:"failure_ratio" validate:"gt=0,lte=1"`
	MinRequests  uint32   `yaml:"min_requests" json:"min_requests" validate:"min=1"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=json console"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database:       "snc.db",
		Workers:        4,
		Parallel:       true,
		Validate:       true,
		RepairAttempts: 0,
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: Duration(200 * time.Millisecond),
			MaxInterval:     Duration(2 * time.Second),
		},
		Collaborator: CollaboratorConfig{
			Mode:    ModeTemplate,
			Timeout: Duration(30 * time.Second),
			Breaker: BreakerConfig{
				MaxRequests:  5,
				Interval:     Duration(30 * time.Second),
				Timeout:      Duration(60 * time.Second),
				FailureRatio: 0.6,
				MinRequests:  5,
			},
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}
