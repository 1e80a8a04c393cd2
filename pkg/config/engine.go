package config

import (
	"fmt"
	"time"
)

// Defaults for the engine.
const (
	DefaultWorkers      = 600
	DefaultTTL          = 30 * time.Second
	DefaultReapInterval = 60 * time.Second
)

// Engine contains the configuration of the connection engine.
type Engine struct {
	Workers      int
	TTL          time.Duration
	ReapInterval time.Duration
	Verbose      bool

	// TrafficLog is the path of a file receiving the raw bytes of every
	// connection. Empty disables traffic logging.
	TrafficLog string

	Deps *Dependencies
}

// NewEngine returns an engine configuration populated with defaults.
func NewEngine() *Engine {
	return &Engine{
		Workers:      DefaultWorkers,
		TTL:          DefaultTTL,
		ReapInterval: DefaultReapInterval,
	}
}

// Validate checks the engine configuration.
func (c *Engine) Validate() []error {
	var errors []error

	if c.Workers < 1 {
		errors = append(errors, fmt.Errorf("workers: %d must be at least 1", c.Workers))
	}

	if c.TTL <= 0 {
		errors = append(errors, fmt.Errorf("ttl: %s must be positive", c.TTL))
	}

	if c.ReapInterval <= 0 {
		errors = append(errors, fmt.Errorf("reap interval: %s must be positive", c.ReapInterval))
	}

	return errors
}
