package config

import (
	"testing"
	"time"
)

func TestNewEngine(t *testing.T) {
	t.Parallel()

	cfg := NewEngine()
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d; want %d", cfg.Workers, DefaultWorkers)
	}
	if cfg.TTL != DefaultTTL {
		t.Errorf("TTL = %v; want %v", cfg.TTL, DefaultTTL)
	}
	if cfg.ReapInterval != DefaultReapInterval {
		t.Errorf("ReapInterval = %v; want %v", cfg.ReapInterval, DefaultReapInterval)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("defaults should validate, got %v", errs)
	}
}

func TestEngine_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      Engine
		wantErrs int
	}{
		{name: "valid", cfg: Engine{Workers: 4, TTL: time.Second, ReapInterval: time.Second}, wantErrs: 0},
		{name: "no workers", cfg: Engine{Workers: 0, TTL: time.Second, ReapInterval: time.Second}, wantErrs: 1},
		{name: "negative ttl", cfg: Engine{Workers: 1, TTL: -time.Second, ReapInterval: time.Second}, wantErrs: 1},
		{name: "zero interval", cfg: Engine{Workers: 1, TTL: time.Second}, wantErrs: 1},
		{name: "all wrong", cfg: Engine{}, wantErrs: 3},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if errs := tc.cfg.Validate(); len(errs) != tc.wantErrs {
				t.Errorf("Validate() = %v; want %d errors", errs, tc.wantErrs)
			}
		})
	}
}
