package config

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfgs     []ValidatableConfig
		wantErrs int
	}{
		{
			name:     "no configs",
			cfgs:     []ValidatableConfig{},
			wantErrs: 0,
		},
		{
			name:     "one valid config",
			cfgs:     []ValidatableConfig{NewEngine()},
			wantErrs: 0,
		},
		{
			name:     "one invalid config",
			cfgs:     []ValidatableConfig{&Engine{Workers: 0, TTL: time.Second, ReapInterval: time.Second}},
			wantErrs: 1,
		},
		{
			name: "multiple configs with errors",
			cfgs: []ValidatableConfig{
				&Engine{Workers: 1, TTL: 0, ReapInterval: time.Second},
				&Engine{},
			},
			wantErrs: 4,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			errs := Validate(tc.cfgs...)
			if len(errs) != tc.wantErrs {
				t.Errorf("Validate() returned %d errors, want %d: %v", len(errs), tc.wantErrs, errs)
			}
		})
	}
}
