package config

import (
	"errors"
	"io"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("default config is valid", func(t *testing.T) {
		config := Default()
		if err := config.Validate(); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("rejects inconsistent values", func(t *testing.T) {
		mutations := map[string]func(config *Config){
			"no servers":                     func(config *Config) { config.NbServer = 0 },
			"negative clients":               func(config *Config) { config.NbClient = -1 },
			"inverted election bounds":       func(config *Config) { config.ElectionTimeoutMax = config.ElectionTimeoutMin - 1 },
			"heartbeat above election":       func(config *Config) { config.HeartbeatTimeoutMax = config.ElectionTimeoutMin },
			"non positive heartbeat timeout": func(config *Config) { config.HeartbeatTimeoutMin = 0 },
			"negative latency":               func(config *Config) { config.NetworkLatency = -5 },
		}

		for name, mutate := range mutations {
			t.Run(name, func(t *testing.T) {
				config := Default()
				mutate(&config)
				if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("parses positional arguments and flags", func(t *testing.T) {
		config, err := ParseArgs("raft-sim", []string{"-seed", "7", "-latency", "20", "5", "2"}, io.Discard)
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}

		if config.NbServer != 5 || config.NbClient != 2 {
			t.Errorf("expected 5 servers and 2 clients, got %d and %d", config.NbServer, config.NbClient)
		}
		if config.Seed != 7 || config.NetworkLatency != 20 {
			t.Errorf("expected seed 7 and latency 20, got %d and %d", config.Seed, config.NetworkLatency)
		}
	})

	t.Run("keeps uncommitted entries on recovery unless asked", func(t *testing.T) {
		config, err := ParseArgs("raft-sim", []string{"3", "1"}, io.Discard)
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if config.TruncateOnRecovery || config.EntriesDir != "" {
			t.Errorf("expected truncation and entries files to be disabled, got %t and %q", config.TruncateOnRecovery, config.EntriesDir)
		}

		config, err = ParseArgs("raft-sim", []string{"-truncate-on-recovery", "-entries-dir", "out", "3", "1"}, io.Discard)
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if !config.TruncateOnRecovery || config.EntriesDir != "out" {
			t.Errorf("expected truncation and entries dir out, got %t and %q", config.TruncateOnRecovery, config.EntriesDir)
		}
	})

	t.Run("fails on malformed arguments", func(t *testing.T) {
		for _, args := range [][]string{{}, {"3"}, {"three", "1"}, {"3", "one"}, {"0", "1"}} {
			if _, err := ParseArgs("raft-sim", args, io.Discard); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig for %v, got %v", args, err)
			}
		}
	})
}
