package config

import (
	"fmt"
	"strings"
)

// Validate checks required fields and sane ranges.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Version == "" {
		errs = append(errs, "version is required")
	}
	if cfg.Database.URL == "" {
		errs = append(errs, "database.url is required")
	} else if !strings.HasPrefix(cfg.Database.URL, "sqlite://") && !strings.HasPrefix(cfg.Database.URL, "postgres://") {
		errs = append(errs, fmt.Sprintf("database.url: unsupported scheme in %q (want sqlite:// or postgres://)", cfg.Database.URL))
	}
	if cfg.Engine.ExecWorkers < 0 {
		errs = append(errs, "engine.exec_workers must not be negative")
	}
	if cfg.Engine.QueueDepth < 0 {
		errs = append(errs, "engine.queue_depth must not be negative")
	}
	if cfg.Engine.ExecTimeoutMs < 0 {
		errs = append(errs, "engine.exec_timeout_ms must not be negative")
	}
	if cfg.Engine.DefaultLogLimit < 0 {
		errs = append(errs, "engine.default_log_limit must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
