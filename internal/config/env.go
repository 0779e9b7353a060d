package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ApplyEnvOverrides reads configuration values from environment variables and
// overrides fields in the provided Config. Returns an error if parsing fails.
//
// Environment variables supported:
// - SEARCHBOX_LISTEN_ADDR (string, e.g. ":8000")
// - SEARCHBOX_ES_URL (string, e.g. "http://elasticsearch:9200")
// - SEARCHBOX_ES_INDEX (string, e.g. "documents")
// - SEARCHBOX_WAIT_ATTEMPTS (int)
// - SEARCHBOX_WAIT_INTERVAL / SEARCHBOX_WAIT_TIMEOUT (duration, e.g. "10s")
// - SEARCHBOX_MONITOR_INTERVAL (duration) / SEARCHBOX_MONITOR_THRESHOLD (int)
// - SEARCHBOX_METRICS_ENABLED (bool) / SEARCHBOX_METRICS_PORT (int)
// - SEARCHBOX_WEBHOOK_URL / SEARCHBOX_SLACK_WEBHOOK (string)
// - SEARCHBOX_LIST_LIMIT (int)
// - SEARCHBOX_SHUTDOWN_TIMEOUT (duration)
// - SEARCHBOX_STACK_IMAGE / SEARCHBOX_STACK_NAME (string)
func ApplyEnvOverrides(cfg *Config) error {
	if err := applyServiceEnv(cfg); err != nil {
		return err
	}
	if err := applyWaitEnv(cfg); err != nil {
		return err
	}
	if err := applyMonitorEnv(cfg); err != nil {
		return err
	}
	if err := applyMetricsEnv(cfg); err != nil {
		return err
	}
	applyNotifyEnv(cfg)
	applyStackEnv(cfg)
	return nil
}

// applyServiceEnv handles the listener, cluster URL, index and paging knobs
func applyServiceEnv(cfg *Config) error {
	if v := os.Getenv("SEARCHBOX_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("SEARCHBOX_ES_URL"); v != "" {
		cfg.ESURL = v
	}
	if v := os.Getenv("SEARCHBOX_ES_INDEX"); v != "" {
		cfg.ESIndex = v
	}
	if err := setIntEnv("SEARCHBOX_LIST_LIMIT", func(n int) { cfg.ListLimit = n }); err != nil {
		return err
	}
	return setDurationEnv("SEARCHBOX_SHUTDOWN_TIMEOUT", func(d time.Duration) { cfg.ShutdownTimeout = d })
}

// applyWaitEnv handles the startup gate cadence
func applyWaitEnv(cfg *Config) error {
	if err := setIntEnv("SEARCHBOX_WAIT_ATTEMPTS", func(n int) { cfg.WaitAttempts = n }); err != nil {
		return err
	}
	if err := setDurationEnv("SEARCHBOX_WAIT_INTERVAL", func(d time.Duration) { cfg.WaitInterval = d }); err != nil {
		return err
	}
	return setDurationEnv("SEARCHBOX_WAIT_TIMEOUT", func(d time.Duration) { cfg.WaitTimeout = d })
}

// applyMonitorEnv handles the background dependency monitor
func applyMonitorEnv(cfg *Config) error {
	if err := setDurationEnv("SEARCHBOX_MONITOR_INTERVAL", func(d time.Duration) { cfg.MonitorInterval = d }); err != nil {
		return err
	}
	return setIntEnv("SEARCHBOX_MONITOR_THRESHOLD", func(n int) { cfg.MonitorThreshold = n })
}

// applyMetricsEnv consolidates metrics-related env parsing
func applyMetricsEnv(cfg *Config) error {
	if err := setBoolEnv("SEARCHBOX_METRICS_ENABLED", func(b bool) { cfg.MetricsEnabled = b }); err != nil {
		return err
	}
	return setIntEnv("SEARCHBOX_METRICS_PORT", func(n int) { cfg.MetricsPort = n })
}

func applyNotifyEnv(cfg *Config) {
	if v := os.Getenv("SEARCHBOX_WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv("SEARCHBOX_SLACK_WEBHOOK"); v != "" {
		cfg.SlackWebhook = v
	}
}

func applyStackEnv(cfg *Config) {
	if v := os.Getenv("SEARCHBOX_STACK_IMAGE"); v != "" {
		cfg.StackImage = v
	}
	if v := os.Getenv("SEARCHBOX_STACK_NAME"); v != "" {
		cfg.StackName = v
	}
}

// setBoolEnv is a small helper to parse boolean environment variables
func setBoolEnv(env string, setter func(bool)) error {
	if v := os.Getenv(env); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(b)
	}
	return nil
}

// setIntEnv is a small helper to parse integer environment variables
func setIntEnv(env string, setter func(int)) error {
	if v := os.Getenv(env); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(n)
	}
	return nil
}

// setDurationEnv is a small helper to parse duration environment variables
func setDurationEnv(env string, setter func(time.Duration)) error {
	if v := os.Getenv(env); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(d)
	}
	return nil
}
