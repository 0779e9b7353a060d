package config_test

import (
	"testing"
	"time"

	"github.com/searchbox/searchbox/internal/config"
)

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SEARCHBOX_LISTEN_ADDR", ":9000")
	t.Setenv("SEARCHBOX_ES_URL", "http://elasticsearch:9200")
	t.Setenv("SEARCHBOX_ES_INDEX", "articles")
	t.Setenv("SEARCHBOX_WAIT_ATTEMPTS", "7")
	t.Setenv("SEARCHBOX_WAIT_INTERVAL", "5s")
	t.Setenv("SEARCHBOX_WAIT_TIMEOUT", "2s")
	t.Setenv("SEARCHBOX_MONITOR_INTERVAL", "15s")
	t.Setenv("SEARCHBOX_MONITOR_THRESHOLD", "2")
	t.Setenv("SEARCHBOX_METRICS_ENABLED", "true")
	t.Setenv("SEARCHBOX_METRICS_PORT", "9191")
	t.Setenv("SEARCHBOX_WEBHOOK_URL", "https://example.com/hook")
	t.Setenv("SEARCHBOX_LIST_LIMIT", "25")

	cfg := config.DefaultConfig()
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides failed: %v", err)
	}

	if cfg.ListenAddr != ":9000" {
		t.Fatalf("expected listen addr override, got %q", cfg.ListenAddr)
	}
	if cfg.ESURL != "http://elasticsearch:9200" {
		t.Fatalf("expected es_url override, got %q", cfg.ESURL)
	}
	if cfg.ESIndex != "articles" {
		t.Fatalf("expected index override, got %q", cfg.ESIndex)
	}
	if cfg.WaitAttempts != 7 {
		t.Fatalf("expected wait attempts 7, got %d", cfg.WaitAttempts)
	}
	if cfg.WaitInterval != 5*time.Second || cfg.WaitTimeout != 2*time.Second {
		t.Fatalf("expected wait overrides, got %v/%v", cfg.WaitInterval, cfg.WaitTimeout)
	}
	if cfg.MonitorInterval != 15*time.Second || cfg.MonitorThreshold != 2 {
		t.Fatalf("expected monitor overrides, got %v/%d", cfg.MonitorInterval, cfg.MonitorThreshold)
	}
	if !cfg.MetricsEnabled || cfg.MetricsPort != 9191 {
		t.Fatalf("expected metrics overrides, got %v/%d", cfg.MetricsEnabled, cfg.MetricsPort)
	}
	if cfg.WebhookURL != "https://example.com/hook" {
		t.Fatalf("expected webhook override, got %q", cfg.WebhookURL)
	}
	if cfg.ListLimit != 25 {
		t.Fatalf("expected list limit 25, got %d", cfg.ListLimit)
	}
}

func TestApplyEnvOverridesInvalidDuration(t *testing.T) {
	t.Setenv("SEARCHBOX_WAIT_INTERVAL", "not-a-duration")
	cfg := config.DefaultConfig()
	if err := config.ApplyEnvOverrides(cfg); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestApplyEnvOverridesInvalidInt(t *testing.T) {
	t.Setenv("SEARCHBOX_WAIT_ATTEMPTS", "many")
	cfg := config.DefaultConfig()
	if err := config.ApplyEnvOverrides(cfg); err == nil {
		t.Fatal("expected error for invalid int")
	}
}

func TestApplyEnvOverridesInvalidBool(t *testing.T) {
	t.Setenv("SEARCHBOX_METRICS_ENABLED", "yep")
	cfg := config.DefaultConfig()
	if err := config.ApplyEnvOverrides(cfg); err == nil {
		t.Fatal("expected error for invalid bool")
	}
}
