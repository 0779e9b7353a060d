package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxListLimit caps the page size accepted by the list and search endpoints.
const MaxListLimit = 500

// Config holds runtime configuration for searchbox
type Config struct {
	// HTTP listener for the document API
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`

	// Elasticsearch connection
	ESURL   string `json:"es_url" yaml:"es_url"`
	ESIndex string `json:"es_index" yaml:"es_index"`

	// Startup gate: the service refuses to serve until the cluster answers.
	// Cadence mirrors the orchestrator healthcheck (5 attempts, 10s apart,
	// 10s per attempt).
	WaitAttempts int           `json:"wait_attempts" yaml:"wait_attempts"`
	WaitInterval time.Duration `json:"wait_interval" yaml:"wait_interval"`
	WaitTimeout  time.Duration `json:"wait_timeout" yaml:"wait_timeout"`

	// Background dependency monitor
	MonitorInterval time.Duration `json:"monitor_interval" yaml:"monitor_interval"`
	// Consecutive ping failures before a notification is sent
	MonitorThreshold int `json:"monitor_threshold" yaml:"monitor_threshold"`

	// Metrics
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`
	MetricsPort    int  `json:"metrics_port" yaml:"metrics_port"`

	// Health notifications
	WebhookURL   string `json:"webhook_url" yaml:"webhook_url"`
	SlackWebhook string `json:"slack_webhook" yaml:"slack_webhook"`

	// Default page size for list/search responses
	ListLimit int `json:"list_limit" yaml:"list_limit"`

	// Graceful shutdown budget
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	// Dev stack (single-node Elasticsearch via the Docker SDK)
	StackImage string `json:"stack_image" yaml:"stack_image"`
	StackName  string `json:"stack_name" yaml:"stack_name"`
}

// DefaultConfig returns a sane default configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: ":8000",
		ESURL:      "http://localhost:9200",
		ESIndex:    "documents",

		WaitAttempts: 5,
		WaitInterval: 10 * time.Second,
		WaitTimeout:  10 * time.Second,

		MonitorInterval:  30 * time.Second,
		MonitorThreshold: 3,

		// Metrics are opt-in
		MetricsEnabled: false,
		MetricsPort:    9090,

		ListLimit: 50,

		ShutdownTimeout: 10 * time.Second,

		StackImage: "docker.elastic.co/elasticsearch/elasticsearch:8.13.4",
		StackName:  "searchbox-elasticsearch",
	}
}

// Validate returns a list of non-fatal configuration warnings.
func (c *Config) Validate() []string {
	var warnings []string
	checks := []struct {
		cond bool
		msg  string
	}{
		{c.WaitAttempts < 1, "wait_attempts below 1; the startup gate will never pass"},
		{c.WaitInterval <= 0, "wait_interval must be positive"},
		{c.WaitTimeout <= 0, "wait_timeout must be positive"},
		{c.MonitorInterval <= 0, "monitor_interval must be positive"},
		{c.MonitorThreshold < 1, "monitor_threshold below 1; every blip will notify"},
		{c.ListLimit < 1, "list_limit below 1"},
		{c.ListLimit > MaxListLimit, fmt.Sprintf("list_limit above maximum %d", MaxListLimit)},
		{c.ESIndex == "", "es_index is empty"},
	}
	for _, ch := range checks {
		if ch.cond {
			warnings = append(warnings, ch.msg)
		}
	}
	if w := validateESURL(c.ESURL); w != "" {
		warnings = append(warnings, w)
	}
	return warnings
}

// validateESURL returns a warning when the cluster URL is malformed, or empty when valid.
func validateESURL(raw string) string {
	if raw == "" {
		return "es_url is empty"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Sprintf("invalid es_url: %q (expected http(s)://host:port)", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("unsupported es_url scheme: %q", u.Scheme)
	}
	return ""
}

// LoadConfigFromFile loads config from a YAML/JSON file
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
