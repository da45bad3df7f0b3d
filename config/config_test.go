package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:  "single service - http",
			input: "http",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP: true,
			},
			expectError: false,
		},
		{
			name:  "single service - moderation-worker",
			input: "moderation-worker",
			expected: map[ServiceMode]bool{
				ServiceModeModerationWorker: true,
			},
			expectError: false,
		},
		{
			name:  "single service - webhook-dispatcher",
			input: "webhook-dispatcher",
			expected: map[ServiceMode]bool{
				ServiceModeWebhookDispatcher: true,
			},
			expectError: false,
		},
		{
			name:  "multiple services - http and moderation-worker",
			input: "http,moderation-worker",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:             true,
				ServiceModeModerationWorker: true,
			},
			expectError: false,
		},
		{
			name:  "all services",
			input: "http,moderation-worker,webhook-dispatcher,reaper",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:              true,
				ServiceModeModerationWorker:  true,
				ServiceModeWebhookDispatcher: true,
				ServiceModeReaper:            true,
			},
			expectError: false,
		},
		{
			name:  "services with spaces",
			input: " http , moderation-worker , reaper ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:             true,
				ServiceModeModerationWorker: true,
				ServiceModeReaper:           true,
			},
			expectError: false,
		},
		{
			name:  "duplicate services",
			input: "http,http,moderation-worker",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:             true,
				ServiceModeModerationWorker: true,
			},
			expectError: false,
		},
		{
			name:        "empty string",
			input:       "",
			expected:    nil,
			expectError: true,
		},
		{
			name:        "only spaces and commas",
			input:       " , , ",
			expected:    nil,
			expectError: true,
		},
		{
			name:        "invalid service name",
			input:       "http,invalid-service",
			expected:    nil,
			expectError: true,
		},
		{
			name:        "mixed valid and invalid",
			input:       "http,moderation-worker,invalid",
			expected:    nil,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("expected %d services, got %d", len(tt.expected), len(result))
				return
			}

			for service, expected := range tt.expected {
				if result[service] != expected {
					t.Errorf("expected service %s to be %v, got %v", service, expected, result[service])
				}
			}
		})
	}
}

func TestConfig_GetEnabledServices(t *testing.T) {
	tests := []struct {
		name        string
		services    string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "default configuration",
			services: "http",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP: true,
			},
			expectError: false,
		},
		{
			name:     "multiple services",
			services: "http,webhook-dispatcher",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:              true,
				ServiceModeWebhookDispatcher: true,
			},
			expectError: false,
		},
		{
			name:        "invalid configuration",
			services:    "invalid-service",
			expected:    nil,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}
			result, err := cfg.GetEnabledServices()

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("expected %d services, got %d", len(tt.expected), len(result))
				return
			}

			for service, expected := range tt.expected {
				if result[service] != expected {
					t.Errorf("expected service %s to be %v, got %v", service, expected, result[service])
				}
			}
		})
	}
}

func TestAppConfig_ParseWorkerEnv(t *testing.T) {
	t.Setenv("SCORER_URL", "http://scorer.internal:9000")
	t.Setenv("SCORER_TIMEOUT", "15s")
	t.Setenv("SCORER_RETRY_LIMIT", "2")
	t.Setenv("MODERATION_WORKER_CONCURRENCY", "8")
	t.Setenv("MODERATION_WORKER_JOB_LEASE", "45s")
	t.Setenv("WEBHOOK_MAX_ATTEMPTS", "5")
	t.Setenv("WEBHOOK_RETRY_DELAY_STEP", "3s")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}

	if cfg.Scorer.BaseURL != "http://scorer.internal:9000" {
		t.Errorf("unexpected scorer base url: %q", cfg.Scorer.BaseURL)
	}
	if cfg.Scorer.Timeout != 15*time.Second {
		t.Errorf("unexpected scorer timeout: %v", cfg.Scorer.Timeout)
	}
	if cfg.Scorer.RetryLimit != 2 {
		t.Errorf("unexpected scorer retry limit: %d", cfg.Scorer.RetryLimit)
	}
	if cfg.ModerationWorker.Concurrency != 8 {
		t.Errorf("unexpected worker concurrency: %d", cfg.ModerationWorker.Concurrency)
	}
	if cfg.ModerationWorker.JobLease != 45*time.Second {
		t.Errorf("unexpected worker job lease: %v", cfg.ModerationWorker.JobLease)
	}
	if cfg.WebhookDispatcher.MaxAttempts != 5 {
		t.Errorf("unexpected webhook max attempts: %d", cfg.WebhookDispatcher.MaxAttempts)
	}
	if cfg.WebhookDispatcher.RetryDelayStep != 3*time.Second {
		t.Errorf("unexpected webhook retry delay step: %v", cfg.WebhookDispatcher.RetryDelayStep)
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		name               string
		services           string
		expectedHTTP       bool
		expectedWorker     bool
		expectedDispatcher bool
	}{
		{
			name:               "default - http only",
			services:           "http",
			expectedHTTP:       true,
			expectedWorker:     false,
			expectedDispatcher: false,
		},
		{
			name:               "http and moderation-worker",
			services:           "http,moderation-worker",
			expectedHTTP:       true,
			expectedWorker:     true,
			expectedDispatcher: false,
		},
		{
			name:               "all services",
			services:           "http,moderation-worker,webhook-dispatcher",
			expectedHTTP:       true,
			expectedWorker:     true,
			expectedDispatcher: true,
		},
		{
			name:               "moderation-worker only",
			services:           "moderation-worker",
			expectedHTTP:       false,
			expectedWorker:     true,
			expectedDispatcher: false,
		},
		{
			name:               "webhook-dispatcher only",
			services:           "webhook-dispatcher",
			expectedHTTP:       false,
			expectedWorker:     false,
			expectedDispatcher: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}

			if cfg.IsHTTPServerEnabled() != tt.expectedHTTP {
				t.Errorf("IsHTTPServerEnabled(): expected %v, got %v", tt.expectedHTTP, cfg.IsHTTPServerEnabled())
			}

			if cfg.IsModerationWorkerEnabled() != tt.expectedWorker {
				t.Errorf(
					"IsModerationWorkerEnabled(): expected %v, got %v",
					tt.expectedWorker,
					cfg.IsModerationWorkerEnabled(),
				)
			}

			if cfg.IsWebhookDispatcherEnabled() != tt.expectedDispatcher {
				t.Errorf(
					"IsWebhookDispatcherEnabled(): expected %v, got %v",
					tt.expectedDispatcher,
					cfg.IsWebhookDispatcherEnabled(),
				)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethodsWithInvalidConfig(t *testing.T) {
	cfg := AppConfig{Services: "invalid-service"}

	// All methods should return false when configuration is invalid
	if cfg.IsHTTPServerEnabled() != false {
		t.Errorf("IsHTTPServerEnabled() with invalid config: expected false, got true")
	}

	if cfg.IsModerationWorkerEnabled() != false {
		t.Errorf("IsModerationWorkerEnabled() with invalid config: expected false, got true")
	}

	if cfg.IsWebhookDispatcherEnabled() != false {
		t.Errorf("IsWebhookDispatcherEnabled() with invalid config: expected false, got true")
	}
}

func TestValidServiceModes(t *testing.T) {
	modes := ValidServiceModes()
	expected := []ServiceMode{
		ServiceModeHTTP,
		ServiceModeModerationWorker,
		ServiceModeWebhookDispatcher,
		ServiceModeReaper,
	}

	if len(modes) != len(expected) {
		t.Errorf("expected %d service modes, got %d", len(expected), len(modes))
	}

	for i, mode := range modes {
		if mode != expected[i] {
			t.Errorf("expected service mode %s at index %d, got %s", expected[i], i, mode)
		}
	}
}

func TestReaperConfig_Sanitize(t *testing.T) {
	cfg := ReaperConfig{
		Interval:           time.Second,
		PendingMaxAge:      time.Minute,
		CompletedMaxAge:    time.Minute,
		FailedMaxAge:       time.Minute,
		DeliveryLogsMaxAge: time.Hour,
		BatchSize:          0,
	}

	cfg.Sanitize()

	if cfg.Interval < time.Minute {
		t.Errorf("expected interval to be clamped, got %v", cfg.Interval)
	}
	if cfg.PendingMaxAge < 5*time.Minute {
		t.Errorf("expected pending max age to be clamped, got %v", cfg.PendingMaxAge)
	}
	if cfg.DeliveryLogsMaxAge < 24*time.Hour {
		t.Errorf("expected delivery logs max age to be clamped, got %v", cfg.DeliveryLogsMaxAge)
	}
	if cfg.BatchSize < 1 {
		t.Errorf("expected batch size to be clamped, got %d", cfg.BatchSize)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
}

func TestObservabilityNotificationsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityNotificationsConfig{
		Enabled:    true,
		Timeout:    0,
		RetryLimit: -1,
		Slack: SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: " ",
			Channel:    "  ",
			Username:   "",
		},
		PagerDuty: PagerDutyNotificationConfig{
			Enabled:    true,
			RoutingKey: " ",
			Source:     "",
			Component:  "",
		},
	}

	cfg.Sanitize()

	if cfg.Timeout <= 0 {
		t.Fatalf("expected timeout to fall back to default, got %v", cfg.Timeout)
	}
	if cfg.RetryLimit < 0 {
		t.Fatalf("expected retry limit to be clamped to >= 0, got %d", cfg.RetryLimit)
	}
	if cfg.Slack.Enabled {
		t.Fatal("expected slack to be disabled without a webhook url")
	}
	if cfg.PagerDuty.Enabled {
		t.Fatal("expected pagerduty to be disabled without a routing key")
	}
	if cfg.PagerDuty.Source != "modpipe" {
		t.Fatalf("expected pagerduty source default, got %q", cfg.PagerDuty.Source)
	}
	if cfg.PagerDuty.Component != "modpipe" {
		t.Fatalf("expected pagerduty component default, got %q", cfg.PagerDuty.Component)
	}

	// Disabled top-level should disable child sinks.
	cfg = ObservabilityNotificationsConfig{
		Enabled: false,
		Slack: SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: "https://hooks.slack.com/services/test",
		},
		PagerDuty: PagerDutyNotificationConfig{
			Enabled:    true,
			RoutingKey: "abc",
		},
	}
	cfg.Sanitize()

	if cfg.Slack.Enabled {
		t.Fatal("expected slack to be disabled when top-level notifications disabled")
	}
	if cfg.PagerDuty.Enabled {
		t.Fatal("expected pagerduty to be disabled when top-level notifications disabled")
	}
}
