package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"OTP_BASE_URL", "OTP_ROUTER", "OTP_HTTP_TIMEOUT", "OTP_PLAN_CACHE_SIZE", "OTP_PLAN_CACHE_TTL",
		"OD_WORKERS", "OD_PAIR_TIMEOUT", "OD_BUFFER_DEGREES", "LOG_LEVEL", "LOG_FILE",
		"METRICS_ADDR", "NATS_URL", "NATS_SUBJECT_PREFIX", "DISCORD_WEBHOOK_URL",
	} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OTP.BaseURL != "http://localhost:8080" {
		t.Errorf("Expected default base URL, got %s", cfg.OTP.BaseURL)
	}
	if cfg.OTP.Router != "default" {
		t.Errorf("Expected default router, got %s", cfg.OTP.Router)
	}
	if cfg.ODMatrix.Workers != 1 {
		t.Errorf("Expected 1 worker, got %d", cfg.ODMatrix.Workers)
	}
	if cfg.ODMatrix.BufferDegrees != 0.00001 {
		t.Errorf("Expected buffer 0.00001, got %v", cfg.ODMatrix.BufferDegrees)
	}
	if cfg.OTP.PlanCacheSize != 1000 {
		t.Errorf("Expected cache size 1000, got %d", cfg.OTP.PlanCacheSize)
	}
	if cfg.NATS.URL != "" || cfg.Metrics.Addr != "" || cfg.Discord.WebhookURL != "" {
		t.Error("Optional integrations should be disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OTP_BASE_URL", "http://otp.internal:8081")
	t.Setenv("OTP_ROUTER", "melbourne")
	t.Setenv("OTP_HTTP_TIMEOUT", "15s")
	t.Setenv("OD_WORKERS", "4")
	t.Setenv("OD_PAIR_TIMEOUT", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OTP.BaseURL != "http://otp.internal:8081" || cfg.OTP.Router != "melbourne" {
		t.Errorf("Unexpected OTP config: %+v", cfg.OTP)
	}
	if cfg.OTP.Timeout != 15*time.Second {
		t.Errorf("Expected 15s timeout, got %v", cfg.OTP.Timeout)
	}
	if cfg.ODMatrix.Workers != 4 || cfg.ODMatrix.PairTimeout != 30*time.Second {
		t.Errorf("Unexpected OD config: %+v", cfg.ODMatrix)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"OD_WORKERS":          "0",
		"OTP_PLAN_CACHE_SIZE": "lots",
		"OD_BUFFER_DEGREES":   "-1",
		"OTP_BASE_URL":        "localhost",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Errorf("Expected error for %s=%q", key, value)
			}
		})
	}
}
