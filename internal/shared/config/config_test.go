package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaultsPerService(t *testing.T) {
	cases := []struct {
		svc         string
		httpPort    string
		metricsPort string
	}{
		{"settlement-service", "8083", "9099"},
		{"settlement-worker", "", "9097"},
		{"broadcast-service", "8080", "9095"},
		{"api-gateway", "8000", "9093"},
		{"", "8080", "9095"},
	}
	for _, tc := range cases {
		t.Run(tc.svc, func(t *testing.T) {
			t.Setenv("SERVICE_NAME", tc.svc)
			cfg := Load()
			if cfg.HTTPPort != tc.httpPort || cfg.MetricsPort != tc.metricsPort {
				t.Fatalf("ports = %q/%q, want %q/%q", cfg.HTTPPort, cfg.MetricsPort, tc.httpPort, tc.metricsPort)
			}
			if cfg.TopicMatchConcluded != "match_concluded" {
				t.Fatalf("topic = %q", cfg.TopicMatchConcluded)
			}
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("WAGER_VIEW_TTL", "5s")
	t.Setenv("RECOVERY_INTERVAL", "nonsense")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := Load()
	if cfg.StoreDriver != "memory" {
		t.Errorf("StoreDriver = %q", cfg.StoreDriver)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.WagerViewTTL != 5*time.Second {
		t.Errorf("WagerViewTTL = %v", cfg.WagerViewTTL)
	}
	if cfg.RecoveryInterval != time.Minute {
		t.Errorf("RecoveryInterval = %v, want default", cfg.RecoveryInterval)
	}
	if want := []string{"http://a.test", "http://b.test"}; !reflect.DeepEqual(cfg.CORSOrigins, want) {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.SettlementURL != "http://localhost:8083" || cfg.BroadcastURL != "http://localhost:8080" {
		t.Errorf("gateway upstreams = %q/%q", cfg.SettlementURL, cfg.BroadcastURL)
	}
}
