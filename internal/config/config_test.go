package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Notify.GlobalCategory != "Global" || cfg.Renotify.ThresholdDays != 7 {
		t.Fatalf("unexpected notify defaults: %+v %+v", cfg.Notify, cfg.Renotify)
	}
	if cfg.LDAP.Retries != 3 || cfg.LDAP.RetryDelay != 2*time.Second {
		t.Fatalf("unexpected ldap defaults: %+v", cfg.LDAP)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("USER_INTERACTION_SERVER", "https://fir.example")
	t.Setenv("RENOTIFICATION_THRESHOLD", "3")
	t.Setenv("LDAP_RETRIES", "0")
	t.Setenv("LDAP_RETRY_DELAY", "500ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.PublicURL != "https://fir.example" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Renotify.ThresholdDays != 3 {
		t.Fatalf("expected threshold 3, got %d", cfg.Renotify.ThresholdDays)
	}
	if cfg.LDAP.Retries != 1 {
		t.Fatalf("retries must be at least 1, got %d", cfg.LDAP.Retries)
	}
	if cfg.LDAP.RetryDelay != 500*time.Millisecond {
		t.Fatalf("expected 500ms delay, got %s", cfg.LDAP.RetryDelay)
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "fir", Password: "pw", DBName: "fir", SSLMode: "disable"}
	want := "host=db user=fir password=pw dbname=fir port=5432 sslmode=disable TimeZone=UTC"
	if got := d.DSN(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
