package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

var managedKeys = []string{
	"ROOMBOOK_CONFIG_FILE",
	"ROOMBOOK_ENV_FILE",
	"ROOMBOOK_HTTP_PORT",
	"ROOMBOOK_SQLITE_DSN",
	"ROOMBOOK_SESSION_TTL",
	"ROOMBOOK_REDIS_URL",
	"ROOMBOOK_LOG_LEVEL",
	"ROOMBOOK_LOG_FORMAT",
	"ROOMBOOK_LOGIN_RATE",
	"ROOMBOOK_LOGIN_BURST",
	"ROOMBOOK_SHUTDOWN_TIMEOUT",
	"ROOMBOOK_ENV",
	"ROOMBOOK_TRUSTED_PROXIES",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
}

// isolate clears every managed variable and points the dotenv lookup at an
// empty directory so a developer's .env cannot leak into the test.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range managedKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		isolate(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if !reflect.DeepEqual(cfg, Defaults()) {
			t.Fatalf("expected defaults, got %+v", cfg)
		}
		if cfg.SessionTTL != time.Hour || cfg.HTTPPort != 8080 {
			t.Fatalf("unexpected defaults %+v", cfg)
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		isolate(t)
		t.Setenv("ROOMBOOK_HTTP_PORT", "9090")
		t.Setenv("ROOMBOOK_SQLITE_DSN", "/tmp/roombook.db")
		t.Setenv("ROOMBOOK_SESSION_TTL", "30m")
		t.Setenv("ROOMBOOK_LOGIN_RATE", "0.5")
		t.Setenv("ROOMBOOK_LOGIN_BURST", "3")
		t.Setenv("ROOMBOOK_REDIS_URL", "redis://localhost:6379/0")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.SQLiteDSN != "/tmp/roombook.db" {
			t.Fatalf("unexpected port or dsn: %+v", cfg)
		}
		if cfg.SessionTTL != 30*time.Minute {
			t.Fatalf("expected session TTL 30m, got %s", cfg.SessionTTL)
		}
		if cfg.LoginRate != 0.5 || cfg.LoginBurst != 3 {
			t.Fatalf("unexpected limiter settings: %+v", cfg)
		}
		if cfg.RedisURL == "" || cfg.OTLPEndpoint != "localhost:4318" {
			t.Fatalf("expected redis url and otlp endpoint, got %+v", cfg)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		isolate(t)
		t.Setenv("ROOMBOOK_HTTP_PORT", "http")
		t.Setenv("ROOMBOOK_SESSION_TTL", "forever")
		t.Setenv("ROOMBOOK_LOG_FORMAT", "xml")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		for _, want := range []string{"ROOMBOOK_HTTP_PORT", "ROOMBOOK_SESSION_TTL", `log format "xml"`} {
			if !strings.Contains(err.Error(), want) {
				t.Fatalf("expected %q in %q", want, err.Error())
			}
		}
	})
}

func TestLoader_Layering(t *testing.T) {
	dir := isolate(t)

	configPath := writeFile(t, dir, "roombook.yaml", strings.Join([]string{
		"http_port: 7000",
		"session_ttl: 2h",
		"log_level: debug",
		"sqlite_dsn: /var/lib/roombook/from-yaml.db",
	}, "\n"))
	writeFile(t, dir, ".env", strings.Join([]string{
		"ROOMBOOK_HTTP_PORT=7100",
		"ROOMBOOK_LOG_FORMAT=text",
	}, "\n"))
	t.Setenv("ROOMBOOK_CONFIG_FILE", configPath)
	t.Setenv("ROOMBOOK_LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.SessionTTL != 2*time.Hour || cfg.LogLevel != "debug" {
		t.Fatalf("expected YAML values to apply, got %+v", cfg)
	}
	if cfg.SQLiteDSN != "/var/lib/roombook/from-yaml.db" {
		t.Fatalf("expected YAML dsn, got %q", cfg.SQLiteDSN)
	}
	if cfg.HTTPPort != 7100 {
		t.Fatalf("expected dotenv to override YAML port, got %d", cfg.HTTPPort)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("expected process environment to win over dotenv, got %q", cfg.LogFormat)
	}
}

func TestLoader_ExplicitEnvFileMustExist(t *testing.T) {
	dir := isolate(t)
	t.Setenv("ROOMBOOK_ENV_FILE", filepath.Join(dir, "missing.env"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing explicit env file")
	}
}

func TestLoader_TrustedProxies(t *testing.T) {
	t.Run("parses addresses and blocks", func(t *testing.T) {
		isolate(t)
		t.Setenv("ROOMBOOK_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.10 ,")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		want := []netip.Prefix{
			netip.MustParsePrefix("10.0.0.0/8"),
			netip.MustParsePrefix("192.0.2.10/32"),
		}
		if !reflect.DeepEqual(cfg.TrustedProxies, want) {
			t.Fatalf("expected %v, got %v", want, cfg.TrustedProxies)
		}
	})

	t.Run("rejects malformed entries", func(t *testing.T) {
		isolate(t)
		t.Setenv("ROOMBOOK_TRUSTED_PROXIES", "10.0.0.0/8,not-an-ip")

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "ROOMBOOK_TRUSTED_PROXIES") {
			t.Fatalf("expected trusted proxies error, got %v", err)
		}
	})
}
