package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v3"
)

// Config captures configuration values for the booking API.
type Config struct {
	HTTPPort        int
	SQLiteDSN       string
	SessionTTL      time.Duration
	RedisURL        string
	LogLevel        string
	LogFormat       string
	LoginRate       float64
	LoginBurst      int
	ShutdownTimeout time.Duration
	OTLPEndpoint    string
	Environment     string
	// TrustedProxies lists the peers whose X-Forwarded-For header is honoured
	// when keying the login throttle. Empty means the socket address is used.
	TrustedProxies []netip.Prefix
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		HTTPPort:        8080,
		SQLiteDSN:       "roombook.db",
		SessionTTL:      time.Hour,
		LogLevel:        "info",
		LogFormat:       "json",
		LoginRate:       5,
		LoginBurst:      10,
		ShutdownTimeout: 10 * time.Second,
		Environment:     "development",
	}
}

// fileConfig mirrors Config in the optional YAML file. Durations are strings
// in time.ParseDuration syntax.
type fileConfig struct {
	HTTPPort        *int     `yaml:"http_port"`
	SQLiteDSN       *string  `yaml:"sqlite_dsn"`
	SessionTTL      *string  `yaml:"session_ttl"`
	RedisURL        *string  `yaml:"redis_url"`
	LogLevel        *string  `yaml:"log_level"`
	LogFormat       *string  `yaml:"log_format"`
	LoginRate       *float64 `yaml:"login_rate"`
	LoginBurst      *int     `yaml:"login_burst"`
	ShutdownTimeout *string  `yaml:"shutdown_timeout"`
	OTLPEndpoint    *string  `yaml:"otlp_endpoint"`
	Environment     *string  `yaml:"environment"`
	TrustedProxies  []string `yaml:"trusted_proxies"`
}

// Load builds the configuration from, in increasing precedence, built-in
// defaults, the YAML file named by ROOMBOOK_CONFIG_FILE, the dotenv file named
// by ROOMBOOK_ENV_FILE (default .env when present), and the process
// environment. Every invalid value is reported in one error.
func Load() (Config, error) {
	cfg := Defaults()
	var invalid []string

	if path := strings.TrimSpace(os.Getenv("ROOMBOOK_CONFIG_FILE")); path != "" {
		bad, err := applyFile(&cfg, path)
		if err != nil {
			return Config{}, err
		}
		invalid = append(invalid, bad...)
	}

	dotenv, err := readDotenv()
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(value)
		}
		return strings.TrimSpace(dotenv[key])
	}

	invalid = append(invalid, applyEnv(&cfg, lookup)...)
	invalid = append(invalid, validate(cfg)...)

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func readDotenv() (map[string]string, error) {
	path := strings.TrimSpace(os.Getenv("ROOMBOOK_ENV_FILE"))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	values, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return values, nil
}

func applyFile(cfg *Config, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	var invalid []string
	if fc.HTTPPort != nil {
		cfg.HTTPPort = *fc.HTTPPort
	}
	if fc.SQLiteDSN != nil {
		cfg.SQLiteDSN = *fc.SQLiteDSN
	}
	if fc.SessionTTL != nil {
		if d, err := time.ParseDuration(*fc.SessionTTL); err != nil {
			invalid = append(invalid, "session_ttl")
		} else {
			cfg.SessionTTL = d
		}
	}
	if fc.RedisURL != nil {
		cfg.RedisURL = *fc.RedisURL
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.LogFormat != nil {
		cfg.LogFormat = *fc.LogFormat
	}
	if fc.LoginRate != nil {
		cfg.LoginRate = *fc.LoginRate
	}
	if fc.LoginBurst != nil {
		cfg.LoginBurst = *fc.LoginBurst
	}
	if fc.ShutdownTimeout != nil {
		if d, err := time.ParseDuration(*fc.ShutdownTimeout); err != nil {
			invalid = append(invalid, "shutdown_timeout")
		} else {
			cfg.ShutdownTimeout = d
		}
	}
	if fc.OTLPEndpoint != nil {
		cfg.OTLPEndpoint = *fc.OTLPEndpoint
	}
	if fc.Environment != nil {
		cfg.Environment = *fc.Environment
	}
	if fc.TrustedProxies != nil {
		if prefixes, err := parsePrefixes(fc.TrustedProxies); err != nil {
			invalid = append(invalid, "trusted_proxies")
		} else {
			cfg.TrustedProxies = prefixes
		}
	}
	return invalid, nil
}

func applyEnv(cfg *Config, lookup func(string) string) []string {
	var invalid []string

	if v := lookup("ROOMBOOK_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err != nil {
			invalid = append(invalid, "ROOMBOOK_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}
	if v := lookup("ROOMBOOK_SQLITE_DSN"); v != "" {
		cfg.SQLiteDSN = v
	}
	if v := lookup("ROOMBOOK_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err != nil {
			invalid = append(invalid, "ROOMBOOK_SESSION_TTL")
		} else {
			cfg.SessionTTL = d
		}
	}
	if v := lookup("ROOMBOOK_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := lookup("ROOMBOOK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := lookup("ROOMBOOK_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := lookup("ROOMBOOK_LOGIN_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err != nil {
			invalid = append(invalid, "ROOMBOOK_LOGIN_RATE")
		} else {
			cfg.LoginRate = rate
		}
	}
	if v := lookup("ROOMBOOK_LOGIN_BURST"); v != "" {
		if burst, err := strconv.Atoi(v); err != nil {
			invalid = append(invalid, "ROOMBOOK_LOGIN_BURST")
		} else {
			cfg.LoginBurst = burst
		}
	}
	if v := lookup("ROOMBOOK_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err != nil {
			invalid = append(invalid, "ROOMBOOK_SHUTDOWN_TIMEOUT")
		} else {
			cfg.ShutdownTimeout = d
		}
	}
	if v := lookup("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	if v := lookup("ROOMBOOK_ENV"); v != "" {
		cfg.Environment = v
	}
	if v := lookup("ROOMBOOK_TRUSTED_PROXIES"); v != "" {
		if prefixes, err := parsePrefixes(strings.Split(v, ",")); err != nil {
			invalid = append(invalid, "ROOMBOOK_TRUSTED_PROXIES")
		} else {
			cfg.TrustedProxies = prefixes
		}
	}

	return invalid
}

func validate(cfg Config) []string {
	var invalid []string
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		invalid = append(invalid, "http port out of range")
	}
	if strings.TrimSpace(cfg.SQLiteDSN) == "" {
		invalid = append(invalid, "sqlite dsn is empty")
	}
	if cfg.SessionTTL <= 0 {
		invalid = append(invalid, "session ttl must be positive")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "log level "+strconv.Quote(cfg.LogLevel))
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "json", "text":
	default:
		invalid = append(invalid, "log format "+strconv.Quote(cfg.LogFormat))
	}
	if cfg.LoginRate <= 0 {
		invalid = append(invalid, "login rate must be positive")
	}
	if cfg.LoginBurst <= 0 {
		invalid = append(invalid, "login burst must be positive")
	}
	if cfg.ShutdownTimeout <= 0 {
		invalid = append(invalid, "shutdown timeout must be positive")
	}
	return invalid
}

// parsePrefixes accepts CIDR blocks and bare addresses. Blank entries are
// skipped.
func parsePrefixes(values []string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if strings.Contains(value, "/") {
			prefix, err := netip.ParsePrefix(value)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
