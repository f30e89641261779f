package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashboard.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 8050 {
		t.Errorf("Port = %d, want 8050", cfg.Server.Port)
	}
	if cfg.Data.CSVFile != "train.csv" {
		t.Errorf("CSVFile = %q, want train.csv", cfg.Data.CSVFile)
	}
	if cfg.Address() != "localhost:8050" {
		t.Errorf("Address() = %q", cfg.Address())
	}
}

func TestLoadFrom_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9000
read-timeout = "3s"

[data]
csv-file = "sales.csv"

[log]
level = "debug"
format = "text"

[security]
rate-limit = false
allowed-origins = ["https://dash.example.com"]
`)

	t.Setenv("SERVER_PORT", "9100")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, env should win over file", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 3*time.Second {
		t.Errorf("ReadTimeout = %v, want 3s", cfg.Server.ReadTimeout)
	}
	if cfg.Data.CSVFile != "sales.csv" {
		t.Errorf("CSVFile = %q", cfg.Data.CSVFile)
	}
	if cfg.Logger.Level != "debug" || cfg.Logger.Format != "text" {
		t.Errorf("Logger = %+v", cfg.Logger)
	}
	if cfg.Security.EnableRateLimit {
		t.Error("rate limit should be disabled by the file")
	}
	if len(cfg.Security.AllowedOrigins) != 1 || cfg.Security.AllowedOrigins[0] != "https://dash.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.Security.AllowedOrigins)
	}
	if cfg.Security.RateLimitRPS != 100 {
		t.Errorf("RateLimitRPS = %d, unset keys keep defaults", cfg.Security.RateLimitRPS)
	}
}

func TestLoadFrom_MissingFileIsNotAnError(t *testing.T) {
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "absent.toml")); err != nil {
		t.Errorf("LoadFrom() error = %v, want nil", err)
	}
}

func TestLoadFrom_InvalidFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"malformed toml", "[server\nport = 1", "decode"},
		{"bad duration", "[server]\nread-timeout = \"soon\"", "server.read-timeout"},
		{"bad log level", "[log]\nlevel = \"verbose\"", "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("LoadFrom() should error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too low", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"write timeout", func(c *Config) { c.Server.WriteTimeout = -time.Second }},
		{"empty csv", func(c *Config) { c.Data.CSVFile = "" }},
		{"load timeout", func(c *Config) { c.Data.LoadTimeout = 0 }},
		{"log format", func(c *Config) { c.Logger.Format = "xml" }},
		{"rps", func(c *Config) { c.Security.RateLimitRPS = 0 }},
		{"burst", func(c *Config) { c.Security.RateLimitBurst = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should error")
			}
		})
	}

	if err := defaults().Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CSV_FILE", "env.csv")
	t.Setenv("SERVER_SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("SECURITY_TRUSTED_PROXIES", "10.0.0.1,10.0.0.2")
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")

	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Data.CSVFile != "env.csv" {
		t.Errorf("CSVFile = %q", cfg.Data.CSVFile)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
	if len(cfg.Security.TrustedProxies) != 2 {
		t.Errorf("TrustedProxies = %v", cfg.Security.TrustedProxies)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("unparseable env should keep the default, got %v", cfg.Server.ReadTimeout)
	}
}
