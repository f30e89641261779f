package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the optional TOML configuration file. Unset keys
// keep their defaults.
type FileConfig struct {
	Server   ServerFile   `toml:"server"`
	Data     DataFile     `toml:"data"`
	Log      LogFile      `toml:"log"`
	Security SecurityFile `toml:"security"`
}

type ServerFile struct {
	Host            *string `toml:"host"`
	Port            *int    `toml:"port"`
	ReadTimeout     *string `toml:"read-timeout"`
	WriteTimeout    *string `toml:"write-timeout"`
	IdleTimeout     *string `toml:"idle-timeout"`
	ShutdownTimeout *string `toml:"shutdown-timeout"`
}

type DataFile struct {
	CSVFile     *string `toml:"csv-file"`
	LoadTimeout *string `toml:"load-timeout"`
}

type LogFile struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
}

type SecurityFile struct {
	RateLimit      *bool    `toml:"rate-limit"`
	RateLimitRPS   *int     `toml:"rate-limit-rps"`
	RateLimitBurst *int     `toml:"rate-limit-burst"`
	AllowedOrigins []string `toml:"allowed-origins"`
	TrustedProxies []string `toml:"trusted-proxies"`
}

// LoadFile reads a TOML config from the given path. Missing file is not an error.
func LoadFile(path string) (FileConfig, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func (f FileConfig) apply(cfg *Config) error {
	setString(&cfg.Server.Host, f.Server.Host)
	setInt(&cfg.Server.Port, f.Server.Port)
	durations := []struct {
		name   string
		target *time.Duration
		value  *string
	}{
		{"server.read-timeout", &cfg.Server.ReadTimeout, f.Server.ReadTimeout},
		{"server.write-timeout", &cfg.Server.WriteTimeout, f.Server.WriteTimeout},
		{"server.idle-timeout", &cfg.Server.IdleTimeout, f.Server.IdleTimeout},
		{"server.shutdown-timeout", &cfg.Server.ShutdownTimeout, f.Server.ShutdownTimeout},
		{"data.load-timeout", &cfg.Data.LoadTimeout, f.Data.LoadTimeout},
	}
	for _, d := range durations {
		if d.value == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.target = parsed
	}

	setString(&cfg.Data.CSVFile, f.Data.CSVFile)
	setString(&cfg.Logger.Level, f.Log.Level)
	setString(&cfg.Logger.Format, f.Log.Format)

	if f.Security.RateLimit != nil {
		cfg.Security.EnableRateLimit = *f.Security.RateLimit
	}
	setInt(&cfg.Security.RateLimitRPS, f.Security.RateLimitRPS)
	setInt(&cfg.Security.RateLimitBurst, f.Security.RateLimitBurst)
	if len(f.Security.AllowedOrigins) > 0 {
		cfg.Security.AllowedOrigins = f.Security.AllowedOrigins
	}
	if len(f.Security.TrustedProxies) > 0 {
		cfg.Security.TrustedProxies = f.Security.TrustedProxies
	}
	return nil
}

func setString(target, value *string) {
	if value != nil {
		*target = *value
	}
}

func setInt(target, value *int) {
	if value != nil {
		*target = *value
	}
}
