/*
Package config loads runtime settings for the server and CLI.

PURPOSE:
  One Config struct read through viper so the same settings can come from a
  YAML file, HRBUDGET_* environment variables or command-line flags.

PRECEDENCE (highest first):
  1. Flags bound with viper.BindPFlag
  2. Environment: HRBUDGET_SERVER_PORT, HRBUDGET_DATABASE_PATH, ...
  3. Config file (--config path.yaml)
  4. Defaults below

EXAMPLE FILE:
  server:
    port: 8080
    cors_origins: ["http://localhost:5173"]
  database:
    path: ./data/hrbudget.db
  engine:
    months_ahead: 6
    default_overhead: "1.80"
  monitor:
    enabled: true
    interval: 30m
  log:
    level: debug
    format: json

SEE ALSO:
  - cmd/hrbudget/main.go: Flag binding
*/
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/warp/headcount-budget/budget"
)

const EnvPrefix = "HRBUDGET"

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Monitor  MonitorConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port        int
	CORSOrigins []string
}

type DatabaseConfig struct {
	Path string
}

type EngineConfig struct {
	// MonthsAhead is the preview window used when a request omits one.
	MonthsAhead     int
	DefaultOverhead decimal.Decimal
}

type MonitorConfig struct {
	Enabled  bool
	Interval time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("database.path", "hrbudget.db")
	v.SetDefault("engine.months_ahead", 6)
	v.SetDefault("engine.default_overhead", "1.00")
	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.interval", time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads path (optional) and the environment into v and decodes the
// result. Flags must already be bound to v.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	overhead, err := decimal.NewFromString(v.GetString("engine.default_overhead"))
	if err != nil {
		return nil, fmt.Errorf("engine.default_overhead: %w", err)
	}
	if overhead.IsNegative() {
		return nil, fmt.Errorf("engine.default_overhead must not be negative, got %s", overhead)
	}

	monthsAhead := v.GetInt("engine.months_ahead")
	if monthsAhead < 1 || monthsAhead > budget.MaxWindow {
		return nil, fmt.Errorf("engine.months_ahead must be between 1 and %d, got %d", budget.MaxWindow, monthsAhead)
	}

	interval := v.GetDuration("monitor.interval")
	if v.GetBool("monitor.enabled") && interval <= 0 {
		return nil, fmt.Errorf("monitor.interval must be positive, got %s", interval)
	}

	return &Config{
		Server: ServerConfig{
			Port:        v.GetInt("server.port"),
			CORSOrigins: v.GetStringSlice("server.cors_origins"),
		},
		Database: DatabaseConfig{Path: v.GetString("database.path")},
		Engine: EngineConfig{
			MonthsAhead:     monthsAhead,
			DefaultOverhead: overhead,
		},
		Monitor: MonitorConfig{
			Enabled:  v.GetBool("monitor.enabled"),
			Interval: interval,
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}, nil
}

// NewLogger builds a logrus logger writing to out.
func (c LogConfig) NewLogger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)

	switch c.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", c.Format)
	}
	return logger, nil
}
