package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"

	"toggl-ingest/internal/domain"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config holds environment-driven configuration.
type Config struct {
	Toggl struct {
		APIToken string
		BaseURL  string        // default: https://api.track.toggl.com
		Timeout  time.Duration // default: 30s
	}
	DB struct {
		Driver   string // mysql (default) or sqlite
		Host     string // host or host:port
		User     string
		Password string
		Name     string // database name, or file path for sqlite
		DSN      string // MYSQL_DSN overrides the fields above for mysql
	}
	LogLevel slog.Level
	HTTPAddr string
}

// Load reads configuration from the environment. A .env file in the working
// directory is read first; variables already set in the environment win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, configErr("reading .env: %v", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from environment variables only.
func FromEnv() (Config, error) {
	var cfg Config

	cfg.Toggl.APIToken = os.Getenv("TOGGL_API_TOKEN")
	if cfg.Toggl.APIToken == "" {
		return cfg, configErr("TOGGL_API_TOKEN is required")
	}
	cfg.Toggl.BaseURL = os.Getenv("TOGGL_BASE_URL")
	if cfg.Toggl.BaseURL == "" {
		cfg.Toggl.BaseURL = "https://api.track.toggl.com"
	}
	cfg.Toggl.Timeout = 30 * time.Second
	if v := os.Getenv("TOGGL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, configErr("TOGGL_TIMEOUT must be a positive duration, got %q", v)
		}
		cfg.Toggl.Timeout = d
	}

	cfg.DB.Driver = strings.ToLower(os.Getenv("DB_DRIVER"))
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = DriverMySQL
	}
	cfg.DB.Host = os.Getenv("DB_HOST")
	cfg.DB.User = os.Getenv("DB_USER")
	cfg.DB.Password = os.Getenv("DB_PASSWORD")
	cfg.DB.Name = os.Getenv("DB_NAME")
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")

	switch cfg.DB.Driver {
	case DriverMySQL:
		if cfg.DB.DSN == "" {
			var missing []string
			for _, kv := range [][2]string{
				{"DB_HOST", cfg.DB.Host},
				{"DB_USER", cfg.DB.User},
				{"DB_NAME", cfg.DB.Name},
			} {
				if kv[1] == "" {
					missing = append(missing, kv[0])
				}
			}
			if len(missing) > 0 {
				return cfg, configErr("missing database settings: %s", strings.Join(missing, ", "))
			}
		}
	case DriverSQLite:
		if cfg.DB.Name == "" {
			return cfg, configErr("DB_NAME (database file path) is required for sqlite")
		}
	default:
		return cfg, configErr("DB_DRIVER must be %q or %q, got %q", DriverMySQL, DriverSQLite, cfg.DB.Driver)
	}

	cfg.LogLevel = slog.LevelInfo
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return cfg, configErr("LOG_LEVEL: %v", err)
		}
	}
	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")

	return cfg, nil
}

// DataSource returns the driver-specific connection string.
func (c Config) DataSource() string {
	if c.DB.Driver == DriverSQLite {
		return SQLiteDSN(c.DB.Name)
	}
	if c.DB.DSN != "" {
		return c.DB.DSN
	}
	m := mysql.NewConfig()
	m.User = c.DB.User
	m.Passwd = c.DB.Password
	m.Net = "tcp"
	m.Addr = c.DB.Host
	if !strings.Contains(m.Addr, ":") {
		m.Addr += ":3306"
	}
	m.DBName = c.DB.Name
	m.ParseTime = true
	m.Loc = time.UTC
	return m.FormatDSN()
}

// SQLiteDSN builds a modernc.org/sqlite DSN with foreign keys enforced.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrConfig, fmt.Sprintf(format, args...))
}
