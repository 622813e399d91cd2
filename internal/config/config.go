package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"weather-yield/pkg/database"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	API      APIConfig
	Ingest   IngestConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int           `validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout    time.Duration `validate:"gt=0"`
	IdleTimeout     time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string `validate:"oneof=postgres sqlite3"`
	Host            string `validate:"required_if=Driver postgres"`
	Port            int    `validate:"min=1,max=65535"`
	User            string `validate:"required_if=Driver postgres"`
	Password        string
	Database        string `validate:"required_if=Driver postgres"`
	SSLMode         string
	Path            string `validate:"required_if=Driver sqlite3"`
	MaxOpenConns    int    `validate:"min=0"`
	MaxIdleConns    int    `validate:"min=0"`
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `validate:"oneof=debug info warn error"`
	Environment string
}

// APIConfig holds read API tuning
type APIConfig struct {
	CacheTTL       time.Duration
	RateLimitRPS   float64 `validate:"min=0"`
	RateLimitBurst int     `validate:"min=1"`
	AllowedOrigins []string
}

// IngestConfig holds batch ingestion defaults
type IngestConfig struct {
	DataDir   string `validate:"required"`
	YieldFile string `validate:"required"`
	BatchSize int    `validate:"min=1"`
}

// LoadConfig reads an optional .env file, then the environment
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var errs []error
	env := &envReader{errs: &errs}

	cfg := &Config{
		Server: ServerConfig{
			Host:            env.getString("HOST", "0.0.0.0"),
			Port:            env.getInt("PORT", 8081),
			ReadTimeout:     env.getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    env.getDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     env.getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: env.getDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          env.getString("DB_DRIVER", database.DriverPostgres),
			Host:            env.getString("DB_HOST", "localhost"),
			Port:            env.getInt("DB_PORT", 5432),
			User:            env.getString("DB_USER", "postgres"),
			Password:        env.getString("DB_PASSWORD", ""),
			Database:        env.getString("DB_NAME", "weather"),
			SSLMode:         env.getString("DB_SSLMODE", "disable"),
			Path:            env.getString("DB_PATH", ""),
			MaxOpenConns:    env.getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    env.getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: env.getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: env.getDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:       strings.ToLower(env.getString("LOG_LEVEL", "info")),
			Environment: env.getString("APP_ENV", "development"),
		},
		API: APIConfig{
			CacheTTL:       env.getDuration("QUERY_CACHE_TTL", 15*time.Second),
			RateLimitRPS:   env.getFloat("RATE_LIMIT_RPS", 20),
			RateLimitBurst: env.getInt("RATE_LIMIT_BURST", 40),
			AllowedOrigins: env.getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Ingest: IngestConfig{
			DataDir:   env.getString("WX_DATA_DIR", "./wx_data"),
			YieldFile: env.getString("YIELD_FILE", "./yld_data/US_corn_grain_yield.txt"),
			BatchSize: env.getInt("INGEST_BATCH_SIZE", 1000),
		},
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// DBConfig converts to the connection settings used by pkg/database
func (c *Config) DBConfig() *database.Config {
	return &database.Config{
		Driver:          c.Database.Driver,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}

// envReader collects parse errors instead of failing on the first one
type envReader struct {
	errs *[]error
}

func (e *envReader) getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (e *envReader) getInt(key string, def int) int {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return def
	}
	return n
}

func (e *envReader) getFloat(key string, def float64) float64 {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return def
	}
	return f
}

func (e *envReader) getDuration(key string, def time.Duration) time.Duration {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return def
	}
	return d
}

func (e *envReader) getList(key string, def []string) []string {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
