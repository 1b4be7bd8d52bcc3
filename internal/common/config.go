package common

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Server    ServerConfig
	Redis     RedisConfig
	Reconcile ReconcileConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres or sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	HealthTimeout    time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr        string
	HTTPAddr        string
	ShutdownTimeout time.Duration
}

// RedisConfig holds the candidate cache connection settings
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ReconcileConfig holds the default matching policy
type ReconcileConfig struct {
	ToleranceDays   int
	MaxCandidates   int
	ScanLimit       int
	ExactThreshold  int
	FuzzyThreshold  int
	ChassisWeight   int
	ContainerWeight int
	PickupWeight    int
	DeliveryWeight  int
	Concurrency     int
	LookupTimeout   time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
}

// LoadConfig loads configuration from config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with RECON_ prefix (e.g., RECON_DATABASE_DSN)
// 2. config.toml
// 3. Built-in defaults
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/tms-reconciler")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("RECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Driver:           strings.ToLower(v.GetString("database.driver")),
			DSN:              v.GetString("database.dsn"),
			MaxConns:         v.GetInt32("database.max_conns"),
			MinConns:         v.GetInt32("database.min_conns"),
			MaxConnLifetime:  v.GetDuration("database.max_conn_lifetime"),
			MaxConnIdleTime:  v.GetDuration("database.max_conn_idle_time"),
			DialTimeout:      v.GetDuration("database.dial_timeout"),
			StatementTimeout: v.GetDuration("database.statement_timeout"),
			HealthTimeout:    v.GetDuration("database.health_timeout"),
		},
		Server: ServerConfig{
			GRPCAddr:        v.GetString("server.grpc_addr"),
			HTTPAddr:        v.GetString("server.http_addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			TTL:      v.GetDuration("redis.ttl"),
		},
		Reconcile: ReconcileConfig{
			ToleranceDays:   v.GetInt("reconcile.tolerance_days"),
			MaxCandidates:   v.GetInt("reconcile.max_candidates"),
			ScanLimit:       v.GetInt("reconcile.scan_limit"),
			ExactThreshold:  v.GetInt("reconcile.exact_threshold"),
			FuzzyThreshold:  v.GetInt("reconcile.fuzzy_threshold"),
			ChassisWeight:   v.GetInt("reconcile.chassis_weight"),
			ContainerWeight: v.GetInt("reconcile.container_weight"),
			PickupWeight:    v.GetInt("reconcile.pickup_weight"),
			DeliveryWeight:  v.GetInt("reconcile.delivery_weight"),
			Concurrency:     v.GetInt("reconcile.concurrency"),
			LookupTimeout:   v.GetDuration("reconcile.lookup_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "tms-reconciler")
	v.SetDefault("app.env", "development")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("database.dial_timeout", 3*time.Second)
	v.SetDefault("database.statement_timeout", time.Duration(0))
	v.SetDefault("database.health_timeout", 3*time.Second)

	v.SetDefault("server.grpc_addr", ":8080")
	v.SetDefault("server.http_addr", ":8081")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 5*time.Minute)

	v.SetDefault("reconcile.tolerance_days", 1)
	v.SetDefault("reconcile.max_candidates", 20)
	v.SetDefault("reconcile.scan_limit", 200)
	v.SetDefault("reconcile.exact_threshold", 100)
	v.SetDefault("reconcile.fuzzy_threshold", 60)
	v.SetDefault("reconcile.chassis_weight", 40)
	v.SetDefault("reconcile.container_weight", 30)
	v.SetDefault("reconcile.pickup_weight", 15)
	v.SetDefault("reconcile.delivery_weight", 15)
	v.SetDefault("reconcile.concurrency", 8)
	v.SetDefault("reconcile.lookup_timeout", 3*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.collector_endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "tms-reconciler")
	v.SetDefault("telemetry.insecure", false)
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return NewAppError(CodeConfig, "database.dsn is required for postgres", ErrInvalidInput)
		}
	case "sqlite":
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("unsupported database.driver %q", c.Database.Driver), ErrInvalidInput)
	}
	if c.Database.MaxConns <= 0 {
		return NewAppError(CodeConfig, "database.max_conns must be positive", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		return NewAppError(CodeConfig, "at least one of server.grpc_addr or server.http_addr is required", ErrInvalidInput)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return NewAppError(CodeConfig, "redis.addr is required when redis is enabled", ErrInvalidInput)
	}
	if c.Reconcile.FuzzyThreshold > c.Reconcile.ExactThreshold {
		return NewAppError(CodeConfig, "reconcile.fuzzy_threshold cannot exceed reconcile.exact_threshold", ErrInvalidInput)
	}
	return nil
}
