package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "MKBD"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Master    MasterConfig    `yaml:"master" envconfig:"MASTER"`
	Storage   StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Archive   ArchiveConfig   `yaml:"archive" envconfig:"ARCHIVE"`
	Otel      OtelConfig      `yaml:"otel" envconfig:"OTEL"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST" default:"0.0.0.0"`
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"33554432"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	// APIKeys guards mutating API routes when non-empty.
	APIKeys []string `yaml:"api_keys" envconfig:"API_KEYS"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"20"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"40"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/mkbd.log"`
}

// MasterConfig controls the issuer reference dataset.
type MasterConfig struct {
	DefaultPath     string `yaml:"default_path" envconfig:"DEFAULT_PATH" default:"data/master-emiten.xlsx"`
	LoadOnStartup   bool   `yaml:"load_on_startup" envconfig:"LOAD_ON_STARTUP" default:"true"`
	RefreshSchedule string `yaml:"refresh_schedule" envconfig:"REFRESH_SCHEDULE"`
	TimeZone        string `yaml:"time_zone" envconfig:"TIME_ZONE" default:"Asia/Jakarta"`
}

// StorageConfig selects the table store backend.
type StorageConfig struct {
	Driver   string `yaml:"driver" envconfig:"DRIVER" default:"memory"`
	DSN      string `yaml:"dsn" envconfig:"DSN"`
	MaxConns int32  `yaml:"max_conns" envconfig:"MAX_CONNS" default:"4"`
}

// ArchiveConfig enables copying uploaded workbooks to object storage.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	Bucket  string `yaml:"bucket" envconfig:"BUCKET"`
	Region  string `yaml:"region" envconfig:"REGION" default:"ap-southeast-3"`
	Prefix  string `yaml:"prefix" envconfig:"PREFIX" default:"mkbd/uploads/"`
}

// OtelConfig contains OpenTelemetry settings
type OtelConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME" default:"mkbd-etl"`
	TracingEnabled bool    `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED" default:"false"`
	MetricsEnabled bool    `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED" default:"true"`
	SampleRate     float64 `yaml:"sample_rate" envconfig:"SAMPLE_RATE" default:"1.0"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// Load loads configuration from .env, environment variables and an optional YAML file.
// Values from the YAML file override environment values only where the file sets them.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile := getConfigFilePath(); configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs overlays non-zero file values onto the env-derived config.
func mergeConfigs(fileConfig, envConfig Config) Config {
	out := envConfig

	if fileConfig.Server.Host != "" {
		out.Server.Host = fileConfig.Server.Host
	}
	if fileConfig.Server.Port != 0 {
		out.Server.Port = fileConfig.Server.Port
	}
	if fileConfig.Server.ReadTimeout != 0 {
		out.Server.ReadTimeout = fileConfig.Server.ReadTimeout
	}
	if fileConfig.Server.WriteTimeout != 0 {
		out.Server.WriteTimeout = fileConfig.Server.WriteTimeout
	}
	if fileConfig.Server.MaxUploadBytes != 0 {
		out.Server.MaxUploadBytes = fileConfig.Server.MaxUploadBytes
	}
	if len(fileConfig.Security.AllowedOrigins) > 0 {
		out.Security.AllowedOrigins = fileConfig.Security.AllowedOrigins
	}
	if len(fileConfig.Security.APIKeys) > 0 {
		out.Security.APIKeys = fileConfig.Security.APIKeys
	}
	if fileConfig.Security.RateLimit.RPS != 0 {
		out.Security.RateLimit = fileConfig.Security.RateLimit
	}
	if fileConfig.Logging.Level != "" {
		out.Logging.Level = fileConfig.Logging.Level
	}
	if fileConfig.Logging.Output != "" {
		out.Logging.Output = fileConfig.Logging.Output
	}
	if fileConfig.Logging.FilePath != "" {
		out.Logging.FilePath = fileConfig.Logging.FilePath
	}
	if fileConfig.Master.DefaultPath != "" {
		out.Master.DefaultPath = fileConfig.Master.DefaultPath
	}
	if fileConfig.Master.RefreshSchedule != "" {
		out.Master.RefreshSchedule = fileConfig.Master.RefreshSchedule
	}
	if fileConfig.Master.TimeZone != "" {
		out.Master.TimeZone = fileConfig.Master.TimeZone
	}
	if fileConfig.Storage.Driver != "" {
		out.Storage = fileConfig.Storage
	}
	if fileConfig.Archive.Bucket != "" {
		out.Archive = fileConfig.Archive
	}
	if fileConfig.Otel.ServiceName != "" {
		out.Otel = fileConfig.Otel
	}

	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		return fmt.Errorf("invalid log output: %q", c.Logging.Output)
	}

	if c.Logging.Format != "json" {
		// JSON is the only supported format
		c.Logging.Format = "json"
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage driver %q requires a DSN", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Storage.Driver)
	}

	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive when enabled")
	}

	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive bucket is required when archive is enabled")
	}

	if c.Otel.SampleRate < 0 || c.Otel.SampleRate > 1 {
		return fmt.Errorf("otel sample rate must be between 0 and 1")
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  DefaultMaxUploadBytes,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/mkbd.log",
		},
		Master: MasterConfig{
			DefaultPath:   DefaultMasterPath,
			LoadOnStartup: true,
			TimeZone:      "Asia/Jakarta",
		},
		Storage: StorageConfig{
			Driver:   StorageMemory,
			MaxConns: 4,
		},
		Archive: ArchiveConfig{
			Region: "ap-southeast-3",
			Prefix: "mkbd/uploads/",
		},
		Otel: OtelConfig{
			ServiceName:    AppName,
			MetricsEnabled: true,
			SampleRate:     1.0,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}
