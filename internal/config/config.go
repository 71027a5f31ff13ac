// Package config loads platform settings from an optional YAML file
// overlaid by SEB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"seb-platform/pkg/database"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "SEB"

// EnvConfigFile names the variable pointing at the YAML file
const EnvConfigFile = "SEB_CONFIG_FILE"

// DefaultConfigFile is read when EnvConfigFile is unset and the file exists
const DefaultConfigFile = "config.yaml"

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Database DatabaseConfig `yaml:"database" envconfig:"DATABASE"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Data     DataConfig     `yaml:"data" envconfig:"DATA"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	User            string        `yaml:"user" envconfig:"USER"`
	Password        string        `yaml:"password" envconfig:"PASSWORD"`
	Database        string        `yaml:"database" envconfig:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" envconfig:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" envconfig:"CONN_MAX_IDLE_TIME"`
}

// Connection converts the settings for database.NewPostgresDB
func (d DatabaseConfig) Connection() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" envconfig:"LEVEL"`
	Service string `yaml:"service" envconfig:"SERVICE"`
}

// DataConfig locates the SEB files and sets analysis policy
type DataConfig struct {
	Dir string `yaml:"dir" envconfig:"DIR"`
	// Stations maps station codes to file names inside Dir
	Stations       map[string]string `yaml:"stations" envconfig:"STATIONS"`
	ResetMeltAtNaN bool              `yaml:"reset_melt_at_nan" envconfig:"RESET_MELT_AT_NAN"`
	CorrectGs      bool              `yaml:"correct_gs" envconfig:"CORRECT_GS"`
	// Variables limits ingestion to these names; empty means all readable ones
	Variables []string `yaml:"variables" envconfig:"VARIABLES"`
	BatchSize int      `yaml:"batch_size" envconfig:"BATCH_SIZE"`
}

// StationPath returns the full path of a station's file
func (d DataConfig) StationPath(code string) (string, error) {
	name, ok := d.Stations[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return "", fmt.Errorf("no file configured for station %q", code)
	}
	return filepath.Join(d.Dir, name), nil
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "seb",
			Database:        "seb",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: time.Minute,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Service: "seb-platform",
		},
		Data: DataConfig{
			Dir: "PKM-data",
			Stations: map[string]string{
				"S5":  "S5_SEB_2003_2019_rp10b.txt",
				"S6":  "S6_SEB_2003_2019_rp4.txt",
				"S9":  "S9_SEB_2003_2019_5.txt",
				"S10": "S10_SEB_2009_2019.txt",
			},
			ResetMeltAtNaN: true,
			CorrectGs:      true,
			BatchSize:      1000,
		},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file and the
// environment, in increasing precedence, and validates it.
func LoadConfig() (*Config, error) {
	cfg := Default()

	path, explicit := os.LookupEnv(EnvConfigFile)
	if !explicit {
		path = DefaultConfigFile
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	// Fields without a matching variable keep their current value.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile overlays the YAML file at path. A missing file is only an error
// when it was asked for explicitly.
func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks ranges and required values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database max_open_conns must be positive")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}
	if c.Data.BatchSize <= 0 {
		return fmt.Errorf("data batch_size must be positive")
	}
	if len(c.Data.Stations) == 0 {
		return fmt.Errorf("at least one station file must be configured")
	}

	normalized := make(map[string]string, len(c.Data.Stations))
	for code, file := range c.Data.Stations {
		if strings.TrimSpace(file) == "" {
			return fmt.Errorf("empty file name for station %q", code)
		}
		normalized[strings.ToUpper(strings.TrimSpace(code))] = file
	}
	c.Data.Stations = normalized
	return nil
}
