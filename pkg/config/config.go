package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Backend     BackendConfig     `yaml:"backend"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Poller      PollerConfig      `yaml:"poller"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// BackendConfig points at the log backend REST API.
type BackendConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// AggregationConfig tunes the fetch-and-aggregate pipeline.
type AggregationConfig struct {
	WindowDays     int `yaml:"window_days"`
	MaxRecords     int `yaml:"max_records"`
	PageSize       int `yaml:"page_size"`
	FetchParallel  int `yaml:"fetch_parallel"`
	RecentFeedSize int `yaml:"recent_feed_size"`
}

// PollerConfig tunes the recent-activity poller.
type PollerConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a configuration with default values
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Backend: BackendConfig{
			BaseURL:        "http://localhost:3000",
			RequestTimeout: 10 * time.Second,
		},
		Aggregation: AggregationConfig{
			WindowDays:     7,
			MaxRecords:     10000,
			PageSize:       500,
			FetchParallel:  10,
			RecentFeedSize: 100,
		},
		Poller: PollerConfig{
			Interval:  10 * time.Second,
			BatchSize: 50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// getConfigPath returns the configuration file path
func getConfigPath() string {
	if path := os.Getenv("PULSEBOARD_CONFIG"); path != "" {
		return path
	}
	return "config.yaml"
}

// applyEnv overrides configuration with environment variables
func (c *Config) applyEnv() {
	if host := os.Getenv("PULSEBOARD_SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("PULSEBOARD_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if baseURL := os.Getenv("PULSEBOARD_BACKEND_BASE_URL"); baseURL != "" {
		c.Backend.BaseURL = baseURL
	}
	if timeout := os.Getenv("PULSEBOARD_BACKEND_REQUEST_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.Backend.RequestTimeout = d
		}
	}
	if days := os.Getenv("PULSEBOARD_AGGREGATION_WINDOW_DAYS"); days != "" {
		if n, err := strconv.Atoi(days); err == nil {
			c.Aggregation.WindowDays = n
		}
	}
	if max := os.Getenv("PULSEBOARD_AGGREGATION_MAX_RECORDS"); max != "" {
		if n, err := strconv.Atoi(max); err == nil {
			c.Aggregation.MaxRecords = n
		}
	}
	if interval := os.Getenv("PULSEBOARD_POLLER_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			c.Poller.Interval = d
		}
	}
	if level := os.Getenv("PULSEBOARD_LOGGING_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("PULSEBOARD_LOGGING_FORMAT"); format != "" {
		c.Logging.Format = format
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base URL is required")
	}
	if c.Backend.RequestTimeout <= 0 {
		return fmt.Errorf("backend request timeout must be positive")
	}
	if c.Aggregation.WindowDays < 1 {
		return fmt.Errorf("aggregation window must be at least one day")
	}
	if c.Aggregation.MaxRecords < 1 {
		return fmt.Errorf("max records must be at least 1")
	}
	if c.Aggregation.PageSize < 1 {
		return fmt.Errorf("page size must be at least 1")
	}
	if c.Aggregation.FetchParallel < 1 {
		return fmt.Errorf("fetch parallelism must be at least 1")
	}
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller interval must be positive")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}

	return nil
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
