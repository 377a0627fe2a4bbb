package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	PrintService PrintServiceConfig `yaml:"print_service"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	History      HistoryConfig      `yaml:"history"`
	Auth         AuthConfig         `yaml:"auth"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type PrintServiceConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Token           string        `yaml:"token"`
	Timeout         time.Duration `yaml:"timeout"`
	FallbackBaseURL string        `yaml:"fallback_base_url"`
}

type OrchestratorConfig struct {
	MaxRetries           int           `yaml:"max_retries"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	SessionTimeout       time.Duration `yaml:"session_timeout"`
	MatchNameAcrossTypes bool          `yaml:"match_name_across_types"`
}

type HistoryConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	Enabled       bool          `yaml:"enabled"`
	PasswordHash  string        `yaml:"password_hash"`
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8090,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		PrintService: PrintServiceConfig{
			BaseURL:         "http://localhost:8080/api",
			Timeout:         10 * time.Second,
			FallbackBaseURL: "http://localhost:8080",
		},
		Orchestrator: OrchestratorConfig{
			MaxRetries:           3,
			PollInterval:         2 * time.Second,
			SessionTimeout:       5 * time.Minute,
			MatchNameAcrossTypes: true,
		},
		History: HistoryConfig{
			Path: "./data/printflow.db",
		},
		Auth: AuthConfig{
			Enabled:       false,
			TokenDuration: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

func LoadFromEnv() *Config {
	cfg := defaults()

	if v := os.Getenv("PRINTFLOW_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("PRINTFLOW_PRINT_SERVICE_URL"); v != "" {
		cfg.PrintService.BaseURL = v
	}

	if v := os.Getenv("PRINTFLOW_PRINT_SERVICE_TOKEN"); v != "" {
		cfg.PrintService.Token = v
	}

	if v := os.Getenv("PRINTFLOW_FALLBACK_URL"); v != "" {
		cfg.PrintService.FallbackBaseURL = v
	}

	if v := os.Getenv("PRINTFLOW_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	if v := os.Getenv("PRINTFLOW_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	if v := os.Getenv("PRINTFLOW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.PrintService.BaseURL == "" {
		return fmt.Errorf("print service base url is required")
	}

	if c.PrintService.Timeout < 0 {
		return fmt.Errorf("print service timeout must be non-negative")
	}

	if c.Orchestrator.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative")
	}

	if c.Orchestrator.PollInterval < 0 {
		return fmt.Errorf("poll interval must be non-negative")
	}

	if c.Orchestrator.SessionTimeout < 0 {
		return fmt.Errorf("session timeout must be non-negative")
	}

	if c.History.Path == "" {
		return fmt.Errorf("history database path is required")
	}

	if c.Auth.Enabled {
		if c.Auth.PasswordHash == "" {
			return fmt.Errorf("auth password hash is required when auth is enabled")
		}
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth jwt secret is required when auth is enabled")
		}
		if c.Auth.TokenDuration <= 0 {
			return fmt.Errorf("auth token duration must be positive")
		}
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Logging.Format)
	}

	return nil
}
