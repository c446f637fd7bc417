// Copyright 2025 Jesus Letters Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	AI        AIConfig        `mapstructure:"ai"`
	History   HistoryConfig   `mapstructure:"history"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// OpenAIConfig contains OpenAI API configuration
type OpenAIConfig struct {
	APIKey string `mapstructure:"apikey"`
	Model  string `mapstructure:"model"`
}

// GeminiConfig contains Gemini API configuration
type GeminiConfig struct {
	APIKey string `mapstructure:"apikey"`
	Model  string `mapstructure:"model"`
}

// AIConfig contains provider selection settings
type AIConfig struct {
	PreferredService string `mapstructure:"preferred_service"`
}

// HistoryConfig contains letter history storage configuration.
// An empty db_path disables history.
type HistoryConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// CORSConfig contains cross-origin settings
type CORSConfig struct {
	Origin string `mapstructure:"origin"`
}

// RateLimitConfig contains per-IP request limits
type RateLimitConfig struct {
	GeneralRequests  int `mapstructure:"general_requests"`
	GeneralWindowMin int `mapstructure:"general_window_minutes"`
	AIRequests       int `mapstructure:"ai_requests"`
	AIWindowMin      int `mapstructure:"ai_window_minutes"`
	HealthRequests   int `mapstructure:"health_requests"`
	HealthWindowMin  int `mapstructure:"health_window_minutes"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	ValidateRequired bool
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over config file values. The
// config file is optional: the service can run entirely from env vars.
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := setConfigFile(v, opts.ConfigPath); err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("JESUS_LETTERS")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error if env vars are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)

	// Provider defaults
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.preferred_service", "openai")

	// History defaults
	v.SetDefault("history.db_path", "./letters.db")

	// CORS defaults
	v.SetDefault("cors.origin", "*")

	// Rate limit defaults
	v.SetDefault("ratelimit.general_requests", 100)
	v.SetDefault("ratelimit.general_window_minutes", 15)
	v.SetDefault("ratelimit.ai_requests", 10)
	v.SetDefault("ratelimit.ai_window_minutes", 1)
	v.SetDefault("ratelimit.health_requests", 60)
	v.SetDefault("ratelimit.health_window_minutes", 1)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// setConfigFile sets the configuration file path. Unlike strict setups,
// a missing file is tolerated so deployments can be env-only.
func setConfigFile(v *viper.Viper, configPath string) error {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	return nil
}

// setEnvironmentMappings maps the conventional environment variables
// the deployment already uses onto config keys
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"PORT":                 "server.port",
		"OPENAI_API_KEY":       "openai.apikey",
		"OPENAI_MODEL":         "openai.model",
		"GEMINI_API_KEY":       "gemini.apikey",
		"GEMINI_MODEL":         "gemini.model",
		"PREFERRED_AI_SERVICE": "ai.preferred_service",
		"HISTORY_DB_PATH":      "history.db_path",
		"CORS_ORIGIN":          "cors.origin",
		"LOG_LEVEL":            "logging.level",
		"LOG_FORMAT":           "logging.format",
		"LOG_OUTPUT":           "logging.output",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// validateConfig validates the configuration. Missing API keys are not
// errors: the pipeline degrades to its static fallback without them.
func validateConfig(config *Config) error {
	var errors []ValidationError

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	switch config.AI.PreferredService {
	case "openai", "gemini":
	default:
		errors = append(errors, ValidationError{
			Field:   "ai.preferred_service",
			Message: "preferred service must be one of: openai, gemini",
		})
	}

	if config.RateLimit.GeneralRequests < 0 || config.RateLimit.AIRequests < 0 || config.RateLimit.HealthRequests < 0 {
		errors = append(errors, ValidationError{
			Field:   "ratelimit",
			Message: "request limits must be greater than or equal to 0",
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	if config.History.DBPath != "" {
		if err := validateDirectoryExists(filepath.Dir(config.History.DBPath)); err != nil {
			errors = append(errors, ValidationError{
				Field:   "history.db_path",
				Message: fmt.Sprintf("history database directory does not exist: %s", filepath.Dir(config.History.DBPath)),
			})
		}
	}

	if len(errors) > 0 {
		var errorMessages []string
		for _, err := range errors {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errorMessages, "\n"))
	}

	return nil
}

// CORSOrigins splits the configured origin list
func (c *Config) CORSOrigins() []string {
	if c.CORS.Origin == "" {
		return nil
	}
	parts := strings.Split(c.CORS.Origin, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// MaskSensitiveValues returns a copy of the config with secrets masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	if masked.OpenAI.APIKey != "" {
		masked.OpenAI.APIKey = maskValue(masked.OpenAI.APIKey)
	}
	if masked.Gemini.APIKey != "" {
		masked.Gemini.APIKey = maskValue(masked.Gemini.APIKey)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateDirectoryExists checks if a directory exists
func validateDirectoryExists(path string) error {
	if path == "" || path == "." {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return nil
}

// WatchConfig enables configuration hot-reloading for development
func WatchConfig(configPath string, callback func(*Config)) error {
	v := viper.New()

	if err := setConfigFile(v, configPath); err != nil {
		return err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Printf("Config file changed: %s\n", e.Name)

		config, err := LoadWithOptions(LoadOptions{
			ConfigPath:       configPath,
			ValidateRequired: true,
		})
		if err != nil {
			fmt.Printf("Failed to reload config: %v\n", err)
			return
		}

		callback(config)
	})

	return nil
}
