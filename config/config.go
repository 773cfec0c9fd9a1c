// Package config has the configuration of the converter and its service mode
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment is the deployment environment the binary runs in
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment accepts the short and long environment names
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	default:
		return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", s)
	}
}

// Config holds all application configuration
type Config struct {
	Env               Environment
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes

	Port           string
	Address        string
	MaxRequestBody int64 // Maximum upload size in bytes
	MaxHeaderSize  int64 // Maximum header size in bytes

	InputEncoding       string
	OutputExtension     string
	ExtraLanguagePrefix string
	MetricsTextfile     string // optional Prometheus textfile written after CLI runs

	// Scheduled conversion in serve mode; disabled when ConvertSource is empty
	ConvertSource   string
	ConvertOutput   string
	ConvertMapping  string
	ConvertSchedule string
}

// LoadDotEnv loads a .env file from the working directory when there is one
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Env:               env,
		LogLevel:          os.Getenv("LOG_LEVEL"), // empty: per-environment default
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default

		Port:           getEnvWithDefault("PORT", "8000"),
		Address:        getEnvWithDefault("ADDRESS", "127.0.0.1"),
		MaxRequestBody: getInt64EnvWithDefault("MAX_REQUEST_BODY", 33554432), // 32MB default
		MaxHeaderSize:  getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),   // 1MB default

		InputEncoding:       getEnvWithDefault("INPUT_ENCODING", "utf-8"),
		OutputExtension:     getEnvWithDefault("OUTPUT_EXTENSION", ".fsh"),
		ExtraLanguagePrefix: getEnvWithDefault("EXTRA_LANGUAGE_PREFIX", "lang"),
		MetricsTextfile:     os.Getenv("METRICS_TEXTFILE"),

		ConvertSource:   os.Getenv("CONVERT_SOURCE"),
		ConvertOutput:   os.Getenv("CONVERT_OUTPUT"),
		ConvertMapping:  os.Getenv("CONVERT_MAPPING"),
		ConvertSchedule: getEnvWithDefault("CONVERT_SCHEDULE", "06:00;18:00"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateOutputExtension(cfg.OutputExtension); err != nil {
		return fmt.Errorf("invalid OUTPUT_EXTENSION: %w", err)
	}

	if err := validateExtraPrefix(cfg.ExtraLanguagePrefix); err != nil {
		return fmt.Errorf("invalid EXTRA_LANGUAGE_PREFIX: %w", err)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "localhost" {
		return nil
	}

	if ip := net.ParseIP(address); ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return nil
	}
	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 {
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateOutputExtension validates the OUTPUT_EXTENSION environment variable
func validateOutputExtension(ext string) error {
	if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
		return fmt.Errorf("OUTPUT_EXTENSION must start with a dot, got: %q", ext)
	}

	if strings.ContainsAny(ext, `/\`) {
		return fmt.Errorf("OUTPUT_EXTENSION must not contain path separators, got: %q", ext)
	}

	return nil
}

// validateExtraPrefix validates the EXTRA_LANGUAGE_PREFIX environment variable
func validateExtraPrefix(prefix string) error {
	if strings.TrimSpace(prefix) == "" {
		return fmt.Errorf("EXTRA_LANGUAGE_PREFIX cannot be empty")
	}

	if strings.Contains(prefix, ":") {
		return fmt.Errorf("EXTRA_LANGUAGE_PREFIX must not contain ':', got: %q", prefix)
	}

	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"PORT",
		"ADDRESS",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"INPUT_ENCODING",
		"OUTPUT_EXTENSION",
		"EXTRA_LANGUAGE_PREFIX",
		"METRICS_TEXTFILE",
		"CONVERT_SOURCE",
		"CONVERT_OUTPUT",
		"CONVERT_MAPPING",
		"CONVERT_SCHEDULE",
	}
}
