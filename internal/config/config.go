package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/menta2k/banana-grader/pkg/processing"
	"github.com/menta2k/banana-grader/pkg/report"
)

// Config holds the application configuration
type Config struct {
	Analysis AnalysisConfig `json:"analysis"`
	Advisor  AdvisorConfig  `json:"advisor"`
	Report   ReportConfig   `json:"report"`
	Server   ServerConfig   `json:"server"`
	LogLevel string         `json:"log_level"`
}

// AnalysisConfig controls bounding, re-encoding and pacing
type AnalysisConfig struct {
	MaxDimension       int     `json:"max_dimension"`
	EncodeQuality      float64 `json:"encode_quality"`
	EncodeFormat       string  `json:"encode_format"`
	PacingMillis       int     `json:"analysis_pacing_ms"`
	Workers            int     `json:"workers"`
	CorrectOrientation bool    `json:"correct_orientation"`
}

// AdvisorConfig holds the vision model used to suggest a visual judgment
type AdvisorConfig struct {
	Enabled bool   `json:"enabled"`
	Backend string `json:"backend"`
	URL     string `json:"url"`
	Model   string `json:"model"`
	Timeout int    `json:"timeout"`
}

// ReportConfig holds claim form choices and the CSV destination
type ReportConfig struct {
	ClaimTypes  []string `json:"claim_types"`
	Units       []string `json:"units"`
	DefaultUnit string   `json:"default_unit"`
	OutputPath  string   `json:"output_path"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port              string `json:"port"`
	MaxUploadMB       int    `json:"max_upload_mb"`
	SessionTTLMinutes int    `json:"session_ttl_minutes"`
}

// Advisor backends
const (
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// Default returns a configuration with default values
func Default() *Config {
	settings := report.DefaultSettings()
	return &Config{
		Analysis: AnalysisConfig{
			MaxDimension:       processing.DefaultMaxDimension,
			EncodeQuality:      processing.DefaultEncodeQuality,
			EncodeFormat:       processing.DefaultEncodeFormat,
			PacingMillis:       2000,
			Workers:            0,
			CorrectOrientation: true,
		},
		Advisor: AdvisorConfig{
			Enabled: false,
			Backend: BackendOllama,
			URL:     "http://localhost:11434",
			Model:   "qwen2.5vl:7b",
			Timeout: 300,
		},
		Report: ReportConfig{
			ClaimTypes:  settings.ClaimTypes,
			Units:       settings.Units,
			DefaultUnit: settings.DefaultUnit,
			OutputPath:  "report.csv",
		},
		Server: ServerConfig{
			Port:              "8080",
			MaxUploadMB:       20,
			SessionTTLMinutes: 30,
		},
		LogLevel: "info",
	}
}

// Load reads .env when present, then the config file (when non-empty and
// present), then applies environment overrides.
func Load(filename string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			loaded, err := LoadFromFile(filename)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file. Missing keys keep
// their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from environment variables
func (c *Config) ApplyEnv() {
	c.Analysis.MaxDimension = getIntEnv("GRADER_MAX_DIMENSION", c.Analysis.MaxDimension)
	c.Analysis.EncodeQuality = getFloatEnv("GRADER_ENCODE_QUALITY", c.Analysis.EncodeQuality)
	c.Analysis.EncodeFormat = getEnv("GRADER_ENCODE_FORMAT", c.Analysis.EncodeFormat)
	c.Analysis.PacingMillis = getIntEnv("GRADER_PACING_MS", c.Analysis.PacingMillis)
	c.Analysis.Workers = getIntEnv("GRADER_WORKERS", c.Analysis.Workers)
	c.Advisor.Backend = getEnv("GRADER_ADVISOR_BACKEND", c.Advisor.Backend)
	c.Advisor.URL = getEnv("GRADER_ADVISOR_URL", c.Advisor.URL)
	c.Advisor.Model = getEnv("GRADER_ADVISOR_MODEL", c.Advisor.Model)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Analysis.MaxDimension < 1 {
		return fmt.Errorf("analysis.max_dimension must be positive")
	}

	if c.Analysis.EncodeQuality <= 0 || c.Analysis.EncodeQuality > 1 {
		return fmt.Errorf("analysis.encode_quality must be in (0, 1]")
	}

	switch c.Analysis.EncodeFormat {
	case "jpeg", "jpg", "png", "webp":
	default:
		return fmt.Errorf("analysis.encode_format %q is not supported", c.Analysis.EncodeFormat)
	}

	if c.Analysis.PacingMillis < 0 {
		return fmt.Errorf("analysis.analysis_pacing_ms cannot be negative")
	}

	if c.Analysis.Workers < 0 {
		return fmt.Errorf("analysis.workers cannot be negative")
	}

	if c.Advisor.Enabled {
		if c.Advisor.Backend != BackendOllama && c.Advisor.Backend != BackendLlamaCpp {
			return fmt.Errorf("advisor.backend must be %q or %q", BackendOllama, BackendLlamaCpp)
		}
		if c.Advisor.Model == "" {
			return fmt.Errorf("advisor.model cannot be empty")
		}
	}

	if len(c.Report.ClaimTypes) == 0 {
		return fmt.Errorf("report.claim_types cannot be empty")
	}

	if len(c.Report.Units) == 0 {
		return fmt.Errorf("report.units cannot be empty")
	}

	found := false
	for _, u := range c.Report.Units {
		if u == c.Report.DefaultUnit {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("report.default_unit %q is not one of report.units", c.Report.DefaultUnit)
	}

	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}

	return nil
}

// ProcessingConfig returns the bounding settings for the processor
func (c *Config) ProcessingConfig() processing.Config {
	return processing.Config{
		MaxDimension:       c.Analysis.MaxDimension,
		Quality:            c.Analysis.EncodeQuality,
		Format:             c.Analysis.EncodeFormat,
		CorrectOrientation: c.Analysis.CorrectOrientation,
	}
}

// ReportSettings returns the claim form choices
func (c *Config) ReportSettings() report.Settings {
	return report.Settings{
		ClaimTypes:  append([]string(nil), c.Report.ClaimTypes...),
		Units:       append([]string(nil), c.Report.Units...),
		DefaultUnit: c.Report.DefaultUnit,
	}
}

// AdvisorTimeout returns the advisor request timeout
func (c *Config) AdvisorTimeout() time.Duration {
	if c.Advisor.Timeout <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.Advisor.Timeout) * time.Second
}

// SessionTTL returns how long an idle session is kept
func (c *Config) SessionTTL() time.Duration {
	if c.Server.SessionTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Server.SessionTTLMinutes) * time.Minute
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "banana-grader", "config.json")
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
