// Package config provides YAML-based configuration with environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Processing ProcessingConfig `yaml:"processing"`
	LLM        LLMConfig        `yaml:"llm"`
	Security   SecurityConfig   `yaml:"security"`
	Advanced   AdvancedConfig   `yaml:"advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bind_address"`
	EnableCORS   bool   `yaml:"enable_cors"`
	AllowOrigins string `yaml:"allow_origins"`
	ReadTimeout  int    `yaml:"read_timeout_seconds"`
	WriteTimeout int    `yaml:"write_timeout_seconds"`
	IdleTimeout  int    `yaml:"idle_timeout_seconds"`
	BodyLimit    string `yaml:"body_limit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `yaml:"data_directory"`
	UploadsDirectory string `yaml:"uploads_directory"`
	TempDirectory    string `yaml:"temp_directory"`
	OutputDirectory  string `yaml:"output_directory"`
}

// ProcessingConfig contains pipeline and session settings
type ProcessingConfig struct {
	MaxConcurrentSessions  int   `yaml:"max_concurrent_sessions"`
	ScreenWorkers          int   `yaml:"screen_workers"`
	MaxDocumentBytes       int64 `yaml:"max_document_bytes"`
	SessionTimeoutMinutes  int   `yaml:"session_timeout_minutes"`
	CleanupIntervalMinutes int   `yaml:"cleanup_interval_minutes"`
	RenderSeed             int64 `yaml:"render_seed"`
	EnableCompression      bool  `yaml:"enable_compression"`
	CompressionLevel       int   `yaml:"compression_level"`
}

// LLMConfig selects and tunes the language model provider.
// Provider "none" disables model calls so every stage uses its
// deterministic path.
type LLMConfig struct {
	Provider        string  `yaml:"provider"`
	Model           string  `yaml:"model"`
	AnthropicAPIKey string  `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string  `yaml:"openai_api_key"`
	OpenAIBaseURL   string  `yaml:"openai_base_url"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	PromptDirectory string  `yaml:"prompt_directory"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	AllowFileDeletion bool   `yaml:"allow_file_deletion"`
	AllowedFileTypes  string `yaml:"allowed_file_types"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `yaml:"log_level"`
	EnableRequestLogging bool   `yaml:"enable_request_logging"`
	DuckDBThreads        int    `yaml:"duckdb_threads"`
	DuckDBMemoryLimit    string `yaml:"duckdb_memory_limit"`
}

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderNone      = "none"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	defaultOpenAIModel    = "gpt-4o-mini"
)

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 120,
			IdleTimeout:  120,
			BodyLimit:    "100M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			TempDirectory:    "./data/temp",
			OutputDirectory:  "./data/output",
		},
		Processing: ProcessingConfig{
			MaxConcurrentSessions:  10,
			ScreenWorkers:          4,
			MaxDocumentBytes:       100 * 1024 * 1024,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			RenderSeed:             42,
			EnableCompression:      true,
			CompressionLevel:       5,
		},
		LLM: LLMConfig{
			Provider:       ProviderAnthropic,
			Temperature:    0.2,
			MaxTokens:      4096,
			TimeoutSeconds: 120,
		},
		Security: SecurityConfig{
			AllowFileDeletion: true,
			AllowedFileTypes:  ".txt,.md,.markdown,.docx,.odt,.pdf,.html,.htm",
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
			DuckDBThreads:        2,
			DuckDBMemoryLimit:    "256MB",
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file is
// created with defaults. An empty path applies environment overrides to
// the defaults without touching disk, with paths relative to the working
// directory.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	switch _, err := os.Stat(configPath); {
	case configPath == "":
	case os.IsNotExist(err):
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	default:
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}
	config.applyModelDefaults()
	if configPath != "" {
		config.resolvePaths(filepath.Dir(configPath))
	}

	return config, nil
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# HMI Forge configuration\n# This file is auto-generated on first run\n\n")
	if err := os.WriteFile(configPath, append(header, output...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks settings that have no fallback. A model provider
// without credentials is fatal.
func (c *AppConfig) Validate() error {
	switch c.LLM.Provider {
	case ProviderAnthropic:
		if c.LLM.AnthropicAPIKey == "" {
			return fmt.Errorf("llm.anthropic_api_key is required when llm.provider=anthropic")
		}
	case ProviderOpenAI:
		if c.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("llm.openai_api_key is required when llm.provider=openai")
		}
	case ProviderNone:
	default:
		return fmt.Errorf("llm.provider must be 'anthropic', 'openai' or 'none', got '%s'", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return fmt.Errorf("invalid llm.temperature '%f': must be between 0 and 1", c.LLM.Temperature)
	}
	if c.Processing.ScreenWorkers < 1 {
		return fmt.Errorf("invalid processing.screen_workers '%d': must be >= 1", c.Processing.ScreenWorkers)
	}
	return nil
}

func (c *AppConfig) applyEnvironmentOverrides() error {
	envOverride(&c.Storage.DataDirectory, "DATA_DIR")
	envOverride(&c.Storage.TempDirectory, "HMI_TEMP_DIR")
	envOverride(&c.Storage.OutputDirectory, "HMI_OUTPUT_DIR")
	envOverride(&c.LLM.Provider, "LLM_PROVIDER")
	envOverride(&c.LLM.Model, "LLM_MODEL")
	envOverride(&c.LLM.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&c.LLM.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&c.LLM.OpenAIBaseURL, "OPENAI_BASE_URL")
	envOverride(&c.Advanced.LogLevel, "LOG_LEVEL")

	if err := envOverrideInt(&c.Server.Port, "PORT"); err != nil {
		return err
	}
	if err := envOverrideInt(&c.Processing.ScreenWorkers, "SCREEN_WORKERS"); err != nil {
		return err
	}
	return envOverrideFloat(&c.LLM.Temperature, "LLM_TEMPERATURE")
}

func (c *AppConfig) applyModelDefaults() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Model != "" {
		return
	}
	switch c.LLM.Provider {
	case ProviderAnthropic:
		c.LLM.Model = defaultAnthropicModel
	case ProviderOpenAI:
		c.LLM.Model = defaultOpenAIModel
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.TempDirectory,
		&c.Storage.OutputDirectory,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	if c.LLM.PromptDirectory != "" && !filepath.IsAbs(c.LLM.PromptDirectory) {
		c.LLM.PromptDirectory = filepath.Join(configDir, c.LLM.PromptDirectory)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// LogLevel maps advanced.log_level onto a slog level.
func (c *AppConfig) LogLevel() slog.Level {
	switch strings.ToLower(c.Advanced.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger from the configured level.
func (c *AppConfig) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: c.LogLevel(),
	}))
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.TempDirectory,
		c.Storage.OutputDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideFloat(field *float64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}
