// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	Collaborator CollaboratorConfig `mapstructure:"collaborator" yaml:"collaborator"`
	Run          RunConfig          `mapstructure:"run" yaml:"run"`
	Screen       ScreenConfig       `mapstructure:"screen" yaml:"screen"`
	Input        InputConfig        `mapstructure:"input" yaml:"input"`
	Storage      StorageConfig      `mapstructure:"storage" yaml:"storage"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// CollaboratorConfig configures the connection to the reasoning collaborator.
type CollaboratorConfig struct {
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Model             string        `mapstructure:"model" yaml:"model"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	ThinkingBudget    int           `mapstructure:"thinking_budget" yaml:"thinking_budget"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// RunConfig bounds a single agent run.
type RunConfig struct {
	// Duration is the wall-clock ceiling, checked at turn boundaries.
	Duration time.Duration `mapstructure:"duration" yaml:"duration"`
	// MaxIterations caps the number of decision turns.
	MaxIterations int `mapstructure:"max_iterations" yaml:"max_iterations"`
	// MaxAssessmentRetries is surfaced to the collaborator in its
	// instructions; the store itself never refuses an attempt.
	MaxAssessmentRetries int `mapstructure:"max_assessment_retries" yaml:"max_assessment_retries"`
	// KeepRecentViews is the number of captured views retained intact in
	// history; older ones are reduced to placeholders.
	KeepRecentViews int `mapstructure:"keep_recent_views" yaml:"keep_recent_views"`
	// StartDelay gives the operator time to foreground the platform window.
	StartDelay time.Duration `mapstructure:"start_delay" yaml:"start_delay"`
}

// ScreenConfig controls view capture.
type ScreenConfig struct {
	// MaxPixels is the API-imposed ceiling on resized image area. Captures
	// are downscaled to the largest aspect-preserving size within it, and
	// never upscaled.
	MaxPixels int `mapstructure:"max_pixels" yaml:"max_pixels"`
}

// InputConfig controls OS input pacing.
type InputConfig struct {
	// SettleDelay is the pause after each action before the follow-up
	// capture, so the view does not reflect a transitional UI state.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	// DragDuration is the length of the press-move-release movement phase.
	DragDuration time.Duration `mapstructure:"drag_duration" yaml:"drag_duration"`
	// ScrollSettle is the extra pause after scrolls; scrolled content keeps
	// animating longer than clicks do.
	ScrollSettle time.Duration `mapstructure:"scroll_settle" yaml:"scroll_settle"`
}

// StorageConfig names the durable documents in the working directory.
type StorageConfig struct {
	ProgressFile  string `mapstructure:"progress_file" yaml:"progress_file"`
	ConfusionFile string `mapstructure:"confusion_file" yaml:"confusion_file"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "coursepilot")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "coursepilot.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Collaborator --
	v.SetDefault("collaborator.model", "claude-sonnet-4-20250514")
	v.SetDefault("collaborator.endpoint", "https://api.anthropic.com/v1/messages")
	v.SetDefault("collaborator.api_timeout", "120s")
	v.SetDefault("collaborator.max_tokens", 4096)
	v.SetDefault("collaborator.thinking_budget", 2048)
	v.SetDefault("collaborator.requests_per_minute", 30.0)

	// -- Run --
	v.SetDefault("run.duration", "60m")
	v.SetDefault("run.max_iterations", 200)
	v.SetDefault("run.max_assessment_retries", 3)
	v.SetDefault("run.keep_recent_views", 3)
	v.SetDefault("run.start_delay", "5s")

	// -- Screen --
	v.SetDefault("screen.max_pixels", 1150000)

	// -- Input --
	v.SetDefault("input.settle_delay", "500ms")
	v.SetDefault("input.drag_duration", "500ms")
	v.SetDefault("input.scroll_settle", "1s")

	// -- Storage --
	v.SetDefault("storage.progress_file", "training_progress.json")
	v.SetDefault("storage.confusion_file", "confusion_log.json")
}

// Load reads configuration from the given file (or ./config.yaml when empty),
// layered under COURSEPILOT_* environment overrides and the defaults above.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("COURSEPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults plus env vars are a complete configuration.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failure here is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

const (
	minRunDuration = time.Minute
	maxRunDuration = 8 * time.Hour
	maxIterations  = 1000
)

// Validate enforces startup bounds. Any violation is fatal before the first
// loop iteration runs.
func (c *Config) Validate() error {
	if c.Collaborator.APIKey == "" {
		return fmt.Errorf("collaborator.api_key is required (set COURSEPILOT_COLLABORATOR_API_KEY)")
	}
	if !strings.HasPrefix(c.Collaborator.APIKey, "sk-ant-") {
		return fmt.Errorf("collaborator.api_key has invalid format: expected 'sk-ant-' prefix")
	}
	if c.Collaborator.Model == "" {
		return fmt.Errorf("collaborator.model is required")
	}
	if c.Collaborator.MaxTokens <= 0 {
		return fmt.Errorf("collaborator.max_tokens must be positive, got %d", c.Collaborator.MaxTokens)
	}
	if c.Collaborator.ThinkingBudget < 0 || c.Collaborator.ThinkingBudget >= c.Collaborator.MaxTokens {
		return fmt.Errorf("collaborator.thinking_budget must be in [0, max_tokens), got %d", c.Collaborator.ThinkingBudget)
	}
	if c.Collaborator.RequestsPerMinute <= 0 {
		return fmt.Errorf("collaborator.requests_per_minute must be positive, got %g", c.Collaborator.RequestsPerMinute)
	}
	if c.Collaborator.APITimeout <= 0 {
		return fmt.Errorf("collaborator.api_timeout must be positive, got %s", c.Collaborator.APITimeout)
	}

	if c.Run.Duration < minRunDuration || c.Run.Duration > maxRunDuration {
		return fmt.Errorf("run.duration must be between %s and %s, got %s", minRunDuration, maxRunDuration, c.Run.Duration)
	}
	if c.Run.MaxIterations < 1 || c.Run.MaxIterations > maxIterations {
		return fmt.Errorf("run.max_iterations must be between 1 and %d, got %d", maxIterations, c.Run.MaxIterations)
	}
	if c.Run.MaxAssessmentRetries < 1 {
		return fmt.Errorf("run.max_assessment_retries must be at least 1, got %d", c.Run.MaxAssessmentRetries)
	}
	if c.Run.KeepRecentViews < 1 {
		return fmt.Errorf("run.keep_recent_views must be at least 1, got %d", c.Run.KeepRecentViews)
	}
	if c.Run.StartDelay < 0 {
		return fmt.Errorf("run.start_delay must not be negative, got %s", c.Run.StartDelay)
	}

	if c.Screen.MaxPixels < 100_000 || c.Screen.MaxPixels > 4_000_000 {
		return fmt.Errorf("screen.max_pixels must be between 100000 and 4000000, got %d", c.Screen.MaxPixels)
	}

	if c.Input.SettleDelay < 0 || c.Input.DragDuration < 0 || c.Input.ScrollSettle < 0 {
		return fmt.Errorf("input delays must not be negative")
	}

	if c.Storage.ProgressFile == "" {
		return fmt.Errorf("storage.progress_file is required")
	}
	if c.Storage.ConfusionFile == "" {
		return fmt.Errorf("storage.confusion_file is required")
	}
	return nil
}
