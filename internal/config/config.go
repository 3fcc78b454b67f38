package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"ragchat/internal/domain"
)

// ServiceConfig locates the processing-and-query service.
type ServiceConfig struct {
	BaseURL     string `yaml:"base_url" validate:"required,url"`
	TokenEnv    string `yaml:"token_env" validate:"required"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"min=1"`
}

// ProcessingConfig holds the bundle a new session starts with.
type ProcessingConfig struct {
	ChunkingMethod       string `yaml:"chunking_method" validate:"oneof=standard semantic"`
	HybridSearch         bool   `yaml:"hybrid_search"`
	UseReranker          bool   `yaml:"use_reranker"`
	QueryEnhancementMode string `yaml:"query_enhancement_mode" validate:"oneof=normal expansion decomposition"`
}

// PollingConfig controls status polling while a document is processing.
type PollingConfig struct {
	IntervalMillis   int `yaml:"interval_ms" validate:"min=1"`
	MaxBackoffMillis int `yaml:"max_backoff_ms" validate:"min=1"`
	MaxWaitSecs      int `yaml:"max_wait_secs" validate:"min=-1"` // -1 polls until a terminal status
}

// LogConfig selects the log file and verbosity.
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dev   bool   `yaml:"dev"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Service    ServiceConfig    `yaml:"service"`
	Processing ProcessingConfig `yaml:"processing"`
	Polling    PollingConfig    `yaml:"polling"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

var validate = validator.New()

// Validate checks field constraints.
func (c *AppConfig) Validate() error {
	return validate.Struct(c)
}

// Token reads the bearer token from the configured environment variable.
func (c *AppConfig) Token() (string, error) {
	tok := os.Getenv(c.Service.TokenEnv)
	if tok == "" {
		return "", fmt.Errorf("missing API token in env %s", c.Service.TokenEnv)
	}
	return tok, nil
}

// Timeout is the per-request HTTP timeout.
func (c *AppConfig) Timeout() time.Duration {
	return time.Duration(c.Service.TimeoutSecs) * time.Second
}

// Bundle converts the processing section into the session's starting bundle.
func (c *AppConfig) Bundle() domain.Config {
	return domain.Config{
		ChunkingMethod:       domain.ChunkingMethod(c.Processing.ChunkingMethod),
		HybridSearch:         c.Processing.HybridSearch,
		UseReranker:          c.Processing.UseReranker,
		QueryEnhancementMode: domain.EnhancementMode(c.Processing.QueryEnhancementMode),
	}
}

func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalMillis) * time.Millisecond
}

func (c *AppConfig) MaxBackoff() time.Duration {
	return time.Duration(c.Polling.MaxBackoffMillis) * time.Millisecond
}

// MaxWait is zero when polling is unbounded.
func (c *AppConfig) MaxWait() time.Duration {
	if c.Polling.MaxWaitSecs < 0 {
		return 0
	}
	return time.Duration(c.Polling.MaxWaitSecs) * time.Second
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragchat", "config.yaml"), nil
}

func defaultLogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "ragchat.log"
	}
	return filepath.Join(dir, "ragchat", "ragchat.log")
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Service.BaseURL == "" {
		cfg.Service.BaseURL = "http://localhost:5000"
	}
	if cfg.Service.TokenEnv == "" {
		cfg.Service.TokenEnv = "RAGCHAT_TOKEN"
	}
	if cfg.Service.TimeoutSecs == 0 {
		// process-document answers only once indexing is done
		cfg.Service.TimeoutSecs = 600
	}
	if cfg.Processing.ChunkingMethod == "" {
		cfg.Processing.ChunkingMethod = string(domain.ChunkingStandard)
	}
	if cfg.Processing.QueryEnhancementMode == "" {
		cfg.Processing.QueryEnhancementMode = string(domain.EnhancementNormal)
	}
	if cfg.Polling.IntervalMillis == 0 {
		cfg.Polling.IntervalMillis = 2000
	}
	if cfg.Polling.MaxBackoffMillis == 0 {
		cfg.Polling.MaxBackoffMillis = 30000
	}
	if cfg.Polling.MaxWaitSecs == 0 {
		cfg.Polling.MaxWaitSecs = 1800
	}
	if cfg.Log.File == "" {
		cfg.Log.File = defaultLogPath()
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
