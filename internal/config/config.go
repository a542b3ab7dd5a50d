// Package config loads and validates the council pipeline's configuration:
// backend endpoints, per-stage enable flags, parallelism, timeouts, cache,
// and retry policy (spec §6).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BackendConfig configures one outbound model backend (spec §6).
type BackendConfig struct {
	Name    string `yaml:"name" json:"name"`
	BaseURL string `yaml:"base_url" json:"base_url"`
	APIKey  string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Model   string `yaml:"model,omitempty" json:"model,omitempty"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

// StageConfig enumerates which invokers are enabled for Stage-1 and Review,
// and which parallelism flags apply.
type StageConfig struct {
	Stage1Local        bool `yaml:"stage1_local" json:"stage1_local"`
	Stage1Hosted       bool `yaml:"stage1_hosted" json:"stage1_hosted"`
	ReviewerA          bool `yaml:"reviewer_a" json:"reviewer_a"`
	ReviewerB          bool `yaml:"reviewer_b" json:"reviewer_b"`
	Chairman           bool `yaml:"chairman" json:"chairman"`
	Stage1Parallel     bool `yaml:"stage1_parallel" json:"stage1_parallel"`
	ReviewersParallel  bool `yaml:"reviewers_parallel" json:"reviewers_parallel"`
}

// CacheConfig configures the response cache (spec §4.7).
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	TTL       int    `yaml:"ttl" json:"ttl"` // seconds
	Directory string `yaml:"directory" json:"directory"`
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
	RedisDB   int    `yaml:"redis_db" json:"redis_db"`
}

// RetryConfig holds the advisory retry settings. They are validated and
// exposed through RetryDelay(), but no invoker reads them: invoker calls
// are made once and are not retried on any kind of failure.
type RetryConfig struct {
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	RetryDelay int `yaml:"retry_delay" json:"retry_delay"` // seconds
}

// TimeoutConfig configures request- and call-level deadlines.
type TimeoutConfig struct {
	RequestTimeout int `yaml:"request_timeout" json:"request_timeout"` // seconds
	PerCallTimeout int `yaml:"per_call_timeout" json:"per_call_timeout"` // seconds
}

// Config is the complete orchestrator configuration.
type Config struct {
	LocalCompletion BackendConfig `yaml:"local_completion" json:"local_completion"`
	Hosted          BackendConfig `yaml:"hosted" json:"hosted"`
	HostedChat      BackendConfig `yaml:"hosted_chat" json:"hosted_chat"`

	Stages  StageConfig   `yaml:"stages" json:"stages"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Retry   RetryConfig   `yaml:"retry" json:"retry"`
	Timeout TimeoutConfig `yaml:"timeout" json:"timeout"`

	// ParallelStage1Global and ParallelReviewersGlobal are the process-wide
	// parallelism flags; the effective decision for a request is this flag
	// AND options.EnableParallel (spec §4.2/§4.4).
	ParallelStage1Global    bool `yaml:"parallel_stage1_global" json:"parallel_stage1_global"`
	ParallelReviewersGlobal bool `yaml:"parallel_reviewers_global" json:"parallel_reviewers_global"`
}

// Default returns the conventional default configuration.
func Default() *Config {
	return &Config{
		LocalCompletion: BackendConfig{Name: "stage1-local", BaseURL: "http://localhost:8001", Enabled: true},
		Hosted:          BackendConfig{Name: "stage1-hosted", BaseURL: "https://api-inference.huggingface.co/models", Model: "EleutherAI/gpt-neo-20b", Enabled: true},
		HostedChat:      BackendConfig{Name: "chairman", BaseURL: "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-pro:generateContent", Model: "gemini-1.5-pro", Enabled: true},
		Stages: StageConfig{
			Stage1Local:       true,
			Stage1Hosted:      true,
			ReviewerA:         true,
			ReviewerB:         true,
			Chairman:          true,
			Stage1Parallel:    true,
			ReviewersParallel: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			TTL:       3600,
			Directory: "./cache",
			RedisAddr: "localhost:6379",
		},
		Retry: RetryConfig{MaxRetries: 3, RetryDelay: 2},
		Timeout: TimeoutConfig{
			RequestTimeout: 120,
			PerCallTimeout: 60,
		},
		ParallelStage1Global:    true,
		ParallelReviewersGlobal: true,
	}
}

// Load reads a YAML configuration file, applies it over Default(), and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate performs comprehensive validation of the orchestrator
// configuration.
func (c *Config) Validate() error {
	if c.Timeout.RequestTimeout <= 0 {
		return fmt.Errorf("timeout.request_timeout must be positive, got %d", c.Timeout.RequestTimeout)
	}
	if c.Timeout.PerCallTimeout <= 0 {
		return fmt.Errorf("timeout.per_call_timeout must be positive, got %d", c.Timeout.PerCallTimeout)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when cache is enabled, got %d", c.Cache.TTL)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be non-negative, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.RetryDelay < 0 {
		return fmt.Errorf("retry.retry_delay must be non-negative, got %d", c.Retry.RetryDelay)
	}
	if !c.Stages.Stage1Local && !c.Stages.Stage1Hosted {
		return fmt.Errorf("at least one Stage-1 invoker (stage1_local or stage1_hosted) must be enabled")
	}
	if !c.Stages.ReviewerA && !c.Stages.ReviewerB {
		return fmt.Errorf("at least one reviewer (reviewer_a or reviewer_b) must be enabled")
	}
	return nil
}

// RequestTimeout returns the configured request deadline as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout.RequestTimeout) * time.Second
}

// PerCallTimeout returns the configured per-invoker-call deadline.
func (c *Config) PerCallTimeout() time.Duration {
	return time.Duration(c.Timeout.PerCallTimeout) * time.Second
}

// CacheTTL returns the configured cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}

// RetryDelay returns the configured advisory retry backoff.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Retry.RetryDelay) * time.Second
}
