// Package config loads client settings from a TOML file.
//
// Every field has a default, so an empty or missing file is a valid
// configuration:
//
//	[api]
//	base_url = "https://api.voyageai.com/v1"
//	timeout = "0s"
//	embedding_model = "voyage-3-large"
//	rerank_model = "rerank-2"
//	input_type = ""
//	rerank_top_k = 0
//	# truncation = true
//
//	[api.breaker]
//	enabled = false
//	timeout = "30s"
//	trip_ratio = 0.5
//	min_requests = 5
//
//	[limits]
//	embedding_tokens = 3000000
//	rerank_tokens = 2000000
//	window = "1m"
//	embedding_rpm = 2000
//	rerank_rpm = 2000
//	accounting = "reserve"
//
//	[stream]
//	buffer = 16
//
//	[log]
//	level = "info"
//
// A negative token limit or RPM disables that limit.
package config

import (
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/voyagekit/errors"
	"github.com/vinayprograms/voyagekit/ratelimit"
	"github.com/vinayprograms/voyagekit/tasks"
	"github.com/vinayprograms/voyagekit/voyage"
)

// Defaults.
const (
	DefaultEmbeddingTokens = 3_000_000
	DefaultRerankTokens    = 2_000_000
	DefaultRPM             = 2000
	DefaultLogLevel        = "info"
)

// Config is the full client configuration.
type Config struct {
	API    APIConfig    `toml:"api"`
	Limits LimitsConfig `toml:"limits"`
	Stream StreamConfig `toml:"stream"`
	Log    LogConfig    `toml:"log"`
}

// APIConfig describes how to reach the service.
type APIConfig struct {
	BaseURL        string        `toml:"base_url"`
	Timeout        time.Duration `toml:"timeout"` // 0 means no client-side timeout
	EmbeddingModel string        `toml:"embedding_model"`
	RerankModel    string        `toml:"rerank_model"`
	InputType      string        `toml:"input_type"`
	RerankTopK     int           `toml:"rerank_top_k"` // 0 returns every document
	Truncation     *bool         `toml:"truncation"`   // unset leaves the service default
	Breaker        BreakerConfig `toml:"breaker"`

	// APIKey is never read from the config file; see package credentials.
	APIKey string `toml:"-"`
}

// BreakerConfig enables the transport circuit breaker.
type BreakerConfig struct {
	Enabled     bool          `toml:"enabled"`
	Timeout     time.Duration `toml:"timeout"`
	TripRatio   float64       `toml:"trip_ratio"`
	MinRequests uint32        `toml:"min_requests"`
}

// LimitsConfig sets the token windows and request pacing.
type LimitsConfig struct {
	EmbeddingTokens int           `toml:"embedding_tokens"`
	RerankTokens    int           `toml:"rerank_tokens"`
	Window          time.Duration `toml:"window"`
	EmbeddingRPM    int           `toml:"embedding_rpm"`
	RerankRPM       int           `toml:"rerank_rpm"`
	Accounting      string        `toml:"accounting"`
}

// StreamConfig sets the buffer between a stream's producer and consumer.
type StreamConfig struct {
	Buffer int `toml:"buffer"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns a configuration with every default applied.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a TOML file, applies defaults and validates the result.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.WrapWithCode(err, errors.ErrCodeInvalidInput, "failed to parse config "+path)
	}
	return finish(cfg, md)
}

// Parse is Load for a TOML document held in memory.
func Parse(data string) (Config, error) {
	var cfg Config
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, errors.WrapWithCode(err, errors.ErrCodeInvalidInput, "failed to parse config")
	}
	return finish(cfg, md)
}

func finish(cfg Config, md toml.MetaData) (Config, error) {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, errors.InvalidInput("unknown config keys: " + strings.Join(keys, ", "))
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = voyage.DefaultBaseURL
	}
	if c.API.EmbeddingModel == "" {
		c.API.EmbeddingModel = string(voyage.DefaultEmbeddingModel)
	}
	if c.API.RerankModel == "" {
		c.API.RerankModel = string(voyage.DefaultRerankModel)
	}
	if c.Limits.EmbeddingTokens == 0 {
		c.Limits.EmbeddingTokens = DefaultEmbeddingTokens
	}
	if c.Limits.RerankTokens == 0 {
		c.Limits.RerankTokens = DefaultRerankTokens
	}
	if c.Limits.Window == 0 {
		c.Limits.Window = ratelimit.DefaultWindow
	}
	if c.Limits.EmbeddingRPM == 0 {
		c.Limits.EmbeddingRPM = DefaultRPM
	}
	if c.Limits.RerankRPM == 0 {
		c.Limits.RerankRPM = DefaultRPM
	}
	if c.Limits.Accounting == "" {
		c.Limits.Accounting = string(ratelimit.AccountingReserve)
	}
	if c.Stream.Buffer == 0 {
		c.Stream.Buffer = tasks.DefaultBuffer
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if !voyage.EmbeddingModel(c.API.EmbeddingModel).Valid() {
		return errors.InvalidInput("unknown embedding model: " + c.API.EmbeddingModel)
	}
	if !voyage.RerankModel(c.API.RerankModel).Valid() {
		return errors.InvalidInput("unknown rerank model: " + c.API.RerankModel)
	}
	if !voyage.InputType(c.API.InputType).Valid() {
		return errors.InvalidInput("unknown input type: " + c.API.InputType)
	}
	if c.API.RerankTopK < 0 {
		return errors.InvalidInput("api.rerank_top_k must not be negative")
	}
	if c.API.Timeout < 0 {
		return errors.InvalidInput("api.timeout must not be negative")
	}
	if c.API.Breaker.TripRatio < 0 || c.API.Breaker.TripRatio > 1 {
		return errors.InvalidInput("api.breaker.trip_ratio must be between 0 and 1")
	}
	if c.Limits.Window < 0 {
		return errors.InvalidInput("limits.window must not be negative")
	}
	if !ratelimit.Accounting(c.Limits.Accounting).Valid() {
		return errors.InvalidInput("limits.accounting must be reserve or check, got " + c.Limits.Accounting)
	}
	if c.Stream.Buffer < 0 {
		return errors.InvalidInput("stream.buffer must not be negative")
	}
	return nil
}

// RateLimits returns the token windows for ratelimit.NewLimiter.
func (c *Config) RateLimits() ratelimit.Limits {
	return ratelimit.Limits{
		EmbeddingTokens: c.Limits.EmbeddingTokens,
		RerankTokens:    c.Limits.RerankTokens,
		Window:          c.Limits.Window,
	}
}

// RPM returns the per-pool request caps for ratelimit.NewPacer.
func (c *Config) RPM() map[ratelimit.Pool]int {
	return map[ratelimit.Pool]int{
		ratelimit.PoolEmbedding: c.Limits.EmbeddingRPM,
		ratelimit.PoolRerank:    c.Limits.RerankRPM,
	}
}

// Breaker returns the circuit breaker settings for voyage.NewBreakerTransport.
func (c *Config) Breaker() voyage.BreakerConfig {
	return voyage.BreakerConfig{
		Timeout:     c.API.Breaker.Timeout,
		TripRatio:   c.API.Breaker.TripRatio,
		MinRequests: c.API.Breaker.MinRequests,
	}
}
