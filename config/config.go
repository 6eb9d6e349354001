package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBookBufferCapacity bounds how many pre-snapshot updates a symbol
// buffers before the oldest are evicted.
const DefaultBookBufferCapacity = 200

// Overflow policies for the pre-snapshot update buffer.
const (
	OverflowEvict = "evict"
	OverflowFail  = "fail"
)

type Config struct {
	Normflow NormflowConfig `yaml:"normflow"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Book     BookConfig     `yaml:"book"`
	Channels ChannelsConfig `yaml:"channels"`
	Reader   ReaderConfig   `yaml:"reader"`
	Writer   WriterConfig   `yaml:"writer"`
}

type NormflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

// BookConfig controls order book reconstruction across all exchanges.
type BookConfig struct {
	BufferCapacity int             `yaml:"buffer_capacity"`
	OverflowPolicy string          `yaml:"overflow_policy"`
	StrictDefault  bool            `yaml:"strict_default"`
	Strict         map[string]bool `yaml:"strict"`
}

// StrictFor resolves the reconciliation policy for an exchange, falling back
// to the global default when no override exists.
func (b BookConfig) StrictFor(exchange string) bool {
	if v, ok := b.Strict[exchange]; ok {
		return v
	}
	return b.StrictDefault
}

type ChannelsConfig struct {
	Buffer int `yaml:"buffer"`
}

type ReaderConfig struct {
	Binance BinanceReaderConfig `yaml:"binance"`
}

type BinanceReaderConfig struct {
	Enabled       bool            `yaml:"enabled"`
	WSURL         string          `yaml:"ws_url"`
	Symbols       []string        `yaml:"symbols"`
	SnapshotDepth int             `yaml:"snapshot_depth"`
	Timeout       time.Duration   `yaml:"timeout"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type WriterConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Directory     string        `yaml:"directory"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	S3            S3Config      `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes ${VAR} references with environment values so
// credentials never have to live in the file itself.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// DefaultConfigPath is where the entrypoint looks when no -config flag is
// given. Production and staging deployments ship an environment specific
// file next to it, selected through APP_ENV.
const DefaultConfigPath = "config/config.yml"

var envConfigPaths = map[string]string{
	EnvironmentProduction: "config/config.production.yml",
	EnvironmentStaging:    "config/config.staging.yml",
}

// LoadConfig reads, expands and validates the configuration file at path.
// When path is the default (or empty) and APP_ENV names an environment with
// a registered config file, that file is loaded instead.
func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, DefaultConfigPath, envConfigPaths)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(expandEnv(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Normflow.Name == "" {
		c.Normflow.Name = "normflow"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		// Production-like deployments get machine-readable logs; local
		// development gets readable ones.
		if IsProductionLike(AppEnvironment()) {
			c.Logging.Format = "json"
		} else {
			c.Logging.Format = "text"
		}
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Book.BufferCapacity <= 0 {
		c.Book.BufferCapacity = DefaultBookBufferCapacity
	}
	if c.Book.OverflowPolicy == "" {
		c.Book.OverflowPolicy = OverflowEvict
	}
	if c.Channels.Buffer <= 0 {
		c.Channels.Buffer = 1024
	}
	if c.Metrics.Prometheus.Listen == "" {
		c.Metrics.Prometheus.Listen = "0.0.0.0:2112"
	}
	if c.Reader.Binance.WSURL == "" {
		c.Reader.Binance.WSURL = "wss://stream.binance.com:9443/stream"
	}
	if c.Reader.Binance.SnapshotDepth <= 0 {
		c.Reader.Binance.SnapshotDepth = 1000
	}
	if c.Reader.Binance.Timeout <= 0 {
		c.Reader.Binance.Timeout = 30 * time.Second
	}
	if c.Reader.Binance.RateLimit.RequestsPerSecond <= 0 {
		c.Reader.Binance.RateLimit.RequestsPerSecond = 5
	}
	if c.Reader.Binance.RateLimit.BurstSize <= 0 {
		c.Reader.Binance.RateLimit.BurstSize = 10
	}
	if c.Writer.BatchSize <= 0 {
		c.Writer.BatchSize = 5000
	}
	if c.Writer.FlushInterval <= 0 {
		c.Writer.FlushInterval = 30 * time.Second
	}
	if c.Writer.Directory == "" {
		c.Writer.Directory = "data"
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Book.OverflowPolicy {
	case OverflowEvict, OverflowFail:
	default:
		return fmt.Errorf("invalid book overflow_policy '%s' (want %s or %s)",
			c.Book.OverflowPolicy, OverflowEvict, OverflowFail)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging format '%s'", c.Logging.Format)
	}

	if c.Writer.S3.Enabled {
		if c.Writer.S3.Bucket == "" {
			return fmt.Errorf("writer s3 enabled but bucket is empty")
		}
		if c.Writer.S3.Region == "" {
			return fmt.Errorf("writer s3 enabled but region is empty")
		}
	}

	if c.Reader.Binance.Enabled && len(c.Reader.Binance.Symbols) == 0 {
		return fmt.Errorf("binance reader enabled but no symbols configured")
	}

	return nil
}
