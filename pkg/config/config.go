package config

import (
	"strconv"
	"time"

	"github.com/pkg/errors"

	"facet/pkg/engine"
)

// Config holds the configuration for a facet instance.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Feed    FeedConfig    `mapstructure:"feed" yaml:"feed"`
	Filter  FilterConfig  `mapstructure:"filter" yaml:"filter"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	// Addr is the listen address. When empty the server listens on Port.
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	Port            int           `mapstructure:"port" yaml:"port"`
	CachePath       string        `mapstructure:"cache_path" yaml:"cache_path"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ListenAddr returns the address the HTTP server binds.
func (s ServerConfig) ListenAddr() string {
	if s.Addr != "" {
		return s.Addr
	}
	return ":" + strconv.Itoa(s.Port)
}

type FeedConfig struct {
	URL       string        `mapstructure:"url" yaml:"url"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RetryMax  int           `mapstructure:"retry_max" yaml:"retry_max"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
}

type FilterConfig struct {
	AllowlistPath string `mapstructure:"allowlist_path" yaml:"allowlist_path"`
	BlocklistPath string `mapstructure:"blocklist_path" yaml:"blocklist_path"`
	Strip         bool   `mapstructure:"strip" yaml:"strip"`
	Digest        string `mapstructure:"digest" yaml:"digest"`
	Reconcile     bool   `mapstructure:"reconcile" yaml:"reconcile"`
}

// Rewrite returns the rewrite mode selected by Strip.
func (f FilterConfig) Rewrite() engine.RewriteMode {
	if f.Strip {
		return engine.Strip
	}
	return engine.Preserve
}

type RedisConfig struct {
	// Address enables the Redis control plane when set.
	Address   string `mapstructure:"address" yaml:"address"`
	Password  string `mapstructure:"password" yaml:"password"`
	DB        int    `mapstructure:"db" yaml:"db"`
	Channel   string `mapstructure:"channel" yaml:"channel"` // PubSub channel name
	AllowKey  string `mapstructure:"allow_key" yaml:"allow_key"`
	BlockKey  string `mapstructure:"block_key" yaml:"block_key"`
	StatusKey string `mapstructure:"status_key" yaml:"status_key"`
}

// Storage backends.
const (
	BackendNone = "none"
	BackendS3   = "s3"
	BackendHTTP = "http"
)

type StorageConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`

	Bucket       string `mapstructure:"bucket" yaml:"bucket"`
	Prefix       string `mapstructure:"prefix" yaml:"prefix"`
	AllowlistKey string `mapstructure:"allowlist_key" yaml:"allowlist_key"`
	Region       string `mapstructure:"region" yaml:"region"`
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID  string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretKey    string `mapstructure:"secret_key" yaml:"secret_key"`

	HTTPURL     string            `mapstructure:"http_url" yaml:"http_url"`
	HTTPHeaders map[string]string `mapstructure:"http_headers" yaml:"http_headers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			CachePath:       "/tmp/versions.filtered",
			ShutdownTimeout: 30 * time.Second,
		},
		Feed: FeedConfig{
			URL:       "https://index.rubygems.org/versions",
			Timeout:   5 * time.Minute,
			RetryMax:  4,
			UserAgent: "facet",
		},
		Filter: FilterConfig{
			Digest: string(engine.SHA256),
		},
		Redis: RedisConfig{
			Channel:   "facet:updates",
			AllowKey:  "facet:allowlist",
			BlockKey:  "facet:blocklist",
			StatusKey: "facet:status",
		},
		Storage: StorageConfig{
			Backend: BackendNone,
			Bucket:  "rubygems-filtered",
			Prefix:  "versions",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the values that can be wrong independently of the
// environment.
func (c *Config) Validate() error {
	if _, err := engine.ParseDigestAlgorithm(c.Filter.Digest); err != nil {
		return errors.WithMessage(err, "filter.digest")
	}
	switch c.Storage.Backend {
	case BackendNone:
	case BackendS3:
		if c.Storage.Bucket == "" {
			return errors.Wrap(ErrInvalid, "storage.bucket is required for the s3 backend")
		}
	case BackendHTTP:
		if c.Storage.HTTPURL == "" {
			return errors.Wrap(ErrInvalid, "storage.http_url is required for the http backend")
		}
	default:
		return errors.Wrapf(ErrInvalid, "storage.backend %q", c.Storage.Backend)
	}
	if c.Server.Addr == "" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return errors.Wrapf(ErrInvalid, "server.port %d", c.Server.Port)
	}
	if c.Server.CachePath == "" {
		return errors.Wrap(ErrInvalid, "server.cache_path is required")
	}
	return nil
}
