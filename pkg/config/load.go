package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: FACET_SERVER_CACHE_PATH
// sets server.cache_path.
const EnvPrefix = "FACET"

// ErrInvalid is returned for configuration values that cannot work.
var ErrInvalid = errors.New("invalid configuration")

// legacyEnv maps keys to the unprefixed variables older deployments set.
var legacyEnv = map[string]string{
	"server.port":           "PORT",
	"server.cache_path":     "CACHE_PATH",
	"filter.allowlist_path": "ALLOWLIST_PATH",
	"filter.blocklist_path": "BLOCKLIST_PATH",
	"storage.bucket":        "BUCKET_NAME",
	"storage.allowlist_key": "ALLOWLIST_KEY",
}

// Load resolves the configuration from, lowest precedence first: defaults,
// the YAML file at path (optional), environment variables and whatever flags
// the caller bound on v.
func Load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, errors.Wrapf(err, "bind env %s", key)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.cache_path", d.Server.CachePath)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("feed.url", d.Feed.URL)
	v.SetDefault("feed.timeout", d.Feed.Timeout)
	v.SetDefault("feed.retry_max", d.Feed.RetryMax)
	v.SetDefault("feed.user_agent", d.Feed.UserAgent)

	v.SetDefault("filter.allowlist_path", d.Filter.AllowlistPath)
	v.SetDefault("filter.blocklist_path", d.Filter.BlocklistPath)
	v.SetDefault("filter.strip", d.Filter.Strip)
	v.SetDefault("filter.digest", d.Filter.Digest)
	v.SetDefault("filter.reconcile", d.Filter.Reconcile)

	v.SetDefault("redis.address", d.Redis.Address)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.channel", d.Redis.Channel)
	v.SetDefault("redis.allow_key", d.Redis.AllowKey)
	v.SetDefault("redis.block_key", d.Redis.BlockKey)
	v.SetDefault("redis.status_key", d.Redis.StatusKey)

	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.bucket", d.Storage.Bucket)
	v.SetDefault("storage.prefix", d.Storage.Prefix)
	v.SetDefault("storage.allowlist_key", d.Storage.AllowlistKey)
	v.SetDefault("storage.region", d.Storage.Region)
	v.SetDefault("storage.endpoint", d.Storage.Endpoint)
	v.SetDefault("storage.access_key_id", d.Storage.AccessKeyID)
	v.SetDefault("storage.secret_key", d.Storage.SecretKey)
	v.SetDefault("storage.http_url", d.Storage.HTTPURL)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
