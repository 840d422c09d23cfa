package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. SEIDASH_SERVER_URL
const EnvPrefix = "SEIDASH"

// Load reads the configuration file (if any) and environment overrides.
// An empty path loads defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with every option at its default value
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			MaxRetries:           DefaultMaxRetries,
			RetryDelayMs:         DefaultRetryDelayMs,
			MaxReconnectAttempts: DefaultMaxReconnectAttempts,
			PingIntervalMs:       DefaultPingIntervalMs,
		},
	}
	applyDefaults(cfg)
	return cfg
}

// setDefaults registers every recognized key so that env overrides resolve
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.url", DefaultServerURL)
	v.SetDefault("server.wsUrl", "")
	v.SetDefault("server.timeoutMs", DefaultTimeoutMs)
	v.SetDefault("server.maxRetries", DefaultMaxRetries)
	v.SetDefault("server.retryDelayMs", DefaultRetryDelayMs)
	v.SetDefault("server.maxReconnectAttempts", DefaultMaxReconnectAttempts)
	v.SetDefault("server.reconnectIntervalMs", DefaultReconnectIntervalMs)
	v.SetDefault("server.pingIntervalMs", DefaultPingIntervalMs)
	v.SetDefault("cache.ttlMs", DefaultCacheTTLMs)
	v.SetDefault("cache.maxSize", DefaultCacheMaxSize)
	v.SetDefault("cache.disabledMethods", []string{})
	v.SetDefault("rateLimit.maxRequestsPerMinute", DefaultMaxRequestsPerMinute)
	v.SetDefault("debug", false)
	v.SetDefault("logLevel", DefaultLogLevel)
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Server.URL == "" {
		cfg.Server.URL = DefaultServerURL
	}
	if cfg.Server.TimeoutMs == 0 {
		cfg.Server.TimeoutMs = DefaultTimeoutMs
	}
	// MaxRetries, RetryDelayMs and MaxReconnectAttempts accept an explicit 0,
	// so they are only defaulted by Load via viper
	if cfg.Server.ReconnectIntervalMs == 0 {
		cfg.Server.ReconnectIntervalMs = DefaultReconnectIntervalMs
	}
	if cfg.Cache.TTLMs == 0 {
		cfg.Cache.TTLMs = DefaultCacheTTLMs
	}
	if cfg.Cache.MaxSize == 0 {
		cfg.Cache.MaxSize = DefaultCacheMaxSize
	}
	if cfg.RateLimit.MaxRequestsPerMinute == 0 {
		cfg.RateLimit.MaxRequestsPerMinute = DefaultMaxRequestsPerMinute
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for errors
func Validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed '%s' check", fieldPath(fe.Namespace()), fe.Tag())
		}
		return err
	}

	if !strings.HasPrefix(cfg.Server.URL, "http://") && !strings.HasPrefix(cfg.Server.URL, "https://") {
		return fmt.Errorf("server.url must use http or https")
	}

	if cfg.Server.WSURL != "" &&
		!strings.HasPrefix(cfg.Server.WSURL, "ws://") && !strings.HasPrefix(cfg.Server.WSURL, "wss://") {
		return fmt.Errorf("server.wsUrl must use ws or wss")
	}

	return nil
}

// fieldPath turns "Config.Server.TimeoutMs" into "Server.TimeoutMs"
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
