package config

import "time"

// Config represents the client configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server" json:"server"`
	Cache     CacheConfig     `mapstructure:"cache" json:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit" json:"rateLimit"`
	Debug     bool            `mapstructure:"debug" json:"debug"`
	LogLevel  string          `mapstructure:"logLevel" json:"logLevel" validate:"oneof=debug info warn error"`
}

// ServerConfig describes the remote RPC service
type ServerConfig struct {
	URL                  string `mapstructure:"url" json:"url" validate:"required,url"`
	WSURL                string `mapstructure:"wsUrl" json:"wsUrl" validate:"omitempty,url"`
	TimeoutMs            int    `mapstructure:"timeoutMs" json:"timeoutMs" validate:"gt=0"`
	MaxRetries           int    `mapstructure:"maxRetries" json:"maxRetries" validate:"gte=0"`
	RetryDelayMs         int    `mapstructure:"retryDelayMs" json:"retryDelayMs" validate:"gte=0"`
	MaxReconnectAttempts int    `mapstructure:"maxReconnectAttempts" json:"maxReconnectAttempts" validate:"gte=0"` // 0 - one handshake per call, unlimited stream redials
	ReconnectIntervalMs  int    `mapstructure:"reconnectIntervalMs" json:"reconnectIntervalMs" validate:"gte=0"`   // ms - event stream redial interval
	PingIntervalMs       int    `mapstructure:"pingIntervalMs" json:"pingIntervalMs" validate:"gte=0"`             // ms - 0 disables stream keepalive pings
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	TTLMs           int      `mapstructure:"ttlMs" json:"ttlMs" validate:"gt=0"`
	MaxSize         int      `mapstructure:"maxSize" json:"maxSize" validate:"gt=0"`
	DisabledMethods []string `mapstructure:"disabledMethods" json:"disabledMethods"` // methods to exclude from caching
}

// RateLimitConfig represents the sliding window admission ceiling
type RateLimitConfig struct {
	MaxRequestsPerMinute int `mapstructure:"maxRequestsPerMinute" json:"maxRequestsPerMinute" validate:"gt=0"`
}

// Default values
const (
	DefaultServerURL            = "http://localhost:3001/api/rpc"
	DefaultTimeoutMs            = 15000
	DefaultMaxRetries           = 3
	DefaultRetryDelayMs         = 1000
	DefaultMaxReconnectAttempts = 3
	DefaultReconnectIntervalMs  = 5000
	DefaultPingIntervalMs       = 30000
	DefaultCacheTTLMs           = 30000
	DefaultCacheMaxSize         = 1000
	DefaultMaxRequestsPerMinute = 100
	DefaultLogLevel             = "info"
)

// GetTimeoutDuration returns the per-attempt request timeout
func (c *ServerConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// GetRetryDelayDuration returns the base retry delay
func (c *ServerConfig) GetRetryDelayDuration() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// GetReconnectIntervalDuration returns the event stream redial interval
func (c *ServerConfig) GetReconnectIntervalDuration() time.Duration {
	return time.Duration(c.ReconnectIntervalMs) * time.Millisecond
}

// GetPingIntervalDuration returns the event stream ping interval
func (c *ServerConfig) GetPingIntervalDuration() time.Duration {
	return time.Duration(c.PingIntervalMs) * time.Millisecond
}

// IsStreamEnabled returns true if an event stream endpoint is configured
func (c *ServerConfig) IsStreamEnabled() bool {
	return c.WSURL != ""
}

// GetTTLDuration returns cache TTL as time.Duration
func (c *CacheConfig) GetTTLDuration() time.Duration {
	return time.Duration(c.TTLMs) * time.Millisecond
}

// GetWindowDuration returns the rate limit window length
func (c *RateLimitConfig) GetWindowDuration() time.Duration {
	return time.Minute
}

// EffectiveLogLevel returns the log level, forced to debug when debug is set
func (c *Config) EffectiveLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}
