package cache

import (
	"bytes"
	"encoding/json"
	"time"
)

// MethodCacheability defines how a method should be cached
type MethodCacheability int

const (
	// NotCacheable - method should never be cached
	NotCacheable MethodCacheability = iota
	// ShortLived - fast-changing data such as the chain head or market prices
	ShortLived
	// LongLived - data that rarely changes once produced, e.g. a transaction by hash
	LongLived
	// DefaultLived - cached with the configured default TTL
	DefaultLived
)

// TTLs used for the short and long lived classes
const (
	ShortTTL = 5 * time.Second
	LongTTL  = 60 * time.Second
)

// methodCacheRules maps methods to their cacheability rules.
// Methods not listed here are cached with the default TTL.
var methodCacheRules = map[string]MethodCacheability{
	// Session management never hits the cache
	"health_check": NotCacheable,
	"end_session":  NotCacheable,

	// Chain head and market data move every few seconds
	"get_latest_block":  ShortLived,
	"get_network_stats": ShortLived,
	"get_market_data":   ShortLived,
	"get_token_price":   ShortLived,
	"get_nft_activity":  ShortLived,

	// Immutable once included in a block
	"get_transaction": LongLived,
	"get_block":       LongLived,

	"get_balance":    DefaultLived,
	"analyze_wallet": DefaultLived,
}

// Rules decides per-method TTLs. It replaces a process-wide disabled list with
// an explicit value owned by one client.
type Rules struct {
	defaultTTL time.Duration
	disabled   map[string]bool
}

// NewRules creates Rules with the given default TTL and methods excluded from caching
func NewRules(defaultTTL time.Duration, disabledMethods []string) *Rules {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	disabled := make(map[string]bool, len(disabledMethods))
	for _, method := range disabledMethods {
		disabled[method] = true
	}
	return &Rules{defaultTTL: defaultTTL, disabled: disabled}
}

// IsMethodDisabled checks if a method is in the disabled list
func (r *Rules) IsMethodDisabled(method string) bool {
	return r.disabled[method]
}

// TTLFor returns the TTL for a method and whether its results may be cached at all
func (r *Rules) TTLFor(method string) (time.Duration, bool) {
	if r.disabled[method] {
		return 0, false
	}

	rule, exists := methodCacheRules[method]
	if !exists {
		rule = DefaultLived
	}

	switch rule {
	case ShortLived:
		return ShortTTL, true
	case LongLived:
		return LongTTL, true
	case DefaultLived:
		return r.defaultTTL, true
	default:
		return 0, false
	}
}

// GenerateCacheKey creates the cache key for a request: the method name plus the
// canonical JSON form of its params, so identical requests map to the same key
func GenerateCacheKey(method string, params json.RawMessage) string {
	return method + ":" + string(normalizeParams(params))
}

// normalizeParams re-encodes params with sorted object keys and no insignificant whitespace
func normalizeParams(params json.RawMessage) []byte {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []byte("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var data interface{}
	if err := dec.Decode(&data); err != nil {
		return trimmed // Return as-is if cannot parse
	}

	// encoding/json writes map keys in sorted order
	result, err := json.Marshal(data)
	if err != nil {
		return trimmed
	}

	return result
}
