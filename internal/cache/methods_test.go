package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateCacheKey_Canonical(t *testing.T) {
	a := GenerateCacheKey("get_balance", json.RawMessage(`{"address":"sei1abc","denom":"usei"}`))
	b := GenerateCacheKey("get_balance", json.RawMessage(` { "denom": "usei",  "address": "sei1abc" } `))
	assert.Equal(t, a, b)
	assert.Equal(t, `get_balance:{"address":"sei1abc","denom":"usei"}`, a)

	assert.NotEqual(t, a, GenerateCacheKey("get_transaction", json.RawMessage(`{"address":"sei1abc","denom":"usei"}`)))
	assert.NotEqual(t, a, GenerateCacheKey("get_balance", json.RawMessage(`{"address":"sei1xyz","denom":"usei"}`)))
}

func TestGenerateCacheKey_EmptyParams(t *testing.T) {
	assert.Equal(t, "get_latest_block:{}", GenerateCacheKey("get_latest_block", nil))
	assert.Equal(t, "get_latest_block:{}", GenerateCacheKey("get_latest_block", json.RawMessage("null")))
}

func TestGenerateCacheKey_LargeNumbersKeepPrecision(t *testing.T) {
	key := GenerateCacheKey("get_block", json.RawMessage(`{"height":123456789012345678}`))
	assert.Equal(t, `get_block:{"height":123456789012345678}`, key)
}

func TestRules_TTLFor(t *testing.T) {
	r := NewRules(30*time.Second, []string{"get_market_data"})

	ttl, ok := r.TTLFor("get_latest_block")
	assert.True(t, ok)
	assert.Equal(t, ShortTTL, ttl)

	ttl, ok = r.TTLFor("get_transaction")
	assert.True(t, ok)
	assert.Equal(t, LongTTL, ttl)

	ttl, ok = r.TTLFor("get_balance")
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, ttl)

	ttl, ok = r.TTLFor("some_new_method")
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, ttl)

	_, ok = r.TTLFor("get_market_data")
	assert.False(t, ok)
	assert.True(t, r.IsMethodDisabled("get_market_data"))

	_, ok = r.TTLFor("health_check")
	assert.False(t, ok)
}
