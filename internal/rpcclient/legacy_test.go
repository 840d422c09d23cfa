package rpcclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateMethod(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"getBalance", MethodGetBalance, true},
		{"getTransactionDetails", MethodGetTransaction, true},
		{"fetchLatestBlock", MethodGetLatestBlock, true},
		{"getTokenPrice", MethodGetTokenPrice, true},
		{MethodGetNetworkStats, MethodGetNetworkStats, true},
		{"sendTelegramAlert", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TranslateMethod(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLegacy_UsesClientCall(t *testing.T) {
	fs := newFakeServer(t)
	fs.on(MethodGetBalance, func(int) reply { return reply{result: Balance{Amount: "250"}} })
	fs.on(MethodGetTokenPrice, func(int) reply { return reply{result: TokenPrice{Symbol: "SEI", Price: 0.5}} })
	fs.on(MethodGetLatestBlock, func(int) reply { return reply{result: Block{Height: 10}} })

	c, _ := newTestClient(t, testConfig(fs.URL))
	legacy := NewLegacy(c)
	ctx := context.Background()

	amount, err := legacy.GetBalance(ctx, "sei1abc")
	require.NoError(t, err)
	assert.Equal(t, "250", amount)

	// Shares the cache with the typed call
	raw, err := legacy.Invoke(ctx, "getWalletBalance", map[string]interface{}{"address": "sei1abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"","amount":"250"}`, string(raw))
	assert.Equal(t, 1, fs.count(MethodGetBalance))

	price, err := legacy.GetTokenPrice(ctx, "SEI")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, price, 1e-9)

	block, err := legacy.FetchLatestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), block.Height)

	_, err = legacy.Invoke(ctx, "doSomethingElse", nil)
	assert.True(t, IsKind(err, KindRequest))
}
