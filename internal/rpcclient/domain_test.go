package rpcclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainCalls(t *testing.T) {
	fs := newFakeServer(t)
	fs.on(MethodGetBalance, func(int) reply {
		return reply{result: Balance{Address: "sei1abc", Amount: "100", Denom: "usei"}}
	})
	fs.on(MethodGetTransaction, func(int) reply {
		return reply{result: Transaction{Hash: "0xabc", Height: 7, Status: "success"}}
	})
	fs.on(MethodGetBlock, func(int) reply { return reply{result: Block{Height: 7, TxCount: 3}} })
	fs.on(MethodGetLatestBlock, func(int) reply { return reply{result: Block{Height: 99}} })
	fs.on(MethodAnalyzeWallet, func(int) reply {
		return reply{result: WalletAnalysis{Address: "sei1abc", TransactionCount: 12, Tokens: []TokenHolding{{Denom: "usei", Amount: "5"}}}}
	})
	fs.on(MethodGetMarketData, func(int) reply { return reply{result: MarketData{Symbol: "SEI", Price: 0.42}} })
	fs.on(MethodGetTokenPrice, func(int) reply { return reply{result: TokenPrice{Symbol: "SEI", Price: 0.42}} })
	fs.on(MethodGetNFTActivity, func(int) reply {
		return reply{result: []NFTActivity{{Collection: "pals", TokenID: "1", Type: "sale"}}}
	})
	fs.on(MethodGetNetworkStats, func(int) reply { return reply{result: NetworkStats{BlockHeight: 99, TPS: 12.5}} })

	c, _ := newTestClient(t, testConfig(fs.URL))
	ctx := context.Background()

	balance, err := c.GetBalance(ctx, "sei1abc")
	require.NoError(t, err)
	assert.Equal(t, "100", balance.Amount)

	tx, err := c.GetTransaction(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(7), tx.Height)

	block, err := c.GetBlock(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, block.TxCount)

	latest, err := c.GetLatestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(99), latest.Height)

	analysis, err := c.AnalyzeWallet(ctx, "sei1abc")
	require.NoError(t, err)
	assert.Equal(t, 12, analysis.TransactionCount)
	require.Len(t, analysis.Tokens, 1)

	market, err := c.GetMarketData(ctx, "SEI")
	require.NoError(t, err)
	assert.InDelta(t, 0.42, market.Price, 1e-9)

	price, err := c.GetTokenPrice(ctx, "SEI")
	require.NoError(t, err)
	assert.InDelta(t, 0.42, price.Price, 1e-9)

	activity, err := c.GetNFTActivity(ctx, "pals", 10)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, "sale", activity[0].Type)

	stats, err := c.GetNetworkStats(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, stats.TPS, 1e-9)
}

func TestDomainCall_UnexpectedShapeIsNotCached(t *testing.T) {
	fs := newFakeServer(t)
	fs.on(MethodGetBalance, func(n int) reply {
		if n == 1 {
			return reply{result: []int{1, 2, 3}}
		}
		return reply{result: Balance{Amount: "1"}}
	})
	c, _ := newTestClient(t, testConfig(fs.URL))

	_, err := c.GetBalance(context.Background(), "sei1abc")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindServerUnavailable))

	balance, err := c.GetBalance(context.Background(), "sei1abc")
	require.NoError(t, err)
	assert.Equal(t, "1", balance.Amount)
	assert.Equal(t, 2, fs.count(MethodGetBalance))
}
