package rpcclient

import (
	"context"
	"encoding/json"
)

// Domain methods
const (
	MethodGetBalance      = "get_balance"
	MethodGetTransaction  = "get_transaction"
	MethodGetBlock        = "get_block"
	MethodGetLatestBlock  = "get_latest_block"
	MethodAnalyzeWallet   = "analyze_wallet"
	MethodGetMarketData   = "get_market_data"
	MethodGetTokenPrice   = "get_token_price"
	MethodGetNFTActivity  = "get_nft_activity"
	MethodGetNetworkStats = "get_network_stats"
)

// Balance of one address
type Balance struct {
	Address  string  `json:"address"`
	Amount   string  `json:"amount"`
	Denom    string  `json:"denom,omitempty"`
	USDValue float64 `json:"usdValue,omitempty"`
}

// Transaction detail
type Transaction struct {
	Hash      string `json:"hash"`
	Height    int64  `json:"height"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Fee       string `json:"fee,omitempty"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Block summary
type Block struct {
	Height    int64  `json:"height"`
	Hash      string `json:"hash"`
	Time      string `json:"time"`
	Proposer  string `json:"proposer,omitempty"`
	TxCount   int    `json:"txCount"`
	GasUsed   int64  `json:"gasUsed,omitempty"`
	GasWanted int64  `json:"gasWanted,omitempty"`
}

// TokenHolding is one token position of a wallet
type TokenHolding struct {
	Denom    string  `json:"denom"`
	Amount   string  `json:"amount"`
	USDValue float64 `json:"usdValue,omitempty"`
}

// WalletAnalysis summarizes the activity of an address
type WalletAnalysis struct {
	Address          string         `json:"address"`
	Balance          string         `json:"balance"`
	TransactionCount int            `json:"transactionCount"`
	FirstSeen        string         `json:"firstSeen,omitempty"`
	LastActive       string         `json:"lastActive,omitempty"`
	RiskScore        float64        `json:"riskScore"`
	Tokens           []TokenHolding `json:"tokens,omitempty"`
	Labels           []string       `json:"labels,omitempty"`
}

// MarketData for one asset
type MarketData struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"`
	Volume24h float64 `json:"volume24h"`
	MarketCap float64 `json:"marketCap"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

// TokenPrice is the spot price of a token
type TokenPrice struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// NFTActivity is one sale, listing or transfer
type NFTActivity struct {
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
	Type       string `json:"type"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Price      string `json:"price,omitempty"`
	TxHash     string `json:"txHash,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// NetworkStats is a snapshot of chain activity
type NetworkStats struct {
	BlockHeight       int64   `json:"blockHeight"`
	BlockTime         float64 `json:"blockTime"`
	TPS               float64 `json:"tps"`
	ActiveValidators  int     `json:"activeValidators"`
	TotalTransactions int64   `json:"totalTransactions"`
}

// GetBalance returns the balance of address. The address is passed through unchecked.
func (c *Client) GetBalance(ctx context.Context, address string) (*Balance, error) {
	return callAs[Balance](ctx, c, MethodGetBalance, map[string]interface{}{"address": address})
}

// GetTransaction returns a transaction by hash
func (c *Client) GetTransaction(ctx context.Context, hash string) (*Transaction, error) {
	return callAs[Transaction](ctx, c, MethodGetTransaction, map[string]interface{}{"hash": hash})
}

// GetBlock returns the block at height
func (c *Client) GetBlock(ctx context.Context, height int64) (*Block, error) {
	return callAs[Block](ctx, c, MethodGetBlock, map[string]interface{}{"height": height})
}

// GetLatestBlock returns the chain head
func (c *Client) GetLatestBlock(ctx context.Context) (*Block, error) {
	return callAs[Block](ctx, c, MethodGetLatestBlock, nil)
}

// AnalyzeWallet returns an activity summary for address
func (c *Client) AnalyzeWallet(ctx context.Context, address string) (*WalletAnalysis, error) {
	return callAs[WalletAnalysis](ctx, c, MethodAnalyzeWallet, map[string]interface{}{"address": address})
}

// GetMarketData returns market data for symbol
func (c *Client) GetMarketData(ctx context.Context, symbol string) (*MarketData, error) {
	return callAs[MarketData](ctx, c, MethodGetMarketData, map[string]interface{}{"symbol": symbol})
}

// GetTokenPrice returns the spot price of symbol
func (c *Client) GetTokenPrice(ctx context.Context, symbol string) (*TokenPrice, error) {
	return callAs[TokenPrice](ctx, c, MethodGetTokenPrice, map[string]interface{}{"symbol": symbol})
}

// GetNFTActivity returns recent activity, optionally filtered by collection.
// limit <= 0 lets the server choose.
func (c *Client) GetNFTActivity(ctx context.Context, collection string, limit int) ([]NFTActivity, error) {
	params := map[string]interface{}{}
	if collection != "" {
		params["collection"] = collection
	}
	if limit > 0 {
		params["limit"] = limit
	}
	activity, err := callAs[[]NFTActivity](ctx, c, MethodGetNFTActivity, params)
	if err != nil {
		return nil, err
	}
	return *activity, nil
}

// GetNetworkStats returns current network statistics
func (c *Client) GetNetworkStats(ctx context.Context) (*NetworkStats, error) {
	return callAs[NetworkStats](ctx, c, MethodGetNetworkStats, nil)
}

// callAs performs Call and decodes the result into T
func callAs[T any](ctx context.Context, c *Client, method string, params interface{}, opts ...CallOption) (*T, error) {
	raw, err := c.Call(ctx, method, params, opts...)
	if err != nil {
		return nil, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		// Drop the entry so the next call fetches a fresh copy
		c.cache.Delete(cacheKey(method, params))
		c.logger.Warn().Err(err).Str("method", method).Msg("unexpected result shape")
		return nil, &Error{Kind: KindServerUnavailable, Method: method, Message: msgUnavailable, Err: err}
	}
	return &out, nil
}
