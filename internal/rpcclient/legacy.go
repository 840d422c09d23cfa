package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
)

// legacyMethods maps call names of the older client wrappers onto wire methods
var legacyMethods = map[string]string{
	"getBalance":            MethodGetBalance,
	"getWalletBalance":      MethodGetBalance,
	"getTransaction":        MethodGetTransaction,
	"getTransactionDetails": MethodGetTransaction,
	"getBlock":              MethodGetBlock,
	"getBlockByHeight":      MethodGetBlock,
	"getLatestBlock":        MethodGetLatestBlock,
	"fetchLatestBlock":      MethodGetLatestBlock,
	"analyzeWallet":         MethodAnalyzeWallet,
	"getWalletAnalysis":     MethodAnalyzeWallet,
	"getMarketData":         MethodGetMarketData,
	"getTokenPrice":         MethodGetTokenPrice,
	"getNFTActivity":        MethodGetNFTActivity,
	"getNftActivity":        MethodGetNFTActivity,
	"getNetworkStats":       MethodGetNetworkStats,
	"getChainStats":         MethodGetNetworkStats,
}

// TranslateMethod returns the wire method for an older call name.
// Wire method names are accepted unchanged.
func TranslateMethod(name string) (string, bool) {
	if method, ok := legacyMethods[name]; ok {
		return method, true
	}
	for _, method := range legacyMethods {
		if method == name {
			return method, true
		}
	}
	return "", false
}

// Legacy exposes the call shapes of the older client wrappers on top of Client.Call
type Legacy struct {
	client *Client
}

// NewLegacy creates a Legacy adapter around c
func NewLegacy(c *Client) *Legacy {
	return &Legacy{client: c}
}

// Invoke performs the call known under an older name
func (l *Legacy) Invoke(ctx context.Context, name string, params interface{}) (json.RawMessage, error) {
	method, ok := TranslateMethod(name)
	if !ok {
		return nil, &Error{
			Kind:    KindRequest,
			Method:  name,
			Message: msgRejected,
			Err:     fmt.Errorf("unknown method %q", name),
		}
	}
	return l.client.Call(ctx, method, params)
}

// GetBalance returns the balance amount as a plain string
func (l *Legacy) GetBalance(ctx context.Context, address string) (string, error) {
	balance, err := l.client.GetBalance(ctx, address)
	if err != nil {
		return "", err
	}
	return balance.Amount, nil
}

// GetTransactionDetails returns a transaction by hash
func (l *Legacy) GetTransactionDetails(ctx context.Context, hash string) (*Transaction, error) {
	return l.client.GetTransaction(ctx, hash)
}

// FetchLatestBlock returns the chain head
func (l *Legacy) FetchLatestBlock(ctx context.Context) (*Block, error) {
	return l.client.GetLatestBlock(ctx)
}

// GetTokenPrice returns the spot price of symbol
func (l *Legacy) GetTokenPrice(ctx context.Context, symbol string) (float64, error) {
	price, err := l.client.GetTokenPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return price.Price, nil
}
