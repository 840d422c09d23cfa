package stream

import (
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Deduplicator drops chain events replayed by the server, typically right after a reconnect
type Deduplicator struct {
	cache *lru.Cache[string, struct{}]
}

// NewDeduplicator creates a new Deduplicator remembering size keys
func NewDeduplicator(size int) (*Deduplicator, error) {
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &Deduplicator{cache: cache}, nil
}

// IsDuplicate reports whether the event was seen before and remembers it otherwise.
// Events without an identity are never duplicates.
func (d *Deduplicator) IsDuplicate(event string, data json.RawMessage) bool {
	key := generateKey(event, data)
	if key == "" {
		return false
	}
	if d.cache.Contains(key) {
		return true
	}
	d.cache.Add(key, struct{}{})
	return false
}

// Clear clears the deduplication cache
func (d *Deduplicator) Clear() {
	d.cache.Purge()
}

// Len returns the current cache size
func (d *Deduplicator) Len() int {
	return d.cache.Len()
}

type eventIdentity struct {
	Hash   string          `json:"hash"`
	TxHash string          `json:"txHash"`
	Height json.RawMessage `json:"height"`
}

// generateKey returns the identity of a chain event, market updates have none
func generateKey(event string, data json.RawMessage) string {
	switch event {
	case EventNewBlock, EventNewTransaction, EventNFTActivity:
	default:
		return ""
	}

	var id eventIdentity
	if err := json.Unmarshal(data, &id); err != nil {
		return ""
	}

	switch {
	case id.Hash != "":
		return event + ":" + id.Hash
	case id.TxHash != "":
		return event + ":" + id.TxHash
	case event == EventNewBlock && len(id.Height) > 0 && string(id.Height) != "null":
		return event + ":height:" + string(id.Height)
	}
	return ""
}
