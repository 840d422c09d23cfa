package events

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Event names
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventStatus       = "status"
	EventBlockchain   = "blockchainEvent"
	EventMarket       = "marketUpdate"
	EventNFT          = "nftActivity"
)

// ConnectedEvent is emitted after a session has been established
type ConnectedEvent struct {
	SessionID string    `json:"sessionId"`
	At        time.Time `json:"at"`
}

// DisconnectedEvent is emitted when a session ends.
// Reason is empty for a requested disconnect.
type DisconnectedEvent struct {
	SessionID string    `json:"sessionId,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// Requested returns true if the disconnect was asked for by the caller
func (e DisconnectedEvent) Requested() bool {
	return e.Reason == ""
}

// ConnectionStatus is the externally visible connection state
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	SessionID string `json:"sessionId,omitempty"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"lastError,omitempty"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// Payload is the raw body of a pushed domain event
type Payload struct {
	Data       json.RawMessage `json:"data"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// Decode unmarshals the event data into v
func (p Payload) Decode(v interface{}) error {
	if len(p.Data) == 0 {
		return nil
	}
	return json.Unmarshal(p.Data, v)
}

// BlockchainEventType distinguishes chain events
type BlockchainEventType string

const (
	BlockchainNewBlock       BlockchainEventType = "newBlock"
	BlockchainNewTransaction BlockchainEventType = "newTransaction"
)

// BlockchainEvent is a new block or transaction pushed by the server
type BlockchainEvent struct {
	Type BlockchainEventType `json:"type"`
	Payload
}

// MarketUpdate is a pushed market data change
type MarketUpdate struct {
	Payload
}

// NFTActivity is a pushed NFT sale, listing or transfer
type NFTActivity struct {
	Payload
}

// Notifier holds the topics a client publishes on
type Notifier struct {
	Connected    *Topic[ConnectedEvent]
	Disconnected *Topic[DisconnectedEvent]
	Status       *Topic[ConnectionStatus]
	Blockchain   *Topic[BlockchainEvent]
	Market       *Topic[MarketUpdate]
	NFT          *Topic[NFTActivity]
}

// NewNotifier creates a Notifier with empty topics
func NewNotifier(logger zerolog.Logger) *Notifier {
	logger = logger.With().Str("component", "events").Logger()
	return &Notifier{
		Connected:    NewTopic[ConnectedEvent](EventConnected, logger),
		Disconnected: NewTopic[DisconnectedEvent](EventDisconnected, logger),
		Status:       NewTopic[ConnectionStatus](EventStatus, logger),
		Blockchain:   NewTopic[BlockchainEvent](EventBlockchain, logger),
		Market:       NewTopic[MarketUpdate](EventMarket, logger),
		NFT:          NewTopic[NFTActivity](EventNFT, logger),
	}
}
