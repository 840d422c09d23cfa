package events

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic_RegistrationOrder(t *testing.T) {
	topic := NewTopic[int]("numbers", zerolog.Nop())

	var order []string
	topic.On(func(n int) { order = append(order, "a") })
	topic.On(func(n int) { order = append(order, "b") })
	topic.On(func(n int) { order = append(order, "c") })

	assert.Equal(t, 3, topic.Emit(1))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTopic_PanicIsolated(t *testing.T) {
	var buf bytes.Buffer
	topic := NewTopic[string]("test", zerolog.New(&buf))

	var got []string
	topic.On(func(s string) { got = append(got, "first:"+s) })
	topic.On(func(s string) { panic("boom") })
	topic.On(func(s string) { got = append(got, "third:"+s) })

	var delivered int
	require.NotPanics(t, func() { delivered = topic.Emit("x") })
	assert.Equal(t, 2, delivered)
	assert.Equal(t, []string{"first:x", "third:x"}, got)
	assert.Contains(t, buf.String(), "event handler panicked")
	assert.Contains(t, buf.String(), "boom")
}

func TestTopic_Off(t *testing.T) {
	topic := NewTopic[int]("numbers", zerolog.Nop())

	calls := 0
	sub := topic.On(func(int) { calls++ })
	topic.Emit(1)
	assert.True(t, topic.Off(sub))
	assert.False(t, topic.Off(sub))
	topic.Emit(2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, topic.Len())
}

func TestTopic_OffForeignSubscription(t *testing.T) {
	a := NewTopic[int]("a", zerolog.Nop())
	b := NewTopic[int]("b", zerolog.Nop())

	sub := a.On(func(int) {})
	assert.False(t, b.Off(sub))
	assert.Equal(t, 1, a.Len())
	assert.False(t, b.Off(nil))
}

func TestTopic_RemoveDuringEmit(t *testing.T) {
	topic := NewTopic[int]("numbers", zerolog.Nop())

	var got []string
	var second *Subscription
	var self *Subscription
	self = topic.On(func(int) {
		got = append(got, "first")
		self.Unsubscribe()
		second.Unsubscribe()
	})
	second = topic.On(func(int) { got = append(got, "second") })
	topic.On(func(int) { got = append(got, "third") })

	topic.Emit(1)
	assert.Equal(t, []string{"first", "third"}, got)

	got = nil
	topic.Emit(2)
	assert.Equal(t, []string{"third"}, got)
}

func TestTopic_AddDuringEmit(t *testing.T) {
	topic := NewTopic[int]("numbers", zerolog.Nop())

	calls := 0
	topic.On(func(int) {
		topic.On(func(int) { calls++ })
	})

	topic.Emit(1)
	assert.Equal(t, 0, calls)
	topic.Emit(2)
	assert.Equal(t, 1, calls)
}

func TestTopic_Concurrent(t *testing.T) {
	topic := NewTopic[int]("numbers", zerolog.Nop())

	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := topic.On(func(n int) {
				mu.Lock()
				total += n
				mu.Unlock()
			})
			topic.Emit(1)
			sub.Unsubscribe()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, topic.Len())
	assert.Positive(t, total)
}

func TestNotifier_Topics(t *testing.T) {
	n := NewNotifier(zerolog.Nop())

	var status ConnectionStatus
	n.Status.On(func(s ConnectionStatus) { status = s })
	n.Status.Emit(ConnectionStatus{Connected: true, SessionID: "abc"})
	assert.True(t, status.Connected)
	assert.Equal(t, "abc", status.SessionID)

	var block BlockchainEvent
	n.Blockchain.On(func(e BlockchainEvent) { block = e })
	n.Blockchain.Emit(BlockchainEvent{
		Type:    BlockchainNewBlock,
		Payload: Payload{Data: json.RawMessage(`{"height":42}`)},
	})

	var decoded struct {
		Height int `json:"height"`
	}
	require.NoError(t, block.Decode(&decoded))
	assert.Equal(t, 42, decoded.Height)

	assert.Equal(t, EventMarket, n.Market.Name())
	assert.Equal(t, EventNFT, n.NFT.Name())
}

func TestDisconnectedEvent_Requested(t *testing.T) {
	assert.True(t, DisconnectedEvent{}.Requested())
	assert.False(t, DisconnectedEvent{Reason: "unauthorized"}.Requested())
}
