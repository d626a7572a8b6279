package state

import (
	"sync"
)

type EventType int

const (
	EventUnknown EventType = iota
	DepositProcessed
	WithdrawProcessed
	BridgePaused
	BridgeUnpaused
	ConfigUpdated
	PriceRecorded
	ReleaseCreated
)

func (e EventType) String() string {
	return [...]string{"EventUnknown", "DepositProcessed", "WithdrawProcessed", "BridgePaused", "BridgeUnpaused", "ConfigUpdated", "PriceRecorded", "ReleaseCreated"}[e]
}

// DepositEvent is published after a deposit commits.
type DepositEvent struct {
	SourceTxHash string `json:"source_tx_hash"`
	BlockHeight  uint64 `json:"block_height"`
	Recipient    string `json:"recipient"`
	Amount       uint64 `json:"amount"`
	Fee          uint64 `json:"fee"`
	Nonce        uint64 `json:"nonce"`
}

// ReleaseEvent is published when a withdrawal queues a source chain release.
type ReleaseEvent struct {
	OrderId   string `json:"order_id"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Nonce     uint64 `json:"nonce"`
}

// WithdrawEvent is published after a withdrawal commits.
type WithdrawEvent struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Fee       uint64 `json:"fee"`
	OrderId   string `json:"order_id"`
	Nonce     uint64 `json:"nonce"`
}

type EventBus struct {
	subscribers map[string][]chan interface{}
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan interface{}),
	}
}

func (eb *EventBus) Subscribe(eventType EventType, ch chan interface{}) {
	if ch == nil {
		panic("channel == nil")
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType.String()] = append(eb.subscribers[eventType.String()], ch)
}

func (eb *EventBus) Publish(eventType EventType, data interface{}) {
	eb.mu.RLock()
	subscribers, ok := eb.subscribers[eventType.String()]
	if !ok {
		eb.mu.RUnlock()
		return
	}
	originLen := len(subscribers)
	removeIndexes := make(map[int]bool)
	for i := 0; i < originLen; i++ {
		ch := subscribers[i]
		select {
		case ch <- data:
			// Success
		default:
			// If cannot receive or closed, remove the subscriber
			removeIndexes[i] = true
		}
	}
	eb.mu.RUnlock()

	if len(removeIndexes) > 0 {
		eb.mu.Lock()
		if originLen == len(eb.subscribers[eventType.String()]) {
			var newSubscribers []chan interface{}
			for index, ch := range eb.subscribers[eventType.String()] {
				if _, is := removeIndexes[index]; !is {
					newSubscribers = append(newSubscribers, ch)
				}
			}
			eb.subscribers[eventType.String()] = newSubscribers
		}
		eb.mu.Unlock()
	}
}
