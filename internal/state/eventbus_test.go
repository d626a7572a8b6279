package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDelivers(t *testing.T) {
	eb := NewEventBus()
	ch := make(chan interface{}, 1)
	eb.Subscribe(DepositProcessed, ch)

	event := DepositEvent{Recipient: "alice", Amount: 100, Nonce: 1}
	eb.Publish(DepositProcessed, event)

	select {
	case got := <-ch:
		assert.Equal(t, event, got)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestPublishMultipleSubscribers(t *testing.T) {
	eb := NewEventBus()
	ch1 := make(chan interface{}, 1)
	ch2 := make(chan interface{}, 1)
	eb.Subscribe(BridgePaused, ch1)
	eb.Subscribe(BridgePaused, ch2)

	eb.Publish(BridgePaused, "paused")

	assert.Equal(t, "paused", <-ch1)
	assert.Equal(t, "paused", <-ch2)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	eb := NewEventBus()
	// must not block or panic
	eb.Publish(ConfigUpdated, "noop")
}

func TestPublishDoesNotFilterByType(t *testing.T) {
	eb := NewEventBus()
	ch := make(chan interface{}, 1)
	eb.Subscribe(DepositProcessed, ch)

	eb.Publish(WithdrawProcessed, "other")

	select {
	case <-ch:
		t.Fatal("subscriber received an event type it never subscribed to")
	default:
	}
}

func TestPublishPrunesFullSubscriber(t *testing.T) {
	eb := NewEventBus()
	full := make(chan interface{}, 1)
	full <- "stuck"
	live := make(chan interface{}, 2)
	eb.Subscribe(ReleaseCreated, full)
	eb.Subscribe(ReleaseCreated, live)

	eb.Publish(ReleaseCreated, "first")
	eb.Publish(ReleaseCreated, "second")

	// the saturated channel was dropped after the first publish
	require.Len(t, eb.subscribers[ReleaseCreated.String()], 1)
	assert.Equal(t, "first", <-live)
	assert.Equal(t, "second", <-live)
}

func TestSubscribeNilPanics(t *testing.T) {
	eb := NewEventBus()
	assert.Panics(t, func() { eb.Subscribe(DepositProcessed, nil) })
}
