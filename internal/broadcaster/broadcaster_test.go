package broadcaster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	h := NewHub()
	id, events := h.Subscribe()
	defer h.Unsubscribe(id)

	h.Publish(EventInventoryItemAdded, map[string]string{"vintage_id": "v1"})

	select {
	case evt := <-events:
		assert.Equal(t, EventInventoryItemAdded, evt.Type)
		assert.Equal(t, map[string]string{"vintage_id": "v1"}, evt.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestPublishFansOutToMultipleSubscribers(t *testing.T) {
	h := NewHub()
	id1, ch1 := h.Subscribe()
	id2, ch2 := h.Subscribe()
	defer h.Unsubscribe(id1)
	defer h.Unsubscribe(id2)

	h.Publish(EventPairingSessionCreated, "payload")

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			assert.Equal(t, EventPairingSessionCreated, evt.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out delivery")
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	id, events := h.Subscribe()
	h.Unsubscribe(id)

	h.Publish(EventInventoryItemConsumed, nil)

	_, open := <-events
	assert.False(t, open, "channel should be closed after unsubscribe")
}

func TestPublishNeverBlocksWhenSubscriberBufferIsFull(t *testing.T) {
	h := NewHub()
	id, _ := h.Subscribe()
	defer h.Unsubscribe(id)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			h.Publish(EventInventoryItemMoved, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
}

func TestSubscriberCountTracksLifecycle(t *testing.T) {
	h := NewHub()
	require.Equal(t, 0, h.SubscriberCount())

	id1, _ := h.Subscribe()
	assert.Equal(t, 1, h.SubscriberCount())

	id2, _ := h.Subscribe()
	assert.Equal(t, 2, h.SubscriberCount())

	h.Unsubscribe(id1)
	assert.Equal(t, 1, h.SubscriberCount())

	h.Unsubscribe(id2)
	assert.Equal(t, 0, h.SubscriberCount())
}
