// Package broadcaster implements the Realtime Broadcaster: an in-process
// pub/sub hub that fans out domain events to subscribed listeners on a
// best-effort basis.
package broadcaster

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cellarworks/cellar-intel/infrastructure/logging"
)

// EventType enumerates the recognized realtime event kinds.
type EventType string

const (
	EventInventoryItemAdded      EventType = "inventory.item_added"
	EventInventoryItemConsumed   EventType = "inventory.item_consumed"
	EventInventoryItemMoved      EventType = "inventory.item_moved"
	EventInventoryItemReserved   EventType = "inventory.item_reserved"
	EventPairingSessionCreated   EventType = "pairing.session_created"
	EventPairingFeedbackReceived EventType = "pairing.feedback_received"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
	TS   time.Time   `json:"ts"`
}

const subscriberBuffer = 32

type subscriber struct {
	ch chan Event
}

// Hub is a mutex-protected subscriber registry with non-blocking,
// best-effort fan-out: a subscriber whose channel is full is skipped and
// the drop is logged, never propagated to the publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	logger      *logging.Logger
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*subscriber),
		logger:      logging.NewFromEnv("broadcaster"),
	}
}

// Subscribe registers a new listener and returns its stable id and receive
// channel. Callers must eventually call Unsubscribe(id).
func (h *Hub) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	h.subscribers[id] = sub
	h.mu.Unlock()

	return id, sub.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	if ok {
		close(sub.ch)
	}
}

// Publish fans an event out to every current subscriber. Sends never block:
// a subscriber whose buffer is full drops the event.
func (h *Hub) Publish(eventType EventType, data interface{}) {
	event := Event{Type: eventType, Data: data, TS: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, sub := range h.subscribers {
		select {
		case sub.ch <- event:
		default:
			h.logger.WithFields(map[string]interface{}{
				"subscriber_id": id,
				"event_type":    string(eventType),
			}).Warn("broadcaster dropped event: subscriber buffer full")
		}
	}
}

// SubscriberCount reports the current number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
