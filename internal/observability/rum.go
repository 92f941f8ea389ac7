// Package observability implements the RUM (real-user-monitoring) ingestion
// buffer: a bounded in-memory ring with 24h retention, optionally mirrored
// to a durable sink.
package observability

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cellarworks/cellar-intel/infrastructure/metrics"
	"github.com/cellarworks/cellar-intel/internal/persistence"
)

// retentionWindow bounds how long an event stays in the in-memory ring.
// spec.md §9's durability Open Question resolves in-memory as the primary
// store; persistence.RUMRepo is an optional best-effort durable mirror.
const retentionWindow = 24 * time.Hour

// Event is one ingested real-user-monitoring datapoint.
type Event struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Buffer is a bounded, mutex-protected ring of recent RUM events.
type Buffer struct {
	mu       sync.Mutex
	events   []Event
	capacity int
	durable  *persistence.RUMRepo
	metrics  *metrics.Metrics
	service  string
}

// NewBuffer constructs a Buffer holding up to capacity events. durable may
// be nil, meaning events are kept in-memory only.
func NewBuffer(capacity int, durable *persistence.RUMRepo, m *metrics.Metrics, service string) *Buffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Buffer{
		capacity: capacity,
		durable:  durable,
		metrics:  m,
		service:  service,
	}
}

// Ingest records a RUM event, evicting expired and, if still over capacity,
// oldest events. Errors writing to the optional durable sink are logged via
// the outcome label on the RUM metric and never propagated.
func (b *Buffer) Ingest(ctx context.Context, kind string, payload json.RawMessage) Event {
	event := Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}

	b.mu.Lock()
	b.events = append(b.events, event)
	b.evictLocked()
	b.mu.Unlock()

	outcome := "buffered"
	if b.durable != nil {
		if err := b.durable.Insert(ctx, kind, string(payload), event.OccurredAt); err != nil {
			outcome = "durable_write_failed"
		} else {
			outcome = "persisted"
		}
	}
	if b.metrics != nil {
		b.metrics.RecordRUMEvent(b.service, kind, outcome)
	}
	return event
}

// evictLocked drops expired events and, if still over capacity, the oldest
// surviving events. Callers must hold b.mu.
func (b *Buffer) evictLocked() {
	cutoff := time.Now().Add(-retentionWindow)
	live := b.events[:0]
	for _, e := range b.events {
		if e.OccurredAt.After(cutoff) {
			live = append(live, e)
		}
	}
	b.events = live

	if len(b.events) > b.capacity {
		b.events = append([]Event{}, b.events[len(b.events)-b.capacity:]...)
	}
}

// Recent returns a snapshot of buffered events, most recent last, optionally
// filtered by kind (empty string matches all kinds).
func (b *Buffer) Recent(kind string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Event, 0, len(b.events))
	for _, e := range b.events {
		if kind == "" || e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the current buffered event count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
