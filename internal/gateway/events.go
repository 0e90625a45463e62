package gateway

import (
	"sync"

	"stockwatch/internal/model"
)

// BufferedEvent is one broadcast trigger with its hub sequence number.
type BufferedEvent struct {
	Seq   int64              `json:"seq"`
	Event model.TriggerEvent `json:"event"`
}

// EventBuffer is a fixed-size circular buffer of recent trigger events.
// Clients that reconnect (and the /api/v1/events endpoint) read from it
// to backfill what they missed.
//
// Thread-safe for concurrent writes and reads.
type EventBuffer struct {
	mu   sync.RWMutex
	buf  []BufferedEvent
	cap  int
	pos  int // next write position
	full bool
	seq  int64
}

// NewEventBuffer creates a buffer with the given capacity.
func NewEventBuffer(capacity int) *EventBuffer {
	if capacity <= 0 {
		capacity = 500
	}
	return &EventBuffer{
		buf: make([]BufferedEvent, capacity),
		cap: capacity,
	}
}

// Push appends an event, overwriting the oldest entry when full, and
// returns the sequence number it was assigned.
func (b *EventBuffer) Push(event model.TriggerEvent) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	b.buf[b.pos] = BufferedEvent{Seq: b.seq, Event: event}
	b.pos = (b.pos + 1) % b.cap
	if b.pos == 0 && !b.full {
		b.full = true
	}
	return b.seq
}

// Since returns all buffered events with seq > after, oldest first.
func (b *EventBuffer) Since(after int64) []BufferedEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []BufferedEvent
	count := b.len()
	for i := 0; i < count; i++ {
		e := b.buf[b.index(i)]
		if e.Seq > after {
			result = append(result, e)
		}
	}
	return result
}

// Recent returns up to limit most recent events, oldest first.
func (b *EventBuffer) Recent(limit int) []BufferedEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := b.len()
	if limit > 0 && limit < count {
		start := count - limit
		result := make([]BufferedEvent, 0, limit)
		for i := start; i < count; i++ {
			result = append(result, b.buf[b.index(i)])
		}
		return result
	}
	result := make([]BufferedEvent, 0, count)
	for i := 0; i < count; i++ {
		result = append(result, b.buf[b.index(i)])
	}
	return result
}

// Seq returns the last assigned sequence number.
func (b *EventBuffer) Seq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}

// Len returns the number of buffered events.
func (b *EventBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.len()
}

func (b *EventBuffer) len() int {
	if b.full {
		return b.cap
	}
	return b.pos
}

// index converts a logical index (0 = oldest) to a physical one.
func (b *EventBuffer) index(logical int) int {
	if b.full {
		return (b.pos + logical) % b.cap
	}
	return logical
}
