// Package events provides the in-process notification bus for moderation
// event lifecycle changes. Dispatch is synchronous and fire-and-forget: by
// the time Emit runs, the originating write has already been persisted, so a
// misbehaving subscriber must never abort the operation that triggered it.
package events

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/gigboard/community-moderation/internal/core/domain"
)

// Type names one bus event.
type Type string

const (
	// TypeEventCreated is emitted after a moderation event row is created.
	TypeEventCreated Type = "moderation.event_created"

	// TypeEventUpdated is emitted after a moderation event row is resolved
	// or otherwise updated.
	TypeEventUpdated Type = "moderation.event_updated"
)

// Handler receives the full serialized moderation event.
type Handler func(evt *domain.ModerationEvent)

// maxListeners is deliberately generous; crossing it only logs a warning so
// many same-process observers (admin pollers, websocket relays) can attach.
const maxListeners = 100

// Bus is an in-process publish/subscribe bus. Handlers run synchronously in
// registration order. There is no cross-process or durable delivery.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	total    int
	logger   *zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *zerolog.Logger) *Bus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Bus{
		handlers: make(map[Type][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for one event type. Handlers cannot be
// removed; the bus lives for the whole process.
func (b *Bus) Subscribe(t Type, h Handler) {
	if h == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[t] = append(b.handlers[t], h)
	b.total++

	if b.total > maxListeners {
		b.logger.Warn().Int("listeners", b.total).Msg("moderation bus listener count above expected capacity")
	}
}

// Emit calls every handler subscribed to t, in registration order. A panic in
// one handler is recovered and logged; remaining handlers still run.
func (b *Bus) Emit(t Type, evt *domain.ModerationEvent) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[t]))
	copy(handlers, b.handlers[t])
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(t, h, evt)
	}
}

func (b *Bus) dispatch(t Type, h Handler, evt *domain.ModerationEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Str("event_type", string(t)).Any("panic", r).Msg("moderation bus handler panicked")
		}
	}()

	h(evt)
}
