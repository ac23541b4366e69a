package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gigboard/community-moderation/internal/core/domain"
)

func TestBusDeliversInRegistrationOrder(t *testing.T) {
	bus := NewBus(nil)

	var order []int

	bus.Subscribe(TypeEventCreated, func(_ *domain.ModerationEvent) { order = append(order, 1) })
	bus.Subscribe(TypeEventCreated, func(_ *domain.ModerationEvent) { order = append(order, 2) })
	bus.Subscribe(TypeEventCreated, func(_ *domain.ModerationEvent) { order = append(order, 3) })

	bus.Emit(TypeEventCreated, &domain.ModerationEvent{ID: "ev-1"})

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestBusTypeIsolation(t *testing.T) {
	bus := NewBus(nil)

	var created, updated int

	bus.Subscribe(TypeEventCreated, func(_ *domain.ModerationEvent) { created++ })
	bus.Subscribe(TypeEventUpdated, func(_ *domain.ModerationEvent) { updated++ })

	bus.Emit(TypeEventCreated, &domain.ModerationEvent{})
	bus.Emit(TypeEventCreated, &domain.ModerationEvent{})
	bus.Emit(TypeEventUpdated, &domain.ModerationEvent{})

	assert.Equal(t, 2, created)
	assert.Equal(t, 1, updated)
}

func TestBusRecoversPanickingHandler(t *testing.T) {
	bus := NewBus(nil)

	var after bool

	bus.Subscribe(TypeEventUpdated, func(_ *domain.ModerationEvent) { panic("subscriber bug") })
	bus.Subscribe(TypeEventUpdated, func(_ *domain.ModerationEvent) { after = true })

	assert.NotPanics(t, func() {
		bus.Emit(TypeEventUpdated, &domain.ModerationEvent{})
	})

	assert.True(t, after, "handler after the panicking one must still run")
}

func TestBusIgnoresNilHandler(t *testing.T) {
	bus := NewBus(nil)

	bus.Subscribe(TypeEventCreated, nil)

	assert.NotPanics(t, func() {
		bus.Emit(TypeEventCreated, &domain.ModerationEvent{})
	})
}

func TestBusEmitWithoutSubscribers(t *testing.T) {
	bus := NewBus(nil)

	assert.NotPanics(t, func() {
		bus.Emit(TypeEventCreated, &domain.ModerationEvent{})
	})
}

func TestBusHandlerReceivesEvent(t *testing.T) {
	bus := NewBus(nil)

	var got *domain.ModerationEvent

	bus.Subscribe(TypeEventCreated, func(evt *domain.ModerationEvent) { got = evt })

	want := &domain.ModerationEvent{ID: "ev-42", Action: domain.ActionMessageBlocked}
	bus.Emit(TypeEventCreated, want)

	assert.Same(t, want, got)
}
