// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handler is a function that processes events.
type Handler func(event *Event)

// Filter decides whether a subscription should see an event.
type Filter func(event *Event) bool

// Subscription pairs a handler with its matching rules.
type Subscription struct {
	// ID uniquely identifies this subscription.
	ID string

	// Handler processes matching events.
	Handler Handler

	// Filter limits which events to handle (nil = all events).
	Filter Filter

	// Types limits which event types to handle (nil = all types).
	Types []Type
}

// Bus broadcasts events to subscribers and retains a bounded buffer of
// recent events for late-joining observers (the websocket stream uses
// this to replay state on connect).
//
// Thread Safety: Bus is safe for concurrent use.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	buffer        []Event
	bufferSize    int
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBufferSize sets the retained-event buffer size.
func WithBufferSize(size int) BusOption {
	return func(b *Bus) {
		b.bufferSize = size
	}
}

// NewBus creates an event bus with a default buffer of 256 events.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subscriptions: make(map[string]*Subscription),
		bufferSize:    256,
	}

	for _, opt := range opts {
		opt(b)
	}

	b.buffer = make([]Event, 0, b.bufferSize)

	return b
}

// Subscribe registers a handler for the given event types (none = all).
// Returns the subscription ID for Unsubscribe.
func (b *Bus) Subscribe(handler Handler, types ...Type) string {
	return b.SubscribeWithFilter(handler, nil, types...)
}

// SubscribeWithFilter registers a handler with a custom filter.
func (b *Bus) SubscribeWithFilter(handler Handler, filter Filter, types ...Type) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		ID:      uuid.NewString(),
		Handler: handler,
		Filter:  filter,
		Types:   types,
	}

	b.subscriptions[sub.ID] = sub
	return sub.ID
}

// Unsubscribe removes a subscription. Returns true if it existed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscriptions[id]; ok {
		delete(b.subscriptions, id)
		return true
	}
	return false
}

// Publish broadcasts an event to all matching subscribers.
//
// Handlers run on the publishing goroutine with panic recovery, so one
// misbehaving handler cannot crash the bus or starve later handlers.
func (b *Bus) Publish(eventType Type, data any) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	b.mu.Lock()
	if len(b.buffer) >= b.bufferSize {
		// Drop oldest
		b.buffer = b.buffer[1:]
	}
	b.buffer = append(b.buffer, event)
	b.mu.Unlock()

	for _, sub := range subs {
		if b.shouldHandle(sub, &event) {
			b.safeInvoke(sub.Handler, &event)
		}
	}
}

func (b *Bus) safeInvoke(handler Handler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked",
				"event_type", event.Type,
				"event_id", event.ID,
				"panic", r,
			)
		}
	}()
	handler(event)
}

func (b *Bus) shouldHandle(sub *Subscription, event *Event) bool {
	if len(sub.Types) > 0 {
		typeMatch := false
		for _, t := range sub.Types {
			if t == event.Type {
				typeMatch = true
				break
			}
		}
		if !typeMatch {
			return false
		}
	}

	if sub.Filter != nil && !sub.Filter(event) {
		return false
	}

	return true
}

// Recent returns a copy of the buffered events.
func (b *Bus) Recent() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, len(b.buffer))
	copy(out, b.buffer)
	return out
}

// RecentByType returns buffered events of a specific type.
func (b *Bus) RecentByType(eventType Type) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, event := range b.buffer {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

// SubscriptionCount returns the number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// Reset clears all subscriptions and buffered events.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscriptions = make(map[string]*Subscription)
	b.buffer = make([]Event, 0, b.bufferSize)
}
