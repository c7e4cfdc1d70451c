// internal/notify/notifier.go
// Package notify is an in-process publish hub for domain events. Handlers
// and services publish named events; subscribers (currently the logging
// sink) receive them on their own goroutine so publishers never block.
package notify

import (
	"log/slog"
	"sync"
)

// Event is a named domain event with an arbitrary payload.
type Event struct {
	Name    string
	Payload any
}

// Hub fans events out to subscribers. Publish is safe for concurrent use.
type Hub struct {
	mu   sync.RWMutex
	subs []chan Event
}

func NewHub() *Hub {
	return &Hub{}
}

// Subscribe returns a channel that receives every event published after
// the call. The buffer keeps slow consumers from blocking publishers;
// events overflowing the buffer are dropped with a warning.
func (h *Hub) Subscribe() <-chan Event {
	ch := make(chan Event, 64)
	h.mu.Lock()
	h.subs = append(h.subs, ch)
	h.mu.Unlock()
	return ch
}

// Publish delivers the event to all subscribers without blocking.
func (h *Hub) Publish(event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ev := Event{Name: event, Payload: payload}
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("Notification dropped, subscriber buffer full", "event", event)
		}
	}
}

// StartLogSink consumes events from the hub and writes them to the
// structured log. It runs until the process exits.
func StartLogSink(h *Hub) {
	ch := h.Subscribe()
	go func() {
		for ev := range ch {
			slog.Info("Domain event", "event", ev.Name, "payload", ev.Payload)
		}
	}()
}
