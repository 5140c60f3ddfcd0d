// Package events decouples the transport from the state holders: the
// transport publishes parsed frames here, and the presence tracker and
// conversation store each subscribe on their own channel.
package events

import (
	"sync"

	"hirechat/internal/stomp"
)

// Event is one parsed inbound frame.
type Event struct {
	Message  *stomp.PrivateMessage
	Presence *stomp.PresenceChange
}

type Bus struct {
	mu       sync.RWMutex
	closed   bool
	messages []chan Event
	presence []chan Event
}

func NewBus() *Bus {
	return &Bus{}
}

// SubscribeMessages returns a buffered channel receiving private-message
// events in publish order. The channel is closed when the bus closes.
func (b *Bus) SubscribeMessages() <-chan Event {
	return b.subscribe(&b.messages)
}

// SubscribePresence returns a buffered channel receiving presence-change
// events in publish order.
func (b *Bus) SubscribePresence() <-chan Event {
	return b.subscribe(&b.presence)
}

func (b *Bus) subscribe(list *[]chan Event) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 64)
	if b.closed {
		close(ch)
		return ch
	}
	*list = append(*list, ch)
	return ch
}

// PublishMessage fans a private message out to message subscribers. A
// subscriber that has stopped draining loses events rather than stalling
// the transport read loop.
func (b *Bus) PublishMessage(m *stomp.PrivateMessage) {
	b.publish(&b.messages, Event{Message: m})
}

// PublishPresence fans a presence change out to presence subscribers.
func (b *Bus) PublishPresence(p *stomp.PresenceChange) {
	b.publish(&b.presence, Event{Presence: p})
}

// publish holds the read lock through the sends so Close cannot slip in
// between the closed check and a send. The sends never block, so the lock
// is held only briefly.
func (b *Bus) publish(list *[]chan Event, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range *list {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes every subscriber channel. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.messages {
		close(ch)
	}
	for _, ch := range b.presence {
		close(ch)
	}
	b.messages, b.presence = nil, nil
}
