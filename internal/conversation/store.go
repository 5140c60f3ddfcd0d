// Package conversation holds the message sequence for exactly one active
// peer at a time. Switching peers replaces the sequence, never merges.
package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hirechat/internal/stomp"
)

// Direction tags a message relative to the locally authenticated user.
type Direction string

const (
	Sent     Direction = "sender"
	Received Direction = "receiver"
)

// Message is one in-memory conversation entry. No id, no persistence
// identity beyond position; Time is a pre-formatted display string.
type Message struct {
	Direction Direction
	Content   string
	Time      string
}

// HistoryEntry is one persisted message as the history endpoint returns it.
type HistoryEntry struct {
	SenderID  int64     `json:"senderId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Historian fetches the full history between two users, oldest first.
type Historian interface {
	Messages(ctx context.Context, senderID, receiverID int64) ([]HistoryEntry, error)
}

type Store struct {
	self    int64
	history Historian

	mu         sync.Mutex
	activePeer int64
	gen        uint64 // bumped on every switch; stale fetches are dropped
	messages   []Message
}

func NewStore(self int64, history Historian) *Store {
	return &Store{self: self, history: history}
}

// ActivePeer is the id of the peer currently displayed, 0 for none.
func (s *Store) ActivePeer() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePeer
}

// Messages returns the visible sequence in append order.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// SelectPeer switches the active conversation. The sequence is cleared
// immediately; peer 0 means no selection. For a real peer the full
// history is fetched and installed unless another switch happened in
// the meantime. A fetch failure leaves the conversation empty.
func (s *Store) SelectPeer(ctx context.Context, peerID int64) error {
	s.mu.Lock()
	s.activePeer = peerID
	s.gen++
	gen := s.gen
	s.messages = nil
	s.mu.Unlock()

	if peerID == 0 {
		return nil
	}

	entries, err := s.history.Messages(ctx, s.self, peerID)
	if err != nil {
		return fmt.Errorf("conversation: history for peer %d: %w", peerID, err)
	}

	msgs := make([]Message, 0, len(entries))
	for _, e := range entries {
		dir := Received
		if e.SenderID == s.self {
			dir = Sent
		}
		msgs = append(msgs, Message{Direction: dir, Content: e.Content, Time: DisplayTime(e.Timestamp)})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil // superseded by a later switch
	}
	s.messages = msgs
	return nil
}

// AppendLocal records a just-sent message. Optimistic: called on send
// success, no pending or ack state.
func (s *Store) AppendLocal(content string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activePeer == 0 {
		return
	}
	s.messages = append(s.messages, Message{Direction: Sent, Content: content, Time: DisplayTime(at)})
}

// AppendRemote appends an inbound message only when its sender is the
// active peer; anything else bypasses the store entirely.
func (s *Store) AppendRemote(msg *stomp.PrivateMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activePeer == 0 || msg.SenderID != s.activePeer {
		return false
	}
	s.messages = append(s.messages, Message{Direction: Received, Content: msg.Content, Time: DisplayTime(msg.Timestamp)})
	return true
}

// DisplayTime renders a wire timestamp for the thread: clock time for
// today, date plus clock time otherwise.
func DisplayTime(t time.Time) string {
	t = t.Local()
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("Jan 2, 15:04")
}
