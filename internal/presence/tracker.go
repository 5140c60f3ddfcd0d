// Package presence answers "who can I chat with and are they online"
// from a periodic list fetch plus live broadcasts, without hammering
// the server.
package presence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"hirechat/internal/stomp"
)

// freshFor is how long a fetched peer list is treated as current;
// refresh triggers inside the window (focus regained twice in a row)
// are dropped.
const freshFor = 10 * time.Second

// LastMessage is the sidebar preview for one peer. Display only, not
// authoritative history.
type LastMessage struct {
	Content   string    `json:"content"`
	SenderID  int64     `json:"senderId"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectedUser is a peer reachable for chat.
type ConnectedUser struct {
	ID          int64          `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Avatar      string         `json:"avatar,omitempty"`
	Company     *stomp.Company `json:"company,omitempty"`
	Status      stomp.Status   `json:"status"`
	LastMessage *LastMessage   `json:"lastMessage,omitempty"`
}

// Lister fetches the full connected-user list for the local user.
type Lister interface {
	ConnectedUsers(ctx context.Context, userID int64) ([]ConnectedUser, error)
}

// Notifier surfaces a best-effort heads-up when a message arrives from a
// peer other than the active one.
type Notifier func(senderName, content string)

type Tracker struct {
	self   int64
	lister Lister
	notify Notifier

	mu        sync.Mutex
	peers     []ConnectedUser
	fetchedAt time.Time
	inflight  bool
}

func NewTracker(self int64, lister Lister, notify Notifier) *Tracker {
	if notify == nil {
		notify = func(string, string) {}
	}
	return &Tracker{self: self, lister: lister, notify: notify}
}

// Refresh re-fetches the list unless it is still fresh or a fetch is
// already in flight. The fetched list replaces the old one wholesale.
// Returns whether a fetch actually ran.
func (t *Tracker) Refresh(ctx context.Context) (bool, error) {
	t.mu.Lock()
	if t.inflight || time.Since(t.fetchedAt) < freshFor {
		t.mu.Unlock()
		return false, nil
	}
	t.inflight = true
	t.mu.Unlock()

	list, err := t.lister.ConnectedUsers(ctx, t.self)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight = false
	if err != nil {
		return true, fmt.Errorf("presence: refresh: %w", err)
	}
	t.peers = list
	t.fetchedAt = time.Now()
	return true, nil
}

// ApplyPresence mutates only the named peer's status, in place. A
// broadcast for a peer absent from the list is ignored, not inserted;
// the return value reports whether anyone matched.
func (t *Tracker) ApplyPresence(change *stomp.PresenceChange) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.peers {
		p := &t.peers[i]
		if (change.ID != 0 && p.ID == change.ID) || (change.Email != "" && p.Email == change.Email) {
			p.Status = change.Status
			return true
		}
	}
	return false
}

// ApplyMessage records the sender's last-message preview whether or not
// that sender is the active conversation, and fires the notifier when it
// is not.
func (t *Tracker) ApplyMessage(msg *stomp.PrivateMessage, activePeerID int64) {
	t.mu.Lock()
	for i := range t.peers {
		p := &t.peers[i]
		if p.ID == msg.SenderID {
			p.LastMessage = &LastMessage{
				Content:   msg.Content,
				SenderID:  msg.SenderID,
				Timestamp: msg.Timestamp,
			}
			break
		}
	}
	name := ""
	if p, ok := t.peerLocked(msg.SenderID); ok {
		name = p.Name
	}
	t.mu.Unlock()

	if msg.SenderID != activePeerID {
		if name == "" {
			name = "Someone"
		}
		t.notify(name, msg.Content)
	}
}

func (t *Tracker) peerLocked(id int64) (ConnectedUser, bool) {
	for _, p := range t.peers {
		if p.ID == id {
			return p, true
		}
	}
	return ConnectedUser{}, false
}

// Peer returns a copy of the named peer's entry.
func (t *Tracker) Peer(id int64) (ConnectedUser, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peerLocked(id)
}

// Peers returns the list ordered most-recent-activity-first; peers with
// no recorded last message sort after those with one, keeping fetch
// order among themselves.
func (t *Tracker) Peers() []ConnectedUser {
	t.mu.Lock()
	out := append([]ConnectedUser(nil), t.peers...)
	t.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastMessage, out[j].LastMessage
		switch {
		case a != nil && b != nil:
			return a.Timestamp.After(b.Timestamp)
		case a != nil:
			return true
		default:
			return false
		}
	})
	return out
}
