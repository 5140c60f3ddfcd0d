package presence

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hirechat/internal/stomp"
)

type fakeLister struct {
	mu    sync.Mutex
	calls int32
	list  []ConnectedUser
	err   error
	block chan struct{} // when set, ConnectedUsers waits before returning
}

func (f *fakeLister) ConnectedUsers(ctx context.Context, userID int64) ([]ConnectedUser, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]ConnectedUser(nil), f.list...), nil
}

func ts(sec int) time.Time {
	return time.Date(2026, 3, 1, 12, 0, sec, 0, time.UTC)
}

func threePeers() []ConnectedUser {
	return []ConnectedUser{
		{ID: 7, Email: "ana@hire.chat", Name: "Ana", Status: stomp.StatusOnline},
		{ID: 9, Email: "bo@hire.chat", Name: "Bo", Status: stomp.StatusOffline},
		{ID: 11, Email: "cy@hire.chat", Name: "Cy", Status: stomp.StatusOnline},
	}
}

func TestRefreshReplacesWholesale(t *testing.T) {
	lister := &fakeLister{list: threePeers()}
	tr := NewTracker(3, lister, nil)

	ran, err := tr.Refresh(context.Background())
	if err != nil || !ran {
		t.Fatalf("Refresh() = %v, %v", ran, err)
	}
	if got := len(tr.Peers()); got != 3 {
		t.Fatalf("Peers() len = %d, want 3", got)
	}

	// Trigger inside the freshness window is dropped.
	ran, err = tr.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if ran {
		t.Error("refresh inside freshness window should not run")
	}
	if got := atomic.LoadInt32(&lister.calls); got != 1 {
		t.Errorf("lister called %d times, want 1", got)
	}
}

func TestRefreshSingleFlight(t *testing.T) {
	lister := &fakeLister{list: threePeers(), block: make(chan struct{})}
	tr := NewTracker(3, lister, nil)

	done := make(chan struct{})
	go func() {
		tr.Refresh(context.Background())
		close(done)
	}()
	// Wait for the first fetch to be in flight.
	for atomic.LoadInt32(&lister.calls) == 0 {
		time.Sleep(time.Millisecond)
	}

	if ran, _ := tr.Refresh(context.Background()); ran {
		t.Error("second refresh ran while first was in flight")
	}
	close(lister.block)
	<-done
	if got := atomic.LoadInt32(&lister.calls); got != 1 {
		t.Errorf("lister called %d times, want 1", got)
	}
}

func TestRefreshErrorLeavesListEmpty(t *testing.T) {
	lister := &fakeLister{err: errors.New("boom")}
	tr := NewTracker(3, lister, nil)

	if _, err := tr.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(tr.Peers()) != 0 {
		t.Error("failed refresh should leave an empty list")
	}
}

func TestApplyPresenceMutatesOnlyNamedPeer(t *testing.T) {
	lister := &fakeLister{list: threePeers()}
	tr := NewTracker(3, lister, nil)
	tr.Refresh(context.Background())
	before := tr.Peers()

	if !tr.ApplyPresence(&stomp.PresenceChange{ID: 9, Status: stomp.StatusOnline}) {
		t.Fatal("ApplyPresence did not match known peer")
	}

	after := tr.Peers()
	for i := range before {
		if before[i].ID == 9 {
			if after[i].Status != stomp.StatusOnline {
				t.Errorf("peer 9 status = %s, want ONLINE", after[i].Status)
			}
			continue
		}
		if !reflect.DeepEqual(before[i], after[i]) {
			t.Errorf("peer %d changed: %+v -> %+v", before[i].ID, before[i], after[i])
		}
	}
}

func TestApplyPresenceUnknownPeerIgnored(t *testing.T) {
	lister := &fakeLister{list: threePeers()}
	tr := NewTracker(3, lister, nil)
	tr.Refresh(context.Background())
	before := tr.Peers()

	if tr.ApplyPresence(&stomp.PresenceChange{ID: 99, Email: "x@y.com", Status: stomp.StatusOnline}) {
		t.Error("unknown peer should be ignored, not matched")
	}
	if !reflect.DeepEqual(before, tr.Peers()) {
		t.Error("unknown-peer broadcast must leave the list unchanged")
	}
}

func TestApplyPresenceMatchByEmail(t *testing.T) {
	lister := &fakeLister{list: threePeers()}
	tr := NewTracker(3, lister, nil)
	tr.Refresh(context.Background())

	if !tr.ApplyPresence(&stomp.PresenceChange{Email: "bo@hire.chat", Status: stomp.StatusOnline}) {
		t.Fatal("email-only broadcast did not match")
	}
	p, _ := tr.Peer(9)
	if p.Status != stomp.StatusOnline {
		t.Errorf("peer 9 status = %s, want ONLINE", p.Status)
	}
}

func TestApplyMessageUpdatesPreviewAndNotifies(t *testing.T) {
	lister := &fakeLister{list: threePeers()}
	var notified []string
	tr := NewTracker(3, lister, func(name, content string) {
		notified = append(notified, name+": "+content)
	})
	tr.Refresh(context.Background())

	// Sender 7 while peer 9 is active: preview updates, toast fires.
	tr.ApplyMessage(&stomp.PrivateMessage{SenderID: 7, Content: "hi", Timestamp: ts(1)}, 9)

	p, _ := tr.Peer(7)
	if p.LastMessage == nil || p.LastMessage.Content != "hi" || p.LastMessage.SenderID != 7 {
		t.Errorf("peer 7 preview = %+v", p.LastMessage)
	}
	if len(notified) != 1 || notified[0] != "Ana: hi" {
		t.Errorf("notified = %v", notified)
	}

	// Same sender while active: preview still updates, no toast.
	tr.ApplyMessage(&stomp.PrivateMessage{SenderID: 7, Content: "again", Timestamp: ts(2)}, 7)
	p, _ = tr.Peer(7)
	if p.LastMessage.Content != "again" {
		t.Errorf("preview not updated for active peer: %+v", p.LastMessage)
	}
	if len(notified) != 1 {
		t.Errorf("active-peer message must not notify, got %v", notified)
	}
}

func TestApplyMessageUnknownSenderUsesGenericLabel(t *testing.T) {
	lister := &fakeLister{list: threePeers()}
	var gotName string
	tr := NewTracker(3, lister, func(name, _ string) { gotName = name })
	tr.Refresh(context.Background())

	tr.ApplyMessage(&stomp.PrivateMessage{SenderID: 42, Content: "?", Timestamp: ts(1)}, 7)
	if gotName != "Someone" {
		t.Errorf("notification name = %q, want generic fallback", gotName)
	}
}

func TestPeersSortedByActivity(t *testing.T) {
	lister := &fakeLister{list: threePeers()}
	tr := NewTracker(3, lister, nil)
	tr.Refresh(context.Background())

	tr.ApplyMessage(&stomp.PrivateMessage{SenderID: 9, Content: "older", Timestamp: ts(1)}, 9)
	tr.ApplyMessage(&stomp.PrivateMessage{SenderID: 11, Content: "newer", Timestamp: ts(5)}, 11)

	got := tr.Peers()
	wantOrder := []int64{11, 9, 7} // activity desc, preview-less last
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Fatalf("Peers() order = [%d %d %d], want %v", got[0].ID, got[1].ID, got[2].ID, wantOrder)
		}
	}
}
