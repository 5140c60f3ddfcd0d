package events

import (
	"sync"
	"testing"
	"time"

	"hirechat/internal/stomp"
)

func recvOne(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBusRoutesByKind(t *testing.T) {
	bus := NewBus()
	msgs := bus.SubscribeMessages()
	pres := bus.SubscribePresence()

	bus.PublishMessage(&stomp.PrivateMessage{SenderID: 7, Content: "hi"})
	bus.PublishPresence(&stomp.PresenceChange{ID: 7, Status: stomp.StatusOnline})

	ev := recvOne(t, msgs)
	if ev.Message == nil || ev.Message.SenderID != 7 {
		t.Errorf("message subscriber got %+v", ev)
	}
	ev = recvOne(t, pres)
	if ev.Presence == nil || ev.Presence.Status != stomp.StatusOnline {
		t.Errorf("presence subscriber got %+v", ev)
	}

	select {
	case ev := <-msgs:
		t.Errorf("message subscriber got stray event %+v", ev)
	default:
	}
}

func TestBusIndependentSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.SubscribeMessages()
	b := bus.SubscribeMessages()

	bus.PublishMessage(&stomp.PrivateMessage{SenderID: 1, Content: "x"})

	if ev := recvOne(t, a); ev.Message.Content != "x" {
		t.Errorf("a got %+v", ev)
	}
	if ev := recvOne(t, b); ev.Message.Content != "x" {
		t.Errorf("b got %+v", ev)
	}
}

func TestBusPreservesOrder(t *testing.T) {
	bus := NewBus()
	ch := bus.SubscribeMessages()
	for i := 1; i <= 5; i++ {
		bus.PublishMessage(&stomp.PrivateMessage{SenderID: int64(i)})
	}
	for i := 1; i <= 5; i++ {
		if ev := recvOne(t, ch); ev.Message.SenderID != int64(i) {
			t.Fatalf("event %d out of order: %+v", i, ev)
		}
	}
}

func TestBusCloseStopsSubscribers(t *testing.T) {
	bus := NewBus()
	ch := bus.SubscribePresence()
	bus.Close()
	bus.Close() // second close must not panic

	if _, open := <-ch; open {
		t.Error("channel still open after Close")
	}
	bus.PublishPresence(&stomp.PresenceChange{ID: 1, Status: stomp.StatusOnline})

	if ch2 := bus.SubscribePresence(); ch2 == nil {
		t.Error("SubscribePresence after Close returned nil channel")
	} else if _, open := <-ch2; open {
		t.Error("post-close subscription should be closed immediately")
	}
}

// Publishing must never send on a channel Close has already closed, no
// matter how the goroutines interleave. Run with -race.
func TestBusPublishDuringClose(t *testing.T) {
	for i := 0; i < 200; i++ {
		bus := NewBus()
		bus.SubscribeMessages()
		bus.SubscribePresence()

		start := make(chan struct{})
		var wg sync.WaitGroup
		for p := 0; p < 4; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < 50; j++ {
					bus.PublishMessage(&stomp.PrivateMessage{SenderID: 1})
					bus.PublishPresence(&stomp.PresenceChange{ID: 1, Status: stomp.StatusOnline})
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			bus.Close()
		}()
		close(start)
		wg.Wait()
	}
}
