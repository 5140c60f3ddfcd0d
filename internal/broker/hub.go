// Package broker is the messaging endpoint the hirechat client speaks
// to: a websocket hub handling STOMP frames, with Postgres persistence
// and Redis pub/sub so delivery works across broker instances.
package broker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"hirechat/internal/stomp"
)

const (
	userChannelPrefix = "hirechat:user:"
	presenceChannel   = "hirechat:presence"
)

// Directory resolves a receiver id to the email that keys their queue.
type Directory interface {
	EmailByID(ctx context.Context, id int64) (string, error)
}

type inbound struct {
	session *Session
	frame   *stomp.Frame
}

type delivery struct {
	email   string // empty for presence broadcasts
	payload []byte
}

// Hub routes frames between sessions on this instance and Redis.
// Session state is owned by the Run goroutine; channels are the only
// way in.
type Hub struct {
	Register   chan *Session
	Unregister chan *Session
	Inbound    chan inbound
	deliveries chan delivery

	sessions map[*Session]bool
	byEmail  map[string]*Session

	redis     *redis.Client
	repo      *Repository
	presence  *PresenceStore
	directory Directory
}

func NewHub(rdb *redis.Client, repo *Repository, pres *PresenceStore, dir Directory) *Hub {
	return &Hub{
		Register:   make(chan *Session),
		Unregister: make(chan *Session),
		Inbound:    make(chan inbound),
		deliveries: make(chan delivery, 64),
		sessions:   make(map[*Session]bool),
		byEmail:    make(map[string]*Session),
		redis:      rdb,
		repo:       repo,
		presence:   pres,
		directory:  dir,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case session := <-h.Register:
			h.sessions[session] = true
			h.byEmail[session.Email] = session

		case session := <-h.Unregister:
			if _, ok := h.sessions[session]; ok {
				delete(h.sessions, session)
				if h.byEmail[session.Email] == session {
					delete(h.byEmail, session.Email)
				}
				close(session.send)
				if session.announced {
					// Dropped without a disconnectUser frame: withdraw for them.
					h.withdraw(ctx, session.UserID, session.Email)
				}
			}

		case in := <-h.Inbound:
			h.handleSend(ctx, in)

		case d := <-h.deliveries:
			if d.email == "" {
				h.fanOutPresence(d.payload)
			} else {
				h.deliverTo(d.email, d.payload)
			}

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleSend(ctx context.Context, in inbound) {
	frame, session := in.frame, in.session
	switch frame.Get(stomp.HdrDestination) {
	case stomp.DestAddUser:
		profile, err := decodeProfile(frame.Body)
		if err != nil {
			log.Printf("broker: addUser from %s: %v", session.Email, err)
			return
		}
		session.announced = true
		if err := h.presence.Touch(ctx, session.Email); err != nil {
			log.Printf("broker: presence touch: %v", err)
		}
		h.publishPresence(ctx, stomp.PresenceChange{ID: profile.ID, Email: session.Email, Status: stomp.StatusOnline})

	case stomp.DestDisconnectUser:
		session.announced = false
		h.withdraw(ctx, session.UserID, session.Email)

	case stomp.DestHeartbeat:
		if err := h.presence.Touch(ctx, session.Email); err != nil {
			log.Printf("broker: heartbeat touch: %v", err)
		}

	case stomp.DestChat:
		var msg stomp.ChatSend
		if err := json.Unmarshal(frame.Body, &msg); err != nil || msg.Receiver.ID == 0 {
			log.Printf("broker: bad chat frame from %s", session.Email)
			return
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now().UTC()
		}
		if err := h.repo.SaveMessage(ctx, session.UserID, msg.Receiver.ID, msg.Content, msg.Timestamp); err != nil {
			log.Printf("broker: save message: %v", err)
		}
		email, err := h.directory.EmailByID(ctx, msg.Receiver.ID)
		if err != nil {
			log.Printf("broker: route to %d: %v", msg.Receiver.ID, err)
			return
		}
		payload, _ := json.Marshal(stomp.PrivateMessage{
			SenderID:  session.UserID,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
		if err := h.redis.Publish(ctx, userChannelPrefix+email, payload).Err(); err != nil {
			log.Printf("broker: publish to %s: %v", email, err)
		}

	default:
		log.Printf("broker: SEND to unknown destination %q from %s", frame.Get(stomp.HdrDestination), session.Email)
	}
}

func (h *Hub) withdraw(ctx context.Context, id int64, email string) {
	if err := h.presence.Drop(ctx, email); err != nil {
		log.Printf("broker: presence drop: %v", err)
	}
	h.publishPresence(ctx, stomp.PresenceChange{ID: id, Email: email, Status: stomp.StatusOffline})
}

func (h *Hub) publishPresence(ctx context.Context, change stomp.PresenceChange) {
	payload, _ := json.Marshal(change)
	if err := h.redis.Publish(ctx, presenceChannel, payload).Err(); err != nil {
		log.Printf("broker: publish presence: %v", err)
	}
}

// SubscribeToRedis pumps deliveries from other instances (and this one)
// into local sessions. Runs until ctx ends.
func (h *Hub) SubscribeToRedis(ctx context.Context) {
	pubsub := h.redis.PSubscribe(ctx, userChannelPrefix+"*", presenceChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		d := delivery{payload: []byte(msg.Payload)}
		if msg.Channel != presenceChannel {
			d.email = msg.Channel[len(userChannelPrefix):]
		}
		select {
		case h.deliveries <- d:
		case <-ctx.Done():
			return
		}
	}
}

// deliverTo and fanOutPresence run on the Run goroutine only.
func (h *Hub) deliverTo(email string, payload []byte) {
	session, ok := h.byEmail[email]
	if !ok {
		return // not on this instance
	}
	dest := stomp.QueueDestination(email)
	frame := stomp.NewFrame(stomp.CmdMessage, payload).
		Set(stomp.HdrDestination, dest).
		Set(stomp.HdrSubscription, session.subscriptionID(dest)).
		Set(stomp.HdrMessageID, uuid.NewString()).
		Set(stomp.HdrContentType, "application/json")
	session.enqueue(frame.Marshal())
}

func (h *Hub) fanOutPresence(payload []byte) {
	frame := stomp.NewFrame(stomp.CmdMessage, payload).
		Set(stomp.HdrDestination, stomp.TopicPublic).
		Set(stomp.HdrMessageID, uuid.NewString()).
		Set(stomp.HdrContentType, "application/json")
	raw := frame.Marshal()
	for session := range h.sessions {
		session.enqueue(raw)
	}
}

func decodeProfile(body []byte) (*stomp.Profile, error) {
	var p stomp.Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
