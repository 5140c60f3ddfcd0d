// Package transport owns the logical connection to the broker: dial,
// STOMP handshake, the two subscriptions, presence announce/withdraw,
// heartbeats, and teardown. Parsed inbound frames are handed to the
// event bus; transport errors degrade locally and never panic upward.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"hirechat/internal/events"
	"hirechat/internal/stomp"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	heartbeatPeriod = 3 * time.Second
	maxMessageSize  = 64 * 1024
	sendBuffer      = 256
)

// State is the connection lifecycle position. There is no Reconnecting
// state: a dropped connection ends at Disconnected and the client is done.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "disconnected"
	}
}

// Identity is the authenticated user the connection belongs to.
type Identity struct {
	Profile stomp.Profile
	Token   string
}

// ErrClientSpent is returned by Connect on a client whose connection has
// already been torn down. Clients are single-use.
var ErrClientSpent = errors.New("transport: client already used, build a new one")

// ErrNotConnected is returned by SendChat outside the Connected state.
var ErrNotConnected = errors.New("transport: not connected")

// Client is a single logical session to the messaging endpoint. At most
// one per authenticated identity per process; Connect while already
// connected is a no-op, Disconnect runs at most once.
type Client struct {
	url string
	bus *events.Bus

	mu       sync.Mutex
	state    State
	spent    bool
	identity Identity
	conn     *websocket.Conn
	send     chan []byte

	done chan struct{}
}

func NewClient(url string, bus *events.Bus) *Client {
	return &Client{
		url:  url,
		bus:  bus,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// State reports the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the connection is fully torn down, however it ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Connect dials the endpoint, performs the STOMP handshake, subscribes to
// the private queue and the public presence topic, announces the user as
// ONLINE, and starts the heartbeat. Calling it again while a connection
// is live is a no-op.
func (c *Client) Connect(ctx context.Context, identity Identity) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	if c.spent {
		c.mu.Unlock()
		return ErrClientSpent
	}
	c.state = StateConnecting
	c.spent = true
	c.identity = identity
	c.mu.Unlock()

	conn, err := c.handshake(ctx, identity)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.closeDone()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	go c.writeLoop(conn)
	go c.readLoop(conn)
	go c.heartbeatLoop()
	return nil
}

func (c *Client) handshake(ctx context.Context, identity Identity) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", c.url, err)
	}

	connect := stomp.NewFrame(stomp.CmdConnect, nil).
		Set(stomp.HdrAcceptVersion, "1.2").
		Set(stomp.HdrLogin, identity.Profile.Email).
		Set(stomp.HdrPasscode, identity.Token)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, connect.Marshal()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: send CONNECT: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(writeWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: await CONNECTED: %w", err)
	}
	frame, err := stomp.Parse(raw)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if frame.Command != stomp.CmdConnected {
		conn.Close()
		return nil, fmt.Errorf("transport: handshake refused: %s %s", frame.Command, frame.Get(stomp.HdrMessage))
	}

	queue := stomp.QueueDestination(identity.Profile.Email)
	for _, dest := range []string{queue, stomp.TopicPublic} {
		sub := stomp.NewFrame(stomp.CmdSubscribe, nil).
			Set(stomp.HdrID, uuid.NewString()).
			Set(stomp.HdrDestination, dest)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, sub.Marshal()); err != nil {
			conn.Close()
			return nil, fmt.Errorf("transport: subscribe %s: %w", dest, err)
		}
	}

	profile := identity.Profile
	profile.Status = stomp.StatusOnline
	body, _ := json.Marshal(profile)
	add := stomp.NewFrame(stomp.CmdSend, body).
		Set(stomp.HdrDestination, stomp.DestAddUser).
		Set(stomp.HdrContentType, "application/json")
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, add.Marshal()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: announce presence: %w", err)
	}
	return conn, nil
}

// Disconnect announces the user as OFFLINE and closes the connection.
// Guarded so repeated calls (cleanup plus an interrupt handler firing
// together) send the offline frame at most once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnecting

	body, _ := json.Marshal(stomp.Departure{
		ID:     c.identity.Profile.ID,
		Email:  c.identity.Profile.Email,
		Status: stomp.StatusOffline,
	})
	bye := stomp.NewFrame(stomp.CmdSend, body).
		Set(stomp.HdrDestination, stomp.DestDisconnectUser).
		Set(stomp.HdrContentType, "application/json")
	// Blocking here could deadlock if the write loop already exited, so a
	// full queue drops the farewell frames and says so.
	if !c.enqueueLocked(bye.Marshal()) {
		log.Printf("transport: send queue full, offline announcement dropped")
	}
	if !c.enqueueLocked(stomp.NewFrame(stomp.CmdDisconnect, nil).Marshal()) {
		log.Printf("transport: send queue full, DISCONNECT dropped")
	}
	close(c.send) // writeLoop drains the queue, then closes the socket
	c.mu.Unlock()
}

// SendChat fires a chat message at the receiver. Optimistic: no pending
// state, no ack tracking; the caller appends locally on nil error.
func (c *Client) SendChat(receiverID int64, content string, at time.Time) error {
	payload := stomp.ChatSend{Content: content, Timestamp: at}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return ErrNotConnected
	}
	payload.Sender.ID = c.identity.Profile.ID
	payload.Sender.Name = c.identity.Profile.Name
	payload.Receiver.ID = receiverID
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame := stomp.NewFrame(stomp.CmdSend, body).
		Set(stomp.HdrDestination, stomp.DestChat).
		Set(stomp.HdrContentType, "application/json")
	if !c.enqueueLocked(frame.Marshal()) {
		return errors.New("transport: send buffer full")
	}
	return nil
}

func (c *Client) enqueueLocked(raw []byte) bool {
	select {
	case c.send <- raw:
		return true
	default:
		return false
	}
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			if c.state == StateConnected {
				body, _ := json.Marshal(stomp.HeartbeatPing{Email: c.identity.Profile.Email})
				frame := stomp.NewFrame(stomp.CmdSend, body).
					Set(stomp.HdrDestination, stomp.DestHeartbeat).
					Set(stomp.HdrContentType, "application/json")
				c.enqueueLocked(frame.Marshal())
			}
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}

func (c *Client) writeLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case raw, ok := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.teardown(conn)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	queue := stomp.QueueDestination(c.identity.Profile.Email)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("transport: read: %v", err)
			}
			return
		}
		frame, err := stomp.Parse(raw)
		if err != nil {
			// Malformed frames are dropped, not fatal to the connection.
			log.Printf("transport: %v", err)
			continue
		}
		switch frame.Command {
		case stomp.CmdMessage:
			c.dispatch(frame, queue)
		case stomp.CmdError:
			log.Printf("transport: broker error: %s", frame.Get(stomp.HdrMessage))
		default:
			log.Printf("transport: unexpected %s frame dropped", frame.Command)
		}
	}
}

func (c *Client) dispatch(frame *stomp.Frame, queue string) {
	switch frame.Get(stomp.HdrDestination) {
	case queue:
		msg, err := stomp.DecodePrivateMessage(frame.Body)
		if err != nil {
			log.Printf("transport: %v", err)
			return
		}
		c.bus.PublishMessage(msg)
	case stomp.TopicPublic:
		change, err := stomp.DecodePresenceChange(frame.Body)
		if err != nil {
			log.Printf("transport: %v", err)
			return
		}
		c.bus.PublishPresence(change)
	default:
		log.Printf("transport: frame for unknown destination %q dropped", frame.Get(stomp.HdrDestination))
	}
}

func (c *Client) teardown(conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	dropped := c.state == StateConnected // lost without Disconnect
	c.state = StateDisconnected
	c.mu.Unlock()
	if dropped {
		log.Printf("transport: connection lost")
	}
	c.closeDone()
}

func (c *Client) closeDone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}
