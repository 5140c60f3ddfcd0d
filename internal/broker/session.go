package broker

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hirechat/internal/stomp"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Session is the middleman between one websocket connection and the hub.
type Session struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	UserID int64
	Email  string

	announced bool // sent addUser; owned by the hub's Run goroutine

	mu   sync.Mutex
	subs map[string]string // destination -> subscription id
}

func newSession(hub *Hub, conn *websocket.Conn, userID int64, email string) *Session {
	return &Session{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		UserID: userID,
		Email:  email,
		subs:   make(map[string]string),
	}
}

func (s *Session) subscriptionID(destination string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[destination]
}

// enqueue hands a marshaled frame to the write pump; a session that has
// stopped draining loses frames rather than stalling the hub.
func (s *Session) enqueue(raw []byte) {
	select {
	case s.send <- raw:
	default:
		log.Printf("broker: send buffer full for %s, frame dropped", s.Email)
	}
}

// readPump pumps frames from the websocket into the hub.
func (s *Session) readPump() {
	defer func() {
		s.hub.Unregister <- s
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("broker: read from %s: %v", s.Email, err)
			}
			return
		}
		frame, err := stomp.Parse(raw)
		if err != nil {
			log.Printf("broker: %s sent malformed frame: %v", s.Email, err)
			continue
		}

		switch frame.Command {
		case stomp.CmdConnect:
			// Identity already checked by the auth middleware on upgrade.
			s.enqueue(stomp.NewFrame(stomp.CmdConnected, nil).Set(stomp.HdrVersion, "1.2").Marshal())

		case stomp.CmdSubscribe:
			dest := frame.Get(stomp.HdrDestination)
			if dest == "" {
				continue
			}
			s.mu.Lock()
			s.subs[dest] = frame.Get(stomp.HdrID)
			s.mu.Unlock()

		case stomp.CmdSend:
			s.hub.Inbound <- inbound{session: s, frame: frame}

		case stomp.CmdDisconnect:
			return

		default:
			log.Printf("broker: %s sent unexpected %s frame", s.Email, frame.Command)
		}
	}
}

// writePump pumps frames from the hub to the websocket connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
