package stomp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is a peer's presence state.
type Status string

const (
	StatusOnline  Status = "ONLINE"
	StatusOffline Status = "OFFLINE"
)

// Company is the employer attached to a recruiter profile.
type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

// Profile is the public identity announced on connect (/app/user.addUser).
type Profile struct {
	ID      int64    `json:"id"`
	Email   string   `json:"email"`
	Name    string   `json:"name"`
	Avatar  string   `json:"avatar,omitempty"`
	Company *Company `json:"company,omitempty"`
	Status  Status   `json:"status"`
}

// Departure is the payload of /app/user.disconnectUser.
type Departure struct {
	ID     int64  `json:"id"`
	Email  string `json:"email"`
	Status Status `json:"status"`
}

// HeartbeatPing is the payload of /app/heartbeat.ping.
type HeartbeatPing struct {
	Email string `json:"email"`
}

// ChatSend is the payload of /app/chat.
type ChatSend struct {
	Sender struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"sender"`
	Receiver struct {
		ID int64 `json:"id"`
	} `json:"receiver"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// PrivateMessage is delivered on /user/{email}/queue/messages.
type PrivateMessage struct {
	SenderID  int64     `json:"senderId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// PresenceChange is broadcast on /topic/public.
type PresenceChange struct {
	ID     int64  `json:"id"`
	Email  string `json:"email"`
	Status Status `json:"status"`
}

// DecodePrivateMessage parses and validates a private-queue body.
func DecodePrivateMessage(body []byte) (*PrivateMessage, error) {
	var m PrivateMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("stomp: bad private message: %w", err)
	}
	if m.SenderID == 0 {
		return nil, fmt.Errorf("stomp: private message missing senderId")
	}
	return &m, nil
}

// DecodePresenceChange parses and validates a public-topic body.
func DecodePresenceChange(body []byte) (*PresenceChange, error) {
	var p PresenceChange
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("stomp: bad presence change: %w", err)
	}
	if p.ID == 0 && p.Email == "" {
		return nil, fmt.Errorf("stomp: presence change names no user")
	}
	switch p.Status {
	case StatusOnline, StatusOffline:
	default:
		return nil, fmt.Errorf("stomp: presence change has unknown status %q", p.Status)
	}
	return &p, nil
}
