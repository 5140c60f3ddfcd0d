package stomp

import (
	"bytes"
	"testing"
)

func TestMarshalParseRoundTrip(t *testing.T) {
	f := NewFrame(CmdSend, []byte(`{"content":"hello"}`))
	f.Set(HdrDestination, DestChat)
	f.Set(HdrContentType, "application/json")

	parsed, err := Parse(f.Marshal())
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if parsed.Command != CmdSend {
		t.Errorf("Command = %q, want SEND", parsed.Command)
	}
	if got := parsed.Get(HdrDestination); got != DestChat {
		t.Errorf("destination = %q, want %q", got, DestChat)
	}
	if !bytes.Equal(parsed.Body, f.Body) {
		t.Errorf("Body = %q, want %q", parsed.Body, f.Body)
	}
}

func TestParseHeaderEscaping(t *testing.T) {
	f := NewFrame(CmdMessage, nil)
	f.Set(HdrSubscription, "sub:0")
	f.Set("note", "line one\nline two\\end")

	parsed, err := Parse(f.Marshal())
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := parsed.Get(HdrSubscription); got != "sub:0" {
		t.Errorf("subscription = %q, want sub:0", got)
	}
	if got := parsed.Get("note"); got != "line one\nline two\\end" {
		t.Errorf("note = %q", got)
	}
}

func TestParseFirstHeaderWins(t *testing.T) {
	raw := []byte("MESSAGE\ndestination:/topic/public\ndestination:/queue/other\n\n\x00")
	f, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := f.Get(HdrDestination); got != "/topic/public" {
		t.Errorf("destination = %q, want first occurrence", got)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing nul", "SEND\ndestination:/app/chat\n\nbody"},
		{"unknown command", "SHOUT\n\n\x00"},
		{"header without colon", "SEND\ndestination\n\n\x00"},
		{"bad escape", "SEND\nkey:a\\qb\n\n\x00"},
		{"content length overrun", "SEND\ncontent-length:99\n\nhi\x00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.raw)); err == nil {
				t.Errorf("Parse(%q) expected error, got nil", tt.raw)
			}
		})
	}
}

func TestParseBodyHonorsContentLength(t *testing.T) {
	raw := []byte("MESSAGE\ncontent-length:2\n\nhiX\x00")
	f, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if string(f.Body) != "hi" {
		t.Errorf("Body = %q, want \"hi\"", f.Body)
	}
}

func TestDecodePresenceChange(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid online", `{"id":7,"email":"x@y.com","status":"ONLINE"}`, false},
		{"valid offline by email only", `{"email":"x@y.com","status":"OFFLINE"}`, false},
		{"no user named", `{"status":"ONLINE"}`, true},
		{"unknown status", `{"id":7,"status":"AWAY"}`, true},
		{"not json", `presence!`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePresenceChange([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodePresenceChange() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodePrivateMessage(t *testing.T) {
	m, err := DecodePrivateMessage([]byte(`{"senderId":7,"content":"hi","timestamp":"2026-01-02T15:04:05Z"}`))
	if err != nil {
		t.Fatalf("DecodePrivateMessage() error: %v", err)
	}
	if m.SenderID != 7 || m.Content != "hi" {
		t.Errorf("got %+v", m)
	}
	if _, err := DecodePrivateMessage([]byte(`{"content":"orphan"}`)); err == nil {
		t.Error("expected error for missing senderId")
	}
}
