package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"hirechat/internal/middleware"
	"hirechat/internal/stomp"
)

func authedRequest(t *testing.T, target string, userID int64, email string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	ctx := context.WithValue(r.Context(), middleware.UserKey, userID)
	ctx = context.WithValue(ctx, middleware.EmailKey, email)
	return r.WithContext(ctx)
}

func envelopeStatus(t *testing.T, rec *httptest.ResponseRecorder) int {
	t.Helper()
	var env struct {
		StatusCode int `json:"statusCode"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("envelope not valid JSON: %v", err)
	}
	return env.StatusCode
}

func TestRespondEnvelopeShape(t *testing.T) {
	rec := httptest.NewRecorder()
	respond(rec, 200, "ok", []int{1, 2})

	var env struct {
		StatusCode int             `json:"statusCode"`
		Message    string          `json:"message"`
		Data       json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("envelope not valid JSON: %v", err)
	}
	if env.StatusCode != 200 || env.Message != "ok" {
		t.Errorf("envelope = %+v", env)
	}
	if string(env.Data) != "[1,2]" {
		t.Errorf("data = %s", env.Data)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestRespondOmitsNilData(t *testing.T) {
	rec := httptest.NewRecorder()
	respond(rec, 404, "no such user", nil)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("envelope not valid JSON: %v", err)
	}
	if _, ok := raw["data"]; ok {
		t.Error("nil data should be omitted")
	}
}

func TestSessionSubscriptionID(t *testing.T) {
	s := newSession(nil, nil, 3, "me@hire.chat")
	if got := s.subscriptionID("/topic/public"); got != "" {
		t.Errorf("unsubscribed destination returned %q", got)
	}
	s.subs["/topic/public"] = "sub-1"
	if got := s.subscriptionID("/topic/public"); got != "sub-1" {
		t.Errorf("subscriptionID = %q, want sub-1", got)
	}
}

func TestSessionEnqueueDropsWhenFull(t *testing.T) {
	s := newSession(nil, nil, 3, "me@hire.chat")
	for i := 0; i < cap(s.send); i++ {
		s.enqueue([]byte("x"))
	}
	s.enqueue([]byte("overflow")) // must not block or panic
	if len(s.send) != cap(s.send) {
		t.Errorf("queue len = %d, want %d", len(s.send), cap(s.send))
	}
}

func TestDecodeProfile(t *testing.T) {
	p, err := decodeProfile([]byte(`{"id":7,"email":"ana@hire.chat","name":"Ana","status":"ONLINE"}`))
	if err != nil {
		t.Fatalf("decodeProfile() error: %v", err)
	}
	if p.ID != 7 || p.Status != stomp.StatusOnline {
		t.Errorf("profile = %+v", p)
	}
	if _, err := decodeProfile([]byte("junk")); err == nil {
		t.Error("expected error for non-JSON body")
	}
}

func TestGetConnectedUsersRejectsForeignID(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil)
	rec := httptest.NewRecorder()
	h.GetConnectedUsers(rec, authedRequest(t, "/api/users/connected?id=9", 3, "me@hire.chat"))
	if got := envelopeStatus(t, rec); got != http.StatusForbidden {
		t.Errorf("status = %d, want %d", got, http.StatusForbidden)
	}

	rec = httptest.NewRecorder()
	h.GetConnectedUsers(rec, httptest.NewRequest(http.MethodGet, "/api/users/connected", nil))
	if got := envelopeStatus(t, rec); got != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want %d", got, http.StatusUnauthorized)
	}
}

func TestGetChatHistoryScopedToCaller(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil)

	// Neither side of the pair is the caller.
	rec := httptest.NewRecorder()
	h.GetChatHistory(rec, authedRequest(t, "/api/messages?senderId=7&receiverId=9", 3, "me@hire.chat"))
	if got := envelopeStatus(t, rec); got != http.StatusForbidden {
		t.Errorf("status = %d, want %d", got, http.StatusForbidden)
	}

	rec = httptest.NewRecorder()
	h.GetChatHistory(rec, authedRequest(t, "/api/messages?senderId=3", 3, "me@hire.chat"))
	if got := envelopeStatus(t, rec); got != http.StatusBadRequest {
		t.Errorf("missing receiverId status = %d, want %d", got, http.StatusBadRequest)
	}
}

func TestPresenceKey(t *testing.T) {
	if got := presenceKey("ana@hire.chat"); got != "presence:ana@hire.chat" {
		t.Errorf("presenceKey = %q", got)
	}
}
