package broker

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"hirechat/internal/middleware"
	"hirechat/internal/presence"
	"hirechat/internal/user"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dev mode; lock down behind a reverse proxy in prod
	},
}

type Handler struct {
	hub      *Hub
	repo     *Repository
	users    *user.Repository
	presence *PresenceStore
}

func NewHandler(hub *Hub, repo *Repository, users *user.Repository, pres *PresenceStore) *Handler {
	return &Handler{hub: hub, repo: repo, users: users, presence: pres}
}

// envelope is the uniform REST response shape.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{StatusCode: status, Message: message, Data: data})
}

func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	userID, email, ok := middleware.UserFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	session := newSession(h.hub, conn, userID, email)
	h.hub.Register <- session

	go session.writePump()
	go session.readPump()
}

// GetConnectedUsers answers the sidebar fetch: every other user with
// live presence and their last-message preview.
func (h *Handler) GetConnectedUsers(w http.ResponseWriter, r *http.Request) {
	authedID, _, ok := middleware.UserFrom(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	userID := authedID
	if q := r.URL.Query().Get("id"); q != "" {
		id, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			respond(w, http.StatusBadRequest, "bad id", nil)
			return
		}
		// The id parameter may only name the caller; previews for other
		// users are not readable.
		if id != authedID {
			respond(w, http.StatusForbidden, "id does not match the authenticated user", nil)
			return
		}
		userID = id
	}

	others, err := h.users.ListOthers(r.Context(), userID)
	if err != nil {
		log.Printf("broker: list users: %v", err)
		respond(w, http.StatusInternalServerError, "could not list users", nil)
		return
	}
	previews, err := h.repo.LastMessages(r.Context(), userID)
	if err != nil {
		log.Printf("broker: previews: %v", err)
		previews = nil // previews are best-effort
	}

	out := make([]presence.ConnectedUser, 0, len(others))
	for _, u := range others {
		cu := presence.ConnectedUser{
			ID:      u.ID,
			Email:   u.Email,
			Name:    u.Name,
			Avatar:  u.Avatar,
			Company: u.Company,
			Status:  h.presence.Status(r.Context(), u.Email),
		}
		if lm, ok := previews[u.ID]; ok {
			lmCopy := lm
			cu.LastMessage = &lmCopy
		}
		out = append(out, cu)
	}
	respond(w, http.StatusOK, "ok", out)
}

// GetChatHistory answers the history fetch for one peer pair, oldest
// first.
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	authedID, _, ok := middleware.UserFrom(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	senderID, err1 := strconv.ParseInt(r.URL.Query().Get("senderId"), 10, 64)
	receiverID, err2 := strconv.ParseInt(r.URL.Query().Get("receiverId"), 10, 64)
	if err1 != nil || err2 != nil {
		respond(w, http.StatusBadRequest, "senderId and receiverId are required", nil)
		return
	}
	if senderID != authedID && receiverID != authedID {
		respond(w, http.StatusForbidden, "history is limited to your own conversations", nil)
		return
	}

	entries, err := h.repo.History(r.Context(), senderID, receiverID)
	if err != nil {
		log.Printf("broker: history: %v", err)
		respond(w, http.StatusInternalServerError, "could not load history", nil)
		return
	}
	respond(w, http.StatusOK, "ok", entries)
}

// Login exchanges credentials for the token the websocket handshake and
// REST calls present.
func (h *Handler) Login(svc *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req user.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		res, err := svc.Login(r.Context(), &req)
		if err != nil {
			respond(w, http.StatusUnauthorized, "invalid credentials", nil)
			return
		}
		respond(w, http.StatusOK, "ok", res)
	}
}
