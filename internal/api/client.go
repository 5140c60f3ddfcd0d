// Package api is the REST collaborator client: connected-user list and
// message history, both wrapped in the platform's uniform envelope.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"hirechat/internal/conversation"
	"hirechat/internal/presence"
	"hirechat/internal/stomp"
)

// Envelope is the uniform response wrapper: {statusCode, message, data}.
type Envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

// LoginRequest is the identity bootstrap for the transport handshake.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string        `json:"accessToken"`
	Profile     stomp.Profile `json:"profile"`
}

type Client struct {
	base  string
	token string
	http  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// SetToken attaches the bearer token used on authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login exchanges credentials for a signed token plus the profile the
// transport announces on connect.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body, _ := json.Marshal(LoginRequest{Email: email, Password: password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var res LoginResponse
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	c.token = res.AccessToken
	return &res, nil
}

// ConnectedUsers fetches the full peer list for the sidebar.
func (c *Client) ConnectedUsers(ctx context.Context, userID int64) ([]presence.ConnectedUser, error) {
	req, err := c.get(ctx, "/api/users/connected?id="+strconv.FormatInt(userID, 10))
	if err != nil {
		return nil, err
	}
	var users []presence.ConnectedUser
	if err := c.do(req, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Messages fetches the conversation history between two users, oldest
// first.
func (c *Client) Messages(ctx context.Context, senderID, receiverID int64) ([]conversation.HistoryEntry, error) {
	path := fmt.Sprintf("/api/messages?senderId=%d&receiverId=%d", senderID, receiverID)
	req, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var entries []conversation.HistoryEntry
	if err := c.do(req, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("api: decode %s: %w", req.URL.Path, err)
	}
	if env.StatusCode >= 400 || resp.StatusCode >= 400 {
		return fmt.Errorf("api: %s: %s (status %d)", req.URL.Path, env.Message, env.StatusCode)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("api: decode %s data: %w", req.URL.Path, err)
	}
	return nil
}
