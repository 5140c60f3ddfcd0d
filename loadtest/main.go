// Stress tool: logs seeded account pairs in over REST, opens websocket
// sessions speaking the broker's frame protocol, and exchanges messages.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	baseURL  = flag.String("url", "http://localhost:8080", "broker base URL")
	msgCount = flag.Int("messages", 20, "messages per side")
)

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	Profile     struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"profile"`
}

func main() {
	flag.Parse()
	pairs := [][2]string{{"ana@hire.chat", "bo@hire.chat"}}

	var wg sync.WaitGroup
	for _, pair := range pairs {
		a, err := login(pair[0])
		if err != nil {
			log.Fatalf("login %s: %v", pair[0], err)
		}
		b, err := login(pair[1])
		if err != nil {
			log.Fatalf("login %s: %v", pair[1], err)
		}

		wg.Add(2)
		go spam(&wg, a, b.Profile.ID)
		go spam(&wg, b, a.Profile.ID)
	}
	wg.Wait()
	log.Println("load test complete")
}

func login(email string) (*loginResponse, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": "password123"})
	resp, err := http.Post(*baseURL+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, err
	}
	if env.StatusCode != 200 {
		return nil, fmt.Errorf("login: %s", env.Message)
	}
	var res loginResponse
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func frame(cmd string, headers map[string]string, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(cmd + "\n")
	for k, v := range headers {
		buf.WriteString(k + ":" + v + "\n")
	}
	buf.WriteString("\n")
	buf.Write(body)
	buf.WriteByte(0)
	return buf.Bytes()
}

func spam(wg *sync.WaitGroup, self *loginResponse, peerID int64) {
	defer wg.Done()

	wsURL := "ws" + (*baseURL)[4:] + "/ws?token=" + self.AccessToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Printf("ws connect %s: %v", self.Profile.Email, err)
		return
	}
	defer conn.Close()

	conn.WriteMessage(websocket.TextMessage, frame("CONNECT", map[string]string{
		"accept-version": "1.2",
		"login":          self.Profile.Email,
		"passcode":       self.AccessToken,
	}, nil))
	conn.WriteMessage(websocket.TextMessage, frame("SUBSCRIBE", map[string]string{
		"id":          uuid.NewString(),
		"destination": "/user/" + self.Profile.Email + "/queue/messages",
	}, nil))

	for i := 0; i < *msgCount; i++ {
		body, _ := json.Marshal(map[string]any{
			"sender":    map[string]any{"id": self.Profile.ID, "name": self.Profile.Name},
			"receiver":  map[string]any{"id": peerID},
			"content":   fmt.Sprintf("load msg %d from %s", i, self.Profile.Email),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		err := conn.WriteMessage(websocket.TextMessage, frame("SEND", map[string]string{
			"destination":  "/app/chat",
			"content-type": "application/json",
		}, body))
		if err != nil {
			log.Printf("send %s: %v", self.Profile.Email, err)
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	log.Printf("%s finished sending %d messages", self.Profile.Email, *msgCount)
}
