package broker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"hirechat/internal/stomp"
)

// presenceTTL is sized against the client's 3-second heartbeat: three
// missed beats and the key expires.
const presenceTTL = 10 * time.Second

// PresenceStore keeps who-is-online in Redis so every broker instance
// sees the same answer.
type PresenceStore struct {
	redis *redis.Client
}

func NewPresenceStore(rdb *redis.Client) *PresenceStore {
	return &PresenceStore{redis: rdb}
}

func presenceKey(email string) string {
	return "presence:" + email
}

// Touch marks the user online and refreshes the expiry; called on
// addUser and on every heartbeat ping.
func (p *PresenceStore) Touch(ctx context.Context, email string) error {
	return p.redis.Set(ctx, presenceKey(email), "1", presenceTTL).Err()
}

// Drop removes the user's presence key on an explicit disconnect.
func (p *PresenceStore) Drop(ctx context.Context, email string) error {
	return p.redis.Del(ctx, presenceKey(email)).Err()
}

// Status answers ONLINE/OFFLINE for one user.
func (p *PresenceStore) Status(ctx context.Context, email string) stomp.Status {
	n, err := p.redis.Exists(ctx, presenceKey(email)).Result()
	if err != nil || n == 0 {
		return stomp.StatusOffline
	}
	return stomp.StatusOnline
}
