package broker

import (
	"context"
	"database/sql"
	"time"

	"hirechat/internal/conversation"
	"hirechat/internal/presence"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SaveMessage(ctx context.Context, senderID, receiverID int64, content string, at time.Time) error {
	query := `INSERT INTO messages (sender_id, receiver_id, content, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, senderID, receiverID, content, at)
	return err
}

// History returns every message between the two users, oldest first.
func (r *Repository) History(ctx context.Context, a, b int64) ([]conversation.HistoryEntry, error) {
	query := `
		SELECT sender_id, content, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []conversation.HistoryEntry
	for rows.Next() {
		var e conversation.HistoryEntry
		if err := rows.Scan(&e.SenderID, &e.Content, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LastMessages returns, per peer, the newest message exchanged with the
// given user. Feeds the sidebar previews in the connected-users response.
func (r *Repository) LastMessages(ctx context.Context, userID int64) (map[int64]presence.LastMessage, error) {
	query := `
		SELECT DISTINCT ON (LEAST(sender_id, receiver_id), GREATEST(sender_id, receiver_id))
		       sender_id, receiver_id, content, created_at
		FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY LEAST(sender_id, receiver_id), GREATEST(sender_id, receiver_id), created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]presence.LastMessage)
	for rows.Next() {
		var senderID, receiverID int64
		var content string
		var at time.Time
		if err := rows.Scan(&senderID, &receiverID, &content, &at); err != nil {
			return nil, err
		}
		peer := senderID
		if peer == userID {
			peer = receiverID
		}
		out[peer] = presence.LastMessage{Content: content, SenderID: senderID, Timestamp: at}
	}
	return out, rows.Err()
}
