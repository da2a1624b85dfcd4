package repository

import (
	"context"

	"hekumbi_chat/internal/entities"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) CreateMessage(ctx context.Context, m *entities.Message) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO messages (id, chat_id, sender, content, message_type, client_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.ChatID, m.Sender, m.Content, m.MessageType, m.ClientRef, m.CreatedAt)
	return entities.Transient("create message", err)
}

// ListMessages returns the chat history oldest first; ties keep insertion order.
func (r *MessageRepository) ListMessages(ctx context.Context, chatID string) ([]entities.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, chat_id, sender, content, message_type, client_ref, created_at
		FROM messages WHERE chat_id = $1
		ORDER BY created_at ASC, seq ASC`, chatID)
	if err != nil {
		return nil, entities.Transient("list messages", err)
	}
	defer rows.Close()

	out := []entities.Message{}
	for rows.Next() {
		var m entities.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Sender, &m.Content, &m.MessageType, &m.ClientRef, &m.CreatedAt); err != nil {
			return nil, entities.Transient("scan message", err)
		}
		m.Delivery = entities.DeliverySent
		out = append(out, m)
	}
	return out, entities.Transient("list messages", rows.Err())
}
