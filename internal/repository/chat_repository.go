package repository

import (
	"context"
	"errors"
	"time"

	"hekumbi_chat/internal/entities"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const chatColumns = `c.id, c.customer_id, c.status, c.priority, c.service_type, c.last_message,
	c.last_message_time, c.unread_count, c.created_at, c.updated_at`

type ChatRepository struct {
	db *pgxpool.Pool
}

func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

func scanChat(row pgx.Row, extra ...any) (*entities.Chat, error) {
	var c entities.Chat
	dest := []any{&c.ID, &c.CustomerID, &c.Status, &c.Priority, &c.ServiceType, &c.LastMessage,
		&c.LastMessageTime, &c.UnreadCount, &c.CreatedAt, &c.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChatRepository) CreateChat(ctx context.Context, c *entities.Chat) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO chats (id, customer_id, status, priority, service_type, last_message,
			last_message_time, unread_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.CustomerID, c.Status, c.Priority, c.ServiceType, c.LastMessage,
		c.LastMessageTime, c.UnreadCount, c.CreatedAt, c.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return errOpenChatExists("customer_id")
	}
	return entities.Transient("create chat", err)
}

func (r *ChatRepository) GetChat(ctx context.Context, id string) (*entities.Chat, error) {
	c, err := scanChat(r.db.QueryRow(ctx, "SELECT "+chatColumns+" FROM chats c WHERE c.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.NotFound(entities.EntityChat, id)
	}
	if err != nil {
		return nil, entities.Transient("get chat", err)
	}
	return c, nil
}

// FindOpenChat returns nil when the customer has no open chat.
func (r *ChatRepository) FindOpenChat(ctx context.Context, customerID string) (*entities.Chat, error) {
	c, err := scanChat(r.db.QueryRow(ctx,
		"SELECT "+chatColumns+" FROM chats c WHERE c.customer_id = $1 AND c.status <> 'closed' LIMIT 1",
		customerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, entities.Transient("find open chat", err)
	}
	return c, nil
}

func (r *ChatRepository) ListChats(ctx context.Context) ([]entities.ChatRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+chatColumns+`, COALESCE(cu.name, ''), COALESCE(cu.email, ''), COALESCE(cu.phone, '')
		FROM chats c
		LEFT JOIN customers cu ON cu.id = c.customer_id
		ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, entities.Transient("list chats", err)
	}
	defer rows.Close()

	var out []entities.ChatRow
	for rows.Next() {
		var row entities.ChatRow
		c, err := scanChat(rows, &row.CustomerName, &row.CustomerEmail, &row.CustomerPhone)
		if err != nil {
			return nil, entities.Transient("scan chat", err)
		}
		row.Chat = *c
		out = append(out, row)
	}
	return out, entities.Transient("list chats", rows.Err())
}

func (r *ChatRepository) UpdateChat(ctx context.Context, id string, patch entities.ChatPatch, at time.Time) (*entities.Chat, error) {
	c, err := scanChat(r.db.QueryRow(ctx, `
		UPDATE chats c SET
			status = COALESCE($2, c.status),
			priority = COALESCE($3, c.priority),
			updated_at = $4
		WHERE c.id = $1 AND (c.status <> 'closed' OR COALESCE($2, c.status) = 'closed')
		RETURNING `+chatColumns,
		id, optionalText(patch.Status), optionalText(patch.Priority), at))
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return nil, errOpenChatExists("status")
	case errors.Is(err, pgx.ErrNoRows):
		// Either the chat is unknown or it is closed and the patch reopens it.
		if _, getErr := r.GetChat(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, errReopenClosed()
	case err != nil:
		return nil, entities.Transient("update chat", err)
	}
	return c, nil
}

func (r *ChatRepository) TouchChatLastMessage(ctx context.Context, m *entities.Message, unread int, activate bool) (*entities.Chat, error) {
	c, err := scanChat(r.db.QueryRow(ctx, `
		UPDATE chats c SET
			last_message = CASE WHEN c.last_message_time IS NULL OR c.last_message_time <= $3 THEN $2 ELSE c.last_message END,
			unread_count = CASE WHEN c.last_message_time IS NULL OR c.last_message_time <= $3 THEN $4 ELSE c.unread_count END,
			last_message_time = CASE WHEN c.last_message_time IS NULL OR c.last_message_time <= $3 THEN $3 ELSE c.last_message_time END,
			status = CASE WHEN $5 AND c.status = 'pending' THEN 'active' ELSE c.status END,
			updated_at = $6
		WHERE c.id = $1
		RETURNING `+chatColumns,
		m.ChatID, m.Content, m.CreatedAt, unread, activate, time.Now().UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.NotFound(entities.EntityChat, m.ChatID)
	}
	if err != nil {
		return nil, entities.Transient("touch chat", err)
	}
	return c, nil
}
