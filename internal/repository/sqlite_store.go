package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/interfaces"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore is the embedded RecordStore. Timestamps are stored as unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

var _ interfaces.RecordStore = (*SQLiteStore)(nil)

func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single writer connection keeps the open-chat check and insert serialised.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		service_type TEXT NOT NULL DEFAULT '',
		last_message TEXT NOT NULL DEFAULT '',
		last_message_time INTEGER,
		unread_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS chats_one_open_per_customer ON chats(customer_id) WHERE status <> 'closed';
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL REFERENCES chats(id),
		sender TEXT NOT NULL,
		content TEXT NOT NULL,
		message_type TEXT NOT NULL,
		client_ref TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS messages_chat_created ON messages(chat_id, created_at);
	CREATE TABLE IF NOT EXISTS quotes (
		id TEXT PRIMARY KEY,
		quote_number TEXT NOT NULL,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		chat_id TEXT NOT NULL DEFAULT '',
		service_type TEXT NOT NULL,
		property_type TEXT NOT NULL DEFAULT '',
		area REAL NOT NULL DEFAULT 0,
		frequency TEXT NOT NULL DEFAULT '',
		urgency TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		estimated_value INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		valid_until INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		action TEXT NOT NULL,
		description TEXT NOT NULL,
		metadata TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS activities_created ON activities(created_at);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// Customers

func (s *SQLiteStore) CreateCustomer(ctx context.Context, c *entities.Customer) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO customers (id, name, email, phone, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		c.ID, c.Name, c.Email, c.Phone, c.CreatedAt.UnixNano(), c.UpdatedAt.UnixNano())
	return entities.Transient("create customer", err)
}

func (s *SQLiteStore) GetCustomer(ctx context.Context, id string) (*entities.Customer, error) {
	var c entities.Customer
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, phone, created_at, updated_at FROM customers WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, entities.NotFound(entities.EntityCustomer, id)
	}
	if err != nil {
		return nil, entities.Transient("get customer", err)
	}
	c.CreatedAt, c.UpdatedAt = fromNanos(created), fromNanos(updated)
	return &c, nil
}

func (s *SQLiteStore) UpdateCustomer(ctx context.Context, id string, patch entities.ContactPatch, at time.Time) (*entities.Customer, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers SET
			name = COALESCE(?, name),
			email = COALESCE(?, email),
			phone = COALESCE(?, phone),
			updated_at = ?
		WHERE id = ?`,
		nullable(patch.Name), nullable(patch.Email), nullable(patch.Phone), at.UnixNano(), id)
	if err != nil {
		return nil, entities.Transient("update customer", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, entities.NotFound(entities.EntityCustomer, id)
	}
	return s.GetCustomer(ctx, id)
}

func nullable(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

// Chats

const sqliteChatColumns = `c.id, c.customer_id, c.status, c.priority, c.service_type, c.last_message,
	c.last_message_time, c.unread_count, c.created_at, c.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteChat(row rowScanner, extra ...any) (*entities.Chat, error) {
	var c entities.Chat
	var lastTime sql.NullInt64
	var created, updated int64
	dest := []any{&c.ID, &c.CustomerID, &c.Status, &c.Priority, &c.ServiceType, &c.LastMessage,
		&lastTime, &c.UnreadCount, &created, &updated}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if lastTime.Valid {
		t := fromNanos(lastTime.Int64)
		c.LastMessageTime = &t
	}
	c.CreatedAt, c.UpdatedAt = fromNanos(created), fromNanos(updated)
	return &c, nil
}

func (s *SQLiteStore) CreateChat(ctx context.Context, c *entities.Chat) error {
	var lastTime sql.NullInt64
	if c.LastMessageTime != nil {
		lastTime = sql.NullInt64{Int64: c.LastMessageTime.UnixNano(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, customer_id, status, priority, service_type, last_message,
			last_message_time, unread_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CustomerID, string(c.Status), string(c.Priority), c.ServiceType, c.LastMessage,
		lastTime, c.UnreadCount, c.CreatedAt.UnixNano(), c.UpdatedAt.UnixNano())
	if isUniqueViolation(err) {
		return errOpenChatExists("customer_id")
	}
	return entities.Transient("create chat", err)
}

func (s *SQLiteStore) GetChat(ctx context.Context, id string) (*entities.Chat, error) {
	c, err := scanSQLiteChat(s.db.QueryRowContext(ctx, "SELECT "+sqliteChatColumns+" FROM chats c WHERE c.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, entities.NotFound(entities.EntityChat, id)
	}
	if err != nil {
		return nil, entities.Transient("get chat", err)
	}
	return c, nil
}

func (s *SQLiteStore) FindOpenChat(ctx context.Context, customerID string) (*entities.Chat, error) {
	c, err := scanSQLiteChat(s.db.QueryRowContext(ctx,
		"SELECT "+sqliteChatColumns+" FROM chats c WHERE c.customer_id = ? AND c.status <> 'closed' LIMIT 1", customerID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, entities.Transient("find open chat", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListChats(ctx context.Context) ([]entities.ChatRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteChatColumns+`, COALESCE(cu.name, ''), COALESCE(cu.email, ''), COALESCE(cu.phone, '')
		FROM chats c LEFT JOIN customers cu ON cu.id = c.customer_id
		ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, entities.Transient("list chats", err)
	}
	defer rows.Close()

	var out []entities.ChatRow
	for rows.Next() {
		var row entities.ChatRow
		c, err := scanSQLiteChat(rows, &row.CustomerName, &row.CustomerEmail, &row.CustomerPhone)
		if err != nil {
			return nil, entities.Transient("scan chat", err)
		}
		row.Chat = *c
		out = append(out, row)
	}
	return out, entities.Transient("list chats", rows.Err())
}

const sqliteChatReturning = `id, customer_id, status, priority, service_type, last_message,
	last_message_time, unread_count, created_at, updated_at`

func (s *SQLiteStore) UpdateChat(ctx context.Context, id string, patch entities.ChatPatch, at time.Time) (*entities.Chat, error) {
	c, err := scanSQLiteChat(s.db.QueryRowContext(ctx, `
		UPDATE chats SET
			status = COALESCE(?2, status),
			priority = COALESCE(?3, priority),
			updated_at = ?4
		WHERE id = ?1 AND (status <> 'closed' OR COALESCE(?2, status) = 'closed')
		RETURNING `+sqliteChatReturning,
		id, nullable(optionalText(patch.Status)), nullable(optionalText(patch.Priority)), at.UnixNano()))
	switch {
	case isUniqueViolation(err):
		return nil, errOpenChatExists("status")
	case err == sql.ErrNoRows:
		if _, getErr := s.GetChat(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, errReopenClosed()
	case err != nil:
		return nil, entities.Transient("update chat", err)
	}
	return c, nil
}

func (s *SQLiteStore) TouchChatLastMessage(ctx context.Context, m *entities.Message, unread int, activate bool) (*entities.Chat, error) {
	at := m.CreatedAt.UnixNano()
	res, err := s.db.ExecContext(ctx, `
		UPDATE chats SET
			last_message = CASE WHEN last_message_time IS NULL OR last_message_time <= ?1 THEN ?2 ELSE last_message END,
			unread_count = CASE WHEN last_message_time IS NULL OR last_message_time <= ?1 THEN ?3 ELSE unread_count END,
			last_message_time = CASE WHEN last_message_time IS NULL OR last_message_time <= ?1 THEN ?1 ELSE last_message_time END,
			status = CASE WHEN ?4 AND status = 'pending' THEN 'active' ELSE status END,
			updated_at = ?5
		WHERE id = ?6`,
		at, m.Content, unread, activate, time.Now().UTC().UnixNano(), m.ChatID)
	if err != nil {
		return nil, entities.Transient("touch chat", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, entities.NotFound(entities.EntityChat, m.ChatID)
	}
	return s.GetChat(ctx, m.ChatID)
}

// Messages

func (s *SQLiteStore) CreateMessage(ctx context.Context, m *entities.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, sender, content, message_type, client_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, string(m.Sender), m.Content, string(m.MessageType), m.ClientRef, m.CreatedAt.UnixNano())
	return entities.Transient("create message", err)
}

func (s *SQLiteStore) ListMessages(ctx context.Context, chatID string) ([]entities.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, sender, content, message_type, client_ref, created_at
		FROM messages WHERE chat_id = ?
		ORDER BY created_at ASC, rowid ASC`, chatID)
	if err != nil {
		return nil, entities.Transient("list messages", err)
	}
	defer rows.Close()

	out := []entities.Message{}
	for rows.Next() {
		var m entities.Message
		var created int64
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Sender, &m.Content, &m.MessageType, &m.ClientRef, &created); err != nil {
			return nil, entities.Transient("scan message", err)
		}
		m.CreatedAt = fromNanos(created)
		m.Delivery = entities.DeliverySent
		out = append(out, m)
	}
	return out, entities.Transient("list messages", rows.Err())
}

// Quotes

const sqliteQuoteColumns = `q.id, q.quote_number, q.customer_id, q.chat_id, q.service_type, q.property_type,
	q.area, q.frequency, q.urgency, q.location, q.description, q.estimated_value,
	q.status, q.priority, q.valid_until, q.created_at, q.updated_at`

func scanSQLiteQuote(row rowScanner, extra ...any) (*entities.Quote, error) {
	var q entities.Quote
	var validUntil, created, updated int64
	dest := []any{&q.ID, &q.QuoteNumber, &q.CustomerID, &q.ChatID, &q.ServiceType, &q.PropertyType,
		&q.Area, &q.Frequency, &q.Urgency, &q.Location, &q.Description, &q.EstimatedValue,
		&q.Status, &q.Priority, &validUntil, &created, &updated}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	q.ValidUntil, q.CreatedAt, q.UpdatedAt = fromNanos(validUntil), fromNanos(created), fromNanos(updated)
	return &q, nil
}

func (s *SQLiteStore) CreateQuote(ctx context.Context, q *entities.Quote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quotes (id, quote_number, customer_id, chat_id, service_type, property_type,
			area, frequency, urgency, location, description, estimated_value,
			status, priority, valid_until, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.QuoteNumber, q.CustomerID, q.ChatID, q.ServiceType, q.PropertyType,
		q.Area, q.Frequency, q.Urgency, q.Location, q.Description, q.EstimatedValue,
		string(q.Status), string(q.Priority), q.ValidUntil.UnixNano(), q.CreatedAt.UnixNano(), q.UpdatedAt.UnixNano())
	return entities.Transient("create quote", err)
}

func (s *SQLiteStore) GetQuote(ctx context.Context, id string) (*entities.Quote, error) {
	q, err := scanSQLiteQuote(s.db.QueryRowContext(ctx, "SELECT "+sqliteQuoteColumns+" FROM quotes q WHERE q.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, entities.NotFound(entities.EntityQuote, id)
	}
	if err != nil {
		return nil, entities.Transient("get quote", err)
	}
	return q, nil
}

func (s *SQLiteStore) ListQuotes(ctx context.Context) ([]entities.QuoteRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteQuoteColumns+`, COALESCE(cu.name, ''), COALESCE(cu.email, ''), COALESCE(cu.phone, '')
		FROM quotes q LEFT JOIN customers cu ON cu.id = q.customer_id
		ORDER BY q.created_at DESC`)
	if err != nil {
		return nil, entities.Transient("list quotes", err)
	}
	defer rows.Close()

	var out []entities.QuoteRow
	for rows.Next() {
		var row entities.QuoteRow
		q, err := scanSQLiteQuote(rows, &row.CustomerName, &row.CustomerEmail, &row.CustomerPhone)
		if err != nil {
			return nil, entities.Transient("scan quote", err)
		}
		row.Quote = *q
		out = append(out, row)
	}
	return out, entities.Transient("list quotes", rows.Err())
}

const sqliteQuoteReturning = `id, quote_number, customer_id, chat_id, service_type, property_type,
	area, frequency, urgency, location, description, estimated_value,
	status, priority, valid_until, created_at, updated_at`

func (s *SQLiteStore) UpdateQuote(ctx context.Context, id string, patch entities.QuotePatch, at time.Time) (*entities.Quote, error) {
	var sources sql.NullString
	if from := sourceStatuses(patch.Status); from != nil {
		b, err := json.Marshal(from)
		if err != nil {
			return nil, fmt.Errorf("encode quote statuses: %w", err)
		}
		sources = sql.NullString{String: string(b), Valid: true}
	}
	var value sql.NullInt64
	if patch.EstimatedValue != nil {
		value = sql.NullInt64{Int64: *patch.EstimatedValue, Valid: true}
	}
	q, err := scanSQLiteQuote(s.db.QueryRowContext(ctx, `
		UPDATE quotes SET
			status = COALESCE(?2, status),
			priority = COALESCE(?3, priority),
			estimated_value = COALESCE(?4, estimated_value),
			updated_at = ?5
		WHERE id = ?1 AND (?6 IS NULL OR status IN (SELECT value FROM json_each(?6)))
		RETURNING `+sqliteQuoteReturning,
		id, nullable(optionalText(patch.Status)), nullable(optionalText(patch.Priority)), value, at.UnixNano(), sources))
	if err == sql.ErrNoRows {
		cur, getErr := s.GetQuote(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if patch.Status == nil {
			return nil, entities.NotFound(entities.EntityQuote, id)
		}
		return nil, errQuoteTransition(cur.Status, *patch.Status)
	}
	if err != nil {
		return nil, entities.Transient("update quote", err)
	}
	return q, nil
}

// Activities

func (s *SQLiteStore) AppendActivity(ctx context.Context, a *entities.Activity) error {
	var meta sql.NullString
	if len(a.Metadata) > 0 {
		b, err := json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("encode activity metadata: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (id, entity_type, entity_id, action, description, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.EntityType), a.EntityID, a.Action, a.Description, meta, a.CreatedAt.UnixNano())
	return entities.Transient("append activity", err)
}

func (s *SQLiteStore) RecentActivities(ctx context.Context, limit int) ([]entities.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, action, description, metadata, created_at
		FROM activities ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, entities.Transient("recent activities", err)
	}
	defer rows.Close()

	out := []entities.Activity{}
	for rows.Next() {
		var a entities.Activity
		var meta sql.NullString
		var created int64
		if err := rows.Scan(&a.ID, &a.EntityType, &a.EntityID, &a.Action, &a.Description, &meta, &created); err != nil {
			return nil, entities.Transient("scan activity", err)
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &a.Metadata); err != nil {
				return nil, fmt.Errorf("decode activity metadata: %w", err)
			}
		}
		a.CreatedAt = fromNanos(created)
		out = append(out, a)
	}
	return out, entities.Transient("recent activities", rows.Err())
}
