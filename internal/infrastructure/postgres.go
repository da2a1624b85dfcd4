package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}

	if err := client.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

var postgresSchema = []struct {
	name string
	ddl  string
}{
	{"customers", `
		CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`},
	{"chats", `
		CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL REFERENCES customers(id),
			status VARCHAR(10) NOT NULL DEFAULT 'active',
			priority VARCHAR(10) NOT NULL DEFAULT 'medium',
			service_type TEXT NOT NULL DEFAULT '',
			last_message TEXT NOT NULL DEFAULT '',
			last_message_time TIMESTAMPTZ,
			unread_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`},
	// One open conversation per customer.
	{"chats open index", `
		CREATE UNIQUE INDEX IF NOT EXISTS chats_one_open_per_customer
			ON chats (customer_id) WHERE status <> 'closed';`},
	{"messages", `
		CREATE TABLE IF NOT EXISTS messages (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL REFERENCES chats(id),
			sender VARCHAR(10) NOT NULL,
			content TEXT NOT NULL,
			message_type VARCHAR(10) NOT NULL DEFAULT 'text',
			client_ref TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`},
	{"messages index", `
		CREATE INDEX IF NOT EXISTS messages_chat_created ON messages (chat_id, created_at, seq);`},
	{"quotes", `
		CREATE TABLE IF NOT EXISTS quotes (
			id TEXT PRIMARY KEY,
			quote_number VARCHAR(20) NOT NULL,
			customer_id TEXT NOT NULL REFERENCES customers(id),
			chat_id TEXT NOT NULL DEFAULT '',
			service_type TEXT NOT NULL,
			property_type TEXT NOT NULL DEFAULT '',
			area DOUBLE PRECISION NOT NULL DEFAULT 0,
			frequency TEXT NOT NULL DEFAULT '',
			urgency TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			estimated_value BIGINT NOT NULL DEFAULT 0,
			status VARCHAR(10) NOT NULL DEFAULT 'pending',
			priority VARCHAR(10) NOT NULL DEFAULT 'low',
			valid_until TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`},
	{"activities", `
		CREATE TABLE IF NOT EXISTS activities (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			entity_type VARCHAR(20) NOT NULL,
			entity_id TEXT NOT NULL,
			action VARCHAR(20) NOT NULL,
			description TEXT NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`},
	{"activities seq", `
		ALTER TABLE activities ADD COLUMN IF NOT EXISTS seq BIGSERIAL;`},
	{"activities index", `
		CREATE INDEX IF NOT EXISTS activities_created_seq ON activities (created_at DESC, seq DESC);`},
}

func (p *PostgresClient) Migrate(ctx context.Context) error {
	for _, step := range postgresSchema {
		if _, err := p.Pool.Exec(ctx, step.ddl); err != nil {
			return fmt.Errorf("create %s: %w", step.name, err)
		}
	}
	logrus.WithField("steps", len(postgresSchema)).Info("Database schema ready")
	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
