package repository

import (
	"context"

	"hekumbi_chat/internal/infrastructure"
	"hekumbi_chat/internal/interfaces"
)

// PostgresStore composes the per-table repositories into one RecordStore.
type PostgresStore struct {
	*CustomerRepository
	*ChatRepository
	*MessageRepository
	*QuoteRepository
	*ActivityRepository
	client *infrastructure.PostgresClient
}

var _ interfaces.RecordStore = (*PostgresStore)(nil)

func NewPostgresStore(client *infrastructure.PostgresClient) *PostgresStore {
	return &PostgresStore{
		CustomerRepository: NewCustomerRepository(client.Pool),
		ChatRepository:     NewChatRepository(client.Pool),
		MessageRepository:  NewMessageRepository(client.Pool),
		QuoteRepository:    NewQuoteRepository(client.Pool),
		ActivityRepository: NewActivityRepository(client.Pool),
		client:             client,
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.client.Pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.client.Close()
}
