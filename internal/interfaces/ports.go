package interfaces

import (
	"context"
	"time"

	"hekumbi_chat/internal/entities"
)

type CustomerStore interface {
	CreateCustomer(ctx context.Context, c *entities.Customer) error
	GetCustomer(ctx context.Context, id string) (*entities.Customer, error)
	UpdateCustomer(ctx context.Context, id string, patch entities.ContactPatch, at time.Time) (*entities.Customer, error)
}

type ChatStore interface {
	// CreateChat fails with a ValidationError wrapping ErrOpenChatExists
	// when the customer already has a non-closed chat.
	CreateChat(ctx context.Context, c *entities.Chat) error
	GetChat(ctx context.Context, id string) (*entities.Chat, error)
	FindOpenChat(ctx context.Context, customerID string) (*entities.Chat, error)
	ListChats(ctx context.Context) ([]entities.ChatRow, error)
	// UpdateChat sets the non-nil fields of patch and returns the stored row.
	// A closed chat only accepts priority changes.
	UpdateChat(ctx context.Context, id string, patch entities.ChatPatch, at time.Time) (*entities.Chat, error)
	// TouchChatLastMessage mirrors a saved message onto its chat unless a
	// newer message is already mirrored. When activate is set a pending chat
	// becomes active. Returns the resulting chat.
	TouchChatLastMessage(ctx context.Context, m *entities.Message, unread int, activate bool) (*entities.Chat, error)
}

type MessageStore interface {
	CreateMessage(ctx context.Context, m *entities.Message) error
	ListMessages(ctx context.Context, chatID string) ([]entities.Message, error)
}

type QuoteStore interface {
	CreateQuote(ctx context.Context, q *entities.Quote) error
	GetQuote(ctx context.Context, id string) (*entities.Quote, error)
	ListQuotes(ctx context.Context) ([]entities.QuoteRow, error)
	// UpdateQuote sets the non-nil fields of patch and returns the stored row.
	// A status change must be allowed from the stored status.
	UpdateQuote(ctx context.Context, id string, patch entities.QuotePatch, at time.Time) (*entities.Quote, error)
}

type ActivityStore interface {
	AppendActivity(ctx context.Context, a *entities.Activity) error
	RecentActivities(ctx context.Context, limit int) ([]entities.Activity, error)
}

// RecordStore is the persistence boundary. Get* methods return a
// NotFoundError for unknown ids; backend failures are TransientBackendErrors.
type RecordStore interface {
	CustomerStore
	ChatStore
	MessageStore
	QuoteStore
	ActivityStore
	Ping(ctx context.Context) error
	Close()
}

type ChangePublisher interface {
	Publish(ctx context.Context, ev entities.ChangeEvent)
}

// Subscription delivers change events until Close is called or the
// subscriber falls behind, in which case Events is closed.
type Subscription interface {
	Events() <-chan entities.ChangeEvent
	Close()
}

type ChangeFeed interface {
	ChangePublisher
	Subscribe(topic string) Subscription
}

type Alerter interface {
	Alert(ctx context.Context, text string)
}
