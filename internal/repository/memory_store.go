package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/interfaces"
)

// MemoryStore keeps every table in process. Used when no database is
// configured and by tests.
type MemoryStore struct {
	mu         sync.RWMutex
	customers  map[string]entities.Customer
	chats      map[string]entities.Chat
	chatOrder  []string
	messages   map[string][]entities.Message
	quotes     map[string]entities.Quote
	quoteOrder []string
	activities []entities.Activity
	closed     bool
}

var _ interfaces.RecordStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[string]entities.Customer),
		chats:     make(map[string]entities.Chat),
		messages:  make(map[string][]entities.Message),
		quotes:    make(map[string]entities.Quote),
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return entities.Transient("ping", errStoreClosed)
	}
	return nil
}

func (s *MemoryStore) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

var errStoreClosed = errors.New("memory store closed")

func (s *MemoryStore) CreateCustomer(ctx context.Context, c *entities.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = *c
	return nil
}

func (s *MemoryStore) GetCustomer(ctx context.Context, id string) (*entities.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, entities.NotFound(entities.EntityCustomer, id)
	}
	return &c, nil
}

func (s *MemoryStore) UpdateCustomer(ctx context.Context, id string, patch entities.ContactPatch, at time.Time) (*entities.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, entities.NotFound(entities.EntityCustomer, id)
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Email != nil {
		c.Email = *patch.Email
	}
	if patch.Phone != nil {
		c.Phone = *patch.Phone
	}
	c.UpdatedAt = at
	s.customers[id] = c
	return &c, nil
}

func (s *MemoryStore) openChatLocked(customerID, exceptID string) (entities.Chat, bool) {
	for _, id := range s.chatOrder {
		c := s.chats[id]
		if c.CustomerID == customerID && c.Status != entities.ChatClosed && c.ID != exceptID {
			return c, true
		}
	}
	return entities.Chat{}, false
}

func (s *MemoryStore) CreateChat(ctx context.Context, c *entities.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Status != entities.ChatClosed {
		if _, exists := s.openChatLocked(c.CustomerID, ""); exists {
			return errOpenChatExists("customer_id")
		}
	}
	s.chats[c.ID] = *c
	s.chatOrder = append(s.chatOrder, c.ID)
	return nil
}

func (s *MemoryStore) GetChat(ctx context.Context, id string) (*entities.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, entities.NotFound(entities.EntityChat, id)
	}
	return &c, nil
}

func (s *MemoryStore) FindOpenChat(ctx context.Context, customerID string) (*entities.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.openChatLocked(customerID, "")
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *MemoryStore) ListChats(ctx context.Context) ([]entities.ChatRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.ChatRow, 0, len(s.chats))
	for _, id := range s.chatOrder {
		c := s.chats[id]
		row := entities.ChatRow{Chat: c}
		if cu, ok := s.customers[c.CustomerID]; ok {
			row.CustomerName, row.CustomerEmail, row.CustomerPhone = cu.Name, cu.Email, cu.Phone
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateChat(ctx context.Context, id string, patch entities.ChatPatch, at time.Time) (*entities.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.chats[id]
	if !ok {
		return nil, entities.NotFound(entities.EntityChat, id)
	}
	status := cur.Status
	if patch.Status != nil {
		status = *patch.Status
	}
	if cur.Status == entities.ChatClosed && status != entities.ChatClosed {
		return nil, errReopenClosed()
	}
	if status != entities.ChatClosed {
		if _, exists := s.openChatLocked(cur.CustomerID, id); exists {
			return nil, errOpenChatExists("status")
		}
	}
	cur.Status = status
	if patch.Priority != nil {
		cur.Priority = *patch.Priority
	}
	cur.UpdatedAt = at
	s.chats[id] = cur
	return &cur, nil
}

func (s *MemoryStore) TouchChatLastMessage(ctx context.Context, m *entities.Message, unread int, activate bool) (*entities.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[m.ChatID]
	if !ok {
		return nil, entities.NotFound(entities.EntityChat, m.ChatID)
	}
	if c.LastMessageTime == nil || !c.LastMessageTime.After(m.CreatedAt) {
		at := m.CreatedAt
		c.LastMessage, c.LastMessageTime, c.UnreadCount = m.Content, &at, unread
	}
	if activate && c.Status == entities.ChatPending {
		c.Status = entities.ChatActive
	}
	c.UpdatedAt = time.Now().UTC()
	s.chats[c.ID] = c
	return &c, nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, m *entities.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[m.ChatID]; !ok {
		return entities.NotFound(entities.EntityChat, m.ChatID)
	}
	s.messages[m.ChatID] = append(s.messages[m.ChatID], *m)
	return nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, chatID string) ([]entities.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.Message, len(s.messages[chatID]))
	copy(out, s.messages[chatID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	for i := range out {
		out[i].Delivery = entities.DeliverySent
	}
	return out, nil
}

func (s *MemoryStore) CreateQuote(ctx context.Context, q *entities.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.ID] = *q
	s.quoteOrder = append(s.quoteOrder, q.ID)
	return nil
}

func (s *MemoryStore) GetQuote(ctx context.Context, id string) (*entities.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[id]
	if !ok {
		return nil, entities.NotFound(entities.EntityQuote, id)
	}
	return &q, nil
}

func (s *MemoryStore) ListQuotes(ctx context.Context) ([]entities.QuoteRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.QuoteRow, 0, len(s.quotes))
	for _, id := range s.quoteOrder {
		q := s.quotes[id]
		row := entities.QuoteRow{Quote: q}
		if cu, ok := s.customers[q.CustomerID]; ok {
			row.CustomerName, row.CustomerEmail, row.CustomerPhone = cu.Name, cu.Email, cu.Phone
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateQuote(ctx context.Context, id string, patch entities.QuotePatch, at time.Time) (*entities.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.quotes[id]
	if !ok {
		return nil, entities.NotFound(entities.EntityQuote, id)
	}
	if patch.Status != nil {
		if !cur.Status.CanTransitionTo(*patch.Status) {
			return nil, errQuoteTransition(cur.Status, *patch.Status)
		}
		cur.Status = *patch.Status
	}
	if patch.Priority != nil {
		cur.Priority = *patch.Priority
	}
	if patch.EstimatedValue != nil {
		cur.EstimatedValue = *patch.EstimatedValue
	}
	cur.UpdatedAt = at
	s.quotes[id] = cur
	return &cur, nil
}

func (s *MemoryStore) AppendActivity(ctx context.Context, a *entities.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = append(s.activities, *a)
	return nil
}

func (s *MemoryStore) RecentActivities(ctx context.Context, limit int) ([]entities.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Newest first; later appends win ties.
	out := make([]entities.Activity, 0, len(s.activities))
	for i := len(s.activities) - 1; i >= 0; i-- {
		out = append(out, s.activities[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
