package usecases

import (
	"context"
	"errors"
	"strings"
	"time"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/interfaces"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CustomerLocker serialises identity work per customer within a process.
type CustomerLocker interface {
	Acquire(customerID string) (release func())
}

type IdentityService struct {
	store interfaces.RecordStore
	rec   recorder
	locks CustomerLocker
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewIdentityService(store interfaces.RecordStore, feed interfaces.ChangePublisher, locks CustomerLocker, log logrus.FieldLogger) *IdentityService {
	return &IdentityService{
		store: store,
		rec:   recorder{activities: store, feed: feed, log: log},
		locks: locks,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type BootstrapRequest struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name" validate:"omitempty,max=120,no_xss"`
	Email      string `json:"email" validate:"omitempty,email"`
}

// Session is what the widget keeps: the customer id to persist locally and
// the chat to open.
type Session struct {
	Customer   *entities.Customer `json:"customer"`
	Chat       *entities.Chat     `json:"chat"`
	NewSession bool               `json:"new_session"`
}

// Bootstrap reuses the customer behind req.CustomerID, or creates a guest
// when it is absent or stale, then returns its open chat, creating one if needed.
func (s *IdentityService) Bootstrap(ctx context.Context, req BootstrapRequest) (*Session, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	sess := &Session{}
	if id := strings.TrimSpace(req.CustomerID); id != "" {
		c, err := s.store.GetCustomer(ctx, id)
		switch {
		case err == nil:
			sess.Customer = c
		case entities.IsNotFound(err):
			s.log.WithField("customer_id", id).Info("Stale customer id, creating a new guest")
		default:
			return nil, err
		}
	}

	if sess.Customer == nil {
		c, err := s.createCustomer(ctx, req)
		if err != nil {
			return nil, err
		}
		sess.Customer = c
		sess.NewSession = true
	}

	chat, err := s.OpenChat(ctx, sess.Customer.ID)
	if err != nil {
		return nil, err
	}
	sess.Chat = chat
	return sess, nil
}

func (s *IdentityService) createCustomer(ctx context.Context, req BootstrapRequest) (*entities.Customer, error) {
	now := s.now()
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = entities.GuestName
	}
	c := &entities.Customer{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     strings.TrimSpace(req.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateCustomer(ctx, c); err != nil {
		return nil, err
	}
	s.rec.activity(ctx, entities.EntityCustomer, c.ID, "created", "Novo cliente: "+c.Name, nil, now)
	return c, nil
}

// OpenChat returns the customer's open chat, creating an active one if there
// is none. Concurrent callers for the same customer get the same chat.
func (s *IdentityService) OpenChat(ctx context.Context, customerID string) (*entities.Chat, error) {
	release := s.locks.Acquire(customerID)
	defer release()

	existing, err := s.store.FindOpenChat(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now()
	chat := &entities.Chat{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Status:     entities.ChatActive,
		Priority:   entities.PriorityMedium,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateChat(ctx, chat); err != nil {
		// Another instance won the race; use its chat.
		if errors.Is(err, entities.ErrOpenChatExists) {
			existing, ferr := s.store.FindOpenChat(ctx, customerID)
			if ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	s.rec.activity(ctx, entities.EntityChat, chat.ID, "created", "Nova conversa iniciada", map[string]interface{}{"customer_id": customerID}, now)
	snapshot := *chat
	s.rec.publish(ctx, entities.EventChatInsert, now, []string{entities.TopicChats}, func(ev *entities.ChangeEvent) {
		ev.Chat = &snapshot
	})
	return chat, nil
}

// UpdateContact fills in name, email or phone collected later in the conversation.
func (s *IdentityService) UpdateContact(ctx context.Context, customerID string, patch entities.ContactPatch) (*entities.Customer, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, entities.Invalid("customer_id", "is required")
	}
	if patch.Empty() {
		return nil, entities.Invalid("", "name, email or phone is required")
	}
	check := struct {
		Name  string `json:"name" validate:"omitempty,min=1,max=120,no_xss"`
		Email string `json:"email" validate:"omitempty,email"`
		Phone string `json:"phone" validate:"omitempty,min=6,max=30"`
	}{}
	if patch.Name != nil {
		v := strings.TrimSpace(*patch.Name)
		if v == "" {
			return nil, entities.Invalid("name", "cannot be empty")
		}
		patch.Name, check.Name = &v, v
	}
	if patch.Email != nil {
		v := strings.TrimSpace(*patch.Email)
		patch.Email, check.Email = &v, v
	}
	if patch.Phone != nil {
		v := strings.TrimSpace(*patch.Phone)
		patch.Phone, check.Phone = &v, v
	}
	if err := validateStruct(check); err != nil {
		return nil, err
	}

	now := s.now()
	c, err := s.store.UpdateCustomer(ctx, customerID, patch, now)
	if err != nil {
		return nil, err
	}
	s.rec.activity(ctx, entities.EntityCustomer, c.ID, "updated", "Dados de contacto atualizados", nil, now)
	return c, nil
}
