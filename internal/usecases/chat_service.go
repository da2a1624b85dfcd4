package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/interfaces"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const NoMessages = "Sem mensagens"

// FloodGuard limits how fast one chat may receive customer messages.
type FloodGuard interface {
	Allow(key string) bool
	WaitTime(key string) time.Duration
	Reset(key string)
}

type ChatService struct {
	store   interfaces.RecordStore
	rec     recorder
	alerter interfaces.Alerter
	flood   FloodGuard
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewChatService(store interfaces.RecordStore, feed interfaces.ChangePublisher, alerter interfaces.Alerter, flood FloodGuard, log logrus.FieldLogger) *ChatService {
	return &ChatService{
		store:   store,
		rec:     recorder{activities: store, feed: feed, log: log},
		alerter: alerter,
		flood:   flood,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ChatView is the admin list shape of a chat.
type ChatView struct {
	ID              string              `json:"id"`
	CustomerID      string              `json:"customerId"`
	CustomerName    string              `json:"customerName"`
	CustomerEmail   string              `json:"customerEmail"`
	CustomerPhone   string              `json:"customerPhone"`
	Status          entities.ChatStatus `json:"status"`
	Priority        entities.Priority   `json:"priority"`
	ServiceType     string              `json:"serviceType"`
	LastMessage     string              `json:"lastMessage"`
	LastMessageTime *time.Time          `json:"lastMessageTime"`
	UnreadCount     int                 `json:"unreadCount"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

type ChatStats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Pending int `json:"pending"`
	Closed  int `json:"closed"`
}

type ChatList struct {
	Chats []ChatView `json:"chats"`
	Total int        `json:"total"`
	Stats ChatStats  `json:"stats"`
	Page  *PageInfo  `json:"page,omitempty"`
}

func NewChatView(r entities.ChatRow) ChatView {
	last := r.LastMessage
	if strings.TrimSpace(last) == "" {
		last = NoMessages
	}
	return ChatView{
		ID:              r.ID,
		CustomerID:      r.CustomerID,
		CustomerName:    orNA(r.CustomerName),
		CustomerEmail:   orNA(r.CustomerEmail),
		CustomerPhone:   orNA(r.CustomerPhone),
		Status:          r.Status,
		Priority:        r.Priority,
		ServiceType:     orNA(r.ServiceType),
		LastMessage:     last,
		LastMessageTime: r.LastMessageTime,
		UnreadCount:     r.UnreadCount,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// ListChats returns the chats matching filter, newest first.
func (s *ChatService) ListChats(ctx context.Context, filter entities.ListFilter) (*ChatList, error) {
	rows, err := s.store.ListChats(ctx)
	if err != nil {
		return nil, err
	}

	out := &ChatList{Chats: []ChatView{}}
	var matched []entities.ChatRow
	for _, r := range rows {
		if !filter.MatchesChat(r) {
			continue
		}
		matched = append(matched, r)
		out.Stats.Total++
		switch r.Status {
		case entities.ChatActive:
			out.Stats.Active++
		case entities.ChatPending:
			out.Stats.Pending++
		case entities.ChatClosed:
			out.Stats.Closed++
		}
	}

	start, end, page := paginate(filter, len(matched))
	for _, r := range matched[start:end] {
		out.Chats = append(out.Chats, NewChatView(r))
	}
	out.Total = len(matched)
	out.Page = page
	return out, nil
}

func (s *ChatService) GetChat(ctx context.Context, id string) (*entities.Chat, error) {
	if strings.TrimSpace(id) == "" {
		return nil, entities.Invalid("id", "is required")
	}
	return s.store.GetChat(ctx, id)
}

// UpdateChat applies the non-nil fields of patch. Closed chats stay closed.
func (s *ChatService) UpdateChat(ctx context.Context, id string, patch entities.ChatPatch) (*entities.Chat, error) {
	if strings.TrimSpace(id) == "" {
		return nil, entities.Invalid("id", "is required")
	}
	if patch.Status == nil && patch.Priority == nil {
		return nil, entities.Invalid("", "status or priority is required")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, entities.Invalid("status", "must be one of: active pending closed")
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, entities.Invalid("priority", "must be one of: low medium high")
	}

	meta := map[string]interface{}{}
	var changes []string
	if patch.Status != nil {
		meta["status"] = string(*patch.Status)
		changes = append(changes, change("status alterado", *patch.Status))
	}
	if patch.Priority != nil {
		meta["priority"] = string(*patch.Priority)
		changes = append(changes, change("prioridade alterada", *patch.Priority))
	}
	now := s.now()

	// Publish the row as stored, never a locally patched copy.
	chat, err := s.store.UpdateChat(ctx, id, patch, now)
	if err != nil {
		return nil, err
	}

	if chat.Status == entities.ChatClosed && s.flood != nil {
		s.flood.Reset(chat.ID)
	}
	s.rec.activity(ctx, entities.EntityChat, chat.ID, "updated", describeChanges("Chat", changes), meta, now)
	s.publishChat(ctx, entities.EventChatUpdate, chat, now)
	s.log.WithFields(logrus.Fields{"chat_id": chat.ID, "status": chat.Status, "priority": chat.Priority}).Info("Chat updated")
	return chat, nil
}

func (s *ChatService) ListMessages(ctx context.Context, chatID string) ([]entities.Message, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, chatID)
}

// PostMessage saves a message and mirrors it onto its chat. Customer
// messages raise the chat's unread flag; an admin reply activates a pending chat.
func (s *ChatService) PostMessage(ctx context.Context, chatID string, in entities.NewMessage) (*entities.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, entities.Invalid("content", "is required")
	}
	if len(content) > MaxMessageLength {
		return nil, entities.Invalid("content", fmt.Sprintf("must be at most %d characters", MaxMessageLength))
	}
	if in.Sender == "" {
		in.Sender = entities.SenderCustomer
	}
	if !in.Sender.Valid() {
		return nil, entities.Invalid("sender", "must be one of: customer admin bot")
	}
	if in.MessageType == "" {
		in.MessageType = entities.MessageText
	}
	if !in.MessageType.Valid() {
		return nil, entities.Invalid("message_type", "must be one of: text image file")
	}

	chat, err := s.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.Status == entities.ChatClosed {
		return nil, &entities.ValidationError{Field: "chat_id", Reason: "chat is closed", Err: entities.ErrChatClosed}
	}
	if in.Sender == entities.SenderCustomer && s.flood != nil && !s.flood.Allow(chatID) {
		wait := s.flood.WaitTime(chatID).Round(time.Second)
		if wait < time.Second {
			wait = time.Second
		}
		return nil, &entities.ValidationError{
			Field:  "content",
			Reason: fmt.Sprintf("too many messages, retry in %s", wait),
			Err:    entities.ErrRateLimited,
		}
	}

	now := s.now()
	m := &entities.Message{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		Sender:      in.Sender,
		Content:     content,
		MessageType: in.MessageType,
		ClientRef:   in.ClientRef,
		Delivery:    entities.DeliverySent,
		CreatedAt:   now,
	}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		return nil, err
	}

	unread := 0
	if m.Sender == entities.SenderCustomer {
		unread = 1
	}
	updated, err := s.store.TouchChatLastMessage(ctx, m, unread, m.Sender == entities.SenderAdmin)
	if err != nil {
		s.log.WithError(err).WithField("chat_id", chatID).Warn("Message saved but chat not updated")
	}

	s.rec.publish(ctx, entities.EventMessageInsert, now, []string{entities.ChatTopic(chatID)}, func(ev *entities.ChangeEvent) {
		ev.Message = m
	})
	if updated != nil {
		s.publishChat(ctx, entities.EventChatUpdate, updated, now)
	}

	if m.Sender == entities.SenderCustomer && s.alerter != nil {
		s.alerter.Alert(ctx, fmt.Sprintf("💬 Nova mensagem no chat %s\n%s", chatID, truncate(content, 200)))
	}
	return m, nil
}

func (s *ChatService) publishChat(ctx context.Context, typ entities.EventType, chat *entities.Chat, at time.Time) {
	snapshot := *chat
	s.rec.publish(ctx, typ, at, []string{entities.ChatTopic(chat.ID), entities.TopicChats}, func(ev *entities.ChangeEvent) {
		ev.Chat = &snapshot
	})
}

// MaxMessageLength bounds a single chat message in bytes.
const MaxMessageLength = 4000
