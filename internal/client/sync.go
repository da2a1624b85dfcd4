package client

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hekumbi_chat/internal/entities"
)

const (
	DefaultReconcileInterval = 60 * time.Second
	DefaultBotDelay          = 1500 * time.Millisecond
)

// MessageAPI is the part of the gateway a chat view needs.
type MessageAPI interface {
	ListMessages(ctx context.Context, surface Surface, chatID string) ([]entities.Message, error)
	PostMessage(ctx context.Context, surface Surface, chatID string, in entities.NewMessage) (*entities.Message, error)
}

// Responder picks the scripted bot message that follows a sent message.
type Responder interface {
	Respond(sender entities.Sender, content string) (string, bool)
}

type ChatSyncConfig struct {
	Surface   Surface
	Chat      entities.Chat
	API       MessageAPI
	Dialer    Dialer
	Hub       *Hub
	Responder Responder // Optional

	ReconnectDelay    time.Duration
	ReconcileInterval time.Duration
	BotDelay          time.Duration
	Log               logrus.FieldLogger
}

type entry struct {
	msg entities.Message
	seq uint64
}

// ChatSync keeps one surface's view of one chat: its messages sorted by
// created_at then arrival, without duplicate ids, plus the chat metadata
// as last pushed.
type ChatSync struct {
	surface   Surface
	chatID    string
	api       MessageAPI
	dialer    Dialer
	hub       *Hub
	responder Responder
	log       logrus.FieldLogger

	reconnectDelay    time.Duration
	reconcileInterval time.Duration
	botDelay          time.Duration

	mu      sync.Mutex
	chat    entities.Chat
	entries []entry
	ids     map[string]struct{}
	seq     uint64
	focused bool
	unread  bool
	state   ConnState

	replies sync.WaitGroup
}

func NewChatSync(cfg ChatSyncConfig) *ChatSync {
	s := &ChatSync{
		surface:           cfg.Surface,
		chatID:            cfg.Chat.ID,
		api:               cfg.API,
		dialer:            cfg.Dialer,
		hub:               cfg.Hub,
		responder:         cfg.Responder,
		log:               cfg.Log,
		reconnectDelay:    cfg.ReconnectDelay,
		reconcileInterval: cfg.ReconcileInterval,
		botDelay:          cfg.BotDelay,
		chat:              cfg.Chat,
		ids:               make(map[string]struct{}),
		focused:           true,
	}
	if s.reconnectDelay <= 0 {
		s.reconnectDelay = DefaultReconnectDelay
	}
	if s.reconcileInterval <= 0 {
		s.reconcileInterval = DefaultReconcileInterval
	}
	if s.botDelay <= 0 {
		s.botDelay = DefaultBotDelay
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	s.log = s.log.WithFields(logrus.Fields{"surface": s.surface, "chat_id": s.chatID})
	return s
}

// Bootstrap replaces the local list with the stored history. Echoes that
// have not been persisted yet are kept.
func (s *ChatSync) Bootstrap(ctx context.Context) error {
	msgs, err := s.api.ListMessages(ctx, s.surface, s.chatID)
	if err != nil {
		return fmt.Errorf("bootstrap chat %s: %w", s.chatID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fetchedRefs := make(map[string]struct{})
	for _, m := range msgs {
		if m.ClientRef != "" {
			fetchedRefs[m.ClientRef] = struct{}{}
		}
	}
	var kept []entry
	for _, e := range s.entries {
		if e.msg.Delivery == entities.DeliverySent {
			continue
		}
		if _, ok := fetchedRefs[e.msg.ClientRef]; ok {
			continue
		}
		kept = append(kept, e)
	}

	s.entries = kept
	s.ids = make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		s.insertLocked(m)
	}
	s.sortLocked()
	return nil
}

type mergeResult int

const (
	mergeDuplicate mergeResult = iota
	mergeConfirmed
	mergeAdded
)

// mergeLocked folds a stored message into the list. A message carrying the
// client_ref of a local echo replaces that echo in place.
func (s *ChatSync) mergeLocked(m entities.Message) mergeResult {
	if _, ok := s.ids[m.ID]; ok {
		return mergeDuplicate
	}
	m.Delivery = entities.DeliverySent
	if m.ClientRef != "" {
		for i := range s.entries {
			e := &s.entries[i]
			if e.msg.ID == "" && e.msg.ClientRef == m.ClientRef {
				e.msg = m
				s.ids[m.ID] = struct{}{}
				s.sortLocked()
				return mergeConfirmed
			}
		}
	}
	s.insertLocked(m)
	s.sortLocked()
	return mergeAdded
}

func (s *ChatSync) insertLocked(m entities.Message) {
	if m.Delivery == "" {
		m.Delivery = entities.DeliverySent
	}
	s.seq++
	s.entries = append(s.entries, entry{msg: m, seq: s.seq})
	if m.ID != "" {
		s.ids[m.ID] = struct{}{}
	}
}

func (s *ChatSync) sortLocked() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		a, b := s.entries[i], s.entries[j]
		if !a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			return a.msg.CreatedAt.Before(b.msg.CreatedAt)
		}
		return a.seq < b.seq
	})
}

// counterpart reports whether sender is the other side of the conversation.
func (s *ChatSync) counterpart(sender entities.Sender) bool {
	if s.surface == SurfaceAdmin {
		return sender == entities.SenderCustomer
	}
	return sender != entities.SenderCustomer
}

// receive merges a message that arrived from the server and raises an
// unread notification for counterpart messages while unfocused.
func (s *ChatSync) receive(m entities.Message, onInsert func(entities.Message)) {
	s.mu.Lock()
	res := s.mergeLocked(m)
	notify := res == mergeAdded && s.counterpart(m.Sender) && !s.focused
	if notify {
		s.unread = true
	}
	s.mu.Unlock()

	if res != mergeAdded {
		return
	}
	if notify {
		s.notify(NotificationInfo, "Nova mensagem", preview(m.Content))
	}
	if onInsert != nil {
		onInsert(m)
	}
}

func preview(content string) string {
	r := []rune(strings.TrimSpace(content))
	if len(r) > 80 {
		return string(r[:80]) + "..."
	}
	return string(r)
}

func (s *ChatSync) notify(typ NotificationType, title, message string) {
	if s.hub != nil {
		s.hub.Push(typ, title, message)
	}
}

// Subscribe follows the chat until ctx ends or the chat is closed. Push is
// the primary channel; a periodic fetch on the same context reconciles
// anything the push channel missed, and so does every reconnect.
func (s *ChatSync) Subscribe(ctx context.Context, onInsert func(entities.Message), onChatUpdate func(entities.Chat)) error {
	if s.Chat().Status == entities.ChatClosed {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.reconcileLoop(ctx, onInsert)
	}()

	loop := &feedLoop{
		dialer:   s.dialer,
		topic:    entities.ChatTopic(s.chatID),
		prefix:   fmt.Sprintf("%s-chat-%s", s.surface, s.chatID),
		delay:    s.reconnectDelay,
		log:      s.log,
		setState: s.setState,
		onConnect: func(attempt int) {
			if attempt > 1 {
				s.reconcile(ctx, onInsert)
			}
		},
		onEvent: func(ev entities.ChangeEvent) bool {
			return s.apply(ev, onInsert, onChatUpdate)
		},
	}
	err := loop.run(ctx)

	cancel()
	wg.Wait()
	return err
}

// apply handles one pushed event and reports whether following should stop.
func (s *ChatSync) apply(ev entities.ChangeEvent, onInsert func(entities.Message), onChatUpdate func(entities.Chat)) bool {
	switch ev.Type {
	case entities.EventMessageInsert:
		if ev.Message != nil && ev.Message.ChatID == s.chatID {
			s.receive(*ev.Message, onInsert)
		}
	case entities.EventChatInsert, entities.EventChatUpdate:
		if ev.Chat == nil || ev.Chat.ID != s.chatID {
			return false
		}
		s.mu.Lock()
		s.chat = *ev.Chat
		s.mu.Unlock()
		if onChatUpdate != nil {
			onChatUpdate(*ev.Chat)
		}
		return ev.Chat.Status == entities.ChatClosed
	}
	return false
}

func (s *ChatSync) reconcileLoop(ctx context.Context, onInsert func(entities.Message)) {
	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcile(ctx, onInsert)
		}
	}
}

func (s *ChatSync) reconcile(ctx context.Context, onInsert func(entities.Message)) {
	msgs, err := s.api.ListMessages(ctx, s.surface, s.chatID)
	if err != nil {
		if ctx.Err() == nil {
			s.log.WithError(err).Warn("Failed to reconcile messages")
		}
		return
	}
	for _, m := range msgs {
		s.receive(m, onInsert)
	}
}

// Send shows content at once as a pending echo, then persists it. On success
// the echo becomes the stored row and the scripted bot reply, if any, is
// scheduled on ctx.
func (s *ChatSync) Send(ctx context.Context, content string) (entities.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return entities.Message{}, entities.Invalid("content", "is required")
	}
	if s.Chat().Status == entities.ChatClosed {
		return entities.Message{}, &entities.ValidationError{Field: "chat_id", Reason: "is closed", Err: entities.ErrChatClosed}
	}

	echo := entities.Message{
		ChatID:      s.chatID,
		Sender:      s.surface.Sender(),
		Content:     content,
		MessageType: entities.MessageText,
		ClientRef:   uuid.NewString(),
		Delivery:    entities.DeliveryPending,
		CreatedAt:   time.Now().UTC(),
	}
	s.mu.Lock()
	s.insertLocked(echo)
	s.sortLocked()
	s.mu.Unlock()

	return s.deliver(ctx, echo)
}

// Retry re-sends a failed echo.
func (s *ChatSync) Retry(ctx context.Context, clientRef string) (entities.Message, error) {
	s.mu.Lock()
	var echo *entities.Message
	for i := range s.entries {
		if s.entries[i].msg.ClientRef == clientRef && s.entries[i].msg.Delivery == entities.DeliveryFailed {
			echo = &s.entries[i].msg
			break
		}
	}
	if echo == nil {
		s.mu.Unlock()
		return entities.Message{}, entities.Invalid("client_ref", "no failed message to retry")
	}
	echo.Delivery = entities.DeliveryPending
	m := *echo
	s.mu.Unlock()

	return s.deliver(ctx, m)
}

func (s *ChatSync) deliver(ctx context.Context, echo entities.Message) (entities.Message, error) {
	saved, err := s.api.PostMessage(ctx, s.surface, s.chatID, entities.NewMessage{
		Sender:      echo.Sender,
		Content:     echo.Content,
		MessageType: echo.MessageType,
		ClientRef:   echo.ClientRef,
	})
	if err != nil {
		s.setDelivery(echo.ClientRef, entities.DeliveryFailed)
		s.notify(NotificationError, "Erro", "Falha ao enviar mensagem")
		s.log.WithError(err).Warn("Failed to send message")
		return entities.Message{}, err
	}

	s.mu.Lock()
	s.mergeLocked(*saved)
	s.mu.Unlock()

	if s.responder != nil {
		if reply, ok := s.responder.Respond(echo.Sender, echo.Content); ok {
			s.scheduleReply(ctx, reply)
		}
	}
	saved.Delivery = entities.DeliverySent
	return *saved, nil
}

func (s *ChatSync) setDelivery(clientRef string, status entities.DeliveryStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].msg.ID == "" && s.entries[i].msg.ClientRef == clientRef {
			s.entries[i].msg.Delivery = status
			return
		}
	}
}

// scheduleReply posts reply as the bot after the bot delay, unless ctx ends first.
func (s *ChatSync) scheduleReply(ctx context.Context, reply string) {
	s.replies.Add(1)
	go func() {
		defer s.replies.Done()

		t := time.NewTimer(s.botDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		saved, err := s.api.PostMessage(ctx, s.surface, s.chatID, entities.NewMessage{
			Sender:      entities.SenderBot,
			Content:     reply,
			MessageType: entities.MessageText,
			ClientRef:   uuid.NewString(),
		})
		if err != nil {
			if ctx.Err() == nil {
				s.log.WithError(err).Warn("Failed to send bot reply")
			}
			return
		}
		s.mu.Lock()
		s.mergeLocked(*saved)
		s.mu.Unlock()
	}()
}

// Wait blocks until scheduled bot replies have been sent or abandoned.
func (s *ChatSync) Wait() { s.replies.Wait() }

// SetFocused marks the surface visible or hidden. Focusing clears the unread flag.
func (s *ChatSync) SetFocused(focused bool) {
	s.mu.Lock()
	s.focused = focused
	if focused {
		s.unread = false
	}
	s.mu.Unlock()
}

func (s *ChatSync) Unread() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

func (s *ChatSync) Messages() []entities.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.Message, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.msg
	}
	return out
}

func (s *ChatSync) Chat() entities.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat
}

func (s *ChatSync) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ChatSync) setState(st ConnState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
