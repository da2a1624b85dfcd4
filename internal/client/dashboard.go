package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/usecases"
)

// DashboardAPI is the part of the gateway the admin dashboard needs.
type DashboardAPI interface {
	ListChats(ctx context.Context, f entities.ListFilter) (*usecases.ChatList, error)
	UpdateChat(ctx context.Context, id string, patch entities.ChatPatch) (*entities.Chat, error)
	ListQuotes(ctx context.Context, f entities.ListFilter) (*usecases.QuoteList, error)
	UpdateQuote(ctx context.Context, id string, patch entities.QuotePatch) (*entities.Quote, error)
	Analytics(ctx context.Context) (*usecases.Analytics, error)
	Health(ctx context.Context) (*HealthStatus, error)
}

type DashboardConfig struct {
	API               DashboardAPI
	Dialer            Dialer
	Hub               *Hub
	ReconnectDelay    time.Duration
	ReconcileInterval time.Duration
	Log               logrus.FieldLogger
}

// Dashboard is the operator's view of every chat and quote plus the
// analytics overview. Push events on the "chats" and "quotes" topics trigger
// a refetch of the affected list.
type Dashboard struct {
	api               DashboardAPI
	dialer            Dialer
	hub               *Hub
	reconnectDelay    time.Duration
	reconcileInterval time.Duration
	log               logrus.FieldLogger

	mu          sync.RWMutex
	chatFilter  entities.ListFilter
	quoteFilter entities.ListFilter
	chats       *usecases.ChatList
	quotes      *usecases.QuoteList
	analytics   *usecases.Analytics
	states      map[string]ConnState
}

func NewDashboard(cfg DashboardConfig) *Dashboard {
	d := &Dashboard{
		api:               cfg.API,
		dialer:            cfg.Dialer,
		hub:               cfg.Hub,
		reconnectDelay:    cfg.ReconnectDelay,
		reconcileInterval: cfg.ReconcileInterval,
		log:               cfg.Log,
		chats:             &usecases.ChatList{},
		quotes:            &usecases.QuoteList{},
		states:            make(map[string]ConnState),
	}
	if d.reconnectDelay <= 0 {
		d.reconnectDelay = DefaultReconnectDelay
	}
	if d.reconcileInterval <= 0 {
		d.reconcileInterval = DefaultReconcileInterval
	}
	if d.log == nil {
		d.log = logrus.StandardLogger()
	}
	if d.hub == nil {
		d.hub = NewHub(0)
	}
	return d
}

func (d *Dashboard) Hub() *Hub { return d.hub }

// Load fetches chats, quotes and analytics. Each failure raises its own
// error notification; the rest still load.
func (d *Dashboard) Load(ctx context.Context) error {
	return errors.Join(d.RefreshChats(ctx), d.RefreshQuotes(ctx), d.RefreshAnalytics(ctx))
}

func (d *Dashboard) RefreshChats(ctx context.Context) error {
	d.mu.RLock()
	f := d.chatFilter
	d.mu.RUnlock()

	out, err := d.api.ListChats(ctx, f)
	if err != nil {
		d.fail(ctx, err, "Falha ao carregar chats")
		return err
	}
	d.mu.Lock()
	d.chats = out
	d.mu.Unlock()
	return nil
}

func (d *Dashboard) RefreshQuotes(ctx context.Context) error {
	d.mu.RLock()
	f := d.quoteFilter
	d.mu.RUnlock()

	out, err := d.api.ListQuotes(ctx, f)
	if err != nil {
		d.fail(ctx, err, "Falha ao carregar orçamentos")
		return err
	}
	d.mu.Lock()
	d.quotes = out
	d.mu.Unlock()
	return nil
}

func (d *Dashboard) RefreshAnalytics(ctx context.Context) error {
	out, err := d.api.Analytics(ctx)
	if err != nil {
		d.fail(ctx, err, "Falha ao carregar analytics")
		return err
	}
	d.mu.Lock()
	d.analytics = out
	d.mu.Unlock()
	return nil
}

func (d *Dashboard) fail(ctx context.Context, err error, message string) {
	if ctx.Err() != nil {
		return
	}
	d.log.WithError(err).Warn(message)
	d.hub.Error("Erro", message)
}

// Run loads everything, then follows the chats and quotes topics and
// reconciles periodically until ctx ends. All timers and subscriptions stop
// with ctx.
func (d *Dashboard) Run(ctx context.Context) error {
	d.ReportConfiguration(ctx)
	_ = d.Load(ctx)

	var wg sync.WaitGroup
	follow := func(topic string, refresh func(context.Context) error, onEvent func(entities.ChangeEvent)) {
		defer wg.Done()
		loop := &feedLoop{
			dialer:   d.dialer,
			topic:    topic,
			prefix:   "admin-" + topic,
			delay:    d.reconnectDelay,
			log:      d.log,
			setState: func(s ConnState) { d.setState(topic, s) },
			onConnect: func(attempt int) {
				if attempt > 1 {
					_ = refresh(ctx)
				}
			},
			onEvent: func(ev entities.ChangeEvent) bool {
				onEvent(ev)
				_ = refresh(ctx)
				return false
			},
		}
		_ = loop.run(ctx)
	}

	wg.Add(3)
	go follow(entities.TopicChats, d.RefreshChats, d.announceChat)
	go follow(entities.TopicQuotes, d.RefreshQuotes, d.announceQuote)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(d.reconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = d.Load(ctx)
			}
		}
	}()

	wg.Wait()
	return ctx.Err()
}

// ReportConfiguration raises a warning notification for each configuration
// problem the server reports.
func (d *Dashboard) ReportConfiguration(ctx context.Context) {
	h, err := d.api.Health(ctx)
	if err != nil {
		d.log.WithError(err).Warn("Health check failed")
		return
	}
	for _, w := range h.Warnings {
		d.hub.Push(NotificationWarning, "Configuração", w)
	}
}

func (d *Dashboard) announceChat(ev entities.ChangeEvent) {
	if ev.Type == entities.EventChatInsert {
		d.hub.Info("Nova conversa", "Um cliente iniciou uma conversa")
	}
}

func (d *Dashboard) announceQuote(ev entities.ChangeEvent) {
	if ev.Type == entities.EventQuoteInsert && ev.Quote != nil {
		d.hub.Info("Novo orçamento", "Orçamento "+ev.Quote.QuoteNumber+" recebido")
	}
}

// UpdateChatStatus changes a chat's status and refreshes the chat list.
func (d *Dashboard) UpdateChatStatus(ctx context.Context, id string, status entities.ChatStatus) error {
	if _, err := d.api.UpdateChat(ctx, id, entities.ChatPatch{Status: &status}); err != nil {
		d.fail(ctx, err, "Falha ao atualizar chat")
		return err
	}
	d.hub.Success("Chat atualizado", "Status alterado para "+string(status))
	_ = d.RefreshChats(ctx)
	return nil
}

// UpdateQuoteStatus changes a quote's status and refreshes the quote list.
func (d *Dashboard) UpdateQuoteStatus(ctx context.Context, id string, status entities.QuoteStatus) error {
	if _, err := d.api.UpdateQuote(ctx, id, entities.QuotePatch{Status: &status}); err != nil {
		d.fail(ctx, err, "Falha ao atualizar orçamento")
		return err
	}
	d.hub.Success("Orçamento atualizado", "Status alterado para "+string(status))
	_ = d.RefreshQuotes(ctx)
	return nil
}

func (d *Dashboard) SetChatFilter(f entities.ListFilter) {
	d.mu.Lock()
	d.chatFilter = f
	d.mu.Unlock()
}

func (d *Dashboard) SetQuoteFilter(f entities.ListFilter) {
	d.mu.Lock()
	d.quoteFilter = f
	d.mu.Unlock()
}

func (d *Dashboard) Chats() usecases.ChatList {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return *d.chats
}

func (d *Dashboard) Quotes() usecases.QuoteList {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return *d.quotes
}

func (d *Dashboard) Analytics() *usecases.Analytics {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.analytics
}

// State reports the subscription state of topic.
func (d *Dashboard) State(topic string) ConnState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.states[topic]
}

func (d *Dashboard) setState(topic string, s ConnState) {
	d.mu.Lock()
	d.states[topic] = s
	d.mu.Unlock()
}
