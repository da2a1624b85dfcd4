package usecases

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/infrastructure"
	"hekumbi_chat/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type recordingFeed struct {
	mu     sync.Mutex
	events []entities.ChangeEvent
}

func (f *recordingFeed) Publish(ctx context.Context, ev entities.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *recordingFeed) byTopic(topic string) []entities.ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entities.ChangeEvent
	for _, ev := range f.events {
		if ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

type recordingAlerter struct {
	mu    sync.Mutex
	texts []string
}

func (a *recordingAlerter) Alert(ctx context.Context, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.texts = append(a.texts, text)
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func (denyAll) WaitTime(string) time.Duration { return 2 * time.Second }

func (denyAll) Reset(string) {}

// racingStore mirrors a customer message onto the chat just before each
// chat update is written, as a concurrent PostMessage would.
type racingStore struct {
	*repository.MemoryStore
}

func (s racingStore) UpdateChat(ctx context.Context, id string, patch entities.ChatPatch, at time.Time) (*entities.Chat, error) {
	m := &entities.Message{ChatID: id, Content: "mensagem nova", CreatedAt: at.Add(-time.Millisecond)}
	if _, err := s.TouchChatLastMessage(ctx, m, 1, false); err != nil {
		return nil, err
	}
	return s.MemoryStore.UpdateChat(ctx, id, patch, at)
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	store    *repository.MemoryStore
	feed     *recordingFeed
	alerter  *recordingAlerter
	identity *IdentityService
	chats    *ChatService
	quotes   *QuoteService
	stats    *DashboardUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   repository.NewMemoryStore(),
		feed:    &recordingFeed{},
		alerter: &recordingAlerter{},
	}
	log := testLogger()
	f.identity = NewIdentityService(f.store, f.feed, infrastructure.NewSessionManager(), log)
	f.chats = NewChatService(f.store, f.feed, f.alerter, nil, log)
	f.quotes = NewQuoteService(f.store, f.feed, NewPricingCalculator(), f.alerter, log)
	f.stats = NewDashboardUsecase(f.store)
	return f
}

func (f *fixture) session(t *testing.T, name string) *Session {
	t.Helper()
	sess, err := f.identity.Bootstrap(context.Background(), BootstrapRequest{Name: name, Email: "cliente@exemplo.ao"})
	require.NoError(t, err)
	return sess
}

func validQuoteRequest() QuoteRequest {
	return QuoteRequest{
		Name:        "Ana Domingos",
		Email:       "ana@exemplo.ao",
		Phone:       "+244 923 000 000",
		ServiceType: "condominio",
		Area:        500,
		Frequency:   "semanal",
		Urgency:     "normal",
		Location:    "Talatona, Luanda",
	}
}

func TestPricingCalculator_Estimate(t *testing.T) {
	pc := NewPricingCalculator()

	tests := []struct {
		name      string
		area      float64
		frequency string
		urgency   string
		want      int64
	}{
		{"weekly normal", 500, "semanal", "normal", 175000},
		{"daily emergency", 100, "diaria", "emergencia", 75000},
		{"english aliases", 200, "monthly", "urgent", 60000},
		{"occasional", 100, "eventual", "normal", 60000},
		{"unknown ids", 100, "sometimes", "whenever", 50000},
		{"negative area", -50, "diaria", "normal", 0},
		{"case insensitive", 100, " Quinzenal ", "URGENTE", 36000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pc.Estimate(tt.area, tt.frequency, tt.urgency))
		})
	}
}

func TestPricingCalculator_MonotonicInArea(t *testing.T) {
	pc := NewPricingCalculator()
	prev := int64(-1)
	for area := 0.0; area <= 5000; area += 37.5 {
		v := pc.Estimate(area, "mensal", "urgente")
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
}

func TestPricingCalculator_QuoteNumberAndPriority(t *testing.T) {
	pc := NewPricingCalculator()
	assert.Equal(t, "HEK-123456", pc.QuoteNumber(time.UnixMilli(1700000123456)))
	assert.Equal(t, "HEK-000042", pc.QuoteNumber(time.UnixMilli(1700000000042)))

	assert.Equal(t, entities.PriorityHigh, pc.Priority("emergencia"))
	assert.Equal(t, entities.PriorityMedium, pc.Priority("urgent"))
	assert.Equal(t, entities.PriorityLow, pc.Priority("normal"))
	assert.Equal(t, entities.PriorityLow, pc.Priority(""))
}

func TestMessageService_Reply(t *testing.T) {
	s := NewMessageService()

	assert.Contains(t, s.Reply("Quero solicitar orçamento por favor"), "formulário de orçamento")
	assert.Contains(t, s.Reply("Qual o HORÁRIO DE FUNCIONAMENTO?"), "Segunda a Sexta")
	assert.Equal(t, DefaultReply, s.Reply("bom dia"))
	assert.Equal(t, DefaultReply, s.Reply(""))

	// First entry in table order wins when several keywords match.
	assert.Contains(t, s.Reply("contacto sobre nossos serviços"), "Oferecemos serviços")
	assert.Len(t, s.Keywords(), len(cannedReplies))
}

func TestIdentityService_BootstrapReusesCustomerAndChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.session(t, "")
	assert.True(t, first.NewSession)
	assert.Equal(t, entities.GuestName, first.Customer.Name)
	assert.Equal(t, entities.ChatActive, first.Chat.Status)
	assert.Equal(t, entities.PriorityMedium, first.Chat.Priority)

	again, err := f.identity.Bootstrap(ctx, BootstrapRequest{CustomerID: first.Customer.ID})
	require.NoError(t, err)
	assert.False(t, again.NewSession)
	assert.Equal(t, first.Customer.ID, again.Customer.ID)
	assert.Equal(t, first.Chat.ID, again.Chat.ID)

	stale, err := f.identity.Bootstrap(ctx, BootstrapRequest{CustomerID: "gone"})
	require.NoError(t, err)
	assert.True(t, stale.NewSession)
	assert.NotEqual(t, first.Customer.ID, stale.Customer.ID)

	assert.Len(t, f.feed.byTopic(entities.TopicChats), 2)
}

func TestIdentityService_OpenChatConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := &entities.Customer{ID: "c1", Name: "Ana", CreatedAt: time.Now()}
	require.NoError(t, f.store.CreateCustomer(ctx, c))

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chat, err := f.identity.OpenChat(ctx, "c1")
			if err == nil {
				ids[i] = chat.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	rows, err := f.store.ListChats(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestIdentityService_UpdateContact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, "")

	phone := " +244 972 620 967 "
	c, err := f.identity.UpdateContact(ctx, sess.Customer.ID, entities.ContactPatch{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "+244 972 620 967", c.Phone)

	_, err = f.identity.UpdateContact(ctx, sess.Customer.ID, entities.ContactPatch{})
	assert.True(t, entities.IsValidation(err))

	bad := "not-an-email"
	_, err = f.identity.UpdateContact(ctx, sess.Customer.ID, entities.ContactPatch{Email: &bad})
	assert.True(t, entities.IsValidation(err))

	name := "Ana"
	_, err = f.identity.UpdateContact(ctx, "missing", entities.ContactPatch{Name: &name})
	assert.True(t, entities.IsNotFound(err))
}

func TestChatService_UpdateChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, "Ana")

	_, err := f.chats.UpdateChat(ctx, sess.Chat.ID, entities.ChatPatch{})
	assert.True(t, entities.IsValidation(err))

	bogus := entities.ChatStatus("archived")
	_, err = f.chats.UpdateChat(ctx, sess.Chat.ID, entities.ChatPatch{Status: &bogus})
	assert.True(t, entities.IsValidation(err))

	high := entities.PriorityHigh
	_, err = f.chats.UpdateChat(ctx, "missing", entities.ChatPatch{Priority: &high})
	assert.True(t, entities.IsNotFound(err))

	before, err := f.store.RecentActivities(ctx, 0)
	require.NoError(t, err)

	chat, err := f.chats.UpdateChat(ctx, sess.Chat.ID, entities.ChatPatch{Priority: &high})
	require.NoError(t, err)
	assert.Equal(t, entities.PriorityHigh, chat.Priority)
	assert.Equal(t, entities.ChatActive, chat.Status)

	after, err := f.store.RecentActivities(ctx, 0)
	require.NoError(t, err)
	require.Len(t, after, len(before)+1)
	assert.Equal(t, "Chat prioridade alterada para high", after[0].Description)

	updates := f.feed.byTopic(entities.ChatTopic(sess.Chat.ID))
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, entities.EventChatUpdate, last.Type)
	assert.Equal(t, entities.PriorityHigh, last.Chat.Priority)
}

func TestChatService_UpdateChatDescribesEveryField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, "Ana")

	pending, high := entities.ChatPending, entities.PriorityHigh
	_, err := f.chats.UpdateChat(ctx, sess.Chat.ID, entities.ChatPatch{Status: &pending, Priority: &high})
	require.NoError(t, err)

	acts, err := f.store.RecentActivities(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Chat status alterado para pending, prioridade alterada para high", acts[0].Description)
	assert.Equal(t, map[string]interface{}{"status": "pending", "priority": "high"}, acts[0].Metadata)
}

func TestChatService_UpdateChatPublishesStoredRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, "Ana")
	racing := NewChatService(racingStore{f.store}, f.feed, nil, nil, testLogger())

	high := entities.PriorityHigh
	chat, err := racing.UpdateChat(ctx, sess.Chat.ID, entities.ChatPatch{Priority: &high})
	require.NoError(t, err)
	assert.Equal(t, "mensagem nova", chat.LastMessage)

	stored, err := f.store.GetChat(ctx, sess.Chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "mensagem nova", stored.LastMessage)
	assert.Equal(t, 1, stored.UnreadCount)
	assert.Equal(t, entities.PriorityHigh, stored.Priority)

	for _, topic := range []string{entities.ChatTopic(sess.Chat.ID), entities.TopicChats} {
		events := f.feed.byTopic(topic)
		require.NotEmpty(t, events)
		last := events[len(events)-1]
		require.Equal(t, entities.EventChatUpdate, last.Type)
		assert.Equal(t, *stored, *last.Chat, topic)
	}
}

func TestChatService_ClosedChatStaysClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, "Ana")

	closed := entities.ChatClosed
	_, err := f.chats.UpdateChat(ctx, sess.Chat.ID, entities.ChatPatch{Status: &closed})
	require.NoError(t, err)

	active := entities.ChatActive
	_, err = f.chats.UpdateChat(ctx, sess.Chat.ID, entities.ChatPatch{Status: &active})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrChatClosed))

	_, err = f.chats.PostMessage(ctx, sess.Chat.ID, entities.NewMessage{Content: "olá"})
	assert.True(t, errors.Is(err, entities.ErrChatClosed))

	// A closed chat frees the customer for a new one.
	next, err := f.identity.OpenChat(ctx, sess.Customer.ID)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Chat.ID, next.ID)
}

func TestChatService_PostMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, "Ana")

	m, err := f.chats.PostMessage(ctx, sess.Chat.ID, entities.NewMessage{Content: "  Preciso de limpeza  ", ClientRef: "ref-1"})
	require.NoError(t, err)
	assert.Equal(t, "Preciso de limpeza", m.Content)
	assert.Equal(t, entities.SenderCustomer, m.Sender)
	assert.Equal(t, entities.MessageText, m.MessageType)
	assert.Equal(t, "ref-1", m.ClientRef)

	chat, err := f.store.GetChat(ctx, sess.Chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Preciso de limpeza", chat.LastMessage)
	assert.Equal(t, 1, chat.UnreadCount)
	assert.Len(t, f.alerter.texts, 1)

	pending := entities.ChatPending
	_, err = f.chats.UpdateChat(ctx, sess.Chat.ID, entities.ChatPatch{Status: &pending})
	require.NoError(t, err)

	_, err = f.chats.PostMessage(ctx, sess.Chat.ID, entities.NewMessage{Sender: entities.SenderAdmin, Content: "Bom dia!"})
	require.NoError(t, err)
	chat, err = f.store.GetChat(ctx, sess.Chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, chat.UnreadCount)
	assert.Equal(t, entities.ChatActive, chat.Status)

	msgs, err := f.chats.ListMessages(ctx, sess.Chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, entities.SenderCustomer, msgs[0].Sender)
	assert.Equal(t, entities.SenderAdmin, msgs[1].Sender)

	inserts := 0
	for _, ev := range f.feed.byTopic(entities.ChatTopic(sess.Chat.ID)) {
		if ev.Type == entities.EventMessageInsert {
			inserts++
		}
	}
	assert.Equal(t, 2, inserts)
}

func TestChatService_PostMessageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, "Ana")

	_, err := f.chats.PostMessage(ctx, sess.Chat.ID, entities.NewMessage{Content: "   "})
	assert.True(t, entities.IsValidation(err))

	_, err = f.chats.PostMessage(ctx, sess.Chat.ID, entities.NewMessage{Content: "x", Sender: "robot"})
	assert.True(t, entities.IsValidation(err))

	_, err = f.chats.PostMessage(ctx, "missing", entities.NewMessage{Content: "x"})
	assert.True(t, entities.IsNotFound(err))

	guarded := NewChatService(f.store, f.feed, nil, denyAll{}, testLogger())
	_, err = guarded.PostMessage(ctx, sess.Chat.ID, entities.NewMessage{Content: "spam"})
	assert.True(t, errors.Is(err, entities.ErrRateLimited))
	assert.Contains(t, err.Error(), "retry in 2s")
	_, err = guarded.PostMessage(ctx, sess.Chat.ID, entities.NewMessage{Sender: entities.SenderAdmin, Content: "ok"})
	assert.NoError(t, err)
}

func TestChatService_ListChatsFiltersAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.session(t, "Ana Domingos")
	f.session(t, "Bruno Costa")

	closed := entities.ChatClosed
	_, err := f.chats.UpdateChat(ctx, ana.Chat.ID, entities.ChatPatch{Status: &closed})
	require.NoError(t, err)

	all, err := f.chats.ListChats(ctx, entities.ListFilter{Status: "all"})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Total)
	assert.Equal(t, ChatStats{Total: 2, Active: 1, Closed: 1}, all.Stats)
	assert.Equal(t, NoMessages, all.Chats[0].LastMessage)
	assert.Equal(t, NotAvailable, all.Chats[0].CustomerPhone)

	found, err := f.chats.ListChats(ctx, entities.ListFilter{Search: "ana dom"})
	require.NoError(t, err)
	require.Len(t, found.Chats, 1)
	assert.Equal(t, ana.Chat.ID, found.Chats[0].ID)

	paged, err := f.chats.ListChats(ctx, entities.ListFilter{Page: 2, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, paged.Chats, 1)
	assert.Equal(t, 2, paged.Page.TotalPages)

	beyond, err := f.chats.ListChats(ctx, entities.ListFilter{Page: 100000000000000001, Limit: 100})
	require.NoError(t, err)
	assert.Empty(t, beyond.Chats)
	assert.Equal(t, 2, beyond.Total)
}

func TestPaginate_Bounds(t *testing.T) {
	const maxInt = int(^uint(0) >> 1)
	tests := []struct {
		name       string
		filter     entities.ListFilter
		total      int
		start, end int
		pages      int
	}{
		{"first page", entities.ListFilter{Page: 1, Limit: 2}, 5, 0, 2, 3},
		{"last partial page", entities.ListFilter{Page: 3, Limit: 2}, 5, 4, 5, 3},
		{"past the end", entities.ListFilter{Page: 4, Limit: 2}, 5, 5, 5, 3},
		{"huge page", entities.ListFilter{Page: 100000000000000001, Limit: 100}, 3, 3, 3, 1},
		{"max page", entities.ListFilter{Page: maxInt, Limit: maxInt}, 3, 3, 3, 1},
		{"huge limit", entities.ListFilter{Page: 1, Limit: maxInt}, 3, 0, 3, 1},
		{"page zero", entities.ListFilter{Page: 0, Limit: 2}, 5, 0, 2, 3},
		{"empty", entities.ListFilter{Page: 2, Limit: 10}, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, info := paginate(tt.filter, tt.total)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
			require.NotNil(t, info)
			assert.Equal(t, tt.pages, info.TotalPages)
		})
	}

	start, end, info := paginate(entities.ListFilter{Page: 3}, 7)
	assert.Equal(t, 0, start)
	assert.Equal(t, 7, end)
	assert.Nil(t, info)
}

func TestQuoteService_Submit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.quotes.SubmitQuote(ctx, validQuoteRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(175000), q.EstimatedValue)
	assert.Equal(t, entities.QuotePending, q.Status)
	assert.Equal(t, entities.PriorityLow, q.Priority)
	assert.Equal(t, "Condomínio", q.ServiceType)
	assert.Regexp(t, `^HEK-\d{6}$`, q.QuoteNumber)
	assert.Equal(t, q.CreatedAt.Add(entities.QuoteValidity), q.ValidUntil)

	acts, err := f.store.RecentActivities(ctx, 1)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, "Novo orçamento solicitado por Ana Domingos", acts[0].Description)
	assert.Equal(t, "condominio", acts[0].Metadata["service_type"])

	inserts := f.feed.byTopic(entities.TopicQuotes)
	require.Len(t, inserts, 1)
	assert.Equal(t, entities.EventQuoteInsert, inserts[0].Type)
	assert.Len(t, f.alerter.texts, 1)
}

func TestQuoteService_SubmitDefaultsAndReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, "")

	req := validQuoteRequest()
	req.CustomerID = sess.Customer.ID
	req.Area = 0
	req.Frequency = "Diaria"
	req.Urgency = "emergencia"
	req.ServiceType = "armazem"

	q, err := f.quotes.SubmitQuote(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, sess.Customer.ID, q.CustomerID)
	assert.Equal(t, float64(0), q.Area)
	assert.Equal(t, int64(75000), q.EstimatedValue)
	assert.Equal(t, entities.PriorityHigh, q.Priority)
	assert.Equal(t, "armazem", q.ServiceType)

	c, err := f.store.GetCustomer(ctx, sess.Customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Domingos", c.Name)

	bad := validQuoteRequest()
	bad.Email = "ana"
	_, err = f.quotes.SubmitQuote(ctx, bad)
	assert.True(t, entities.IsValidation(err))

	bad = validQuoteRequest()
	bad.Frequency = "anual"
	_, err = f.quotes.SubmitQuote(ctx, bad)
	assert.True(t, entities.IsValidation(err))
}

func TestQuoteService_UpdateLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, err := f.quotes.SubmitQuote(ctx, validQuoteRequest())
	require.NoError(t, err)

	_, err = f.quotes.UpdateQuote(ctx, q.ID, entities.QuotePatch{})
	assert.True(t, entities.IsValidation(err))

	negative := int64(-1)
	_, err = f.quotes.UpdateQuote(ctx, q.ID, entities.QuotePatch{EstimatedValue: &negative})
	assert.True(t, entities.IsValidation(err))

	approved := entities.QuoteApproved
	_, err = f.quotes.UpdateQuote(ctx, "missing", entities.QuotePatch{Status: &approved})
	assert.True(t, entities.IsNotFound(err))

	updated, err := f.quotes.UpdateQuote(ctx, q.ID, entities.QuotePatch{Status: &approved})
	require.NoError(t, err)
	assert.Equal(t, entities.QuoteApproved, updated.Status)

	acts, err := f.store.RecentActivities(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Orçamento status alterado para approved", acts[0].Description)

	pending := entities.QuotePending
	_, err = f.quotes.UpdateQuote(ctx, q.ID, entities.QuotePatch{Status: &pending})
	assert.True(t, entities.IsValidation(err))

	value := int64(200000)
	updated, err = f.quotes.UpdateQuote(ctx, q.ID, entities.QuotePatch{EstimatedValue: &value})
	require.NoError(t, err)
	assert.Equal(t, value, updated.EstimatedValue)
	acts, err = f.store.RecentActivities(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Orçamento valor estimado alterado para 200000", acts[0].Description)

	events := f.feed.byTopic(entities.TopicQuotes)
	assert.Equal(t, entities.EventQuoteUpdate, events[len(events)-1].Type)
}

func TestQuoteService_ListViewAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.quotes.SubmitQuote(ctx, validQuoteRequest())
	require.NoError(t, err)
	require.NoError(t, f.store.CreateQuote(ctx, &entities.Quote{
		ID: "orphan", QuoteNumber: "HEK-000001", CustomerID: "nobody",
		Status: entities.QuoteRejected, Priority: entities.PriorityLow, CreatedAt: time.Now().Add(-time.Hour),
	}))

	list, err := f.quotes.ListQuotes(ctx, entities.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list.Quotes, 2)
	assert.Equal(t, QuoteStats{Total: 2, Pending: 1, Rejected: 1}, list.Stats)

	orphan := list.Quotes[1]
	assert.Equal(t, "orphan", orphan.ID)
	assert.Equal(t, NotAvailable, orphan.CustomerName)
	assert.Equal(t, NoDescription, orphan.Description)

	byNumber, err := f.quotes.ListQuotes(ctx, entities.ListFilter{Search: "hek-000001"})
	require.NoError(t, err)
	assert.Equal(t, 1, byNumber.Total)
}

func TestQuoteService_ExportAndQRCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, err := f.quotes.SubmitQuote(ctx, validQuoteRequest())
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := f.quotes.ExportXLSX(ctx, entities.ListFilter{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, exportHeaders[0], rows[0][0])
	assert.Equal(t, q.QuoteNumber, rows[1][0])

	png, err := f.quotes.QRCode(ctx, q.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = f.quotes.QRCode(ctx, "missing")
	assert.True(t, entities.IsNotFound(err))
}

func TestDashboardUsecase_Overview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.stats.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Overview.ConversionRate)
	assert.Empty(t, empty.RecentActivity)

	f.session(t, "Ana")
	f.session(t, "Bruno")
	f.session(t, "Carla")
	q, err := f.quotes.SubmitQuote(ctx, validQuoteRequest())
	require.NoError(t, err)
	require.NoError(t, f.store.CreateQuote(ctx, &entities.Quote{
		ID: "old", CustomerID: "x", EstimatedValue: 25000, Status: entities.QuoteApproved,
		CreatedAt: time.Now().Add(-90 * 24 * time.Hour),
	}))

	a, err := f.stats.Overview(ctx)
	require.NoError(t, err)
	ov := a.Overview
	assert.Equal(t, 3, ov.TotalChats)
	assert.Equal(t, 3, ov.ActiveChats)
	assert.Equal(t, 2, ov.TotalQuotes)
	assert.Equal(t, 1, ov.PendingQuotes)
	assert.Equal(t, 1, ov.ApprovedQuotes)
	assert.Equal(t, q.EstimatedValue+25000, ov.TotalRevenue)
	assert.InDelta(t, float64(ov.TotalRevenue)*0.3, ov.MonthlyRevenue, 0.001)
	assert.Equal(t, q.EstimatedValue, ov.RevenueLast30Days)
	assert.Equal(t, 67, ov.ConversionRate)

	assert.LessOrEqual(t, len(a.RecentActivity), RecentActivityLimit)
	assert.Equal(t, entities.EntityQuote, a.RecentActivity[0].Type)
}

func TestAuthUsecase_Login(t *testing.T) {
	uc, err := NewAuthUsecase("admin", "s3cret", "signing-key")
	require.NoError(t, err)
	assert.True(t, uc.Enabled())

	token, err := uc.Login("admin", "s3cret")
	require.NoError(t, err)
	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) { return []byte("signing-key"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "admin", claims["user"])
	assert.Equal(t, entities.RoleAdmin, claims["role"])

	_, err = uc.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = uc.Login("root", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	disabled, err := NewAuthUsecase("admin", "", "signing-key")
	require.NoError(t, err)
	_, err = disabled.Login("admin", "")
	assert.ErrorIs(t, err, ErrAdminDisabled)
}

func TestMessageService_Respond(t *testing.T) {
	s := NewMessageService()

	reply, ok := s.Respond(entities.SenderCustomer, "bom dia")
	assert.True(t, ok)
	assert.Equal(t, DefaultReply, reply)

	reply, ok = s.Respond(entities.SenderAdmin, "Problema RESOLVIDO, obrigado!")
	assert.True(t, ok)
	assert.Equal(t, CourtesyReply, reply)

	_, ok = s.Respond(entities.SenderAdmin, "Vou verificar")
	assert.False(t, ok)

	_, ok = s.Respond(entities.SenderBot, "obrigado")
	assert.False(t, ok)
}
