package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/infrastructure"
	api "hekumbi_chat/internal/interfaces/http"
	"hekumbi_chat/internal/repository"
	"hekumbi_chat/internal/usecases"
)

const (
	testSecret   = "test-secret"
	testPassword = "s3cret"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := quietLog()

	store := repository.NewMemoryStore()
	feed := infrastructure.NewBroker(32, log)
	auth, err := usecases.NewAuthUsecase("admin", testPassword, testSecret)
	require.NoError(t, err)

	h := api.NewHandler(api.Deps{
		Identity:  usecases.NewIdentityService(store, feed, infrastructure.NewSessionManager(), log),
		Chats:     usecases.NewChatService(store, feed, infrastructure.NopAlerter{}, nil, log),
		Quotes:    usecases.NewQuoteService(store, feed, usecases.NewPricingCalculator(), infrastructure.NopAlerter{}, log),
		Dashboard: usecases.NewDashboardUsecase(store),
		Auth:      auth,
		Bot:       usecases.NewMessageService(),
		Feed:      feed,
		Store:     store,
		Origins:   []string{"*"},
		Warnings:  []string{"DATABASE_URL not set: using the in-memory store, data is lost on restart"},
		Log:       log,
	})
	r := gin.New()
	api.SetupRoutes(r, h, api.NewMiddleware(testSecret, []string{"*"}, log))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestGateway_MapsStatusesToTypedErrors(t *testing.T) {
	srv := newAPIServer(t)
	ctx := context.Background()
	gw := NewGateway(srv.URL, srv.Client())

	_, err := gw.ListChats(ctx, entities.ListFilter{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.ErrorIs(t, gw.Login(ctx, "admin", "errada"), ErrUnauthorized)
	require.NoError(t, gw.Login(ctx, "admin", testPassword))
	assert.NotEmpty(t, gw.Token())

	sent := entities.QuoteSent
	_, err = gw.UpdateQuote(ctx, "desconhecido", entities.QuotePatch{Status: &sent})
	assert.True(t, entities.IsNotFound(err), "got %v", err)

	_, err = gw.Bootstrap(ctx, usecases.BootstrapRequest{Name: "Ana", Email: "nao-e-email"})
	assert.True(t, entities.IsValidation(err), "got %v", err)

	list, err := gw.ListQuotes(ctx, entities.ListFilter{Status: "all"})
	require.NoError(t, err)
	assert.Equal(t, 0, list.Total)

	down := NewGateway("http://127.0.0.1:1", nil)
	_, err = down.Analytics(ctx)
	assert.True(t, entities.IsTransient(err), "got %v", err)
}

func TestGateway_CustomerAndAdminConverge(t *testing.T) {
	srv := newAPIServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	customerGW := NewGateway(srv.URL, srv.Client())
	sess, err := customerGW.Bootstrap(ctx, usecases.BootstrapRequest{Name: "Ana"})
	require.NoError(t, err)
	chat := *sess.Chat

	adminGW := NewGateway(srv.URL, srv.Client())
	require.NoError(t, adminGW.Login(ctx, "admin", testPassword))

	customerHub := NewHub(time.Minute)
	defer customerHub.Close()
	customer := NewChatSync(ChatSyncConfig{
		Surface:        SurfaceCustomer,
		Chat:           chat,
		API:            customerGW,
		Dialer:         NewWSDialer(customerGW, SurfaceCustomer),
		Hub:            customerHub,
		ReconnectDelay: 50 * time.Millisecond,
		Log:            quietLog(),
	})
	admin := NewChatSync(ChatSyncConfig{
		Surface:        SurfaceAdmin,
		Chat:           chat,
		API:            adminGW,
		Dialer:         NewWSDialer(adminGW, SurfaceAdmin),
		ReconnectDelay: 50 * time.Millisecond,
		Log:            quietLog(),
	})
	require.NoError(t, customer.Bootstrap(ctx))
	require.NoError(t, admin.Bootstrap(ctx))

	customerDone := runSubscribe(ctx, customer, &recorder{})
	adminRec := &recorder{}
	adminDone := runSubscribe(ctx, admin, adminRec)
	require.Eventually(t, func() bool {
		return customer.State() == StateConnected && admin.State() == StateConnected
	}, 2*time.Second, 10*time.Millisecond)

	customer.SetFocused(false)
	question, err := customer.Send(ctx, "Olá, preciso de limpeza")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(admin.Messages()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, question.ID, admin.Messages()[0].ID)

	_, err = admin.Send(ctx, "Claro, vamos ajudar")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return customer.Unread() }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, customer.Messages(), 2)
	assert.Len(t, admin.Messages(), 2)
	assert.Equal(t, ids(customer.Messages()), ids(admin.Messages()))
	assert.Equal(t, "Nova mensagem", customerHub.List()[0].Title)

	dash := NewDashboard(DashboardConfig{API: adminGW, Dialer: NewWSDialer(adminGW, SurfaceAdmin), Log: quietLog()})
	defer dash.Hub().Close()
	dash.ReportConfiguration(ctx)
	require.Len(t, dash.Hub().List(), 1)
	assert.Equal(t, NotificationWarning, dash.Hub().List()[0].Type)
	require.NoError(t, dash.Load(ctx))
	assert.Equal(t, 1, dash.Chats().Total)
	require.NotNil(t, dash.Analytics())
	assert.Equal(t, 1, dash.Analytics().Overview.ActiveChats)

	require.NoError(t, dash.UpdateChatStatus(ctx, chat.ID, entities.ChatClosed))
	assert.Equal(t, "Chat atualizado", dash.Hub().List()[0].Title)
	assert.Equal(t, 1, dash.Chats().Stats.Closed)

	// Closing the chat ends both subscriptions.
	require.NoError(t, waitDone(t, customerDone))
	require.NoError(t, waitDone(t, adminDone))
	assert.Equal(t, entities.ChatClosed, customer.Chat().Status)
	assert.Equal(t, entities.ChatClosed, admin.Chat().Status)
}
