package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/interfaces"
	"hekumbi_chat/internal/usecases"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Identity  *usecases.IdentityService
	Chats     *usecases.ChatService
	Quotes    *usecases.QuoteService
	Dashboard *usecases.DashboardUsecase
	Auth      *usecases.AuthUsecase
	Bot       *usecases.MessageService
	Feed      interfaces.ChangeFeed
	Store     interfaces.RecordStore
	Origins   []string
	Warnings  []string // Configuration problems reported by /health
	Log       logrus.FieldLogger
}

type Handler struct {
	identity  *usecases.IdentityService
	chats     *usecases.ChatService
	quotes    *usecases.QuoteService
	dashboard *usecases.DashboardUsecase
	auth      *usecases.AuthUsecase
	bot       *usecases.MessageService
	feed      interfaces.ChangeFeed
	store     interfaces.RecordStore
	origins   []string
	warnings  []string
	log       logrus.FieldLogger
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		identity:  d.Identity,
		chats:     d.Chats,
		quotes:    d.Quotes,
		dashboard: d.Dashboard,
		auth:      d.Auth,
		bot:       d.Bot,
		feed:      d.Feed,
		store:     d.Store,
		origins:   d.Origins,
		warnings:  d.Warnings,
		log:       d.Log,
	}
}

func SetupRoutes(r *gin.Engine, h *Handler, middleware *Middleware) {
	r.Use(middleware.RequestLogger())
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(1 << 20))
	r.Use(middleware.CORSMiddleware())

	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.Use(middleware.RateLimitPerClient(rate.Limit(10), 30))
	{
		api.POST("/auth/login", h.Login)

		api.POST("/session", h.Bootstrap)
		api.PATCH("/session/contact", h.UpdateContact)
		api.GET("/bot", h.BotInfo)

		api.GET("/chats/:id/messages", h.ListMessages)
		api.POST("/chats/:id/messages", h.PostCustomerMessage)

		api.POST("/quotes", h.SubmitQuote)
		api.POST("/quotes/estimate", h.EstimateQuote)
		api.GET("/quotes/:id/qr", h.QuoteQRCode)

		api.GET("/realtime", h.CustomerRealtime)
	}

	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthRequired())
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/chats", h.ListChats)
		admin.PATCH("/chats", h.UpdateChat)
		admin.GET("/chats/:id/messages", h.ListMessages)
		admin.POST("/chats/:id/messages", h.PostAdminMessage)

		admin.GET("/quotes", h.ListQuotes)
		admin.PATCH("/quotes", h.UpdateQuote)
		admin.GET("/quotes/export", h.ExportQuotes)

		admin.GET("/analytics", h.Analytics)
		admin.GET("/realtime", h.AdminRealtime)
	}
}

// respondError maps typed domain errors to status codes.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entities.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case entities.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case entities.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case entities.IsTransient(err):
		h.log.WithError(err).WithField("path", c.FullPath()).Warn("Backend unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Serviço temporariamente indisponível"})
	default:
		h.log.WithError(err).WithField("path", c.FullPath()).Error("Unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro interno do servidor"})
	}
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	resp := gin.H{"status": "ok"}
	if len(h.warnings) > 0 {
		resp["warnings"] = h.warnings
	}
	c.JSON(http.StatusOK, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
