package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/usecases"
)

// ErrUnauthorized is returned when the admin token is missing or rejected.
var ErrUnauthorized = errors.New("unauthorized")

// Surface is the UI a client acts for. It decides which routes and sender are used.
type Surface string

const (
	SurfaceCustomer Surface = "customer"
	SurfaceAdmin    Surface = "admin"
)

func (s Surface) Sender() entities.Sender {
	if s == SurfaceAdmin {
		return entities.SenderAdmin
	}
	return entities.SenderCustomer
}

// Gateway is the HTTP client for the chat and quote API.
type Gateway struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewGateway returns a client for baseURL. A nil httpClient gets a 15s timeout.
func NewGateway(baseURL string, httpClient *http.Client) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Gateway{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (g *Gateway) SetToken(token string) {
	g.mu.Lock()
	g.token = token
	g.mu.Unlock()
}

func (g *Gateway) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

// call describes one request. entity and id name the resource for a 404.
type call struct {
	op     string
	method string
	path   string
	body   interface{}
	out    interface{}
	entity entities.EntityType
	id     string
}

func (g *Gateway) do(ctx context.Context, c call) error {
	var body io.Reader
	if c.body != nil {
		b, err := json.Marshal(c.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", c.op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, g.baseURL+c.path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := g.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return entities.Transient(c.op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return entities.Transient(c.op, err)
	}
	if resp.StatusCode >= 300 {
		return statusError(c, resp.StatusCode, raw)
	}
	if c.out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, c.out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.op, err)
	}
	return nil
}

// statusError maps an HTTP failure back to the typed error the server started from.
func statusError(c call, status int, raw []byte) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &body)
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &entities.ValidationError{Reason: msg, Err: entities.ErrRateLimited}
	case status == http.StatusBadRequest:
		return &entities.ValidationError{Reason: msg}
	case status == http.StatusNotFound:
		return entities.NotFound(c.entity, c.id)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("%s: %w: %s", c.op, ErrUnauthorized, msg)
	case status >= http.StatusInternalServerError:
		return entities.Transient(c.op, fmt.Errorf("status %d: %s", status, msg))
	}
	return fmt.Errorf("%s: unexpected status %d: %s", c.op, status, msg)
}

func (g *Gateway) Login(ctx context.Context, username, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	err := g.do(ctx, call{
		op: "login", method: http.MethodPost, path: "/api/auth/login",
		body: map[string]string{"username": username, "password": password},
		out:  &out,
	})
	if err != nil {
		return err
	}
	g.SetToken(out.Token)
	return nil
}

func (g *Gateway) Bootstrap(ctx context.Context, req usecases.BootstrapRequest) (*usecases.Session, error) {
	var out usecases.Session
	err := g.do(ctx, call{
		op: "bootstrap session", method: http.MethodPost, path: "/api/session",
		body: req, out: &out, entity: entities.EntityCustomer, id: req.CustomerID,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func messagesPath(surface Surface, chatID string) string {
	if surface == SurfaceAdmin {
		return "/api/admin/chats/" + url.PathEscape(chatID) + "/messages"
	}
	return "/api/chats/" + url.PathEscape(chatID) + "/messages"
}

func (g *Gateway) ListMessages(ctx context.Context, surface Surface, chatID string) ([]entities.Message, error) {
	var out struct {
		Messages []entities.Message `json:"messages"`
	}
	err := g.do(ctx, call{
		op: "list messages", method: http.MethodGet, path: messagesPath(surface, chatID),
		out: &out, entity: entities.EntityChat, id: chatID,
	})
	if err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (g *Gateway) PostMessage(ctx context.Context, surface Surface, chatID string, in entities.NewMessage) (*entities.Message, error) {
	var out struct {
		Message entities.Message `json:"message"`
	}
	err := g.do(ctx, call{
		op: "send message", method: http.MethodPost, path: messagesPath(surface, chatID),
		body: map[string]string{
			"content":     in.Content,
			"sender":      string(in.Sender),
			"messageType": string(in.MessageType),
			"clientRef":   in.ClientRef,
		},
		out: &out, entity: entities.EntityChat, id: chatID,
	})
	if err != nil {
		return nil, err
	}
	return &out.Message, nil
}

func filterQuery(f entities.ListFilter) string {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Priority != "" {
		q.Set("priority", f.Priority)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (g *Gateway) ListChats(ctx context.Context, f entities.ListFilter) (*usecases.ChatList, error) {
	var out usecases.ChatList
	if err := g.do(ctx, call{op: "list chats", method: http.MethodGet, path: "/api/admin/chats" + filterQuery(f), out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *Gateway) UpdateChat(ctx context.Context, id string, patch entities.ChatPatch) (*entities.Chat, error) {
	var out struct {
		Chat entities.Chat `json:"chat"`
	}
	err := g.do(ctx, call{
		op: "update chat", method: http.MethodPatch, path: "/api/admin/chats",
		body: map[string]interface{}{"id": id, "status": patch.Status, "priority": patch.Priority},
		out:  &out, entity: entities.EntityChat, id: id,
	})
	if err != nil {
		return nil, err
	}
	return &out.Chat, nil
}

func (g *Gateway) ListQuotes(ctx context.Context, f entities.ListFilter) (*usecases.QuoteList, error) {
	var out usecases.QuoteList
	if err := g.do(ctx, call{op: "list quotes", method: http.MethodGet, path: "/api/admin/quotes" + filterQuery(f), out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *Gateway) UpdateQuote(ctx context.Context, id string, patch entities.QuotePatch) (*entities.Quote, error) {
	var out struct {
		Quote entities.Quote `json:"quote"`
	}
	err := g.do(ctx, call{
		op: "update quote", method: http.MethodPatch, path: "/api/admin/quotes",
		body: map[string]interface{}{
			"id": id, "status": patch.Status, "priority": patch.Priority, "estimated_value": patch.EstimatedValue,
		},
		out: &out, entity: entities.EntityQuote, id: id,
	})
	if err != nil {
		return nil, err
	}
	return &out.Quote, nil
}

func (g *Gateway) Analytics(ctx context.Context) (*usecases.Analytics, error) {
	var out usecases.Analytics
	if err := g.do(ctx, call{op: "analytics", method: http.MethodGet, path: "/api/admin/analytics", out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// HealthStatus is the server's /health report.
type HealthStatus struct {
	Status   string   `json:"status"`
	Warnings []string `json:"warnings,omitempty"`
}

func (g *Gateway) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := g.do(ctx, call{op: "health", method: http.MethodGet, path: "/health", out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// realtimeURL builds the websocket address for topic on surface.
func (g *Gateway) realtimeURL(surface Surface, topic, channel string) (string, error) {
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	q := url.Values{}
	q.Set("channel", channel)
	if surface == SurfaceAdmin {
		u.Path += "/api/admin/realtime"
		q.Set("topic", topic)
		q.Set("token", g.Token())
	} else {
		chatID, ok := strings.CutPrefix(topic, "chat:")
		if !ok {
			return "", fmt.Errorf("customer surface cannot follow topic %q", topic)
		}
		u.Path += "/api/realtime"
		q.Set("chat_id", chatID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
