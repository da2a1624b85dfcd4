package client

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	MaxNotifications       = 10
	DefaultNotificationTTL = 5 * time.Second
)

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
}

// Hub holds the most recent notifications, newest first. Each one expires
// after the hub's TTL unless dismissed earlier.
type Hub struct {
	ttl time.Duration

	mu       sync.Mutex
	items    []Notification
	timers   map[string]*time.Timer
	onChange func([]Notification)
	closed   bool
}

// NewHub returns a hub whose notifications live for ttl, or
// DefaultNotificationTTL when ttl is not positive.
func NewHub(ttl time.Duration) *Hub {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &Hub{ttl: ttl, timers: make(map[string]*time.Timer)}
}

// OnChange registers fn to receive the list after every change.
// fn runs outside the hub's lock.
func (h *Hub) OnChange(fn func([]Notification)) {
	h.mu.Lock()
	h.onChange = fn
	h.mu.Unlock()
}

func (h *Hub) Push(typ NotificationType, title, message string) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return n
	}
	h.items = append([]Notification{n}, h.items...)
	for len(h.items) > MaxNotifications {
		last := h.items[len(h.items)-1]
		h.stopLocked(last.ID)
		h.items = h.items[:len(h.items)-1]
	}
	id := n.ID
	h.timers[id] = time.AfterFunc(h.ttl, func() { h.Dismiss(id) })
	h.notifyLocked()
	return n
}

func (h *Hub) Info(title, message string) Notification {
	return h.Push(NotificationInfo, title, message)
}

func (h *Hub) Success(title, message string) Notification {
	return h.Push(NotificationSuccess, title, message)
}

func (h *Hub) Error(title, message string) Notification {
	return h.Push(NotificationError, title, message)
}

// Dismiss removes a notification and cancels its expiry. It reports whether
// the notification was still present.
func (h *Hub) Dismiss(id string) bool {
	h.mu.Lock()
	idx := -1
	for i, n := range h.items {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		h.mu.Unlock()
		return false
	}
	h.stopLocked(id)
	h.items = append(h.items[:idx], h.items[idx+1:]...)
	h.notifyLocked()
	return true
}

func (h *Hub) List() []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Notification(nil), h.items...)
}

// Close cancels every pending expiry and drops the list.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.timers {
		h.stopLocked(id)
	}
	h.items = nil
	h.closed = true
}

func (h *Hub) stopLocked(id string) {
	if t, ok := h.timers[id]; ok {
		t.Stop()
		delete(h.timers, id)
	}
}

// notifyLocked releases the lock before calling the change callback.
func (h *Hub) notifyLocked() {
	fn := h.onChange
	snapshot := append([]Notification(nil), h.items...)
	h.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}
