package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/usecases"
)

type messageRequest struct {
	Content     string `json:"content"`
	Sender      string `json:"sender"`
	MessageType string `json:"messageType"`
	ClientRef   string `json:"clientRef"`
}

func (r messageRequest) toNewMessage(sender entities.Sender) entities.NewMessage {
	return entities.NewMessage{
		Sender:      sender,
		Content:     TruncateString(SanitizeString(r.Content), usecases.MaxMessageLength+1),
		MessageType: entities.MessageType(r.MessageType),
		ClientRef:   TruncateString(r.ClientRef, MaxIDLength),
	}
}

func (h *Handler) Bootstrap(c *gin.Context) {
	var req usecases.BootstrapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	if req.CustomerID != "" && !ValidID(req.CustomerID) {
		// A malformed stored id is treated like a stale one.
		req.CustomerID = ""
	}
	sess, err := h.identity.Bootstrap(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) UpdateContact(c *gin.Context) {
	var req struct {
		CustomerID string `json:"customer_id"`
		entities.ContactPatch
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	if !ValidID(req.CustomerID) {
		badRequest(c, "customer_id: is required")
		return
	}
	customer, err := h.identity.UpdateContact(c.Request.Context(), req.CustomerID, req.ContactPatch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer": customer})
}

func (h *Handler) ListMessages(c *gin.Context) {
	id := c.Param("id")
	if !ValidID(id) {
		badRequest(c, "Invalid chat id")
		return
	}
	msgs, err := h.chats.ListMessages(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if msgs == nil {
		msgs = []entities.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostCustomerMessage accepts customer messages and the widget's canned bot replies.
func (h *Handler) PostCustomerMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	sender := entities.Sender(req.Sender)
	switch sender {
	case "":
		sender = entities.SenderCustomer
	case entities.SenderCustomer, entities.SenderBot:
	default:
		badRequest(c, "sender: must be one of: customer bot")
		return
	}
	h.postMessage(c, req.toNewMessage(sender))
}

func (h *Handler) PostAdminMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	sender := entities.Sender(req.Sender)
	switch sender {
	case "":
		sender = entities.SenderAdmin
	case entities.SenderAdmin, entities.SenderBot:
	default:
		badRequest(c, "sender: must be one of: admin bot")
		return
	}
	h.postMessage(c, req.toNewMessage(sender))
}

func (h *Handler) postMessage(c *gin.Context, in entities.NewMessage) {
	id := c.Param("id")
	if !ValidID(id) {
		badRequest(c, "Invalid chat id")
		return
	}
	m, err := h.chats.PostMessage(c.Request.Context(), id, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": m})
}

func (h *Handler) ListChats(c *gin.Context) {
	out, err := h.chats.ListChats(c.Request.Context(), listFilter(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) UpdateChat(c *gin.Context) {
	var req struct {
		ID string `json:"id"`
		entities.ChatPatch
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	if !ValidID(req.ID) {
		badRequest(c, "id: is required")
		return
	}
	chat, err := h.chats.UpdateChat(c.Request.Context(), req.ID, req.ChatPatch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chat": chat})
}
