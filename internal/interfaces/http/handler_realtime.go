package http

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"hekumbi_chat/internal/entities"
)

const realtimeWriteWait = 10 * time.Second

// CustomerRealtime streams one chat's messages and metadata changes.
func (h *Handler) CustomerRealtime(c *gin.Context) {
	chatID := c.Query("chat_id")
	if !ValidID(chatID) {
		badRequest(c, "chat_id: is required")
		return
	}
	if _, err := h.chats.GetChat(c.Request.Context(), chatID); err != nil {
		h.respondError(c, err)
		return
	}
	h.serveTopic(c, entities.ChatTopic(chatID))
}

// AdminRealtime streams "chats", "quotes" or a single "chat:<id>" topic.
func (h *Handler) AdminRealtime(c *gin.Context) {
	topic := c.DefaultQuery("topic", entities.TopicChats)
	switch {
	case topic == entities.TopicChats, topic == entities.TopicQuotes:
	case strings.HasPrefix(topic, "chat:") && ValidID(strings.TrimPrefix(topic, "chat:")):
	default:
		badRequest(c, "topic: must be chats, quotes or chat:<id>")
		return
	}
	h.serveTopic(c, topic)
}

// serveTopic upgrades the request, acknowledges the subscription with a
// "subscribed" frame naming the client's channel, then relays events until
// either side goes away. A subscriber dropped for lagging gets an error frame
// and must reconnect.
func (h *Handler) serveTopic(c *gin.Context, topic string) {
	channel := c.Query("channel")
	if !ValidChannel(channel) {
		badRequest(c, "Invalid channel")
		return
	}
	log := h.log.WithFields(logrus.Fields{"topic": topic, "channel": channel, "client_ip": c.ClientIP()})

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(h.origins),
	})
	if err != nil {
		log.WithError(err).Warn("Failed to accept websocket")
		return
	}
	defer conn.CloseNow()

	sub := h.feed.Subscribe(topic)
	defer sub.Close()

	// The client never sends data frames; CloseRead handles control frames
	// and cancels ctx once the peer goes away.
	ctx := conn.CloseRead(c.Request.Context())

	if err := writeFrame(ctx, conn, entities.Frame{Type: entities.FrameSubscribed, Channel: channel}); err != nil {
		log.WithError(err).Debug("Failed to acknowledge subscription")
		return
	}
	log.Debug("Realtime subscriber attached")

	for {
		select {
		case <-ctx.Done():
			log.Debug("Realtime subscriber left")
			return
		case ev, ok := <-sub.Events():
			if !ok {
				_ = writeFrame(ctx, conn, entities.Frame{Type: entities.FrameError, Channel: channel, Error: "subscriber lagged"})
				conn.Close(websocket.StatusTryAgainLater, "lagged")
				log.Info("Realtime subscriber dropped")
				return
			}
			if err := writeFrame(ctx, conn, entities.Frame{Type: entities.FrameEvent, Channel: channel, Event: &ev}); err != nil {
				log.WithError(err).Debug("Realtime write failed")
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f entities.Frame) error {
	ctx, cancel := context.WithTimeout(ctx, realtimeWriteWait)
	defer cancel()
	return wsjson.Write(ctx, conn, f)
}

// originPatterns turns configured CORS origins into host patterns.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		} else if o != "" {
			out = append(out, o)
		}
	}
	return out
}
