package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"

	"hekumbi_chat/internal/entities"
)

// DefaultReconnectDelay is the fixed wait between subscription attempts.
const DefaultReconnectDelay = 5 * time.Second

// ConnState is the lifecycle of a push subscription.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}
	return "idle"
}

// Stream yields change events from one acknowledged subscription.
type Stream interface {
	Next(ctx context.Context) (entities.ChangeEvent, error)
	Close()
}

// Dialer opens a subscription to topic under the given channel name.
type Dialer interface {
	Dial(ctx context.Context, topic, channel string) (Stream, error)
}

// WSDialer subscribes over the server's websocket endpoints.
type WSDialer struct {
	gateway *Gateway
	surface Surface
}

func NewWSDialer(gateway *Gateway, surface Surface) *WSDialer {
	return &WSDialer{gateway: gateway, surface: surface}
}

// Dial connects and waits for the "subscribed" acknowledgement naming channel.
func (d *WSDialer) Dial(ctx context.Context, topic, channel string) (Stream, error) {
	addr, err := d.gateway.realtimeURL(d.surface, topic, channel)
	if err != nil {
		return nil, &entities.SubscriptionError{Channel: channel, Err: err}
	}

	conn, _, err := websocket.Dial(ctx, addr, &websocket.DialOptions{HTTPClient: d.gateway.http})
	if err != nil {
		return nil, &entities.SubscriptionError{Channel: channel, Err: err}
	}
	conn.SetReadLimit(1 << 20)

	var ack entities.Frame
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		conn.CloseNow()
		return nil, &entities.SubscriptionError{Channel: channel, Err: err}
	}
	switch {
	case ack.Type == entities.FrameError:
		conn.CloseNow()
		return nil, &entities.SubscriptionError{Channel: channel, Err: errors.New(ack.Error)}
	case ack.Type != entities.FrameSubscribed || ack.Channel != channel:
		conn.CloseNow()
		return nil, &entities.SubscriptionError{Channel: channel, Err: fmt.Errorf("unexpected %q frame for channel %q", ack.Type, ack.Channel)}
	}
	return &wsStream{conn: conn, channel: channel}, nil
}

type wsStream struct {
	conn    *websocket.Conn
	channel string
}

func (s *wsStream) Next(ctx context.Context) (entities.ChangeEvent, error) {
	for {
		var f entities.Frame
		if err := wsjson.Read(ctx, s.conn, &f); err != nil {
			return entities.ChangeEvent{}, &entities.SubscriptionError{Channel: s.channel, Err: err}
		}
		switch f.Type {
		case entities.FrameError:
			return entities.ChangeEvent{}, &entities.SubscriptionError{Channel: s.channel, Err: errors.New(f.Error)}
		case entities.FrameEvent:
			if f.Event != nil {
				return *f.Event, nil
			}
		}
	}
}

func (s *wsStream) Close() {
	s.conn.Close(websocket.StatusNormalClosure, "")
}

// feedLoop keeps one topic subscribed until ctx ends or onEvent asks to stop.
// Every attempt gets a fresh channel name "<prefix>-<attempt>".
type feedLoop struct {
	dialer    Dialer
	topic     string
	prefix    string
	delay     time.Duration
	log       logrus.FieldLogger
	setState  func(ConnState)
	onConnect func(attempt int)
	onEvent   func(entities.ChangeEvent) (stop bool)
}

func (l *feedLoop) run(ctx context.Context) error {
	defer l.setState(StateIdle)

	for attempt := 1; ; attempt++ {
		channel := fmt.Sprintf("%s-%d", l.prefix, attempt)
		log := l.log.WithFields(logrus.Fields{"topic": l.topic, "channel": channel})

		l.setState(StateConnecting)
		stream, err := l.dialer.Dial(ctx, l.topic, channel)
		if err == nil {
			l.setState(StateConnected)
			if l.onConnect != nil {
				l.onConnect(attempt)
			}
			var stop bool
			stop, err = l.consume(ctx, stream)
			stream.Close()
			if stop {
				return nil
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		l.setState(StateDisconnected)
		log.WithError(err).Warn("Subscription lost, reconnecting")

		t := time.NewTimer(l.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (l *feedLoop) consume(ctx context.Context, stream Stream) (bool, error) {
	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			return false, err
		}
		if l.onEvent(ev) {
			return true, nil
		}
	}
}
