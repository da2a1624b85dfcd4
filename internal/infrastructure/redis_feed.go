package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/interfaces"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultFeedChannel = "hekumbi:changes"

func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisFeed shares change events between server instances. Events are
// delivered locally right away and relayed to the other instances through
// a redis pub/sub channel.
type RedisFeed struct {
	client  *redis.Client
	channel string
	origin  string
	local   *Broker
	log     logrus.FieldLogger
}

type feedEnvelope struct {
	Origin string               `json:"origin"`
	Event  entities.ChangeEvent `json:"event"`
}

var _ interfaces.ChangeFeed = (*RedisFeed)(nil)

func NewRedisFeed(client *redis.Client, channel string, local *Broker, log logrus.FieldLogger) *RedisFeed {
	if channel == "" {
		channel = DefaultFeedChannel
	}
	return &RedisFeed{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		local:   local,
		log:     log,
	}
}

func (f *RedisFeed) Subscribe(topic string) interfaces.Subscription {
	return f.local.Subscribe(topic)
}

func (f *RedisFeed) Publish(ctx context.Context, ev entities.ChangeEvent) {
	f.local.Publish(ctx, ev)

	data, err := json.Marshal(feedEnvelope{Origin: f.origin, Event: ev})
	if err != nil {
		f.log.WithError(err).Error("Failed to encode change event")
		return
	}
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		f.log.WithError(err).WithField("topic", ev.Topic).Warn("Failed to relay change event to redis")
	}
}

// Run relays events published by other instances into the local broker
// until ctx is cancelled.
func (f *RedisFeed) Run(ctx context.Context) error {
	pubsub := f.client.Subscribe(ctx, f.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}
	f.log.WithField("channel", f.channel).Info("Relaying change events from redis")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env feedEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				f.log.WithError(err).Warn("Ignoring malformed change event")
				continue
			}
			if env.Origin == f.origin {
				continue
			}
			f.local.Publish(ctx, env.Event)
		}
	}
}
