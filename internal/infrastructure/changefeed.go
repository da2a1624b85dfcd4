package infrastructure

import (
	"context"
	"sync"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/interfaces"

	"github.com/sirupsen/logrus"
)

// Broker fans change events out to in-process subscribers by topic.
// A subscriber whose buffer is full is dropped; its Events channel is closed.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[*brokerSub]struct{}
	buffer int
	log    logrus.FieldLogger
}

type brokerSub struct {
	broker *Broker
	topic  string
	ch     chan entities.ChangeEvent
}

var _ interfaces.ChangeFeed = (*Broker)(nil)

func NewBroker(buffer int, log logrus.FieldLogger) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broker{
		subs:   make(map[string]map[*brokerSub]struct{}),
		buffer: buffer,
		log:    log,
	}
}

func (b *Broker) Subscribe(topic string) interfaces.Subscription {
	s := &brokerSub{broker: b, topic: topic, ch: make(chan entities.ChangeEvent, b.buffer)}
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*brokerSub]struct{})
	}
	b.subs[topic][s] = struct{}{}
	b.mu.Unlock()
	return s
}

func (b *Broker) Publish(ctx context.Context, ev entities.ChangeEvent) {
	var lagged []*brokerSub

	b.mu.RLock()
	for s := range b.subs[ev.Topic] {
		select {
		case s.ch <- ev:
		default:
			lagged = append(lagged, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range lagged {
		b.log.WithField("topic", ev.Topic).Warn("Dropping lagging subscriber")
		b.remove(s)
	}
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// remove closes the channel under the write lock so no Publish can be sending on it.
func (b *Broker) remove(s *brokerSub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[s.topic]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(b.subs, s.topic)
	}
	close(s.ch)
}

func (s *brokerSub) Events() <-chan entities.ChangeEvent { return s.ch }

func (s *brokerSub) Close() { s.broker.remove(s) }
