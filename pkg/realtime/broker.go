// Package realtime fans out room and session updates to connected clients.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Event types carried in an Envelope.
const (
	EventMessage     = "message"
	EventPollUpdated = "poll_updated"
	EventMemberJoin  = "member_joined"
	EventSession     = "session"
)

// Envelope is what subscribers receive.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEnvelope marshals data into an envelope of the given type.
func NewEnvelope(typ string, data any) (Envelope, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Data: b}, nil
}

func RoomTopic(roomID string) string    { return "room:" + roomID }
func SessionTopic(userID string) string { return "session:" + userID }

// Subscription delivers envelopes until Close is called or the context ends.
type Subscription interface {
	C() <-chan Envelope
	Close() error
}

// Broker publishes envelopes to topics.
type Broker interface {
	Publish(ctx context.Context, topic string, env Envelope) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// RedisBroker uses Redis pub/sub so every API replica sees every event.
type RedisBroker struct {
	client *redis.Client
	prefix string
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client, prefix: "turfhub:rt:"}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.prefix+topic, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, b.prefix+topic)
	// Wait for the confirmation so no publish right after Subscribe is lost.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	sub := &redisSubscription{ps: ps, out: make(chan Envelope, 16), done: make(chan struct{})}
	go sub.pump()
	return sub, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan Envelope
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) pump() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			slog.Warn("drop malformed realtime payload", "channel", msg.Channel, "err", err)
			continue
		}
		select {
		case s.out <- env:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) C() <-chan Envelope { return s.out }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

// MemoryBroker serves a single process. Slow subscribers drop events.
type MemoryBroker struct {
	mu     sync.Mutex
	topics map[string]map[*memorySubscription]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string]map[*memorySubscription]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, topic string, env Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.topics[topic] {
		select {
		case sub.out <- env:
		default:
			slog.Warn("realtime subscriber lagging, event dropped", "topic", topic)
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	sub := &memorySubscription{broker: b, topic: topic, out: make(chan Envelope, 16)}
	b.mu.Lock()
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*memorySubscription]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	b.mu.Unlock()
	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()
	return sub, nil
}

type memorySubscription struct {
	broker *MemoryBroker
	topic  string
	out    chan Envelope
	once   sync.Once
}

func (s *memorySubscription) C() <-chan Envelope { return s.out }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.topics[s.topic], s)
		if len(s.broker.topics[s.topic]) == 0 {
			delete(s.broker.topics, s.topic)
		}
		s.broker.mu.Unlock()
		close(s.out)
	})
	return nil
}
