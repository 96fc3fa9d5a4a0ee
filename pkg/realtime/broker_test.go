package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func receive(t *testing.T, sub Subscription) Envelope {
	t.Helper()
	select {
	case env, ok := <-sub.C():
		if !ok {
			t.Fatalf("subscription closed")
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return Envelope{}
}

func TestBrokersDeliverToTopicSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	brokers := map[string]Broker{
		"memory": NewMemoryBroker(),
		"redis":  NewRedisBroker(client),
	}
	for name, b := range brokers {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sub, err := b.Subscribe(ctx, RoomTopic("r1"))
			if err != nil {
				t.Fatalf("subscribe: %v", err)
			}
			defer sub.Close()
			other, err := b.Subscribe(ctx, RoomTopic("r2"))
			if err != nil {
				t.Fatalf("subscribe: %v", err)
			}
			defer other.Close()

			env, err := NewEnvelope(EventMessage, map[string]string{"text": "game on"})
			if err != nil {
				t.Fatalf("envelope: %v", err)
			}
			if err := b.Publish(ctx, RoomTopic("r1"), env); err != nil {
				t.Fatalf("publish: %v", err)
			}
			got := receive(t, sub)
			if got.Type != EventMessage || string(got.Data) != `{"text":"game on"}` {
				t.Fatalf("unexpected envelope %+v", got)
			}
			select {
			case env := <-other.C():
				t.Fatalf("other topic received %+v", env)
			case <-time.After(50 * time.Millisecond):
			}
		})
	}
}

func TestMemorySubscriptionClosesWithContext(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())
	sub, _ := b.Subscribe(ctx, SessionTopic("u1"))
	cancel()
	select {
	case _, ok := <-sub.C():
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscription not closed")
	}
	if err := b.Publish(context.Background(), SessionTopic("u1"), Envelope{Type: EventSession}); err != nil {
		t.Fatalf("publish after close: %v", err)
	}
}
