package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) (*ExpiryQueue, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q, err := NewExpiryQueue(client, ExpiryQueueConfig{Key: "test:expiry", MaxRetries: 2, RetryDelay: time.Minute})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	now := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }
	return q, &now
}

func TestExpiryQueueClaimsOnlyDue(t *testing.T) {
	q, now := newTestQueue(t)
	ctx := context.Background()
	if err := q.Schedule(ctx, "b-past", now.Add(-time.Second)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := q.Schedule(ctx, "b-future", now.Add(time.Hour)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	ids, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(ids) != 1 || ids[0] != "b-past" {
		t.Fatalf("unexpected claim %v", ids)
	}
	if ids, _ := q.Claim(ctx); len(ids) != 0 {
		t.Fatalf("claimed twice: %v", ids)
	}
}

func TestExpiryQueueCancel(t *testing.T) {
	q, now := newTestQueue(t)
	ctx := context.Background()
	_ = q.Schedule(ctx, "b1", now.Add(-time.Second))
	if err := q.Cancel(ctx, "b1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if ids, _ := q.Claim(ctx); len(ids) != 0 {
		t.Fatalf("cancelled booking claimed: %v", ids)
	}
}

func TestExpiryQueueRetriesThenGivesUp(t *testing.T) {
	q, now := newTestQueue(t)
	ctx := context.Background()
	_ = q.Schedule(ctx, "b1", now.Add(-time.Second))

	calls := 0
	failing := func(context.Context, string) error {
		calls++
		return errors.New("db down")
	}
	if err := q.ProcessDue(ctx, failing); err != nil {
		t.Fatalf("process: %v", err)
	}
	if ids, _ := q.Claim(ctx); len(ids) != 0 {
		t.Fatalf("retry should wait for the delay, got %v", ids)
	}

	*now = now.Add(2 * time.Minute)
	if err := q.ProcessDue(ctx, failing); err != nil {
		t.Fatalf("process: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	*now = now.Add(2 * time.Minute)
	if ids, _ := q.Claim(ctx); len(ids) != 0 {
		t.Fatalf("expected queue to give up after max retries, got %v", ids)
	}
}
