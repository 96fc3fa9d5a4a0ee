// Package queue schedules pending bookings for expiry on a Redis sorted set.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Handler processes one due booking. A returned error reschedules it.
type Handler func(ctx context.Context, bookingID string) error

type ExpiryQueueConfig struct {
	Key          string
	MaxRetries   int
	RetryDelay   time.Duration
	PollInterval time.Duration
	Batch        int64
}

// ExpiryQueue holds booking ids scored by the unix-milli time they fall due.
// Any number of workers may poll; ZREM decides which one owns a member.
type ExpiryQueue struct {
	client     *redis.Client
	key        string
	maxRetries int
	retryDelay time.Duration
	poll       time.Duration
	batch      int64
	now        func() time.Time
}

func NewExpiryQueue(client *redis.Client, cfg ExpiryQueueConfig) (*ExpiryQueue, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		key = "turfhub:booking_expiry"
	}
	q := &ExpiryQueue{
		client:     client,
		key:        key,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		poll:       cfg.PollInterval,
		batch:      cfg.Batch,
		now:        time.Now,
	}
	if q.maxRetries <= 0 {
		q.maxRetries = 3
	}
	if q.retryDelay <= 0 {
		q.retryDelay = 10 * time.Second
	}
	if q.poll <= 0 {
		q.poll = time.Second
	}
	if q.batch <= 0 {
		q.batch = 50
	}
	return q, nil
}

func (q *ExpiryQueue) attemptsKey() string { return q.key + ":attempts" }

// Schedule makes bookingID due at the given time, replacing any earlier schedule.
func (q *ExpiryQueue) Schedule(ctx context.Context, bookingID string, at time.Time) error {
	if strings.TrimSpace(bookingID) == "" {
		return errors.New("booking id required")
	}
	return q.client.ZAdd(ctx, q.key, redis.Z{Score: float64(at.UnixMilli()), Member: bookingID}).Err()
}

// Cancel drops a scheduled booking, e.g. once the owner confirmed it.
func (q *ExpiryQueue) Cancel(ctx context.Context, bookingID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.key, bookingID)
	pipe.HDel(ctx, q.attemptsKey(), bookingID)
	_, err := pipe.Exec(ctx)
	return err
}

// Claim removes and returns up to Batch due booking ids.
func (q *ExpiryQueue) Claim(ctx context.Context) ([]string, error) {
	due, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(q.now().UnixMilli(), 10),
		Count: q.batch,
	}).Result()
	if err != nil {
		return nil, err
	}
	claimed := make([]string, 0, len(due))
	for _, id := range due {
		n, err := q.client.ZRem(ctx, q.key, id).Result()
		if err != nil {
			return claimed, err
		}
		if n == 1 {
			claimed = append(claimed, id)
		}
	}
	return claimed, nil
}

// ProcessDue claims due bookings and runs handler on each.
// Failures are rescheduled after RetryDelay until MaxRetries is reached.
func (q *ExpiryQueue) ProcessDue(ctx context.Context, handler Handler) error {
	ids, err := q.Claim(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		herr := handler(ctx, id)
		if herr == nil {
			_ = q.client.HDel(ctx, q.attemptsKey(), id).Err()
			continue
		}
		attempts, err := q.client.HIncrBy(ctx, q.attemptsKey(), id, 1).Result()
		if err != nil {
			return err
		}
		if int(attempts) >= q.maxRetries {
			slog.Error("booking expiry gave up", "booking_id", id, "attempts", attempts, "err", herr)
			_ = q.client.HDel(ctx, q.attemptsKey(), id).Err()
			continue
		}
		slog.Warn("booking expiry failed, rescheduling", "booking_id", id, "attempts", attempts, "err", herr)
		if err := q.Schedule(ctx, id, q.now().Add(q.retryDelay)); err != nil {
			return err
		}
	}
	return nil
}

// Run polls until ctx is cancelled.
func (q *ExpiryQueue) Run(ctx context.Context, handler Handler) error {
	ticker := time.NewTicker(q.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := q.ProcessDue(ctx, handler); err != nil && ctx.Err() == nil {
				slog.Warn("booking expiry poll failed", "err", err)
			}
		}
	}
}
