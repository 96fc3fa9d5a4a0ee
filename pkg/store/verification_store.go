package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type pendingVerification struct {
	userID string
	expiry time.Time
}

// MemoryVerificationStore keeps email verification tokens in memory.
type MemoryVerificationStore struct {
	mu     sync.Mutex
	tokens map[string]pendingVerification // token hash -> pending
}

func NewMemoryVerificationStore() *MemoryVerificationStore {
	return &MemoryVerificationStore{tokens: make(map[string]pendingVerification)}
}

func (s *MemoryVerificationStore) Issue(_ context.Context, userID string, ttl time.Duration) (string, error) {
	token, err := randomToken(24)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.tokens[hashToken(token)] = pendingVerification{userID: userID, expiry: time.Now().Add(ttl)}
	s.mu.Unlock()
	return token, nil
}

// Consume returns the user the token was issued for. A token works once.
func (s *MemoryVerificationStore) Consume(_ context.Context, token string) (string, bool, error) {
	h := hashToken(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.tokens[h]
	if !ok {
		return "", false, nil
	}
	delete(s.tokens, h)
	if time.Now().After(p.expiry) {
		return "", false, nil
	}
	return p.userID, true, nil
}

// RedisVerificationStore keeps verification tokens as expiring keys.
type RedisVerificationStore struct {
	client *redis.Client
}

func NewRedisVerificationStore(client *redis.Client) *RedisVerificationStore {
	return &RedisVerificationStore{client: client}
}

func (s *RedisVerificationStore) Issue(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token, err := randomToken(24)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, verificationKey(token), userID, ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisVerificationStore) Consume(ctx context.Context, token string) (string, bool, error) {
	userID, err := s.client.GetDel(ctx, verificationKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}

func verificationKey(token string) string {
	return "turfhub:verify:" + hashToken(token)
}
