package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrInvalidRefreshToken indicates the token is unknown or expired.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenReplay indicates an already rotated token was presented again.
	ErrRefreshTokenReplay = errors.New("refresh token replay detected")
)

// Refresh tokens are grouped in families. Rotating hands out a new token in
// the same family; presenting a superseded token revokes the whole family.
type refreshFamily struct {
	userID  string
	current string // hash of the live token
	expiry  time.Time
	hashes  []string
}

// MemoryRefreshTokenStore keeps refresh token families in memory.
type MemoryRefreshTokenStore struct {
	mu       sync.Mutex
	families map[string]*refreshFamily
	byHash   map[string]string // token hash -> family ID
}

func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{
		families: make(map[string]*refreshFamily),
		byHash:   make(map[string]string),
	}
}

func (s *MemoryRefreshTokenStore) Issue(_ context.Context, userID string, ttl time.Duration) (string, error) {
	token, err := randomToken(32)
	if err != nil {
		return "", err
	}
	familyID, err := randomToken(16)
	if err != nil {
		return "", err
	}
	h := hashToken(token)
	s.mu.Lock()
	s.families[familyID] = &refreshFamily{userID: userID, current: h, expiry: time.Now().Add(ttl), hashes: []string{h}}
	s.byHash[h] = familyID
	s.mu.Unlock()
	return token, nil
}

func (s *MemoryRefreshTokenStore) Rotate(_ context.Context, token string, ttl time.Duration) (string, string, error) {
	h := hashToken(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	familyID, ok := s.byHash[h]
	if !ok {
		return "", "", ErrInvalidRefreshToken
	}
	fam := s.families[familyID]
	if fam == nil || time.Now().After(fam.expiry) {
		s.dropLocked(familyID)
		return "", "", ErrInvalidRefreshToken
	}
	if fam.current != h {
		s.dropLocked(familyID)
		return "", "", ErrRefreshTokenReplay
	}
	next, err := randomToken(32)
	if err != nil {
		return "", "", err
	}
	nh := hashToken(next)
	fam.current = nh
	fam.expiry = time.Now().Add(ttl)
	fam.hashes = append(fam.hashes, nh)
	s.byHash[nh] = familyID
	return fam.userID, next, nil
}

func (s *MemoryRefreshTokenStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	if familyID, ok := s.byHash[hashToken(token)]; ok {
		s.dropLocked(familyID)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryRefreshTokenStore) dropLocked(familyID string) {
	if fam := s.families[familyID]; fam != nil {
		for _, h := range fam.hashes {
			delete(s.byHash, h)
		}
	}
	delete(s.families, familyID)
}

// RedisRefreshTokenStore keeps refresh token families in Redis so every API
// replica sees the same rotation state.
type RedisRefreshTokenStore struct {
	client *redis.Client
	prefix string
}

func NewRedisRefreshTokenStore(client *redis.Client) *RedisRefreshTokenStore {
	return &RedisRefreshTokenStore{client: client, prefix: "turfhub:refresh"}
}

func (s *RedisRefreshTokenStore) tokenKey(hash string) string { return s.prefix + ":token:" + hash }
func (s *RedisRefreshTokenStore) familyKey(id string) string { return s.prefix + ":family:" + id }
func (s *RedisRefreshTokenStore) familyTokensKey(id string) string { return s.prefix + ":family_tokens:" + id }

func (s *RedisRefreshTokenStore) Issue(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token, err := randomToken(32)
	if err != nil {
		return "", err
	}
	familyID, err := randomToken(16)
	if err != nil {
		return "", err
	}
	h := hashToken(token)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.writeCurrent(ctx, pipe, familyID, userID, h, ttl)
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisRefreshTokenStore) writeCurrent(ctx context.Context, pipe redis.Pipeliner, familyID, userID, hash string, ttl time.Duration) {
	pipe.Set(ctx, s.tokenKey(hash), familyID, ttl)
	pipe.HSet(ctx, s.familyKey(familyID), "userId", userID, "current", hash)
	pipe.Expire(ctx, s.familyKey(familyID), ttl)
	pipe.SAdd(ctx, s.familyTokensKey(familyID), hash)
	pipe.Expire(ctx, s.familyTokensKey(familyID), ttl)
}

func (s *RedisRefreshTokenStore) Rotate(ctx context.Context, token string, ttl time.Duration) (string, string, error) {
	h := hashToken(token)
	familyID, err := s.client.Get(ctx, s.tokenKey(h)).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", ErrInvalidRefreshToken
	}
	if err != nil {
		return "", "", err
	}
	famKey := s.familyKey(familyID)
	for {
		var userID, next string
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			fam, err := tx.HGetAll(ctx, famKey).Result()
			if err != nil {
				return err
			}
			userID = fam["userId"]
			if userID == "" {
				return ErrInvalidRefreshToken
			}
			if fam["current"] != h {
				return ErrRefreshTokenReplay
			}
			next, err = randomToken(32)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				s.writeCurrent(ctx, pipe, familyID, userID, hashToken(next), ttl)
				return nil
			})
			return err
		}, famKey)
		switch {
		case errors.Is(err, redis.TxFailedErr):
			if ctx.Err() != nil {
				return "", "", ctx.Err()
			}
			continue
		case errors.Is(err, ErrInvalidRefreshToken), errors.Is(err, ErrRefreshTokenReplay):
			if dropErr := s.dropFamily(ctx, familyID); dropErr != nil {
				return "", "", dropErr
			}
			return "", "", err
		case err != nil:
			return "", "", err
		}
		return userID, next, nil
	}
}

func (s *RedisRefreshTokenStore) Revoke(ctx context.Context, token string) error {
	familyID, err := s.client.Get(ctx, s.tokenKey(hashToken(token))).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.dropFamily(ctx, familyID)
}

func (s *RedisRefreshTokenStore) dropFamily(ctx context.Context, familyID string) error {
	hashes, err := s.client.SMembers(ctx, s.familyTokensKey(familyID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keys := []string{s.familyKey(familyID), s.familyTokensKey(familyID)}
	for _, h := range hashes {
		keys = append(keys, s.tokenKey(h))
	}
	return s.client.Del(ctx, keys...).Err()
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
