package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func refreshStores(t *testing.T) map[string]RefreshTokenStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]RefreshTokenStore{
		"memory": NewMemoryRefreshTokenStore(),
		"redis":  NewRedisRefreshTokenStore(client),
	}
}

func TestRefreshTokenRotateAndRevoke(t *testing.T) {
	ctx := context.Background()
	for name, s := range refreshStores(t) {
		t.Run(name, func(t *testing.T) {
			token, err := s.Issue(ctx, "user-1", time.Minute)
			if err != nil {
				t.Fatalf("issue: %v", err)
			}
			userID, next, err := s.Rotate(ctx, token, time.Minute)
			if err != nil {
				t.Fatalf("rotate: %v", err)
			}
			if userID != "user-1" {
				t.Fatalf("unexpected user id: %q", userID)
			}
			if next == "" || next == token {
				t.Fatalf("expected a fresh token")
			}
			if err := s.Revoke(ctx, next); err != nil {
				t.Fatalf("revoke: %v", err)
			}
			if _, _, err := s.Rotate(ctx, next, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
				t.Fatalf("expected invalid token after revoke, got %v", err)
			}
		})
	}
}

func TestRefreshTokenReplayRevokesFamily(t *testing.T) {
	ctx := context.Background()
	for name, s := range refreshStores(t) {
		t.Run(name, func(t *testing.T) {
			token, err := s.Issue(ctx, "user-2", time.Minute)
			if err != nil {
				t.Fatalf("issue: %v", err)
			}
			_, next, err := s.Rotate(ctx, token, time.Minute)
			if err != nil {
				t.Fatalf("rotate: %v", err)
			}
			if _, _, err := s.Rotate(ctx, token, time.Minute); !errors.Is(err, ErrRefreshTokenReplay) {
				t.Fatalf("expected replay, got %v", err)
			}
			if _, _, err := s.Rotate(ctx, next, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
				t.Fatalf("expected family revoked after replay, got %v", err)
			}
		})
	}
}

func TestRefreshTokenUnknown(t *testing.T) {
	ctx := context.Background()
	for name, s := range refreshStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, _, err := s.Rotate(ctx, "nope", time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
				t.Fatalf("expected invalid token, got %v", err)
			}
			if err := s.Revoke(ctx, "nope"); err != nil {
				t.Fatalf("revoke unknown: %v", err)
			}
		})
	}
}

func TestRedisRefreshTokenExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewRedisRefreshTokenStore(client)
	ctx := context.Background()

	token, err := s.Issue(ctx, "user-3", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, _, err := s.Rotate(ctx, token, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected expiry, got %v", err)
	}
}
