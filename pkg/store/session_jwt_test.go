package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"turfhub/pkg/domain"
	"turfhub/pkg/session"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTSessionCarriesRoleMetadata(t *testing.T) {
	s, err := NewJWTSessionStore(testSecret, time.Hour, nil, JWTOptions{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, expires, err := s.NewSession(domain.User{ID: "u1", Email: "ravi@example.com", Role: domain.RoleOwner, Nickname: "Ravi"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expiry in the past: %v", expires)
	}
	sess, ok, err := s.Resolve(token)
	if err != nil || !ok {
		t.Fatalf("resolve: %v %v", ok, err)
	}
	id, ok := session.Resolve(&sess)
	if !ok {
		t.Fatalf("identity not resolved")
	}
	if id.UserID != "u1" || id.Role != domain.RoleOwner || id.Nickname != "Ravi" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestJWTSessionRevokedOnDelete(t *testing.T) {
	s, err := NewJWTSessionStore(testSecret, time.Hour, NewMemoryTokenRevoker(), JWTOptions{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, _, err := s.NewSession(domain.User{ID: "u1", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, err := s.Resolve(token); ok || !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked, got ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionRejectsForeignTokens(t *testing.T) {
	a, _ := NewJWTSessionStore(testSecret, time.Hour, nil, JWTOptions{})
	b, _ := NewJWTSessionStore(strings.Repeat("z", 32), time.Hour, nil, JWTOptions{})
	other, _ := NewJWTSessionStore(testSecret, time.Hour, nil, JWTOptions{Audience: "other"})

	token, _, err := a.NewSession(domain.User{ID: "u1"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, _ := b.Resolve(token); ok {
		t.Fatalf("accepted token signed with another secret")
	}
	if _, ok, _ := other.Resolve(token); ok {
		t.Fatalf("accepted token for another audience")
	}
	if _, ok, _ := a.Resolve("not-a-token"); ok {
		t.Fatalf("accepted garbage")
	}
}

func TestJWTSessionExpires(t *testing.T) {
	s, _ := NewJWTSessionStore(testSecret, time.Minute, nil, JWTOptions{Leeway: time.Second})
	now := time.Now()
	s.now = func() time.Time { return now }
	token, _, err := s.NewSession(domain.User{ID: "u1"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok, _ := s.Resolve(token); ok {
		t.Fatalf("expired token accepted")
	}
}

func TestJWTSessionRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("short", time.Hour, nil, JWTOptions{}); !errors.Is(err, ErrWeakJWTSecret) {
		t.Fatalf("expected weak secret error, got %v", err)
	}
}
