// Package session derives the acting identity from an auth session.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"turfhub/pkg/domain"
)

const (
	MetaRole     = "role"
	MetaNickname = "nickname"

	defaultNickname = "Player"
)

// ErrRoleMismatch indicates an account signing in to the other role's portal.
var ErrRoleMismatch = errors.New("role mismatch")

// Session is what the auth provider hands back: a stable user id plus a metadata bag.
type Session struct {
	UserID    string         `json:"userId"`
	Email     string         `json:"email"`
	Metadata  map[string]any `json:"metadata"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// Identity is who is acting. Guests have no user id.
type Identity struct {
	UserID   string      `json:"userId,omitempty"`
	Nickname string      `json:"nickname"`
	Role     domain.Role `json:"role"`
}

func (i Identity) IsGuest() bool { return i.Role == domain.RoleGuest || i.UserID == "" }
func (i Identity) IsOwner() bool { return i.Role == domain.RoleOwner && i.UserID != "" }

// Guest is the identity used when browsing without signing in.
func Guest() Identity {
	return Identity{Nickname: "Guest", Role: domain.RoleGuest}
}

// Resolve reads role and nickname from the session metadata.
// A nil or anonymous session is not an error: the caller stays on the landing view.
func Resolve(s *Session) (Identity, bool) {
	if s == nil || strings.TrimSpace(s.UserID) == "" {
		return Identity{}, false
	}
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		return Identity{}, false
	}
	id := Identity{
		UserID:   s.UserID,
		Role:     domain.ParseRole(metaString(s.Metadata, MetaRole)),
		Nickname: metaString(s.Metadata, MetaNickname),
	}
	if id.Role == domain.RoleGuest {
		id.Role = domain.RoleUser
	}
	if id.Nickname == "" {
		id.Nickname = nicknameFromEmail(s.Email)
	}
	return id, true
}

// Metadata builds the bag stored alongside a session for u.
func Metadata(u domain.User) map[string]any {
	return map[string]any{
		MetaRole:     string(u.Role),
		MetaNickname: u.Nickname,
	}
}

// CheckPortal rejects identities whose role does not match the portal used to sign in.
func CheckPortal(id Identity, portal domain.Role) error {
	if id.Role != portal {
		return fmt.Errorf("%w: this account is registered as %s, use the %s portal", ErrRoleMismatch, id.Role, id.Role)
	}
	return nil
}

// CanSend reports whether the identity may post chat messages.
func CanSend(id Identity) bool {
	return !id.IsGuest()
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	v, _ := meta[key].(string)
	return strings.TrimSpace(v)
}

func nicknameFromEmail(email string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	if local == "" {
		return defaultNickname
	}
	return local
}
