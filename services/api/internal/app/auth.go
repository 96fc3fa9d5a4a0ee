package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"turfhub/internal/util"
	"turfhub/pkg/auth"
	"turfhub/pkg/domain"
	"turfhub/pkg/events"
	"turfhub/pkg/realtime"
	"turfhub/pkg/session"
	"turfhub/pkg/store"
)

// Session event names carried on the session topic.
const (
	SessionSignedIn  = "signed_in"
	SessionSignedOut = "signed_out"
	SessionRefreshed = "token_refreshed"
)

// SignUpInput is the registration form.
type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Nickname string `json:"nickname"`
}

// Tokens is an issued access/refresh pair.
type Tokens struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// SessionEvent is published on the user's session topic.
type SessionEvent struct {
	Event  string    `json:"event"`
	UserID string    `json:"userId"`
	At     time.Time `json:"at"`
}

// SignUp registers an account. Unless verification is skipped the account
// cannot sign in until the emailed link is followed.
func (a *App) SignUp(ctx context.Context, in SignUpInput) (domain.User, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || in.Password == "" {
		return domain.User{}, ErrEmailAndPasswordRequired
	}
	role := domain.RoleUser
	switch strings.TrimSpace(strings.ToLower(in.Role)) {
	case "", string(domain.RoleUser):
	case string(domain.RoleOwner):
		role = domain.RoleOwner
	default:
		return domain.User{}, ErrInvalidRole
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return domain.User{}, err
	}
	exists, err := a.store.HasUserEmail(ctx, email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailTaken
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	nickname := strings.TrimSpace(in.Nickname)
	if nickname == "" {
		nickname, _, _ = strings.Cut(email, "@")
	}
	now := a.now().UTC()
	user := domain.User{
		ID:            util.NewID(),
		Email:         email,
		PasswordHash:  hash,
		Role:          role,
		Nickname:      nickname,
		EmailVerified: a.skipVerify,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.store.SaveUser(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	if !user.EmailVerified {
		if err := a.requestVerification(ctx, user); err != nil {
			return domain.User{}, err
		}
	}
	return user, nil
}

// ResendVerification issues a fresh link for an unverified account. Unknown
// or already verified emails succeed silently.
func (a *App) ResendVerification(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ErrEmailRequired
	}
	user, ok, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok || user.EmailVerified {
		return nil
	}
	return a.requestVerification(ctx, user)
}

func (a *App) requestVerification(ctx context.Context, user domain.User) error {
	token, err := a.verifications.Issue(ctx, user.ID, a.verificationTTL)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}
	a.publishEvent(ctx, events.RKVerificationRequested, events.VerificationRequested{
		UserID:    user.ID,
		Email:     user.Email,
		Nickname:  user.Nickname,
		Token:     token,
		ExpiresAt: a.now().Add(a.verificationTTL).UTC(),
	})
	return nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (a *App) VerifyEmail(ctx context.Context, token string) (domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, ErrInvalidVerification
	}
	userID, ok, err := a.verifications.Consume(ctx, token)
	if err != nil {
		return domain.User{}, fmt.Errorf("consume verification token: %w", err)
	}
	if !ok {
		return domain.User{}, ErrInvalidVerification
	}
	user, found, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !found {
		return domain.User{}, ErrInvalidVerification
	}
	if user.EmailVerified {
		return user, nil
	}
	user.EmailVerified = true
	user.UpdatedAt = a.now().UTC()
	if err := a.store.SaveUser(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// SignIn checks credentials and the portal. An account signing in through
// the other role's portal gets its fresh session revoked immediately.
func (a *App) SignIn(ctx context.Context, email, password string, portal domain.Role) (domain.User, Tokens, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, Tokens{}, ErrEmailAndPasswordRequired
	}
	user, ok, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, Tokens{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, Tokens{}, ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return domain.User{}, Tokens{}, ErrEmailNotVerified
	}
	access, expiresAt, err := a.sessions.NewSession(user)
	if err != nil {
		return domain.User{}, Tokens{}, fmt.Errorf("issue access token: %w", err)
	}
	if portal != "" {
		if err := a.checkPortal(access, portal); err != nil {
			if derr := a.sessions.DeleteSession(access); derr != nil {
				slog.Warn("revoke mismatched session failed", "user_id", user.ID, "err", derr)
			}
			return domain.User{}, Tokens{}, err
		}
	}
	refresh, err := a.refreshTokens.Issue(ctx, user.ID, a.refreshTTL)
	if err != nil {
		_ = a.sessions.DeleteSession(access)
		return domain.User{}, Tokens{}, fmt.Errorf("issue refresh token: %w", err)
	}
	a.publishSession(ctx, user.ID, SessionSignedIn)
	return user, Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}

func (a *App) checkPortal(access string, portal domain.Role) error {
	sess, ok, err := a.sessions.Resolve(access)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}
	id, resolved := session.Resolve(&sess)
	if !ok || !resolved {
		return ErrSignInRequired
	}
	return session.CheckPortal(id, portal)
}

// SignOut revokes the access token and, when given, the refresh token.
func (a *App) SignOut(ctx context.Context, p Principal, accessToken, refreshToken string) error {
	if err := a.sessions.DeleteSession(accessToken); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken != "" {
		if err := a.refreshTokens.Revoke(ctx, refreshToken); err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
	}
	a.publishSession(ctx, p.User.ID, SessionSignedOut)
	return nil
}

// Refresh rotates the refresh token and issues a new access token.
func (a *App) Refresh(ctx context.Context, refreshToken string) (domain.User, Tokens, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.User{}, Tokens{}, ErrRefreshTokenRequired
	}
	userID, next, err := a.refreshTokens.Rotate(ctx, refreshToken, a.refreshTTL)
	if err != nil {
		if errors.Is(err, store.ErrInvalidRefreshToken) || errors.Is(err, store.ErrRefreshTokenReplay) {
			return domain.User{}, Tokens{}, ErrInvalidRefreshToken
		}
		return domain.User{}, Tokens{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	user, found, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, Tokens{}, fmt.Errorf("fetch user: %w", err)
	}
	if !found {
		_ = a.refreshTokens.Revoke(ctx, next)
		return domain.User{}, Tokens{}, ErrInvalidRefreshToken
	}
	access, expiresAt, err := a.sessions.NewSession(user)
	if err != nil {
		_ = a.refreshTokens.Revoke(ctx, next)
		return domain.User{}, Tokens{}, fmt.Errorf("issue access token: %w", err)
	}
	a.publishSession(ctx, user.ID, SessionRefreshed)
	return user, Tokens{AccessToken: access, RefreshToken: next, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves an access token to the caller. Role and nickname come
// from the stored user, so a token minted before a profile change still acts
// with current data.
func (a *App) Authenticate(ctx context.Context, token string) (Principal, bool) {
	if strings.TrimSpace(token) == "" {
		return Principal{}, false
	}
	sess, ok, err := a.sessions.Resolve(token)
	if err != nil || !ok {
		return Principal{}, false
	}
	user, found, err := a.store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		slog.Warn("fetch session user failed", "user_id", sess.UserID, "err", err)
		return Principal{}, false
	}
	if !found {
		return Principal{}, false
	}
	p := principalFor(user)
	if p.Identity.IsGuest() {
		return Principal{}, false
	}
	return p, true
}

func (a *App) publishSession(ctx context.Context, userID, event string) {
	if userID == "" {
		return
	}
	a.publishRealtime(ctx, realtime.SessionTopic(userID), realtime.EventSession, SessionEvent{
		Event:  event,
		UserID: userID,
		At:     a.now().UTC(),
	})
}
