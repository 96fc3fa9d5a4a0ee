package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"turfhub/pkg/auth"
	"turfhub/pkg/domain"
	"turfhub/pkg/events"
	"turfhub/pkg/realtime"
	"turfhub/pkg/session"
)

func TestSignUpRequiresEmailVerification(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	user, err := env.app.SignUp(ctx, SignUpInput{Email: " Ria@Example.com ", Password: testPassword})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if user.Email != "ria@example.com" || user.Role != domain.RoleUser || user.Nickname != "ria" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if _, _, err := env.app.SignIn(ctx, "ria@example.com", testPassword, domain.RoleUser); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("expected unverified error, got %v", err)
	}

	msgs := env.events.Messages(events.RKVerificationRequested)
	if len(msgs) != 1 {
		t.Fatalf("expected one verification event, got %d", len(msgs))
	}
	evt, err := events.Decode[events.VerificationRequested](msgs[0].Body)
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.UserID != user.ID || evt.Token == "" {
		t.Fatalf("unexpected event: %+v", evt)
	}

	verified, err := env.app.VerifyEmail(ctx, evt.Token)
	if err != nil {
		t.Fatalf("verify email: %v", err)
	}
	if !verified.EmailVerified {
		t.Fatalf("expected verified user")
	}
	if _, err := env.app.VerifyEmail(ctx, evt.Token); !errors.Is(err, ErrInvalidVerification) {
		t.Fatalf("expected single-use token, got %v", err)
	}
	if _, _, err := env.app.SignIn(ctx, "ria@example.com", testPassword, domain.RoleUser); err != nil {
		t.Fatalf("sign in after verify: %v", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	cases := []struct {
		name string
		in   SignUpInput
		want error
	}{
		{"missing email", SignUpInput{Password: testPassword}, ErrEmailAndPasswordRequired},
		{"bad role", SignUpInput{Email: "a@example.com", Password: testPassword, Role: "admin"}, ErrInvalidRole},
		{"weak password", SignUpInput{Email: "a@example.com", Password: "password"}, auth.ErrPasswordTooShort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.app.SignUp(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := env.app.SignUp(ctx, SignUpInput{Email: "dup@example.com", Password: testPassword}); err != nil {
		t.Fatalf("first sign up: %v", err)
	}
	if _, err := env.app.SignUp(ctx, SignUpInput{Email: "DUP@example.com", Password: testPassword}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}
}

func TestSignInRejectsWrongPasswordWithoutLeakingAccount(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	env.signedIn(t, "kai@example.com", "kai", domain.RoleUser)

	if _, _, err := env.app.SignIn(ctx, "kai@example.com", "Wr0ng!Password", domain.RoleUser); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, err := env.app.SignIn(ctx, "nobody@example.com", testPassword, domain.RoleUser); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
}

func TestOwnerSigningInThroughUserPortalIsRejected(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	if _, err := env.app.SignUp(ctx, SignUpInput{Email: "owner@example.com", Password: testPassword, Role: "owner"}); err != nil {
		t.Fatalf("sign up owner: %v", err)
	}

	_, tokens, err := env.app.SignIn(ctx, "owner@example.com", testPassword, domain.RoleUser)
	if !errors.Is(err, session.ErrRoleMismatch) {
		t.Fatalf("expected role mismatch, got %v", err)
	}
	if tokens.AccessToken != "" || tokens.RefreshToken != "" {
		t.Fatalf("mismatched sign in must not hand out tokens: %+v", tokens)
	}

	user, tokens, err := env.app.SignIn(ctx, "owner@example.com", testPassword, domain.RoleOwner)
	if err != nil {
		t.Fatalf("owner portal sign in: %v", err)
	}
	if user.Role != domain.RoleOwner || tokens.AccessToken == "" {
		t.Fatalf("unexpected owner sign in: %+v %+v", user, tokens)
	}
}

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	if _, err := env.app.SignUp(ctx, SignUpInput{Email: "mia@example.com", Password: testPassword}); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	_, first, err := env.app.SignIn(ctx, "mia@example.com", testPassword, domain.RoleUser)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	_, second, err := env.app.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken || second.AccessToken == "" {
		t.Fatalf("expected rotated tokens")
	}
	if _, _, err := env.app.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected replay rejection, got %v", err)
	}
	if _, _, err := env.app.Refresh(ctx, ""); !errors.Is(err, ErrRefreshTokenRequired) {
		t.Fatalf("expected refresh token required, got %v", err)
	}
}

func TestSignOutRevokesAccessToken(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	if _, err := env.app.SignUp(ctx, SignUpInput{Email: "leo@example.com", Password: testPassword}); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	_, tokens, err := env.app.SignIn(ctx, "leo@example.com", testPassword, domain.RoleUser)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	p, ok := env.app.Authenticate(ctx, tokens.AccessToken)
	if !ok {
		t.Fatalf("expected valid session")
	}

	sub, err := env.app.SubscribeSession(ctx, p)
	if err != nil {
		t.Fatalf("subscribe session: %v", err)
	}
	defer sub.Close()

	if err := env.app.SignOut(ctx, p, tokens.AccessToken, tokens.RefreshToken); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, ok := env.app.Authenticate(ctx, tokens.AccessToken); ok {
		t.Fatalf("expected revoked access token")
	}
	if _, _, err := env.app.Refresh(ctx, tokens.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected revoked refresh token, got %v", err)
	}

	select {
	case evt := <-sub.C():
		if evt.Type != realtime.EventSession {
			t.Fatalf("unexpected event type %q", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected session event")
	}
}

func TestAuthenticateUsesStoredRecord(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	p := env.signedIn(t, "zoe@example.com", "zoe", domain.RoleUser)

	user, _, err := env.store.GetUserByID(ctx, p.User.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	user.Nickname = "zoe-renamed"
	if err := env.store.SaveUser(ctx, user); err != nil {
		t.Fatalf("save user: %v", err)
	}
	_, tokens, err := env.app.SignIn(ctx, "zoe@example.com", testPassword, domain.RoleUser)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	got, ok := env.app.Authenticate(ctx, tokens.AccessToken)
	if !ok || got.Identity.Nickname != "zoe-renamed" || got.Identity.Role != domain.RoleUser {
		t.Fatalf("unexpected principal: %+v", got)
	}
	if _, ok := env.app.Authenticate(ctx, "not-a-token"); ok {
		t.Fatalf("expected garbage token to fail")
	}
}
