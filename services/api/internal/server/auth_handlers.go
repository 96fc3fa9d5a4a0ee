package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"turfhub/pkg/domain"
	"turfhub/pkg/session"
	"turfhub/pkg/view"
	"turfhub/services/api/internal/app"
)

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// Portal is the role the client signs in as: "user" or "owner".
	Portal string `json:"portal"`
}

type authResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	User         domain.User `json:"user"`
	View         string      `json:"view"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type signoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

type resendRequest struct {
	Email string `json:"email"`
}

func newAuthResponse(user domain.User, tokens app.Tokens) authResponse {
	id := session.Identity{UserID: user.ID, Nickname: user.Nickname, Role: user.Role}
	return authResponse{
		Token:        tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt.UTC(),
		User:         user,
		View:         view.Dashboard(id).String(),
	}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		s.audit(r, "api.signup", "rate_limited")
		return
	}
	var req app.SignUpInput
	if err := decodeJSON(r, &req); err != nil {
		s.audit(r, "api.signup", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.app.SignUp(r.Context(), req)
	if err != nil {
		s.audit(r, "api.signup", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.signup", "success", "user_id", user.ID, "role", string(user.Role))
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":                 user,
		"verificationRequired": !user.EmailVerified,
	})
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many signin attempts") {
		s.audit(r, "api.signin", "rate_limited")
		return
	}
	var req signinRequest
	if err := decodeJSON(r, &req); err != nil {
		s.audit(r, "api.signin", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	portal, ok := parsePortal(req.Portal)
	if !ok {
		writeError(w, http.StatusBadRequest, "portal must be user or owner")
		return
	}
	user, tokens, err := s.app.SignIn(r.Context(), req.Email, req.Password, portal)
	if err != nil {
		s.audit(r, "api.signin", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.signin", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, newAuthResponse(user, tokens))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many refresh attempts") {
		s.audit(r, "api.refresh", "rate_limited")
		return
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		s.audit(r, "api.refresh", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := s.app.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.audit(r, "api.refresh", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.refresh", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, newAuthResponse(user, tokens))
}

// handleVerify accepts the token as JSON or as the ?token= of an email link.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var token string
	switch r.Method {
	case http.MethodGet:
		token = r.URL.Query().Get("token")
	case http.MethodPost:
		var req verifyRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		token = req.Token
	default:
		methodNotAllowed(w)
		return
	}
	user, err := s.app.VerifyEmail(r.Context(), token)
	if err != nil {
		s.audit(r, "api.verify_email", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.verify_email", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many verification requests") {
		s.audit(r, "api.resend_verification", "rate_limited")
		return
	}
	var req resendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.ResendVerification(r.Context(), req.Email); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSignout(w http.ResponseWriter, r *http.Request, p app.Principal) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req signoutRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.audit(r, "api.signout", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, _ := requestToken(r)
	if err := s.app.SignOut(r.Context(), p, token, req.RefreshToken); err != nil {
		s.audit(r, "api.signout", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.signout", "success", "user_id", p.User.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, p app.Principal) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	state, _, err := view.Transition(view.State{}, view.SessionStarted{Identity: p.Identity})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":     p.User,
		"identity": p.Identity,
		"view":     state.View.String(),
	})
}

func (s *Server) handleSessionStream(w http.ResponseWriter, r *http.Request, p app.Principal) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	sub, err := s.app.SubscribeSession(r.Context(), p)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	streamEvents(w, r, sub)
}

// parsePortal defaults an empty portal to the user portal.
func parsePortal(raw string) (domain.Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(domain.RoleUser):
		return domain.RoleUser, true
	case string(domain.RoleOwner):
		return domain.RoleOwner, true
	default:
		return "", false
	}
}
