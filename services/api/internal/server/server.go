package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"turfhub/internal/ratelimit"
	"turfhub/internal/util"
	"turfhub/services/api/internal/app"
	"turfhub/services/api/internal/security"
)

const maxJSONBody = 1 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// Redis backs the rate limiters. When nil, limits are kept in process.
	Redis                    *redis.Client
	TrustedProxies           []string
	SignupRateLimitPerMinute int
	LoginRateLimitPerMinute  int
	JoinRateLimitPerMinute   int
}

// Server exposes HTTP endpoints for the marketplace.
type Server struct {
	app           *app.App
	mux           *http.ServeMux
	trusted       *util.TrustedProxies
	signupLimiter ratelimit.Limiter
	loginLimiter  ratelimit.Limiter
	joinLimiter   ratelimit.Limiter
	alerter       *security.AuditAlerter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	signupLimit := cfg.SignupRateLimitPerMinute
	if signupLimit <= 0 {
		signupLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	joinLimit := cfg.JoinRateLimitPerMinute
	if joinLimit <= 0 {
		joinLimit = 10
	}
	rateWindow := time.Minute
	newLimiter := func(name string, limit int) (ratelimit.Limiter, error) {
		if cfg.Redis == nil {
			return ratelimit.NewMemoryLimiter(limit, rateWindow), nil
		}
		prefix := "turfhub:api:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.Redis, prefix, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	signupLimiter, err := newLimiter("signup", signupLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	joinLimiter, err := newLimiter("join", joinLimit)
	if err != nil {
		return nil, err
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:           cfg.App,
		mux:           http.NewServeMux(),
		trusted:       trusted,
		signupLimiter: signupLimiter,
		loginLimiter:  loginLimiter,
		joinLimiter:   joinLimiter,
		alerter:       security.NewAuditAlerter(cfg.Redis, "turfhub:api:alerts"),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("api", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/auth/signin", s.handleSignin)
	s.mux.HandleFunc("/auth/refresh", s.handleRefresh)
	s.mux.HandleFunc("/auth/verify", s.handleVerify)
	s.mux.HandleFunc("/auth/resend", s.handleResend)
	s.mux.Handle("/auth/signout", s.authenticated(s.handleSignout))
	s.mux.Handle("/auth/session", s.authenticated(s.handleSession))
	s.mux.Handle("/auth/session/stream", s.authenticated(s.handleSessionStream))

	// venues
	s.mux.HandleFunc("/hubs", s.handleHubs)
	s.mux.Handle("/hubs/mine", s.authenticated(s.handleMyHubs))
	s.mux.HandleFunc("/hubs/", s.handleHubByID)

	// bookings
	s.mux.Handle("/bookings", s.authenticated(s.handleBookings))
	s.mux.Handle("/bookings/", s.authenticated(s.handleBookingAction))

	// community
	s.mux.HandleFunc("/rooms", s.handleRooms)
	s.mux.Handle("/rooms/join", s.authenticated(s.handleJoinRoom))
	s.mux.HandleFunc("/rooms/", s.handleRoomByID)

	s.mux.HandleFunc("/assistant", s.handleAssistant)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, app.Principal)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := requestToken(r)
		if !ok {
			s.audit(r, "api.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		p, ok := s.app.Authenticate(r.Context(), token)
		if !ok {
			s.audit(r, "api.authorize", "fail", "reason", "invalid_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, p)
	})
}

// principal resolves the caller for routes that guests may use. A missing or
// invalid token browses as guest.
func (s *Server) principal(r *http.Request) app.Principal {
	if r.Header.Get("Authorization") == "" && r.URL.Query().Get("access_token") == "" {
		return app.GuestPrincipal()
	}
	token, ok := requestToken(r)
	if !ok {
		return app.GuestPrincipal()
	}
	p, ok := s.app.Authenticate(r.Context(), token)
	if !ok {
		return app.GuestPrincipal()
	}
	return p
}

// requestToken reads the bearer token, falling back to the access_token query
// parameter for EventSource clients that cannot set headers.
func requestToken(r *http.Request) (string, bool) {
	if r.Header.Get("Authorization") == "" {
		if token := strings.TrimSpace(r.URL.Query().Get("access_token")); token != "" {
			return token, true
		}
	}
	return bearerToken(r)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		slog.Warn("missing bearer prefix", "path", r.URL.Path)
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		slog.Warn("empty bearer token", "path", r.URL.Path)
		return "", false
	}
	return token, true
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(dst)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := util.ClientIP(r, s.trusted)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
		"request_id", util.RequestIDFromContext(r.Context()),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)

	result, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		slog.Warn("security alert counter failed", "event", event, "err", err)
		return
	}
	if result.Triggered {
		slog.Error("security_alert",
			"event", event,
			"outcome", outcome,
			"ip", ip,
			"count", result.Count,
			"threshold", result.Threshold,
			"window", result.Window.String(),
		)
	}
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trusted)
	if limiter.Allow(r.Context(), key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
