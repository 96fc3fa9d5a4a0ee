package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"turfhub/pkg/ai"
	"turfhub/pkg/domain"
	"turfhub/pkg/events"
	"turfhub/pkg/queue"
	"turfhub/pkg/realtime"
	"turfhub/pkg/session"
	"turfhub/pkg/storage"
	"turfhub/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	// Redis backs revocation, refresh and verification tokens, realtime fan-out
	// and booking expiry. When nil, in-memory versions are used.
	Redis *redis.Client

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTLeeway   time.Duration

	SessionTTL      time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration
	// PaymentWindow is how long a booking may stay pending before it expires.
	PaymentWindow time.Duration
	// SkipEmailVerification marks new accounts verified at sign-up.
	SkipEmailVerification bool

	QREndpoint string

	AIBaseURL string
	AIAPIKey  string
	AIModel   string

	Minio storage.MinioConfig

	RabbitURL      string
	EventsExchange string

	// Injected collaborators; nil means build from the settings above.
	Store         store.Store
	Sessions      store.SessionStore
	RefreshTokens store.RefreshTokenStore
	Verifications store.VerificationStore
	Broker        realtime.Broker
	Events        events.Publisher
	Images        storage.ImageStore
	Generator     ai.TextGenerator
	Expiry        Expirer
}

// Expirer schedules pending bookings for expiry.
type Expirer interface {
	Schedule(ctx context.Context, bookingID string, at time.Time) error
	Cancel(ctx context.Context, bookingID string) error
}

// App is the marketplace core: auth provider, row store access with role
// enforcement, realtime fan-out and the assistant.
type App struct {
	store         store.Store
	sessions      store.SessionStore
	refreshTokens store.RefreshTokenStore
	verifications store.VerificationStore
	broker        realtime.Broker
	events        events.Publisher
	images        storage.ImageStore
	generator     ai.TextGenerator
	expiry        Expirer
	expiryQueue   *queue.ExpiryQueue

	refreshTTL      time.Duration
	verificationTTL time.Duration
	paymentWindow   time.Duration
	skipVerify      bool
	qrEndpoint      string

	closers []func() error
	now     func() time.Time
}

// New constructs the application, wiring every collaborator not injected through cfg.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.VerificationTTL == 0 {
		cfg.VerificationTTL = 24 * time.Hour
	}
	if cfg.PaymentWindow == 0 {
		cfg.PaymentWindow = 30 * time.Minute
	}
	a := &App{
		refreshTTL:      cfg.RefreshTTL,
		verificationTTL: cfg.VerificationTTL,
		paymentWindow:   cfg.PaymentWindow,
		skipVerify:      cfg.SkipEmailVerification,
		qrEndpoint:      cfg.QREndpoint,
		now:             time.Now,
	}

	a.store = cfg.Store
	if a.store == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		gs, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		a.store = gs
		a.closers = append(a.closers, gs.Close)
	}

	a.sessions = cfg.Sessions
	if a.sessions == nil {
		var revoker store.TokenRevoker = store.NewMemoryTokenRevoker()
		if cfg.Redis != nil {
			revoker = store.NewRedisTokenRevoker(cfg.Redis)
		}
		js, err := store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL, revoker, store.JWTOptions{
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			Leeway:   cfg.JWTLeeway,
		})
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		a.sessions = js
	}

	a.refreshTokens = cfg.RefreshTokens
	if a.refreshTokens == nil {
		if cfg.Redis != nil {
			a.refreshTokens = store.NewRedisRefreshTokenStore(cfg.Redis)
		} else {
			a.refreshTokens = store.NewMemoryRefreshTokenStore()
		}
	}

	a.verifications = cfg.Verifications
	if a.verifications == nil {
		if cfg.Redis != nil {
			a.verifications = store.NewRedisVerificationStore(cfg.Redis)
		} else {
			a.verifications = store.NewMemoryVerificationStore()
		}
	}

	a.broker = cfg.Broker
	if a.broker == nil {
		if cfg.Redis != nil {
			a.broker = realtime.NewRedisBroker(cfg.Redis)
		} else {
			a.broker = realtime.NewMemoryBroker()
		}
	}

	a.events = cfg.Events
	if a.events == nil && strings.TrimSpace(cfg.RabbitURL) != "" {
		exchange := cfg.EventsExchange
		if exchange == "" {
			exchange = events.DefaultExchange
		}
		pub, err := events.NewAMQPPublisher(cfg.RabbitURL, exchange)
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		a.events = pub
		a.closers = append(a.closers, pub.Close)
	}

	a.images = cfg.Images
	if a.images == nil && strings.TrimSpace(cfg.Minio.Endpoint) != "" {
		ms, err := storage.NewMinioStore(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
		a.images = ms
	}

	a.generator = cfg.Generator
	if a.generator == nil && strings.TrimSpace(cfg.AIModel) != "" {
		a.generator = ai.NewOpenAICompatGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)
	}

	a.expiry = cfg.Expiry
	if a.expiry == nil && cfg.Redis != nil {
		q, err := queue.NewExpiryQueue(cfg.Redis, queue.ExpiryQueueConfig{})
		if err != nil {
			return nil, fmt.Errorf("init expiry queue: %w", err)
		}
		a.expiry = q
		a.expiryQueue = q
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.EnsureGlobalRoom(ctx); err != nil {
		return nil, fmt.Errorf("ensure global room: %w", err)
	}
	return a, nil
}

// RunBackground runs the booking expiry worker until ctx ends. It returns at
// once when no expiry queue is configured.
func (a *App) RunBackground(ctx context.Context) error {
	if a.expiryQueue == nil {
		return nil
	}
	return a.expiryQueue.Run(ctx, a.ExpireBooking)
}

// Close releases database and broker connections.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Principal is the authenticated caller. Its identity is derived from the
// stored user record, never from client-supplied metadata.
type Principal struct {
	User     domain.User
	Identity session.Identity
}

// GuestPrincipal is used for unauthenticated requests.
func GuestPrincipal() Principal {
	return Principal{Identity: session.Guest()}
}

func principalFor(u domain.User) Principal {
	id, ok := session.Resolve(&session.Session{UserID: u.ID, Email: u.Email, Metadata: session.Metadata(u)})
	if !ok {
		return GuestPrincipal()
	}
	return Principal{User: u, Identity: id}
}

func (a *App) publishEvent(ctx context.Context, key string, v any) {
	if a.events == nil {
		slog.Debug("event publishing disabled", "key", key)
		return
	}
	if err := a.events.Publish(ctx, key, v); err != nil {
		slog.Warn("publish event failed", "key", key, "err", err)
	}
}

func (a *App) publishRealtime(ctx context.Context, topic, typ string, data any) {
	env, err := realtime.NewEnvelope(typ, data)
	if err != nil {
		slog.Warn("encode realtime event failed", "topic", topic, "err", err)
		return
	}
	if err := a.broker.Publish(ctx, topic, env); err != nil {
		slog.Warn("publish realtime event failed", "topic", topic, "err", err)
	}
}
