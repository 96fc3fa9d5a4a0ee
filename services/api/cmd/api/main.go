package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"turfhub/internal/util"
	"turfhub/pkg/storage"
	"turfhub/services/api/internal/app"
	"turfhub/services/api/internal/config"
	"turfhub/services/api/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	durations, err := parseDurations(cfg)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	appCore, err := app.New(app.Config{
		DatabaseURL:           cfg.DatabaseURL,
		Redis:                 redisClient,
		JWTSecret:             cfg.JWTSecret,
		JWTIssuer:             cfg.JWTIssuer,
		JWTAudience:           cfg.JWTAudience,
		JWTLeeway:             durations.jwtLeeway,
		SessionTTL:            durations.session,
		RefreshTTL:            durations.refresh,
		VerificationTTL:       durations.verification,
		PaymentWindow:         durations.payment,
		SkipEmailVerification: cfg.SkipEmailVerification,
		QREndpoint:            cfg.QREndpoint,
		AIBaseURL:             cfg.AIBaseURL,
		AIAPIKey:              cfg.AIAPIKey,
		AIModel:               cfg.AIModel,
		Minio: storage.MinioConfig{
			Endpoint:      cfg.MinioEndpoint,
			AccessKey:     cfg.MinioAccessKey,
			SecretKey:     cfg.MinioSecretKey,
			Bucket:        cfg.MinioBucket,
			UseSSL:        cfg.MinioUseSSL,
			PublicBaseURL: cfg.MinioPublicBaseURL,
		},
		RabbitURL:      cfg.RabbitURL,
		EventsExchange: cfg.EventsExchange,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer appCore.Close()

	httpServer, err := server.New(server.Config{
		App:                      appCore,
		Redis:                    redisClient,
		TrustedProxies:           cfg.TrustedProxies,
		SignupRateLimitPerMinute: cfg.SignupRateLimitPerMinute,
		LoginRateLimitPerMinute:  cfg.LoginRateLimitPerMinute,
		JoinRateLimitPerMinute:   cfg.JoinRateLimitPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return appCore.RunBackground(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", "err", err)
	}
	slog.Info("server stopped")
}

type parsedDurations struct {
	jwtLeeway    time.Duration
	session      time.Duration
	refresh      time.Duration
	verification time.Duration
	payment      time.Duration
}

func parseDurations(cfg config.FileConfig) (parsedDurations, error) {
	var d parsedDurations
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"jwtLeeway", cfg.JWTLeeway, &d.jwtLeeway},
		{"sessionTTL", cfg.SessionTTL, &d.session},
		{"refreshTTL", cfg.RefreshTTL, &d.refresh},
		{"verificationTTL", cfg.VerificationTTL, &d.verification},
		{"paymentWindow", cfg.PaymentWindow, &d.payment},
	}
	for _, f := range fields {
		v, err := config.ParseDuration(f.name, f.raw)
		if err != nil {
			return parsedDurations{}, err
		}
		*f.dst = v
	}
	return d, nil
}
