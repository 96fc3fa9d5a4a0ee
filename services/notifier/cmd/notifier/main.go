package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"turfhub/internal/util"
	"turfhub/pkg/events"
	"turfhub/services/notifier/internal/config"
	"turfhub/services/notifier/internal/worker"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	exchange := cfg.EventsExchange
	if exchange == "" {
		exchange = events.DefaultExchange
	}
	consumer, err := events.NewConsumer(events.ConsumerConfig{
		URL:                cfg.RabbitURL,
		Exchange:           exchange,
		Queue:              cfg.Queue,
		Bindings:           worker.Bindings,
		Prefetch:           cfg.Prefetch,
		DeadLetterExchange: cfg.DeadLetterExchange,
	})
	if err != nil {
		log.Fatalf("failed to init consumer: %v", err)
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deliveries, err := consumer.Deliveries(ctx, "notifier-"+util.NewID())
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	w := worker.New(worker.Config{
		Notifier:  worker.NewLogNotifier(logger),
		VerifyURL: cfg.VerifyURL,
	})
	slog.Info("notifier consuming", "queue", cfg.Queue, "exchange", exchange)
	if err := w.Run(ctx, deliveries); err != nil {
		logger.Error("notifier stopped", "err", err)
	}
}
