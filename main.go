package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"pulsewire/internal/app"
	"pulsewire/internal/config"
	"pulsewire/internal/logger"
)

func main() {
	// Structured logger with correlation id propagation
	jsonHandler := slog.NewJSONHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(logger.NewContextHandler(jsonHandler)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	deps, err := app.Bootstrap(cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()
	defer deps.FeedCache.Close()
	slog.Info("migrations applied, dependencies ready")

	application, err := app.New(cfg, deps.DB, deps.NSQProducer, deps.FeedCache)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}

	// Ingestion run consumer. Concurrency stays at 1 so runs never race
	// on cluster stats.
	consumer, err := nsq.NewConsumer(config.TopicPipelineIngest, config.ChannelBackend, nsq.NewConfig())
	if err != nil {
		slog.Error("failed to create NSQ consumer", "error", err)
	} else {
		consumer.AddConcurrentHandlers(nsq.HandlerFunc(func(m *nsq.Message) error {
			return application.IngestConsumer.HandleMessage(m)
		}), 1)
		if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
			slog.Error("failed to connect to NSQLookupd, admin reingest will run inline", "error", err)
		} else {
			slog.Info("NSQ ingest consumer connected", "topic", config.TopicPipelineIngest)
		}
		defer consumer.Stop()
	}
	defer deps.NSQProducer.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
