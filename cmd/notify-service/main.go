package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/trialscout/platform/pkg/common/config"
	"github.com/trialscout/platform/pkg/common/database"
	"github.com/trialscout/platform/pkg/common/kafka"
	"github.com/trialscout/platform/pkg/common/logger"
	"github.com/trialscout/platform/pkg/matching"
	"github.com/trialscout/platform/pkg/notify"
)

func main() {
	logger.Init("notify-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer database.ClosePostgres()

	repo := matching.NewRepository(db)
	service := matching.NewService(nil, repo, nil, nil)

	consumer := kafka.NewConsumer(cfg.MatchEventTopic, "notify-service")
	defer consumer.Close()

	dispatcher := notify.NewDispatcher(service, notify.LogSender{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Log.WithField("topic", cfg.MatchEventTopic).Info("Notify Service started")
		if err := dispatcher.Run(ctx, consumer); err != nil && err != context.Canceled {
			logger.Log.WithError(err).Fatal("Consumer error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Notify Service...")
	cancel()

	logger.Log.Info("Notify Service stopped")
}
