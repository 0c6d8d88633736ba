package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"taskmaster/internal/reminder"
	"taskmaster/internal/repository"
	"taskmaster/pkg/config"
	"taskmaster/pkg/db"
	"taskmaster/pkg/logger"
	"taskmaster/pkg/mq"
	"taskmaster/pkg/redisclient"
)

const scanInterval = time.Minute

func main() {
	// Load config
	cfg := config.Load()

	log := logger.New(cfg.Log)
	defer log.Sync()

	log.Info("Starting reminder scanner...")

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Redis for dedup marks
	rdb := redisclient.New(cfg.Redis)
	defer rdb.Close()

	// Init RabbitMQ publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	taskRepo := repository.NewTaskRepository(dbConn, log)
	scanner := reminder.NewScanner(taskRepo, publisher, reminder.NewRedisDeduper(rdb), log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	run := func() {
		if _, err := scanner.Run(ctx); err != nil {
			log.Error("reminder scan failed", zap.Error(err))
		}
	}

	// One scan at startup, then one per tick.
	run()

	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			run()
		case <-quit:
			log.Info("Reminder scanner stopped")
			return
		}
	}
}
