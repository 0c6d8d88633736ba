package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"taskmaster/internal/feed"
	"taskmaster/internal/handler"
	"taskmaster/internal/httpserver"
	"taskmaster/internal/reminder"
	"taskmaster/internal/repository"
	"taskmaster/pkg/config"
	"taskmaster/pkg/db"
	"taskmaster/pkg/logger"
	"taskmaster/pkg/mq"
	"taskmaster/pkg/redisclient"
)

func main() {
	// Load config
	cfg := config.Load()

	log := logger.New(cfg.Log)
	defer log.Sync()

	ctx := context.Background()

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	if err := repository.InitSchema(ctx, dbConn); err != nil {
		log.Fatal("schema initialization failed", zap.Error(err))
	}

	// Init Redis
	rdb := redisclient.New(cfg.Redis)
	defer rdb.Close()

	// Init RabbitMQ publisher for reminder events
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Init repositories
	taskRepo := repository.NewTaskRepository(dbConn, log)
	tokenRepo := repository.NewPushTokenRepository(dbConn, log)

	// Change feed over Redis pub/sub
	changePub := feed.NewPublisher(rdb, log)
	changeSub := feed.NewSubscriber(rdb, log)

	// Reminder scan, triggered by the internal cron endpoint
	scanner := reminder.NewScanner(taskRepo, publisher, reminder.NewRedisDeduper(rdb), log)

	// Init handlers
	taskHandler := handler.NewTaskHandler(taskRepo, changePub, changeSub, log)
	tokenHandler := handler.NewPushTokenHandler(tokenRepo, log)
	reminderHandler := handler.NewReminderHandler(scanner, cfg.Cron.Secret, log)

	// Router
	router := httpserver.NewRouter(taskHandler, tokenHandler, reminderHandler, cfg.JWT.Secret, log)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("API server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server start failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	log.Info("API server stopped")
}
