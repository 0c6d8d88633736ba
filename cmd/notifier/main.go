package main

import (
	"context"

	"go.uber.org/zap"

	contracts "taskmaster/contracts/mq"
	"taskmaster/internal/notifier"
	"taskmaster/internal/repository"
	"taskmaster/pkg/config"
	"taskmaster/pkg/db"
	"taskmaster/pkg/logger"
	"taskmaster/pkg/mq"
)

func main() {
	// Load config
	cfg := config.Load()

	log := logger.New(cfg.Log)
	defer log.Sync()

	log.Info("Starting notifier service...")

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	tokenRepo := repository.NewPushTokenRepository(dbConn, log)

	// Init FCM client
	fcm, err := notifier.NewFCMClient(context.Background(), cfg.FCM)
	if err != nil {
		log.Fatal("FCM initialization failed", zap.Error(err))
	}

	sender := notifier.NewSender(tokenRepo, fcm, log)

	// Consumer for reminder.due events
	log.Info("Initializing reminder consumer", zap.String("queue", "notifier.reminder.due.q"))
	consumer, err := mq.NewConsumer(cfg.MQ.URL, "notifier.reminder.due.q", contracts.RoutingKeyReminderDue, log)
	if err != nil {
		log.Fatal("failed to init reminder consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(sender.HandleReminderDue)

	log.Info("Notifier ready, consuming reminder events")
	if err := consumer.StartConsuming(); err != nil {
		log.Fatal("reminder consumer failed", zap.Error(err))
	}
}
