package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/campushub/material-service/audit"
	"github.com/campushub/material-service/auth"
	"github.com/campushub/material-service/config"
	"github.com/campushub/material-service/database"
	"github.com/campushub/material-service/handler"
	"github.com/campushub/material-service/models"
	"github.com/campushub/material-service/pkg/metrics"
	"github.com/campushub/material-service/repository"
	"github.com/campushub/material-service/router"
	"github.com/campushub/material-service/service"
	"github.com/campushub/material-service/storage"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func autoMigrate(db *gorm.DB, log *logrus.Logger) {
	if err := db.AutoMigrate(&models.Material{}, &models.AccessRecord{}); err != nil {
		log.Fatalf("auto migrate failed: %v", err)
	}
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.LoadConfig()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	autoMigrate(db, log)

	materialRepo := repository.NewMaterialRepository(db)
	accessRepo := repository.NewAccessRecordRepository(db)

	store, err := storage.NewMinioStore(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to create object store client: %v", err)
	}
	buckets := storage.NewBucketTable(cfg.MinIO)
	if err := store.EnsureBuckets(context.Background(), buckets.All()); err != nil {
		log.Fatalf("failed to ensure buckets: %v", err)
	}
	broker := storage.NewBroker(store, cfg.Upload.DefaultTTL, cfg.Upload.MaxTTL)

	var publisher audit.Publisher
	if cfg.Kafka.Brokers != "" {
		publisher = audit.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	} else {
		log.Warn("kafka publisher disabled (missing config)")
	}
	auditor := audit.NewAuditor(accessRepo, publisher, log)

	materials := service.NewMaterialService(materialRepo, store, broker, buckets, auditor, log)
	dispatcher := service.NewDispatcher(materialRepo, store, broker, auditor, log)
	sweeper := service.NewSweeper(materialRepo, auditor, cfg.Upload.OrphanAfter, cfg.Upload.SweepEvery, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go sweeper.Run(ctx)

	metrics.StartMetricsServer(cfg.MetricsPort)
	log.Infof("metrics server listening on %s", cfg.MetricsPort)

	validator := auth.NewJWTValidator(cfg.Auth.JWTSecret)
	materialHandler := handler.NewMaterialHandler(materials, dispatcher, accessRepo, log)
	fileHandler := handler.NewFileHandler(dispatcher, log)

	r := router.Setup(validator, materialHandler, fileHandler)
	log.Infof("material service listening on %s", cfg.HTTPPort)
	if err := r.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
