package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"zeiterfassung-backend/config"
	"zeiterfassung-backend/internal/api"
	"zeiterfassung-backend/internal/attendance"
	"zeiterfassung-backend/internal/clock"
	"zeiterfassung-backend/internal/correction"
	"zeiterfassung-backend/internal/db"
	"zeiterfassung-backend/internal/logging"
	"zeiterfassung-backend/internal/notification"
	"zeiterfassung-backend/internal/rates"
	"zeiterfassung-backend/internal/reconcile"
	"zeiterfassung-backend/internal/schedule"
	"zeiterfassung-backend/internal/store"
	"zeiterfassung-backend/internal/sweep"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to read .env: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	logger.WithField("path", configPath).Info("configuration loaded")

	if cfg.Server.JWTSecret == "" {
		logger.Fatal("server.jwt_secret (JWT_SECRET) must be configured")
	}
	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := api.RegisterValidators(); err != nil {
		logger.WithError(err).Fatal("failed to register validators")
	}

	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}
	logger.WithField("driver", cfg.Database.Driver).Info("database initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	clk := clock.Real{Location: cfg.Location}

	pool := notification.NewWorkerPool(cfg.Notification.PoolSize, logger, notification.Sinks(cfg.Notification, appStore, logger)...)
	pool.Start(ctx)

	plan := schedule.NewService(appStore, clk, logger)
	engine := reconcile.NewEngine(appStore, plan, clk, cfg.Reconcile, nil, pool, logger)

	handler := api.NewHandler(api.Services{
		Store:       appStore,
		Clock:       clk,
		Location:    cfg.Location,
		Recorder:    attendance.NewRecorder(appStore, clk, cfg.Attendance, logger),
		Schedule:    plan,
		Engine:      engine,
		Corrections: correction.NewWorkflow(appStore, clk, cfg.Location, logger),
		Rates:       rates.NewResolver(appStore, clk, logger),
		VAPIDKey:    cfg.Notification.Push.PublicKey,
	}, logger)

	sweeper := sweep.NewService(engine, clk, cfg.Reconcile, logger)
	go sweeper.Run(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server ListenAndServe")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server Shutdown")
	}
	cancel()

	logger.Info("server gracefully stopped")
}
