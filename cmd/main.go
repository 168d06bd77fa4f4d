package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/openlaps/apexfantasy/config"
	"github.com/openlaps/apexfantasy/db"
	"github.com/openlaps/apexfantasy/handlers"
	"github.com/openlaps/apexfantasy/live"
	api "github.com/openlaps/apexfantasy/routes"
	"github.com/openlaps/apexfantasy/seasons"
	"github.com/openlaps/apexfantasy/services"
	"github.com/openlaps/apexfantasy/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Загрузчик портретов (Cloudflare R2); без настроенных ключей
	// приложение работает, но загрузка изображений отключена.
	var uploader storage.FileUploader
	if cfg.R2AccountID != "" {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 storage not configured, portrait uploads disabled")
	}

	// Реестр сезонных хранилищ
	registry := seasons.NewRegistry(dbConn)
	copier := seasons.NewCopier(registry, cfg.OpeningBudget, logger)

	// WebSocket hub для оповещений о пересчёте стоимостей
	liveHub := live.NewHub(logger)
	go liveHub.Run()
	logger.Info("live hub started")

	// Инициализация сервисов
	authService := services.NewAuthService(registry, []byte(cfg.JWTSecretKey), cfg.TokenTTL, cfg.OpeningBudget, logger)
	ledger := services.NewBudgetLedger(registry)
	driverService := services.NewDriverService(registry, uploader, logger)
	managerService := services.NewManagerService(registry, logger)
	raceService := services.NewRaceService(registry, logger)
	rosterService := services.NewRosterService(registry, ledger, logger)
	settlementService := services.NewSettlementService(registry, liveHub, logger)
	logger.Info("services initialized")

	// Инициализация обработчиков HTTP
	authHandler := handlers.NewAuthHandler(authService, logger)
	managerHandler := handlers.NewManagerHandler(managerService, logger)
	driverHandler := handlers.NewDriverHandler(driverService, logger)
	raceHandler := handlers.NewRaceHandler(raceService, logger)
	rosterHandler := handlers.NewRosterHandler(rosterService, logger)
	settlementHandler := handlers.NewSettlementHandler(settlementService, logger)
	seasonHandler := handlers.NewSeasonHandler(registry, copier, logger)
	webSocketHandler := handlers.NewWebSocketHandler(liveHub, logger)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		authHandler,
		managerHandler,
		driverHandler,
		raceHandler,
		rosterHandler,
		settlementHandler,
		seasonHandler,
		webSocketHandler,
		authService,
	)
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
