package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/scrimverse-engine/config"
	"github.com/Dosada05/scrimverse-engine/db"
	"github.com/Dosada05/scrimverse-engine/grouping"
	"github.com/Dosada05/scrimverse-engine/handlers"
	"github.com/Dosada05/scrimverse-engine/models"
	"github.com/Dosada05/scrimverse-engine/repositories"
	api "github.com/Dosada05/scrimverse-engine/routes"
	"github.com/Dosada05/scrimverse-engine/services"
	"github.com/Dosada05/scrimverse-engine/storage"
	"github.com/go-co-op/gocron/v2"
	_ "github.com/lib/pq"
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

	// Подключение к Redis (опционально: без него лидерборд работает без кэша)
	redisClient, err := db.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		logger.Info("redis connection established")
	}

	// Инициализация загрузчика снапшотов (Cloudflare R2, опционально)
	var uploader storage.FileUploader
	if cfg.R2Configured() {
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
	}

	// Инициализация WebSocket Hub
	wsHub := grouping.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	registrationRepo := repositories.NewPostgresRegistrationRepository(dbConn)
	groupRepo := repositories.NewPostgresGroupRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	scoreRepo := repositories.NewPostgresScoreRepository(dbConn)
	statisticsRepo := repositories.NewPostgresStatisticsRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	clock := services.NewRealClock()
	policy := models.MatchPolicy{
		MinLiveDuration: cfg.MatchMinLiveDuration,
		CancelWindow:    cfg.MatchCancelWindow,
		ScoreEditGrace:  cfg.MatchScoreEditGrace,
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	leaderboardService := services.NewLeaderboardService(
		dbConn,
		tournamentRepo,
		registrationRepo,
		scoreRepo,
		statisticsRepo,
		teamRepo,
		redisClient,
		uploader,
		wsHub,
		logger,
		clock,
	)
	tournamentService := services.NewTournamentService(
		dbConn,
		tournamentRepo,
		logger,
		clock,
		leaderboardService,
	)
	groupService := services.NewGroupService(
		dbConn,
		tournamentRepo,
		registrationRepo,
		groupRepo,
		matchRepo,
		scoreRepo,
		wsHub,
		logger,
		rng,
	)
	matchService := services.NewMatchService(
		dbConn,
		tournamentRepo,
		registrationRepo,
		groupRepo,
		matchRepo,
		scoreRepo,
		wsHub,
		logger,
		clock,
		policy,
	)
	roundService := services.NewRoundService(
		dbConn,
		tournamentRepo,
		registrationRepo,
		groupRepo,
		scoreRepo,
		wsHub,
		logger,
		leaderboardService,
	)
	logger.Info("Services initialized")

	// Планировщик фоновых задач: автоперевод статусов по датам
	// и периодическая пересборка лидерборда.
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		logger.Error("failed to create scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.StatusUpdateInterval),
		gocron.NewTask(func() {
			if err := tournamentService.RunStatusUpdates(context.Background()); err != nil {
				logger.Error("scheduler: status update run failed", slog.Any("error", err))
			}
		}),
	)
	if err != nil {
		logger.Error("failed to register status update job", slog.Any("error", err))
		os.Exit(1)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.LeaderboardRebuildInterval),
		gocron.NewTask(func() {
			if err := leaderboardService.RebuildAll(context.Background()); err != nil {
				logger.Error("scheduler: leaderboard rebuild failed", slog.Any("error", err))
			}
		}),
	)
	if err != nil {
		logger.Error("failed to register leaderboard rebuild job", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Error("failed to shut down scheduler", slog.Any("error", err))
		}
	}()
	logger.Info("background scheduler started",
		slog.Duration("status_interval", cfg.StatusUpdateInterval),
		slog.Duration("leaderboard_interval", cfg.LeaderboardRebuildInterval),
	)

	// Инициализация обработчиков HTTP
	tournamentHandler := handlers.NewTournamentHandler(tournamentService, roundService)
	roundHandler := handlers.NewRoundHandler(groupService, roundService)
	matchHandler := handlers.NewMatchHandler(matchService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, logger)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := api.SetupRoutes(
		tournamentHandler,
		roundHandler,
		matchHandler,
		leaderboardHandler,
		webSocketHandler,
		[]byte(cfg.JWTSecretKey),
	)
	logger.Info("Routes configured")

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
		} else {
			logger.Info("server stopped gracefully")
		}
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
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
