package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/Abishake01/0G-Proof-Pass/internal/ai"
	"github.com/Abishake01/0G-Proof-Pass/internal/cache"
	"github.com/Abishake01/0G-Proof-Pass/internal/config"
	"github.com/Abishake01/0G-Proof-Pass/internal/db"
	"github.com/Abishake01/0G-Proof-Pass/internal/events"
	"github.com/Abishake01/0G-Proof-Pass/internal/goroutine"
	httpHandlers "github.com/Abishake01/0G-Proof-Pass/internal/http/handlers"
	"github.com/Abishake01/0G-Proof-Pass/internal/http/middleware"
	httpRouter "github.com/Abishake01/0G-Proof-Pass/internal/http/router"
	"github.com/Abishake01/0G-Proof-Pass/internal/logger"
	"github.com/Abishake01/0G-Proof-Pass/internal/mail"
	"github.com/Abishake01/0G-Proof-Pass/internal/ratelimit"
	"github.com/Abishake01/0G-Proof-Pass/internal/repository"
	"github.com/Abishake01/0G-Proof-Pass/internal/service"
	"github.com/Abishake01/0G-Proof-Pass/internal/storage"
	"github.com/Abishake01/0G-Proof-Pass/internal/ws"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}
	appLog := logger.Component("main")

	healthChecks := make(map[string]httpHandlers.HealthCheck)

	// Redis нужен для общего состояния кодов и лимитов между инстансами.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			appLog.Fatalf("ошибка подключения к redis: %v", err)
		}
		defer safeCloseRedis(redisClient)
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	// Хранилище кодов и лимитер.
	var (
		otpStore service.OTPStore
		limiter  ratelimit.Limiter
	)
	policy := ratelimit.Policy{Window: cfg.OTP.RateLimitWindow, Max: cfg.OTP.RateLimitMax}
	switch cfg.StoreDriver {
	case config.StoreDriverRedis:
		otpStore = repository.NewRedisOTPRepository(redisClient, cfg.OTP.Retention)
		limiter = ratelimit.NewRedisLimiter(redisClient, policy)
	default:
		memStore := repository.NewMemoryOTPRepository(cfg.OTP.Retention)
		memLimiter := ratelimit.NewMemoryLimiter(policy)
		goroutine.SafeGoWithContext(ctx, func(ctx context.Context) { memStore.Run(ctx, sweepInterval) })
		goroutine.SafeGoWithContext(ctx, func(ctx context.Context) { memLimiter.Run(ctx, sweepInterval) })
		otpStore = memStore
		limiter = memLimiter
		appLog.Warn("используется in-memory хранилище кодов, состояние не разделяется между инстансами")
	}

	// Почта.
	var sender mail.Sender
	if cfg.SMTP.Enabled() {
		sender = mail.NewSMTPSender(cfg.SMTP, cfg.OTP.Expiry)
	} else {
		sender = mail.NewLogSender()
		appLog.Warn("SMTP не настроен, коды пишутся в лог")
	}

	// Доменные события.
	var producer events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		kafkaProducer, err := events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			appLog.Fatalf("ошибка настройки kafka: %v", err)
		}
		producer = kafkaProducer
	} else {
		producer = events.NewLogProducer()
	}
	publisher := events.NewPublisher(producer)

	// Postgres опционален: без него оценки и отметки живут в памяти.
	var (
		contributionStore service.ContributionStore
		checkInStore      service.CheckInStore
	)
	if cfg.DatabaseURL != "" {
		dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			appLog.Fatalf("ошибка подключения к базе: %v", err)
		}
		defer safeClose(dbConn)

		migrations, err := db.MigrationsFS(cfg.MigrationsPath)
		if err != nil {
			appLog.Fatalf("ошибка чтения миграций: %v", err)
		}
		if err := db.RunMigrations(ctx, dbConn, migrations); err != nil {
			appLog.Fatalf("ошибка миграций: %v", err)
		}

		contributionStore = repository.NewContributionRepository(dbConn)
		checkInStore = repository.NewCheckInRepository(dbConn)
		healthChecks["database"] = dbConn.PingContext
	} else {
		contributionStore = repository.NewMemoryContributionRepository()
		checkInStore = repository.NewMemoryCheckInRepository()
	}

	contentStorage, err := storage.NewContentStorage(cfg.StoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		appLog.Fatalf("не удалось подготовить файловое хранилище: %v", err)
	}

	// Вебсокеты.
	hub := ws.NewHub(ctx)
	goroutine.SafeGo(hub.Run)

	qrCache := cache.NewMemoryCache()
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) { qrCache.Run(ctx, 5*time.Minute) })

	// Сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.EmailTokenTTL)
	otpService := service.NewOTPService(otpStore, limiter, sender, publisher, cfg.OTP)

	scorers := []service.ContributionScorer{}
	aiClient := ai.NewClient(cfg.AIBaseURL, cfg.AIModel, cfg.AIAPIKey)
	if aiClient.Configured() {
		scorers = append(scorers, ai.NewContributionScorer(aiClient))
	}
	scorers = append(scorers, ai.NewMockScorer())
	computeService := service.NewComputeService(contributionStore, publisher, hub, scorers...)
	checkInService := service.NewCheckInService(checkInStore, publisher, cfg.FrontendURL, qrCache)

	rateStore, err := middleware.NewRateLimitStore(redisClient)
	if err != nil {
		appLog.Fatalf("ошибка настройки rate limit: %v", err)
	}

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Auth:    httpHandlers.NewAuthHandler(otpService, tokenManager),
		Compute: httpHandlers.NewComputeHandler(computeService),
		Storage: httpHandlers.NewStorageHandler(contentStorage),
		CheckIn: httpHandlers.NewCheckInHandler(checkInService),
		Rewards: httpHandlers.NewRewardsHandler(service.NewRewardTable()),
		Health:  httpHandlers.NewHealthHandler(healthChecks),
		WS:      httpHandlers.NewWSHandler(hub, cfg.AllowedOrigins),
	}, tokenManager, rateStore)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			appLog.WithError(err).Error("ошибка остановки http сервера")
		}
	})

	appLog.Infof("HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		appLog.Fatalf("сервер завершился с ошибкой: %v", err)
	}

	// Дожидаемся фоновых публикаций событий.
	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := goroutine.Wait(waitCtx); err != nil {
		appLog.WithError(err).Warn("не все фоновые задачи завершились")
	}
	if err := publisher.Close(); err != nil {
		appLog.WithError(err).Warn("ошибка закрытия producer")
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}

func safeCloseRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		log.Printf("main: ошибка закрытия redis: %v", err)
	}
}
