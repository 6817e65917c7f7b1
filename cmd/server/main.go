package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/kazi-backend/internal/billing"
	"github.com/ignatzorin/kazi-backend/internal/cache"
	"github.com/ignatzorin/kazi-backend/internal/config"
	"github.com/ignatzorin/kazi-backend/internal/db"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/kazi-backend/internal/http/handlers"
	"github.com/ignatzorin/kazi-backend/internal/http/middleware"
	httpRouter "github.com/ignatzorin/kazi-backend/internal/http/router"
	"github.com/ignatzorin/kazi-backend/internal/logger"
	"github.com/ignatzorin/kazi-backend/internal/metrics"
	"github.com/ignatzorin/kazi-backend/internal/repository"
	"github.com/ignatzorin/kazi-backend/internal/service"
	"github.com/ignatzorin/kazi-backend/internal/storage"
	"github.com/ignatzorin/kazi-backend/internal/workflow"
	"github.com/ignatzorin/kazi-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	if cfg.IsProduction() {
		logger.Init("info")
	} else {
		logger.Init("debug")
		logger.SetTextFormatter()
	}
	appLog := logger.WithComponent("main")

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	applied, err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath)
	if err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}
	appLog.WithField("applied", applied).Info("migrations done")

	m := metrics.New()
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	checks := map[string]httpHandlers.HealthCheck{
		"database": func(ctx context.Context) error { return dbConn.PingContext(ctx) },
	}

	// Кэш: Redis, если задан REDIS_URL, иначе память процесса.
	var (
		appCache    cache.Cache
		redisClient *redis.Client
	)
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("main: %v", err)
		}
		defer redisClient.Close()
		appCache = cache.NewRedis(redisClient, "kazi:")
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		appCache = cache.NewMemory(ctx)
	}

	// Шина событий.
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATSURL != "" {
		nats, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			log.Fatalf("main: %v", err)
		}
		defer nats.Close()
		publisher = nats
		checks["nats"] = nats.Healthy
	}

	// Вебсокеты и лента изменений.
	hub := ws.NewHub(m)
	goroutine.SafeGo(func() { hub.Run(ctx) })
	feed := events.NewFeed(hub, publisher, m)

	// Хранилище файлов.
	var blobs service.BlobStore
	if cfg.S3Enabled() {
		var s3Store *storage.S3Storage
		if s3Store, err = storage.NewS3Storage(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3PublicURL); err == nil {
			if accessErr := s3Store.CheckAccess(ctx); accessErr != nil {
				appLog.WithError(accessErr).Warn("s3 bucket is not reachable yet")
			}
			checks["s3"] = s3Store.CheckAccess
			blobs = s3Store
		}
	} else {
		blobs, err = storage.NewLocalStorage(cfg.MediaStoragePath)
	}
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	contentRepo := repository.NewContentRepository(dbConn)
	seoRepo := repository.NewSEORepository(dbConn)
	proposalRepo := repository.NewProposalRepository(dbConn)
	purchaseRepo := repository.NewPurchaseRepository(dbConn)
	planRepo := repository.NewPlanRepository(dbConn)
	subscriptionRepo := repository.NewSubscriptionRepository(dbConn)
	systemRepo := repository.NewSystemRepository(dbConn)
	teamRepo := repository.NewTeamRepository(dbConn)
	timesheetRepo := repository.NewTimesheetRepository(dbConn)
	translationRepo := repository.NewTranslationRepository(dbConn)
	tutorialRepo := repository.NewTutorialRepository(dbConn)
	urlRepo := repository.NewURLRepository(dbConn)
	workflowRepo := repository.NewWorkflowRepository(dbConn)
	fileRepo := repository.NewFileRepository(dbConn)
	portfolioRepo := repository.NewPortfolioRepository(dbConn)
	apiKeyRepo := repository.NewAPIKeyRepository(dbConn)
	audioRepo := repository.NewAudioRepository(dbConn)

	// Сервисы.
	contentService := service.NewContentService(contentRepo, feed)
	seoService := service.NewSEOService(seoRepo, contentService, appCache, feed)
	proposalService := service.NewProposalService(proposalRepo, feed)
	purchaseService := service.NewPurchaseService(purchaseRepo, feed)
	planService := service.NewPlanService(planRepo, feed)

	// Stripe подключается только при заданном ключе; nil провайдер
	// отключает checkout и portal.
	var billingProvider service.BillingProvider
	if cfg.StripeSecretKey != "" {
		billingProvider = billing.NewStripeClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil, m)
	}
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, planService, purchaseService, billingProvider,
		service.BillingURLs{Success: cfg.StripeSuccessURL, Cancel: cfg.StripeCancelURL, PortalReturn: cfg.StripeSuccessURL}, feed)

	systemService := service.NewSystemService(systemRepo, db.NewChecker(dbConn), hub, feed)
	teamService := service.NewTeamService(teamRepo, feed)
	timesheetService := service.NewTimesheetService(timesheetRepo, feed)
	translationService := service.NewTranslationService(translationRepo, feed)
	tutorialService := service.NewTutorialService(tutorialRepo, feed)
	urlService := service.NewURLService(urlRepo, appCache, cfg.ShortURLCacheTTL, cfg.PublicBaseURL, m, feed)
	workflowService := service.NewWorkflowService(workflowRepo, workflow.NewEngine(cfg.WebhookTimeout), m, feed)
	fileService := service.NewFileService(fileRepo, blobs, cfg.MaxUploadSizeMB, feed)
	portfolioService := service.NewPortfolioService(portfolioRepo, feed)
	apiKeyService := service.NewAPIKeyService(apiKeyRepo, feed)
	audioService := service.NewAudioService(audioRepo, fileService, feed)

	goroutine.SafeGo(func() { workflowService.RunScheduler(ctx, cfg.SchedulerInterval) })

	// Middleware.
	rateStore, err := middleware.NewRateStore(redisClient)
	if err != nil {
		log.Fatalf("main: хранилище лимитов: %v", err)
	}

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Health:        httpHandlers.NewHealthHandler(checks),
		Realtime:      httpHandlers.NewRealtimeHandler(hub, tokenManager, cfg.AllowedOrigins),
		Content:       httpHandlers.NewContentHandler(contentService),
		SEO:           httpHandlers.NewSEOHandler(seoService),
		Proposals:     httpHandlers.NewProposalHandler(proposalService),
		Purchases:     httpHandlers.NewPurchaseHandler(purchaseService),
		Plans:         httpHandlers.NewPlanHandler(planService),
		Subscriptions: httpHandlers.NewSubscriptionHandler(subscriptionService),
		System:        httpHandlers.NewSystemHandler(systemService),
		Teams:         httpHandlers.NewTeamHandler(teamService),
		Timesheets:    httpHandlers.NewTimesheetHandler(timesheetService),
		Translations:  httpHandlers.NewTranslationHandler(translationService),
		Tutorials:     httpHandlers.NewTutorialHandler(tutorialService),
		URLs:          httpHandlers.NewURLHandler(urlService),
		Workflows:     httpHandlers.NewWorkflowHandler(workflowService),
		Files:         httpHandlers.NewFileHandler(fileService),
		Portfolio:     httpHandlers.NewPortfolioHandler(portfolioService),
		APIKeys:       httpHandlers.NewAPIKeyHandler(apiKeyService),
		Audio:         httpHandlers.NewAudioHandler(audioService),
	}, httpRouter.Options{
		Auth:         middleware.AuthMiddleware(tokenManager, apiKeyService),
		OptionalAuth: middleware.OptionalAuth(tokenManager),
		RateLimit:    middleware.RateLimitMiddleware(rateStore, cfg.RateLimitLimit, cfg.RateLimitPeriod),
		Observer:     m,
		Metrics:      m.Handler(),
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			appLog.WithError(err).Error("ошибка остановки http сервера")
		}
	}()

	appLog.WithField("port", cfg.HTTPPort).Info("http server started")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("main: ошибка http сервера: %v", err)
	}
	appLog.Info("http server stopped")
}

func safeClose(dbConn *sqlx.DB) {
	if err := dbConn.Close(); err != nil {
		log.Printf("main: ошибка закрытия соединения с БД: %v", err)
	}
}
