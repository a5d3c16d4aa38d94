package app

import (
	"context"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumoapp/billing-service/internal/api/rest"
	"github.com/lumoapp/billing-service/internal/api/rest/middleware"
	"github.com/lumoapp/billing-service/internal/config"
	"github.com/lumoapp/billing-service/internal/kafka"
	ledgerkafka "github.com/lumoapp/billing-service/internal/kafka/producer"
	"github.com/lumoapp/billing-service/internal/metrics"
	"github.com/lumoapp/billing-service/internal/repository"
	fsrepo "github.com/lumoapp/billing-service/internal/repository/firestore"
	"github.com/lumoapp/billing-service/internal/repository/postgres"
	"github.com/lumoapp/billing-service/internal/secrets"
	"github.com/lumoapp/billing-service/internal/service"
	"github.com/lumoapp/billing-service/internal/stripe"
	"github.com/lumoapp/billing-service/pkg/logger"
	"github.com/lumoapp/billing-service/pkg/mailer"
)

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	Config         *config.Config
	Router         *gin.Engine
	Server         *rest.Server
	SweepJob       *service.SweepJob
	BillingService service.BillingService
	Reconciler     service.Reconciler
	LedgerService  service.LedgerService
	ConsentService service.ConsentService
	Logger         *logger.Logger

	closers []io.Closer
}

// NewApp создает и инициализирует новый экземпляр приложения
func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	secretsProvider := secrets.NewEnvProvider("", log)

	// Хранилище зеркала подписок и справочник пользователей
	var (
		subRepo  repository.SubscriptionRepository
		userRepo repository.UserRepository
	)
	var db *sqlx.DB
	if cfg.Firestore.ProjectID != "" {
		fsClient, err := fsrepo.NewClient(ctx, cfg.Firestore.ProjectID, cfg.Firestore.CredentialsFile, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Firestore client: %w", err)
		}
		a.closers = append(a.closers, fsClient)
		subRepo = fsrepo.NewSubscriptionRepository(fsClient, log)
		userRepo = fsrepo.NewUserRepository(fsClient, log)
		log.Infow("Using Firestore repositories", "projectID", cfg.Firestore.ProjectID)
	} else {
		subRepo = repository.NewInMemorySubscriptionRepository(log)
		userRepo = repository.NewInMemoryUserRepository(log)
		log.Warnw("Firestore is not configured, using in-memory repositories")
	}

	// Redis кеш поверх хранилища зеркала
	if cfg.Redis.Addr != "" {
		redisCache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
		} else {
			a.closers = append(a.closers, redisCache)
			subRepo = repository.NewCachedSubscriptionRepository(subRepo, redisCache, log)
			log.Infow("Redis cache initialized successfully")
		}
	}

	// Финансовый журнал
	var ledgerRepo repository.LedgerRepository
	if cfg.Database.DSN != "" {
		var err error
		db, err = postgres.NewConnection(ctx, cfg.Database.DSN, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db)
		ledgerRepo = postgres.NewLedgerRepository(db, log)
		log.Infow("Database connection established")
	} else {
		ledgerRepo = repository.NewInMemoryLedgerRepository(log)
		log.Warnw("Database is not configured, ledger records are kept in memory")
	}

	// Stripe клиент
	apiKey := secretsProvider.Get(secrets.StripeAPIKey)
	if apiKey == "" {
		log.Warnw("Stripe API key is not set")
	}
	stripeClient := stripe.NewStripeClient(apiKey, log)

	// Kafka producers
	var producer kafka.Producer
	var ledgerProducer ledgerkafka.LedgerProducer
	if len(cfg.Kafka.Brokers) > 0 {
		var err error
		producer, err = kafka.NewKafkaProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Errorw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
			producer = nil
		} else {
			a.closers = append(a.closers, producer)
		}

		syncProducer, err := kafka.NewSyncProducer(kafka.NewConfig(cfg.Kafka.Brokers), log)
		if err != nil {
			log.Errorw("Failed to initialize ledger producer, continuing without record publishing", "error", err)
		} else {
			ledgerProducer = ledgerkafka.NewKafkaLedgerProducer(syncProducer, log)
			a.closers = append(a.closers, ledgerProducer)
		}
	} else {
		log.Warnw("Kafka brokers are not configured, event publishing is disabled")
	}

	// Метрики
	registry := prometheus.NewRegistry()
	billingMetrics := metrics.NewBillingMetrics(registry, log)

	// Сервисы
	a.LedgerService = service.NewLedgerService(ledgerRepo, ledgerProducer, billingMetrics, log)
	a.ConsentService = service.NewConsentService(log)
	a.Reconciler = service.NewReconciler(
		subRepo, userRepo, a.LedgerService, stripeClient,
		secretsProvider, producer, billingMetrics, cfg.Stripe.AllowUnverifiedWebhooks, log,
	)
	a.BillingService = service.NewBillingService(
		subRepo, userRepo, a.LedgerService, a.Reconciler, stripeClient,
		producer, billingMetrics, service.PriceTable(cfg.Stripe.Prices), log,
	)

	a.SweepJob = service.NewSweepJob(a.LedgerService, cfg.Ledger.SweepInterval, log)

	// Почта для писем родительского согласия
	mailSender := mailer.NewSMTPSender(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: secretsProvider.Get(secrets.SMTPPassword),
		Sender:   cfg.SMTP.Sender,
	}, log)

	// JWT
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = secretsProvider.Get(secrets.JWTSecret)
	}
	if jwtSecret == "" {
		log.Warnw("JWT secret is not set, token validation will reject all tokens")
	}
	jwtMiddleware := middleware.NewJWTMiddleware(&middleware.DefaultTokenValidator{Secret: []byte(jwtSecret)}, log)

	// Проверки готовности
	healthChecks := map[string]func(ctx context.Context) error{}
	if db != nil {
		healthChecks["postgres"] = db.PingContext
	}

	baseURL := cfg.App.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.App.Port
	}

	a.Router = rest.SetupRouter(rest.RouterDeps{
		BillingService: a.BillingService,
		Reconciler:     a.Reconciler,
		LedgerService:  a.LedgerService,
		ConsentService: a.ConsentService,
		MailSender:     mailSender,
		JWT:            jwtMiddleware,
		Registry:       registry,
		BaseURL:        baseURL,
		HealthChecks:   healthChecks,
		Log:            log,
	})
	a.Server = rest.NewServer(a.Router, cfg, log)

	return a, nil
}

// Close освобождает все ресурсы приложения в обратном порядке инициализации
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Errorw("Error closing resource", "error", err)
		}
	}
}
