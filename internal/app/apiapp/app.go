package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/config"
	"github.com/thecompanyunltd/nightvibe/internal/infra/httpclient"
	kafkainfra "github.com/thecompanyunltd/nightvibe/internal/infra/kafka"
	"github.com/thecompanyunltd/nightvibe/internal/infra/metrics"
	s3infra "github.com/thecompanyunltd/nightvibe/internal/infra/s3"
	tginfra "github.com/thecompanyunltd/nightvibe/internal/infra/telegram"
	mongorepo "github.com/thecompanyunltd/nightvibe/internal/repo/mongo"
	pgrepo "github.com/thecompanyunltd/nightvibe/internal/repo/postgres"
	redrepo "github.com/thecompanyunltd/nightvibe/internal/repo/redis"
	adminsvc "github.com/thecompanyunltd/nightvibe/internal/services/admin"
	authsvc "github.com/thecompanyunltd/nightvibe/internal/services/auth"
	erasuresvc "github.com/thecompanyunltd/nightvibe/internal/services/erasure"
	mediasvc "github.com/thecompanyunltd/nightvibe/internal/services/media"
	"github.com/thecompanyunltd/nightvibe/internal/services/messaging"
	notifysvc "github.com/thecompanyunltd/nightvibe/internal/services/notify"
	profilesvc "github.com/thecompanyunltd/nightvibe/internal/services/profiles"
	ratesvc "github.com/thecompanyunltd/nightvibe/internal/services/rate"
	reportsvc "github.com/thecompanyunltd/nightvibe/internal/services/reports"
	"github.com/thecompanyunltd/nightvibe/internal/transport/http/handlers"
)

const (
	reportsPerMinute = 5
	reportsPer10Sec  = 2
)

type App struct {
	cfg         config.Config
	logger      *zap.Logger
	server      *http.Server
	mongo       *mongodrv.Client
	postgres    *pgxpool.Pool
	redis       *goredis.Client
	producer    *kafkainfra.Producer
	authLimiter *IPRateLimiter
	httpRouter  http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	mongoClient, db, err := mongorepo.Connect(ctx, cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("init mongo: %w", err)
	}
	if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
		_ = mongoClient.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure mongo indexes: %w", err)
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		_ = mongoClient.Disconnect(context.Background())
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pgrepo.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		_ = mongoClient.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure postgres schema: %w", err)
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	timeout := cfg.Mongo.Timeout
	userRepo := mongorepo.NewUserRepo(db, timeout)
	messageRepo := mongorepo.NewMessageRepo(db, max(timeout, cfg.Messaging.StoreTimeout))
	reportRepo := mongorepo.NewReportRepo(db, timeout)
	settingsRepo := mongorepo.NewSettingsRepo(db, timeout)
	accountRepo := pgrepo.NewAccountRepo(pool)
	auditRepo := pgrepo.NewAuditRepo(pool)
	sessionRepo := redrepo.NewSessionRepo(redisClient)
	rateRepo := redrepo.NewRateRepo(redisClient)
	viewTargetRepo := redrepo.NewViewTargetRepo(redisClient)

	registry := metrics.New()

	eraser := erasuresvc.NewService(erasuresvc.Dependencies{
		Users:    userRepo,
		Messages: messageRepo,
		Accounts: accountRepo,
		Sessions: sessionRepo,
		Logger:   log,
	})

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(authsvc.Dependencies{
		JWT:      jwtManager,
		Sessions: sessionRepo,
		Accounts: accountRepo,
		Users:    userRepo,
		Settings: settingsRepo,
		Attempts: rateRepo,
		Eraser:   eraser,
		Logger:   log,
	}, authsvc.Config{
		RefreshTTL:          cfg.Auth.RefreshTTL,
		EmailDomain:         cfg.Auth.EmailDomain,
		BcryptCost:          cfg.Auth.BcryptCost,
		LoginWindow:         cfg.Auth.LoginWindow,
		OnboardingMinPhotos: cfg.Media.OnboardingMinPhotos,
	})

	profileService := profilesvc.NewService(profilesvc.Dependencies{
		Users:       userRepo,
		ViewTargets: viewTargetRepo,
		Logger:      log,
	})

	messagingService := messaging.NewService(messaging.Dependencies{
		Messages: messageRepo,
		Users:    userRepo,
		Bus:      redrepo.NewMessageBus(redisClient, log),
		Limiter:  ratesvc.NewLimiter(rateRepo, "messages", cfg.Messaging.SendPerMin, cfg.Messaging.SendPer10Sec),
		Metrics:  registry,
		Logger:   log,
	}, messaging.Config{MaxLength: cfg.Messaging.MaxLength})

	notifier, producer := newNotifier(cfg, settingsRepo, log)
	reportService := reportsvc.NewService(reportsvc.Dependencies{
		Reports:  reportRepo,
		Users:    userRepo,
		Messages: messageRepo,
		Notifier: notifier,
		Limiter:  ratesvc.NewLimiter(rateRepo, "reports", reportsPerMinute, reportsPer10Sec),
		Logger:   log,
	})

	host, err := newImageHost(cfg, log)
	if err != nil {
		closeQuietly(producer, pool, redisClient, mongoClient, log)
		return nil, err
	}
	mediaService := mediasvc.NewService(mediasvc.Dependencies{
		Users:   userRepo,
		Host:    host,
		Metrics: registry,
		Logger:  log,
	}, mediasvc.Config{
		MaxPhotoBytes:       cfg.Media.MaxPhotoBytes,
		MaxPhotos:           cfg.Media.MaxPhotos,
		OnboardingMinPhotos: cfg.Media.OnboardingMinPhotos,
	})

	adminService := adminsvc.NewService(adminsvc.Dependencies{
		Users:    userRepo,
		Messages: messageRepo,
		Reports:  reportRepo,
		Settings: settingsRepo,
		Audit:    auditRepo,
		Sessions: sessionRepo,
		Accounts: authService,
		Eraser:   eraser,
		Metrics:  registry,
		Logger:   log,
	}, adminsvc.Config{})

	authLimiter := NewIPRateLimiter(cfg.HTTP.AuthRatePerMin, log)

	r := chi.NewRouter()
	ApplyMiddlewares(r, cfg.HTTP.CORSOrigins, registry, log)
	RegisterRoutes(r, Dependencies{
		AuthService:      authService,
		ProfileService:   profileService,
		MessagingService: messagingService,
		ReportService:    reportService,
		MediaService:     mediaService,
		AdminService:     adminService,
		Settings:         settingsRepo,
		AuthLimiter:      authLimiter,
		Metrics:          registry,
		HealthChecks: map[string]handlers.Pinger{
			"mongo":    func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
			"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
		Logger: log,
		Config: cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:         cfg,
		logger:      log,
		server:      server,
		mongo:       mongoClient,
		postgres:    pool,
		redis:       redisClient,
		producer:    producer,
		authLimiter: authLimiter,
		httpRouter:  r,
	}, nil
}

// newNotifier wires whichever moderation sinks are configured. Without a
// bot token or brokers the notifier only logs.
func newNotifier(cfg config.Config, settings notifysvc.SettingsReader, log *zap.Logger) (*notifysvc.Notifier, *kafkainfra.Producer) {
	deps := notifysvc.Dependencies{Settings: settings, Logger: log}

	if strings.TrimSpace(cfg.Notify.TelegramToken) != "" {
		bot, err := tginfra.NewBot(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			log.Warn("telegram notifications disabled", zap.Error(err))
		} else {
			deps.Chat = bot
		}
	}

	var producer *kafkainfra.Producer
	if len(cfg.Notify.KafkaBrokers) > 0 {
		p, err := kafkainfra.NewProducer(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic)
		if err != nil {
			log.Warn("kafka events disabled", zap.Error(err))
		} else {
			producer = p
			deps.Events = p
		}
	}

	return notifysvc.NewNotifier(deps), producer
}

func newImageHost(cfg config.Config, log *zap.Logger) (mediasvc.ImageHost, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Media.Provider)) {
	case "s3":
		client, err := s3infra.NewClient(cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("init s3: %w", err)
		}
		return mediasvc.NewS3Host(client, cfg.S3.Bucket, cfg.S3.PublicBaseURL), nil
	case "", "cloudinary":
		client := httpclient.NewGuarded(httpclient.Options{
			Name:               "cloudinary",
			Timeout:            cfg.Cloudinary.Timeout,
			RatePerSec:         cfg.Cloudinary.RatePerSec,
			BreakerMaxFailures: cfg.Cloudinary.BreakerMaxFailures,
			BreakerTimeout:     cfg.Cloudinary.BreakerTimeout,
		}, log)
		return mediasvc.NewCloudinaryHost(cfg.Cloudinary, client), nil
	default:
		return nil, fmt.Errorf("unknown media provider %q", cfg.Media.Provider)
	}
}

func (a *App) Run(ctx context.Context) error {
	go a.authLimiter.Cleanup(ctx)

	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if a.producer != nil {
		err = multierr.Append(err, a.producer.Close())
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		err = multierr.Append(err, a.redis.Close())
	}
	if a.mongo != nil {
		err = multierr.Append(err, a.mongo.Disconnect(ctx))
	}
	return err
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}

func closeQuietly(producer *kafkainfra.Producer, pool *pgxpool.Pool, redisClient *goredis.Client, mongoClient *mongodrv.Client, log *zap.Logger) {
	var err error
	if producer != nil {
		err = multierr.Append(err, producer.Close())
	}
	pool.Close()
	err = multierr.Append(err, redisClient.Close())
	err = multierr.Append(err, mongoClient.Disconnect(context.Background()))
	if err != nil {
		log.Warn("cleanup after failed init", zap.Error(err))
	}
}
