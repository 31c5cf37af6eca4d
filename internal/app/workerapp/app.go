package workerapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/config"
	kafkainfra "github.com/thecompanyunltd/nightvibe/internal/infra/kafka"
	tginfra "github.com/thecompanyunltd/nightvibe/internal/infra/telegram"
	"github.com/thecompanyunltd/nightvibe/internal/jobs/maintenance"
	mongorepo "github.com/thecompanyunltd/nightvibe/internal/repo/mongo"
	pgrepo "github.com/thecompanyunltd/nightvibe/internal/repo/postgres"
	adminsvc "github.com/thecompanyunltd/nightvibe/internal/services/admin"
	notifysvc "github.com/thecompanyunltd/nightvibe/internal/services/notify"
)

// App runs the maintenance sweep and the moderators' Telegram commands.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	mongo    *mongodrv.Client
	postgres *pgxpool.Pool
	bot      *tginfra.Bot
	producer *kafkainfra.Producer
	job      *maintenance.Job
	commands *Commands
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	mongoClient, db, err := mongorepo.Connect(ctx, cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("init mongo for worker: %w", err)
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		_ = mongoClient.Disconnect(context.Background())
		return nil, fmt.Errorf("init postgres for worker: %w", err)
	}
	if err := pgrepo.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		_ = mongoClient.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure postgres schema: %w", err)
	}

	var bot *tginfra.Bot
	if strings.TrimSpace(cfg.Notify.TelegramToken) != "" {
		bot, err = tginfra.NewBot(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			pool.Close()
			_ = mongoClient.Disconnect(context.Background())
			return nil, fmt.Errorf("init telegram bot: %w", err)
		}
	} else {
		logger.Warn("NOTIFY_TELEGRAM_TOKEN is empty, moderator commands disabled")
	}

	var producer *kafkainfra.Producer
	if len(cfg.Notify.KafkaBrokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic)
		if err != nil {
			logger.Warn("kafka producer disabled", zap.Error(err))
		}
	}

	timeout := cfg.Mongo.Timeout
	users := mongorepo.NewUserRepo(db, timeout)
	settings := mongorepo.NewSettingsRepo(db, timeout)

	notifyDeps := notifysvc.Dependencies{Settings: settings, Logger: logger}
	if bot != nil {
		notifyDeps.Chat = bot
	}
	if producer != nil {
		notifyDeps.Events = producer
	}
	notifier := notifysvc.NewNotifier(notifyDeps)

	admin := adminsvc.NewService(adminsvc.Dependencies{
		Users:    users,
		Messages: mongorepo.NewMessageRepo(db, timeout),
		Reports:  mongorepo.NewReportRepo(db, timeout),
		Settings: settings,
		Audit:    pgrepo.NewAuditRepo(pool),
		Logger:   logger,
	}, adminsvc.Config{})

	return &App{
		cfg:      cfg,
		logger:   logger,
		mongo:    mongoClient,
		postgres: pool,
		bot:      bot,
		producer: producer,
		job:      maintenance.New(users, notifier, cfg.Worker.InactiveAfter, logger),
		commands: NewCommands(admin),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("worker started", zap.Duration("interval", a.cfg.Worker.Interval))

	errCh := make(chan error, 1)
	go a.job.Loop(ctx, a.cfg.Worker.Interval)

	if a.bot != nil {
		go func() {
			errCh <- a.bot.ListenCommands(ctx, a.commands.Handle)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("worker stopped")
			return nil
		case err := <-errCh:
			if err == nil || errors.Is(err, context.Canceled) {
				continue
			}
			return err
		}
	}
}

func (a *App) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.mongo.Disconnect(ctx)
	}
}
