// Package app wires configuration, storage, delivery channels and services
// into the object graph shared by the API server and the trigger CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/azure"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/channel"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/config"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/debounce"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/events"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/handler"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/pdf"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/security"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/service"
	"go.uber.org/zap"
)

// App holds every long-lived component of the engine
type App struct {
	Pool          *pgxpool.Pool
	Redis         *redis.Client
	Debouncer     *debounce.RedisDebouncer
	Events        service.EventPublisher
	Notifications *repository.NotificationRepository

	Engine      *service.Engine
	Doses       *service.DoseService
	Adherence   *service.AdherenceService
	Reports     *service.ReportService
	Emergency   *service.EmergencyService
	Medications *service.MedicationService
	Caregivers  *service.CaregiverService
	Preferences *service.PreferenceResolver

	closers []func() error
	logger  *zap.Logger
}

// New connects to the configured backends and builds the services
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	pool, err := connectDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, pool); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("database schema migrated")
	}

	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		a.Close()
		return nil, err
	}
	encryptor, err := security.NewEncryptor(key)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	storage, err := reportStorage(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Events = a.eventPublisher(cfg.Events)

	var debouncer service.Debouncer
	if cfg.Redis.Addr != "" {
		a.Redis = debounce.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		a.closers = append(a.closers, a.Redis.Close)
		a.Debouncer = debounce.NewRedisDebouncer(a.Redis, cfg.Redis.Debounce, logger)
		debouncer = a.Debouncer
		logger.Info("trigger debounce enabled", zap.Duration("window", cfg.Redis.Debounce))
	}

	fallback, err := time.LoadLocation(cfg.Engine.DefaultTimezone)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load default timezone: %w", err)
	}

	users := repository.NewUserRepository(pool, logger)
	medications := repository.NewMedicationRepository(pool, logger)
	doses := repository.NewDoseRepository(pool, logger)
	caregivers := repository.NewCaregiverRepository(pool, encryptor, logger)
	preferences := repository.NewPreferenceRepository(pool, logger)
	a.Notifications = repository.NewNotificationRepository(pool, logger)
	reports := repository.NewReportRepository(pool, logger)
	auditLogger := audit.NewLogger(pool, logger)

	timezones := service.NewTimezoneResolver(users, fallback, logger)
	a.Preferences = service.NewPreferenceResolver(preferences, logger)

	dispatcher := service.NewDispatcher(a.Preferences, timezones, users, a.Notifications,
		deliveryChannels(cfg.Channels, logger), cfg.Engine.ChannelTimeout, logger)
	reminders := service.NewReminderScheduler(a.Notifications, doses, dispatcher,
		cfg.Engine.ReminderLead, cfg.Engine.SweepBatchLimit, logger)
	generator := service.NewScheduleGenerator(medications, doses, timezones, reminders,
		cfg.Engine.DedupTolerance, logger)
	escalation := service.NewEscalationService(caregivers, users, dispatcher, logger)
	sweeper := service.NewSweeper(doses, dispatcher, escalation, a.Events, timezones, service.SweeperConfig{
		GraceWindow: cfg.Engine.GraceWindow,
		ArchiveAge:  cfg.Engine.ArchiveAge,
		BatchLimit:  cfg.Engine.SweepBatchLimit,
	}, logger)

	a.Adherence = service.NewAdherenceService(doses, timezones, cfg.Engine.StreakLookback, logger)
	a.Doses = service.NewDoseService(doses, timezones, dispatcher, a.Events, auditLogger, logger)
	a.Reports = service.NewReportService(service.ReportDeps{
		Users:       users,
		Medications: medications,
		Doses:       doses,
		Adherence:   a.Adherence,
		Reports:     reports,
		Storage:     storage,
		Renderer:    pdf.NewPDFGenerator(logger),
		Dispatcher:  dispatcher,
		Escalation:  escalation,
		Events:      a.Events,
		Timezones:   timezones,
	}, cfg.Engine.ReportPeriodDays, logger)
	a.Emergency = service.NewEmergencyService(dispatcher, escalation, a.Events, logger)
	a.Medications = service.NewMedicationService(medications, auditLogger, logger)
	a.Caregivers = service.NewCaregiverService(caregivers, auditLogger, logger)

	a.Engine = service.NewEngine(service.EngineDeps{
		Users:     users,
		Generator: generator,
		Sweeper:   sweeper,
		Reminders: reminders,
		Reports:   a.Reports,
		Timezones: timezones,
		Debouncer: debouncer,
	}, cfg.Engine.LookaheadDays, logger)

	return a, nil
}

// Handlers builds the HTTP handlers over the services
func (a *App) Handlers(version string) handler.Handlers {
	optional := map[string]handler.Pinger{}
	if a.Debouncer != nil {
		optional["redis"] = a.Debouncer
	}

	return handler.Handlers{
		Adherence:  handler.NewAdherenceHandler(a.Adherence, a.logger),
		Doses:      handler.NewDoseHandler(a.Doses, a.logger),
		Engine:     handler.NewEngineHandler(a.Engine, a.Emergency, a.logger),
		Reports:    handler.NewReportHandler(a.Reports, a.logger),
		Medication: handler.NewMedicationHandler(a.Medications, a.logger),
		Contacts:   handler.NewContactHandler(a.Caregivers, a.Preferences, a.Notifications, a.logger),
		Health: handler.NewHealthHandler(
			map[string]handler.Pinger{"database": a.Pool},
			optional,
			version,
			a.logger,
		),
	}
}

// Close releases connections in reverse order of acquisition
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to close resource", zap.Error(err))
		}
	}
	a.closers = nil
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Successfully connected to database", zap.Int32("max_conns", poolCfg.MaxConns))
	return pool, nil
}

func reportStorage(cfg *config.Config, logger *zap.Logger) (service.ReportStorage, error) {
	if !cfg.BlobStorageConfigured() {
		logger.Warn("azure blob storage not configured, keeping reports in memory")
		return azure.NewMemoryBlobStorage(logger), nil
	}

	client, err := azure.NewBlobStorageClient(
		cfg.Azure.Storage.AccountName,
		cfg.Azure.Storage.AccountKey,
		cfg.Azure.Storage.ReportContainer,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize report blob storage client: %w", err)
	}
	return client, nil
}

func (a *App) eventPublisher(cfg config.EventsConfig) service.EventPublisher {
	if len(cfg.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, domain events are logged only")
		return events.NewNopPublisher(a.logger)
	}

	publisher := events.NewKafkaPublisher(cfg.Brokers, cfg.Topic, a.logger)
	a.closers = append(a.closers, publisher.Close)
	a.logger.Info("publishing domain events to kafka",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
	)
	return publisher
}

// deliveryChannels builds the HTTP adapters for configured providers and
// log-only adapters for the rest
func deliveryChannels(cfg config.ChannelsConfig, logger *zap.Logger) service.Channels {
	var channels service.Channels

	if cfg.Push.BaseURL != "" {
		channels.Push = channel.NewPushClient(channel.ProviderOptions{
			BaseURL:    cfg.Push.BaseURL,
			APIKey:     cfg.Push.APIKey,
			RetryCount: cfg.Retries,
		}, logger)
	} else {
		channels.Push = channel.NewLogPush(logger)
	}

	if cfg.Email.BaseURL != "" {
		channels.Email = channel.NewEmailClient(channel.ProviderOptions{
			BaseURL:    cfg.Email.BaseURL,
			APIKey:     cfg.Email.APIKey,
			RetryCount: cfg.Retries,
		}, cfg.Email.From, logger)
	} else {
		channels.Email = channel.NewLogEmail(logger)
	}

	if cfg.SMS.BaseURL != "" {
		channels.SMS = channel.NewSMSClient(channel.ProviderOptions{
			BaseURL:    cfg.SMS.BaseURL,
			APIKey:     cfg.SMS.APIKey,
			RetryCount: cfg.Retries,
		}, cfg.SMS.Sender, logger)
	} else {
		channels.SMS = channel.NewLogSMS(logger)
	}

	return channels
}
