package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Engine    EngineConfig
	Channels  ChannelsConfig
	Redis     RedisConfig
	Events    EventsConfig
	Azure     AzureConfig
	Security  SecurityConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// EngineConfig holds the schedule, sweep and dispatch tunables
type EngineConfig struct {
	GraceWindow      time.Duration
	DedupTolerance   time.Duration
	ArchiveAge       time.Duration
	SweepBatchLimit  int
	ChannelTimeout   time.Duration
	StreakLookback   int
	LookaheadDays    int
	ReminderLead     time.Duration
	DefaultTimezone  string
	ReportPeriodDays int
}

// ChannelsConfig holds provider endpoints for the delivery adapters
type ChannelsConfig struct {
	Push    ProviderConfig
	Email   EmailProviderConfig
	SMS     SMSProviderConfig
	Retries int
}

// ProviderConfig holds a generic HTTP provider endpoint
type ProviderConfig struct {
	BaseURL string
	APIKey  string
}

// EmailProviderConfig holds the transactional email provider settings
type EmailProviderConfig struct {
	BaseURL string
	APIKey  string
	From    string
}

// SMSProviderConfig holds the SMS gateway settings
type SMSProviderConfig struct {
	BaseURL string
	APIKey  string
	Sender  string
}

// RedisConfig holds the optional trigger debounce store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Debounce time.Duration
}

// EventsConfig holds Kafka domain event publishing settings
type EventsConfig struct {
	Brokers []string
	Topic   string
}

// AzureConfig holds Azure service configuration
type AzureConfig struct {
	Storage StorageConfig
}

// StorageConfig holds Azure Blob Storage configuration
type StorageConfig struct {
	AccountName     string
	AccountKey      string
	ReportContainer string
}

// SecurityConfig holds the field encryption key (base64, 32 bytes decoded)
type SecurityConfig struct {
	EncryptionKey string
}

// SchedulerConfig holds the in-process trigger schedule
type SchedulerConfig struct {
	Enabled  bool
	Generate string
	Sweep    string
	Report   string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// Load reads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	// Bind specific environment variables
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdowntimeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.maxconns", 25)
	v.SetDefault("database.connmaxlifetime", 5*time.Minute)
	v.SetDefault("database.automigrate", false)

	// Engine defaults
	v.SetDefault("engine.gracewindow", 30*time.Minute)
	v.SetDefault("engine.deduptolerance", 60*time.Second)
	v.SetDefault("engine.archiveage", 72*time.Hour)
	v.SetDefault("engine.sweepbatchlimit", 500)
	v.SetDefault("engine.channeltimeout", 5*time.Second)
	v.SetDefault("engine.streaklookback", 30)
	v.SetDefault("engine.lookaheaddays", 1)
	v.SetDefault("engine.reminderlead", time.Duration(0))
	v.SetDefault("engine.defaulttimezone", "UTC")
	v.SetDefault("engine.reportperioddays", 7)

	// Channel defaults
	v.SetDefault("channels.retries", 2)

	// Redis defaults
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.debounce", 30*time.Second)

	// Event defaults
	v.SetDefault("events.topic", "medication-events")

	// Azure Storage defaults
	v.SetDefault("azure.storage.reportcontainer", "adherence-reports")

	// Scheduler defaults (robfig/cron with seconds field)
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.generate", "0 0 * * * *")
	v.SetDefault("scheduler.sweep", "0 */2 * * * *")
	v.SetDefault("scheduler.report", "0 0 9 * * MON")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "ENV", "ENVIRONMENT")

	// Database
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.automigrate", "DATABASE_AUTO_MIGRATE")

	// Engine
	v.BindEnv("engine.gracewindow", "ENGINE_GRACE_WINDOW")
	v.BindEnv("engine.archiveage", "ENGINE_ARCHIVE_AGE")
	v.BindEnv("engine.sweepbatchlimit", "ENGINE_SWEEP_BATCH_LIMIT")
	v.BindEnv("engine.channeltimeout", "ENGINE_CHANNEL_TIMEOUT")
	v.BindEnv("engine.lookaheaddays", "ENGINE_LOOKAHEAD_DAYS")
	v.BindEnv("engine.reminderlead", "ENGINE_REMINDER_LEAD")
	v.BindEnv("engine.defaulttimezone", "ENGINE_DEFAULT_TIMEZONE", "TZ_DEFAULT")

	// Channels
	v.BindEnv("channels.push.baseurl", "PUSH_GATEWAY_URL")
	v.BindEnv("channels.push.apikey", "PUSH_GATEWAY_API_KEY")
	v.BindEnv("channels.email.baseurl", "EMAIL_API_URL")
	v.BindEnv("channels.email.apikey", "EMAIL_API_KEY")
	v.BindEnv("channels.email.from", "EMAIL_FROM")
	v.BindEnv("channels.sms.baseurl", "SMS_API_URL")
	v.BindEnv("channels.sms.apikey", "SMS_API_KEY")
	v.BindEnv("channels.sms.sender", "SMS_SENDER")
	v.BindEnv("channels.retries", "CHANNEL_RETRIES")

	// Redis
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.debounce", "TRIGGER_DEBOUNCE")

	// Kafka
	v.BindEnv("events.brokers", "KAFKA_BROKERS")
	v.BindEnv("events.topic", "KAFKA_TOPIC")

	// Azure Storage
	v.BindEnv("azure.storage.accountname", "AZURE_STORAGE_ACCOUNT_NAME")
	v.BindEnv("azure.storage.accountkey", "AZURE_STORAGE_ACCOUNT_KEY")
	v.BindEnv("azure.storage.reportcontainer", "AZURE_STORAGE_REPORT_CONTAINER")

	// Security
	v.BindEnv("security.encryptionkey", "FIELD_ENCRYPTION_KEY")

	// Scheduler
	v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	v.BindEnv("scheduler.generate", "SCHEDULER_GENERATE_CRON")
	v.BindEnv("scheduler.sweep", "SCHEDULER_SWEEP_CRON")
	v.BindEnv("scheduler.report", "SCHEDULER_REPORT_CRON")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}

	if c.Engine.GraceWindow <= 0 {
		return fmt.Errorf("engine.gracewindow must be positive")
	}

	if c.Engine.DedupTolerance <= 0 {
		return fmt.Errorf("engine.deduptolerance must be positive")
	}

	if c.Engine.SweepBatchLimit <= 0 {
		return fmt.Errorf("engine.sweepbatchlimit must be positive")
	}

	if c.Engine.ChannelTimeout <= 0 {
		return fmt.Errorf("engine.channeltimeout must be positive")
	}

	if c.Engine.StreakLookback <= 0 {
		return fmt.Errorf("engine.streaklookback must be positive")
	}

	if c.Engine.LookaheadDays < 0 {
		return fmt.Errorf("engine.lookaheaddays must not be negative")
	}

	if c.Channels.Retries < 0 {
		return fmt.Errorf("channels.retries must not be negative")
	}

	if _, err := time.LoadLocation(c.Engine.DefaultTimezone); err != nil {
		return fmt.Errorf("engine.defaulttimezone is not a valid IANA zone: %w", err)
	}

	if _, err := c.EncryptionKeyBytes(); err != nil {
		return err
	}

	return nil
}

// EncryptionKeyBytes decodes the configured field encryption key
func (c *Config) EncryptionKeyBytes() ([]byte, error) {
	if c.Security.EncryptionKey == "" {
		return nil, fmt.Errorf("security.encryptionkey is required")
	}
	key, err := base64.StdEncoding.DecodeString(c.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("security.encryptionkey must be base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("security.encryptionkey must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// BlobStorageConfigured reports whether report PDFs can be uploaded
func (c *Config) BlobStorageConfigured() bool {
	return c.Azure.Storage.AccountName != "" && c.Azure.Storage.AccountKey != ""
}
