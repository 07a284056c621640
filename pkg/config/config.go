package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Ledger       LedgerConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string        `envconfig:"VOUCHERNET_APP_ENV" required:"true"`
	Port            string        `envconfig:"VOUCHERNET_APP_PORT" required:"true"`
	LogLevel        string        `envconfig:"VOUCHERNET_LOG_LEVEL" default:"info"`
	LogWarnStack    bool          `envconfig:"VOUCHERNET_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated list of dashboard origins.
	CORSOrigins     []string      `envconfig:"VOUCHERNET_CORS_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"VOUCHERNET_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VOUCHERNET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VOUCHERNET_DB_DSN"`
	Driver string `envconfig:"VOUCHERNET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VOUCHERNET_DB_HOST"`
	LegacyPort     int    `envconfig:"VOUCHERNET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VOUCHERNET_DB_USER"`
	LegacyPassword string `envconfig:"VOUCHERNET_DB_PASSWORD"`
	LegacyName     string `envconfig:"VOUCHERNET_DB_NAME"`
	LegacySSLMode  string `envconfig:"VOUCHERNET_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"VOUCHERNET_SQLITE_PATH" default:"vouchernet.db"`

	MaxOpenConns    int           `envconfig:"VOUCHERNET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VOUCHERNET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VOUCHERNET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VOUCHERNET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"VOUCHERNET_DB_SLOW_QUERY" default:"250ms"`
	TxRetries       int           `envconfig:"VOUCHERNET_DB_TX_RETRIES" default:"3"`
}

type RedisConfig struct {
	URL            string        `envconfig:"VOUCHERNET_REDIS_URL" required:"true"`
	Address        string        `envconfig:"VOUCHERNET_REDIS_ADDR"`
	Password       string        `envconfig:"VOUCHERNET_REDIS_PASSWORD"`
	DB             int           `envconfig:"VOUCHERNET_REDIS_DB" default:"0"`
	PoolSize       int           `envconfig:"VOUCHERNET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns   int           `envconfig:"VOUCHERNET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout    time.Duration `envconfig:"VOUCHERNET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout    time.Duration `envconfig:"VOUCHERNET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout   time.Duration `envconfig:"VOUCHERNET_REDIS_WRITE_TIMEOUT" default:"5s"`
	IdempotencyTTL time.Duration `envconfig:"VOUCHERNET_REDIS_IDEMPOTENCY_TTL" default:"24h"`
}

// JWTConfig holds verification settings for access tokens minted by the identity service.
type JWTConfig struct {
	Secret            string        `envconfig:"VOUCHERNET_JWT_SECRET" required:"true"`
	Issuer            string        `envconfig:"VOUCHERNET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int           `envconfig:"VOUCHERNET_JWT_EXPIRATION_MINUTES" default:"60"`
	Leeway            time.Duration `envconfig:"VOUCHERNET_JWT_LEEWAY" default:"30s"`
}

type RateLimitConfig struct {
	Window      time.Duration `envconfig:"VOUCHERNET_RATE_LIMIT_WINDOW" default:"1m"`
	ImportLimit int           `envconfig:"VOUCHERNET_RATE_LIMIT_IMPORT_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VOUCHERNET_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VOUCHERNET_AUTO_MIGRATE" default:"false"`
}

// LedgerConfig tunes the stock, loyalty and import rules.
type LedgerConfig struct {
	LowStockThreshold  int           `envconfig:"VOUCHERNET_LOW_STOCK_THRESHOLD" default:"10"`
	LoyaltyThreshold   int           `envconfig:"VOUCHERNET_LOYALTY_THRESHOLD" default:"10"`
	ImportMaxRows      int           `envconfig:"VOUCHERNET_IMPORT_MAX_ROWS" default:"5000"`
	SideEffectTimeout  time.Duration `envconfig:"VOUCHERNET_SIDE_EFFECT_TIMEOUT" default:"5s"`
	CampaignCloseGrace time.Duration `envconfig:"VOUCHERNET_CAMPAIGN_CLOSE_GRACE" default:"72h"`
}

func (l LedgerConfig) validate() error {
	if l.LowStockThreshold < 0 {
		return fmt.Errorf("%s must be >= 0", EnvLowStockThreshold)
	}
	if l.LoyaltyThreshold <= 0 {
		return fmt.Errorf("%s must be > 0", EnvLoyaltyThreshold)
	}
	if l.ImportMaxRows <= 0 {
		return fmt.Errorf("%s must be > 0", EnvImportMaxRows)
	}
	return nil
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"VOUCHERNET_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VOUCHERNET_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VOUCHERNET_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VOUCHERNET_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	LedgerTopic       string `envconfig:"VOUCHERNET_PUBSUB_LEDGER_TOPIC" default:"vn-ledger-events"`
	CampaignTopic     string `envconfig:"VOUCHERNET_PUBSUB_CAMPAIGN_TOPIC" default:"vn-campaign-events"`
	NotificationTopic string `envconfig:"VOUCHERNET_PUBSUB_NOTIFICATION_TOPIC" default:"vn-notification-events"`
	// Ordered keys messages by aggregate id so one sale's events arrive in order.
	Ordered bool `envconfig:"VOUCHERNET_PUBSUB_ORDERED" default:"true"`
}

// Topics returns the configured topic ids, trimmed and without duplicates.
func (c PubSubConfig) Topics() []string {
	seen := map[string]bool{}
	var out []string
	for _, name := range []string{c.LedgerTopic, c.CampaignTopic, c.NotificationTopic} {
		name = strings.TrimSpace(name)
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VOUCHERNET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VOUCHERNET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VOUCHERNET_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// CronConfig drives the maintenance worker. Interval is the retention
// cadence; LockTTL bounds a single job run.
type CronConfig struct {
	Tick                      time.Duration `envconfig:"VOUCHERNET_CRON_TICK" default:"1m"`
	Interval                  time.Duration `envconfig:"VOUCHERNET_CRON_INTERVAL" default:"24h"`
	CampaignCloseoutEvery     time.Duration `envconfig:"VOUCHERNET_CRON_CAMPAIGN_CLOSEOUT_EVERY" default:"1h"`
	LockTTL                   time.Duration `envconfig:"VOUCHERNET_CRON_LOCK_TTL" default:"30m"`
	NotificationRetentionDays int           `envconfig:"VOUCHERNET_NOTIFICATION_RETENTION_DAYS" default:"30"`
	OutboxRetentionDays       int           `envconfig:"VOUCHERNET_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
