package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "KASIRKITA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Canonical env var names, used by tests and error messages.
const (
	EnvAppEnv      = "KASIRKITA_APP_ENV"
	EnvPort        = "KASIRKITA_APP_PORT"
	EnvDBDSN       = "KASIRKITA_DB_DSN"
	EnvDBHost      = "KASIRKITA_DB_HOST"
	EnvDBUser      = "KASIRKITA_DB_USER"
	EnvDBName      = "KASIRKITA_DB_NAME"
	EnvRedisURL    = "KASIRKITA_REDIS_URL"
	EnvShopeeBase  = "KASIRKITA_SHOPEE_BASE_URL"
	EnvGCPProject  = "KASIRKITA_GCP_PROJECT_ID"
	EnvPubSubTopic = "KASIRKITA_PUBSUB_SYNC_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Marketplace  MarketplaceConfig
	Sync         SyncConfig
	Stock        StockConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KASIRKITA_APP_ENV" required:"true"`
	Port         string `envconfig:"KASIRKITA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KASIRKITA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KASIRKITA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KASIRKITA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KASIRKITA_DB_DSN"`
	Driver string `envconfig:"KASIRKITA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KASIRKITA_DB_HOST"`
	LegacyPort     int    `envconfig:"KASIRKITA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KASIRKITA_DB_USER"`
	LegacyPassword string `envconfig:"KASIRKITA_DB_PASSWORD"`
	LegacyName     string `envconfig:"KASIRKITA_DB_NAME"`
	LegacySSLMode  string `envconfig:"KASIRKITA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KASIRKITA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KASIRKITA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KASIRKITA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KASIRKITA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KASIRKITA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KASIRKITA_REDIS_ADDR"`
	Password     string        `envconfig:"KASIRKITA_REDIS_PASSWORD"`
	DB           int           `envconfig:"KASIRKITA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KASIRKITA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KASIRKITA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KASIRKITA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KASIRKITA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KASIRKITA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// MarketplaceConfig holds engine-level settings for outbound platform calls.
// Per-store credentials live on the Store row, not here.
type MarketplaceConfig struct {
	ShopeeBaseURL  string        `envconfig:"KASIRKITA_SHOPEE_BASE_URL" default:"https://partner.shopeemobile.com/api/v2"`
	RequestTimeout time.Duration `envconfig:"KASIRKITA_MARKETPLACE_TIMEOUT" default:"30s"`
	PageSize       int           `envconfig:"KASIRKITA_MARKETPLACE_PAGE_SIZE" default:"50"`
	TokenSkew      time.Duration `envconfig:"KASIRKITA_MARKETPLACE_TOKEN_SKEW" default:"10m"`
}

type SyncConfig struct {
	WorkerPollInterval time.Duration `envconfig:"KASIRKITA_SYNC_POLL_INTERVAL" default:"2s"`
	MaxRetries         int           `envconfig:"KASIRKITA_SYNC_MAX_RETRIES" default:"3"`
	BackoffBase        time.Duration `envconfig:"KASIRKITA_SYNC_BACKOFF_BASE" default:"30s"`
	SchedulerInterval  time.Duration `envconfig:"KASIRKITA_SYNC_SCHEDULER_INTERVAL" default:"15m"`
	Cooldown           time.Duration `envconfig:"KASIRKITA_SYNC_COOLDOWN" default:"10m"`
	LeaseTTL           time.Duration `envconfig:"KASIRKITA_SYNC_LEASE_TTL" default:"30m"`
	WebhookDedupTTL    time.Duration `envconfig:"KASIRKITA_WEBHOOK_DEDUP_TTL" default:"24h"`
}

type StockConfig struct {
	BufferPercent int `envconfig:"KASIRKITA_STOCK_BUFFER_PERCENT" default:"10"`
	MinBuffer     int `envconfig:"KASIRKITA_STOCK_MIN_BUFFER" default:"1"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"KASIRKITA_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	SyncTopic string `envconfig:"KASIRKITA_PUBSUB_SYNC_TOPIC"`
}

// Enabled reports whether summary publishing is configured at all.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.SyncTopic) != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KASIRKITA_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
