package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"

	"github.com/quillmarket/fines-backend/pkg/enums"
)

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Fines        FinesConfig
	Outbox       OutboxConfig
	Cron         CronConfig
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
	if _, err := cfg.Fines.ReviewRoleSet(); err != nil {
		return nil, fmt.Errorf("parsing review roles: %w", err)
	}
	if _, err := cfg.Fines.SystemActor(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"QUILLFINES_APP_ENV" required:"true"`
	Port         string `envconfig:"QUILLFINES_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"QUILLFINES_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"QUILLFINES_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"QUILLFINES_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"QUILLFINES_DB_DSN"`
	Driver string `envconfig:"QUILLFINES_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"QUILLFINES_DB_HOST"`
	LegacyPort     int    `envconfig:"QUILLFINES_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"QUILLFINES_DB_USER"`
	LegacyPassword string `envconfig:"QUILLFINES_DB_PASSWORD"`
	LegacyName     string `envconfig:"QUILLFINES_DB_NAME"`
	LegacySSLMode  string `envconfig:"QUILLFINES_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"QUILLFINES_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"QUILLFINES_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"QUILLFINES_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"QUILLFINES_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.LegacyHost == "" || d.LegacyUser == "" || d.LegacyName == "" {
		return fmt.Errorf("either QUILLFINES_DB_DSN or host/user/name parts are required")
	}
	userInfo := url.User(d.LegacyUser)
	if d.LegacyPassword != "" {
		userInfo = url.UserPassword(d.LegacyUser, d.LegacyPassword)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", d.LegacyHost, d.LegacyPort),
		Path:     d.LegacyName,
		RawQuery: "sslmode=" + d.LegacySSLMode,
	}
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"QUILLFINES_REDIS_URL"`
	Address      string        `envconfig:"QUILLFINES_REDIS_ADDRESS"`
	Password     string        `envconfig:"QUILLFINES_REDIS_PASSWORD"`
	DB           int           `envconfig:"QUILLFINES_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"QUILLFINES_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"QUILLFINES_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"QUILLFINES_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"QUILLFINES_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"QUILLFINES_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// FinesConfig tunes the fine engine's deployment-specific policy knobs.
type FinesConfig struct {
	// ReviewRoles is the comma-separated set of roles allowed to review appeals.
	ReviewRoles string `envconfig:"QUILLFINES_REVIEW_ROLES" default:"support,admin,superadmin"`
	// DefaultCurrency labels issued fines when the order carries no currency.
	DefaultCurrency string `envconfig:"QUILLFINES_DEFAULT_CURRENCY" default:"USD"`
	// SystemActorID identifies the principal automated sweeps issue fines as.
	SystemActorID string `envconfig:"QUILLFINES_SYSTEM_ACTOR_ID" default:"00000000-0000-0000-0000-000000000001"`
}

// SystemActor parses SystemActorID into a UUID.
func (f FinesConfig) SystemActor() (uuid.UUID, error) {
	id, err := uuid.Parse(f.SystemActorID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing system actor id: %w", err)
	}
	return id, nil
}

// ReviewRoleSet parses ReviewRoles into a role set.
func (f FinesConfig) ReviewRoleSet() (enums.RoleSet, error) {
	parts := strings.Split(f.ReviewRoles, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("review role set is empty")
	}
	return enums.ParseRoleSet(values)
}

type OutboxConfig struct {
	BatchSize    int           `envconfig:"QUILLFINES_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"QUILLFINES_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"QUILLFINES_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// WebhookURL is where the publisher delivers notification-worthy events.
	WebhookURL string `envconfig:"QUILLFINES_OUTBOX_WEBHOOK_URL"`
	// WebhookTimeout bounds each delivery attempt.
	WebhookTimeout time.Duration `envconfig:"QUILLFINES_OUTBOX_WEBHOOK_TIMEOUT" default:"15s"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"QUILLFINES_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"QUILLFINES_CRON_LOCK_TTL" default:"55m"`
	// LatenessSweepBatch caps how many overdue orders one sweep evaluates.
	LatenessSweepBatch int `envconfig:"QUILLFINES_CRON_LATENESS_BATCH" default:"200"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"QUILLFINES_AUTO_MIGRATE" default:"false"`
}
