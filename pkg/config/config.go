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
	FeatureFlags FeatureFlagsConfig
	Trackers     TrackersConfig
	Backfill     BackfillConfig
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
	Env          string `envconfig:"ISKOLARLINK_APP_ENV" required:"true"`
	Port         string `envconfig:"ISKOLARLINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ISKOLARLINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ISKOLARLINK_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"ISKOLARLINK_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ISKOLARLINK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ISKOLARLINK_DB_DSN"`
	Driver string `envconfig:"ISKOLARLINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ISKOLARLINK_DB_HOST"`
	LegacyPort     int    `envconfig:"ISKOLARLINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ISKOLARLINK_DB_USER"`
	LegacyPassword string `envconfig:"ISKOLARLINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"ISKOLARLINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"ISKOLARLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ISKOLARLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ISKOLARLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ISKOLARLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ISKOLARLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ISKOLARLINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ISKOLARLINK_REDIS_ADDR"`
	Password     string        `envconfig:"ISKOLARLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"ISKOLARLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ISKOLARLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ISKOLARLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ISKOLARLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ISKOLARLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ISKOLARLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the verification settings for access tokens minted by the
// portal's auth service.
type JWTConfig struct {
	Secret string `envconfig:"ISKOLARLINK_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"ISKOLARLINK_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ISKOLARLINK_AUTO_MIGRATE" default:"false"`
}

type TrackersConfig struct {
	ReconcileBatchSize int           `envconfig:"ISKOLARLINK_TRACKERS_RECONCILE_BATCH_SIZE" default:"100"`
	IdempotencyTTL     time.Duration `envconfig:"ISKOLARLINK_TRACKERS_IDEMPOTENCY_TTL" default:"168h"`
}

type BackfillConfig struct {
	LockTTL time.Duration `envconfig:"ISKOLARLINK_BACKFILL_LOCK_TTL" default:"15m"`
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
