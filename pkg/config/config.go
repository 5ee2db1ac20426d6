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
	Billing      BillingConfig
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
	Env          string `envconfig:"UTILITRACK_APP_ENV" required:"true"`
	Port         string `envconfig:"UTILITRACK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"UTILITRACK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"UTILITRACK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"UTILITRACK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"UTILITRACK_DB_DSN"`
	Driver string `envconfig:"UTILITRACK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"UTILITRACK_DB_HOST"`
	LegacyPort     int    `envconfig:"UTILITRACK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"UTILITRACK_DB_USER"`
	LegacyPassword string `envconfig:"UTILITRACK_DB_PASSWORD"`
	LegacyName     string `envconfig:"UTILITRACK_DB_NAME"`
	LegacySSLMode  string `envconfig:"UTILITRACK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"UTILITRACK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"UTILITRACK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"UTILITRACK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"UTILITRACK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"UTILITRACK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"UTILITRACK_REDIS_ADDR"`
	Password     string        `envconfig:"UTILITRACK_REDIS_PASSWORD"`
	DB           int           `envconfig:"UTILITRACK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"UTILITRACK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"UTILITRACK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"UTILITRACK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"UTILITRACK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"UTILITRACK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// BillingConfig tunes the subscription billing pipeline.
type BillingConfig struct {
	TaxRate          float64       `envconfig:"UTILITRACK_BILLING_TAX_RATE" default:"0.20"`
	FallbackCurrency string        `envconfig:"UTILITRACK_BILLING_FALLBACK_CURRENCY" default:"USD"`
	DueInDays        int           `envconfig:"UTILITRACK_BILLING_DUE_IN_DAYS" default:"30"`
	ErrorBackoff     time.Duration `envconfig:"UTILITRACK_BILLING_ERROR_BACKOFF" default:"1h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"UTILITRACK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"UTILITRACK_AUTO_MIGRATE" default:"false"`
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
