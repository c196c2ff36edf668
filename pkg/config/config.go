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
	Password     PasswordConfig
	NowPayments  NowPaymentsConfig
	Callinoo     CallinooConfig
	Telegram     TelegramConfig
	Intake       IntakeConfig
	Orders       OrdersConfig
	RateLimit    AuthRateLimitConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TELESTARS_APP_ENV" required:"true"`
	Port         string `envconfig:"TELESTARS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TELESTARS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TELESTARS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TELESTARS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TELESTARS_DB_DSN"`
	Driver string `envconfig:"TELESTARS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TELESTARS_DB_HOST"`
	LegacyPort     int    `envconfig:"TELESTARS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TELESTARS_DB_USER"`
	LegacyPassword string `envconfig:"TELESTARS_DB_PASSWORD"`
	LegacyName     string `envconfig:"TELESTARS_DB_NAME"`
	LegacySSLMode  string `envconfig:"TELESTARS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TELESTARS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TELESTARS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TELESTARS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TELESTARS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TELESTARS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TELESTARS_REDIS_ADDR"`
	Password     string        `envconfig:"TELESTARS_REDIS_PASSWORD"`
	DB           int           `envconfig:"TELESTARS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TELESTARS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TELESTARS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TELESTARS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TELESTARS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TELESTARS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TELESTARS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TELESTARS_JWT_ISSUER" default:"telestars"`
	ExpirationMinutes int    `envconfig:"TELESTARS_JWT_EXPIRATION_MINUTES" default:"720"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TELESTARS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TELESTARS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TELESTARS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TELESTARS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TELESTARS_ARGON_KEY_LEN" default:"32"`
}

type NowPaymentsConfig struct {
	BaseURL        string        `envconfig:"TELESTARS_NOWPAYMENTS_BASE_URL" default:"https://api.nowpayments.io/v1"`
	APIKey         string        `envconfig:"TELESTARS_NOWPAYMENTS_API_KEY"`
	IPNSecret      string        `envconfig:"TELESTARS_NOWPAYMENTS_IPN_SECRET"`
	IPNCallbackURL string        `envconfig:"TELESTARS_NOWPAYMENTS_IPN_CALLBACK_URL"`
	PayCurrency    string        `envconfig:"TELESTARS_NOWPAYMENTS_PAY_CURRENCY" default:"trx"`
	CallTimeout    time.Duration `envconfig:"TELESTARS_NOWPAYMENTS_TIMEOUT" default:"15s"`
	IdempotencyTTL time.Duration `envconfig:"TELESTARS_NOWPAYMENTS_IDEMPOTENCY_TTL" default:"72h"`
}

type CallinooConfig struct {
	BaseURL     string        `envconfig:"TELESTARS_CALLINOO_BASE_URL" default:"https://api.callinoo.com"`
	Token       string        `envconfig:"TELESTARS_CALLINOO_TOKEN"`
	CallTimeout time.Duration `envconfig:"TELESTARS_CALLINOO_TIMEOUT" default:"15s"`
}

type TelegramConfig struct {
	BaseURL     string        `envconfig:"TELESTARS_TELEGRAM_BASE_URL" default:"https://api.telegram.org"`
	BotToken    string        `envconfig:"TELESTARS_TELEGRAM_BOT_TOKEN"`
	CallTimeout time.Duration `envconfig:"TELESTARS_TELEGRAM_TIMEOUT" default:"10s"`
	MaxRetries  int           `envconfig:"TELESTARS_TELEGRAM_MAX_RETRIES" default:"3"`
}

type IntakeConfig struct {
	SessionTTL time.Duration `envconfig:"TELESTARS_INTAKE_SESSION_TTL" default:"30m"`
}

type OrdersConfig struct {
	PaymentWindow time.Duration `envconfig:"TELESTARS_ORDERS_PAYMENT_WINDOW" default:"24h"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"TELESTARS_AUTH_RL_LOGIN_WINDOW" default:"15m"`
	LoginIPLimit       int           `envconfig:"TELESTARS_AUTH_RL_LOGIN_IP_LIMIT" default:"20"`
	LoginUsernameLimit int           `envconfig:"TELESTARS_AUTH_RL_LOGIN_USERNAME_LIMIT" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"TELESTARS_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"TELESTARS_CRON_LOCK_TTL" default:"20m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TELESTARS_AUTO_MIGRATE" default:"false"`
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
