package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Wallet        WalletConfig
	Square        SquareConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
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
	Env          string `envconfig:"STUDIOHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"STUDIOHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STUDIOHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STUDIOHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STUDIOHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STUDIOHUB_DB_DSN"`
	Driver string `envconfig:"STUDIOHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STUDIOHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"STUDIOHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STUDIOHUB_DB_USER"`
	LegacyPassword string `envconfig:"STUDIOHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"STUDIOHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"STUDIOHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STUDIOHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STUDIOHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STUDIOHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STUDIOHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STUDIOHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STUDIOHUB_REDIS_ADDR"`
	Password     string        `envconfig:"STUDIOHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"STUDIOHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STUDIOHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STUDIOHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STUDIOHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STUDIOHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STUDIOHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"STUDIOHUB_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"STUDIOHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"STUDIOHUB_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"STUDIOHUB_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STUDIOHUB_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STUDIOHUB_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STUDIOHUB_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STUDIOHUB_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STUDIOHUB_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"STUDIOHUB_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"STUDIOHUB_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"STUDIOHUB_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"STUDIOHUB_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"STUDIOHUB_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"STUDIOHUB_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STUDIOHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STUDIOHUB_AUTO_MIGRATE" default:"false"`
}

// WalletConfig tunes the earning rules feeding the wallet ledger.
type WalletConfig struct {
	ReferralPercent    int `envconfig:"STUDIOHUB_WALLET_REFERRAL_PERCENT" default:"5"`
	PlatformFeePercent int `envconfig:"STUDIOHUB_WALLET_PLATFORM_FEE_PERCENT" default:"10"`
}

type SquareConfig struct {
	AccessToken   string `envconfig:"STUDIOHUB_SQUARE_ACCESS_TOKEN"`
	Env           string `envconfig:"STUDIOHUB_SQUARE_ENV" default:"sandbox"`
	WebhookSecret string `envconfig:"STUDIOHUB_SQUARE_WEBHOOK_SECRET"`
	LocationID    string `envconfig:"STUDIOHUB_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"STUDIOHUB_PUBSUB_DOMAIN_TOPIC" default:"sh-domain-events"`
	DomainSubscription       string `envconfig:"STUDIOHUB_PUBSUB_DOMAIN_SUBSCRIPTION" default:"sh-domain-events-sub"`
	NotificationTopic        string `envconfig:"STUDIOHUB_PUBSUB_NOTIFICATION_TOPIC" default:"sh-notification-events"`
	NotificationSubscription string `envconfig:"STUDIOHUB_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"sh-notification-events-sub"`
	ProjectID                string `envconfig:"STUDIOHUB_GCP_PROJECT_ID"`
	CredentialsJSON          string `envconfig:"STUDIOHUB_GCP_CREDENTIALS_JSON"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STUDIOHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STUDIOHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STUDIOHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"STUDIOHUB_CRON_INTERVAL" default:"1h"`
	MetricsPort           string        `envconfig:"STUDIOHUB_CRON_METRICS_PORT" default:"9090"`
	NotificationRetention time.Duration `envconfig:"STUDIOHUB_CRON_NOTIFICATION_RETENTION" default:"2160h"`
	OutboxRetention       time.Duration `envconfig:"STUDIOHUB_CRON_OUTBOX_RETENTION" default:"720h"`
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
