package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable consumed by the service.
	EnvPrefix = "WAVECRATE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	GCS           GCSConfig
	Delivery      DeliveryConfig
	PubSub        PubSubConfig
	Stripe        StripeConfig
	Sendgrid      SendgridConfig
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
	Env          string `envconfig:"WAVECRATE_APP_ENV" required:"true"`
	Port         string `envconfig:"WAVECRATE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WAVECRATE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WAVECRATE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"WAVECRATE_DB_DSN"`
	Driver string `envconfig:"WAVECRATE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"WAVECRATE_DB_HOST"`
	Port     int    `envconfig:"WAVECRATE_DB_PORT" default:"5432"`
	User     string `envconfig:"WAVECRATE_DB_USER"`
	Password string `envconfig:"WAVECRATE_DB_PASSWORD"`
	Name     string `envconfig:"WAVECRATE_DB_NAME"`
	SSLMode  string `envconfig:"WAVECRATE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WAVECRATE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WAVECRATE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WAVECRATE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WAVECRATE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WAVECRATE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WAVECRATE_REDIS_ADDR"`
	Password     string        `envconfig:"WAVECRATE_REDIS_PASSWORD"`
	DB           int           `envconfig:"WAVECRATE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WAVECRATE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WAVECRATE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WAVECRATE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WAVECRATE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WAVECRATE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"WAVECRATE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"WAVECRATE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"WAVECRATE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"WAVECRATE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"WAVECRATE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"WAVECRATE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"WAVECRATE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"WAVECRATE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"WAVECRATE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"WAVECRATE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"WAVECRATE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"WAVECRATE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"WAVECRATE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"WAVECRATE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"WAVECRATE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"WAVECRATE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"WAVECRATE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"WAVECRATE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"WAVECRATE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName      string        `envconfig:"WAVECRATE_GCS_BUCKET_NAME" required:"true"`
	UploadURLExpiry time.Duration `envconfig:"WAVECRATE_GCS_UPLOAD_URL_EXPIRY" default:"10m"`
}

// DeliveryConfig holds the signed URL lifetimes for gated media access.
type DeliveryConfig struct {
	DownloadURLExpiry time.Duration `envconfig:"WAVECRATE_DOWNLOAD_URL_EXPIRY" default:"2m"`
	StreamURLExpiry   time.Duration `envconfig:"WAVECRATE_STREAM_URL_EXPIRY" default:"1h"`
	MaxUploadMB       int           `envconfig:"WAVECRATE_MAX_UPLOAD_MB" default:"500"`
}

type PubSubConfig struct {
	OrdersTopic         string `envconfig:"WAVECRATE_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription  string `envconfig:"WAVECRATE_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
	CatalogTopic        string `envconfig:"WAVECRATE_PUBSUB_CATALOG_TOPIC"`
	CatalogSubscription string `envconfig:"WAVECRATE_PUBSUB_CATALOG_SUBSCRIPTION"`
}

type StripeConfig struct {
	APIKey     string `envconfig:"WAVECRATE_STRIPE_API_KEY"`
	Secret     string `envconfig:"WAVECRATE_STRIPE_SECRET"`
	Env        string `envconfig:"WAVECRATE_STRIPE_ENV" default:"test"`
	SuccessURL string `envconfig:"WAVECRATE_STRIPE_SUCCESS_URL" default:"https://wavecrate.io/checkout/success"`
	CancelURL  string `envconfig:"WAVECRATE_STRIPE_CANCEL_URL" default:"https://wavecrate.io/checkout/cancel"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SendgridConfig struct {
	APIKey      string `envconfig:"WAVECRATE_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"WAVECRATE_SENDGRID_FROM_EMAIL" default:"orders@wavecrate.io"`
	FromName    string `envconfig:"WAVECRATE_SENDGRID_FROM_NAME" default:"Wavecrate"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"WAVECRATE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"WAVECRATE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"WAVECRATE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	CartExpiry   time.Duration `envconfig:"WAVECRATE_CRON_CART_EXPIRY" default:"720h"`
	TickInterval time.Duration `envconfig:"WAVECRATE_CRON_TICK_INTERVAL" default:"1h"`
	MetricsPort  string        `envconfig:"WAVECRATE_CRON_METRICS_PORT" default:"9090"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for _, part := range []struct {
		key   string
		value string
	}{
		{"WAVECRATE_DB_HOST", db.Host},
		{"WAVECRATE_DB_USER", db.User},
		{"WAVECRATE_DB_NAME", db.Name},
	} {
		if part.value == "" {
			missing = append(missing, part.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either WAVECRATE_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
