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
	Eventing      EventingConfig
	Loan          LoanConfig
	Engagement    EngagementConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Media         MediaConfig
	Email         EmailConfig
	Outbox        OutboxConfig
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
	Env          string `envconfig:"BOOKHAVEN_APP_ENV" required:"true"`
	Port         string `envconfig:"BOOKHAVEN_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BOOKHAVEN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BOOKHAVEN_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BOOKHAVEN_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BOOKHAVEN_DB_DSN"`
	Driver string `envconfig:"BOOKHAVEN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BOOKHAVEN_DB_HOST"`
	LegacyPort     int    `envconfig:"BOOKHAVEN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BOOKHAVEN_DB_USER"`
	LegacyPassword string `envconfig:"BOOKHAVEN_DB_PASSWORD"`
	LegacyName     string `envconfig:"BOOKHAVEN_DB_NAME"`
	LegacySSLMode  string `envconfig:"BOOKHAVEN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOOKHAVEN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOOKHAVEN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOOKHAVEN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOOKHAVEN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOOKHAVEN_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BOOKHAVEN_REDIS_ADDR"`
	Password     string        `envconfig:"BOOKHAVEN_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOOKHAVEN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOOKHAVEN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOOKHAVEN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOOKHAVEN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOOKHAVEN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOOKHAVEN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"BOOKHAVEN_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"BOOKHAVEN_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"BOOKHAVEN_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"BOOKHAVEN_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BOOKHAVEN_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BOOKHAVEN_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BOOKHAVEN_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BOOKHAVEN_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BOOKHAVEN_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"BOOKHAVEN_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"BOOKHAVEN_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"10"`
	LoginIPLimit       int           `envconfig:"BOOKHAVEN_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"10"`
	RegisterWindow     time.Duration `envconfig:"BOOKHAVEN_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"1m"`
	RegisterEmailLimit int           `envconfig:"BOOKHAVEN_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"5"`
	RegisterIPLimit    int           `envconfig:"BOOKHAVEN_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BOOKHAVEN_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BOOKHAVEN_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"BOOKHAVEN_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

// LoanConfig carries the lending policy constants.
type LoanConfig struct {
	PeriodDays         int `envconfig:"BOOKHAVEN_LOAN_PERIOD_DAYS" default:"7"`
	MaxConcurrentLoans int `envconfig:"BOOKHAVEN_LOAN_MAX_CONCURRENT" default:"5"`
}

// Period returns the configured loan period as a duration.
func (l LoanConfig) Period() time.Duration {
	return time.Duration(l.PeriodDays) * 24 * time.Hour
}

// EngagementConfig tunes the onboarding workflow cadence.
type EngagementConfig struct {
	WelcomeDelay    time.Duration `envconfig:"BOOKHAVEN_ENGAGEMENT_WELCOME_DELAY" default:"72h"`
	CheckInterval   time.Duration `envconfig:"BOOKHAVEN_ENGAGEMENT_CHECK_INTERVAL" default:"720h"`
	PollInterval    time.Duration `envconfig:"BOOKHAVEN_ENGAGEMENT_POLL_INTERVAL" default:"30s"`
	BatchSize       int           `envconfig:"BOOKHAVEN_ENGAGEMENT_BATCH_SIZE" default:"50"`
	MaxStepAttempts int           `envconfig:"BOOKHAVEN_ENGAGEMENT_MAX_STEP_ATTEMPTS" default:"5"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BOOKHAVEN_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"BOOKHAVEN_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BOOKHAVEN_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"BOOKHAVEN_PUBSUB_NOTIFICATION_TOPIC" default:"bh-notification-events"`
	NotificationSubscription string `envconfig:"BOOKHAVEN_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	AnalyticsTopic           string `envconfig:"BOOKHAVEN_PUBSUB_ANALYTICS_TOPIC" default:"bh-lending-events"`
	AnalyticsSubscription    string `envconfig:"BOOKHAVEN_PUBSUB_ANALYTICS_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset            string `envconfig:"BOOKHAVEN_BIGQUERY_DATASET" default:"bookhaven"`
	LendingEventsTable string `envconfig:"BOOKHAVEN_BIGQUERY_LENDING_TABLE" default:"lending_events"`
}

// MediaConfig points at the remote-ingest media host used for covers/videos.
type MediaConfig struct {
	UploadEndpoint string        `envconfig:"BOOKHAVEN_MEDIA_UPLOAD_ENDPOINT" default:"https://upload.imagekit.io/api/v1/files/upload"`
	URLEndpoint    string        `envconfig:"BOOKHAVEN_MEDIA_URL_ENDPOINT"`
	PrivateKey     string        `envconfig:"BOOKHAVEN_MEDIA_PRIVATE_KEY"`
	Timeout        time.Duration `envconfig:"BOOKHAVEN_MEDIA_TIMEOUT" default:"30s"`
}

type EmailConfig struct {
	Endpoint    string        `envconfig:"BOOKHAVEN_EMAIL_ENDPOINT" default:"https://api.resend.com/emails"`
	APIKey      string        `envconfig:"BOOKHAVEN_EMAIL_API_KEY"`
	DefaultFrom string        `envconfig:"BOOKHAVEN_EMAIL_FROM" default:"BookHaven <hello@bookhaven.app>"`
	Timeout     time.Duration `envconfig:"BOOKHAVEN_EMAIL_TIMEOUT" default:"15s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BOOKHAVEN_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BOOKHAVEN_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BOOKHAVEN_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"BOOKHAVEN_OUTBOX_RETENTION_DAYS" default:"14"`
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
