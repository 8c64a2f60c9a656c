package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Password  PasswordConfig
	Razorpay  RazorpayConfig
	Stripe    StripeConfig
	UPI       UPIConfig
	OTP       OTPConfig
	Email     EmailConfig
	QR        QRConfig
	RateLimit RateLimitConfig
	Features  FeatureFlagsConfig
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
	Env          string `envconfig:"MAPMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"MAPMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MAPMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MAPMARKET_LOG_WARN_STACK" default:"false"`
	BaseURL      string `envconfig:"MAPMARKET_APP_BASE_URL"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MAPMARKET_DB_DSN"`
	Driver string `envconfig:"MAPMARKET_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"MAPMARKET_DB_HOST"`
	Port     int    `envconfig:"MAPMARKET_DB_PORT" default:"5432"`
	User     string `envconfig:"MAPMARKET_DB_USER"`
	Password string `envconfig:"MAPMARKET_DB_PASSWORD"`
	Name     string `envconfig:"MAPMARKET_DB_NAME"`
	SSLMode  string `envconfig:"MAPMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MAPMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MAPMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MAPMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MAPMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MAPMARKET_REDIS_URL"`
	Address      string        `envconfig:"MAPMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"MAPMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"MAPMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MAPMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MAPMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MAPMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MAPMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MAPMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MAPMARKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MAPMARKET_JWT_ISSUER" default:"mapmarket"`
	ExpirationMinutes int    `envconfig:"MAPMARKET_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// Expiration returns the access token TTL.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MAPMARKET_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MAPMARKET_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MAPMARKET_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MAPMARKET_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MAPMARKET_ARGON_KEY_LEN" default:"32"`
}

type RazorpayConfig struct {
	KeyID         string        `envconfig:"MAPMARKET_RAZORPAY_KEY_ID"`
	KeySecret     string        `envconfig:"MAPMARKET_RAZORPAY_KEY_SECRET"`
	WebhookSecret string        `envconfig:"MAPMARKET_RAZORPAY_WEBHOOK_SECRET"`
	BaseURL       string        `envconfig:"MAPMARKET_RAZORPAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	Timeout       time.Duration `envconfig:"MAPMARKET_RAZORPAY_TIMEOUT" default:"10s"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"MAPMARKET_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"MAPMARKET_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"MAPMARKET_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type UPIConfig struct {
	MerchantID  string `envconfig:"MAPMARKET_MERCHANT_UPI_ID" default:"merchant@upi"`
	PayeeName   string `envconfig:"MAPMARKET_UPI_PAYEE_NAME" default:"MapMarket"`
	RendererURL string `envconfig:"MAPMARKET_QR_RENDERER_URL"`
}

type OTPConfig struct {
	Length        int           `envconfig:"MAPMARKET_OTP_LENGTH" default:"6"`
	Expiry        time.Duration `envconfig:"MAPMARKET_OTP_EXPIRY" default:"10m"`
	MaxAttempts   int           `envconfig:"MAPMARKET_OTP_MAX_ATTEMPTS" default:"5"`
	SendWindow    time.Duration `envconfig:"MAPMARKET_OTP_SEND_WINDOW" default:"60m"`
	SendLimit     int           `envconfig:"MAPMARKET_OTP_SEND_LIMIT" default:"5"`
	ResendWindow  time.Duration `envconfig:"MAPMARKET_OTP_RESEND_WINDOW" default:"30m"`
	ResendLimit   int           `envconfig:"MAPMARKET_OTP_RESEND_LIMIT" default:"3"`
	DeliveryDigit int           `envconfig:"MAPMARKET_DELIVERY_OTP_LENGTH" default:"4"`
}

type EmailConfig struct {
	SendgridAPIKey string        `envconfig:"MAPMARKET_SENDGRID_API_KEY"`
	FromAddress    string        `envconfig:"MAPMARKET_EMAIL_FROM" default:"no-reply@mapmarket.in"`
	FromName       string        `envconfig:"MAPMARKET_EMAIL_FROM_NAME" default:"MapMarket"`
	Timeout        time.Duration `envconfig:"MAPMARKET_EMAIL_TIMEOUT" default:"10s"`
}

type QRConfig struct {
	Expiry time.Duration `envconfig:"MAPMARKET_QR_EXPIRY" default:"15m"`
}

type RateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"MAPMARKET_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"MAPMARKET_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"MAPMARKET_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MAPMARKET_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MAPMARKET_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
