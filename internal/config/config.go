package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewDeliveryPolicyHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	BaseURL     string
	NodeID      int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Auth      AuthConfig
	Stripe    StripeConfig
	Checkout  CheckoutConfig
	Storage   StorageConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
}

type AuthConfig struct {
	JWTSecret    string
	CookieName   string
	CookieSecure bool
}

type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	WebhookTolerance time.Duration
	Timeout          time.Duration
}

type CheckoutConfig struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

type StorageConfig struct {
	Zone         string
	AccessKey    string
	Region       string
	PullZoneHost string
	TokenKey     string
	Timeout      time.Duration
}

type EmailConfig struct {
	Provider     string
	APIKey       string
	APIBaseURL   string
	From         string
	To           string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	Timeout      time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DownloadRate  float64
	DownloadBurst int
}

const (
	CurrencyCAD = "CAD"
	CurrencyUSD = "USD"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	baseURL := strings.TrimRight(strings.TrimSpace(getenv("APP_BASE_URL", "http://localhost:3000")), "/")

	cookieSecure := environment == "production"
	if !cookieSecure {
		cookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	return Config{
		AppName:           getenv("APP_SERVICE", "plume"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       environment,
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		BaseURL:           baseURL,
		NodeID:            int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "plume"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		Auth: AuthConfig{
			JWTSecret:    strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
			CookieName:   getenv("AUTH_COOKIE_NAME", "__session"),
			CookieSecure: cookieSecure,
		},
		Stripe: StripeConfig{
			SecretKey:        strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret:    strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			WebhookTolerance: getenvDuration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
			Timeout:          getenvDuration("STRIPE_TIMEOUT", 10*time.Second),
		},
		Checkout: CheckoutConfig{
			Currency:   normalizeCurrency(getenv("CHECKOUT_CURRENCY", CurrencyCAD)),
			SuccessURL: baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:  baseURL + "/cart",
		},
		Storage: StorageConfig{
			Zone:         strings.TrimSpace(getenv("STORAGE_ZONE", "")),
			AccessKey:    strings.TrimSpace(getenv("STORAGE_ACCESS_KEY", "")),
			Region:       strings.ToLower(strings.TrimSpace(getenv("STORAGE_REGION", ""))),
			PullZoneHost: strings.TrimSpace(getenv("STORAGE_PULL_ZONE_HOST", "")),
			TokenKey:     strings.TrimSpace(getenv("STORAGE_TOKEN_KEY", "")),
			Timeout:      getenvDuration("STORAGE_TIMEOUT", 5*time.Second),
		},
		Email: EmailConfig{
			Provider:     strings.ToLower(strings.TrimSpace(getenv("EMAIL_PROVIDER", "noop"))),
			APIKey:       strings.TrimSpace(getenv("EMAIL_API_KEY", "")),
			APIBaseURL:   strings.TrimSpace(getenv("EMAIL_API_BASE_URL", "https://api.resend.com/")),
			From:         strings.TrimSpace(getenv("EMAIL_FROM", "NJAE Plume <orders@njaeplume.com>")),
			To:           strings.TrimSpace(getenv("EMAIL_TO", "")),
			SMTPHost:     getenv("SMTP_HOST", "localhost"),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			Timeout:      getenvDuration("EMAIL_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("REDIS_DB", 0),
			DownloadRate:  getenvFloat("DOWNLOAD_RATE", 0.2),
			DownloadBurst: getenvInt("DOWNLOAD_BURST", 5),
		},
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func normalizeCurrency(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case CurrencyUSD:
		return CurrencyUSD
	default:
		return CurrencyCAD
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
