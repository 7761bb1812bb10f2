package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
)

// DefaultContentType is always sent to the pricing backend.
const DefaultContentType = "application/json;charset=UTF-8"

// Config holds the runtime configuration for ask-price.
type Config struct {
	ServiceName string
	Env         string
	LogLevel    string
	LogFile     string

	InputFile     string
	OutputPattern string // "{term}" and "{label}" are substituted per term
	CatalogFile   string
	Terms         []string // optional subset of catalog term codes

	CreateURL      string
	ResultURL      string
	AuthToken      string
	AuthSecretName string
	AWSRegion      string
	SecretCacheTTL time.Duration

	ProductType     int
	InquiryScale    int
	PollInterval    time.Duration
	MaxPollAttempts int
	HTTPTimeout     time.Duration
	HTTPRetryMax    int
	RateLimitRPS    int
	RateLimitBurst  int
	Concurrency     int
	RunTimeout      time.Duration

	RedisAddr      string
	RedisDB        int
	RedisPass      string
	ResultCacheTTL time.Duration

	ArchiveDriver       string // none, postgres, sqlite
	DatabaseURL         string
	SQLitePath          string
	PGMaxConns          int
	PGMinConns          int
	PGMaxConnLifetime   time.Duration
	PGMaxConnIdleTime   time.Duration
	PGHealthCheckPeriod time.Duration

	NATSURL       string
	RabbitMQURL   string
	RabbitMQQueue string

	PushgatewayURL string

	Port             int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int
	ScheduleInterval time.Duration
}

// Load loads configuration from environment variables and optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName: GetEnv("SERVICE_NAME", "ask-price"),
		Env:         GetEnv("ENV", "dev"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		LogFile:     GetEnv("LOG_FILE", ""),

		InputFile:     GetEnv("INPUT_FILE", "input.xlsx"),
		OutputPattern: GetEnv("OUTPUT_PATTERN", "output/output_{term}/final_result_{term}.xlsx"),
		CatalogFile:   GetEnv("CATALOG_FILE", "catalog.yaml"),
		Terms:         GetEnvList("TERMS", nil),

		CreateURL:      GetEnv("CREATE_URL", "https://option.example.com/app-api/option-ask/create"),
		ResultURL:      GetEnv("RESULT_URL", "https://option.example.com/app-api/option-ask/result"),
		AuthToken:      GetEnv("AUTH_TOKEN", ""),
		AuthSecretName: GetEnv("AUTH_SECRET_NAME", ""),
		AWSRegion:      GetEnv("AWS_REGION", "ap-east-1"),
		SecretCacheTTL: GetEnvDuration("SECRET_CACHE_TTL", time.Hour),

		ProductType:     GetEnvInt("PRODUCT_TYPE", 0),
		InquiryScale:    GetEnvInt("INQUIRY_SCALE", 1_000_000),
		PollInterval:    GetEnvDuration("POLL_INTERVAL", 500*time.Millisecond),
		MaxPollAttempts: GetEnvInt("MAX_POLL_ATTEMPTS", 10),
		HTTPTimeout:     GetEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		HTTPRetryMax:    GetEnvInt("HTTP_RETRY_MAX", 0),
		RateLimitRPS:    GetEnvInt("RATE_LIMIT_RPS", 10),
		RateLimitBurst:  GetEnvInt("RATE_LIMIT_BURST", 20),
		Concurrency:     GetEnvInt("CONCURRENCY", 1),
		RunTimeout:      GetEnvDuration("RUN_TIMEOUT", 0),

		RedisAddr:      GetEnv("REDIS_ADDR", ""),
		RedisDB:        GetEnvInt("REDIS_DB", 0),
		RedisPass:      GetEnv("REDIS_PASS", ""),
		ResultCacheTTL: GetEnvDuration("RESULT_CACHE_TTL", 10*time.Minute),

		ArchiveDriver:       strings.ToLower(GetEnv("ARCHIVE_DRIVER", "none")),
		DatabaseURL:         GetEnv("DATABASE_URL", ""),
		SQLitePath:          GetEnv("SQLITE_PATH", "output/archive.db"),
		PGMaxConns:          GetEnvInt("PG_MAX_CONNS", 4),
		PGMinConns:          GetEnvInt("PG_MIN_CONNS", 1),
		PGMaxConnLifetime:   GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		PGMaxConnIdleTime:   GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PGHealthCheckPeriod: GetEnvDuration("PG_HEALTH_CHECK_PERIOD", 1*time.Minute),

		NATSURL:       GetEnv("NATS_URL", ""),
		RabbitMQURL:   GetEnv("RABBITMQ_URL", ""),
		RabbitMQQueue: GetEnv("RABBITMQ_QUEUE", "askprice.events"),

		PushgatewayURL: GetEnv("PUSHGATEWAY_URL", ""),

		Port:             GetEnvInt("PORT", 9040),
		HTTPReadTimeout:  GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout: GetEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		HTTPIdleTimeout:  GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:    GetEnvInt("HTTP_BODY_LIMIT", 64*1024),
		ScheduleInterval: GetEnvDuration("SCHEDULE_INTERVAL", 0),
	}
}

// OutputPath expands OutputPattern for a term.
func (c *Config) OutputPath(t model.Term) string {
	return strings.NewReplacer("{term}", t.Code, "{label}", t.Display()).Replace(c.OutputPattern)
}

// Headers merges the static request headers: content type, catalog headers, then AUTH_TOKEN.
func (c *Config) Headers(cat *Catalog) map[string]string {
	h := map[string]string{"Content-Type": DefaultContentType}
	if cat != nil {
		for k, v := range cat.Headers {
			h[k] = v
		}
	}
	if c.AuthToken != "" {
		h["Authorization"] = "Bearer " + c.AuthToken
	}
	return h
}
