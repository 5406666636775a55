package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Драйверы хранилища кодов и счётчиков лимита.
const (
	StoreDriverMemory = "memory"
	StoreDriverRedis  = "redis"
)

// Config хранит все параметры запуска приложения.
type Config struct {
	Env            string
	HTTPPort       string
	LogLevel       string
	AllowedOrigins []string
	FrontendURL    string

	OTP  OTPConfig
	SMTP SMTPConfig

	StoreDriver    string
	RedisURL       string
	DatabaseURL    string
	MigrationsPath string

	JWTSecret     string
	EmailTokenTTL time.Duration

	AIBaseURL string
	AIModel   string
	AIAPIKey  string

	StoragePath     string
	MaxUploadSizeMB int64

	KafkaBrokers []string
	KafkaTopic   string

	RateLimitLimit  int64
	RateLimitPeriod time.Duration
}

// OTPConfig параметры выдачи и проверки одноразовых кодов.
type OTPConfig struct {
	Expiry            time.Duration
	RateLimitWindow   time.Duration
	RateLimitMax      int64
	MaxVerifyAttempts int64
	Retention         time.Duration
	DispatchTimeout   time.Duration
}

// SMTPConfig параметры почтового сервера.
type SMTPConfig struct {
	Host   string
	Port   int64
	User   string
	Pass   string
	Secure bool
}

// Enabled сообщает, заданы ли учётные данные SMTP.
func (c SMTPConfig) Enabled() bool {
	return c.User != "" && c.Pass != ""
}

// Load читает переменные окружения и возвращает готовую конфигурацию.
func Load() (*Config, error) {
	// Загружаем .env только если он существует, иначе используем системные переменные.
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("config: .env не найден, используем переменные окружения: %v", err)
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	env := getEnv("APP_ENV", "development")

	defaultLevel := "info"
	if env != "production" {
		defaultLevel = "debug"
	}

	cfg := &Config{
		Env:            env,
		HTTPPort:       getEnv("HTTP_PORT", "3001"),
		LogLevel:       getEnv("LOG_LEVEL", defaultLevel),
		FrontendURL:    strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", StoreDriverMemory)),
		RedisURL:       getEnv("REDIS_URL", ""),
		DatabaseURL:    getDatabaseURL(),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		AIBaseURL:      getEnv("AI_BASE_URL", ""),
		AIModel:        getEnv("AI_MODEL", "gpt-4o-mini"),
		AIAPIKey:       getEnv("AI_API_KEY", ""),
		StoragePath:    getEnv("STORAGE_PATH", "./storage/content"),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "proofpass.events"),
	}

	cfg.OTP = OTPConfig{
		Expiry:            time.Duration(mustParseInt64(getEnv("OTP_EXPIRY_MINUTES", "10"))) * time.Minute,
		RateLimitWindow:   mustParseDuration(getEnv("OTP_RATE_LIMIT_WINDOW", "15m")),
		RateLimitMax:      mustParseInt64(getEnv("OTP_RATE_LIMIT_MAX", "5")),
		MaxVerifyAttempts: mustParseInt64(getEnv("OTP_MAX_VERIFY_ATTEMPTS", "0")),
		Retention:         mustParseDuration(getEnv("OTP_RETENTION", "1h")),
		DispatchTimeout:   mustParseDuration(getEnv("MAIL_DISPATCH_TIMEOUT", "15s")),
	}

	cfg.SMTP = SMTPConfig{
		Host:   getEnv("SMTP_HOST", "smtp.gmail.com"),
		Port:   mustParseInt64(getEnv("SMTP_PORT", "587")),
		User:   getEnv("SMTP_USER", ""),
		Pass:   getEnv("SMTP_PASS", ""),
		Secure: getEnv("SMTP_SECURE", "false") == "true",
	}

	if cfg.OTP.RateLimitMax <= 0 {
		return nil, fmt.Errorf("config: OTP_RATE_LIMIT_MAX должен быть положительным")
	}
	if cfg.OTP.Expiry <= 0 {
		return nil, fmt.Errorf("config: OTP_EXPIRY_MINUTES должен быть положительным")
	}

	switch cfg.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("config: REDIS_URL обязателен при STORE_DRIVER=redis")
		}
	default:
		return nil, fmt.Errorf("config: неизвестный STORE_DRIVER %q", cfg.StoreDriver)
	}

	// Валидация JWT секрета
	jwtSecret := getEnv("JWT_SECRET", "")
	if env == "production" {
		if len(jwtSecret) < 32 {
			return nil, fmt.Errorf("config: JWT_SECRET обязателен и должен быть не менее 32 символов в production")
		}
	} else if jwtSecret == "" {
		jwtSecret = "super-secret-development-only-change-in-production"
		log.Printf("config: WARNING - используется дефолтный JWT_SECRET, измените в production!")
	}
	cfg.JWTSecret = jwtSecret
	cfg.EmailTokenTTL = mustParseDuration(getEnv("EMAIL_TOKEN_TTL", "24h"))

	// CORS allowed origins
	originsStr := getEnv("CORS_ALLOWED_ORIGINS", "")
	if originsStr == "" {
		if env == "production" {
			return nil, fmt.Errorf("config: CORS_ALLOWED_ORIGINS обязателен в production")
		}
		cfg.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	} else {
		cfg.AllowedOrigins = splitList(originsStr)
	}

	cfg.KafkaBrokers = splitList(getEnv("KAFKA_BROKERS", ""))
	cfg.MaxUploadSizeMB = mustParseInt64(getEnv("MAX_UPLOAD_MB", "10"))

	// Rate limiting настройки (per-IP, поверх лимита на идентификатор)
	cfg.RateLimitLimit = mustParseInt64(getEnv("RATE_LIMIT_LIMIT", "30"))
	cfg.RateLimitPeriod = mustParseDuration(getEnv("RATE_LIMIT_PERIOD", "1m"))

	return cfg, nil
}

// getEnv возвращает значение переменной окружения или дефолт.
// Пустое значение считается незаданным.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// splitList режет строку по запятым, убирая пробелы и пустые элементы.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getDatabaseURL возвращает DATABASE_URL либо из переменной, либо собирает из отдельных переменных.
// Пустая строка означает работу без Postgres.
func getDatabaseURL() string {
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		return dbURL
	}

	host := getEnv("POSTGRESQL_HOST", "")
	port := getEnv("POSTGRESQL_PORT", "5432")
	user := getEnv("POSTGRESQL_USER", "")
	password := getEnv("POSTGRESQL_PASSWORD", "")
	dbname := getEnv("POSTGRESQL_DBNAME", "")

	if host != "" && user != "" && dbname != "" {
		userInfo := url.UserPassword(user, password)
		return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=disable",
			userInfo.String(), host, port, dbname)
	}

	return ""
}

// mustParseDuration безопасно парсит строку в duration.
func mustParseDuration(v string) time.Duration {
	dur, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("config: не удалось распарсить длительность %q: %v", v, err)
	}
	return dur
}

// mustParseInt64 безопасно парсит строку в int64.
func mustParseInt64(v string) int64 {
	num, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		log.Fatalf("config: не удалось распарсить число %q: %v", v, err)
	}
	return num
}
