package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PerPage is the fixed page size of every paginated listing.
const PerPage = 10

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"

	StorageProviderLocal = "local"
	StorageProviderGCS   = "gcs"

	devSecretKey = "mpms-development-secret"
)

type Config struct {
	Env       string
	Port      string
	SecretKey string
	BaseURL   string
	LogLevel  string

	Database DatabaseConfig
	Mail     MailConfig
	Storage  StorageConfig
	PubSub   PubSubConfig

	RedisAddress string

	ResetTokenLifetime time.Duration
	SessionLifetime    time.Duration
	RememberLifetime   time.Duration

	PhoneRegion         string
	SearchCaseSensitive bool
	CORSAllowedOrigins  []string
	SkipMigrations      bool
}

type DatabaseConfig struct {
	Driver   string
	Path     string
	User     string
	Password string
	Host     string
	Port     string
	Name     string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectAttempts int
}

type MailConfig struct {
	Server   string
	Port     int
	UseTLS   bool
	UseSSL   bool
	User     string
	Password string
	Sender   string
}

type StorageConfig struct {
	Provider        string
	StaticDir       string
	GCSBucket       string
	GCSCredentials  string
	PublicURLPrefix string
}

type PubSubConfig struct {
	ProjectID   string
	Topic       string
	Credentials string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:       stringFromEnv("GO_ENV", "development"),
		Port:      stringFromEnv("PORT", "8080"),
		SecretKey: os.Getenv("SECRET_KEY"),
		LogLevel:  stringFromEnv("LOG_LEVEL", "error"),
		Database: DatabaseConfig{
			Driver:          strings.ToLower(stringFromEnv("DB_DRIVER", DriverSQLite)),
			Path:            stringFromEnv("DB_PATH", "site.db"),
			User:            os.Getenv("DB_USER"),
			Password:        os.Getenv("DB_PASSWORD"),
			Host:            stringFromEnv("DB_HOST", "127.0.0.1"),
			Port:            stringFromEnv("DB_PORT", "3306"),
			Name:            stringFromEnv("DB_NAME", "mpms"),
			MaxOpenConns:    intFromEnv("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    intFromEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
			ConnMaxIdleTime: time.Duration(intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second,
			ConnectAttempts: intFromEnv("DB_CONNECT_ATTEMPTS", 5),
		},
		Mail: MailConfig{
			Server:   stringFromEnv("MAIL_SERVER", "smtp.163.com"),
			Port:     intFromEnv("MAIL_PORT", 25),
			UseTLS:   boolFromEnv("MAIL_USE_TLS", false),
			UseSSL:   boolFromEnv("MAIL_USE_SSL", false),
			User:     os.Getenv("MAIL_USER"),
			Password: os.Getenv("MAIL_PASSWORD"),
			Sender:   os.Getenv("MAIL_SENDER"),
		},
		Storage: StorageConfig{
			Provider:        strings.ToLower(stringFromEnv("STORAGE_PROVIDER", StorageProviderLocal)),
			StaticDir:       stringFromEnv("STATIC_DIR", "static"),
			GCSBucket:       os.Getenv("GCS_BUCKET"),
			GCSCredentials:  os.Getenv("GCS_CREDENTIALS_JSON"),
			PublicURLPrefix: os.Getenv("STORAGE_ACCESS_BASE_URL"),
		},
		PubSub: PubSubConfig{
			ProjectID:   pubSubProjectID(),
			Topic:       os.Getenv("PUBSUB_TOPIC"),
			Credentials: os.Getenv("PUBSUB_CREDENTIALS_JSON"),
		},
		RedisAddress:        os.Getenv("REDIS_ADDRESS"),
		ResetTokenLifetime:  time.Duration(intFromEnv("RESET_TOKEN_SECONDS", 600)) * time.Second,
		SessionLifetime:     time.Duration(intFromEnv("SESSION_HOURS", 12)) * time.Hour,
		RememberLifetime:    365 * 24 * time.Hour,
		PhoneRegion:         strings.ToUpper(stringFromEnv("PHONE_REGION", "CN")),
		SearchCaseSensitive: boolFromEnv("SEARCH_CASE_SENSITIVE", false),
		CORSAllowedOrigins:  listFromEnv("CORS_ALLOWED_ORIGINS"),
		SkipMigrations:      boolFromEnv("SKIP_MIGRATIONS", false),
	}
	cfg.BaseURL = strings.TrimRight(stringFromEnv("BASE_URL", "http://localhost:"+cfg.Port), "/")
	if cfg.Mail.Sender == "" {
		cfg.Mail.Sender = cfg.Mail.User
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate fills development defaults and rejects unusable settings.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		if c.IsProduction() {
			return errors.New("SECRET_KEY must be set in production")
		}
		c.SecretKey = devSecretKey
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("DB_PATH must not be empty")
		}
	case DriverMySQL:
		if c.Database.User == "" || c.Database.Name == "" {
			return errors.New("DB_USER and DB_NAME are required for mysql")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	switch c.Storage.Provider {
	case StorageProviderLocal:
	case StorageProviderGCS:
		if c.Storage.GCSBucket == "" {
			return errors.New("GCS_BUCKET is required when STORAGE_PROVIDER=gcs")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_PROVIDER %q", c.Storage.Provider)
	}
	if c.ResetTokenLifetime <= 0 {
		return errors.New("RESET_TOKEN_SECONDS must be positive")
	}
	if c.SessionLifetime <= 0 {
		return errors.New("SESSION_HOURS must be positive")
	}
	return nil
}

func pubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run sets this.
	return os.Getenv("GOOGLE_CLOUD_PROJECT")
}
