package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvDev        = "dev"
	EnvTest       = "test"
	EnvProduction = "production"
)

type Config struct {
	Env         string `env:"ENV" envDefault:"dev"`
	ServerPort  int    `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:8080"`

	Database DatabaseConfig
	Auth     AuthConfig
	MQ       MQConfig
	Storage  StorageConfig
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"bcal"`
	Password string `env:"DB_PASSWORD" envDefault:"password"`
	DBName   string `env:"DB_NAME" envDefault:"bcal_db"`
	UseSSL   bool   `env:"DB_USE_SSL" envDefault:"false"`
}

// AuthConfig holds the signing material for both token classes. The two
// secrets must differ so that one key class cannot forge the other.
type AuthConfig struct {
	AccessSecret    string        `env:"SECRET_KEY"`
	RefreshSecret   string        `env:"REFRESH_SECRET_KEY"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
}

type MQConfig struct {
	// Backend is one of "none", "rabbitmq" or "pubsub".
	Backend       string `env:"MQ_BACKEND" envDefault:"none"`
	EventsChannel string `env:"EVENTS_CHANNEL" envDefault:"bcal.events"`
	RabbitMQ      RabbitMQConfig
	PubSub        PubSubConfig
}

type RabbitMQConfig struct {
	URL             string `env:"RABBITMQ_URL"`
	QueueDurable    bool   `env:"RABBITMQ_QUEUE_DURABLE" envDefault:"true"`
	QueueAutoDelete bool   `env:"RABBITMQ_QUEUE_AUTO_DELETE" envDefault:"false"`
	PrefetchCount   int    `env:"RABBITMQ_PREFETCH_COUNT" envDefault:"10"`
}

type PubSubConfig struct {
	ProjectID          string `env:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string `env:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string `env:"PUBSUB_SUBSCRIPTION_SUFFIX" envDefault:"-sub"`
}

type StorageConfig struct {
	// Backend is one of "none", "minio" or "gcs".
	Backend string `env:"STORAGE_BACKEND" envDefault:"none"`
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" envDefault:"bcal-exports"`
	Region    string `env:"MINIO_REGION"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type GCSConfig struct {
	Bucket          string `env:"GCS_BUCKET"`
	ProjectID       string `env:"GCS_PROJECT_ID"`
	Location        string `env:"GCS_LOCATION" envDefault:"US"`
	CredentialsFile string `env:"GCS_CREDENTIALS_FILE"`
}

// LoadConfig reads the process environment, loading a .env file first in dev
// and test environments.
func LoadConfig() (Config, error) {
	switch os.Getenv("ENV") {
	case EnvDev, EnvTest:
		_ = godotenv.Load()
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// IsProduction reports whether cookies and other transport settings should
// be hardened for a production deployment.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate checks the settings the server cannot start without.
func (a AuthConfig) Validate() error {
	if a.AccessSecret == "" {
		return errors.New("SECRET_KEY is required")
	}
	if a.RefreshSecret == "" {
		return errors.New("REFRESH_SECRET_KEY is required")
	}
	if a.AccessSecret == a.RefreshSecret {
		return errors.New("SECRET_KEY and REFRESH_SECRET_KEY must differ")
	}
	if a.AccessTokenTTL <= 0 || a.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	return nil
}
