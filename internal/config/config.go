package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DB      DBConfig
	Storage StorageConfig
	JWT     JWTConfig
	Server  ServerConfig
	Delete  DeleteConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type StorageConfig struct {
	// Backend selects the object-store client: "minio" or "s3".
	Backend        string
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	Region         string
	UseSSL         bool
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port string
}

type DeleteConfig struct {
	// AttemptTimeout bounds each individual object-store delete attempt.
	// A timed-out attempt counts as a transient failure eligible for the
	// single retry, which gets a fresh deadline.
	AttemptTimeout time.Duration
	// TreeBatchSize bounds the ids per frontier query during folder
	// tree expansion.
	TreeBatchSize int
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "teamvault"),
			Password: getEnv("DB_PASSWORD", "teamvault_secret"),
			Name:     getEnv("DB_NAME", "teamvault"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", "minio"),
			Endpoint:       getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			PublicEndpoint: getEnv("STORAGE_PUBLIC_ENDPOINT", getEnv("STORAGE_ENDPOINT", "localhost:9000")),
			AccessKey:      getEnv("STORAGE_ACCESS_KEY", "teamvault"),
			SecretKey:      getEnv("STORAGE_SECRET_KEY", "teamvault_secret"),
			Bucket:         getEnv("STORAGE_BUCKET", "teamvault"),
			Region:         getEnv("STORAGE_REGION", ""),
			UseSSL:         getEnvAsBool("STORAGE_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Delete: DeleteConfig{
			AttemptTimeout: getEnvAsDuration("DELETE_ATTEMPT_TIMEOUT", 30*time.Second),
			TreeBatchSize:  getEnvAsInt("DELETE_TREE_BATCH_SIZE", 50),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
