package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	defaultMaxImages   = 10
	defaultTTLSeconds  = 86400
	defaultUploadBytes = 10 * 1024 * 1024 // 10 MiB
)

type Config struct {
	Host string
	Port string

	AuthSecret             string
	SessionCookieName      string
	SessionTTLSeconds      int
	AdminBootstrapPassword string

	DefaultMaxImages int
	MaxUploadBytes   int64
	AllowedMimeTypes []string

	NodeID     string
	Production bool

	// KV backend: memory | redis | postgres
	KVBackend     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string

	// Blob backend: local | s3
	BlobBackend string
	BlobPath    string
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	authSecret := getEnv("AUTH_SECRET", "")
	if authSecret == "" {
		log.Fatal("AUTH_SECRET environment variable is required")
	}

	return &Config{
		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnv("PORT", "8080"),

		AuthSecret:             authSecret,
		SessionCookieName:      getEnv("AUTH_SESSION_COOKIE", "r1-session"),
		SessionTTLSeconds:      getEnvInt("AUTH_SESSION_TTL_SECONDS", defaultTTLSeconds),
		AdminBootstrapPassword: getEnv("ADMIN_BOOTSTRAP_PASSWORD", ""),

		DefaultMaxImages: getEnvInt("DEFAULT_MAX_IMAGES", defaultMaxImages),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", defaultUploadBytes)),
		AllowedMimeTypes: []string{"image/png", "image/jpeg", "image/tiff"},

		NodeID:     getEnv("NODE_ID", "unknown-node"),
		Production: getEnv("ENV", "development") == "production",

		KVBackend:     getEnv("KV_BACKEND", "memory"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		BlobBackend: getEnv("BLOB_BACKEND", "local"),
		BlobPath:    getEnv("BLOB_PATH", "./blobs"),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Bucket:    getEnv("S3_BUCKET", "imgshare"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
	}
}

func getEnv(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
