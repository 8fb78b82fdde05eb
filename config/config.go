package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database    DatabaseConfig
	MinIO       MinIOConfig
	Kafka       KafkaConfig
	Auth        AuthConfig
	Upload      UploadConfig
	HTTPPort    string
	MetricsPort string
}

type DatabaseConfig struct {
	DBUser     string
	DBPassword string
	DBName     string
	DBHost     string
	DBPort     string
}

type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	PublicBucket    string
	PrivateBucket   string
	GalleryBucket   string
	// CallTimeout bounds every signing/probing call; it is independent of
	// any presigned URL's TTL.
	CallTimeout time.Duration
}

type KafkaConfig struct {
	Brokers string
	Topic   string
}

type AuthConfig struct {
	JWTSecret string
}

type UploadConfig struct {
	DefaultTTL  time.Duration
	MaxTTL      time.Duration
	OrphanAfter time.Duration
	SweepEvery  time.Duration
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, using environment")
	}
	defaultTTL := envDuration("UPLOAD_URL_TTL", 300*time.Second)
	return &Config{
		Database: DatabaseConfig{
			DBUser:     os.Getenv("DB_USER"),
			DBPassword: os.Getenv("DB_PASSWORD"),
			DBName:     os.Getenv("DB_NAME"),
			DBHost:     os.Getenv("DB_HOST"),
			DBPort:     os.Getenv("DB_PORT"),
		},
		MinIO: MinIOConfig{
			Endpoint:        os.Getenv("MINIO_ENDPOINT"),
			AccessKeyID:     os.Getenv("MINIO_ACCESS_KEY"),
			SecretAccessKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:          envBool("MINIO_USE_SSL", false),
			PublicBucket:    envString("MINIO_PUBLIC_BUCKET", "materials-public"),
			PrivateBucket:   envString("MINIO_PRIVATE_BUCKET", "materials-private"),
			GalleryBucket:   envString("MINIO_GALLERY_BUCKET", "materials-gallery"),
			CallTimeout:     envDuration("MINIO_CALL_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: os.Getenv("KAFKA_BROKERS"),
			Topic:   envString("KAFKA_ACCESS_TOPIC", "material.access"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Upload: UploadConfig{
			DefaultTTL:  defaultTTL,
			MaxTTL:      envDuration("UPLOAD_URL_MAX_TTL", time.Hour),
			OrphanAfter: envDuration("PENDING_ORPHAN_AFTER", orphanDefault(defaultTTL)),
			SweepEvery:  envDuration("PENDING_SWEEP_EVERY", 10*time.Minute),
		},
		HTTPPort:    envString("HTTP_PORT", "8080"),
		MetricsPort: envString("METRICS_PORT", "2112"),
	}
}

// orphanDefault keeps the reclamation window at twice the upload TTL but
// never below ten minutes, so a slow upload cannot race the sweeper.
func orphanDefault(ttl time.Duration) time.Duration {
	w := 2 * ttl
	if w < 10*time.Minute {
		w = 10 * time.Minute
	}
	return w
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return fallback
}
