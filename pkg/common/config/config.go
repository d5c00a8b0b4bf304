package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers      []string
	KafkaGroupID      string
	IngestionJobTopic string

	// Blob storage
	StorageBackend  string // "local" or "gcs"
	StorageLocalDir string
	StorageBucket   string

	// Upload limits
	MaxUploadBytes    int64
	AllowedExtensions []string

	// Pipeline
	SampleRows          int
	DistinctCap         int
	MaxRows             int64
	RecordBatchSize     int
	EnqueueRetries      int
	EnqueueRetryBackoff time.Duration
	PreviewLimit        int

	// Transform policy
	TransformPolicyPath string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: getInt64Env("MAX_REQUEST_BODY_BYTES", 110*1024*1024),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "datapilot"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "datapilot123"),
		PostgresDB:       getEnv("POSTGRES_DB", "datapilot"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "datapilot-platform"),
		IngestionJobTopic: getEnv("INGESTION_JOB_TOPIC", "ingestion-jobs"),

		StorageBackend:  getEnv("STORAGE_BACKEND", "local"),
		StorageLocalDir: getEnv("STORAGE_LOCAL_DIR", "./uploads"),
		StorageBucket:   getEnv("STORAGE_GCS_BUCKET", ""),

		MaxUploadBytes:    getInt64Env("MAX_UPLOAD_BYTES", 104857600), // 100MB
		AllowedExtensions: getStringSliceEnv("ALLOWED_EXTENSIONS", []string{"csv", "xlsx", "xls", "json"}),

		SampleRows:          getIntEnv("SCHEMA_SAMPLE_ROWS", 10),
		DistinctCap:         getIntEnv("STATS_DISTINCT_CAP", 10000),
		MaxRows:             getInt64Env("PIPELINE_MAX_ROWS", 1000000),
		RecordBatchSize:     getIntEnv("RECORD_BATCH_SIZE", 1000),
		EnqueueRetries:      getIntEnv("ENQUEUE_RETRIES", 3),
		EnqueueRetryBackoff: getDuration("ENQUEUE_RETRY_BACKOFF", 500*time.Millisecond),
		PreviewLimit:        getIntEnv("PREVIEW_LIMIT", 100),

		TransformPolicyPath: getEnv("TRANSFORM_POLICY_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
