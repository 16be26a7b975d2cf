package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Storage backends.
	DatabaseURL string // Postgres; when empty the embedded SQLite store is used
	SQLitePath  string

	// Raw object storage. AWS settings select S3; otherwise uploads land
	// under StorageDir.
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	StorageDir   string

	// Analysis collaborator.
	AIAPIKey string
	GenModel string

	JWTSecret string
	Port      string

	// Upload bounds.
	MinFileSize int64
	MaxFileSize int64

	// Pipeline knobs.
	Workers        int
	QueueSize      int
	JobTimeout     time.Duration
	ExtractTimeout time.Duration
	DedupPolicy    string

	// Cleanup windows.
	SweepInterval      time.Duration
	StalenessWindow    time.Duration
	ErrorRetention     time.Duration
	CompletedRetention time.Duration
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "resumelens.db"),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "resumelens-uploads"),
		StorageDir:   getEnv("STORAGE_DIR", "uploads"),

		AIAPIKey: getEnv("GEMINI_API_KEY", ""),
		GenModel: getEnv("GEN_MODEL", "gemini-1.5-flash"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		Port:      getEnv("PORT", "8080"),

		MinFileSize: getEnvInt64("MIN_FILE_SIZE", 1024),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 10<<20),

		Workers:        getEnvInt("WORKERS", 4),
		QueueSize:      getEnvInt("QUEUE_SIZE", 256),
		JobTimeout:     getEnvDur("JOB_TIMEOUT", 3*time.Minute),
		ExtractTimeout: getEnvDur("EXTRACT_TIMEOUT", 30*time.Second),
		DedupPolicy:    getEnv("DEDUP_POLICY", "reuse"),

		SweepInterval:      getEnvDur("SWEEP_INTERVAL", time.Hour),
		StalenessWindow:    getEnvDur("STALE_AFTER", 24*time.Hour),
		ErrorRetention:     getEnvDur("ERROR_RETENTION", 7*24*time.Hour),
		CompletedRetention: getEnvDur("COMPLETED_RETENTION", 30*24*time.Hour),
	}

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvInt64(key string, def int64) int64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvDur(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}
