package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the binaries need from the environment.
type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string

	// UploadDir is where accepted receipt images are kept until a scan
	// reaches status=done.
	UploadDir string

	// ArchiveBucket enables a best-effort GCS copy of every accepted
	// upload when non-empty.
	ArchiveBucket string

	// ParserModel is the Gemini model used for receipt extraction.
	ParserModel string
	// ParserTimeout bounds a single model call; a timeout is treated as a
	// parser failure.
	ParserTimeout time.Duration

	// QueueSize is the parse job channel buffer; WorkerCount the number of
	// concurrent parse workers.
	QueueSize   int
	WorkerCount int
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:   getEnv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=paragon port=5432 sslmode=disable"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		CORSOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "*"),
		UploadDir:     getEnv("UPLOAD_DIR", "static/uploads"),
		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),
		ParserModel:   getEnv("PARSER_MODEL", "gemini-2.5-flash"),
		ParserTimeout: getDuration("PARSER_TIMEOUT", 90*time.Second),
		QueueSize:     getInt("QUEUE_SIZE", 100),
		WorkerCount:   getInt("WORKER_COUNT", 5),
	}

	if cfg.JWTSecret == "" {
		log.Fatal("[FATAL] JWT_SECRET is not set; refusing to start")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[FATAL] JWT_SECRET must be at least 32 characters")
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[WARN] %s=%q is not an integer, using %d", key, v, def)
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[WARN] %s=%q is not a duration, using %s", key, v, def)
		return def
	}
	return d
}
