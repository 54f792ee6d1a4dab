package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string

	// Upstream inference service
	InferenceURL  string
	EndpointName  string
	ClientTimeout time.Duration

	// Queued-poll behavior
	MaxPollAttempts int
	PollBackoff     time.Duration

	// Uploads
	UploadDir string
}

func LoadConfig() *Config {
	// Best effort; real env vars win over .env entries
	_ = godotenv.Load()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		// Inference service
		InferenceURL:  getEnv("INFERENCE_URL", ""),
		EndpointName:  getEnv("INFERENCE_ENDPOINT", "predict"),
		ClientTimeout: time.Duration(getEnvInt("CLIENT_TIMEOUT_SEC", 120)) * time.Second,

		// Polling
		MaxPollAttempts: getEnvInt("MAX_POLL_ATTEMPTS", 12),
		PollBackoff:     time.Duration(getEnvInt("POLL_BACKOFF_MS", 2000)) * time.Millisecond,

		// Uploads
		UploadDir: getEnv("UPLOAD_DIR", os.TempDir()),
	}

	// Validate required config
	if cfg.InferenceURL == "" {
		log.Fatal("INFERENCE_URL must be set")
	}
	if cfg.MaxPollAttempts < 1 {
		log.Fatal("MAX_POLL_ATTEMPTS must be at least 1")
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Invalid value for %s: %q, using default %d", key, value, defaultValue)
	}
	return defaultValue
}
