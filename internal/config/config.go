// Package config collects the environment configuration read once at
// process start and passed to each component.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds every tunable the binaries read from the environment.
type Config struct {
	// Vector index
	QdrantHost string
	QdrantPort int

	// Document store
	MongoURI      string
	MongoDatabase string

	// Oracle
	OracleModel string

	// Translation
	TranslateEndpoint string

	// Pipeline tuning
	ChunkSize     int
	ChunkOverlap  int
	Workers       int
	OCRWorkers    int
	OCRLanguages  string
	CallTimeout   time.Duration
	UploadDir     string

	// HTTP server
	HTTPAddr string
}

// Load reads configuration from the environment, applying defaults for
// everything optional.
func Load() *Config {
	return &Config{
		QdrantHost:        getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:        getEnvInt("QDRANT_PORT", 6334),
		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:     getEnv("MONGO_DATABASE", "quizrag"),
		OracleModel:       getEnv("ORACLE_MODEL", ""),
		TranslateEndpoint: getEnv("TRANSLATE_ENDPOINT", ""),
		ChunkSize:         getEnvInt("CHUNK_SIZE", 5012),
		ChunkOverlap:      getEnvInt("CHUNK_OVERLAP", 200),
		Workers:           getEnvInt("PIPELINE_WORKERS", 4),
		OCRWorkers:        getEnvInt("OCR_WORKERS", 4),
		OCRLanguages:      getEnv("OCR_LANGUAGES", ""),
		CallTimeout:       getEnvDuration("CALL_TIMEOUT", 30*time.Second),
		UploadDir:         getEnv("UPLOAD_DIR", "static"),
		HTTPAddr:          getEnv("HTTP_ADDR", "0.0.0.0:8080"),
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
