package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Run-parameter defaults. CLI flags and request parameters override these
// per run.
const (
	DefaultMerchant = "notonthehighstreet-com"
	DefaultMaxPages = 1
	DefaultMode     = "merge"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	DatabaseURL  string
	FeefoBaseURL string
	MerchantID   string
	MaxPages     int
	Port         string
}

// Load reads the .env file if present and returns a populated Config.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		FeefoBaseURL: getEnv("FEEFO_BASE_URL", ""),
		MerchantID:   getEnv("FEEFO_MERCHANT_ID", DefaultMerchant),
		MaxPages:     getEnvInt("FEEFO_MAX_PAGES", DefaultMaxPages),
		Port:         getEnv("PORT", "8080"),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
