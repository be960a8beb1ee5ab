package config

import (
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host              string
	Port              string
	Env               string
	StoragePath       string
	WebDir            string
	MessageLimit      int
	RetentionSchedule string
	ShutdownTimeout   time.Duration
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func Load() *Config {
	log.Println("[CONFIG] Attempting to load .env file...")

	err := godotenv.Load()
	if err != nil {
		log.Println("[CONFIG] No .env file found, relying on system environment variables")
	} else {
		log.Println("[CONFIG] Successfully loaded .env file")
	}

	cfg := &Config{
		Host:              getEnv("HOST", "0.0.0.0"),
		Port:              getEnv("PORT", "3000"),
		Env:               getEnv("APP_ENV", "development"),
		StoragePath:       getEnv("STORAGE_PATH", "storage/data/data.json"),
		WebDir:            getEnv("WEB_DIR", "web"),
		MessageLimit:      getEnvInt("MESSAGE_LIMIT", 0),
		RetentionSchedule: getEnv("RETENTION_SCHEDULE", "0 3 * * *"),
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.MessageLimit < 0 {
		log.Printf("[CONFIG] MESSAGE_LIMIT %d is negative, retention disabled", cfg.MessageLimit)
		cfg.MessageLimit = 0
	}

	log.Printf("[CONFIG] Environment: %s", cfg.Env)
	log.Printf("[CONFIG] Target address: %s", cfg.Addr())
	log.Printf("[CONFIG] Storage file: %s", cfg.StoragePath)
	log.Println("[CONFIG] All configuration variables successfully initialized")
	return cfg
}

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		log.Printf("[CONFIG] Variable %s not found, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvInt(key string, defaultValue int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("[CONFIG] Variable %s=%q is not an integer, using default: %d", key, raw, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		log.Printf("[CONFIG] Variable %s=%q is not a positive duration, using default: %s", key, raw, defaultValue)
		return defaultValue
	}
	return value
}
