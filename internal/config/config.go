// Package config holds the runtime configuration of the complaints backend.
// Values come from the environment; main loads a .env file first if present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full set of settings the server and admin CLI need.
type Config struct {
	HTTPAddr string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	// NotificationsBypass suppresses every outgoing notification (dev mode).
	NotificationsBypass bool
	TelegramBotToken    string

	UploadDir       string
	LocalizationDir string
	SweepInterval   time.Duration
}

// Load builds a Config from environment variables, applying defaults for
// everything a local docker-compose setup does not need to override.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBUser:           getEnv("DB_USER", "user"),
		DBPassword:       getEnv("DB_PASSWORD", "password"),
		DBName:           getEnv("DB_NAME", "complaintsdb"),
		DBPort:           getEnv("DB_PORT", "5432"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		UploadDir:        getEnv("UPLOAD_DIR", "storage/uploads"),
		LocalizationDir:  getEnv("LOCALIZATION_DIR", "internal/localization"),
		SweepInterval:    DefaultSweepInterval,
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		cfg.RedisDB = db
	}

	if v := os.Getenv("NOTIFICATIONS_BYPASS"); v != "" {
		bypass, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid NOTIFICATIONS_BYPASS %q: %w", v, err)
		}
		cfg.NotificationsBypass = bypass
	}

	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SWEEP_INTERVAL %q: %w", v, err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", d)
		}
		cfg.SweepInterval = d
	}

	if cfg.JWTSecret == "" {
		// Development default; production deployments must set JWT_SECRET.
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string for gorm.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
