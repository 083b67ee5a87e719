package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBFile          string
	APIAddr         string
	BaseURL         string
	RedisAddr       string // empty means process-local presence registry
	HistoryPageSize int
	StoryTTL        time.Duration
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string
}

func Load() (*Config, error) {
	storyTTL, err := time.ParseDuration(getEnv("STORY_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORY_TTL: %w", err)
	}

	pageSize, err := strconv.Atoi(getEnv("HISTORY_PAGE_SIZE", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid HISTORY_PAGE_SIZE: %w", err)
	}

	cfg := &Config{
		DBFile:          getEnv("SPHERE_DB", "sphere.db"),
		APIAddr:         getEnv("API_ADDR", ":8080"),
		BaseURL:         getEnv("BASE_URL", "http://localhost:8080"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		HistoryPageSize: pageSize,
		StoryTTL:        storyTTL,
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		VAPIDSubscriber: getEnv("VAPID_SUBSCRIBER", "mailto:admin@localhost"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HistoryPageSize <= 0 {
		return fmt.Errorf("HISTORY_PAGE_SIZE must be greater than 0")
	}

	if c.StoryTTL <= 0 {
		return fmt.Errorf("STORY_TTL must be greater than 0")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
