package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port                    string
	AllowedOrigin           string
	DatabaseURL             string
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	AuthSecret              string
	BusinessTimezone        string
	InvoiceDir              string
	InvoiceRendererURL      string
	DaySalesCacheTTLSeconds int
	DaySalesRecomputeMins   int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cacheTTL, err := strconv.Atoi(getEnv("DAY_SALES_CACHE_TTL_SECONDS", "30"))
	if err != nil || cacheTTL < 1 {
		cacheTTL = 30
	}
	recompute, err := strconv.Atoi(getEnv("DAY_SALES_RECOMPUTE_MINUTES", "0"))
	if err != nil || recompute < 0 {
		recompute = 0
	}

	cfg := Config{
		Port:                    getEnv("PORT", "8080"),
		AllowedOrigin:           getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 redisDB,
		AuthSecret:              strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		BusinessTimezone:        getEnv("BUSINESS_TIMEZONE", "UTC"),
		InvoiceDir:              getEnv("INVOICE_DIR", "./invoices"),
		InvoiceRendererURL:      strings.TrimSpace(os.Getenv("INVOICE_RENDERER_URL")),
		DaySalesCacheTTLSeconds: cacheTTL,
		DaySalesRecomputeMins:   recompute,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location resolves the business timezone. Every day-sales boundary is
// computed in this one zone; an unknown name falls back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
