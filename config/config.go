package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every deployment knob. It is loaded once at startup; nothing
// else in the codebase reads the environment directly.
type Config struct {
	Port           string
	BodyLimitBytes int
	AllowedOrigins string

	// Admission control
	RateLimitMax      int
	RateLimitWindow   time.Duration
	RateLimitFailOpen bool
	// RateLimitOverrides maps a subject to its own per-window limit
	// (higher-tier tenants). Parsed from "subject:limit,subject:limit".
	RateLimitOverrides map[string]int
	RateLimitStore     string // "memory" or "redis"
	StoreTimeout       time.Duration
	RedisAddr          string

	// Webhook reconciliation
	WebhookToken       string
	WebhookTokenHeader string

	// JWT secret used only to resolve a stable rate-limit subject from
	// Bearer tokens issued by the surrounding application.
	JWTSecret string
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}

	return &Config{
		Port:           envStr("PORT", "8080"),
		BodyLimitBytes: envInt("BODY_LIMIT_BYTES", 4*1024*1024),
		AllowedOrigins: envStr("ALLOWED_ORIGINS", "*"),

		RateLimitMax:       envInt("RATE_LIMIT_MAX", 60),
		RateLimitWindow:    time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		RateLimitFailOpen:  envBool("RATE_LIMIT_FAIL_OPEN", true),
		RateLimitOverrides: parseOverrides(envStr("RATE_LIMIT_OVERRIDES", "")),
		RateLimitStore:     envStr("RATE_LIMIT_STORE", "memory"),
		StoreTimeout:       time.Duration(envInt("RATE_LIMIT_STORE_TIMEOUT_MS", 500)) * time.Millisecond,
		RedisAddr:          envStr("REDIS_ADDR", "localhost:6379"),

		WebhookToken:       envStr("WEBHOOK_TOKEN", ""),
		WebhookTokenHeader: envStr("WEBHOOK_TOKEN_HEADER", "asaas-access-token"),

		JWTSecret: envStr("JWT_SECRET_KEY", os.Getenv("JWT_SECRET")),
	}
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// parseOverrides parses "tenant-a:120,tenant-b:600" into a limit map.
// Malformed pairs are skipped with a log line rather than aborting startup.
func parseOverrides(raw string) map[string]int {
	out := make(map[string]int)
	if strings.TrimSpace(raw) == "" {
		return out
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			log.Printf("skipping malformed rate limit override %q", pair)
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || n <= 0 {
			log.Printf("skipping malformed rate limit override %q", pair)
			continue
		}
		out[strings.TrimSpace(parts[0])] = n
	}
	return out
}
