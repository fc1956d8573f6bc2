package middlewares

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"billing-gateway-backend/ratelimit"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

const apiKeyHeader = "X-Api-Key"

// RateLimitConfig wires the admission controller into the request path.
type RateLimitConfig struct {
	Limiter *ratelimit.Limiter
	// FailOpen controls what happens when the counter store is unreachable:
	// serve the request (availability) or reject with 503 (protection).
	FailOpen bool
	// StoreTimeout bounds the counter store call; it must never block a
	// request indefinitely.
	StoreTimeout time.Duration
	// JWTSecret lets authenticated tenants be tracked by their token subject
	// instead of their network address. Optional.
	JWTSecret []byte
}

// RateLimit admits or rejects every inbound request before any other
// handling. Rejections carry machine-readable reset metadata so callers can
// back off correctly.
func RateLimit(cfg RateLimitConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := resolveSubject(c, cfg.JWTSecret)

		ctx := c.UserContext()
		if cfg.StoreTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.StoreTimeout)
			defer cancel()
		}

		dec, err := cfg.Limiter.Allow(ctx, subject)
		if err != nil {
			log.Printf("rate limit store unavailable (fail-open=%v): %v", cfg.FailOpen, err)
			if cfg.FailOpen {
				return c.Next()
			}
			return fiber.NewError(fiber.StatusServiceUnavailable, "rate limiter unavailable")
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(dec.Reset.Unix(), 10))

		if !dec.Allowed {
			retryAfter := int(time.Until(dec.Reset).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", strconv.Itoa(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message":     "rate limit exceeded",
				"limit":       dec.Limit,
				"remaining":   0,
				"reset":       dec.Reset.Unix(),
				"retry_after": retryAfter,
			})
		}

		return c.Next()
	}
}

// resolveSubject picks the identity quota is tracked against: API key first,
// then the subject of a valid Bearer token, then the client IP as fallback.
func resolveSubject(c *fiber.Ctx, jwtSecret []byte) string {
	if key := strings.TrimSpace(c.Get(apiKeyHeader)); key != "" {
		return "key:" + key
	}

	if sub := bearerSubject(c.Get(fiber.HeaderAuthorization), jwtSecret); sub != "" {
		return "user:" + sub
	}

	return "ip:" + c.IP()
}

// bearerSubject extracts the subject claim from an HS256 Bearer token. Any
// parse or signature failure falls back to the IP subject; admission control
// identifies callers, it does not authenticate them.
func bearerSubject(header string, secret []byte) string {
	const prefix = "Bearer "
	if len(secret) == 0 || len(header) <= len(prefix) {
		return ""
	}
	if !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	raw := strings.TrimSpace(header[len(prefix):])

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	var claims jwt.RegisteredClaims
	token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil || !token.Valid {
		return ""
	}
	return strings.TrimSpace(claims.Subject)
}
