package main

import (
	"context"
	"log"

	"billing-gateway-backend/config"
	"billing-gateway-backend/database"
	"billing-gateway-backend/middlewares"
	"billing-gateway-backend/ratelimit"
	"billing-gateway-backend/reconciler"
	"billing-gateway-backend/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	// ---- Database
	database.Connect()
	if err := database.Migrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	// ---- Rate limit counter store
	var store ratelimit.Store
	switch cfg.RateLimitStore {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			// Fail-open/fail-closed policy decides per request; startup only warns.
			log.Printf("warning: could not reach redis at %s: %v", cfg.RedisAddr, err)
		}
		store = ratelimit.NewRedisStore(rdb)
	default:
		mem := ratelimit.NewMemoryStore()
		mem.StartJanitor(context.Background())
		store = mem
	}
	limiter := ratelimit.NewLimiter(store, cfg.RateLimitMax, cfg.RateLimitWindow, cfg.RateLimitOverrides)

	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    cfg.BodyLimitBytes,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Api-Key",
	}))

	// ---- Admission control in front of all other request handling
	app.Use(middlewares.RateLimit(middlewares.RateLimitConfig{
		Limiter:      limiter,
		FailOpen:     cfg.RateLimitFailOpen,
		StoreTimeout: cfg.StoreTimeout,
		JWTSecret:    []byte(cfg.JWTSecret),
	}))

	// ---- Routes
	svc := reconciler.NewServiceFromDB(database.DB)
	routes.Register(app, svc, cfg)

	// ---- Start
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
