package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"

	"blackout-watch/internal/cache"
	"blackout-watch/internal/config"
	"blackout-watch/internal/database"
	"blackout-watch/internal/handlers"
)

func main() {
	// Load .env if present.
	_ = godotenv.Load()

	cfg := config.Load()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("timezone %q: %v", cfg.Timezone, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Database ---
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("database connected and migrated")

	// --- Redis snapshot cache ---
	snapCache, err := cache.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer snapCache.Close()
	log.Println("redis connected")

	// --- Fiber HTTP server ---
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New())

	h := &handlers.Handlers{DB: db, Cache: snapCache, Loc: loc}
	h.RegisterRoutes(app)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("fiber listen: %v", err)
		}
	}()
	log.Printf("api listening on :%s", cfg.Port)

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down api...")
	cancel()
	if err := app.Shutdown(); err != nil {
		log.Printf("fiber shutdown: %v", err)
	}
}
