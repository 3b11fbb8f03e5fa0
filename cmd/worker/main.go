package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"blackout-watch/internal/alerts"
	"blackout-watch/internal/cache"
	"blackout-watch/internal/checker"
	"blackout-watch/internal/config"
	"blackout-watch/internal/database"
	"blackout-watch/internal/mq"
	"blackout-watch/internal/provider"
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

	// --- RabbitMQ ---
	publisher, err := mq.NewPublisher(ctx, cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("rabbitmq publisher: %v", err)
	}
	defer publisher.Close()
	log.Println("rabbitmq connected")

	sink := mq.NewSink(publisher)
	prov := provider.NewClient(cfg.ParserServiceURL)

	// --- Schedule checker ---
	chk := checker.New(db, prov, snapCache, sink, loc, checker.Options{
		LoopInterval: time.Duration(cfg.CheckLoopSec) * time.Second,
		RetryDelay:   time.Duration(cfg.RetryDelayMin) * time.Minute,
		Concurrency:  cfg.FetchConcurrency,
	})

	// --- Lead-time alert scheduler ---
	alerter := alerts.New(db, snapCache, sink, loc, time.Duration(cfg.AlertLoopSec)*time.Second)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		chk.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		alerter.Run(ctx)
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down worker...")
	cancel()
	// Let an in-progress cycle finish before closing connections.
	wg.Wait()
}
