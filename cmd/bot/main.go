package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"blackout-watch/internal/bot"
	"blackout-watch/internal/cache"
	"blackout-watch/internal/config"
	"blackout-watch/internal/database"
	"blackout-watch/internal/mq"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	if cfg.BotToken == "" {
		log.Fatal("BOT_TOKEN is required. Get one from @BotFather on Telegram.")
	}

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

	// --- Redis snapshot cache (read-only here, for /schedule) ---
	snapCache, err := cache.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer snapCache.Close()
	log.Println("redis connected")

	// --- RabbitMQ ---
	consumer, err := mq.NewConsumer(ctx, cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("rabbitmq consumer: %v", err)
	}
	defer consumer.Close()
	log.Println("rabbitmq connected")

	// --- Telegram bot ---
	tgBot, err := bot.New(cfg.BotToken, db, snapCache, loc, cfg.CheckIntervalMin)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	go tgBot.Start()
	defer tgBot.Stop()
	log.Println("telegram bot started")

	// --- RabbitMQ listener ---
	l := newListener(tgBot.TeleBot(), consumer)
	go l.start(ctx)
	log.Println("rabbitmq listener started")

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down bot service...")
	cancel()
}
