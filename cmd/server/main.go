package main

import (
	"context"
	"log"
	"os"

	"github.com/go-redis/redis/v8"

	"github.com/letya999/duty-bot/db"
	"github.com/letya999/duty-bot/internal/config"
	"github.com/letya999/duty-bot/router"
)

func main() {
	log.Println("Starting duty-bot API server...")

	configPath := os.Getenv("DUTYBOT_CONFIG_PATH")
	if err := config.LoadConfig(configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if config.App.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable (or config) is required")
	}

	pg, err := db.Connect(context.Background(), config.App.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()
	log.Println("Connected to database")

	opts, err := redis.ParseURL(config.App.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to ping redis: %v", err)
	}
	log.Println("Connected to redis")

	r := router.NewGinRouter(pg, rdb)
	if err := r.Run(":" + config.App.Port); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}
