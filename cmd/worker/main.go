package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/letya999/duty-bot/db"
	"github.com/letya999/duty-bot/internal/config"
	"github.com/letya999/duty-bot/services"
	"github.com/letya999/duty-bot/workers"
)

func main() {
	log.Println("Starting duty-bot workers...")

	configPath := os.Getenv("DUTYBOT_CONFIG_PATH")
	if err := config.LoadConfig(configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if config.App.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable (or config) is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := db.Connect(ctx, config.App.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()
	log.Println("Connected to database")

	auditService := services.NewAuditService(pg)
	escalationService := services.NewEscalationService(pg, auditService)
	statsService := services.NewStatsService(pg)

	var notifier services.Notifier = services.NopNotifier{}
	if config.App.SlackBotToken != "" {
		notifier = services.NewSlackNotifier(config.App.SlackBotToken)
	}

	sweeper := workers.NewEscalationSweeper(pg, escalationService, notifier, auditService,
		config.App.EscalationTimeout(), config.App.SweepInterval(), config.App.NotifyTimeout())

	statsWorker := workers.NewStatsWorker(statsService, config.App.StatsCron, config.App.Location())
	if err := statsWorker.Start(); err != nil {
		log.Fatalf("Failed to start stats worker: %v", err)
	}
	defer statsWorker.Stop()

	// Blocks until SIGINT/SIGTERM.
	sweeper.Run(ctx)
}
