// The sweeper is the daily pass over all contracts: it reclassifies overdue
// rows and queues due-date reminder emails. It runs as its own process so
// API deploys never skip a sweep.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/samouzou/verza/app"
	"github.com/samouzou/verza/app/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.NewStore(cfg.DB)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer store.Close()

	mailq, err := app.NewMailQueue(ctx, cfg.QueueURL)
	if err != nil {
		log.Fatalf("failed to init mail queue: %v", err)
	}

	sweeper := app.NewSweeper(store, mailq, cfg.Mail, cfg.Sweep)
	interval := time.Duration(cfg.Sweep.IntervalHours) * time.Hour
	log.Printf("sweeper starting interval=%s window=%dd", interval, cfg.Sweep.ReminderWindowDays)
	sweeper.Run(ctx, interval)
	log.Print("sweeper stopped")
}
