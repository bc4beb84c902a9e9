package main

import (
	"context"
	"log"

	"github.com/samouzou/verza/app"
	"github.com/samouzou/verza/app/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := app.NewStore(cfg.DB)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.Migrate("migrations"); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	mailq, err := app.NewMailQueue(context.Background(), cfg.QueueURL)
	if err != nil {
		log.Fatalf("failed to init mail queue: %v", err)
	}

	// Feed live contract changes from Postgres into connected dashboards.
	hub := app.NewEventHub()
	go func() {
		if err := store.WatchContracts(context.Background(), hub.Publish); err != nil {
			log.Printf("contract watcher stopped: %v", err)
		}
	}()

	server := app.NewServer(store, app.NewPayments(cfg.Stripe), app.NewExtractor(cfg.OpenAI), mailq, hub, cfg)
	router, err := server.NewRouter()
	if err != nil {
		log.Fatalf("failed to initialize router: %v", err)
	}
	if err := router.Run("0.0.0.0:8080"); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
