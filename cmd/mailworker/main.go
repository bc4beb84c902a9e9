// The mail worker drains the outbound mail queue and delivers each message
// through the email provider. Delivery is at-least-once: failed sends stay
// on the queue for redelivery.
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

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

	queue, err := app.NewMailQueue(ctx, cfg.QueueURL)
	if err != nil {
		log.Fatalf("failed to init mail queue: %v", err)
	}

	mailer := app.NewSendGridMailer(cfg.Mail)
	if err := queue.Consume(ctx, mailer.Send); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("mail worker stopped: %v", err)
	}
	log.Print("mail worker stopped")
}
