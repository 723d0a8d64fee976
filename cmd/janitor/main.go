package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"resort_hub/internal/adapters/observability"
	"resort_hub/internal/adapters/rabbitmq"
	"resort_hub/internal/app"
	"resort_hub/internal/bootstrap"
	"resort_hub/internal/domain"
	"resort_hub/internal/shared"
)

// janitor drains the orphaned-media queue, retrying remote deletes that
// failed while the API reconciled a resort.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "resort-janitor", cfg.LogLevel)

	if cfg.AMQPURL == "" {
		log.Fatal().Msg("AMQP_URL is required")
	}

	observability.Serve(observability.InitRegistry())

	media, closeMedia, err := bootstrap.OpenMedia(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.MediaBackend).Msg("media store init failed")
	}
	defer closeMedia()
	if media == nil {
		log.Fatal().Msg("janitor needs a media backend; MEDIA_BACKEND=none")
	}

	pub := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.OrphanQueue)
	defer func() { _ = pub.Close() }()

	j := app.NewOrphanJanitor(media, cfg.MediaDeleteTimeout, cfg.JanitorMaxAttempts).
		WithRetryDelay(cfg.JanitorRetryDelay)

	log.Info().
		Str("queue", cfg.OrphanQueue).
		Int("workers", cfg.JanitorWorkers).
		Int("max_attempts", cfg.JanitorMaxAttempts).
		Msg("janitor starting")

	cons := rabbitmq.NewConsumer(cfg.AMQPURL, cfg.OrphanQueue, cfg.JanitorWorkers)
	err = cons.Run(ctx, func(ctx context.Context, o domain.OrphanedMedia) error {
		outcome, err := j.Process(ctx, o, pub)
		if err != nil {
			return err
		}
		observability.ObserveOrphan(outcome)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("consumer stopped")
	}
	log.Info().Msg("janitor stopped")
}
