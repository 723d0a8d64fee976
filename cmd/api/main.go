package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "resort_hub/internal/adapters/http_server"
	"resort_hub/internal/adapters/observability"
	"resort_hub/internal/adapters/rabbitmq"
	"resort_hub/internal/app"
	"resort_hub/internal/bootstrap"
	"resort_hub/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "resort-api", cfg.LogLevel)

	if err := cfg.ValidateAPI(); err != nil {
		log.Fatal().Err(err).Str("env", cfg.AppEnv).Msg("refusing to start")
	}

	// deps
	st, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("store init failed")
	}
	defer st.Close()
	log.Info().Str("backend", cfg.StoreBackend).Msg("store ok")

	cache, counter, closeCache := bootstrap.OpenCache(ctx, cfg)
	defer closeCache()

	media, closeMedia, err := bootstrap.OpenMedia(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.MediaBackend).Msg("media store init failed")
	}
	defer closeMedia()

	resorts := app.NewResortService(st.Resorts, st.Files, st.Reviews, media, app.ReconcilerOptions{
		GeoRequired:       cfg.GeoRequired,
		PruneEmptyFiles:   cfg.PruneEmptyFiles,
		DeleteTimeout:     cfg.MediaDeleteTimeout,
		DeleteConcurrency: cfg.MediaDeleteParallel,
	}).WithCache(cache)

	if cfg.AMQPURL != "" {
		pub := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.OrphanQueue)
		defer func() { _ = pub.Close() }()
		resorts.WithOrphanSink(pub)
		log.Info().Str("queue", cfg.OrphanQueue).Msg("orphaned media will be queued")
	} else {
		log.Warn().Msg("AMQP_URL not set; failed remote deletes are only logged")
	}

	auth, err := app.NewAuthService(st.Admins, app.AuthOptions{
		Secret:            cfg.JWTSecret,
		TokenTTL:          cfg.TokenTTL,
		BcryptCost:        cfg.BcryptCost,
		AllowRegistration: cfg.AllowRegistration,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("auth init failed")
	}

	h := &server.Handlers{
		Q:        app.NewQueryService(st.Resorts, st.Files, st.Reviews, cache, cfg.CacheTTL),
		Resorts:  resorts,
		Reviews:  app.NewReviewService(st.Resorts, st.Reviews, cache),
		Auth:     auth,
		Stats:    app.NewStatsService(counter),
		LoginRPS: cfg.LoginRPS,
	}

	// http
	srv := server.New(cfg.CORSOrigins)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(h)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(sctx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
