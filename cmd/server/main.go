package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stormcrm/backend/internal/config"
	"github.com/stormcrm/backend/internal/frontend"
	"github.com/stormcrm/backend/internal/notify"
	"github.com/stormcrm/backend/internal/source"
	"github.com/stormcrm/backend/internal/source/mock"
	"github.com/stormcrm/backend/internal/source/postgres"
	"github.com/stormcrm/backend/internal/sse"
)

func main() {
	mockMode := flag.Bool("mock", false, "Use generated demo data instead of the CRM database")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatal().Err(err).Str("path", *configPath).Msg("load config")
		}
		log.Warn().Str("path", *configPath).Msg("config file not found, using defaults")
		cfg = config.Default()
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}

	var sources []source.Source
	if *mockMode {
		log.Info().Msg("starting in mock mode (generated demo data)")
		sources = mock.Sources(time.Now())
	} else {
		db, err := postgres.Connect(cfg.Database.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("connect database")
		}
		defer db.Close()
		sources = postgres.Sources(db)
	}

	hub := notify.NewHub(sources, notify.Options{
		PollInterval: cfg.Stream.PollInterval,
		ResultLimit:  cfg.Stream.ResultLimit,
	})

	server := sse.NewServer(cfg, hub, frontend.Handler())
	srv := sse.NewHTTPServer(cfg.Server.Host, cfg.Server.Port, server.Routes())

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	// Close the stream connections first or Shutdown would wait out its
	// whole timeout on them; then drain, then the deferred db.Close runs.
	hub.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Err(err).Msg("graceful shutdown failed")
	}
}
