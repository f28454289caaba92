package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"unichat/internal/domain"
	"unichat/internal/recordstore"
	"unichat/internal/relayd"
)

func main() {
	configPath := flag.String("config", "", "path to relayd.yaml (defaults apply when empty)")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := relayd.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer cleanup()

	srv := relayd.New(cfg, store, log)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("relay stopped")
	}
	log.Info().Msg("relay shut down")
}

func openStore(ctx context.Context, cfg relayd.Config) (domain.RecordStore, func(), error) {
	switch cfg.Store {
	case "postgres":
		pg, err := recordstore.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, func() { pg.Close() }, nil
	default:
		return recordstore.NewMemory(), func() {}, nil
	}
}
