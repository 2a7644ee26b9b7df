package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"eduadmin-sync/internal/config"
	"eduadmin-sync/internal/logging"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the YAML config file")
		once       = flag.Bool("once", false, "run a single import and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	a, err := newApp(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		stats, err := a.engine.Run(ctx)
		if err != nil {
			logging.Error().Err(err).Msg("import failed")
			a.Close()
			os.Exit(1)
		}
		fmt.Printf("imported=%d updated=%d events_added=%d events_updated=%d events_removed=%d\n",
			stats.Imported, stats.Updated, stats.EventsAdded, stats.EventsUpdated, stats.EventsRemoved)
		return
	}

	logging.Info().
		Str("addr", cfg.HTTP.Addr).
		Dur("interval", cfg.Import.Interval).
		Msg("eduadmin-sync starting")
	if err := a.supervisor().Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor stopped")
	}
	logging.Info().Msg("eduadmin-sync stopped")
}
