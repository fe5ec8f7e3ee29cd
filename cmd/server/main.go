package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/charmbracelet/log"

	"tunedrive/internal/app"
	"tunedrive/internal/config"
)

func main() {
	configPath := flag.String("config", "tunedrive.toml", "path to the TOML config file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "tunedrive",
	})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("configuration error", "err", err)
	}

	ctx := context.Background()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", "err", err)
	}

	// Resolve the archive root and load the playlist document in the
	// background so the server binds immediately. Until this finishes
	// /ready reports 503 and the first gated request retries the init.
	go func() {
		if err := application.Index.Init(ctx); err != nil {
			logger.Error("index initialization failed", "err", err)
		} else {
			logger.Info("playlist index ready")
		}
	}()

	logger.Info("listening", "addr", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, application.Handler); err != nil {
		logger.Fatal("server stopped", "err", err)
	}
}
