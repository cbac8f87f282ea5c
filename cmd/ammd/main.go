// Command ammd serves the NFT AMM over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/nft-amm/internal/app"
	"github.com/rovshanmuradov/nft-amm/internal/config"
	"github.com/rovshanmuradov/nft-amm/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting ammd",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("database", cfg.Database.Driver),
		zap.Bool("dev_mode", cfg.DevMode))

	runner, err := app.NewRunner(ctx, cfg, log.Logger)
	if err != nil {
		log.LogError("Failed to initialize", err)
		return err
	}

	serveErr := runner.Serve(ctx)
	if serveErr != nil {
		log.LogError("Server stopped with error", serveErr)
	}

	if err := runner.Close(context.Background()); err != nil && serveErr == nil {
		return err
	}
	return serveErr
}
