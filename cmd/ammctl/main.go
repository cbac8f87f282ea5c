// Command ammctl runs a YAML batch of swap orders against the AMM state.
// Point it at the same database as ammd to trade against live pairs.
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
	"github.com/rovshanmuradov/nft-amm/internal/task"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file")
	tasksPath := flag.String("tasks", "configs/tasks.example.yaml", "path to the YAML tasks file")
	workers := flag.Int("workers", 1, "number of tasks executed concurrently")
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

	tasks, err := task.NewManager(log.Logger).LoadTasksYAML(*tasksPath)
	if err != nil {
		return err
	}

	runner, err := app.NewRunner(ctx, cfg, log.Logger)
	if err != nil {
		log.LogError("Failed to initialize", err)
		return err
	}
	defer func() {
		if err := runner.Close(context.Background()); err != nil {
			log.LogError("Failed to close", err)
		}
	}()

	outcomes, runErr := task.NewExecutor(runner.Service(), log.Logger, *workers).Run(ctx, tasks)

	failed := 0
	for _, o := range outcomes {
		if o.Task == nil {
			continue
		}
		if o.Err != nil {
			failed++
			fmt.Printf("%-20s %-4s FAILED  %v\n", o.Task.Name, o.Task.Operation, o.Err)
			continue
		}
		fmt.Printf("%-20s %-4s filled=%d skipped=%d volume=%s (%s)\n",
			o.Task.Name, o.Task.Operation,
			len(o.Result.Fills), len(o.Result.Skipped), o.Result.Volume.Dec(), o.Duration)
		for _, f := range o.Result.Fills {
			fmt.Printf("    unit %d  token %-10s pair %s  price %s\n", f.Unit, f.TokenID, f.Pair, f.Price.Dec())
		}
	}

	log.Info("Batch finished", zap.Int("tasks", len(tasks)), zap.Int("failed", failed))
	if runErr != nil {
		return runErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(tasks))
	}
	return nil
}
