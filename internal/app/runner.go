// Package app assembles the AMM service from configuration for the
// command line tools.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/nft-amm/internal/amm"
	"github.com/rovshanmuradov/nft-amm/internal/api"
	"github.com/rovshanmuradov/nft-amm/internal/config"
	"github.com/rovshanmuradov/nft-amm/internal/events"
	"github.com/rovshanmuradov/nft-amm/internal/global"
	"github.com/rovshanmuradov/nft-amm/internal/history"
	"github.com/rovshanmuradov/nft-amm/internal/metrics"
	"github.com/rovshanmuradov/nft-amm/internal/settlement"
	"github.com/rovshanmuradov/nft-amm/internal/storage"
	"github.com/rovshanmuradov/nft-amm/internal/storage/memory"
	"github.com/rovshanmuradov/nft-amm/internal/storage/sqldb"
)

// Runner owns the service and the components around it.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	bus      *events.Bus
	service  *amm.Service
	shutdown *ShutdownHandler
}

// NewRunner opens the store and builds the service. Close releases
// everything NewRunner acquired, also when it fails halfway.
func NewRunner(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	r := &Runner{
		cfg:      cfg,
		logger:   logger.Named("runner"),
		registry: prometheus.NewRegistry(),
		shutdown: NewShutdownHandler(logger, cfg.HTTP.ShutdownTimeout),
	}
	if err := r.build(ctx); err != nil {
		_ = r.Close(context.Background())
		return nil, err
	}
	return r, nil
}

func (r *Runner) build(ctx context.Context) error {
	gc, err := r.cfg.Global.Build()
	if err != nil {
		return fmt.Errorf("failed to parse global config: %w", err)
	}
	globals, err := global.NewStaticProvider(gc)
	if err != nil {
		return err
	}
	royalties, err := r.cfg.RoyaltyRegistry()
	if err != nil {
		return err
	}

	store, err := OpenStore(ctx, r.cfg.Database, r.logger)
	if err != nil {
		return err
	}
	r.shutdown.AddCloser("store", store.Close)

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(r.registry)

	r.bus = events.NewBus(r.logger, r.cfg.Events.BufferSize, events.WithWorkers(r.cfg.Events.Workers))
	r.shutdown.Add("event_bus", r.bus.Shutdown)
	r.subscribeLogging()

	hist, err := history.New(r.cfg.History.Dir, r.cfg.History.MaxRecords, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open fill history: %w", err)
	}
	r.shutdown.AddCloser("history", hist.Close)

	r.service, err = amm.NewService(amm.Config{
		Store:     store,
		Globals:   globals,
		Royalties: royalties,
		Logger:    r.logger,
		Events:    r.bus,
		Metrics:   collector,
		History:   hist,
		SettlementOptions: []settlement.DispatcherOption{
			settlement.WithRetries(r.cfg.Settlement.MaxTries, r.cfg.Settlement.InitialInterval),
		},
	})
	return err
}

// subscribeLogging logs committed pair creations and swap batches.
func (r *Runner) subscribeLogging() {
	log := r.logger.Named("events")
	r.bus.SubscribeFunc(func(_ context.Context, e events.Event) error {
		switch ev := e.(type) {
		case events.PairCreatedEvent:
			log.Info("Pair created",
				zap.String("pair", ev.Pair),
				zap.String("collection", ev.Collection),
				zap.String("owner", ev.Owner))
		case events.SwapBatchCompletedEvent:
			log.Info("Swap batch completed",
				zap.String("operation_id", ev.OperationID),
				zap.String("collection", ev.Collection),
				zap.String("direction", string(ev.Direction)),
				zap.Int("fills", ev.Fills),
				zap.Int("skipped", ev.Skipped),
				zap.String("volume", ev.Volume.Dec()))
		case events.SwapBatchFailedEvent:
			log.Warn("Swap batch failed",
				zap.String("operation_id", ev.OperationID),
				zap.String("collection", ev.Collection),
				zap.Error(ev.Error))
		}
		return nil
	}, events.PairCreated, events.SwapBatchCompleted, events.SwapBatchFailed)
}

// OpenStore opens the configured backend.
func OpenStore(ctx context.Context, cfg sqldb.Config, logger *zap.Logger) (storage.Store, error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("Using in-memory store; state is lost on exit")
		return memory.New(), nil
	}
	store, err := sqldb.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Driver, err)
	}
	return store, nil
}

func (r *Runner) Service() *amm.Service {
	return r.service
}

// Serve runs the HTTP API until ctx is cancelled, then drains it.
func (r *Runner) Serve(ctx context.Context) error {
	server := api.New(api.Config{
		ReadTimeout:  r.cfg.HTTP.ReadTimeout,
		WriteTimeout: r.cfg.HTTP.WriteTimeout,
		DevMode:      r.cfg.DevMode,
	}, r.service, r.registry, r.logger)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Listen(r.cfg.HTTP.Addr); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		r.logger.Info("Stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close shuts the components down in reverse order of creation.
func (r *Runner) Close(ctx context.Context) error {
	return r.shutdown.Shutdown(ctx)
}
