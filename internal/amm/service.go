// Package amm is the service layer: every external query and command runs
// through Service, which owns the store transaction, the swap executor and
// the post-commit side effects (events, metrics, fill history).
package amm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/nft-amm/internal/continuation"
	"github.com/rovshanmuradov/nft-amm/internal/events"
	"github.com/rovshanmuradov/nft-amm/internal/global"
	"github.com/rovshanmuradov/nft-amm/internal/history"
	"github.com/rovshanmuradov/nft-amm/internal/index"
	"github.com/rovshanmuradov/nft-amm/internal/metrics"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/settlement"
	"github.com/rovshanmuradov/nft-amm/internal/storage"
	"github.com/rovshanmuradov/nft-amm/internal/swap"
)

// Config wires the service. Events, Metrics and History are optional.
type Config struct {
	Store     storage.Store
	Globals   global.Provider
	Royalties global.RoyaltyRegistry
	Logger    *zap.Logger

	Events  *events.Bus
	Metrics *metrics.Collector
	History *history.History

	SettlementOptions []settlement.DispatcherOption
	// NewAddress assigns pair addresses. Defaults to random uuids.
	NewAddress func() string
}

// Service serialises mutating requests; each one is a single store
// transaction. Queries run concurrently against read transactions.
type Service struct {
	mu sync.Mutex

	store     storage.Store
	globals   global.Provider
	royalties global.RoyaltyRegistry
	registry  *continuation.Registry
	executor  *swap.Executor
	logger    *zap.Logger

	events  *events.Bus
	metrics *metrics.Collector
	history *history.History

	newAddress func() string
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil || cfg.Globals == nil || cfg.Royalties == nil {
		return nil, errors.New("store, globals and royalties are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := continuation.NewRegistry(logger)
	opts := cfg.SettlementOptions
	if cfg.Metrics != nil {
		opts = append(opts, settlement.WithRetryObserver(cfg.Metrics))
	}
	dispatcher := settlement.NewDispatcher(registry, logger, opts...)

	newAddress := cfg.NewAddress
	if newAddress == nil {
		newAddress = uuid.NewString
	}

	s := &Service{
		store:      cfg.Store,
		globals:    cfg.Globals,
		royalties:  cfg.Royalties,
		registry:   registry,
		executor:   swap.NewExecutor(registry, dispatcher, logger),
		logger:     logger.Named("amm"),
		events:     cfg.Events,
		metrics:    cfg.Metrics,
		history:    cfg.History,
		newAddress: newAddress,
	}
	// a store reopened under different caps, min prices or royalties must
	// not serve quotes priced under the old ones
	stats, err := s.Reindex(context.Background())
	if err != nil {
		return nil, err
	}
	s.logger.Info("AMM service initialized", zap.Int("pairs", stats.Pairs))
	return s, nil
}

func (s *Service) resolve(ctx context.Context, collection, denom string) (*payout.Context, error) {
	return global.Resolve(ctx, s.globals, s.royalties, collection, denom)
}

// loadPair reads a pair and resolves the payout context it trades under.
func (s *Service) loadPair(ctx context.Context, tx storage.Tx, address string) (*pair.Pair, *payout.Context, error) {
	p, err := tx.Pairs().Get(ctx, address)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load pair %s: %w", address, err)
	}
	pc, err := s.resolve(ctx, p.Immutable.Collection, p.Immutable.Denom)
	if err != nil {
		return nil, nil, err
	}
	return p, pc, nil
}

// commitPair re-derives the cached quotes, stores the pair and republishes
// its index entries in the caller's transaction.
func commitPair(ctx context.Context, tx storage.Tx, pc *payout.Context, p *pair.Pair) error {
	p.Refresh(pc)
	if err := tx.Pairs().Save(ctx, p); err != nil {
		return fmt.Errorf("failed to save pair %s: %w", p.Address, err)
	}
	if err := index.Reconcile(ctx, tx.Index(), p); err != nil {
		return err
	}
	return nil
}

// transfer applies ledger legs directly. Owner operations do not need the
// settlement retry path: they run synchronously and fail as a whole.
func transfer(ctx context.Context, tx storage.Tx, legs ...settlement.Transfer) error {
	for _, t := range legs {
		if err := settlement.Apply(ctx, tx.Ledger(), t); err != nil {
			return fmt.Errorf("failed to transfer %s: %w", t, err)
		}
	}
	return nil
}

func (s *Service) publish(e events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(e); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("event_type", string(e.Type())),
			zap.Error(err))
	}
}

// Stats summarises the service's side channels for the status endpoint.
type Stats struct {
	PendingSettlements int                 `json:"pending_settlements"`
	Events             *events.Stats       `json:"events,omitempty"`
	History            *history.Statistics `json:"history,omitempty"`
}

func (s *Service) Stats() Stats {
	stats := Stats{PendingSettlements: s.registry.Pending()}
	if s.events != nil {
		es := s.events.Stats()
		stats.Events = &es
	}
	if s.history != nil {
		hs := s.history.Statistics()
		stats.History = &hs
	}
	return stats
}
