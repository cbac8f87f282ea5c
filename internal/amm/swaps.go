package amm

import (
	"context"
	"errors"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/nft-amm/internal/events"
	"github.com/rovshanmuradov/nft-amm/internal/history"
	"github.com/rovshanmuradov/nft-amm/internal/logger"
	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/storage"
	"github.com/rovshanmuradov/nft-amm/internal/swap"
	"github.com/rovshanmuradov/nft-amm/internal/types"
)

// swapRequest is what the post-commit bookkeeping needs to know about a swap.
type swapRequest struct {
	operation  string
	sender     string
	collection string
	denom      string
	direction  types.Direction
	robust     bool
}

// runSwap executes fn in one write transaction. Fills are recorded only
// after the transaction commits.
func (s *Service) runSwap(
	ctx context.Context,
	req swapRequest,
	fn func(tx storage.Tx, pc *payout.Context) (*swap.Result, error),
) (*swap.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, operationID := logger.StartOperation(s.logger, req.operation)
	log = log.With(
		zap.String("collection", req.collection),
		zap.String("denom", req.denom),
		zap.String("sender", req.sender))
	start := time.Now()

	var result *swap.Result
	pc, err := s.resolve(ctx, req.collection, req.denom)
	if err == nil {
		err = s.store.Update(ctx, func(tx storage.Tx) error {
			var err error
			result, err = fn(tx, pc)
			return err
		})
	}

	if s.metrics != nil {
		s.metrics.RecordSwap(ctx, req.direction, req.robust, time.Since(start), err)
	}
	if err != nil {
		log.Warn("Swap rolled back", zap.Error(err))
		s.publish(events.SwapBatchFailedEvent{
			BaseEvent:   events.NewBase(events.SwapBatchFailed),
			OperationID: operationID,
			Collection:  req.collection,
			Direction:   req.direction,
			Error:       err,
		})
		return nil, err
	}

	s.recordFills(log, req, result)
	log.Info("Swap committed",
		zap.Int("fills", len(result.Fills)),
		zap.Int("skipped", len(result.Skipped)),
		zap.String("volume", result.Volume.Dec()),
		zap.Duration("duration", time.Since(start)))

	s.publish(events.SwapBatchCompletedEvent{
		BaseEvent:   events.NewBase(events.SwapBatchCompleted),
		OperationID: operationID,
		Collection:  req.collection,
		Direction:   req.direction,
		Fills:       len(result.Fills),
		Skipped:     len(result.Skipped),
		Volume:      result.Volume,
	})
	return result, nil
}

func (s *Service) recordFills(log *zap.Logger, req swapRequest, result *swap.Result) {
	for i := range result.Fills {
		f := &result.Fills[i]
		gross := f.Summary.Total()

		if s.history != nil {
			rec := history.NewRecord(f.CorrelationID.String(), req.sender, f.Pair, req.collection, req.denom,
				f.Direction, f.TokenID, &f.Price, &f.Summary)
			if err := s.history.Log(rec); err != nil {
				log.Error("Failed to record fill", zap.String("pair", f.Pair), zap.Error(err))
			}
		}
		if s.metrics != nil {
			s.metrics.RecordFill(f.Direction, req.collection, req.denom, gross)
		}
		s.publish(events.SwapExecutedEvent{
			BaseEvent:     events.NewBase(events.SwapExecuted),
			CorrelationID: f.CorrelationID.String(),
			Pair:          f.Pair,
			Collection:    req.collection,
			Denom:         req.denom,
			Direction:     f.Direction,
			TokenID:       f.TokenID,
			Trader:        req.sender,
			Price:         f.Price,
			Gross:         *gross,
		})
	}
	if s.metrics != nil {
		s.metrics.RecordSkipped(req.direction, len(result.Skipped))
	}
}

// SwapNftsForTokens sells NFTs to the best bidding pairs.
func (s *Service) SwapNftsForTokens(ctx context.Context, req swap.SellRequest) (*swap.Result, error) {
	return s.runSwap(ctx, swapRequest{
		operation:  "swap_nfts_for_tokens",
		sender:     req.Sender,
		collection: req.Collection,
		denom:      req.Denom,
		direction:  types.SellToPair,
		robust:     req.Params.Robust,
	}, func(tx storage.Tx, pc *payout.Context) (*swap.Result, error) {
		return s.executor.SwapNftsForTokens(ctx, tx, pc, req)
	})
}

// SwapTokensForNfts buys NFTs from the cheapest pairs.
func (s *Service) SwapTokensForNfts(ctx context.Context, req swap.BuyRequest) (*swap.Result, error) {
	return s.runSwap(ctx, swapRequest{
		operation:  "swap_tokens_for_nfts",
		sender:     req.Sender,
		collection: req.Collection,
		denom:      req.Denom,
		direction:  types.BuyFromPair,
		robust:     req.Params.Robust,
	}, func(tx storage.Tx, pc *payout.Context) (*swap.Result, error) {
		return s.executor.SwapTokensForNfts(ctx, tx, pc, req)
	})
}

// SwapNftForTokens sells one NFT to a chosen pair.
func (s *Service) SwapNftForTokens(ctx context.Context, req swap.DirectSellRequest) (*swap.Fill, error) {
	return s.runDirect(ctx, "swap_nft_for_tokens", req.Sender, req.Pair, types.SellToPair,
		func(tx storage.Tx, pc *payout.Context) (*swap.Fill, error) {
			return s.executor.SwapNftForTokens(ctx, tx, pc, req)
		})
}

// SwapTokensForNft buys a specific NFT, or the lowest id when TokenID is
// empty, from a chosen pair.
func (s *Service) SwapTokensForNft(ctx context.Context, req swap.DirectBuyRequest) (*swap.Fill, error) {
	return s.runDirect(ctx, "swap_tokens_for_nft", req.Sender, req.Pair, types.BuyFromPair,
		func(tx storage.Tx, pc *payout.Context) (*swap.Fill, error) {
			return s.executor.SwapTokensForNft(ctx, tx, pc, req)
		})
}

// runDirect resolves the pair's collection and denom before running the
// direct swap through the batch bookkeeping.
func (s *Service) runDirect(
	ctx context.Context,
	operation, sender, address string,
	d types.Direction,
	fn func(tx storage.Tx, pc *payout.Context) (*swap.Fill, error),
) (*swap.Fill, error) {
	if sender == "" || address == "" {
		return nil, invalid("sender and pair are required")
	}
	p, err := s.GetPair(ctx, address)
	if err != nil {
		return nil, err
	}

	result, err := s.runSwap(ctx, swapRequest{
		operation:  operation,
		sender:     sender,
		collection: p.Immutable.Collection,
		denom:      p.Immutable.Denom,
		direction:  d,
	}, func(tx storage.Tx, pc *payout.Context) (*swap.Result, error) {
		fill, err := fn(tx, pc)
		if err != nil {
			return nil, err
		}
		return &swap.Result{Fills: []swap.Fill{*fill}, Volume: *fill.Summary.Total()}, nil
	})
	if err != nil {
		return nil, err
	}
	return &result.Fills[0], nil
}

// SimSwapNftsForTokens plans req without executing it.
func (s *Service) SimSwapNftsForTokens(ctx context.Context, req swap.SellRequest) (*swap.Result, error) {
	return s.simulate(ctx, req.Collection, req.Denom, func(tx storage.Tx, pc *payout.Context) (*swap.Result, error) {
		return s.executor.SimSwapNftsForTokens(ctx, tx, pc, req)
	})
}

// SimSwapTokensForNfts plans req without executing it.
func (s *Service) SimSwapTokensForNfts(ctx context.Context, req swap.BuyRequest) (*swap.Result, error) {
	return s.simulate(ctx, req.Collection, req.Denom, func(tx storage.Tx, pc *payout.Context) (*swap.Result, error) {
		return s.executor.SimSwapTokensForNfts(ctx, tx, pc, req)
	})
}

// SimSwaps plans n unbounded units in direction d. It returns an empty
// result when there is no liquidity at all.
func (s *Service) SimSwaps(ctx context.Context, collection, denom string, d types.Direction, n int) (*swap.Result, error) {
	n = types.ClampLimit(n)
	params := swap.Params{Robust: true}

	var (
		result *swap.Result
		err    error
	)
	if d == types.SellToPair {
		result, err = s.SimSwapNftsForTokens(ctx, swap.SellRequest{
			Collection: collection,
			Denom:      denom,
			Orders:     make([]swap.SellOrder, n),
			Params:     params,
		})
	} else {
		maxInputs := make([]uint256.Int, n)
		for i := range maxInputs {
			maxInputs[i].SetAllOne()
		}
		result, err = s.SimSwapTokensForNfts(ctx, swap.BuyRequest{
			Collection: collection,
			Denom:      denom,
			MaxInputs:  maxInputs,
			Params:     params,
		})
	}
	if errors.Is(err, swap.ErrNoSwaps) {
		return &swap.Result{Fills: []swap.Fill{}}, nil
	}
	return result, err
}

func (s *Service) simulate(
	ctx context.Context,
	collection, denom string,
	fn func(tx storage.Tx, pc *payout.Context) (*swap.Result, error),
) (*swap.Result, error) {
	pc, err := s.resolve(ctx, collection, denom)
	if err != nil {
		return nil, err
	}
	var result *swap.Result
	err = s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		result, err = fn(tx, pc)
		return err
	})
	return result, err
}
