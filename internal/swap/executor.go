package swap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/nft-amm/internal/continuation"
	"github.com/rovshanmuradov/nft-amm/internal/index"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/router"
	"github.com/rovshanmuradov/nft-amm/internal/settlement"
	"github.com/rovshanmuradov/nft-amm/internal/storage"
	"github.com/rovshanmuradov/nft-amm/internal/types"
)

// Dispatcher settles a batch and completes the continuation under id.
type Dispatcher interface {
	Dispatch(ctx context.Context, id uuid.UUID, ledger settlement.Ledger, batch settlement.Batch) error
}

// Executor runs swaps inside a store transaction owned by the caller.
type Executor struct {
	registry   *continuation.Registry
	dispatcher Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func NewExecutor(registry *continuation.Registry, dispatcher Dispatcher, logger *zap.Logger) *Executor {
	return &Executor{
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger.Named("swap"),
		now:        time.Now,
	}
}

func (e *Executor) checkDeadline(p Params) error {
	if !p.Deadline.IsZero() && !e.now().Before(p.Deadline) {
		return fmt.Errorf("%w: deadline %s", ErrDeadlineExceeded, p.Deadline.Format(time.RFC3339))
	}
	return nil
}

// withinBound reports whether price satisfies the unit's bound: a minimum
// output for sells, a maximum input for buys.
func withinBound(d types.Direction, price, bound *uint256.Int) bool {
	if d == types.SellToPair {
		return !price.Lt(bound)
	}
	return !price.Gt(bound)
}

func newRouter(ctx context.Context, tx storage.Tx, pc *payout.Context, collection string, d types.Direction, logger *zap.Logger) (*router.Router, error) {
	src, err := router.NewPairSource(ctx, tx.Index(), router.LoaderFunc(tx.Pairs().Get), pc, collection, d, logger)
	if err != nil {
		return nil, err
	}
	return router.New(d, src), nil
}

// unit is one requested fill.
type unit struct {
	tokenID string
	bound   uint256.Int
}

func sellUnits(orders []SellOrder) []unit {
	units := make([]unit, len(orders))
	for i, o := range orders {
		units[i] = unit{tokenID: o.TokenID, bound: o.MinOutput}
	}
	return units
}

func buyUnits(maxInputs []uint256.Int) []unit {
	units := make([]unit, len(maxInputs))
	for i, m := range maxInputs {
		units[i] = unit{bound: m}
	}
	return units
}

// SwapNftsForTokens sells each order to the best bidding pair in turn.
func (e *Executor) SwapNftsForTokens(ctx context.Context, tx storage.Tx, pc *payout.Context, req SellRequest) (*Result, error) {
	if err := e.checkDeadline(req.Params); err != nil {
		return nil, err
	}
	if len(req.Orders) == 0 {
		return nil, ErrEmptyRequest
	}
	return e.run(ctx, tx, pc, req.Sender, req.Collection, types.SellToPair, sellUnits(req.Orders), req.Params)
}

// SwapTokensForNfts buys one NFT per max input from the cheapest pairs.
func (e *Executor) SwapTokensForNfts(ctx context.Context, tx storage.Tx, pc *payout.Context, req BuyRequest) (*Result, error) {
	if err := e.checkDeadline(req.Params); err != nil {
		return nil, err
	}
	if len(req.MaxInputs) == 0 {
		return nil, ErrEmptyRequest
	}
	return e.run(ctx, tx, pc, req.Sender, req.Collection, types.BuyFromPair, buyUnits(req.MaxInputs), req.Params)
}

func (e *Executor) run(
	ctx context.Context,
	tx storage.Tx,
	pc *payout.Context,
	sender, collection string,
	d types.Direction,
	units []unit,
	params Params,
) (*Result, error) {
	r, err := newRouter(ctx, tx, pc, collection, d, e.logger)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for i, u := range units {
		fill, consumed, err := e.runUnit(ctx, tx, pc, r, sender, d, u, params)
		if err != nil {
			unitErr := UnitError{Unit: i, TokenID: u.tokenID, Err: err}
			if !params.Robust {
				return nil, &unitErr
			}
			e.logger.Info("Skipping failed unit",
				zap.String("direction", string(d)),
				zap.Int("unit", i),
				zap.Error(err))
			result.Skipped = append(result.Skipped, unitErr)

			// the router simulated a fill that was rolled back
			if consumed {
				if r, err = newRouter(ctx, tx, pc, collection, d, e.logger); err != nil {
					return nil, err
				}
			}
			continue
		}
		fill.Unit = i
		result.add(*fill)
	}

	if len(result.Fills) == 0 {
		return nil, fmt.Errorf("%w: %d units failed", ErrNoSwaps, len(result.Skipped))
	}
	return result, nil
}

func (e *Executor) runUnit(
	ctx context.Context,
	tx storage.Tx,
	pc *payout.Context,
	r *router.Router,
	sender string,
	d types.Direction,
	u unit,
	params Params,
) (fill *Fill, consumed bool, err error) {
	// the router is only advanced once the unit is known to be fillable
	best := r.Peek()
	if best == nil {
		return nil, false, ErrNoLiquidity
	}
	if !withinBound(d, &best.Price, &u.bound) {
		return nil, false, fmt.Errorf("%w: best price %s, bound %s", ErrSlippage, best.Price.Dec(), u.bound.Dec())
	}
	q, err := r.Next(ctx)
	if err != nil {
		return nil, false, err
	}

	err = tx.Savepoint(ctx, func(sp storage.Tx) error {
		var err error
		fill, err = e.fill(ctx, sp, pc, q.Address, sender, d, u, params)
		return err
	})
	return fill, true, err
}

// SwapNftForTokens sells one NFT to the named pair.
func (e *Executor) SwapNftForTokens(ctx context.Context, tx storage.Tx, pc *payout.Context, req DirectSellRequest) (*Fill, error) {
	if err := e.checkDeadline(req.Params); err != nil {
		return nil, err
	}
	u := unit{tokenID: req.TokenID, bound: req.MinOutput}
	return e.fill(ctx, tx, pc, req.Pair, req.Sender, types.SellToPair, u, req.Params)
}

// SwapTokensForNft buys from the named pair.
func (e *Executor) SwapTokensForNft(ctx context.Context, tx storage.Tx, pc *payout.Context, req DirectBuyRequest) (*Fill, error) {
	if err := e.checkDeadline(req.Params); err != nil {
		return nil, err
	}
	u := unit{tokenID: req.TokenID, bound: req.MaxInput}
	return e.fill(ctx, tx, pc, req.Pair, req.Sender, types.BuyFromPair, u, req.Params)
}

// fill applies one unit to the stored pair and settles it.
func (e *Executor) fill(
	ctx context.Context,
	tx storage.Tx,
	pc *payout.Context,
	address, sender string,
	d types.Direction,
	u unit,
	params Params,
) (*Fill, error) {
	if d == types.SellToPair && u.tokenID == "" {
		return nil, fmt.Errorf("%w: token id is required", ErrInvalidOrder)
	}
	p, err := tx.Pairs().Get(ctx, address)
	if err != nil {
		return nil, err
	}
	if p.Immutable.Denom != pc.Denom {
		return nil, fmt.Errorf("%w: pair %s trades %s, not %s", ErrInvalidOrder, address, p.Immutable.Denom, pc.Denom)
	}

	live := p.Quote(pc, d)
	if live == nil {
		return nil, ErrNoLiquidity
	}
	price := index.PriceOf(d, live)
	if !withinBound(d, price, &u.bound) {
		return nil, fmt.Errorf("%w: price %s, bound %s", ErrSlippage, price.Dec(), u.bound.Dec())
	}
	if d == types.BuyFromPair && u.tokenID != "" && !p.HoldsNFT(u.tokenID) {
		return nil, fmt.Errorf("%w: %s", pair.ErrNFTNotDeposited, u.tokenID)
	}

	res, err := p.ApplyFill(pc, d, u.tokenID)
	if err != nil {
		return nil, err
	}
	if err := tx.Pairs().Save(ctx, p); err != nil {
		return nil, err
	}
	if err := index.Reconcile(ctx, tx.Index(), p); err != nil {
		return nil, err
	}

	batch := settlementBatch(p, d, res, sender, params.recipient(sender))
	id := uuid.New()
	if err := e.settle(ctx, tx, id, batch); err != nil {
		return nil, err
	}

	return &Fill{
		Pair:          p.Address,
		Direction:     d,
		TokenID:       res.TokenID,
		Price:         *price,
		Summary:       res.Summary,
		CorrelationID: id,
	}, nil
}

// settlementBatch lists the transfers of one fill. The pair's escrow is held
// by the ledger account named after the pair.
func settlementBatch(p *pair.Pair, d types.Direction, res *pair.FillResult, trader, traderRecipient string) settlement.Batch {
	var b settlement.Batch
	denom := p.Immutable.Denom
	collection := p.Immutable.Collection

	switch d {
	case types.SellToPair:
		nftTo := p.Recipient()
		if res.KeptNFT {
			nftTo = p.Address
		}
		b.Add(settlement.NFTTransfer(collection, res.TokenID, trader, nftTo))
		b.AddFees(p.Address, denom, &res.Summary)
		b.Add(settlement.TokenTransfer(p.Address, traderRecipient, denom, &res.Summary.SellerAmount))

	case types.BuyFromPair:
		b.AddFees(trader, denom, &res.Summary)
		tokensTo := p.Recipient()
		if res.KeptTokens {
			tokensTo = p.Address
		}
		b.Add(settlement.TokenTransfer(trader, tokensTo, denom, &res.Summary.SellerAmount))
		b.Add(settlement.NFTTransfer(collection, res.TokenID, p.Address, traderRecipient))
	}
	return b
}

// settle dispatches batch under a fresh continuation and waits for its
// outcome.
func (e *Executor) settle(ctx context.Context, tx storage.Tx, id uuid.UUID, batch settlement.Batch) error {
	done, err := e.registry.Register(id, func(_ context.Context, result error) error {
		if result != nil {
			return fmt.Errorf("settlement %s failed: %w", id, result)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := e.dispatcher.Dispatch(ctx, id, tx.Ledger(), batch); err != nil {
		e.registry.Cancel(id, err)
		return err
	}
	return e.registry.Wait(ctx, id, done)
}

// SimSwapNftsForTokens plans the fills of req without executing them.
func (e *Executor) SimSwapNftsForTokens(ctx context.Context, tx storage.Tx, pc *payout.Context, req SellRequest) (*Result, error) {
	if len(req.Orders) == 0 {
		return nil, ErrEmptyRequest
	}
	return e.simulate(ctx, tx, pc, req.Collection, types.SellToPair, sellUnits(req.Orders), req.Params)
}

// SimSwapTokensForNfts plans the fills of req without executing them.
func (e *Executor) SimSwapTokensForNfts(ctx context.Context, tx storage.Tx, pc *payout.Context, req BuyRequest) (*Result, error) {
	if len(req.MaxInputs) == 0 {
		return nil, ErrEmptyRequest
	}
	return e.simulate(ctx, tx, pc, req.Collection, types.BuyFromPair, buyUnits(req.MaxInputs), req.Params)
}

func (e *Executor) simulate(
	ctx context.Context,
	tx storage.Tx,
	pc *payout.Context,
	collection string,
	d types.Direction,
	units []unit,
	params Params,
) (*Result, error) {
	r, err := newRouter(ctx, tx, pc, collection, d, e.logger)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for i, u := range units {
		best := r.Peek()
		var unitErr error
		switch {
		case best == nil:
			unitErr = ErrNoLiquidity
		case !withinBound(d, &best.Price, &u.bound):
			unitErr = fmt.Errorf("%w: best price %s, bound %s", ErrSlippage, best.Price.Dec(), u.bound.Dec())
		}
		if unitErr != nil {
			if !params.Robust {
				return nil, &UnitError{Unit: i, TokenID: u.tokenID, Err: unitErr}
			}
			result.Skipped = append(result.Skipped, UnitError{Unit: i, TokenID: u.tokenID, Err: unitErr})
			continue
		}

		q, err := r.Next(ctx)
		if err != nil {
			return nil, err
		}
		tokenID := u.tokenID
		if d == types.BuyFromPair && len(q.Pair.NFTs) > 0 {
			tokenID = q.Pair.NFTs[0]
		}
		result.add(Fill{
			Unit:      i,
			Pair:      q.Address,
			Direction: d,
			TokenID:   tokenID,
			Price:     q.Price,
			Summary:   *q.Summary,
		})
	}

	if len(result.Fills) == 0 {
		return nil, fmt.Errorf("%w: %d units failed", ErrNoSwaps, len(result.Skipped))
	}
	return result, nil
}

// IsUnitFailure reports whether err is the failure of a single unit rather
// than of the request as a whole.
func IsUnitFailure(err error) bool {
	var unitErr *UnitError
	return errors.As(err, &unitErr)
}
