package task

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/nft-amm/internal/swap"
	"github.com/rovshanmuradov/nft-amm/internal/types"
)

// Swapper is the part of the AMM service a batch needs.
type Swapper interface {
	SimSwaps(ctx context.Context, collection, denom string, d types.Direction, n int) (*swap.Result, error)
	SwapNftsForTokens(ctx context.Context, req swap.SellRequest) (*swap.Result, error)
	SwapTokensForNfts(ctx context.Context, req swap.BuyRequest) (*swap.Result, error)
}

// Outcome is the result of one task.
type Outcome struct {
	Task     *Task
	Result   *swap.Result
	Err      error
	Duration time.Duration
}

// Executor runs tasks on a bounded number of workers.
type Executor struct {
	swapper Swapper
	logger  *zap.Logger
	workers int
}

func NewExecutor(swapper Swapper, logger *zap.Logger, workers int) *Executor {
	if workers <= 0 {
		workers = 1
	}
	return &Executor{
		swapper: swapper,
		logger:  logger.Named("executor"),
		workers: workers,
	}
}

// Run executes every task and returns the outcomes in task order. A failing
// task does not stop the others; only a cancelled context does.
func (e *Executor) Run(ctx context.Context, tasks []*Task) ([]Outcome, error) {
	outcomes := make([]Outcome, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, t := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes[i] = Outcome{Task: t, Err: err}
				return err
			}
			start := time.Now()
			result, err := e.Execute(gctx, t)
			outcomes[i] = Outcome{Task: t, Result: result, Err: err, Duration: time.Since(start)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, fmt.Errorf("task batch interrupted: %w", err)
	}
	return outcomes, nil
}

// Execute quotes the task, derives the per-unit bounds from its slippage
// config and submits the swap.
func (e *Executor) Execute(ctx context.Context, t *Task) (*swap.Result, error) {
	log := e.logger.With(
		zap.Int("task_id", t.ID),
		zap.String("task_name", t.Name),
		zap.String("operation", string(t.Operation)))

	bounds, err := e.bounds(ctx, t)
	if err != nil {
		log.Warn("Failed to derive bounds", zap.Error(err))
		return nil, err
	}

	params := swap.Params{
		Deadline:       t.Deadline,
		Robust:         t.Robust,
		AssetRecipient: t.AssetRecipient,
	}

	var result *swap.Result
	if t.Operation == OperationSell {
		orders := make([]swap.SellOrder, len(t.TokenIDs))
		for i, id := range t.TokenIDs {
			orders[i] = swap.SellOrder{TokenID: id, MinOutput: bounds[i]}
		}
		result, err = e.swapper.SwapNftsForTokens(ctx, swap.SellRequest{
			Sender:     t.Sender,
			Collection: t.Collection,
			Denom:      t.Denom,
			Orders:     orders,
			Params:     params,
		})
	} else {
		result, err = e.swapper.SwapTokensForNfts(ctx, swap.BuyRequest{
			Sender:     t.Sender,
			Collection: t.Collection,
			Denom:      t.Denom,
			MaxInputs:  bounds,
			Params:     params,
		})
	}
	if err != nil {
		log.Error("Task failed", zap.Error(err))
		return nil, fmt.Errorf("task %q failed: %w", t.Name, err)
	}

	log.Info("Task executed",
		zap.Int("fills", len(result.Fills)),
		zap.Int("skipped", len(result.Skipped)),
		zap.String("volume", result.Volume.Dec()))
	return result, nil
}

// bounds maps each unit to a bound around its simulated price. Units past
// the simulated depth reuse the last quote.
func (e *Executor) bounds(ctx context.Context, t *Task) ([]uint256.Int, error) {
	units := t.Units()
	d := t.Direction()
	bounds := make([]uint256.Int, units)

	var quoted []swap.Fill
	if needsQuote(t.Slippage.Type) {
		sim, err := e.swapper.SimSwaps(ctx, t.Collection, t.Denom, d, units)
		if err != nil {
			return nil, fmt.Errorf("failed to quote task: %w", err)
		}
		if len(sim.Fills) == 0 {
			return nil, swap.ErrNoLiquidity
		}
		quoted = sim.Fills
	}

	for i := range bounds {
		var price *uint256.Int
		if quoted != nil {
			price = &quoted[min(i, len(quoted)-1)].Price
		}
		b, err := t.Slippage.Bound(d, price)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", i, err)
		}
		bounds[i] = *b
	}
	return bounds, nil
}

func needsQuote(t types.SlippageType) bool {
	return t == types.SlippagePercent
}
