// Package task loads batches of swap orders from YAML and runs them against
// the AMM.
package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/rovshanmuradov/nft-amm/internal/types"
)

// Operation names the swap an order performs.
type Operation string

const (
	// OperationSell sells the listed NFTs to the best bids.
	OperationSell Operation = "sell"
	// OperationBuy buys Count NFTs from the cheapest asks.
	OperationBuy Operation = "buy"
)

func parseOperation(s string) (Operation, error) {
	op := Operation(s)
	switch op {
	case OperationSell, OperationBuy:
		return op, nil
	default:
		return "", fmt.Errorf("unsupported operation: %q", s)
	}
}

// Task is one swap order of a batch.
type Task struct {
	ID         int
	Name       string
	Sender     string
	Operation  Operation
	Collection string
	Denom      string
	// TokenIDs are the NFTs to sell.
	TokenIDs []string
	// Count is the number of NFTs to buy.
	Count          int
	Slippage       types.SlippageConfig
	Robust         bool
	AssetRecipient string
	// Deadline is zero when the order has none.
	Deadline  time.Time
	CreatedAt time.Time
}

func (t *Task) Direction() types.Direction {
	if t.Operation == OperationSell {
		return types.SellToPair
	}
	return types.BuyFromPair
}

// Units is the number of NFTs the order trades.
func (t *Task) Units() int {
	if t.Operation == OperationSell {
		return len(t.TokenIDs)
	}
	return t.Count
}

func (t *Task) Validate() error {
	if t.Name == "" {
		return errors.New("task name cannot be empty")
	}
	if t.Sender == "" {
		return errors.New("sender cannot be empty")
	}
	if t.Collection == "" || t.Denom == "" {
		return errors.New("collection and denom are required")
	}

	switch t.Operation {
	case OperationSell:
		if len(t.TokenIDs) == 0 {
			return errors.New("sell orders need token_ids")
		}
	case OperationBuy:
		if t.Count <= 0 {
			return fmt.Errorf("buy orders need a positive count, got %d", t.Count)
		}
	default:
		return fmt.Errorf("invalid operation: %s", t.Operation)
	}
	if t.Units() > types.MaxQueryLimit {
		return fmt.Errorf("orders are limited to %d units", types.MaxQueryLimit)
	}

	// an order's slippage is checked against a dummy quote so bad values
	// fail at load time
	if t.Slippage.Type == types.SlippagePercent || t.Slippage.Type == types.SlippageFixed {
		if _, err := t.Slippage.Bound(t.Direction(), oneUnit); err != nil {
			return err
		}
	} else if t.Slippage.Type != types.SlippageNone && t.Slippage.Type != "" {
		return fmt.Errorf("unknown slippage type: %q", t.Slippage.Type)
	}
	return nil
}
