package amm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/nft-amm/internal/events"
	"github.com/rovshanmuradov/nft-amm/internal/logger"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/settlement"
	"github.com/rovshanmuradov/nft-amm/internal/storage"
)

// CreatePair stores a new, empty and inactive pair. The owner pays the pair
// creation fee to the fair burn address.
func (s *Service) CreatePair(ctx context.Context, cmd CreatePairCommand) (*pair.Pair, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	pt, err := cmd.Type.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pair.ErrInvalidConfig, err)
	}
	cv, err := cmd.Curve.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pair.ErrInvalidConfig, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.WithOperation(s.logger, cmd.GetType())

	gc, err := s.globals.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load global config: %w", err)
	}
	// a pair can only be created for a denom with a configured min price
	if _, err := gc.MinPrice(cmd.Denom); err != nil {
		return nil, err
	}
	cfg := pair.Config{Type: pt, Curve: cv, AssetRecipient: cmd.AssetRecipient}
	if err := cfg.Validate(gc.MaxSwapFeePercent); err != nil {
		return nil, err
	}
	pc, err := s.resolve(ctx, cmd.Collection, cmd.Denom)
	if err != nil {
		return nil, err
	}

	p := pair.New(s.newAddress(), pair.Immutable{
		Collection: cmd.Collection,
		Owner:      cmd.Sender,
		Denom:      cmd.Denom,
	}, cfg)

	err = s.store.Update(ctx, func(tx storage.Tx) error {
		if _, err := tx.Pairs().Get(ctx, p.Address); err == nil {
			return fmt.Errorf("pair address %s already taken", p.Address)
		}
		if fee := gc.PairCreationFee; !fee.Amount.IsZero() {
			burn := settlement.TokenTransfer(cmd.Sender, gc.FairBurnAddress, fee.Denom, &fee.Amount)
			if err := transfer(ctx, tx, burn); err != nil {
				return fmt.Errorf("failed to pay pair creation fee: %w", err)
			}
		}
		return commitPair(ctx, tx, pc, p)
	})
	if err != nil {
		log.Warn("Pair creation failed", zap.Error(err))
		return nil, err
	}

	log.Info("Pair created",
		zap.String("pair", p.Address),
		zap.String("collection", cmd.Collection),
		zap.String("denom", cmd.Denom),
		zap.String("owner", cmd.Sender))

	if s.metrics != nil {
		s.metrics.RecordPairCreated(cmd.Collection, cmd.Denom)
	}
	s.publish(events.PairCreatedEvent{
		BaseEvent:  events.NewBase(events.PairCreated),
		Pair:       p.Address,
		Collection: cmd.Collection,
		Denom:      cmd.Denom,
		Owner:      cmd.Sender,
	})
	return p, nil
}

// updatePair runs an owner operation on one pair in its own transaction and
// publishes a PairUpdated event once it commits.
func (s *Service) updatePair(
	ctx context.Context,
	cmd Command,
	sender, address string,
	fn func(tx storage.Tx, pc *payout.Context, p *pair.Pair) error,
) (*pair.Pair, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.WithOperation(s.logger, cmd.GetType()).With(zap.String("pair", address))

	var updated *pair.Pair
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		p, pc, err := s.loadPair(ctx, tx, address)
		if err != nil {
			return err
		}
		if err := p.Authorize(sender); err != nil {
			return fmt.Errorf("%w: %s does not own pair %s", err, sender, address)
		}
		if err := fn(tx, pc, p); err != nil {
			return err
		}
		if err := commitPair(ctx, tx, pc, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		log.Warn("Pair operation failed", zap.Error(err))
		return nil, err
	}

	log.Info("Pair updated",
		zap.Bool("is_active", updated.Config.IsActive),
		zap.String("total_tokens", updated.TotalTokens.Dec()),
		zap.Int("total_nfts", len(updated.NFTs)))

	s.publish(events.PairUpdatedEvent{
		BaseEvent: events.NewBase(events.PairUpdated),
		Pair:      updated.Address,
		Operation: cmd.GetType(),
		IsActive:  updated.Config.IsActive,
	})
	return updated, nil
}

func withdrawTo(p *pair.Pair, recipient string) string {
	if recipient != "" {
		return recipient
	}
	return p.Recipient()
}

func (s *Service) DepositTokens(ctx context.Context, cmd DepositTokensCommand) (*pair.Pair, error) {
	return s.updatePair(ctx, cmd, cmd.Sender, cmd.Pair, func(tx storage.Tx, _ *payout.Context, p *pair.Pair) error {
		if err := p.DepositTokens(&cmd.Amount); err != nil {
			return err
		}
		return transfer(ctx, tx, settlement.TokenTransfer(cmd.Sender, p.Address, p.Immutable.Denom, &cmd.Amount))
	})
}

func (s *Service) WithdrawTokens(ctx context.Context, cmd WithdrawTokensCommand) (*pair.Pair, error) {
	return s.updatePair(ctx, cmd, cmd.Sender, cmd.Pair, func(tx storage.Tx, _ *payout.Context, p *pair.Pair) error {
		if err := p.WithdrawTokens(&cmd.Amount); err != nil {
			return err
		}
		to := withdrawTo(p, cmd.Recipient)
		return transfer(ctx, tx, settlement.TokenTransfer(p.Address, to, p.Immutable.Denom, &cmd.Amount))
	})
}

func (s *Service) DepositNFTs(ctx context.Context, cmd DepositNFTsCommand) (*pair.Pair, error) {
	return s.updatePair(ctx, cmd, cmd.Sender, cmd.Pair, func(tx storage.Tx, _ *payout.Context, p *pair.Pair) error {
		if err := p.DepositNFTs(cmd.TokenIDs); err != nil {
			return err
		}
		return transfer(ctx, tx, nftLegs(p.Immutable.Collection, cmd.TokenIDs, cmd.Sender, p.Address)...)
	})
}

func (s *Service) WithdrawNFTs(ctx context.Context, cmd WithdrawNFTsCommand) (*pair.Pair, error) {
	return s.updatePair(ctx, cmd, cmd.Sender, cmd.Pair, func(tx storage.Tx, _ *payout.Context, p *pair.Pair) error {
		if err := p.WithdrawNFTs(cmd.TokenIDs); err != nil {
			return err
		}
		return transfer(ctx, tx, nftLegs(p.Immutable.Collection, cmd.TokenIDs, p.Address, withdrawTo(p, cmd.Recipient))...)
	})
}

func (s *Service) WithdrawAnyNFTs(ctx context.Context, cmd WithdrawAnyNFTsCommand) (*pair.Pair, error) {
	return s.updatePair(ctx, cmd, cmd.Sender, cmd.Pair, func(tx storage.Tx, _ *payout.Context, p *pair.Pair) error {
		taken := p.WithdrawAnyNFTs(cmd.Count)
		return transfer(ctx, tx, nftLegs(p.Immutable.Collection, taken, p.Address, withdrawTo(p, cmd.Recipient))...)
	})
}

func (s *Service) WithdrawAll(ctx context.Context, cmd WithdrawAllCommand) (*pair.Pair, error) {
	return s.updatePair(ctx, cmd, cmd.Sender, cmd.Pair, func(tx storage.Tx, _ *payout.Context, p *pair.Pair) error {
		to := withdrawTo(p, cmd.Recipient)
		tokens, nfts := p.WithdrawAll()
		legs := nftLegs(p.Immutable.Collection, nfts, p.Address, to)
		if !tokens.IsZero() {
			legs = append(legs, settlement.TokenTransfer(p.Address, to, p.Immutable.Denom, &tokens))
		}
		return transfer(ctx, tx, legs...)
	})
}

func (s *Service) UpdatePairConfig(ctx context.Context, cmd UpdatePairConfigCommand) (*pair.Pair, error) {
	patch, err := cmd.patch()
	if err != nil {
		return nil, err
	}
	return s.updatePair(ctx, cmd, cmd.Sender, cmd.Pair, func(_ storage.Tx, pc *payout.Context, p *pair.Pair) error {
		return p.UpdateConfig(patch, pc.MaxSwapPercent)
	})
}

func nftLegs(collection string, tokenIDs []string, from, to string) []settlement.Transfer {
	legs := make([]settlement.Transfer, len(tokenIDs))
	for i, id := range tokenIDs {
		legs[i] = settlement.NFTTransfer(collection, id, from, to)
	}
	return legs
}
