package amm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/nft-amm/internal/storage"
)

// Credit adds tokens to an account out of thin air. Only exposed in dev mode.
func (s *Service) Credit(ctx context.Context, cmd CreditCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.Update(ctx, func(tx storage.Tx) error {
		return tx.Ledger().Credit(ctx, cmd.Account, cmd.Denom, &cmd.Amount)
	})
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", cmd.Account, err)
	}
	s.logger.Info("Account credited",
		zap.String("account", cmd.Account),
		zap.String("denom", cmd.Denom),
		zap.String("amount", cmd.Amount.Dec()))
	return nil
}

// Mint assigns unowned NFTs to an owner. Only exposed in dev mode.
func (s *Service) Mint(ctx context.Context, cmd MintCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.Update(ctx, func(tx storage.Tx) error {
		for _, id := range cmd.TokenIDs {
			owner, err := tx.Ledger().OwnerOf(ctx, cmd.Collection, id)
			if err != nil {
				return err
			}
			if owner != "" {
				return fmt.Errorf("%w: %s/%s is owned by %s", ErrAlreadyMinted, cmd.Collection, id, owner)
			}
			if err := tx.Ledger().SetOwner(ctx, cmd.Collection, id, cmd.Owner); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("NFTs minted",
		zap.String("collection", cmd.Collection),
		zap.String("owner", cmd.Owner),
		zap.Strings("token_ids", cmd.TokenIDs))
	return nil
}
