package sqldb

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rovshanmuradov/nft-amm/internal/settlement"
	"github.com/rovshanmuradov/nft-amm/internal/storage/models"
	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

// ledger keeps balances and NFT ownership in the balances and nft_owners
// tables.
type ledger struct {
	db *gorm.DB
}

var _ settlement.Atomic = (*ledger)(nil)

// Atomically runs fn in a nested transaction, which gorm issues as a
// SAVEPOINT inside an open one.
func (l *ledger) Atomically(ctx context.Context, fn func(settlement.Ledger) error) error {
	return l.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&ledger{db: db})
	})
}

func (l *ledger) Balance(ctx context.Context, account, denom string) (*uint256.Int, error) {
	var rec models.Balance
	err := l.db.WithContext(ctx).Where("account = ? AND denom = ?", account, denom).First(&rec).Error
	if notFound(err) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load balance of %s: %w", account, err)
	}
	return fixedpoint.ParseAmount(rec.Amount)
}

func (l *ledger) store(ctx context.Context, account, denom string, amount *uint256.Int) error {
	rec := models.Balance{Account: account, Denom: denom, Amount: amount.Dec()}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to store balance of %s: %w", account, err)
	}
	return nil
}

func (l *ledger) Credit(ctx context.Context, account, denom string, amount *uint256.Int) error {
	b, err := l.Balance(ctx, account, denom)
	if err != nil {
		return err
	}
	sum, err := fixedpoint.Add(b, amount)
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", account, err)
	}
	return l.store(ctx, account, denom, sum)
}

func (l *ledger) Debit(ctx context.Context, account, denom string, amount *uint256.Int) error {
	b, err := l.Balance(ctx, account, denom)
	if err != nil {
		return err
	}
	if b.Lt(amount) {
		return fmt.Errorf("%w: %s has %s%s, needs %s", settlement.ErrInsufficientFunds, account, b.Dec(), denom, amount.Dec())
	}
	return l.store(ctx, account, denom, new(uint256.Int).Sub(b, amount))
}

func (l *ledger) OwnerOf(ctx context.Context, collection, tokenID string) (string, error) {
	var rec models.NFTOwner
	err := l.db.WithContext(ctx).Where("collection = ? AND token_id = ?", collection, tokenID).First(&rec).Error
	if notFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load owner of %s/%s: %w", collection, tokenID, err)
	}
	return rec.Owner, nil
}

func (l *ledger) SetOwner(ctx context.Context, collection, tokenID, owner string) error {
	rec := models.NFTOwner{Collection: collection, TokenID: tokenID, Owner: owner}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to set owner of %s/%s: %w", collection, tokenID, err)
	}
	return nil
}
