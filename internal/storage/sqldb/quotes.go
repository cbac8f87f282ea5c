package sqldb

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rovshanmuradov/nft-amm/internal/index"
	"github.com/rovshanmuradov/nft-amm/internal/storage/models"
	"github.com/rovshanmuradov/nft-amm/internal/types"
	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

// quoteIndex keeps the quote index in the quotes table.
type quoteIndex struct {
	db *gorm.DB
}

func (x *quoteIndex) Upsert(ctx context.Context, e index.Entry) error {
	rec := models.Quote{
		Pair:       e.Pair,
		Direction:  string(e.Direction),
		Collection: e.Collection,
		Denom:      e.Denom,
		PriceKey:   fixedpoint.SortKey(&e.Price),
		Price:      e.Price.Dec(),
	}
	err := x.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to upsert quote of %s: %w", e.Pair, err)
	}
	return nil
}

func (x *quoteIndex) Remove(ctx context.Context, pairAddress string, d types.Direction) error {
	err := x.db.WithContext(ctx).
		Where("pair = ? AND direction = ?", pairAddress, string(d)).
		Delete(&models.Quote{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove quote of %s: %w", pairAddress, err)
	}
	return nil
}

func (x *quoteIndex) Range(ctx context.Context, q index.Query) ([]index.Entry, error) {
	db := x.db.WithContext(ctx).
		Where("collection = ? AND denom = ? AND direction = ?", q.Collection, q.Denom, string(q.Direction))

	if q.Order == types.Descending {
		if q.Cursor != nil {
			key := fixedpoint.SortKey(&q.Cursor.Price)
			db = db.Where("(price_key < ? OR (price_key = ? AND pair > ?))", key, key, q.Cursor.Pair)
		}
		db = db.Order("price_key DESC").Order("pair ASC")
	} else {
		if q.Cursor != nil {
			key := fixedpoint.SortKey(&q.Cursor.Price)
			db = db.Where("(price_key > ? OR (price_key = ? AND pair > ?))", key, key, q.Cursor.Pair)
		}
		db = db.Order("price_key ASC").Order("pair ASC")
	}

	var rows []models.Quote
	if err := db.Limit(types.ClampLimit(q.Limit)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to range quotes: %w", err)
	}

	out := make([]index.Entry, 0, len(rows))
	for _, r := range rows {
		price, err := fixedpoint.ParseAmount(r.Price)
		if err != nil {
			return nil, fmt.Errorf("quote of %s has bad price %q: %w", r.Pair, r.Price, err)
		}
		out = append(out, index.Entry{
			Pair:       r.Pair,
			Collection: r.Collection,
			Denom:      r.Denom,
			Direction:  types.Direction(r.Direction),
			Price:      *price,
		})
	}
	return out, nil
}
