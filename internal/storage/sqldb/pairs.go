package sqldb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rovshanmuradov/nft-amm/internal/curve"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/storage"
	"github.com/rovshanmuradov/nft-amm/internal/storage/models"
	"github.com/rovshanmuradov/nft-amm/internal/types"
	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

type pairRepo struct {
	db *gorm.DB
}

func (r *pairRepo) Get(ctx context.Context, address string) (*pair.Pair, error) {
	db := r.db.WithContext(ctx)

	var imm models.PairImmutable
	if err := db.Where("address = ?", address).First(&imm).Error; err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("pair %s: %w", address, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load pair %s: %w", address, err)
	}

	var cfg models.PairConfig
	if err := db.Where("address = ?", address).First(&cfg).Error; err != nil {
		return nil, fmt.Errorf("failed to load config of pair %s: %w", address, err)
	}

	var internal models.PairInternal
	if err := db.Where("address = ?", address).First(&internal).Error; err != nil {
		return nil, fmt.Errorf("failed to load internal state of pair %s: %w", address, err)
	}

	var nfts []models.PairNFT
	if err := db.Where("address = ?", address).Find(&nfts).Error; err != nil {
		return nil, fmt.Errorf("failed to load nfts of pair %s: %w", address, err)
	}

	return decodePair(&imm, &cfg, &internal, nfts)
}

func decodePair(imm *models.PairImmutable, cfg *models.PairConfig, internal *models.PairInternal, nfts []models.PairNFT) (*pair.Pair, error) {
	pairType, err := pair.TypeDescriptor{
		Kind:           pair.TypeKind(cfg.PairType),
		SwapFeePercent: cfg.SwapFeePercent,
		ReinvestTokens: cfg.ReinvestTokens,
		ReinvestNFTs:   cfg.ReinvestNFTs,
	}.Build()
	if err != nil {
		return nil, fmt.Errorf("pair %s: bad type: %w", imm.Address, err)
	}

	c, err := curve.Descriptor{
		Kind:      curve.Kind(cfg.CurveType),
		SpotPrice: cfg.SpotPrice,
		Delta:     cfg.Delta,
	}.Decode()
	if err != nil {
		return nil, fmt.Errorf("pair %s: bad curve: %w", imm.Address, err)
	}

	tokens, err := fixedpoint.ParseAmount(internal.TotalTokens)
	if err != nil {
		return nil, fmt.Errorf("pair %s: bad total tokens: %w", imm.Address, err)
	}
	sellQuote, err := decodeQuote(internal.SellToPairQuote)
	if err != nil {
		return nil, fmt.Errorf("pair %s: bad sell quote: %w", imm.Address, err)
	}
	buyQuote, err := decodeQuote(internal.BuyFromPairQuote)
	if err != nil {
		return nil, fmt.Errorf("pair %s: bad buy quote: %w", imm.Address, err)
	}

	ids := make([]string, len(nfts))
	for i, n := range nfts {
		ids[i] = n.TokenID
	}
	// database collation may differ from byte order
	sort.Strings(ids)

	return &pair.Pair{
		Address: imm.Address,
		Immutable: pair.Immutable{
			Collection: imm.Collection,
			Owner:      imm.Owner,
			Denom:      imm.Denom,
		},
		Config: pair.Config{
			Type:           pairType,
			Curve:          c,
			IsActive:       cfg.IsActive,
			AssetRecipient: cfg.AssetRecipient,
		},
		Internal: pair.Internal{
			TotalNFTs:        internal.TotalNFTs,
			SellToPairQuote:  sellQuote,
			BuyFromPairQuote: buyQuote,
		},
		TotalTokens: *tokens,
		NFTs:        ids,
	}, nil
}

func decodeQuote(raw string) (*payout.QuoteSummary, error) {
	if raw == "" {
		return nil, nil
	}
	var q payout.QuoteSummary
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func encodeQuote(q *payout.QuoteSummary) (string, error) {
	if q == nil {
		return "", nil
	}
	raw, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (r *pairRepo) Save(ctx context.Context, p *pair.Pair) error {
	db := r.db.WithContext(ctx)
	upsert := clause.OnConflict{UpdateAll: true}

	imm := models.PairImmutable{
		Address:    p.Address,
		Collection: p.Immutable.Collection,
		Owner:      p.Immutable.Owner,
		Denom:      p.Immutable.Denom,
	}
	if err := db.Clauses(upsert).Create(&imm).Error; err != nil {
		return fmt.Errorf("failed to save pair %s: %w", p.Address, err)
	}

	td := pair.DescribeType(p.Config.Type)
	cd := curve.Describe(p.Config.Curve)
	cfg := models.PairConfig{
		Address:        p.Address,
		PairType:       string(td.Kind),
		SwapFeePercent: td.SwapFeePercent,
		ReinvestTokens: td.ReinvestTokens,
		ReinvestNFTs:   td.ReinvestNFTs,
		CurveType:      string(cd.Kind),
		SpotPrice:      cd.SpotPrice,
		Delta:          cd.Delta,
		IsActive:       p.Config.IsActive,
		AssetRecipient: p.Config.AssetRecipient,
	}
	if err := db.Clauses(upsert).Create(&cfg).Error; err != nil {
		return fmt.Errorf("failed to save config of pair %s: %w", p.Address, err)
	}

	sellQuote, err := encodeQuote(p.Internal.SellToPairQuote)
	if err != nil {
		return fmt.Errorf("failed to encode sell quote of pair %s: %w", p.Address, err)
	}
	buyQuote, err := encodeQuote(p.Internal.BuyFromPairQuote)
	if err != nil {
		return fmt.Errorf("failed to encode buy quote of pair %s: %w", p.Address, err)
	}
	internal := models.PairInternal{
		Address:          p.Address,
		TotalNFTs:        p.Internal.TotalNFTs,
		TotalTokens:      p.TotalTokens.Dec(),
		SellToPairQuote:  sellQuote,
		BuyFromPairQuote: buyQuote,
	}
	if err := db.Clauses(upsert).Create(&internal).Error; err != nil {
		return fmt.Errorf("failed to save internal state of pair %s: %w", p.Address, err)
	}

	if err := db.Where("address = ?", p.Address).Delete(&models.PairNFT{}).Error; err != nil {
		return fmt.Errorf("failed to clear nfts of pair %s: %w", p.Address, err)
	}
	if len(p.NFTs) > 0 {
		rows := make([]models.PairNFT, len(p.NFTs))
		for i, id := range p.NFTs {
			rows[i] = models.PairNFT{Address: p.Address, TokenID: id}
		}
		if err := db.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("failed to save nfts of pair %s: %w", p.Address, err)
		}
	}
	return nil
}

func (r *pairRepo) List(ctx context.Context, filter storage.PairFilter, opts types.QueryOptions) ([]*pair.Pair, error) {
	q := r.db.WithContext(ctx).Model(&models.PairImmutable{})
	if filter.Collection != "" {
		q = q.Where("collection = ?", filter.Collection)
	}
	if filter.Owner != "" {
		q = q.Where("owner = ?", filter.Owner)
	}
	if opts.Descending {
		if opts.StartAfter != "" {
			q = q.Where("address < ?", opts.StartAfter)
		}
		q = q.Order("address DESC")
	} else {
		if opts.StartAfter != "" {
			q = q.Where("address > ?", opts.StartAfter)
		}
		q = q.Order("address ASC")
	}

	var addresses []string
	if err := q.Limit(types.ClampLimit(opts.Limit)).Pluck("address", &addresses).Error; err != nil {
		return nil, fmt.Errorf("failed to list pairs: %w", err)
	}

	out := make([]*pair.Pair, 0, len(addresses))
	for _, a := range addresses {
		p, err := r.Get(ctx, a)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
