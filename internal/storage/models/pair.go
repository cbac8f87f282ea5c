// internal/storage/models/pair.go
package models

// PairImmutable is fixed at pair creation.
type PairImmutable struct {
	Timestamps
	Address    string `gorm:"primaryKey;type:varchar(64)"`
	Collection string `gorm:"index;not null;type:varchar(128)"`
	Owner      string `gorm:"index;not null;type:varchar(128)"`
	Denom      string `gorm:"not null;type:varchar(64)"`
}

// PairConfig is the owner-mutable part of a pair.
type PairConfig struct {
	Timestamps
	Address        string `gorm:"primaryKey;type:varchar(64)"`
	PairType       string `gorm:"not null;type:varchar(16)"`
	SwapFeePercent string `gorm:"type:varchar(32)"`
	ReinvestTokens bool
	ReinvestNFTs   bool
	CurveType      string `gorm:"not null;type:varchar(32)"`
	SpotPrice      string `gorm:"type:varchar(80)"`
	Delta          string `gorm:"type:varchar(80)"`
	IsActive       bool   `gorm:"not null"`
	AssetRecipient string `gorm:"type:varchar(128)"`
}

// PairInternal caches quotes and escrow totals. Quotes are stored as JSON;
// an empty string means no quote.
type PairInternal struct {
	Timestamps
	Address          string `gorm:"primaryKey;type:varchar(64)"`
	TotalNFTs        uint64 `gorm:"not null"`
	TotalTokens      string `gorm:"not null;type:varchar(80)"`
	SellToPairQuote  string `gorm:"type:text"`
	BuyFromPairQuote string `gorm:"type:text"`
}

// PairNFT is one escrowed NFT.
type PairNFT struct {
	Address string `gorm:"primaryKey;type:varchar(64)"`
	TokenID string `gorm:"primaryKey;type:varchar(128)"`
}
