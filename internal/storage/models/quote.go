// internal/storage/models/quote.go
package models

// Quote is one quote index entry. PriceKey is the price zero-padded to a
// fixed width so that string order equals numeric order.
type Quote struct {
	Pair       string `gorm:"primaryKey;type:varchar(64)"`
	Direction  string `gorm:"primaryKey;index:idx_quote_bucket,priority:3;type:varchar(16)"`
	Collection string `gorm:"index:idx_quote_bucket,priority:1;not null;type:varchar(128)"`
	Denom      string `gorm:"index:idx_quote_bucket,priority:2;not null;type:varchar(64)"`
	PriceKey   string `gorm:"index:idx_quote_bucket,priority:4;not null;type:varchar(80)"`
	Price      string `gorm:"not null;type:varchar(80)"`
}
