// internal/storage/models/ledger.go
package models

// Balance is a token balance.
type Balance struct {
	Timestamps
	Account string `gorm:"primaryKey;type:varchar(128)"`
	Denom   string `gorm:"primaryKey;type:varchar(64)"`
	Amount  string `gorm:"not null;type:varchar(80)"`
}

// NFTOwner records who holds an NFT.
type NFTOwner struct {
	Timestamps
	Collection string `gorm:"primaryKey;type:varchar(128)"`
	TokenID    string `gorm:"primaryKey;type:varchar(128)"`
	Owner      string `gorm:"index;not null;type:varchar(128)"`
}
