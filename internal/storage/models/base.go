// internal/storage/models/base.go
package models

import "time"

// Timestamps replaces gorm.Model for tables keyed by natural keys.
type Timestamps struct {
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&PairImmutable{},
		&PairConfig{},
		&PairInternal{},
		&PairNFT{},
		&Quote{},
		&Balance{},
		&NFTOwner{},
	}
}
