package models

import (
	"time"
)

// CacheEntry represents one key of the database-backed places cache.
// A key is always written whole; refreshes overwrite value and expiry together.
type CacheEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:cache_key;size:700;not null;uniqueIndex" json:"key"`
	Value     []byte    `gorm:"not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CacheEntry) TableName() string {
	return "places_cache"
}

// Expired reports whether the entry is stale at now
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}
