package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ggorockee/shopfinder/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// noExpiry stands in for ttl <= 0, the table requires an expiry
const noExpiry = 100 * 365 * 24 * time.Hour

// DatabaseStore implements Store on the places_cache table
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ Store = (*DatabaseStore)(nil)

// NewDatabaseStore expects the places_cache table to be migrated already
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the time source, for expiry tests
func (d *DatabaseStore) WithClock(now func() time.Time) *DatabaseStore {
	d.now = now
	return d
}

// DB exposes the underlying handle for pool metrics
func (d *DatabaseStore) DB() *gorm.DB {
	return d.db
}

func (d *DatabaseStore) GetString(ctx context.Context, key string) (string, bool, error) {
	b, ok, err := d.GetBytes(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	return string(b), true, nil
}

func (d *DatabaseStore) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return d.SetBytes(ctx, key, []byte(value), ttl)
}

func (d *DatabaseStore) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.CacheEntry
	err := d.db.WithContext(ctx).Where("cache_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup for key '%s': %w", key, err)
	}
	if entry.Expired(d.now()) {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// SetBytes upserts the whole row so a refresh replaces value and expiry together
func (d *DatabaseStore) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = noExpiry
	}
	entry := models.CacheEntry{
		Key:       key,
		Value:     value,
		ExpiresAt: d.now().Add(ttl),
	}

	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("cache write for key '%s': %w", key, err)
	}
	return nil
}

// PurgeExpired deletes stale rows and returns how many were removed
func (d *DatabaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := d.db.WithContext(ctx).Where("expires_at <= ?", d.now()).Delete(&models.CacheEntry{})
	return res.RowsAffected, res.Error
}

// StartJanitor purges expired rows every interval until ctx is done
func (d *DatabaseStore) StartJanitor(ctx context.Context, interval time.Duration, onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.PurgeExpired(ctx); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}

func (d *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *DatabaseStore) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
