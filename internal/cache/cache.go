// Package cache holds the key-value store the places service caches into.
// Backends: in-process memory, Redis, and a PostgreSQL table through GORM.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ggorockee/shopfinder/internal/config"
	"github.com/ggorockee/shopfinder/internal/database"
)

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"

	keyPrefix = "places"
)

// Store is a get/set/expire store. A missing or expired key is reported as
// ok == false with a nil error. Values are written whole and never patched.
type Store interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the backend selected by cfg.Cache.Driver
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch strings.ToLower(cfg.Cache.Driver) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverRedis:
		return NewRedisStore(ctx, cfg.Redis)
	case DriverPostgres:
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect cache database: %w", err)
		}
		if err := database.Migrate(db.DB); err != nil {
			return nil, fmt.Errorf("migrate cache table: %w", err)
		}
		return NewDatabaseStore(db.DB), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}

// SearchKey identifies a search by all four inputs; radius is part of the key even when defaulted.
func SearchKey(query string, lat, lng float64, radius int) string {
	return strings.Join([]string{
		keyPrefix, "search", query, formatFloat(lat), formatFloat(lng), strconv.Itoa(radius),
	}, ":")
}

// DetailsKey identifies a place's details. Not parameterized by requested fields.
func DetailsKey(placeID string) string {
	return keyPrefix + ":details:" + placeID
}

func PhotoKey(photoReference string, maxWidth int) string {
	return keyPrefix + ":photo:" + photoReference + ":" + strconv.Itoa(maxWidth)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
