package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ggorockee/shopfinder/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Use(&MetricsPlugin{}))
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestMetricsPluginObservesStatements(t *testing.T) {
	db := openTestDB(t)

	entry := models.CacheEntry{Key: "places:details:x", Value: []byte("{}"), ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, db.Create(&entry).Error)

	var got models.CacheEntry
	require.NoError(t, db.Where("cache_key = ?", "places:details:x").First(&got).Error)

	// at least the create and query series exist
	assert.GreaterOrEqual(t, testutil.CollectAndCount(dbQueryDuration), 2)
}

func TestMetricsPluginCountsErrors(t *testing.T) {
	db := openTestDB(t)

	before := testutil.ToFloat64(dbErrorsTotal.WithLabelValues("raw", "unknown"))

	err := db.Exec("DELETE FROM no_such_table").Error
	require.Error(t, err)

	assert.Equal(t, before+1, testutil.ToFloat64(dbErrorsTotal.WithLabelValues("raw", "unknown")))
}

func TestUpdateConnectionPoolMetrics(t *testing.T) {
	db := openTestDB(t)

	UpdateConnectionPoolMetrics(db)
	assert.GreaterOrEqual(t, testutil.ToFloat64(dbConnectionPoolIdle), 0.0)
	assert.Equal(t, 0.0, testutil.ToFloat64(dbConnectionPoolInUse))
}
