package database

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

const startTimeKey = "metrics:start_time"

var (
	// query latency per operation
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopfinder_db_query_duration_seconds",
			Help:    "Database query execution time in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation", "table", "status"},
	)

	dbErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopfinder_db_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"operation", "table"},
	)

	dbConnectionPoolInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shopfinder_db_connection_pool_in_use",
			Help: "Number of database connections currently in use",
		},
	)

	dbConnectionPoolIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shopfinder_db_connection_pool_idle",
			Help: "Number of idle database connections in the pool",
		},
	)
)

// MetricsPlugin GORM metrics plugin
type MetricsPlugin struct{}

func (p *MetricsPlugin) Name() string {
	return "shopfinder:metrics"
}

// Initialize registers before/after callbacks for every statement kind the cache issues
func (p *MetricsPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	_ = cb.Create().Before("gorm:create").Register("metrics:before_create", startTimer)
	_ = cb.Create().After("gorm:create").Register("metrics:after_create", observe("create"))

	_ = cb.Query().Before("gorm:query").Register("metrics:before_query", startTimer)
	_ = cb.Query().After("gorm:query").Register("metrics:after_query", observe("query"))

	_ = cb.Delete().Before("gorm:delete").Register("metrics:before_delete", startTimer)
	_ = cb.Delete().After("gorm:delete").Register("metrics:after_delete", observe("delete"))

	_ = cb.Raw().Before("gorm:raw").Register("metrics:before_raw", startTimer)
	_ = cb.Raw().After("gorm:raw").Register("metrics:after_raw", observe("raw"))

	return nil
}

func startTimer(db *gorm.DB) {
	db.InstanceSet(startTimeKey, time.Now())
}

func observe(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(startTimeKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}

		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}

		status := "success"
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			status = "error"
			dbErrorsTotal.WithLabelValues(operation, table).Inc()
		}

		dbQueryDuration.WithLabelValues(operation, table, status).Observe(time.Since(start).Seconds())
	}
}

// UpdateConnectionPoolMetrics snapshots sql.DB pool stats into the gauges
func UpdateConnectionPoolMetrics(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	stats := sqlDB.Stats()
	dbConnectionPoolIdle.Set(float64(stats.Idle))
	dbConnectionPoolInUse.Set(float64(stats.InUse))
}

// StartConnectionPoolMetricsCollector refreshes pool gauges until ctx is done
func StartConnectionPoolMetricsCollector(ctx context.Context, db *gorm.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			UpdateConnectionPoolMetrics(db)
		}
	}
}
