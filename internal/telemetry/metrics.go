package telemetry

import (
	"context"
	"time"

	"github.com/ggorockee/shopfinder/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var meter metric.Meter

// HTTP metrics
var (
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter
)

// Search metrics
var (
	SearchResultCount metric.Int64Histogram
	DetailFailures    metric.Int64Counter
)

// InitMeter initializes OpenTelemetry meter with OTLP HTTP exporter
func InitMeter(ctx context.Context, serviceName, endpoint string) (func(context.Context) error, error) {
	log := logger.GetLogger("telemetry")

	if endpoint == "" {
		log.Info("SIGNOZ_ENDPOINT not set, metrics disabled")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter,
				sdkmetric.WithInterval(15*time.Second),
			),
		),
	)

	otel.SetMeterProvider(mp)
	meter = mp.Meter(serviceName)

	if err := initInstruments(); err != nil {
		return nil, err
	}

	log.Infof("OpenTelemetry metrics initialized with endpoint: %s", endpoint)

	return mp.Shutdown, nil
}

func initInstruments() error {
	var err error

	HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return err
	}

	HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	SearchResultCount, err = meter.Int64Histogram(
		"places_search_results",
		metric.WithDescription("Places returned per search after the fan-out cap"),
		metric.WithExplicitBucketBoundaries(0, 1, 3, 5, 10),
	)
	if err != nil {
		return err
	}

	DetailFailures, err = meter.Int64Counter(
		"places_detail_failures_total",
		metric.WithDescription("Detail lookups that failed and were skipped"),
	)
	return err
}

// RecordSearch records the size of a search response. Safe before InitMeter.
func RecordSearch(ctx context.Context, count int, cached bool) {
	if SearchResultCount == nil {
		return
	}
	SearchResultCount.Record(ctx, int64(count), metric.WithAttributes(attribute.Bool("cached", cached)))
}

// RecordDetailFailure counts a swallowed detail lookup error. Safe before InitMeter.
func RecordDetailFailure(ctx context.Context) {
	if DetailFailures == nil {
		return
	}
	DetailFailures.Add(ctx, 1)
}
