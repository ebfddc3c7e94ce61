package middleware

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopfinder_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopfinder_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shopfinder_http_active_connections",
			Help: "Number of in-flight HTTP requests",
		},
	)

	// photos dominate response size
	httpResponseSize = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "shopfinder_http_response_size_bytes",
			Help:       "HTTP response size in bytes",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"method", "path"},
	)
)

// privateCIDRs loopback and RFC 1918 / ULA ranges
var privateCIDRs = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
	"fc00::/7",
}

// PrometheusMiddleware records request count, latency and response size per route
func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if strings.HasPrefix(path, "/api/docs") || path == "/metrics" {
			return c.Next()
		}

		start := time.Now()

		httpActiveConnections.Inc()
		defer httpActiveConnections.Dec()

		err := c.Next()

		// route pattern keeps label cardinality bounded
		routePath := c.Route().Path
		if routePath == "" {
			routePath = path
		}
		method := c.Method()
		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		httpRequestsTotal.WithLabelValues(method, routePath, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(method, routePath).Observe(time.Since(start).Seconds())
		httpResponseSize.WithLabelValues(method, routePath).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// PrometheusHandler serves the default registry for scraping
func PrometheusHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// InternalOnly rejects clients outside loopback and private networks.
// X-Real-IP is honoured only when the direct peer is itself internal,
// i.e. a fronting proxy set it.
func InternalOnly() fiber.Handler {
	allowedNets := parseNets(privateCIDRs)

	return func(c *fiber.Ctx) error {
		ip := clientAddress(c.IP(), c.Get("X-Real-IP"), allowedNets)
		if ip == nil {
			return fiber.NewError(fiber.StatusForbidden, "invalid client address")
		}
		if !isInternal(ip, allowedNets) {
			return fiber.NewError(fiber.StatusForbidden, "internal network only")
		}
		return c.Next()
	}
}

func parseNets(cidrs []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err == nil {
			nets = append(nets, ipNet)
		}
	}
	return nets
}

func isInternal(ip net.IP, nets []*net.IPNet) bool {
	for _, ipNet := range nets {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// clientAddress resolves the address to authorize; nil when unparseable
func clientAddress(remote, realIP string, nets []*net.IPNet) net.IP {
	peer := net.ParseIP(remote)
	if peer == nil {
		return nil
	}
	if realIP != "" && isInternal(peer, nets) {
		return net.ParseIP(strings.TrimSpace(realIP))
	}
	return peer
}
