// Package places talks to the Google Places web service: text search,
// place details and photo retrieval.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ggorockee/shopfinder/internal/config"
	"github.com/ggorockee/shopfinder/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DetailFields is the fixed field set requested from the details endpoint
const DetailFields = "opening_hours,formatted_phone_number"

// maxPhotoBytes caps a single upstream photo body
const maxPhotoBytes = 10 << 20

var (
	// ErrMalformedPayload is returned when an upstream body cannot be decoded
	ErrMalformedPayload = errors.New("malformed upstream payload")
	// ErrPhotoTooLarge is returned when a photo body exceeds maxPhotoBytes
	ErrPhotoTooLarge = errors.New("upstream photo exceeds size limit")
)

// StatusError is a non-2xx upstream response
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("places %s returned status %d", e.Endpoint, e.StatusCode)
}

// Client talks to the Places web service
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.SugaredLogger
}

// NewClient builds a client. A zero RateLimit disables client-side throttling.
func NewClient(cfg config.PlacesConfig, log *zap.SugaredLogger) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}
}

// TextSearch calls textsearch/json around location within radius meters
func (c *Client) TextSearch(ctx context.Context, query string, lat, lng float64, radius int) (*TextSearchResponse, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("location", formatCoord(lat)+","+formatCoord(lng))
	params.Set("radius", strconv.Itoa(radius))

	var out TextSearchResponse
	if err := c.getJSON(ctx, "textsearch", "/textsearch/json", params, &out); err != nil {
		return nil, err
	}
	if out.Status != "" && out.Status != StatusOK && out.Status != StatusZeroResults {
		c.log.Warnf("textsearch status=%s message=%q", out.Status, out.ErrorMessage)
	}
	return &out, nil
}

// Details calls details/json for one place with DetailFields
func (c *Client) Details(ctx context.Context, placeID string) (*DetailsResponse, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", DetailFields)

	var out DetailsResponse
	if err := c.getJSON(ctx, "details", "/details/json", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Photo downloads the image for a photo reference. Redirects to the image
// host are followed by the http.Client.
func (c *Client) Photo(ctx context.Context, photoReference string, maxWidth int) ([]byte, error) {
	params := url.Values{}
	params.Set("photoreference", photoReference)
	params.Set("maxwidth", strconv.Itoa(maxWidth))

	resp, done, err := c.do(ctx, "photo", "/photo", params)
	if err != nil {
		return nil, err
	}
	defer done()
	defer resp.Body.Close()

	// one byte past the cap tells a full-size photo from a truncated one
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read photo body: %w", err)
	}
	if len(body) > maxPhotoBytes {
		return nil, ErrPhotoTooLarge
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, params url.Values, dest any) error {
	resp, done, err := c.do(ctx, endpoint, path, params)
	if err != nil {
		return err
	}
	defer done()
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%s: %w: %v", endpoint, ErrMalformedPayload, err)
	}
	return nil
}

// do issues a GET and returns the response only for 2xx statuses. done ends
// the span and records metrics; the caller must invoke it after reading the body.
func (c *Client) do(ctx context.Context, endpoint, path string, params url.Values) (*http.Response, func(), error) {
	ctx, span := telemetry.StartSpan(ctx, "places."+endpoint)
	span.SetAttributes(attribute.String("places.endpoint", endpoint))
	start := time.Now()

	finish := func(status string, err error) {
		recordUpstream(endpoint, status, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		finish("throttled", err)
		return nil, nil, fmt.Errorf("places %s rate limit wait: %w", endpoint, err)
	}

	params.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		finish("error", err)
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		finish("error", err)
		return nil, nil, fmt.Errorf("places %s request failed: %w", endpoint, err)
	}

	status := strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		serr := &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
		finish(status, serr)
		return nil, nil, serr
	}

	return resp, func() { finish(status, nil) }, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
