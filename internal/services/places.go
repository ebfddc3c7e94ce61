package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ggorockee/shopfinder/internal/cache"
	"github.com/ggorockee/shopfinder/internal/config"
	"github.com/ggorockee/shopfinder/internal/models"
	"github.com/ggorockee/shopfinder/internal/places"
	"github.com/ggorockee/shopfinder/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRadius        = 5000
	DefaultPhotoMaxWidth = 400
	// MaxResults caps how many search hits get detail enrichment and are returned
	MaxResults = 10

	PhotoProxyPath = "/api/places/photo"

	SummaryOpenNow   = "Open now"
	SummaryClosedNow = "Closed now"
	SummaryUnknown   = "Hours unknown"
)

// ErrEmptyPhoto is returned when upstream answers 2xx with no image bytes
var ErrEmptyPhoto = errors.New("upstream returned an empty photo")

// PlacesAPI is the upstream the service fans out to
type PlacesAPI interface {
	TextSearch(ctx context.Context, query string, lat, lng float64, radius int) (*places.TextSearchResponse, error)
	Details(ctx context.Context, placeID string) (*places.DetailsResponse, error)
	Photo(ctx context.Context, photoReference string, maxWidth int) ([]byte, error)
}

// PlacesOptions expiry and enrichment settings
type PlacesOptions struct {
	SearchTTL time.Duration
	DetailTTL time.Duration
	PhotoTTL  time.Duration
	// DetailConcurrency bounds parallel detail lookups; 1 = sequential
	DetailConcurrency int
	// UnknownHoursState reports "Hours unknown" instead of "Closed now"
	// when the open state is not known
	UnknownHoursState bool
}

// OptionsFromConfig maps cache settings onto service options
func OptionsFromConfig(cfg config.CacheConfig) PlacesOptions {
	return PlacesOptions{
		SearchTTL:         cfg.SearchTTL,
		DetailTTL:         cfg.DetailTTL,
		PhotoTTL:          cfg.PhotoTTL,
		DetailConcurrency: cfg.DetailConcurrency,
		UnknownHoursState: cfg.UnknownHoursState,
	}
}

type PlacesService struct {
	api    PlacesAPI
	cache  cache.Store
	opts   PlacesOptions
	log    *zap.SugaredLogger
	flight singleflight.Group
}

func NewPlacesService(api PlacesAPI, store cache.Store, opts PlacesOptions, log *zap.SugaredLogger) *PlacesService {
	if opts.DetailConcurrency < 1 {
		opts.DetailConcurrency = 1
	}
	return &PlacesService{
		api:   api,
		cache: store,
		opts:  opts,
		log:   log,
	}
}

// SearchPlaces returns up to MaxResults places for query around (lat, lng).
// Results are served from cache when a search with the same four inputs
// ran within SearchTTL.
func (s *PlacesService) SearchPlaces(ctx context.Context, query string, lat, lng float64, radius int) ([]models.PlaceResult, error) {
	if radius <= 0 {
		radius = DefaultRadius
	}

	ctx, span := telemetry.StartSpan(ctx, "places.SearchPlaces")
	defer span.End()
	span.SetAttributes(
		attribute.String("places.query", query),
		attribute.Int("places.radius", radius),
	)

	key := cache.SearchKey(query, lat, lng, radius)
	if cached, ok := s.cachedSearch(ctx, key); ok {
		span.SetAttributes(attribute.Bool("places.cache_hit", true))
		telemetry.RecordSearch(ctx, len(cached), true)
		return cached, nil
	}

	// concurrent identical misses share one upstream fan-out
	v, err, _ := s.flight.Do(key, func() (any, error) {
		return s.fetchSearch(context.WithoutCancel(ctx), key, query, lat, lng, radius)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	shared := v.([]models.PlaceResult)
	out := make([]models.PlaceResult, len(shared))
	copy(out, shared)

	telemetry.RecordSearch(ctx, len(out), false)
	return out, nil
}

func (s *PlacesService) cachedSearch(ctx context.Context, key string) ([]models.PlaceResult, bool) {
	raw, ok, err := s.cache.GetString(ctx, key)
	cache.RecordLookup(cache.KindSearch, ok, err)
	if err != nil {
		s.log.Warnw("search cache read failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var results []models.PlaceResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		s.log.Warnw("cached search undecodable, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return results, true
}

func (s *PlacesService) fetchSearch(ctx context.Context, key, query string, lat, lng float64, radius int) ([]models.PlaceResult, error) {
	resp, err := s.api.TextSearch(ctx, query, lat, lng, radius)
	if err != nil {
		if errors.Is(err, places.ErrMalformedPayload) {
			s.log.Warnw("text search payload malformed, returning no results", "query", query, "error", err)
			return []models.PlaceResult{}, nil
		}
		return nil, fmt.Errorf("text search: %w", err)
	}
	if resp == nil {
		return []models.PlaceResult{}, nil
	}
	if len(resp.Results) == 0 {
		empty := []models.PlaceResult{}
		// a denied or over-quota answer is not a real "no shops here"
		if answered(resp.Status) {
			s.storeSearch(ctx, key, empty)
		}
		return empty, nil
	}

	hits := resp.Results
	if len(hits) > MaxResults {
		hits = hits[:MaxResults]
	}

	results := make([]models.PlaceResult, len(hits))
	var g errgroup.Group
	g.SetLimit(s.opts.DetailConcurrency)

	for i, hit := range hits {
		i, hit := i, hit
		results[i] = basePlace(hit)
		if hit.PlaceID == "" {
			continue
		}
		g.Go(func() error {
			details, err := s.getPlaceDetails(ctx, hit.PlaceID)
			if err != nil {
				// enrichment is best-effort
				s.log.Warnw("failed to get details for place", "place_id", hit.PlaceID, "error", err)
				telemetry.RecordDetailFailure(ctx)
				return nil
			}
			if details != nil {
				applyDetails(&results[i], details, s.opts.UnknownHoursState)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.storeSearch(ctx, key, results)
	return results, nil
}

func (s *PlacesService) storeSearch(ctx context.Context, key string, results []models.PlaceResult) {
	data, err := json.Marshal(results)
	if err == nil {
		err = s.cache.SetString(ctx, key, string(data), s.opts.SearchTTL)
	}
	cache.RecordWrite(cache.KindSearch, err)
	if err != nil {
		s.log.Warnw("search cache write failed", "key", key, "error", err)
	}
}

// answered reports whether a text search status is a real answer
func answered(status string) bool {
	return status == "" || status == places.StatusOK || status == places.StatusZeroResults
}

// getPlaceDetails returns the cached or freshly fetched detail record, or nil
// when upstream has none for placeID.
func (s *PlacesService) getPlaceDetails(ctx context.Context, placeID string) (*models.DetailRecord, error) {
	key := cache.DetailsKey(placeID)

	raw, ok, err := s.cache.GetString(ctx, key)
	cache.RecordLookup(cache.KindDetails, ok, err)
	if err != nil {
		return nil, fmt.Errorf("details cache read: %w", err)
	}
	if ok {
		var rec models.DetailRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode cached details: %w", err)
		}
		return &rec, nil
	}

	resp, err := s.api.Details(ctx, placeID)
	if err != nil {
		return nil, fmt.Errorf("place details: %w", err)
	}
	if resp == nil || resp.Result == nil {
		return nil, nil
	}

	data, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	err = s.cache.SetString(ctx, key, string(data), s.opts.DetailTTL)
	cache.RecordWrite(cache.KindDetails, err)
	if err != nil {
		s.log.Warnw("details cache write failed", "place_id", placeID, "error", err)
	}

	return resp.Result, nil
}

// GetPhotoBytes returns image bytes for a photo reference, cached per
// (reference, maxWidth). Upstream and cache read failures are returned.
func (s *PlacesService) GetPhotoBytes(ctx context.Context, photoReference string, maxWidth int) ([]byte, error) {
	if maxWidth <= 0 {
		maxWidth = DefaultPhotoMaxWidth
	}

	ctx, span := telemetry.StartSpan(ctx, "places.GetPhotoBytes")
	defer span.End()

	key := cache.PhotoKey(photoReference, maxWidth)
	cached, ok, err := s.cache.GetBytes(ctx, key)
	cache.RecordLookup(cache.KindPhoto, ok, err)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("photo cache read: %w", err)
	}
	if ok {
		return cached, nil
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		data, err := s.api.Photo(fctx, photoReference, maxWidth)
		if err != nil {
			return nil, fmt.Errorf("fetch photo: %w", err)
		}
		if len(data) == 0 {
			return nil, ErrEmptyPhoto
		}

		err = s.cache.SetBytes(fctx, key, data, s.opts.PhotoTTL)
		cache.RecordWrite(cache.KindPhoto, err)
		if err != nil {
			s.log.Warnw("photo cache write failed", "key", key, "error", err)
		}
		return data, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return v.([]byte), nil
}

// basePlace maps the fields a search hit carries directly
func basePlace(hit places.TextResult) models.PlaceResult {
	p := models.PlaceResult{
		PlaceID: hit.PlaceID,
		Name:    hit.Name,
		Address: resolveAddress(hit),
		Lat:     hit.Geometry.Location.Lat,
		Lng:     hit.Geometry.Location.Lng,
		Types:   []string{},
	}
	if len(hit.Types) > 0 {
		p.Types = append(p.Types, hit.Types...)
	}

	if len(hit.Photos) > 0 && hit.Photos[0].PhotoReference != "" {
		ref := hit.Photos[0].PhotoReference
		photoURL := PhotoURL(ref)
		p.PhotoReference = &ref
		p.PhotoURL = &photoURL
	}
	return p
}

func resolveAddress(hit places.TextResult) string {
	if hit.FormattedAddress != nil && *hit.FormattedAddress != "" {
		return *hit.FormattedAddress
	}
	if hit.Vicinity != nil {
		return *hit.Vicinity
	}
	return ""
}

func applyDetails(p *models.PlaceResult, d *models.DetailRecord, unknownState bool) {
	if d.OpeningHours != nil && d.OpeningHours.OpenNow != nil {
		open := *d.OpeningHours.OpenNow
		p.IsOpenNow = &open
	}

	summary := OpeningHoursSummary(d.OpeningHours, unknownState)
	p.OpeningHoursSummary = &summary

	if d.FormattedPhoneNumber != nil && *d.FormattedPhoneNumber != "" {
		phone := *d.FormattedPhoneNumber
		p.PhoneNumber = &phone
	}
}

// OpeningHoursSummary derives the display line: weekday text joined with
// "; ", else "Open now" when known open, else "Closed now". With
// unknownState set, an unknown open state yields "Hours unknown".
func OpeningHoursSummary(hours *models.OpeningHours, unknownState bool) string {
	if hours != nil && len(hours.WeekdayText) > 0 {
		return strings.Join(hours.WeekdayText, "; ")
	}
	if hours != nil && hours.OpenNow != nil && *hours.OpenNow {
		return SummaryOpenNow
	}
	if unknownState && (hours == nil || hours.OpenNow == nil) {
		return SummaryUnknown
	}
	return SummaryClosedNow
}

// PhotoURL is the same-origin proxy path for a photo reference
func PhotoURL(photoReference string) string {
	return PhotoProxyPath + "?photoreference=" + url.QueryEscape(photoReference) +
		"&maxwidth=" + strconv.Itoa(DefaultPhotoMaxWidth)
}
