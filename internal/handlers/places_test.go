package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ggorockee/shopfinder/internal/cache"
	"github.com/ggorockee/shopfinder/internal/config"
	"github.com/ggorockee/shopfinder/internal/models"
	"github.com/ggorockee/shopfinder/internal/places"
	"github.com/ggorockee/shopfinder/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeQuerier struct {
	searchCalls int
	photoCalls  int

	gotQuery  string
	queries   []string
	refs      []string
	gotLat    float64
	gotLng    float64
	gotRadius int
	gotWidth  int

	results   []models.PlaceResult
	searchErr error
	photo     []byte
	photoErr  error
}

func (f *fakeQuerier) SearchPlaces(_ context.Context, query string, lat, lng float64, radius int) ([]models.PlaceResult, error) {
	f.searchCalls++
	f.gotQuery, f.gotLat, f.gotLng, f.gotRadius = query, lat, lng, radius
	f.queries = append(f.queries, query)
	return f.results, f.searchErr
}

func (f *fakeQuerier) GetPhotoBytes(_ context.Context, ref string, maxWidth int) ([]byte, error) {
	f.photoCalls++
	f.refs = append(f.refs, ref)
	f.gotWidth = maxWidth
	return f.photo, f.photoErr
}

func newTestApp(q PlacesQuerier) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	SetupPlacesRoutes(app.Group("/api/places"), q, zap.NewNop().Sugar())
	return app
}

func doGet(t *testing.T, app *fiber.App, target string) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestSearchValidation(t *testing.T) {
	tests := []struct {
		name   string
		target string
		errMsg string
	}{
		{"missing query", "/api/places/search?lat=1&lng=2", "query is required"},
		{"blank query", "/api/places/search?query=%20%20&lat=1&lng=2", "query is required"},
		{"missing lat", "/api/places/search?query=clothes&lng=2", "lat is required"},
		{"bad lng", "/api/places/search?query=clothes&lat=1&lng=west", "lng must be a number"},
		{"zero radius", "/api/places/search?query=clothes&lat=1&lng=2&radius=0", "radius must be a positive integer"},
		{"bad radius", "/api/places/search?query=clothes&lat=1&lng=2&radius=far", "radius must be a positive integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{}
			resp, body := doGet(t, newTestApp(q), tt.target)

			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.JSONEq(t, `{"error":"`+tt.errMsg+`"}`, string(body))
			assert.Zero(t, q.searchCalls)
		})
	}
}

func TestSearchOK(t *testing.T) {
	q := &fakeQuerier{results: []models.PlaceResult{{PlaceID: "p1", Name: "Penneys", Types: []string{}}}}
	resp, body := doGet(t, newTestApp(q), "/api/places/search?query=clothes&lat=53.3498&lng=-6.2603")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "clothes", q.gotQuery)
	assert.Equal(t, 53.3498, q.gotLat)
	assert.Equal(t, -6.2603, q.gotLng)
	assert.Equal(t, services.DefaultRadius, q.gotRadius)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0]["placeId"])
	assert.NotContains(t, got[0], "isOpenNow")
}

func TestSearchEmptyIsArray(t *testing.T) {
	q := &fakeQuerier{results: []models.PlaceResult{}}
	resp, body := doGet(t, newTestApp(q), "/api/places/search?query=clothes&lat=1&lng=2&radius=100")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
	assert.Equal(t, 100, q.gotRadius)
}

func TestSearchUpstreamFailure(t *testing.T) {
	q := &fakeQuerier{searchErr: &places.StatusError{Endpoint: "textsearch", StatusCode: 500}}
	resp, body := doGet(t, newTestApp(q), "/api/places/search?query=clothes&lat=1&lng=2")

	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.JSONEq(t, `{"error":"failed to search places"}`, string(body))
}

// pooled request contexts are reused across requests; values handed to the
// service must not change after their request has finished
func TestQueryValuesOutliveRequest(t *testing.T) {
	q := &fakeQuerier{results: []models.PlaceResult{}, photo: []byte{0xFF}}
	app := newTestApp(q)

	for _, target := range []string{
		"/api/places/search?query=clothes&lat=1&lng=2",
		"/api/places/search?query=jackets&lat=1&lng=2",
		"/api/places/photo?photoreference=aaaa",
		"/api/places/photo?photoreference=bbbb",
	} {
		resp, _ := doGet(t, app, target)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, target)
	}

	assert.Equal(t, []string{"clothes", "jackets"}, q.queries)
	assert.Equal(t, []string{"aaaa", "bbbb"}, q.refs)
}

func TestPhotoValidation(t *testing.T) {
	for _, target := range []string{
		"/api/places/photo",
		"/api/places/photo?photoreference=%20",
		"/api/places/photo?photoreference=abc&maxwidth=-1",
		"/api/places/photo?photoreference=abc&maxwidth=wide",
	} {
		q := &fakeQuerier{}
		resp, _ := doGet(t, newTestApp(q), target)

		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, target)
		assert.Zero(t, q.photoCalls, target)
	}
}

func TestPhotoOK(t *testing.T) {
	img := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	q := &fakeQuerier{photo: img}
	resp, body := doGet(t, newTestApp(q), "/api/places/photo?photoreference=abc")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, "public, max-age=3600", resp.Header.Get(fiber.HeaderCacheControl))
	assert.Equal(t, img, body)
	assert.Equal(t, services.DefaultPhotoMaxWidth, q.gotWidth)
}

func TestPhotoFailureIsNotFound(t *testing.T) {
	for _, err := range []error{
		&places.StatusError{Endpoint: "photo", StatusCode: 400},
		&places.StatusError{Endpoint: "photo", StatusCode: 503},
		services.ErrEmptyPhoto,
		errors.New("redis: connection refused"),
	} {
		q := &fakeQuerier{photoErr: err}
		resp, body := doGet(t, newTestApp(q), "/api/places/photo?photoreference=abc&maxwidth=800")

		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, err.Error())
		assert.JSONEq(t, `{"error":"photo not found"}`, string(body))
		assert.Equal(t, 800, q.gotWidth)
	}
}

// TestSearchClothesEndToEnd runs the real service and client against a fake upstream
func TestSearchClothesEndToEnd(t *testing.T) {
	var textSearches, detailLookups atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/textsearch/json":
			textSearches.Add(1)
			_, _ = w.Write([]byte(`{"status":"OK","results":[
				{"place_id":"a","name":"Penneys","formatted_address":"Mary St","geometry":{"location":{"lat":53.349,"lng":-6.266}},
				 "photos":[{"photo_reference":"ref a"}],"types":["clothing_store"]},
				{"place_id":"b","name":"Zara","vicinity":"Grafton St","geometry":{"location":{"lat":53.341,"lng":-6.259}}},
				{"place_id":"c","name":"Arnotts","formatted_address":"Henry St","geometry":{"location":{"lat":53.349,"lng":-6.262}}}
			]}`))
		case "/details/json":
			detailLookups.Add(1)
			switch r.URL.Query().Get("place_id") {
			case "a":
				_, _ = w.Write([]byte(`{"status":"OK","result":{"opening_hours":{"open_now":true,"weekday_text":["Mon: 9-6","Tue: 9-6"]},"formatted_phone_number":"01 111"}}`))
			case "b":
				_, _ = w.Write([]byte(`{"status":"OK","result":{"opening_hours":{"open_now":false}}}`))
			default:
				w.WriteHeader(http.StatusInternalServerError)
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)

	client := places.NewClient(config.PlacesConfig{APIKey: "k", BaseURL: upstream.URL, Timeout: 5 * time.Second}, zap.NewNop().Sugar())
	svc := services.NewPlacesService(client, cache.NewMemoryStore(), services.PlacesOptions{
		SearchTTL:         10 * time.Minute,
		DetailTTL:         30 * time.Minute,
		PhotoTTL:          time.Hour,
		DetailConcurrency: 2,
	}, zap.NewNop().Sugar())
	app := newTestApp(svc)

	target := "/api/places/search?query=clothes&lat=53.3498&lng=-6.2603"
	resp, first := doGet(t, app, target)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.JSONEq(t, `[
		{"placeId":"a","name":"Penneys","address":"Mary St","lat":53.349,"lng":-6.266,
		 "photoReference":"ref a","photoUrl":"/api/places/photo?photoreference=ref+a&maxwidth=400",
		 "openingHoursSummary":"Mon: 9-6; Tue: 9-6","isOpenNow":true,"phoneNumber":"01 111","types":["clothing_store"]},
		{"placeId":"b","name":"Zara","address":"Grafton St","lat":53.341,"lng":-6.259,
		 "openingHoursSummary":"Closed now","isOpenNow":false,"types":[]},
		{"placeId":"c","name":"Arnotts","address":"Henry St","lat":53.349,"lng":-6.262,"types":[]}
	]`, string(first))
	assert.EqualValues(t, 1, textSearches.Load())
	assert.EqualValues(t, 3, detailLookups.Load())

	resp, second := doGet(t, app, target)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, string(first), string(second))
	assert.EqualValues(t, 1, textSearches.Load())
	assert.EqualValues(t, 3, detailLookups.Load())
}
