// Package placesclient is a Go client for the shopfinder HTTP API.
package placesclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Dublin city centre, used when the caller has no location of its own
const (
	DefaultLat = 53.3498
	DefaultLng = -6.2603

	DefaultRadius   = 5000
	DefaultMaxWidth = 400
)

// Place is one search result as served by /api/places/search
type Place struct {
	PlaceID             string   `json:"placeId"`
	Name                string   `json:"name"`
	Address             string   `json:"address"`
	Lat                 float64  `json:"lat"`
	Lng                 float64  `json:"lng"`
	PhotoReference      string   `json:"photoReference,omitempty"`
	PhotoURL            string   `json:"photoUrl,omitempty"`
	OpeningHoursSummary string   `json:"openingHoursSummary,omitempty"`
	IsOpenNow           *bool    `json:"isOpenNow,omitempty"`
	PhoneNumber         string   `json:"phoneNumber,omitempty"`
	Types               []string `json:"types"`
}

// DirectionsURL links to turn-by-turn directions to the place
func (p Place) DirectionsURL() string {
	return fmt.Sprintf("https://www.google.com/maps/dir/?api=1&destination=%s,%s",
		strconv.FormatFloat(p.Lat, 'f', -1, 64), strconv.FormatFloat(p.Lng, 'f', -1, 64))
}

// APIError is a non-200 answer from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("shopfinder API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("shopfinder API returned status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL, e.g. http://localhost:5108
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying http.Client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Search queries places around (lat, lng). radius <= 0 lets the server default it.
func (c *Client) Search(ctx context.Context, query string, lat, lng float64, radius int) ([]Place, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	if radius > 0 {
		params.Set("radius", strconv.Itoa(radius))
	}

	resp, err := c.get(ctx, "/api/places/search?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out []Place
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

// Photo downloads the image bytes for a photo reference
func (c *Client) Photo(ctx context.Context, photoReference string, maxWidth int) ([]byte, error) {
	resp, err := c.get(ctx, c.photoPath(photoReference, maxWidth))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo: %w", err)
	}
	return data, nil
}

// PhotoURL is the absolute URL of the photo proxy for photoReference
func (c *Client) PhotoURL(photoReference string, maxWidth int) string {
	return c.baseURL + c.photoPath(photoReference, maxWidth)
}

func (c *Client) photoPath(photoReference string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return "/api/places/photo?photoreference=" + url.QueryEscape(photoReference) +
		"&maxwidth=" + strconv.Itoa(maxWidth)
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body) == nil {
			apiErr.Message = body.Error
		}
		return nil, apiErr
	}

	return resp, nil
}
