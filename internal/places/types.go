package places

import "github.com/ggorockee/shopfinder/internal/models"

// Upstream status values that mean "the call worked"
const (
	StatusOK          = "OK"
	StatusZeroResults = "ZERO_RESULTS"
)

// TextSearchResponse textsearch/json body
type TextSearchResponse struct {
	Results      []TextResult `json:"results"`
	Status       string       `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// TextResult one search hit
type TextResult struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress *string  `json:"formatted_address,omitempty"`
	Vicinity         *string  `json:"vicinity,omitempty"`
	Geometry         Geometry `json:"geometry"`
	Photos           []Photo  `json:"photos,omitempty"`
	Types            []string `json:"types,omitempty"`
}

type Geometry struct {
	Location Location `json:"location"`
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Photo struct {
	PhotoReference string `json:"photo_reference"`
	Height         int    `json:"height,omitempty"`
	Width          int    `json:"width,omitempty"`
}

// DetailsResponse details/json body
type DetailsResponse struct {
	Result       *models.DetailRecord `json:"result,omitempty"`
	Status       string               `json:"status"`
	ErrorMessage string               `json:"error_message,omitempty"`
}
