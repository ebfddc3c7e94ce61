package models

// PlaceResult is the display-ready shape returned by the search endpoint.
// JSON keys are camelCase because the frontend consumes them as-is.
type PlaceResult struct {
	PlaceID             string   `json:"placeId"`
	Name                string   `json:"name"`
	Address             string   `json:"address"`
	Lat                 float64  `json:"lat"`
	Lng                 float64  `json:"lng"`
	PhotoReference      *string  `json:"photoReference,omitempty"`
	PhotoURL            *string  `json:"photoUrl,omitempty"`
	OpeningHoursSummary *string  `json:"openingHoursSummary,omitempty"`
	IsOpenNow           *bool    `json:"isOpenNow,omitempty"` // nil = unknown
	PhoneNumber         *string  `json:"phoneNumber,omitempty"`
	Types               []string `json:"types"`
}

// OpeningHours upstream opening_hours block
type OpeningHours struct {
	OpenNow     *bool    `json:"open_now,omitempty"`
	WeekdayText []string `json:"weekday_text,omitempty"`
}

// DetailRecord per-place detail payload, cached independently of searches
type DetailRecord struct {
	OpeningHours         *OpeningHours `json:"opening_hours,omitempty"`
	FormattedPhoneNumber *string       `json:"formatted_phone_number,omitempty"`
}
