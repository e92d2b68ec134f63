package backend

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mapnav/navclient/internal/core/domain"
)

// GoogleGeocoder implements ports.Geocoder with the Google Geocoding API.
type GoogleGeocoder struct {
	cl       *Client
	apiKey   string
	language string
}

// NewGoogleGeocoder creates a reverse geocoder. endpoint is the full
// geocode/json URL.
func NewGoogleGeocoder(endpoint, apiKey, language string, timeout time.Duration) *GoogleGeocoder {
	return &GoogleGeocoder{cl: New(endpoint, timeout), apiKey: apiKey, language: language}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress  string `json:"formatted_address"`
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
}

// ReverseGeocode returns "<route> <street_number>" when both are known,
// otherwise the formatted address. ZERO_RESULTS yields "".
func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, c domain.Coordinate) (string, error) {
	query := url.Values{}
	query.Set("latlng", formatFloat(c.Lat)+","+formatFloat(c.Lng))
	query.Set("key", g.apiKey)
	if g.language != "" {
		query.Set("language", g.language)
	}

	var resp geocodeResponse
	if err := g.cl.do(ctx, call{service: "geocode", method: "GET", query: query}, &resp); err != nil {
		return "", err
	}
	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return "", nil
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR", "REQUEST_DENIED":
		return "", fmt.Errorf("geocode: %w: %s", domain.ErrUnavailable, resp.Status)
	default:
		return "", fmt.Errorf("geocode: %w: status %q", domain.ErrMalformedResponse, resp.Status)
	}
	if len(resp.Results) == 0 {
		return "", nil
	}

	first := resp.Results[0]
	var route, number string
	for _, comp := range first.AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "route":
				route = comp.LongName
			case "street_number":
				number = comp.LongName
			}
		}
	}
	if route != "" && number != "" {
		return strings.TrimSpace(route + " " + number), nil
	}
	return first.FormattedAddress, nil
}
