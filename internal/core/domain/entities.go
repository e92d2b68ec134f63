package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// TransportMode selects the routing profile.
type TransportMode string

const (
	ModeDriving TransportMode = "driving"
	ModeWalking TransportMode = "walking"
	ModeCycling TransportMode = "cycling"
	ModeTransit TransportMode = "transit"
)

// ParseTransportMode accepts a mode name case-insensitively.
func ParseTransportMode(s string) (TransportMode, error) {
	switch m := TransportMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeDriving, ModeWalking, ModeCycling, ModeTransit:
		return m, nil
	case "":
		return ModeDriving, nil
	default:
		return "", fmt.Errorf("%w: unknown transport mode %q", ErrInvalidInput, s)
	}
}

// POIType names a family of points of interest. Each type owns its own
// overlay category.
type POIType string

const (
	POITaxi     POIType = "taxi"
	POIPharmacy POIType = "pharmacy"
	POIWiFi     POIType = "wifi"
	POIBicycle  POIType = "bicycle"
)

// ParsePOIType validates a POI type name.
func ParsePOIType(s string) (POIType, error) {
	switch t := POIType(strings.ToLower(s)); t {
	case POITaxi, POIPharmacy, POIWiFi, POIBicycle:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown poi type %q", ErrInvalidInput, s)
	}
}

// PointOfInterest is a normalized provider result.
type PointOfInterest struct {
	ID         string     `json:"id"`
	Type       POIType    `json:"type"`
	Name       string     `json:"name"`
	Location   Coordinate `json:"location"`
	Address    string     `json:"address,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	DistanceKm *float64   `json:"distance_km,omitempty"`
	District   string     `json:"district,omitempty"`
	ExtraInfo  string     `json:"extra_info,omitempty"`
	Rating     *float64   `json:"rating,omitempty"`
	Date       string     `json:"date,omitempty"`
}

// FavoriteLocation is a saved place. Names are unique case-insensitively.
type FavoriteLocation struct {
	ID       string     `json:"id" yaml:"id"`
	Name     string     `json:"name" yaml:"name"`
	Address  string     `json:"address" yaml:"address"`
	Location Coordinate `json:"location" yaml:"location"`
	Tag      string     `json:"tag,omitempty" yaml:"tag,omitempty"`
}

// FavoriteCandidate is what a caller asks to save. The ID is assigned by
// whichever backend is authoritative.
type FavoriteCandidate struct {
	Name     string     `json:"name"`
	Address  string     `json:"address"`
	Location Coordinate `json:"location"`
	Tag      string     `json:"tag,omitempty"`
}

// Validate checks the candidate before any backend is touched.
func (f FavoriteCandidate) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: favorite name must not be empty", ErrInvalidInput)
	}
	return f.Location.Validate()
}

// PreferenceType marks an area as preferred or avoided for routing.
type PreferenceType string

const (
	PreferencePrefer PreferenceType = "prefer"
	PreferenceAvoid  PreferenceType = "avoid"
)

// ParsePreferenceType validates a preference type name.
func ParsePreferenceType(s string) (PreferenceType, error) {
	switch p := PreferenceType(strings.ToLower(s)); p {
	case PreferencePrefer, PreferenceAvoid:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown preference type %q", ErrInvalidInput, s)
	}
}

// AreaPreference is a stored routing preference for a rectangle.
type AreaPreference struct {
	ID        string         `json:"id"`
	Type      PreferenceType `json:"type"`
	Bounds    Bounds         `json:"bounds"`
	Reason    string         `json:"reason,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
}

// RouteRequest is one directions query.
type RouteRequest struct {
	Start         Coordinate
	End           Coordinate
	Mode          TransportMode
	DepartureTime time.Time
}

// RouteStep is one maneuver of a route leg.
type RouteStep struct {
	Instruction string  `json:"instruction,omitempty"`
	Name        string  `json:"name,omitempty"`
	Distance    float64 `json:"distance"`
	Duration    float64 `json:"duration"`
}

// TransitSection is one leg of a public transport itinerary.
type TransitSection struct {
	Type      string         `json:"type"`
	Duration  float64        `json:"duration"`
	Distance  float64        `json:"distance"`
	Transport *TransitLine   `json:"transport,omitempty"`
	Departure *TransitAnchor `json:"departure,omitempty"`
	Arrival   *TransitAnchor `json:"arrival,omitempty"`
}

type TransitLine struct {
	Mode     string `json:"mode"`
	Name     string `json:"name"`
	Line     string `json:"line"`
	Headsign string `json:"headsign"`
}

type TransitAnchor struct {
	Time  string `json:"time"`
	Place string `json:"place"`
}

// TransitInfo accompanies routes computed in transit mode.
type TransitInfo struct {
	Sections []TransitSection `json:"sections"`
}

// RouteGeometry is a computed route. It replaces any previous route whole.
type RouteGeometry struct {
	Path      orb.Geometry  `json:"-"`
	Mode      TransportMode `json:"mode"`
	Distance  float64       `json:"distance"`
	Duration  float64       `json:"duration"`
	Steps     []RouteStep   `json:"steps,omitempty"`
	Transit   *TransitInfo  `json:"transit_info,omitempty"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// Bounds returns the bounding box of the route path.
func (r *RouteGeometry) Bounds() (Bounds, bool) {
	if r == nil || r.Path == nil {
		return Bounds{}, false
	}
	b := r.Path.Bound()
	if b.IsEmpty() {
		return Bounds{}, false
	}
	return BoundsFromOrb(b), true
}

// TrafficSeverity buckets a traffic segment.
type TrafficSeverity string

const (
	SeverityLow     TrafficSeverity = "low"
	SeverityMedium  TrafficSeverity = "medium"
	SeverityHigh    TrafficSeverity = "high"
	SeverityUnknown TrafficSeverity = "unknown"
)

// PharmacyDataStatus is the outcome of the daily duty-pharmacy check.
type PharmacyDataStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// MapStyle names a base tile layer.
type MapStyle string

const (
	StyleStandard  MapStyle = "standard"
	StyleLight     MapStyle = "light"
	StyleDark      MapStyle = "dark"
	StyleSatellite MapStyle = "satellite"
	StyleTransport MapStyle = "transport"
	StyleOutdoors  MapStyle = "outdoors"
)

// ParseMapStyle validates a style name.
func ParseMapStyle(s string) (MapStyle, error) {
	switch m := MapStyle(strings.ToLower(s)); m {
	case StyleStandard, StyleLight, StyleDark, StyleSatellite, StyleTransport, StyleOutdoors:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown map style %q", ErrInvalidInput, s)
	}
}
