package domain

import (
	"encoding/json"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// OverlayCategory groups shapes on the map surface. Shapes of different
// categories are never mixed.
type OverlayCategory string

const (
	CategorySource      OverlayCategory = "source"
	CategoryDestination OverlayCategory = "destination"
	CategoryRoute       OverlayCategory = "route"
	CategoryTraffic     OverlayCategory = "traffic"
	CategoryAreaA       OverlayCategory = "area:a"
	CategoryAreaB       OverlayCategory = "area:b"
	CategoryAreaRect    OverlayCategory = "area:rect"

	poiPrefix = "poi:"
)

// POICategory returns the overlay category owned by a POI type.
func POICategory(t POIType) OverlayCategory {
	return OverlayCategory(poiPrefix + string(t))
}

// POIType reports the POI type of a poi:<type> category.
func (c OverlayCategory) POIType() (POIType, bool) {
	s := string(c)
	if !strings.HasPrefix(s, poiPrefix) {
		return "", false
	}
	return POIType(strings.TrimPrefix(s, poiPrefix)), true
}

// SingleInstance reports whether the category holds at most one shape.
func (c OverlayCategory) SingleInstance() bool {
	switch c {
	case CategorySource, CategoryDestination, CategoryAreaA, CategoryAreaB:
		return true
	}
	return false
}

// Endpoint is one end of a route.
type Endpoint string

const (
	EndpointSource      Endpoint = "source"
	EndpointDestination Endpoint = "destination"
)

// Category returns the marker category of the endpoint.
func (e Endpoint) Category() OverlayCategory {
	if e == EndpointDestination {
		return CategoryDestination
	}
	return CategorySource
}

// ShapeKind is the drawable primitive.
type ShapeKind string

const (
	ShapeMarker    ShapeKind = "marker"
	ShapePath      ShapeKind = "path"
	ShapeRectangle ShapeKind = "rectangle"
)

// ShapeStyle carries stroke attributes for paths and rectangles.
type ShapeStyle struct {
	Color       string  `json:"color,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`
	FillOpacity float64 `json:"fill_opacity,omitempty"`
	Dashed      bool    `json:"dashed,omitempty"`
}

// ShapeHandle identifies a shape on the surface.
type ShapeHandle string

// Shape is one drawable overlay item.
type Shape struct {
	Handle    ShapeHandle     `json:"handle"`
	Category  OverlayCategory `json:"category"`
	Kind      ShapeKind       `json:"kind"`
	Position  Coordinate      `json:"position"`
	Geometry  orb.Geometry    `json:"-"`
	Icon      string          `json:"icon,omitempty"`
	Title     string          `json:"title,omitempty"`
	Style     ShapeStyle      `json:"style"`
	Draggable bool            `json:"draggable,omitempty"`
	// Ref points back at the source entity, e.g. a POI id.
	Ref string `json:"ref,omitempty"`
	// Favorite is set when the shape offers a "save as favorite" action.
	Favorite *FavoriteCandidate `json:"favorite,omitempty"`
}

// Bounds returns the extent of the shape.
func (s Shape) Bounds() Bounds {
	if s.Geometry != nil {
		return BoundsFromOrb(s.Geometry.Bound())
	}
	return Bounds{MinLat: s.Position.Lat, MinLng: s.Position.Lng, MaxLat: s.Position.Lat, MaxLng: s.Position.Lng}
}

// MarshalJSON emits the geometry as GeoJSON alongside the other fields.
func (s Shape) MarshalJSON() ([]byte, error) {
	type plain Shape
	out := struct {
		plain
		Geometry *geojson.Geometry `json:"geometry,omitempty"`
	}{plain: plain(s)}
	if s.Geometry != nil {
		out.Geometry = geojson.NewGeometry(s.Geometry)
	}
	return json.Marshal(out)
}

// Viewport is a framing request sent to the surface.
type Viewport struct {
	Bounds  Bounds  `json:"bounds"`
	Padding float64 `json:"padding"`
	MaxZoom int     `json:"max_zoom,omitempty"`
}
