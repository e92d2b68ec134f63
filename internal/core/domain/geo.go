package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Coordinate is a WGS 84 position. Map libraries disagree on axis order, so
// conversions to orb (lng, lat) go through Point and CoordinateFromPoint only.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Point returns the coordinate in orb's [lng, lat] order.
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// CoordinateFromPoint converts an orb point back into a Coordinate.
func CoordinateFromPoint(p orb.Point) Coordinate {
	return Coordinate{Lat: p.Lat(), Lng: p.Lon()}
}

// Validate rejects non-finite values and anything outside the metro area.
// Coordinates are never clamped.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return fmt.Errorf("%w: non-finite coordinate", ErrOutOfBounds)
	}
	if !MetroBounds.Contains(c) {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, c)
	}
	return nil
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// MetroBounds is the service area. Every accepted coordinate lies inside it.
var MetroBounds = Bounds{MinLat: 39.7, MinLng: 32.5, MaxLat: 40.1, MaxLng: 33.2}

// MetroCenter is the initial map center.
var MetroCenter = Coordinate{Lat: 39.9334, Lng: 32.8597}

// NewBounds builds a normalized box from two corners given in any order.
func NewBounds(a, b Coordinate) Bounds {
	return Bounds{
		MinLat: math.Min(a.Lat, b.Lat),
		MinLng: math.Min(a.Lng, b.Lng),
		MaxLat: math.Max(a.Lat, b.Lat),
		MaxLng: math.Max(a.Lng, b.Lng),
	}
}

// BoundsFromOrb converts an orb bound.
func BoundsFromOrb(b orb.Bound) Bounds {
	return Bounds{MinLat: b.Min.Lat(), MinLng: b.Min.Lon(), MaxLat: b.Max.Lat(), MaxLng: b.Max.Lon()}
}

// Bound returns the box as an orb.Bound.
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinLng, b.MinLat}, Max: orb.Point{b.MaxLng, b.MaxLat}}
}

// Contains reports whether c lies inside the box, edges included.
func (b Bounds) Contains(c Coordinate) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lng >= b.MinLng && c.Lng <= b.MaxLng
}

// Extend grows the box to include c.
func (b Bounds) Extend(c Coordinate) Bounds {
	return BoundsFromOrb(b.Bound().Extend(c.Point()))
}

// Union grows the box to include o.
func (b Bounds) Union(o Bounds) Bounds {
	return BoundsFromOrb(b.Bound().Union(o.Bound()))
}

// Intersect returns the overlap of two boxes. ok is false when they are disjoint.
func (b Bounds) Intersect(o Bounds) (Bounds, bool) {
	r := Bounds{
		MinLat: math.Max(b.MinLat, o.MinLat),
		MinLng: math.Max(b.MinLng, o.MinLng),
		MaxLat: math.Min(b.MaxLat, o.MaxLat),
		MaxLng: math.Min(b.MaxLng, o.MaxLng),
	}
	if r.MinLat > r.MaxLat || r.MinLng > r.MaxLng {
		return Bounds{}, false
	}
	return r, true
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Coordinate {
	return CoordinateFromPoint(b.Bound().Center())
}

// Corners returns the south-west and north-east corners.
func (b Bounds) Corners() (sw, ne Coordinate) {
	return Coordinate{Lat: b.MinLat, Lng: b.MinLng}, Coordinate{Lat: b.MaxLat, Lng: b.MaxLng}
}

// Ring returns the closed outline of the box, suitable for a rectangle shape.
func (b Bounds) Ring() orb.Ring {
	return orb.Ring{
		{b.MinLng, b.MinLat},
		{b.MaxLng, b.MinLat},
		{b.MaxLng, b.MaxLat},
		{b.MinLng, b.MaxLat},
		{b.MinLng, b.MinLat},
	}
}
