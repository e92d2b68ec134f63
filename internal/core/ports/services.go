package ports

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/mapnav/navclient/internal/core/domain"
)

// DirectionsService computes routes between two coordinates.
type DirectionsService interface {
	Route(ctx context.Context, token string, req domain.RouteRequest) (*domain.RouteGeometry, error)
}

// Geocoder resolves a coordinate into a human-readable address.
// An empty address with a nil error means nothing was found.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, c domain.Coordinate) (string, error)
}

// NearbyQuery parameterizes a POI lookup.
type NearbyQuery struct {
	Origin       domain.Coordinate
	Date         string
	RadiusMeters int
}

// POIProvider returns raw points of interest near an origin. Providers
// normalize their payloads before returning.
type POIProvider interface {
	Nearby(ctx context.Context, token string, q NearbyQuery) ([]domain.PointOfInterest, error)
}

// PharmacyStatusChecker checks whether today's duty pharmacy data exists.
type PharmacyStatusChecker interface {
	CheckToday(ctx context.Context, token string) (*domain.PharmacyDataStatus, error)
}

// FavoritesService is the remote, authenticated favorites store.
// Create returns domain.ErrDuplicateName on a name clash; Delete returns
// domain.ErrNotFound when the id is gone.
type FavoritesService interface {
	List(ctx context.Context, token string) ([]domain.FavoriteLocation, error)
	Create(ctx context.Context, token string, f domain.FavoriteCandidate) (*domain.FavoriteLocation, error)
	Delete(ctx context.Context, token string, id string) error
}

// AreaPreferenceService stores routing area preferences.
type AreaPreferenceService interface {
	List(ctx context.Context, token string) ([]domain.AreaPreference, error)
	Create(ctx context.Context, token string, p domain.AreaPreference) (*domain.AreaPreference, error)
	Delete(ctx context.Context, token string, id string) error
}

// TrafficFeed returns the latest traffic snapshot.
type TrafficFeed interface {
	Latest(ctx context.Context, token string) (*geojson.FeatureCollection, error)
}

// MapSurface is the rendering target. Only the overlay manager calls it.
type MapSurface interface {
	AddShape(shape domain.Shape) error
	RemoveShape(handle domain.ShapeHandle) error
	MoveShape(handle domain.ShapeHandle, to domain.Coordinate) error
	FitBounds(v domain.Viewport) error
	SetBaseStyle(style domain.MapStyle) error
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Notifier surfaces notices to the user.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notice)
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
