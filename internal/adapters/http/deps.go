package http

import (
	"github.com/nats-io/nats.go"

	"github.com/mapnav/navclient/internal/adapters/sqlite"
	"github.com/mapnav/navclient/internal/adapters/surface"
	"github.com/mapnav/navclient/internal/adapters/valkey"
	"github.com/mapnav/navclient/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Session   *usecases.Session
	Overlays  *usecases.OverlayManager
	Map       *usecases.MapController
	Routes    *usecases.RouteService
	Discovery *usecases.DiscoveryService
	Favorites *usecases.FavoriteService
	Areas     *usecases.AreaSelectionService
	Traffic   *usecases.TrafficService

	// Surface streams overlay changes to connected renderers.
	Surface *surface.Surface

	NATS  *nats.Conn
	Store *sqlite.DB
	Cache *valkey.Cache
}
