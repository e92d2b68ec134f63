// Package app wires adapters and workflows into a running client.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mapnav/navclient/internal/adapters/backend"
	handler "github.com/mapnav/navclient/internal/adapters/http"
	natsadapter "github.com/mapnav/navclient/internal/adapters/nats"
	"github.com/mapnav/navclient/internal/adapters/overpass"
	"github.com/mapnav/navclient/internal/adapters/sqlite"
	"github.com/mapnav/navclient/internal/adapters/surface"
	"github.com/mapnav/navclient/internal/adapters/valkey"
	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/ports"
	"github.com/mapnav/navclient/internal/core/usecases"
	"github.com/mapnav/navclient/internal/pkg/config"
)

// App is a fully wired client.
type App struct {
	Surface   *surface.Surface
	Session   *usecases.Session
	Overlays  *usecases.OverlayManager
	Map       *usecases.MapController
	Routes    *usecases.RouteService
	Discovery *usecases.DiscoveryService
	Favorites *usecases.FavoriteService
	Areas     *usecases.AreaSelectionService
	Traffic   *usecases.TrafficService

	store      *sqlite.DB
	cache      *valkey.Cache
	publisher  *natsadapter.Publisher
	subscriber *natsadapter.Subscriber
}

// New builds the client from configuration. Only the local favorites store
// is required; the cache, the broker and geocoding degrade to off when
// unavailable.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Surface: surface.New()}

	store, err := sqlite.New(ctx, cfg.Favorites.CachePath)
	if err != nil {
		return nil, fmt.Errorf("favorites store: %w", err)
	}
	a.store = store

	var cache ports.CacheService
	if cfg.Cache.Enabled {
		c, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable, poi cache disabled", "error", err)
		} else {
			a.cache, cache = c, c
		}
	}

	var publisher ports.EventPublisher
	if cfg.NATS.Enabled {
		p, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, events disabled", "error", err)
		} else {
			a.publisher, publisher = p, p
		}
	}

	timeout := time.Duration(cfg.Backend.TimeoutSeconds) * time.Second
	api := backend.New(cfg.Backend.BaseURL, timeout)

	var geocoder ports.Geocoder
	if cfg.Google.APIKey != "" {
		geocoder = backend.NewGoogleGeocoder(cfg.Google.GeocodeURL, cfg.Google.APIKey, cfg.Google.Language, timeout)
	}

	var taxi ports.POIProvider = api.TaxiStations()
	if cfg.Overpass.Enabled {
		taxi = overpass.NewTaxiProvider(cfg.Overpass.Endpoint, timeout)
	}
	pharmacies := api.Pharmacies()

	a.Session = usecases.NewSession(a.Surface, publisher)
	a.Overlays = usecases.NewOverlayManager(a.Surface)
	a.Routes = usecases.NewRouteService(a.Overlays, api, geocoder, a.Session, publisher)
	a.Favorites = usecases.NewFavoriteService(api.Favorites(), sqlite.NewFavoritesRepo(store), a.Session, publisher)
	a.Discovery = usecases.NewDiscoveryService(a.Overlays,
		map[domain.POIType]ports.POIProvider{
			domain.POITaxi:     taxi,
			domain.POIPharmacy: pharmacies,
			domain.POIWiFi:     api.WiFiPoints(),
			domain.POIBicycle:  api.BicycleStations(),
		},
		pharmacies, a.Routes, a.Favorites, a.Session, cache, publisher,
		usecases.DiscoveryOptions{
			RadiusMeters:    cfg.Discovery.RadiusMeters,
			CacheTTLSeconds: cfg.Cache.TTLSeconds,
		})
	a.Areas = usecases.NewAreaSelectionService(a.Overlays, api.AreaPreferences(), a.Session, publisher)
	a.Traffic = usecases.NewTrafficService(a.Overlays, api.Traffic(), a.Session, publisher, cfg.Traffic.RefetchOnStyle)
	a.Map = usecases.NewMapController(a.Routes, a.Areas, a.Traffic)

	a.Session.OnChange(a.reloadFavorites)
	a.Session.OnChange(a.Traffic.HandleSessionChange)

	if cfg.Backend.Token != "" {
		a.Session.SetToken(ctx, cfg.Backend.Token)
	} else if _, err := a.Favorites.Load(ctx); err != nil {
		slog.Warn("initial favorites load failed", "error", err)
	}

	if cfg.NATS.Enabled && a.publisher != nil {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats subscriber unavailable", "error", err)
		} else if err := sub.SubscribeEvents(ctx, a.Surface.Relay); err != nil {
			slog.Warn("relay events to renderers", "error", err)
			sub.Close()
		} else {
			a.subscriber = sub
		}
	}

	return a, nil
}

func (a *App) reloadFavorites(ctx context.Context, change usecases.SessionChange) {
	if _, err := a.Favorites.Load(ctx); err != nil {
		slog.Warn("reload favorites after session change", "change", change, "error", err)
	}
}

// Dependencies exposes the client to the HTTP adapter.
func (a *App) Dependencies() *handler.Dependencies {
	deps := &handler.Dependencies{
		Session:   a.Session,
		Overlays:  a.Overlays,
		Map:       a.Map,
		Routes:    a.Routes,
		Discovery: a.Discovery,
		Favorites: a.Favorites,
		Areas:     a.Areas,
		Traffic:   a.Traffic,
		Surface:   a.Surface,
		Store:     a.store,
		Cache:     a.cache,
	}
	if a.publisher != nil {
		deps.NATS = a.publisher.Conn()
	}
	return deps
}

// Close detaches the surface and releases every connection.
func (a *App) Close() {
	a.Overlays.Teardown()
	if a.subscriber != nil {
		a.subscriber.Close()
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("close favorites store", "error", err)
	}
}
