package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/ports"
	"github.com/mapnav/navclient/internal/pkg/metrics"
	"github.com/mapnav/navclient/internal/pkg/telemetry"
)

var (
	routeStyle   = domain.ShapeStyle{Color: "#4285F4", Weight: 5, Opacity: 0.85}
	transitStyle = domain.ShapeStyle{Color: "#673AB7", Weight: 5, Opacity: 0.85}
)

// EndpointOptions tunes SetEndpoint.
type EndpointOptions struct {
	// Address is a known label for the point; when set no reverse geocoding
	// is attempted.
	Address string
	// NoAutoRoute suppresses the route request normally issued once both
	// endpoints are known.
	NoAutoRoute bool
}

type routeEndpoint struct {
	at      domain.Coordinate
	address string
	gen     uint64
}

// RouteService owns the route endpoints and the route overlay. Every route
// request takes a sequence number and a response is applied only while its
// number is still the latest issued.
type RouteService struct {
	overlays   *OverlayManager
	directions ports.DirectionsService
	geocoder   ports.Geocoder
	session    *Session
	publisher  ports.EventPublisher

	seq atomic.Uint64
	// applyMu orders response application against route clearing. It is
	// always taken before mu.
	applyMu sync.Mutex

	mu        sync.Mutex
	endpoints map[domain.Endpoint]*routeEndpoint
	gen       uint64
	mode      domain.TransportMode
	departure time.Time
	current   *domain.RouteGeometry
	autoRoute bool
}

// NewRouteService creates a RouteService. geocoder and publisher may be nil.
func NewRouteService(overlays *OverlayManager, directions ports.DirectionsService, geocoder ports.Geocoder, session *Session, publisher ports.EventPublisher) *RouteService {
	return &RouteService{
		overlays:   overlays,
		directions: directions,
		geocoder:   geocoder,
		session:    session,
		publisher:  publisher,
		endpoints:  make(map[domain.Endpoint]*routeEndpoint),
		mode:       domain.ModeDriving,
		autoRoute:  true,
	}
}

// SetAutoRoute toggles routing as soon as both endpoints are placed.
func (s *RouteService) SetAutoRoute(on bool) {
	s.mu.Lock()
	s.autoRoute = on
	s.mu.Unlock()
}

// Endpoint returns the coordinate of an endpoint if it is placed.
func (s *RouteService) Endpoint(ep domain.Endpoint) (domain.Coordinate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.endpoints[ep]
	if !ok {
		return domain.Coordinate{}, false
	}
	return e.at, true
}

// EndpointAddress returns the label of an endpoint, possibly empty.
func (s *RouteService) EndpointAddress(ep domain.Endpoint) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.endpoints[ep]; ok {
		return e.address
	}
	return ""
}

// Current returns the route on the map, or nil.
func (s *RouteService) Current() *domain.RouteGeometry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Mode returns the selected transport mode.
func (s *RouteService) Mode() domain.TransportMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// DepartureTime returns the requested departure time; zero means now.
func (s *RouteService) DepartureTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.departure
}

// SetEndpoint places (or moves) an endpoint marker. When both endpoints are
// known a route is requested; its result is returned.
func (s *RouteService) SetEndpoint(ctx context.Context, ep domain.Endpoint, at domain.Coordinate, opts EndpointOptions) (*domain.RouteGeometry, error) {
	if err := at.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.endpoints[ep] = &routeEndpoint{at: at, address: opts.Address, gen: gen}
	err := s.drawEndpointLocked(ep)
	auto := s.autoRoute && !opts.NoAutoRoute
	_, hasSrc := s.endpoints[domain.EndpointSource]
	_, hasDst := s.endpoints[domain.EndpointDestination]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var (
		route    *domain.RouteGeometry
		routeErr error
	)
	if auto && hasSrc && hasDst {
		route, routeErr = s.Reroute(ctx)
	}

	if opts.Address == "" && s.geocoder != nil {
		s.label(ctx, ep, at, gen)
	}
	return route, routeErr
}

// label reverse geocodes an endpoint and retitles its marker unless the
// endpoint moved in the meantime.
func (s *RouteService) label(ctx context.Context, ep domain.Endpoint, at domain.Coordinate, gen uint64) {
	addr, err := s.geocoder.ReverseGeocode(ctx, at)
	if err != nil {
		slog.Debug("reverse geocode failed", "endpoint", ep, "error", err)
		return
	}
	if addr == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.endpoints[ep]
	if !ok || e.gen != gen {
		return
	}
	e.address = addr
	if err := s.drawEndpointLocked(ep); err != nil {
		slog.Warn("redraw endpoint marker", "endpoint", ep, "error", err)
	}
}

func (s *RouteService) drawEndpointLocked(ep domain.Endpoint) error {
	e := s.endpoints[ep]
	title := e.address
	if title == "" {
		title = e.at.String()
	}
	_, err := s.overlays.SetMarker(ep.Category(), e.at, MarkerSpec{
		Icon:      string(ep),
		Title:     title,
		Draggable: true,
		Favorite:  &domain.FavoriteCandidate{Name: title, Address: e.address, Location: e.at},
	})
	return err
}

// ClearEndpoint removes an endpoint marker. The route no longer matches the
// endpoints, so it is removed too and any request in flight is dropped.
func (s *RouteService) ClearEndpoint(ctx context.Context, ep domain.Endpoint) error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	delete(s.endpoints, ep)
	if err := s.overlays.Clear(ep.Category()); err != nil {
		return err
	}
	return s.clearRouteLocked()
}

// ClearRoute removes the route overlay and drops any request in flight.
func (s *RouteService) ClearRoute(ctx context.Context) error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearRouteLocked()
}

func (s *RouteService) clearRouteLocked() error {
	s.seq.Add(1)
	s.current = nil
	return s.overlays.Clear(domain.CategoryRoute)
}

// SetTransportMode changes the routing profile and reroutes when possible.
func (s *RouteService) SetTransportMode(ctx context.Context, mode domain.TransportMode) (*domain.RouteGeometry, error) {
	mode, err := domain.ParseTransportMode(string(mode))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	return s.rerouteIfReady(ctx)
}

// SetDepartureTime changes the departure time and reroutes when possible.
// The zero time means "leave now".
func (s *RouteService) SetDepartureTime(ctx context.Context, t time.Time) (*domain.RouteGeometry, error) {
	s.mu.Lock()
	s.departure = t
	s.mu.Unlock()
	return s.rerouteIfReady(ctx)
}

// SetOptions changes mode and departure time together and reroutes once.
// An empty mode or a nil departure leaves that option unchanged.
func (s *RouteService) SetOptions(ctx context.Context, mode domain.TransportMode, departure *time.Time) (*domain.RouteGeometry, error) {
	if mode != "" {
		m, err := domain.ParseTransportMode(string(mode))
		if err != nil {
			return nil, err
		}
		mode = m
	}
	s.mu.Lock()
	if mode != "" {
		s.mode = mode
	}
	if departure != nil {
		s.departure = *departure
	}
	s.mu.Unlock()
	return s.rerouteIfReady(ctx)
}

func (s *RouteService) rerouteIfReady(ctx context.Context) (*domain.RouteGeometry, error) {
	s.mu.Lock()
	_, hasSrc := s.endpoints[domain.EndpointSource]
	_, hasDst := s.endpoints[domain.EndpointDestination]
	s.mu.Unlock()
	if !hasSrc || !hasDst {
		return nil, nil
	}
	return s.Reroute(ctx)
}

// Reroute requests a route between the placed endpoints.
func (s *RouteService) Reroute(ctx context.Context) (*domain.RouteGeometry, error) {
	s.mu.Lock()
	var src, dst *domain.Coordinate
	if e, ok := s.endpoints[domain.EndpointSource]; ok {
		at := e.at
		src = &at
	}
	if e, ok := s.endpoints[domain.EndpointDestination]; ok {
		at := e.at
		dst = &at
	}
	s.mu.Unlock()
	return s.RequestRoute(ctx, src, dst)
}

// RequestRoute computes a route and, if no newer request was issued in the
// meantime, replaces the route overlay and frames it. A missing endpoint
// fails before any network call. A failed request leaves the previous route
// on the map.
func (s *RouteService) RequestRoute(ctx context.Context, source, destination *domain.Coordinate) (*domain.RouteGeometry, error) {
	if source == nil {
		return nil, &domain.MissingEndpointError{Endpoint: domain.EndpointSource}
	}
	if destination == nil {
		return nil, &domain.MissingEndpointError{Endpoint: domain.EndpointDestination}
	}
	if err := source.Validate(); err != nil {
		return nil, err
	}
	if err := destination.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	req := domain.RouteRequest{Start: *source, End: *destination, Mode: s.mode, DepartureTime: s.departure}
	s.mu.Unlock()

	seq := s.seq.Add(1)
	ctx, span := telemetry.Start(ctx, telemetry.SpanRouteRequest,
		attribute.String("route.mode", string(req.Mode)),
		attribute.Int64("route.seq", int64(seq)),
	)
	defer span.End()

	token, _ := s.session.Token()
	route, err := s.directions.Route(ctx, token, req)
	if errors.Is(err, domain.ErrUnauthorized) {
		// a rejected token is invalid whether or not this response is stale
		s.session.Revoke(ctx, token)
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if seq != s.seq.Load() {
		metrics.StaleResponses.WithLabelValues("route").Inc()
		slog.Debug("dropping stale route response", "seq", seq)
		return nil, domain.ErrSuperseded
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("request route: %w", err)
	}

	bounds, ok := route.Bounds()
	if !ok {
		return nil, fmt.Errorf("request route: %w: empty geometry", domain.ErrMalformedResponse)
	}
	if route.Mode == "" {
		route.Mode = req.Mode
	}
	if route.FetchedAt.IsZero() {
		route.FetchedAt = time.Now().UTC()
	}

	style := routeStyle
	if route.Mode == domain.ModeTransit {
		style = transitStyle
	}
	if _, err := s.overlays.ReplaceSet(domain.CategoryRoute, []domain.Shape{{
		Kind:     domain.ShapePath,
		Position: bounds.Center(),
		Geometry: route.Path,
		Style:    style,
		Title:    fmt.Sprintf("%.1f km, %.0f min", route.Distance/1000, route.Duration/60),
	}}); err != nil {
		return nil, err
	}

	frame, ok := bounds.Intersect(domain.MetroBounds)
	if !ok {
		frame = domain.MetroBounds
	}
	if err := s.overlays.FitBounds(frame, DefaultFitPadding, DefaultMaxZoom); err != nil {
		slog.Warn("fit route bounds", "error", err)
	}

	s.mu.Lock()
	s.current = route
	s.mu.Unlock()

	metrics.RoutesComputed.WithLabelValues(string(route.Mode)).Inc()
	publish(ctx, s.publisher, domain.NewEvent(domain.EventRouteComputed, map[string]any{
		"mode":     string(route.Mode),
		"distance": route.Distance,
		"duration": route.Duration,
	}))
	return route, nil
}
