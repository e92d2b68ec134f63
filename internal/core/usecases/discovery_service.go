package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/ports"
	"github.com/mapnav/navclient/internal/pkg/geospatial"
	"github.com/mapnav/navclient/internal/pkg/metrics"
	"github.com/mapnav/navclient/internal/pkg/telemetry"
)

// DiscoveryState tags the lifecycle of one POI type.
type DiscoveryState string

const (
	DiscoveryIdle    DiscoveryState = "idle"
	DiscoveryLoading DiscoveryState = "loading"
	DiscoveryReady   DiscoveryState = "ready"
	DiscoveryError   DiscoveryState = "error"
)

// poiNamespace seeds ids for providers that do not return a stable one.
var poiNamespace = uuid.MustParse("6f1c4d1e-0b7a-4c55-9a43-3f1f6f0c9e21")

// StablePOIID derives an id from name and position so the same place keeps
// the same id across fetches.
func StablePOIID(name string, at domain.Coordinate) string {
	key := fmt.Sprintf("%s|%.6f|%.6f", strings.ToLower(strings.TrimSpace(name)), at.Lat, at.Lng)
	return uuid.NewSHA1(poiNamespace, []byte(key)).String()
}

// DiscoveryResult is what one Discover call produced.
type DiscoveryResult struct {
	Type domain.POIType          `json:"type"`
	POIs []domain.PointOfInterest `json:"pois"`
	// Route is set when discovery routed to the nearest result.
	Route    *domain.RouteGeometry `json:"route,omitempty"`
	RouteErr error                 `json:"-"`
}

// DiscoveryStatus reports the state of one POI type.
type DiscoveryStatus struct {
	Type    domain.POIType `json:"type"`
	State   DiscoveryState `json:"state"`
	Count   int            `json:"count"`
	LastErr string         `json:"last_error,omitempty"`
}

type poiTypeState struct {
	state   DiscoveryState
	seq     uint64
	results []domain.PointOfInterest
	lastErr string
	// cacheKey is the response cache entry of the latest lookup.
	cacheKey string
}

// DiscoveryOptions tunes POI lookups.
type DiscoveryOptions struct {
	RadiusMeters    int
	CacheTTLSeconds int
}

// DiscoveryService fetches POIs by type around the selected source and
// renders each type in its own overlay category.
type DiscoveryService struct {
	overlays  *OverlayManager
	providers map[domain.POIType]ports.POIProvider
	pharmacy  ports.PharmacyStatusChecker
	routes    *RouteService
	favorites *FavoriteService
	session   *Session
	cache     ports.CacheService
	publisher ports.EventPublisher
	opts      DiscoveryOptions
	now       func() time.Time

	mu    sync.Mutex
	types map[domain.POIType]*poiTypeState
}

// NewDiscoveryService creates a DiscoveryService. cache, pharmacy and
// publisher may be nil.
func NewDiscoveryService(
	overlays *OverlayManager,
	providers map[domain.POIType]ports.POIProvider,
	pharmacy ports.PharmacyStatusChecker,
	routes *RouteService,
	favorites *FavoriteService,
	session *Session,
	cache ports.CacheService,
	publisher ports.EventPublisher,
	opts DiscoveryOptions,
) *DiscoveryService {
	if opts.RadiusMeters <= 0 {
		opts.RadiusMeters = 5000
	}
	if opts.CacheTTLSeconds <= 0 {
		opts.CacheTTLSeconds = 300
	}
	return &DiscoveryService{
		overlays:  overlays,
		providers: providers,
		pharmacy:  pharmacy,
		routes:    routes,
		favorites: favorites,
		session:   session,
		cache:     cache,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
		types:     make(map[domain.POIType]*poiTypeState),
	}
}

// Types lists the POI types with a configured provider.
func (s *DiscoveryService) Types() []domain.POIType {
	out := make([]domain.POIType, 0, len(s.providers))
	for t := range s.providers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Status reports the state of a POI type.
func (s *DiscoveryService) Status(t domain.POIType) DiscoveryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(t)
	return DiscoveryStatus{Type: t, State: st.state, Count: len(st.results), LastErr: st.lastErr}
}

// Results returns the POIs currently drawn for a type.
func (s *DiscoveryService) Results(t domain.POIType) []domain.PointOfInterest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PointOfInterest(nil), s.stateLocked(t).results...)
}

func (s *DiscoveryService) stateLocked(t domain.POIType) *poiTypeState {
	st, ok := s.types[t]
	if !ok {
		st = &poiTypeState{state: DiscoveryIdle}
		s.types[t] = st
	}
	return st
}

// Discover fetches POIs of one type around the source endpoint and replaces
// that type's overlay. Other POI categories are never touched. An empty
// result empties the category, keeps the view and returns ErrNoResults.
// Pharmacy discovery also routes from the source to the nearest result.
func (s *DiscoveryService) Discover(ctx context.Context, t domain.POIType) (*DiscoveryResult, error) {
	provider, ok := s.providers[t]
	if !ok {
		return nil, fmt.Errorf("%w: no provider for poi type %q", domain.ErrInvalidInput, t)
	}
	origin, ok := s.routes.Endpoint(domain.EndpointSource)
	if !ok {
		return nil, &domain.MissingEndpointError{Endpoint: domain.EndpointSource}
	}

	ctx, span := telemetry.Start(ctx, telemetry.SpanPOIDiscover, attribute.String("poi.type", string(t)))
	defer span.End()

	q := ports.NearbyQuery{Origin: origin, RadiusMeters: s.opts.RadiusMeters}
	if t == domain.POIPharmacy {
		q.Date = s.now().Format("2006-01-02")
	}
	key := poiCacheKey(t, q)

	s.mu.Lock()
	st := s.stateLocked(t)
	st.seq++
	seq := st.seq
	st.state = DiscoveryLoading
	st.cacheKey = key
	s.mu.Unlock()

	token, _ := s.session.Token()
	raw, err := s.fetch(ctx, provider, key, token, q)

	pois, applyErr := s.apply(t, seq, origin, raw, err)
	if errors.Is(err, domain.ErrUnauthorized) {
		s.session.Revoke(ctx, token)
	}
	metrics.Discoveries.WithLabelValues(string(t), outcome(applyErr)).Inc()
	if applyErr != nil {
		span.RecordError(applyErr)
		return nil, applyErr
	}

	result := &DiscoveryResult{Type: t, POIs: pois}
	publish(ctx, s.publisher, domain.NewEvent(domain.EventPOIsDiscovered, map[string]any{
		"type": string(t), "count": len(pois),
	}))

	if t == domain.POIPharmacy {
		result.Route, result.RouteErr = s.routeToNearest(ctx, pois[0])
	}
	return result, nil
}

// apply commits a fetch outcome if it is still the latest for its type.
func (s *DiscoveryService) apply(t domain.POIType, seq uint64, origin domain.Coordinate, raw []domain.PointOfInterest, fetchErr error) ([]domain.PointOfInterest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(t)
	if st.seq != seq {
		metrics.StaleResponses.WithLabelValues("poi:" + string(t)).Inc()
		return nil, domain.ErrSuperseded
	}
	if fetchErr != nil {
		st.state, st.lastErr = DiscoveryError, fetchErr.Error()
		return nil, fmt.Errorf("discover %s: %w", t, fetchErr)
	}

	pois := normalizePOIs(t, origin, raw)
	category := domain.POICategory(t)
	if _, err := s.overlays.ReplaceSet(category, poiShapes(t, pois)); err != nil {
		st.state, st.lastErr = DiscoveryError, err.Error()
		return nil, err
	}
	st.results, st.lastErr = pois, ""
	st.state = DiscoveryReady

	if len(pois) == 0 {
		return nil, fmt.Errorf("discover %s: %w", t, domain.ErrNoResults)
	}
	if err := s.overlays.FitToShapes([]domain.OverlayCategory{category}, DefaultFitPadding); err != nil {
		slog.Warn("fit poi bounds", "type", t, "error", err)
	}
	return pois, nil
}

func poiCacheKey(t domain.POIType, q ports.NearbyQuery) string {
	return fmt.Sprintf("poi:%s:%.4f:%.4f:%d:%s", t, q.Origin.Lat, q.Origin.Lng, q.RadiusMeters, q.Date)
}

func (s *DiscoveryService) fetch(ctx context.Context, p ports.POIProvider, key, token string, q ports.NearbyQuery) ([]domain.PointOfInterest, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var pois []domain.PointOfInterest
			if err := json.Unmarshal(data, &pois); err == nil {
				metrics.CacheHits.WithLabelValues("poi").Inc()
				return pois, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("poi").Inc()
	}

	pois, err := p.Nearby(ctx, token, q)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(pois) > 0 {
		if data, err := json.Marshal(pois); err == nil {
			_ = s.cache.Set(ctx, key, data, s.opts.CacheTTLSeconds)
		}
	}
	return pois, nil
}

func (s *DiscoveryService) routeToNearest(ctx context.Context, nearest domain.PointOfInterest) (*domain.RouteGeometry, error) {
	if err := s.routes.ClearEndpoint(ctx, domain.EndpointDestination); err != nil {
		return nil, err
	}
	label := nearest.Name
	if label == "" {
		label = nearest.Address
	}
	if _, err := s.routes.SetEndpoint(ctx, domain.EndpointDestination, nearest.Location, EndpointOptions{
		Address:     label,
		NoAutoRoute: true,
	}); err != nil {
		return nil, err
	}
	route, err := s.routes.Reroute(ctx)
	if err != nil && !errors.Is(err, domain.ErrSuperseded) {
		slog.Warn("route to nearest pharmacy failed", "pharmacy", nearest.Name, "error", err)
	}
	return route, err
}

// Promote saves a discovered POI as a favorite. name overrides the POI name.
func (s *DiscoveryService) Promote(ctx context.Context, t domain.POIType, poiID, name string) (*domain.FavoriteLocation, error) {
	s.mu.Lock()
	var (
		poi   domain.PointOfInterest
		found bool
	)
	for _, p := range s.stateLocked(t).results {
		if p.ID == poiID {
			poi, found = p, true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return nil, fmt.Errorf("poi %s/%s: %w", t, poiID, domain.ErrNotFound)
	}

	if strings.TrimSpace(name) == "" {
		name = poi.Name
	}
	return s.favorites.Add(ctx, domain.FavoriteCandidate{
		Name:     name,
		Address:  poi.Address,
		Location: poi.Location,
		Tag:      string(t),
	})
}

// Clear removes the markers of one POI type, resets its state and drops the
// cached response so the next lookup reaches the provider.
func (s *DiscoveryService) Clear(ctx context.Context, t domain.POIType) error {
	s.mu.Lock()
	st := s.stateLocked(t)
	st.seq++
	st.state, st.results, st.lastErr = DiscoveryIdle, nil, ""
	key := st.cacheKey
	st.cacheKey = ""
	err := s.overlays.Clear(domain.POICategory(t))
	s.mu.Unlock()

	if s.cache != nil && key != "" {
		if derr := s.cache.Delete(ctx, key); derr != nil {
			slog.Warn("drop cached pois", "type", t, "error", derr)
		}
	}
	return err
}

// CheckPharmacyData asks the backend whether today's duty pharmacies are
// loaded, triggering a fetch on its side when they are not.
func (s *DiscoveryService) CheckPharmacyData(ctx context.Context) (*domain.PharmacyDataStatus, error) {
	if s.pharmacy == nil {
		return nil, fmt.Errorf("pharmacy status: %w", domain.ErrUnavailable)
	}
	token, _ := s.session.Token()
	return s.pharmacy.CheckToday(ctx, token)
}

// normalizePOIs drops entries without a usable position, fills ids and
// distances, and sorts nearest first.
func normalizePOIs(t domain.POIType, origin domain.Coordinate, raw []domain.PointOfInterest) []domain.PointOfInterest {
	out := make([]domain.PointOfInterest, 0, len(raw))
	for _, p := range raw {
		if err := p.Location.Validate(); err != nil {
			slog.Debug("skipping poi without usable position", "type", t, "name", p.Name, "error", err)
			continue
		}
		p.Type = t
		p.Name = strings.TrimSpace(p.Name)
		if p.ID == "" {
			p.ID = StablePOIID(p.Name, p.Location)
		}
		if p.DistanceKm == nil {
			d := geospatial.Haversine(origin.Lat, origin.Lng, p.Location.Lat, p.Location.Lng) / 1000
			p.DistanceKm = &d
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].DistanceKm < *out[j].DistanceKm })
	return out
}

func poiShapes(t domain.POIType, pois []domain.PointOfInterest) []domain.Shape {
	shapes := make([]domain.Shape, 0, len(pois))
	for _, p := range pois {
		shapes = append(shapes, domain.Shape{
			Kind:     domain.ShapeMarker,
			Position: p.Location,
			Icon:     string(t),
			Title:    p.Name,
			Ref:      p.ID,
			Favorite: &domain.FavoriteCandidate{
				Name:     p.Name,
				Address:  p.Address,
				Location: p.Location,
				Tag:      string(t),
			},
		})
	}
	return shapes
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(domain.Classify(err))
}
