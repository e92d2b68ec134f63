package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/ports"
	"github.com/mapnav/navclient/internal/core/usecases"
)

var (
	nearPharmacy = domain.PointOfInterest{Name: "Eczane Yakin", Location: domain.Coordinate{Lat: 39.9230, Lng: 32.8550}}
	farPharmacy  = domain.PointOfInterest{Name: "Eczane Uzak", Location: etimesgut}
	brokenPOI    = domain.PointOfInterest{Name: "No Position"}
)

type discoveryFixture struct {
	svc       *usecases.DiscoveryService
	routes    *usecases.RouteService
	favorites *memFavoritesCache
	dir       *mockDirections
	surface   *fakeSurface
}

func newDiscoveryFixture(providers map[domain.POIType]ports.POIProvider, cache ports.CacheService) *discoveryFixture {
	surface := newFakeSurface()
	overlays := usecases.NewOverlayManager(surface)
	session := usecases.NewSession(nil, nil)
	dir := &mockDirections{}
	routes := usecases.NewRouteService(overlays, dir, nil, session, nil)
	favCache := &memFavoritesCache{}
	favorites := usecases.NewFavoriteService(&mockFavoritesRemote{}, favCache, session, nil)
	svc := usecases.NewDiscoveryService(overlays, providers, nil, routes, favorites, session, cache, nil, usecases.DiscoveryOptions{})
	return &discoveryFixture{svc: svc, routes: routes, favorites: favCache, dir: dir, surface: surface}
}

func (f *discoveryFixture) placeSource(t *testing.T) {
	t.Helper()
	if _, err := f.routes.SetEndpoint(context.Background(), domain.EndpointSource, kizilay, usecases.EndpointOptions{Address: "Kizilay"}); err != nil {
		t.Fatalf("set source: %v", err)
	}
}

func staticProvider(pois ...domain.PointOfInterest) *mockPOIProvider {
	return &mockPOIProvider{
		nearbyFn: func(ctx context.Context, token string, q ports.NearbyQuery) ([]domain.PointOfInterest, error) {
			return append([]domain.PointOfInterest(nil), pois...), nil
		},
	}
}

func TestDiscovery_RequiresSource(t *testing.T) {
	provider := staticProvider(nearPharmacy)
	f := newDiscoveryFixture(map[domain.POIType]ports.POIProvider{domain.POITaxi: provider}, nil)

	_, err := f.svc.Discover(context.Background(), domain.POITaxi)
	if !errors.Is(err, domain.ErrMissingEndpoint) {
		t.Fatalf("expected ErrMissingEndpoint, got %v", err)
	}
	if n := provider.calls.Load(); n != 0 {
		t.Errorf("expected no provider calls, got %d", n)
	}
}

func TestDiscovery_PharmacyRoutesToNearest(t *testing.T) {
	var gotQuery ports.NearbyQuery
	provider := &mockPOIProvider{
		nearbyFn: func(ctx context.Context, token string, q ports.NearbyQuery) ([]domain.PointOfInterest, error) {
			gotQuery = q
			return []domain.PointOfInterest{farPharmacy, brokenPOI, nearPharmacy}, nil
		},
	}
	f := newDiscoveryFixture(map[domain.POIType]ports.POIProvider{domain.POIPharmacy: provider}, nil)
	f.placeSource(t)

	res, err := f.svc.Discover(context.Background(), domain.POIPharmacy)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if _, perr := time.Parse("2006-01-02", gotQuery.Date); perr != nil {
		t.Errorf("expected pharmacy query to carry a date, got %q", gotQuery.Date)
	}
	if gotQuery.Origin != kizilay || gotQuery.RadiusMeters != 5000 {
		t.Errorf("unexpected query %+v", gotQuery)
	}

	if len(res.POIs) != 2 {
		t.Fatalf("expected malformed entry skipped, got %d pois", len(res.POIs))
	}
	if res.POIs[0].Name != nearPharmacy.Name {
		t.Errorf("expected nearest first, got %s", res.POIs[0].Name)
	}
	for _, p := range res.POIs {
		if p.ID == "" || p.DistanceKm == nil || p.Type != domain.POIPharmacy {
			t.Errorf("expected normalized poi, got %+v", p)
		}
	}
	if res.Route == nil || res.RouteErr != nil {
		t.Fatalf("expected route to nearest, got %v / %v", res.Route, res.RouteErr)
	}

	dst := f.surface.inCategory(domain.CategoryDestination)
	if len(dst) != 1 || dst[0].Position != nearPharmacy.Location {
		t.Fatalf("expected one destination marker at nearest pharmacy, got %+v", dst)
	}
	if n := len(f.surface.inCategory(domain.CategoryRoute)); n != 1 {
		t.Errorf("expected one route path, got %d", n)
	}
	if n := f.dir.calls.Load(); n != 1 {
		t.Errorf("expected exactly one route request, got %d", n)
	}
}

func TestDiscovery_TypesAreIsolated(t *testing.T) {
	taxi := domain.PointOfInterest{Name: "Taksi Duragi", Location: cankaya}
	wifi := domain.PointOfInterest{Name: "Kizilay Meydani", Location: kizilay}
	bikes := []domain.PointOfInterest{
		{Name: "Guvenpark", Location: kizilay},
		{Name: "Ulus", Location: ulus},
		{Name: "Cankaya", Location: cankaya},
	}
	f := newDiscoveryFixture(map[domain.POIType]ports.POIProvider{
		domain.POIPharmacy: staticProvider(nearPharmacy, farPharmacy),
		domain.POITaxi:     staticProvider(taxi),
		domain.POIWiFi:     staticProvider(wifi),
		domain.POIBicycle:  staticProvider(bikes...),
	}, nil)
	f.placeSource(t)
	ctx := context.Background()

	want := map[domain.POIType]int{
		domain.POIPharmacy: 2,
		domain.POITaxi:     1,
		domain.POIWiFi:     1,
		domain.POIBicycle:  3,
	}
	for _, pt := range []domain.POIType{domain.POIPharmacy, domain.POITaxi, domain.POIWiFi, domain.POIBicycle} {
		if _, err := f.svc.Discover(ctx, pt); err != nil {
			t.Fatalf("discover %s: %v", pt, err)
		}
	}
	for pt, n := range want {
		if got := len(f.surface.inCategory(domain.POICategory(pt))); got != n {
			t.Errorf("expected %d %s markers, got %d", n, pt, got)
		}
	}

	if err := f.svc.Clear(ctx, domain.POITaxi); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := f.svc.Clear(ctx, domain.POIWiFi); err != nil {
		t.Fatalf("clear: %v", err)
	}
	want[domain.POITaxi], want[domain.POIWiFi] = 0, 0
	for pt, n := range want {
		if got := len(f.surface.inCategory(domain.POICategory(pt))); got != n {
			t.Errorf("after clearing taxi and wifi: expected %d %s markers, got %d", n, pt, got)
		}
	}
}

func TestDiscovery_EmptyResultClearsWithoutFraming(t *testing.T) {
	calls := 0
	provider := &mockPOIProvider{
		nearbyFn: func(ctx context.Context, token string, q ports.NearbyQuery) ([]domain.PointOfInterest, error) {
			calls++
			if calls == 1 {
				return []domain.PointOfInterest{{Name: "Taksi", Location: cankaya}}, nil
			}
			return nil, nil
		},
	}
	f := newDiscoveryFixture(map[domain.POIType]ports.POIProvider{domain.POITaxi: provider}, nil)
	f.placeSource(t)
	ctx := context.Background()

	if _, err := f.svc.Discover(ctx, domain.POITaxi); err != nil {
		t.Fatalf("first discover: %v", err)
	}
	fits := f.surface.fitCount()

	if _, err := f.svc.Discover(ctx, domain.POITaxi); !errors.Is(err, domain.ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
	if n := len(f.surface.inCategory(domain.POICategory(domain.POITaxi))); n != 0 {
		t.Errorf("expected taxi markers cleared, got %d", n)
	}
	if f.surface.fitCount() != fits {
		t.Error("expected view unchanged on empty result")
	}
}

func TestDiscovery_FetchErrorKeepsMarkers(t *testing.T) {
	fail := false
	provider := &mockPOIProvider{
		nearbyFn: func(ctx context.Context, token string, q ports.NearbyQuery) ([]domain.PointOfInterest, error) {
			if fail {
				return nil, domain.ErrUnavailable
			}
			return []domain.PointOfInterest{{Name: "Taksi", Location: cankaya}}, nil
		},
	}
	f := newDiscoveryFixture(map[domain.POIType]ports.POIProvider{domain.POITaxi: provider}, nil)
	f.placeSource(t)
	ctx := context.Background()

	_, _ = f.svc.Discover(ctx, domain.POITaxi)
	fail = true
	if _, err := f.svc.Discover(ctx, domain.POITaxi); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if st := f.svc.Status(domain.POITaxi); st.State != usecases.DiscoveryError {
		t.Errorf("expected error state, got %s", st.State)
	}
	if n := len(f.surface.inCategory(domain.POICategory(domain.POITaxi))); n != 1 {
		t.Errorf("expected previous markers kept, got %d", n)
	}
}

func TestDiscovery_UsesCache(t *testing.T) {
	provider := staticProvider(domain.PointOfInterest{Name: "Taksi", Location: cankaya})
	f := newDiscoveryFixture(map[domain.POIType]ports.POIProvider{domain.POITaxi: provider}, newMemCache())
	f.placeSource(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.svc.Discover(ctx, domain.POITaxi); err != nil {
			t.Fatalf("discover %d: %v", i, err)
		}
	}
	if n := provider.calls.Load(); n != 1 {
		t.Errorf("expected second lookup served from cache, got %d provider calls", n)
	}
}

func TestDiscovery_ClearDropsCachedResponse(t *testing.T) {
	provider := staticProvider(domain.PointOfInterest{Name: "Taksi", Location: cankaya})
	cache := newMemCache()
	f := newDiscoveryFixture(map[domain.POIType]ports.POIProvider{domain.POITaxi: provider}, cache)
	f.placeSource(t)
	ctx := context.Background()

	if _, err := f.svc.Discover(ctx, domain.POITaxi); err != nil {
		t.Fatalf("discover: %v", err)
	}
	if err := f.svc.Clear(ctx, domain.POITaxi); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := f.svc.Discover(ctx, domain.POITaxi); err != nil {
		t.Fatalf("rediscover: %v", err)
	}
	if n := provider.calls.Load(); n != 2 {
		t.Errorf("expected the provider to be asked again after clear, got %d calls", n)
	}
}

func TestDiscovery_PromoteUnnamedPOIIsInputError(t *testing.T) {
	f := newDiscoveryFixture(map[domain.POIType]ports.POIProvider{
		domain.POITaxi: staticProvider(domain.PointOfInterest{Location: cankaya}),
	}, nil)
	f.placeSource(t)
	ctx := context.Background()

	res, err := f.svc.Discover(ctx, domain.POITaxi)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	_, err = f.svc.Promote(ctx, domain.POITaxi, res.POIs[0].ID, " ")
	if !errors.Is(err, domain.ErrInvalidInput) || domain.Classify(err) != domain.KindInput {
		t.Fatalf("expected input error, got %v (%s)", err, domain.Classify(err))
	}
	if len(f.favorites.items) != 0 {
		t.Error("nothing should be saved")
	}
}

func TestDiscovery_UnknownTypeIsInputError(t *testing.T) {
	f := newDiscoveryFixture(map[domain.POIType]ports.POIProvider{}, nil)
	f.placeSource(t)
	if _, err := f.svc.Discover(context.Background(), domain.POITaxi); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDiscovery_StaleResultIsDropped(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	provider := &mockPOIProvider{
		nearbyFn: func(ctx context.Context, token string, q ports.NearbyQuery) ([]domain.PointOfInterest, error) {
			close(started)
			<-release
			return []domain.PointOfInterest{{Name: "Taksi", Location: cankaya}}, nil
		},
	}
	f := newDiscoveryFixture(map[domain.POIType]ports.POIProvider{domain.POITaxi: provider}, nil)
	f.placeSource(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := f.svc.Discover(context.Background(), domain.POITaxi)
		errCh <- err
	}()
	<-started
	if err := f.svc.Clear(context.Background(), domain.POITaxi); err != nil {
		t.Fatalf("clear: %v", err)
	}
	close(release)

	select {
	case err := <-errCh:
		if !errors.Is(err, domain.ErrSuperseded) {
			t.Fatalf("expected ErrSuperseded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("discover did not finish")
	}
	if n := len(f.surface.inCategory(domain.POICategory(domain.POITaxi))); n != 0 {
		t.Errorf("expected stale markers not drawn, got %d", n)
	}
}

func TestDiscovery_PromoteSavesFavorite(t *testing.T) {
	f := newDiscoveryFixture(map[domain.POIType]ports.POIProvider{
		domain.POITaxi: staticProvider(domain.PointOfInterest{Name: "Taksi Duragi", Location: cankaya, Address: "Cinnah Cd."}),
	}, nil)
	f.placeSource(t)
	ctx := context.Background()

	res, err := f.svc.Discover(ctx, domain.POITaxi)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	fav, err := f.svc.Promote(ctx, domain.POITaxi, res.POIs[0].ID, "")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if fav.Name != "Taksi Duragi" || fav.Tag != "taxi" || fav.Location != cankaya {
		t.Errorf("unexpected favorite %+v", fav)
	}
	if len(f.favorites.items) != 1 {
		t.Errorf("expected favorite persisted locally, got %d", len(f.favorites.items))
	}

	if _, err := f.svc.Promote(ctx, domain.POITaxi, "nope", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown poi, got %v", err)
	}
}

func TestStablePOIID(t *testing.T) {
	a := usecases.StablePOIID("Eczane Yakin", nearPharmacy.Location)
	b := usecases.StablePOIID("  eczane yakin ", nearPharmacy.Location)
	c := usecases.StablePOIID("Eczane Yakin", cankaya)
	if a != b {
		t.Errorf("expected id to ignore case and padding: %s vs %s", a, b)
	}
	if a == c {
		t.Error("expected different positions to give different ids")
	}
}
