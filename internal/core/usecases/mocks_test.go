package usecases_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/ports"
	"github.com/mapnav/navclient/internal/core/usecases"
)

// --- Map surface ---

type fakeSurface struct {
	mu     sync.Mutex
	shapes map[domain.ShapeHandle]domain.Shape
	order  []domain.ShapeHandle
	ops    []string
	fits   []domain.Viewport
	style  domain.MapStyle
	addFn  func(s domain.Shape) error
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{shapes: make(map[domain.ShapeHandle]domain.Shape)}
}

func (f *fakeSurface) AddShape(s domain.Shape) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addFn != nil {
		if err := f.addFn(s); err != nil {
			return err
		}
	}
	f.shapes[s.Handle] = s
	f.order = append(f.order, s.Handle)
	f.ops = append(f.ops, "add "+string(s.Category))
	return nil
}

func (f *fakeSurface) RemoveShape(h domain.ShapeHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shapes[h]
	if !ok {
		return fmt.Errorf("unknown handle %s", h)
	}
	delete(f.shapes, h)
	for i, o := range f.order {
		if o == h {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	f.ops = append(f.ops, "remove "+string(s.Category))
	return nil
}

func (f *fakeSurface) MoveShape(h domain.ShapeHandle, to domain.Coordinate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shapes[h]
	if !ok {
		return fmt.Errorf("unknown handle %s", h)
	}
	s.Position = to
	f.shapes[h] = s
	f.ops = append(f.ops, "move "+string(s.Category))
	return nil
}

func (f *fakeSurface) FitBounds(v domain.Viewport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fits = append(f.fits, v)
	f.ops = append(f.ops, "fit")
	return nil
}

func (f *fakeSurface) SetBaseStyle(style domain.MapStyle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.style = style
	f.ops = append(f.ops, "style "+string(style))
	return nil
}

func (f *fakeSurface) inCategory(c domain.OverlayCategory) []domain.Shape {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Shape
	for _, h := range f.order {
		if s := f.shapes[h]; s.Category == c {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeSurface) fitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fits)
}

func (f *fakeSurface) lastFit() domain.Viewport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fits) == 0 {
		return domain.Viewport{}
	}
	return f.fits[len(f.fits)-1]
}

func (f *fakeSurface) opsSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

// --- Remote services ---

type mockDirections struct {
	routeFn func(ctx context.Context, token string, req domain.RouteRequest) (*domain.RouteGeometry, error)
	calls   atomic.Int32
}

func (m *mockDirections) Route(ctx context.Context, token string, req domain.RouteRequest) (*domain.RouteGeometry, error) {
	m.calls.Add(1)
	if m.routeFn != nil {
		return m.routeFn(ctx, token, req)
	}
	return lineRoute(req.Start, req.End), nil
}

type mockGeocoder struct {
	reverseFn func(ctx context.Context, c domain.Coordinate) (string, error)
}

func (m *mockGeocoder) ReverseGeocode(ctx context.Context, c domain.Coordinate) (string, error) {
	if m.reverseFn != nil {
		return m.reverseFn(ctx, c)
	}
	return "", nil
}

type mockPOIProvider struct {
	nearbyFn func(ctx context.Context, token string, q ports.NearbyQuery) ([]domain.PointOfInterest, error)
	calls    atomic.Int32
}

func (m *mockPOIProvider) Nearby(ctx context.Context, token string, q ports.NearbyQuery) ([]domain.PointOfInterest, error) {
	m.calls.Add(1)
	if m.nearbyFn != nil {
		return m.nearbyFn(ctx, token, q)
	}
	return nil, nil
}

type mockFavoritesRemote struct {
	listFn   func(ctx context.Context, token string) ([]domain.FavoriteLocation, error)
	createFn func(ctx context.Context, token string, c domain.FavoriteCandidate) (*domain.FavoriteLocation, error)
	deleteFn func(ctx context.Context, token, id string) error
}

func (m *mockFavoritesRemote) List(ctx context.Context, token string) ([]domain.FavoriteLocation, error) {
	if m.listFn != nil {
		return m.listFn(ctx, token)
	}
	return nil, nil
}

func (m *mockFavoritesRemote) Create(ctx context.Context, token string, c domain.FavoriteCandidate) (*domain.FavoriteLocation, error) {
	if m.createFn != nil {
		return m.createFn(ctx, token, c)
	}
	return &domain.FavoriteLocation{ID: "srv-1", Name: c.Name, Address: c.Address, Location: c.Location, Tag: c.Tag}, nil
}

func (m *mockFavoritesRemote) Delete(ctx context.Context, token, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, token, id)
	}
	return nil
}

type memFavoritesCache struct {
	mu      sync.Mutex
	items   []domain.FavoriteLocation
	loadErr error
	saveErr error
	saves   int
}

func (m *memFavoritesCache) Load(ctx context.Context) ([]domain.FavoriteLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]domain.FavoriteLocation(nil), m.items...), nil
}

func (m *memFavoritesCache) Save(ctx context.Context, list []domain.FavoriteLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.items = append([]domain.FavoriteLocation(nil), list...)
	m.saves++
	return nil
}

type mockAreaPrefs struct {
	listFn   func(ctx context.Context, token string) ([]domain.AreaPreference, error)
	createFn func(ctx context.Context, token string, p domain.AreaPreference) (*domain.AreaPreference, error)
	deleteFn func(ctx context.Context, token, id string) error
}

func (m *mockAreaPrefs) List(ctx context.Context, token string) ([]domain.AreaPreference, error) {
	if m.listFn != nil {
		return m.listFn(ctx, token)
	}
	return nil, nil
}

func (m *mockAreaPrefs) Create(ctx context.Context, token string, p domain.AreaPreference) (*domain.AreaPreference, error) {
	if m.createFn != nil {
		return m.createFn(ctx, token, p)
	}
	p.ID = "pref-1"
	return &p, nil
}

func (m *mockAreaPrefs) Delete(ctx context.Context, token, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, token, id)
	}
	return nil
}

type mockTrafficFeed struct {
	latestFn func(ctx context.Context, token string) (*geojson.FeatureCollection, error)
	calls    atomic.Int32
}

func (m *mockTrafficFeed) Latest(ctx context.Context, token string) (*geojson.FeatureCollection, error) {
	m.calls.Add(1)
	if m.latestFn != nil {
		return m.latestFn(ctx, token)
	}
	return geojson.NewFeatureCollection(), nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (r *recordingNotifier) Notify(ctx context.Context, n domain.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (m *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("miss")
	}
	return v, nil
}

func (m *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Helpers ---

var (
	kizilay   = domain.Coordinate{Lat: 39.9208, Lng: 32.8541}
	ulus      = domain.Coordinate{Lat: 39.9419, Lng: 32.8543}
	cankaya   = domain.Coordinate{Lat: 39.9000, Lng: 32.8600}
	etimesgut = domain.Coordinate{Lat: 39.9500, Lng: 32.6700}
)

func lineRoute(from, to domain.Coordinate) *domain.RouteGeometry {
	return &domain.RouteGeometry{
		Path:     orb.LineString{from.Point(), to.Point()},
		Distance: 2500,
		Duration: 420,
	}
}

func authedSession(token string) *usecases.Session {
	s := usecases.NewSession(nil, nil)
	s.SetToken(context.Background(), token)
	return s
}

func ptr(c domain.Coordinate) *domain.Coordinate { return &c }
