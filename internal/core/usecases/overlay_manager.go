package usecases

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/ports"
	"github.com/mapnav/navclient/internal/pkg/metrics"
)

// Framing defaults.
const (
	DefaultFitPadding = 0.1
	DefaultMaxZoom    = 16
)

// MarkerSpec decorates a marker placed with SetMarker.
type MarkerSpec struct {
	Icon      string
	Title     string
	Draggable bool
	Ref       string
	Favorite  *domain.FavoriteCandidate
}

// OverlaySnapshot is a point-in-time copy of everything drawn.
type OverlaySnapshot struct {
	Style  domain.MapStyle                           `json:"style"`
	Live   bool                                      `json:"live"`
	Shapes map[domain.OverlayCategory][]domain.Shape `json:"shapes"`
}

// OverlayManager is the only writer to the map surface. It tracks shapes per
// category and performs every per-category replacement under one lock, so
// no reader observes a half-replaced category.
type OverlayManager struct {
	mu      sync.Mutex
	surface ports.MapSurface
	live    bool
	style   domain.MapStyle
	shapes  map[domain.OverlayCategory][]domain.Shape
	nextID  uint64
}

// NewOverlayManager binds the manager to a live surface.
func NewOverlayManager(surface ports.MapSurface) *OverlayManager {
	return &OverlayManager{
		surface: surface,
		live:    true,
		style:   domain.StyleStandard,
		shapes:  make(map[domain.OverlayCategory][]domain.Shape),
	}
}

// Live reports whether the surface is still attached.
func (m *OverlayManager) Live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// Teardown detaches the surface. Every later call is a no-op.
func (m *OverlayManager) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live = false
	m.shapes = make(map[domain.OverlayCategory][]domain.Shape)
}

// SetMarker draws a marker. Single-instance categories lose their previous
// marker first; other categories accumulate.
func (m *OverlayManager) SetMarker(category domain.OverlayCategory, at domain.Coordinate, spec MarkerSpec) (domain.ShapeHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.live {
		return "", nil
	}

	if category.SingleInstance() {
		if err := m.clearLocked(category); err != nil {
			return "", err
		}
	}
	shape := domain.Shape{
		Category:  category,
		Kind:      domain.ShapeMarker,
		Position:  at,
		Icon:      spec.Icon,
		Title:     spec.Title,
		Draggable: spec.Draggable,
		Ref:       spec.Ref,
		Favorite:  spec.Favorite,
	}
	added, err := m.addLocked(shape)
	if err != nil {
		return "", err
	}
	m.record(category)
	return added.Handle, nil
}

// ReplaceSet swaps the whole content of a category. An empty set empties it.
// If the surface rejects a shape mid-way the category is left empty and the
// error is returned.
func (m *OverlayManager) ReplaceSet(category domain.OverlayCategory, shapes []domain.Shape) ([]domain.ShapeHandle, error) {
	if category.SingleInstance() && len(shapes) > 1 {
		return nil, fmt.Errorf("category %s holds a single shape, got %d", category, len(shapes))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.live {
		return nil, nil
	}
	defer m.record(category)

	if err := m.clearLocked(category); err != nil {
		return nil, err
	}

	handles := make([]domain.ShapeHandle, 0, len(shapes))
	for _, s := range shapes {
		s.Category = category
		added, err := m.addLocked(s)
		if err != nil {
			_ = m.clearLocked(category)
			return nil, fmt.Errorf("replace %s: %w", category, err)
		}
		handles = append(handles, added.Handle)
	}
	return handles, nil
}

// Clear removes every shape of a category. Clearing an empty category is fine.
func (m *OverlayManager) Clear(category domain.OverlayCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.live {
		return nil
	}
	defer m.record(category)
	return m.clearLocked(category)
}

// MoveMarker updates the position of a single-instance marker, e.g. after the
// user dragged it.
func (m *OverlayManager) MoveMarker(category domain.OverlayCategory, to domain.Coordinate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.live {
		return nil
	}
	list := m.shapes[category]
	if len(list) == 0 {
		return fmt.Errorf("move %s: %w", category, domain.ErrNotFound)
	}
	if err := m.surface.MoveShape(list[0].Handle, to); err != nil {
		return fmt.Errorf("move %s: %w", category, err)
	}
	list[0].Position = to
	return nil
}

// FitToShapes frames the union of the named categories. Nothing happens
// when they are all empty.
func (m *OverlayManager) FitToShapes(categories []domain.OverlayCategory, padding float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.live {
		return nil
	}

	var (
		union domain.Bounds
		found bool
	)
	for _, c := range categories {
		for _, s := range m.shapes[c] {
			if !found {
				union, found = s.Bounds(), true
				continue
			}
			union = union.Union(s.Bounds())
		}
	}
	if !found {
		return nil
	}
	return m.surface.FitBounds(domain.Viewport{Bounds: union, Padding: padding, MaxZoom: DefaultMaxZoom})
}

// FitBounds frames an explicit box.
func (m *OverlayManager) FitBounds(b domain.Bounds, padding float64, maxZoom int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.live {
		return nil
	}
	return m.surface.FitBounds(domain.Viewport{Bounds: b, Padding: padding, MaxZoom: maxZoom})
}

// SetBaseStyle switches the base layer.
func (m *OverlayManager) SetBaseStyle(style domain.MapStyle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.live {
		return nil
	}
	if err := m.surface.SetBaseStyle(style); err != nil {
		return err
	}
	m.style = style
	return nil
}

// Redraw removes and re-adds a category so it stacks above the base layer.
func (m *OverlayManager) Redraw(category domain.OverlayCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.live {
		return nil
	}
	current := m.shapes[category]
	if len(current) == 0 {
		return nil
	}
	defer m.record(category)
	if err := m.clearLocked(category); err != nil {
		return err
	}
	for _, s := range current {
		s.Handle = ""
		if _, err := m.addLocked(s); err != nil {
			_ = m.clearLocked(category)
			return fmt.Errorf("redraw %s: %w", category, err)
		}
	}
	return nil
}

// Shapes returns a copy of the shapes in a category.
func (m *OverlayManager) Shapes(category domain.OverlayCategory) []domain.Shape {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Shape(nil), m.shapes[category]...)
}

// Marker returns the marker of a single-instance category.
func (m *OverlayManager) Marker(category domain.OverlayCategory) (domain.Shape, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.shapes[category]
	if len(list) == 0 {
		return domain.Shape{}, false
	}
	return list[0], true
}

// Style returns the active base style.
func (m *OverlayManager) Style() domain.MapStyle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.style
}

// Snapshot copies the whole overlay state.
func (m *OverlayManager) Snapshot() OverlaySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := OverlaySnapshot{
		Style:  m.style,
		Live:   m.live,
		Shapes: make(map[domain.OverlayCategory][]domain.Shape, len(m.shapes)),
	}
	for c, list := range m.shapes {
		if len(list) > 0 {
			out.Shapes[c] = append([]domain.Shape(nil), list...)
		}
	}
	return out
}

// Categories lists the non-empty categories in a stable order.
func (m *OverlayManager) Categories() []domain.OverlayCategory {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.OverlayCategory, 0, len(m.shapes))
	for c, list := range m.shapes {
		if len(list) > 0 {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *OverlayManager) addLocked(s domain.Shape) (domain.Shape, error) {
	m.nextID++
	s.Handle = domain.ShapeHandle(fmt.Sprintf("%s#%d", s.Category, m.nextID))
	if err := m.surface.AddShape(s); err != nil {
		return domain.Shape{}, err
	}
	m.shapes[s.Category] = append(m.shapes[s.Category], s)
	return s, nil
}

func (m *OverlayManager) clearLocked(category domain.OverlayCategory) error {
	list := m.shapes[category]
	for i, s := range list {
		if err := m.surface.RemoveShape(s.Handle); err != nil {
			m.shapes[category] = list[i:]
			return fmt.Errorf("clear %s: %w", category, err)
		}
	}
	delete(m.shapes, category)
	return nil
}

func (m *OverlayManager) record(category domain.OverlayCategory) {
	n := len(m.shapes[category])
	metrics.OverlayShapes.WithLabelValues(string(category)).Set(float64(n))
	slog.Debug("overlay updated", "category", category, "shapes", n)
}
