package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/ports"
	"github.com/mapnav/navclient/internal/pkg/telemetry"
)

// SelectionState is the state of the area selection workflow.
type SelectionState string

const (
	SelectionIdle           SelectionState = "idle"
	SelectionAwaitingPointA SelectionState = "awaiting_point_a"
	SelectionAwaitingPointB SelectionState = "awaiting_point_b"
	SelectionSelected       SelectionState = "selected"
)

// AreaPoint names a corner of the selection.
type AreaPoint string

const (
	AreaPointA AreaPoint = "a"
	AreaPointB AreaPoint = "b"
)

func (p AreaPoint) category() (domain.OverlayCategory, error) {
	switch p {
	case AreaPointA:
		return domain.CategoryAreaA, nil
	case AreaPointB:
		return domain.CategoryAreaB, nil
	}
	return "", fmt.Errorf("%w: unknown area point %q", domain.ErrInvalidInput, p)
}

// ParseAreaPoint validates a corner name.
func ParseAreaPoint(s string) (AreaPoint, error) {
	p := AreaPoint(strings.ToLower(s))
	if _, err := p.category(); err != nil {
		return "", err
	}
	return p, nil
}

var areaRectStyle = domain.ShapeStyle{Color: "#3388FF", Weight: 2, Opacity: 0.9, FillOpacity: 0.2, Dashed: true}

// AreaSelection is the observable state of the workflow.
type AreaSelection struct {
	State  SelectionState     `json:"state"`
	PointA *domain.Coordinate `json:"point_a,omitempty"`
	PointB *domain.Coordinate `json:"point_b,omitempty"`
	Bounds *domain.Bounds     `json:"bounds,omitempty"`
}

// AreaSelectionService drives the two-click rectangle selection and submits
// the result as a routing preference.
type AreaSelectionService struct {
	mu        sync.Mutex
	overlays  *OverlayManager
	prefs     ports.AreaPreferenceService
	session   *Session
	publisher ports.EventPublisher

	state  SelectionState
	pointA domain.Coordinate
	pointB domain.Coordinate
	// gen changes whenever the selection is restarted or abandoned, so a
	// submit that finishes late cannot clear a newer selection.
	gen        uint64
	submitting bool
}

// NewAreaSelectionService creates an idle selection workflow.
func NewAreaSelectionService(overlays *OverlayManager, prefs ports.AreaPreferenceService, session *Session, publisher ports.EventPublisher) *AreaSelectionService {
	return &AreaSelectionService{
		overlays:  overlays,
		prefs:     prefs,
		session:   session,
		publisher: publisher,
		state:     SelectionIdle,
	}
}

// State returns the current workflow state.
func (s *AreaSelectionService) State() SelectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Selection returns the current state with whatever corners are known.
func (s *AreaSelectionService) Selection() AreaSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := AreaSelection{State: s.state}
	if s.state == SelectionAwaitingPointB || s.state == SelectionSelected {
		a := s.pointA
		out.PointA = &a
	}
	if s.state == SelectionSelected {
		b := s.pointB
		bounds := domain.NewBounds(s.pointA, s.pointB)
		out.PointB, out.Bounds = &b, &bounds
	}
	return out
}

// Active reports whether map clicks belong to the selection workflow.
func (s *AreaSelectionService) Active() bool {
	st := s.State()
	return st == SelectionAwaitingPointA || st == SelectionAwaitingPointB
}

// Begin starts a new selection, discarding any previous one.
func (s *AreaSelectionService) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.clearLocked(); err != nil {
		return err
	}
	s.state = SelectionAwaitingPointA
	return nil
}

// Click places the next corner.
func (s *AreaSelectionService) Click(ctx context.Context, at domain.Coordinate) error {
	if err := at.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case SelectionAwaitingPointA:
		if _, err := s.overlays.SetMarker(domain.CategoryAreaA, at, MarkerSpec{Icon: "area-a", Title: "A", Draggable: true}); err != nil {
			return err
		}
		s.pointA = at
		s.state = SelectionAwaitingPointB
		return nil
	case SelectionAwaitingPointB:
		if _, err := s.overlays.SetMarker(domain.CategoryAreaB, at, MarkerSpec{Icon: "area-b", Title: "B", Draggable: true}); err != nil {
			return err
		}
		s.pointB = at
		if err := s.drawRectLocked(); err != nil {
			return err
		}
		s.state = SelectionSelected
		return nil
	default:
		return fmt.Errorf("%w: click while %s", domain.ErrInvalidTransition, s.state)
	}
}

// Drag moves a corner of a completed selection and redraws the rectangle.
func (s *AreaSelectionService) Drag(ctx context.Context, point AreaPoint, to domain.Coordinate) error {
	category, err := point.category()
	if err != nil {
		return err
	}
	if err := to.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SelectionSelected {
		return fmt.Errorf("%w: drag while %s", domain.ErrInvalidTransition, s.state)
	}
	if err := s.overlays.MoveMarker(category, to); err != nil {
		return err
	}
	if point == AreaPointA {
		s.pointA = to
	} else {
		s.pointB = to
	}
	return s.drawRectLocked()
}

// Submit stores the selected rectangle. On success the selection overlays
// are cleared and the workflow returns to idle; on failure nothing changes.
func (s *AreaSelectionService) Submit(ctx context.Context, kind domain.PreferenceType, reason string) (*domain.AreaPreference, error) {
	ctx, span := telemetry.Start(ctx, telemetry.SpanAreaSubmit, attribute.String("area.type", string(kind)))
	defer span.End()

	if _, err := domain.ParsePreferenceType(string(kind)); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state != SelectionSelected || s.submitting {
		st := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: submit while %s", domain.ErrInvalidTransition, st)
	}
	s.submitting = true
	pref := domain.AreaPreference{
		Type:   kind,
		Bounds: domain.NewBounds(s.pointA, s.pointB),
		Reason: strings.TrimSpace(reason),
	}
	gen := s.gen
	s.mu.Unlock()

	saved, err := s.create(ctx, pref)

	s.mu.Lock()
	s.submitting = false
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.gen == gen && s.state == SelectionSelected {
		if err := s.clearLocked(); err != nil {
			s.mu.Unlock()
			return saved, err
		}
		s.state = SelectionIdle
	}
	s.mu.Unlock()

	publish(ctx, s.publisher, domain.NewEvent(domain.EventAreaSubmitted, map[string]any{
		"id": saved.ID, "type": string(saved.Type),
		"min_lat": saved.Bounds.MinLat, "min_lng": saved.Bounds.MinLng,
		"max_lat": saved.Bounds.MaxLat, "max_lng": saved.Bounds.MaxLng,
	}))
	return saved, nil
}

func (s *AreaSelectionService) create(ctx context.Context, pref domain.AreaPreference) (*domain.AreaPreference, error) {
	token, ok := s.session.Token()
	if !ok {
		return nil, domain.ErrAuthRequired
	}
	saved, err := s.prefs.Create(ctx, token, pref)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			s.session.Revoke(ctx, token)
		}
		return nil, fmt.Errorf("submit area preference: %w", err)
	}
	return saved, nil
}

// Cancel abandons the selection. Cancelling while idle is an invalid transition.
func (s *AreaSelectionService) Cancel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SelectionIdle {
		return fmt.Errorf("%w: nothing to cancel", domain.ErrInvalidTransition)
	}
	if err := s.clearLocked(); err != nil {
		return err
	}
	s.state = SelectionIdle
	return nil
}

// List returns the stored area preferences.
func (s *AreaSelectionService) List(ctx context.Context) ([]domain.AreaPreference, error) {
	token, ok := s.session.Token()
	if !ok {
		return nil, domain.ErrAuthRequired
	}
	list, err := s.prefs.List(ctx, token)
	if errors.Is(err, domain.ErrUnauthorized) {
		s.session.Revoke(ctx, token)
	}
	return list, err
}

// Delete removes a stored area preference. Unknown ids are not an error.
func (s *AreaSelectionService) Delete(ctx context.Context, id string) error {
	token, ok := s.session.Token()
	if !ok {
		return domain.ErrAuthRequired
	}
	err := s.prefs.Delete(ctx, token, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case errors.Is(err, domain.ErrUnauthorized):
		s.session.Revoke(ctx, token)
	}
	return err
}

func (s *AreaSelectionService) drawRectLocked() error {
	bounds := domain.NewBounds(s.pointA, s.pointB)
	_, err := s.overlays.ReplaceSet(domain.CategoryAreaRect, []domain.Shape{{
		Kind:     domain.ShapeRectangle,
		Position: bounds.Center(),
		Geometry: orb.Polygon{bounds.Ring()},
		Style:    areaRectStyle,
	}})
	return err
}

func (s *AreaSelectionService) clearLocked() error {
	s.gen++
	for _, c := range []domain.OverlayCategory{domain.CategoryAreaRect, domain.CategoryAreaA, domain.CategoryAreaB} {
		if err := s.overlays.Clear(c); err != nil {
			return err
		}
	}
	s.pointA, s.pointB = domain.Coordinate{}, domain.Coordinate{}
	return nil
}
