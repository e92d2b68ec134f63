package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/usecases"
)

func newAreaService(prefs *mockAreaPrefs, session *usecases.Session) (*usecases.AreaSelectionService, *fakeSurface) {
	surface := newFakeSurface()
	overlays := usecases.NewOverlayManager(surface)
	return usecases.NewAreaSelectionService(overlays, prefs, session, nil), surface
}

func selectArea(t *testing.T, svc *usecases.AreaSelectionService, a, b domain.Coordinate) {
	t.Helper()
	ctx := context.Background()
	if err := svc.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := svc.Click(ctx, a); err != nil {
		t.Fatalf("click a: %v", err)
	}
	if err := svc.Click(ctx, b); err != nil {
		t.Fatalf("click b: %v", err)
	}
}

func TestAreaSelection_RectangleNormalizedRegardlessOfClickOrder(t *testing.T) {
	ne := domain.Coordinate{Lat: 39.95, Lng: 32.90}
	sw := domain.Coordinate{Lat: 39.90, Lng: 32.80}
	want := domain.Bounds{MinLat: 39.90, MinLng: 32.80, MaxLat: 39.95, MaxLng: 32.90}

	for _, order := range [][2]domain.Coordinate{{ne, sw}, {sw, ne}} {
		var submitted domain.AreaPreference
		prefs := &mockAreaPrefs{
			createFn: func(ctx context.Context, token string, p domain.AreaPreference) (*domain.AreaPreference, error) {
				submitted = p
				return &p, nil
			},
		}
		svc, _ := newAreaService(prefs, authedSession("tok"))
		selectArea(t, svc, order[0], order[1])

		sel := svc.Selection()
		if sel.Bounds == nil || *sel.Bounds != want {
			t.Errorf("expected bounds %+v, got %+v", want, sel.Bounds)
		}
		if _, err := svc.Submit(context.Background(), domain.PreferenceAvoid, "roadworks"); err != nil {
			t.Fatalf("submit: %v", err)
		}
		if submitted.Bounds != want {
			t.Errorf("expected submitted bounds %+v, got %+v", want, submitted.Bounds)
		}
	}
}

func TestAreaSelection_FullFlow(t *testing.T) {
	svc, surface := newAreaService(&mockAreaPrefs{}, authedSession("tok"))
	ctx := context.Background()

	if svc.State() != usecases.SelectionIdle {
		t.Fatalf("expected idle, got %s", svc.State())
	}
	_ = svc.Begin(ctx)
	if svc.State() != usecases.SelectionAwaitingPointA {
		t.Fatalf("expected awaiting_point_a, got %s", svc.State())
	}
	_ = svc.Click(ctx, kizilay)
	if svc.State() != usecases.SelectionAwaitingPointB {
		t.Fatalf("expected awaiting_point_b, got %s", svc.State())
	}
	_ = svc.Click(ctx, ulus)
	if svc.State() != usecases.SelectionSelected {
		t.Fatalf("expected selected, got %s", svc.State())
	}
	if n := len(surface.inCategory(domain.CategoryAreaRect)); n != 1 {
		t.Fatalf("expected 1 rectangle, got %d", n)
	}

	pref, err := svc.Submit(ctx, domain.PreferencePrefer, "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if pref.ID != "pref-1" {
		t.Errorf("expected stored id, got %q", pref.ID)
	}
	if svc.State() != usecases.SelectionIdle {
		t.Errorf("expected idle after submit, got %s", svc.State())
	}
	for _, c := range []domain.OverlayCategory{domain.CategoryAreaA, domain.CategoryAreaB, domain.CategoryAreaRect} {
		if n := len(surface.inCategory(c)); n != 0 {
			t.Errorf("expected %s cleared, got %d shapes", c, n)
		}
	}
}

func TestAreaSelection_SubmitFailureKeepsSelection(t *testing.T) {
	prefs := &mockAreaPrefs{
		createFn: func(ctx context.Context, token string, p domain.AreaPreference) (*domain.AreaPreference, error) {
			return nil, domain.ErrUnavailable
		},
	}
	svc, surface := newAreaService(prefs, authedSession("tok"))
	selectArea(t, svc, kizilay, ulus)

	if _, err := svc.Submit(context.Background(), domain.PreferenceAvoid, ""); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if svc.State() != usecases.SelectionSelected {
		t.Errorf("expected to stay selected, got %s", svc.State())
	}
	if n := len(surface.inCategory(domain.CategoryAreaRect)); n != 1 {
		t.Errorf("expected rectangle kept, got %d", n)
	}
}

func TestAreaSelection_SubmitRequiresToken(t *testing.T) {
	svc, _ := newAreaService(&mockAreaPrefs{}, usecases.NewSession(nil, nil))
	selectArea(t, svc, kizilay, ulus)

	if _, err := svc.Submit(context.Background(), domain.PreferenceAvoid, ""); !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	if svc.State() != usecases.SelectionSelected {
		t.Errorf("expected to stay selected, got %s", svc.State())
	}
}

func TestAreaSelection_InvalidTransitions(t *testing.T) {
	svc, _ := newAreaService(&mockAreaPrefs{}, authedSession("tok"))
	ctx := context.Background()

	if err := svc.Cancel(ctx); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("cancel in idle: expected ErrInvalidTransition, got %v", err)
	}
	if err := svc.Click(ctx, kizilay); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("click in idle: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.Submit(ctx, domain.PreferenceAvoid, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("submit in idle: expected ErrInvalidTransition, got %v", err)
	}
	_ = svc.Begin(ctx)
	if err := svc.Drag(ctx, usecases.AreaPointA, kizilay); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("drag while awaiting: expected ErrInvalidTransition, got %v", err)
	}
}

func TestAreaSelection_CancelClearsOverlays(t *testing.T) {
	svc, surface := newAreaService(&mockAreaPrefs{}, authedSession("tok"))
	ctx := context.Background()
	_ = svc.Begin(ctx)
	_ = svc.Click(ctx, kizilay)

	if err := svc.Cancel(ctx); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if svc.State() != usecases.SelectionIdle {
		t.Errorf("expected idle, got %s", svc.State())
	}
	if n := len(surface.inCategory(domain.CategoryAreaA)); n != 0 {
		t.Errorf("expected point A cleared, got %d", n)
	}
}

func TestAreaSelection_DragRecomputesRectangle(t *testing.T) {
	svc, surface := newAreaService(&mockAreaPrefs{}, authedSession("tok"))
	selectArea(t, svc, kizilay, ulus)

	if err := svc.Drag(context.Background(), usecases.AreaPointB, etimesgut); err != nil {
		t.Fatalf("drag: %v", err)
	}
	if svc.State() != usecases.SelectionSelected {
		t.Errorf("drag must not change state, got %s", svc.State())
	}
	rects := surface.inCategory(domain.CategoryAreaRect)
	if len(rects) != 1 {
		t.Fatalf("expected 1 rectangle, got %d", len(rects))
	}
	want := domain.NewBounds(kizilay, etimesgut)
	if got := rects[0].Bounds(); got != want {
		t.Errorf("expected rectangle %+v, got %+v", want, got)
	}
}

func TestAreaSelection_RejectsOutOfBoundsClick(t *testing.T) {
	svc, _ := newAreaService(&mockAreaPrefs{}, authedSession("tok"))
	_ = svc.Begin(context.Background())

	err := svc.Click(context.Background(), domain.Coordinate{Lat: 38.4, Lng: 27.1})
	if !errors.Is(err, domain.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if svc.State() != usecases.SelectionAwaitingPointA {
		t.Errorf("expected state unchanged, got %s", svc.State())
	}
}

func TestAreaSelection_DeleteUnknownIsSuccess(t *testing.T) {
	prefs := &mockAreaPrefs{
		deleteFn: func(ctx context.Context, token, id string) error { return domain.ErrNotFound },
	}
	svc, _ := newAreaService(prefs, authedSession("tok"))
	if err := svc.Delete(context.Background(), "missing"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
