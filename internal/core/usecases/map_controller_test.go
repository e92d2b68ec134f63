package usecases_test

import (
	"context"
	"testing"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/usecases"
)

func newController() (*usecases.MapController, *usecases.AreaSelectionService, *fakeSurface) {
	surface := newFakeSurface()
	overlays := usecases.NewOverlayManager(surface)
	session := authedSession("tok")
	routes := usecases.NewRouteService(overlays, &mockDirections{}, nil, session, nil)
	areas := usecases.NewAreaSelectionService(overlays, &mockAreaPrefs{}, session, nil)
	traffic := usecases.NewTrafficService(overlays, &mockTrafficFeed{}, session, nil, false)
	return usecases.NewMapController(routes, areas, traffic), areas, surface
}

func TestMapController_ClickPlacesActiveEndpoint(t *testing.T) {
	ctrl, _, surface := newController()
	ctx := context.Background()

	if ctrl.ActiveInput() != domain.EndpointDestination {
		t.Fatalf("expected destination to be active by default, got %s", ctrl.ActiveInput())
	}
	res, err := ctrl.Click(ctx, ulus)
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if res.Target != domain.CategoryDestination || res.Route != nil {
		t.Errorf("unexpected result %+v", res)
	}

	if err := ctrl.SetActiveInput(domain.EndpointSource); err != nil {
		t.Fatalf("set active: %v", err)
	}
	res, err = ctrl.Click(ctx, kizilay)
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if res.Route == nil {
		t.Error("expected route once both endpoints are placed")
	}
	if n := len(surface.inCategory(domain.CategorySource)); n != 1 {
		t.Errorf("expected source marker, got %d", n)
	}
}

func TestMapController_ClickFeedsActiveAreaSelection(t *testing.T) {
	ctrl, areas, surface := newController()
	ctx := context.Background()
	_ = areas.Begin(ctx)

	res, err := ctrl.Click(ctx, kizilay)
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if res.Target != domain.CategoryAreaRect {
		t.Errorf("expected click to go to area selection, got %s", res.Target)
	}
	if n := len(surface.inCategory(domain.CategoryDestination)); n != 0 {
		t.Errorf("expected no endpoint placed, got %d", n)
	}
	if areas.State() != usecases.SelectionAwaitingPointB {
		t.Errorf("expected awaiting_point_b, got %s", areas.State())
	}
}

func TestMapController_SelectAddressUsesLabel(t *testing.T) {
	ctrl, _, surface := newController()
	if _, err := ctrl.SelectAddress(context.Background(), ulus, "Ulus Meydani"); err != nil {
		t.Fatalf("select address: %v", err)
	}
	dst := surface.inCategory(domain.CategoryDestination)
	if len(dst) != 1 || dst[0].Title != "Ulus Meydani" {
		t.Errorf("expected labelled marker, got %+v", dst)
	}
}

func TestMapController_DragRejectsUndraggable(t *testing.T) {
	ctrl, _, _ := newController()
	if _, err := ctrl.Drag(context.Background(), domain.CategoryRoute, kizilay); err == nil {
		t.Error("expected error dragging a route")
	}
	if err := ctrl.SetActiveInput("middle"); err == nil {
		t.Error("expected error for unknown endpoint")
	}
}

func TestMapController_SetStyle(t *testing.T) {
	ctrl, _, surface := newController()
	if err := ctrl.SetStyle(context.Background(), domain.StyleDark); err != nil {
		t.Fatalf("set style: %v", err)
	}
	if surface.style != domain.StyleDark {
		t.Errorf("expected dark style, got %s", surface.style)
	}
	if err := ctrl.SetStyle(context.Background(), "neon"); err == nil {
		t.Error("expected error for unknown style")
	}
}
