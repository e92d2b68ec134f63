package usecases

import (
	"context"
	"fmt"
	"sync"

	"github.com/mapnav/navclient/internal/core/domain"
)

// ClickResult tells the caller what a map click did.
type ClickResult struct {
	Target domain.OverlayCategory `json:"target"`
	Route  *domain.RouteGeometry  `json:"route,omitempty"`
}

// MapController dispatches raw map input. While an area selection is
// collecting corners, clicks belong to it; otherwise they place the active
// route endpoint.
type MapController struct {
	routes  *RouteService
	areas   *AreaSelectionService
	traffic *TrafficService

	mu     sync.Mutex
	active domain.Endpoint
}

// NewMapController creates a controller whose clicks place the destination.
func NewMapController(routes *RouteService, areas *AreaSelectionService, traffic *TrafficService) *MapController {
	return &MapController{routes: routes, areas: areas, traffic: traffic, active: domain.EndpointDestination}
}

// ActiveInput returns the endpoint the next click places.
func (c *MapController) ActiveInput() domain.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// SetActiveInput focuses the source or destination input.
func (c *MapController) SetActiveInput(ep domain.Endpoint) error {
	if ep != domain.EndpointSource && ep != domain.EndpointDestination {
		return fmt.Errorf("%w: unknown endpoint %q", domain.ErrInvalidInput, ep)
	}
	c.mu.Lock()
	c.active = ep
	c.mu.Unlock()
	return nil
}

// Click handles a click on the map.
func (c *MapController) Click(ctx context.Context, at domain.Coordinate) (*ClickResult, error) {
	if c.areas.Active() {
		if err := c.areas.Click(ctx, at); err != nil {
			return nil, err
		}
		return &ClickResult{Target: domain.CategoryAreaRect}, nil
	}
	ep := c.ActiveInput()
	route, err := c.routes.SetEndpoint(ctx, ep, at, EndpointOptions{})
	return &ClickResult{Target: ep.Category(), Route: route}, err
}

// SelectAddress places the active endpoint from an autocomplete pick. The
// address is used as the marker label as-is.
func (c *MapController) SelectAddress(ctx context.Context, at domain.Coordinate, address string) (*ClickResult, error) {
	ep := c.ActiveInput()
	route, err := c.routes.SetEndpoint(ctx, ep, at, EndpointOptions{Address: address})
	return &ClickResult{Target: ep.Category(), Route: route}, err
}

// Drag handles a marker drag end.
func (c *MapController) Drag(ctx context.Context, category domain.OverlayCategory, to domain.Coordinate) (*ClickResult, error) {
	switch category {
	case domain.CategorySource, domain.CategoryDestination:
		ep := domain.EndpointSource
		if category == domain.CategoryDestination {
			ep = domain.EndpointDestination
		}
		route, err := c.routes.SetEndpoint(ctx, ep, to, EndpointOptions{})
		return &ClickResult{Target: category, Route: route}, err
	case domain.CategoryAreaA:
		return &ClickResult{Target: category}, c.areas.Drag(ctx, AreaPointA, to)
	case domain.CategoryAreaB:
		return &ClickResult{Target: category}, c.areas.Drag(ctx, AreaPointB, to)
	}
	return nil, fmt.Errorf("%w: %s markers are not draggable", domain.ErrInvalidInput, category)
}

// SetStyle switches the base map style.
func (c *MapController) SetStyle(ctx context.Context, style domain.MapStyle) error {
	return c.traffic.SwitchBaseStyle(ctx, style)
}
