package http

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/usecases"
)

type coordinateBody struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (b coordinateBody) coordinate() (domain.Coordinate, error) {
	if b.Lat == nil || b.Lng == nil {
		return domain.Coordinate{}, errors.New("lat and lng are required")
	}
	return domain.Coordinate{Lat: *b.Lat, Lng: *b.Lng}, nil
}

// RouteView is a route with its path as GeoJSON.
type RouteView struct {
	*domain.RouteGeometry
	Geometry *geojson.Geometry `json:"geometry,omitempty"`
}

func routeView(r *domain.RouteGeometry) *RouteView {
	if r == nil {
		return nil
	}
	v := &RouteView{RouteGeometry: r}
	if r.Path != nil {
		v.Geometry = geojson.NewGeometry(r.Path)
	}
	return v
}

// EndpointView is one placed route endpoint.
type EndpointView struct {
	Location domain.Coordinate `json:"location"`
	Address  string            `json:"address,omitempty"`
}

// StateResponse is the full client state shown to a renderer or the CLI.
type StateResponse struct {
	Authenticated bool                       `json:"authenticated"`
	ActiveInput   domain.Endpoint            `json:"active_input"`
	Source        *EndpointView              `json:"source,omitempty"`
	Destination   *EndpointView              `json:"destination,omitempty"`
	Mode          domain.TransportMode       `json:"mode"`
	DepartureTime *time.Time                 `json:"departure_time,omitempty"`
	Route         *RouteView                 `json:"route,omitempty"`
	Discovery     []usecases.DiscoveryStatus `json:"discovery"`
	FavoritesMode usecases.FavoriteMode      `json:"favorites_mode"`
	Favorites     int                        `json:"favorites"`
	Area          usecases.AreaSelection     `json:"area_selection"`
	Traffic       TrafficView                `json:"traffic"`
	Overlay       usecases.OverlaySnapshot   `json:"overlay"`
}

// TrafficView reports the traffic layer.
type TrafficView struct {
	State     usecases.TrafficState `json:"state"`
	Enabled   bool                  `json:"enabled"`
	LastError string                `json:"last_error,omitempty"`
}

func endpointView(deps *Dependencies, ep domain.Endpoint) *EndpointView {
	at, ok := deps.Routes.Endpoint(ep)
	if !ok {
		return nil
	}
	return &EndpointView{Location: at, Address: deps.Routes.EndpointAddress(ep)}
}

func buildState(deps *Dependencies) StateResponse {
	st := StateResponse{
		Authenticated: deps.Session.Authenticated(),
		ActiveInput:   deps.Map.ActiveInput(),
		Source:        endpointView(deps, domain.EndpointSource),
		Destination:   endpointView(deps, domain.EndpointDestination),
		Mode:          deps.Routes.Mode(),
		Route:         routeView(deps.Routes.Current()),
		Discovery:     []usecases.DiscoveryStatus{},
		FavoritesMode: deps.Favorites.Mode(),
		Favorites:     len(deps.Favorites.List()),
		Area:          deps.Areas.Selection(),
		Traffic: TrafficView{
			State:     deps.Traffic.State(),
			Enabled:   deps.Traffic.Enabled(),
			LastError: deps.Traffic.LastError(),
		},
		Overlay: deps.Overlays.Snapshot(),
	}
	if t := deps.Routes.DepartureTime(); !t.IsZero() {
		st.DepartureTime = &t
	}
	for _, t := range deps.Discovery.Types() {
		st.Discovery = append(st.Discovery, deps.Discovery.Status(t))
	}
	return st
}

// StateHandler returns the whole client state.
func StateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(buildState(deps))
	}
}

// ---- Map input ----

// clickResponse reports what a click did. A failed route request does not
// undo the marker placement and is reported alongside it.
type clickResponse struct {
	Target     domain.OverlayCategory `json:"target"`
	Route      *RouteView             `json:"route,omitempty"`
	RouteError *APIError              `json:"route_error,omitempty"`
}

func clickResult(c *fiber.Ctx, res *usecases.ClickResult, err error) error {
	if res == nil {
		return errFromDomain(c, err)
	}
	out := clickResponse{Target: res.Target, Route: routeView(res.Route)}
	switch kind := domain.Classify(err); kind {
	case domain.KindNone, domain.KindStale:
	case domain.KindInput, domain.KindInternal:
		return errFromDomain(c, err)
	default:
		out.RouteError = &APIError{Code: string(kind), Message: err.Error()}
	}
	return c.JSON(out)
}

// MapClickHandler places the active endpoint or an area corner.
func MapClickHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body coordinateBody
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		at, err := body.coordinate()
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		res, err := deps.Map.Click(c.UserContext(), at)
		return clickResult(c, res, err)
	}
}

// MapSelectHandler places the active endpoint from an address pick.
func MapSelectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			coordinateBody
			Address string `json:"address"`
		}
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		at, err := body.coordinate()
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if strings.TrimSpace(body.Address) == "" {
			return errBadRequest(c, "address is required")
		}
		res, err := deps.Map.SelectAddress(c.UserContext(), at, body.Address)
		return clickResult(c, res, err)
	}
}

// MapDragHandler moves a draggable marker.
func MapDragHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			coordinateBody
			Category domain.OverlayCategory `json:"category"`
		}
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		at, err := body.coordinate()
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		res, err := deps.Map.Drag(c.UserContext(), body.Category, at)
		return clickResult(c, res, err)
	}
}

// ActiveInputHandler focuses the source or destination input.
func ActiveInputHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Endpoint domain.Endpoint `json:"endpoint"`
		}
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := deps.Map.SetActiveInput(body.Endpoint); err != nil {
			return errBadRequest(c, err.Error())
		}
		return c.JSON(fiber.Map{"active_input": body.Endpoint})
	}
}

// MapStyleHandler switches the base style.
func MapStyleHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Style string `json:"style"`
		}
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		style, err := domain.ParseMapStyle(body.Style)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if err := deps.Map.SetStyle(c.UserContext(), style); err != nil {
			// The style is applied even when the traffic refresh fails.
			if domain.Classify(err) == domain.KindInternal {
				return errFromDomain(c, err)
			}
			LoggerFromCtx(c.UserContext()).Warn("traffic refresh after style switch failed", "error", err)
		}
		return c.JSON(fiber.Map{"style": style})
	}
}

// ---- Route ----

// RouteHandler requests a route between the placed endpoints.
func RouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		route, err := deps.Routes.Reroute(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(routeView(route))
	}
}

// RouteOptionsHandler changes the transport mode and departure time and
// reroutes when both endpoints are placed.
func RouteOptionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Mode          *string `json:"mode"`
			DepartureTime *string `json:"departure_time"`
			AutoRoute     *bool   `json:"auto_route"`
		}
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		var departure *time.Time
		if body.DepartureTime != nil {
			t := time.Time{}
			if *body.DepartureTime != "" {
				parsed, err := time.Parse(time.RFC3339, *body.DepartureTime)
				if err != nil {
					return errBadRequest(c, "departure_time must be RFC 3339")
				}
				t = parsed
			}
			departure = &t
		}
		var mode domain.TransportMode
		if body.Mode != nil {
			m, err := domain.ParseTransportMode(*body.Mode)
			if err != nil {
				return errBadRequest(c, err.Error())
			}
			mode = m
		}

		if body.AutoRoute != nil {
			deps.Routes.SetAutoRoute(*body.AutoRoute)
		}
		route, err := deps.Routes.SetOptions(c.UserContext(), mode, departure)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{
			"mode":  deps.Routes.Mode(),
			"route": routeView(route),
		})
	}
}

// ClearRouteHandler removes the route overlay.
func ClearRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Routes.ClearRoute(c.UserContext()); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ClearEndpointHandler removes one endpoint marker and the route.
func ClearEndpointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ep := domain.Endpoint(c.Params("endpoint"))
		if ep != domain.EndpointSource && ep != domain.EndpointDestination {
			return errBadRequest(c, "endpoint must be source or destination")
		}
		if err := deps.Routes.ClearEndpoint(c.UserContext(), ep); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ---- POI discovery ----

func poiType(c *fiber.Ctx) (domain.POIType, error) {
	return domain.ParsePOIType(c.Params("type"))
}

// DiscoverHandler fetches POIs of one type around the source.
func DiscoverHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		t, err := poiType(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		res, err := deps.Discovery.Discover(c.UserContext(), t)
		if err != nil {
			return errFromDomain(c, err)
		}
		out := fiber.Map{"type": res.Type, "pois": res.POIs}
		if res.Route != nil {
			out["route"] = routeView(res.Route)
		}
		if res.RouteErr != nil && domain.Classify(res.RouteErr) != domain.KindStale {
			out["route_error"] = res.RouteErr.Error()
		}
		return c.JSON(out)
	}
}

// DiscoveryStatusHandler returns the state and results of one POI type.
func DiscoveryStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		t, err := poiType(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		results := deps.Discovery.Results(t)
		if results == nil {
			results = []domain.PointOfInterest{}
		}
		return c.JSON(fiber.Map{
			"status": deps.Discovery.Status(t),
			"pois":   results,
		})
	}
}

// ClearDiscoveryHandler removes the markers of one POI type.
func ClearDiscoveryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		t, err := poiType(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if err := deps.Discovery.Clear(c.UserContext(), t); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// PromoteHandler saves a discovered POI as a favorite.
func PromoteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		t, err := poiType(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		var body struct {
			Name string `json:"name"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		fav, err := deps.Discovery.Promote(c.UserContext(), t, c.Params("id"), body.Name)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fav)
	}
}

// PharmacyStatusHandler checks today's duty pharmacy data.
func PharmacyStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := deps.Discovery.CheckPharmacyData(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(st)
	}
}

// ---- Favorites ----

// ListFavoritesHandler returns the in-memory favorites, paginated.
func ListFavoritesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset, limit := pageParams(c, 50, 200)
		return c.JSON(paginate(c, deps.Favorites.List(), offset, limit))
	}
}

// GetFavoriteHandler returns one favorite.
func GetFavoriteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, ok := deps.Favorites.Get(c.Params("id"))
		if !ok {
			return errNotFound(c, "favorite not found")
		}
		return c.JSON(f)
	}
}

// ReloadFavoritesHandler reloads favorites from the active backend.
func ReloadFavoritesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := deps.Favorites.Load(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"mode": deps.Favorites.Mode(), "favorites": list})
	}
}

// CreateFavoriteHandler saves a favorite.
func CreateFavoriteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body domain.FavoriteCandidate
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := body.Validate(); err != nil {
			return errFromDomain(c, err)
		}
		fav, err := deps.Favorites.Add(c.UserContext(), body)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fav)
	}
}

// DeleteFavoriteHandler removes a favorite. Removing an unknown id succeeds.
func DeleteFavoriteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Favorites.Remove(c.UserContext(), c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ---- Area preferences ----

// AreaSelectionHandler returns the selection state.
func AreaSelectionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Areas.Selection())
	}
}

// BeginAreaHandler starts a new rectangle selection.
func BeginAreaHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Areas.Begin(c.UserContext()); err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(deps.Areas.Selection())
	}
}

// CancelAreaHandler abandons the selection.
func CancelAreaHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Areas.Cancel(c.UserContext()); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// SubmitAreaHandler stores the selected rectangle as a preference.
func SubmitAreaHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		kind, err := domain.ParsePreferenceType(body.Type)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		pref, err := deps.Areas.Submit(c.UserContext(), kind, body.Reason)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(pref)
	}
}

// ListAreasHandler lists stored area preferences.
func ListAreasHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		prefs, err := deps.Areas.List(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		offset, limit := pageParams(c, 50, 200)
		return c.JSON(paginate(c, prefs, offset, limit))
	}
}

// DeleteAreaHandler removes a stored area preference.
func DeleteAreaHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Areas.Delete(c.UserContext(), c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ---- Traffic ----

// TrafficHandler turns the traffic layer on or off.
func TrafficHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Enabled *bool `json:"enabled"`
		}
		if err := c.BodyParser(&body); err != nil || body.Enabled == nil {
			return errBadRequest(c, "enabled is required")
		}
		var err error
		if *body.Enabled {
			err = deps.Traffic.Enable(c.UserContext())
		} else {
			err = deps.Traffic.Disable(c.UserContext())
		}
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(TrafficView{
			State:     deps.Traffic.State(),
			Enabled:   deps.Traffic.Enabled(),
			LastError: deps.Traffic.LastError(),
		})
	}
}

// ---- Session ----

// SetTokenHandler installs the auth token after login.
func SetTokenHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Token string `json:"token"`
		}
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		token := strings.TrimSpace(strings.TrimPrefix(body.Token, "Bearer "))
		if token == "" {
			return errBadRequest(c, "token is required")
		}
		deps.Session.SetToken(c.UserContext(), token)
		if !deps.Session.Authenticated() {
			return errUnauthorized(c, "token is expired")
		}
		return c.JSON(fiber.Map{"authenticated": true, "favorites_mode": deps.Favorites.Mode()})
	}
}

// ClearTokenHandler logs out.
func ClearTokenHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps.Session.Clear(c.UserContext())
		return c.SendStatus(fiber.StatusNoContent)
	}
}
