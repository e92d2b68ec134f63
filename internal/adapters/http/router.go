package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/mapnav/navclient/internal/pkg/metrics"
)

// requestTimeout bounds every workflow call. Backend calls carry their own
// shorter timeout.
const requestTimeout = 15 * time.Second

func withTimeout(h fiber.Handler) fiber.Handler {
	return timeout.NewWithContext(h, requestTimeout)
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Map input arrives in bursts while dragging; 600/min per IP.
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/ws"
		},
	}))

	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/state", StateHandler(deps))

	// Map input
	v1.Post("/map/click", withTimeout(MapClickHandler(deps)))
	v1.Post("/map/select", withTimeout(MapSelectHandler(deps)))
	v1.Post("/map/drag", withTimeout(MapDragHandler(deps)))
	v1.Put("/map/input", ActiveInputHandler(deps))
	v1.Put("/map/style", withTimeout(MapStyleHandler(deps)))

	// Route
	v1.Post("/route", withTimeout(RouteHandler(deps)))
	v1.Put("/route/options", withTimeout(RouteOptionsHandler(deps)))
	v1.Delete("/route", ClearRouteHandler(deps))
	v1.Delete("/endpoints/:endpoint", ClearEndpointHandler(deps))

	// POI discovery
	v1.Get("/pharmacies/status", withTimeout(PharmacyStatusHandler(deps)))
	v1.Get("/discover/:type", DiscoveryStatusHandler(deps))
	v1.Post("/discover/:type", withTimeout(DiscoverHandler(deps)))
	v1.Delete("/discover/:type", ClearDiscoveryHandler(deps))
	v1.Post("/discover/:type/:id/promote", withTimeout(PromoteHandler(deps)))

	// Favorites
	v1.Get("/favorites", ListFavoritesHandler(deps))
	v1.Post("/favorites", withTimeout(CreateFavoriteHandler(deps)))
	v1.Post("/favorites/reload", withTimeout(ReloadFavoritesHandler(deps)))
	v1.Get("/favorites/:id", GetFavoriteHandler(deps))
	v1.Delete("/favorites/:id", withTimeout(DeleteFavoriteHandler(deps)))

	// Area preferences
	v1.Get("/areas/selection", AreaSelectionHandler(deps))
	v1.Post("/areas/selection", BeginAreaHandler(deps))
	v1.Delete("/areas/selection", CancelAreaHandler(deps))
	v1.Post("/areas/selection/submit", withTimeout(SubmitAreaHandler(deps)))
	v1.Get("/areas", withTimeout(ListAreasHandler(deps)))
	v1.Delete("/areas/:id", withTimeout(DeleteAreaHandler(deps)))

	// Traffic
	v1.Put("/traffic", withTimeout(TrafficHandler(deps)))

	// Session
	v1.Put("/session", withTimeout(SetTokenHandler(deps)))
	v1.Delete("/session", withTimeout(ClearTokenHandler(deps)))

	app.Post("/graphql", withTimeout(GraphQLHandler(deps)))

	SetupDocs(app)

	// WebSocket
	if deps.Surface != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(WebSocketHandler(deps.Surface)))
	}
}
