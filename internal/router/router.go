package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-admission/internal/config"
	"github.com/iliyamo/seat-admission/internal/handler"    // handlers for the admission API
	"github.com/iliyamo/seat-admission/internal/middleware" // JWT authentication, roles, rate limiting, caching
)

// Options carries what route registration needs besides the handler.  A
// nil Redis client disables rate limiting; a nil Cache disables caching.
type Options struct {
	JWTSecret string
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     *middleware.ResponseCache
}

// RegisterRoutes registers routes that need no access token: liveness,
// metrics, the date catalogue and the live queue stream (which
// authenticates with its queue token).
func RegisterRoutes(e *echo.Echo, h *handler.AdmissionHandler, opt Options) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// The date list changes only when an admin adds a date; serve it from cache.
	e.GET(handler.RouteDates, h.Dates, opt.Cache.Middleware())
	// Availability changes on every hold and is always live.
	e.GET("/v1/dates/:date/seats", h.AvailableSeats)
	e.GET("/v1/queue/stream", h.QueueStream)
}

// RegisterAdmission registers the authenticated waiting-room, hold and
// reservation routes under /v1.  Every route requires a valid access token
// and is rate limited per subject.
func RegisterAdmission(e *echo.Echo, h *handler.AdmissionHandler, opt Options) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(opt.JWTSecret),
		middleware.NewTokenBucket(opt.RateLimit, opt.Redis),
	)
	g.POST("/queue", h.Enqueue)
	g.GET("/queue/status", h.QueueStatus)
	g.POST("/dates/:date/seats/:seat/hold", h.HoldSeat)
	g.DELETE("/holds", h.ReleaseHold)
	g.POST("/dates/:date/seats/:seat/reserve", h.Reserve)
	g.GET("/my-reservations", h.MyReservations)
}

// RegisterAdmin registers operator routes.  They require the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdmissionHandler, opt Options) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(opt.JWTSecret),
		middleware.RequireRole("ADMIN"),
	)
	g.POST("/dates/:date/initialize", h.InitializeDate)
}
