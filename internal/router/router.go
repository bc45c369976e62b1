package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/civic-incident-reporting/internal/auth"
	"github.com/iliyamo/civic-incident-reporting/internal/handler"
	"github.com/iliyamo/civic-incident-reporting/internal/metrics"
	"github.com/iliyamo/civic-incident-reporting/internal/middleware"
)

// Handlers groups everything the routes dispatch to.
type Handlers struct {
	Auth      *handler.AuthHandler
	Incidents *handler.IncidentHandler
	Users     *handler.UserHandler
}

// Guards are the cross-cutting middlewares applied to selected routes.
type Guards struct {
	Authenticator middleware.Authenticator
	// RateLimit protects the credential endpoints.
	RateLimit echo.MiddlewareFunc
	// Cache fronts the public leaderboard.
	Cache echo.MiddlewareFunc
	// MaxUpload bounds media upload bodies, e.g. "20M".
	MaxUpload string
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// RegisterRoutes exposes the health probe and Prometheus metrics.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAPI mounts the versioned API under /api/v1.
func RegisterAPI(e *echo.Echo, h Handlers, g Guards) {
	if g.RateLimit == nil {
		g.RateLimit = passthrough
	}
	if g.Cache == nil {
		g.Cache = passthrough
	}
	if g.MaxUpload == "" {
		g.MaxUpload = "20M"
	}
	requireAuth := middleware.JWTAuth(g.Authenticator)
	optionalAuth := middleware.OptionalJWTAuth(g.Authenticator)

	api := e.Group("/api/v1")

	a := api.Group("/auth")
	a.POST("/signup", h.Auth.Signup, g.RateLimit)
	a.POST("/login", h.Auth.Login, g.RateLimit)
	a.GET("/me", h.Auth.Me, requireAuth)
	a.POST("/refresh", h.Auth.Refresh, g.RateLimit)
	a.POST("/password-reset-request", h.Auth.RequestPasswordReset, g.RateLimit)
	a.POST("/password-reset/:token", h.Auth.ResetPassword, g.RateLimit)

	inc := api.Group("/incidents")
	inc.GET("", h.Incidents.List, optionalAuth)
	inc.POST("", h.Incidents.Create, requireAuth)
	inc.GET("/mine", h.Incidents.Mine, requireAuth)
	inc.GET("/:id", h.Incidents.Get, optionalAuth)
	inc.PUT("/:id", h.Incidents.Update, requireAuth)
	inc.DELETE("/:id", h.Incidents.Delete, requireAuth)
	inc.GET("/:id/comments", h.Incidents.ListComments, optionalAuth)
	inc.POST("/:id/comments", h.Incidents.AddComment, requireAuth)

	media := api.Group("/media", requireAuth)
	media.POST("/:incident_id/upload", h.Incidents.UploadMedia, echomw.BodyLimit(g.MaxUpload))
	media.DELETE("/:id", h.Incidents.DeleteMedia)

	admin := api.Group("/admin", requireAuth)
	admin.GET("/incidents", h.Incidents.AdminList, middleware.RequireAction(auth.ActionAdminListIncidents))
	// the service checks these after resolving the target
	admin.PATCH("/incidents/:id/status", h.Incidents.UpdateStatus)
	admin.POST("/users/:id/points", h.Users.Credit)

	users := api.Group("/users")
	users.GET("/points", h.Users.Points, requireAuth)
	users.POST("/redeem", h.Users.Redeem, requireAuth)
	users.GET("/leaderboard", h.Users.Leaderboard, g.Cache)
}
