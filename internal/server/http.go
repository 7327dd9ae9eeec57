// Package server assembles the HTTP API: routing, middleware, and lifecycle.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	adminhandler "quillaborn/backend/internal/admin/handler"
	gatehandler "quillaborn/backend/internal/gate/handler"
	healthhandler "quillaborn/backend/internal/health/handler"
	"quillaborn/backend/internal/httpx"
	notificationhandler "quillaborn/backend/internal/notification/handler"
	profilehandler "quillaborn/backend/internal/profile/handler"
	"quillaborn/backend/internal/ratelimit"
	"quillaborn/backend/internal/security"
	"quillaborn/backend/internal/server/middleware"
	waitlisthandler "quillaborn/backend/internal/waitlist/handler"
)

// Deps are the collaborators the router needs. Handlers own their services;
// the server owns cross-cutting middleware.
type Deps struct {
	Logger       *zap.SugaredLogger
	Sessions     *security.SessionVerifier
	Hasher       *security.Hasher
	AdminKeyHash string
	Limiter      ratelimit.Limiter
	RateLimit    int

	Health        *healthhandler.Handler
	Waitlist      *waitlisthandler.Handler
	Profile       *profilehandler.Handler
	Gate          *gatehandler.Handler
	Notifications *notificationhandler.Handler
	Admin         *adminhandler.Handler
}

// NewRouter builds the full route tree. Public waitlist endpoints are rate
// limited; everything else under /api requires a Bearer session token, and
// /api/admin additionally requires the admin service key.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogging(d.Logger))
	r.Use(httpx.SecurityHeaders)

	r.Get("/healthz", d.Health.Healthz)

	r.Route("/api", func(api chi.Router) {
		api.Group(func(pub chi.Router) {
			pub.Use(middleware.RateLimit(d.Limiter, d.RateLimit))
			d.Waitlist.PublicRoutes(pub)
		})

		api.Group(func(authed chi.Router) {
			authed.Use(middleware.Auth(d.Sessions))
			authed.Group(func(limited chi.Router) {
				limited.Use(middleware.RateLimit(d.Limiter, d.RateLimit))
				d.Waitlist.SessionRoutes(limited)
			})
			d.Profile.Routes(authed)
			d.Gate.Routes(authed)
			d.Notifications.Routes(authed)
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(middleware.AdminKey(d.Hasher, d.AdminKeyHash))
			d.Admin.Routes(admin)
		})
	})

	return otelhttp.NewHandler(r, "quillaborn-api")
}

// New returns an http.Server with sane timeouts around the router.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Shutdown drains srv with a bounded grace period.
func Shutdown(srv *http.Server, grace time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(ctx)
}
