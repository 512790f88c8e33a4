package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/simplenotify/internal/app"
	iauth "github.com/charlesng35/simplenotify/internal/auth"
	"github.com/charlesng35/simplenotify/internal/handlers"
	"github.com/charlesng35/simplenotify/internal/middleware"
	"github.com/charlesng35/simplenotify/internal/models"
	"github.com/charlesng35/simplenotify/internal/monitoring"
)

// Options carries optional router collaborators.
type Options struct {
	// RateStore backs the API rate limiter; nil disables limiting.
	RateStore middleware.RateStore
	// Monitoring provides health probes and the metrics handler.
	Monitoring *monitoring.Module
}

// NewRouter builds the Gin engine, wires middleware and registers the push notification routes.
func NewRouter(jwt *iauth.JWTService, cfg *app.Config, svc *Services, opts Options) (*gin.Engine, error) {
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if svc == nil {
		return nil, fmt.Errorf("services must be provided")
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))

	registerHealthRoutes(r, cfg, opts.Monitoring)

	subscriptionHandler, err := handlers.NewSubscriptionHandler(svc.Subscriptions)
	if err != nil {
		return nil, err
	}
	preferenceHandler, err := handlers.NewPreferenceHandler(svc.Preferences, svc.Subscriptions)
	if err != nil {
		return nil, err
	}
	pushHandler, err := handlers.NewPushHandler(svc.Dispatcher, svc.Subscriptions)
	if err != nil {
		return nil, err
	}

	// Public push helpers
	registerPublicPushRoutes(r, pushHandler)

	api := r.Group("/api")
	if cfg.Server.RateLimit.Enabled {
		api.Use(middleware.RateLimit(opts.RateStore, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window))
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.Auth(jwt))

	registerSubscriptionRoutes(protected, subscriptionHandler)
	registerPreferenceRoutes(protected, preferenceHandler)
	registerPushRoutes(protected, pushHandler)

	monitoringHandler := handlers.NewMonitoringHandler(opts.Monitoring, cfg)
	registerMonitoringRoutes(protected, monitoringHandler, middleware.RequirePrincipalKind(models.OwnerKindUser))

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		if opts.Monitoring != nil {
			r.GET(endpoint, gin.WrapH(opts.Monitoring.Handler()))
		} else {
			r.GET(endpoint, gin.WrapH(promhttp.Handler()))
		}
	}

	r.NoRoute(middleware.NotFoundHandler)
	r.NoMethod(middleware.MethodNotAllowedHandler)

	return r, nil
}
