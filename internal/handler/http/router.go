package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/selimekin/storefront/internal/service"
	"github.com/selimekin/storefront/pkg/health"
	"github.com/selimekin/storefront/pkg/middleware"
)

// RouterConfig carries the dependencies and tuning for the HTTP router.
type RouterConfig struct {
	Catalog  *service.CatalogService
	Cart     *service.CartService
	Orders   *service.OrderService
	Payments *service.PaymentService

	Health        *health.Handler
	TokenValidate middleware.TokenValidator
	Logger        *slog.Logger

	CORS             middleware.CORSConfig
	PprofCIDRs       []string
	PaymentRateRPS   int
	PaymentRateBurst int
	// ProductCacheMaxAge is the Cache-Control max-age in seconds for public
	// catalog reads. Zero disables the header.
	ProductCacheMaxAge int
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("storefront"))
	r.Use(middleware.Tracing("storefront"))
	r.Use(middleware.RequestLogger(cfg.Logger))

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, cfg.Logger)

	productHandler := NewProductHandler(cfg.Catalog, cfg.Logger)
	cartHandler := NewCartHandler(cfg.Cart, cfg.Logger)
	orderHandler := NewOrderHandler(cfg.Orders, cfg.Logger)
	paymentHandler := NewPaymentHandler(cfg.Payments, cfg.Logger)

	auth := middleware.Auth(cfg.TokenValidate)
	adminOnly := middleware.RequireRole(service.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if cfg.ProductCacheMaxAge > 0 {
					r.Use(middleware.CacheControl(cfg.ProductCacheMaxAge))
				}
				r.Get("/", productHandler.List)
				r.Get("/{id}", productHandler.Get)
				r.Get("/{id}/reviews", productHandler.ListReviews)
			})

			r.Group(func(r chi.Router) {
				r.Use(ContentTypeJSON)
				r.Use(auth)

				r.With(adminOnly).Post("/", productHandler.Create)
				r.With(adminOnly).Put("/{id}", productHandler.Update)
				r.With(adminOnly).Delete("/{id}", productHandler.Deactivate)
				r.Post("/{id}/reviews", productHandler.AddReview)
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(auth)

			r.Get("/", cartHandler.Get)
			r.Delete("/", cartHandler.Clear)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{productID}", cartHandler.SetQuantity)
			r.Delete("/items/{productID}", cartHandler.RemoveItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(auth)

			r.Post("/", orderHandler.Create)
			r.Get("/", orderHandler.List)
			r.With(adminOnly).Get("/admin/all", orderHandler.AdminList)
			r.With(adminOnly).Get("/admin/stats", orderHandler.Stats)
			r.Get("/{id}", orderHandler.Get)
			r.With(adminOnly).Patch("/{id}/status", orderHandler.UpdateStatus)
		})

		r.Route("/payments", func(r chi.Router) {
			// The webhook authenticates via payload signature, not a bearer
			// token, and needs the raw body.
			r.Post("/webhook", paymentHandler.Webhook)

			r.Group(func(r chi.Router) {
				r.Use(ContentTypeJSON)
				r.Use(middleware.RateLimit(cfg.PaymentRateRPS, cfg.PaymentRateBurst, cfg.Logger))
				r.Use(auth)

				r.Post("/create-intent", paymentHandler.CreateIntent)
				r.Post("/confirm", paymentHandler.Confirm)
				r.With(adminOnly).Post("/refund", paymentHandler.Refund)
			})
		})
	})

	return r
}
