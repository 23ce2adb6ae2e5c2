package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smartcycle/discounts/internal/service"
	"github.com/smartcycle/discounts/pkg/health"
	"github.com/smartcycle/discounts/pkg/middleware"
)

// NewRouter creates a chi router with all discount service routes registered.
func NewRouter(
	campaignService *service.CampaignService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("discounts"))
	r.Use(middleware.Tracing("discounts"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	campaignHandler := NewCampaignHandler(campaignService, logger)

	r.Route("/api/v1/campaigns", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", campaignHandler.CreateCampaign)
		r.Get("/", campaignHandler.ListCampaigns)

		r.Get("/{id}", campaignHandler.GetCampaign)
		r.Put("/{id}", campaignHandler.UpdateCampaign)
		r.Delete("/{id}", campaignHandler.DeleteCampaign)
		r.Post("/{id}/transition", campaignHandler.TransitionCampaign)
		r.Post("/{id}/compile", campaignHandler.CompileCampaign)
		r.Get("/{id}/issues", campaignHandler.GetCampaignIssues)
	})

	r.Route("/api/v1/eligibility", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/items/{itemId}", campaignHandler.ResolveItemDiscount)
	})

	return r
}

// ContentTypeJSON forces the response content type for API routes.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
