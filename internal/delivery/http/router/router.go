package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/user/soldprice-service/internal/delivery/http/handler"
	"github.com/user/soldprice-service/internal/delivery/http/middleware"
	"github.com/user/soldprice-service/pkg/metrics"
)

func New(h *handler.Handler, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)
		r.Get("/stats", h.HandleCrossSection)

		r.Get("/items", h.HandleListItems)
		r.Route("/items/{collection}/{collectionSeq}/{itemSeq}", func(r chi.Router) {
			r.Get("/", h.HandleItemVariants)
			r.Get("/{variant}", h.HandleGetItem)
			r.Get("/{variant}/listings", h.HandleListings)
			r.Get("/{variant}/stats", h.HandleItemStats)
		})
	})

	return r
}
