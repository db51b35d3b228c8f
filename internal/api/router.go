package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewCORS creates the CORS middleware for the given allowed origins.
func NewCORS(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			"X-API-Key",
		},
		ExposedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})
}

// NewRouter wires every route. metricsHandler may be nil.
func NewRouter(h *Handler, allowedOrigins []string, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(NewCORS(allowedOrigins).Handler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/analysis", func(r chi.Router) {
			r.Get("/health", h.Health)
			r.Get("/source/status", h.SourceStatus)
			r.Post("/source/connect", h.SourceConnect)

			r.Route("/{symbol}", func(r chi.Router) {
				r.Get("/", h.Analysis)
				r.Get("/sma", h.SMA)
				r.Get("/ema", h.EMA)
				r.Get("/rsi", h.RSI)
				r.Get("/macd", h.MACD)
				r.Get("/bollinger", h.Bollinger)
				r.Get("/refreshes", h.Refreshes)
			})
		})

		r.Route("/stocks", func(r chi.Router) {
			r.Get("/symbols", h.Symbols)
			r.Post("/batch-update", h.BatchUpdate)
			r.Get("/{symbol}", h.Stock)
			r.Get("/{symbol}/history", h.StockHistory)
			r.Post("/{symbol}/refresh", h.RefreshStock)
		})
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}
	return r
}
