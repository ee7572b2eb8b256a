/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/products/*    Product catalog
  /api/purchases/*   Purchase ledger
  /api/sales/*       Sale ledger
  /api/admin/*       Repair pass

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Product routes
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Get("/{id}", h.GetProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})

		// Purchase routes
		r.Route("/purchases", func(r chi.Router) {
			r.Get("/", h.ListTransactions(h.Purchases))
			r.Post("/", h.CreateTransaction(h.Purchases))
			r.Get("/{id}", h.GetTransaction(h.Purchases))
			r.Put("/{id}", h.UpdateTransaction(h.Purchases))
			r.Delete("/{id}", h.DeleteTransaction(h.Purchases))
		})

		// Sale routes
		r.Route("/sales", func(r chi.Router) {
			r.Get("/", h.ListTransactions(h.Sales))
			r.Post("/", h.CreateTransaction(h.Sales))
			r.Get("/{id}", h.GetTransaction(h.Sales))
			r.Put("/{id}", h.UpdateTransaction(h.Sales))
			r.Delete("/{id}", h.DeleteTransaction(h.Sales))
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/repair", h.Repair)
		})
	})

	return r
}
