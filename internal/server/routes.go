package server

import (
	"github.com/shelfgate/shelfgate/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	catalog := &handlers.Catalog{Orchestrator: s.deps.Orchestrator}
	metrics := &handlers.Metrics{Orchestrator: s.deps.Orchestrator}

	// Product catalog endpoints
	s.router.Get("/products", catalog.ListProducts)
	s.router.Get("/products/{id}", catalog.GetProduct)

	// Rolling request statistics
	s.router.Get("/metrics", metrics.Show)
	s.router.Post("/metrics/reset", metrics.Reset)

	// Health endpoints
	s.router.Get("/health", s.deps.Health.HealthHandler)
	s.router.Get("/health/live", s.deps.Health.LivenessHandler)
	s.router.Get("/health/ready", s.deps.Health.ReadinessHandler)

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)
}
