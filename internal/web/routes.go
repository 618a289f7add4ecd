package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/picbest/picbest/internal/embed"
	"github.com/picbest/picbest/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	photosHandler := handlers.NewPhotosHandler(s.store)
	clustersHandler := handlers.NewClustersHandler(s.store)
	personsHandler := handlers.NewPersonsHandler(s.store)
	statsHandler := handlers.NewStatsHandler(s.store)
	exportHandler := handlers.NewExportHandler(s.store)
	runsHandler := handlers.NewRunsHandler(s.store, s.config.Clustering, photosHandler)
	searchHandler := handlers.NewSearchHandler(embed.NewClient(s.config.Embedding.URL), photosHandler)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Photos
		r.Get("/photos", photosHandler.List)
		r.Get("/photos/{id}", photosHandler.Get)
		r.Get("/photos/{id}/file", photosHandler.File)
		r.Get("/photos/{id}/faces", photosHandler.Faces)
		r.Get("/photos/{id}/similar", photosHandler.Similar)
		r.Post("/photos/{id}/rating", photosHandler.Rate)
		r.Post("/photos/{id}/star", photosHandler.Star)
		r.Post("/photos/{id}/reject", photosHandler.Reject)
		r.Put("/photos/{id}/notes", photosHandler.Notes)

		// Clusters
		r.Get("/clusters", clustersHandler.List)
		r.Get("/clusters/{id}", clustersHandler.Get)
		r.Get("/clusters/{id}/photos", clustersHandler.Photos)

		// Persons
		r.Get("/persons", personsHandler.List)
		r.Get("/persons/{id}", personsHandler.Get)
		r.Put("/persons/{id}/name", personsHandler.Rename)

		// Clustering runs (long-running operations)
		r.Post("/cluster-runs", runsHandler.Start)
		r.Get("/cluster-runs/{id}", runsHandler.Status)

		// Search, stats, and export
		r.Get("/search", searchHandler.Search)
		r.Get("/stats", statsHandler.Get)
		r.Get("/export/starred", exportHandler.Starred)
	})
}
