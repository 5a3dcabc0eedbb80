package server

import (
	"autopress/internal/cache"
	"autopress/internal/core/job"
	"autopress/internal/health"
	"autopress/internal/platform/redis"
	"autopress/internal/platform/tasks"

	"github.com/gofiber/fiber/v2"
)

type Dependencies struct {
	Jobs  *job.Service
	Tasks *tasks.Client
	Cache *cache.Store
	Redis *redis.Service

	TaskQueue      string
	TaskMaxRetries int
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	// Health endpoints
	healthHandler := health.NewHealthHandler(d.Redis)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")

	h := newHandler(d)
	api.Post("/keywords", h.HandleEnqueueKeywords)
	api.Get("/jobs/:jobId", h.HandleGetJob)
	api.Post("/cache/clean", h.HandleCleanCache)

	return healthHandler
}
