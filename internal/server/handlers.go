package server

import (
	"net/http"
	"strings"

	"autopress/internal/cache"
	"autopress/internal/logger"
	"autopress/internal/platform/tasks"

	"github.com/gofiber/fiber/v2"
)

type handler struct {
	deps Dependencies
	log  *logger.Logger
}

func newHandler(d Dependencies) *handler {
	return &handler{deps: d, log: logger.New("API")}
}

type enqueueRequest struct {
	Keywords []string `json:"keywords"`
}

type enqueuedJob struct {
	JobID   string `json:"job_id"`
	Keyword string `json:"keyword"`
}

// HandleEnqueueKeywords registers pending jobs and queues one task per
// keyword for the worker pool.
func (h *handler) HandleEnqueueKeywords(c *fiber.Ctx) error {
	var req enqueueRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	var accepted []enqueuedJob
	for _, kw := range req.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		j, err := h.deps.Jobs.Create(c.Context(), kw, cache.Normalize(kw))
		if err != nil {
			h.log.LogErrorf("Failed to create job for %q: %v", kw, err)
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "job persistence unavailable"})
		}
		task, err := tasks.NewKeywordTask(j.ID, kw)
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to build task"})
		}
		if err := h.deps.Tasks.Enqueue(task, h.deps.TaskQueue, h.deps.TaskMaxRetries); err != nil {
			h.log.LogErrorf("Failed to enqueue %q: %v", kw, err)
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to enqueue task"})
		}
		accepted = append(accepted, enqueuedJob{JobID: j.ID, Keyword: kw})
	}

	if len(accepted) == 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "no keywords provided"})
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"jobs": accepted})
}

// HandleGetJob returns the persisted state of one job.
func (h *handler) HandleGetJob(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	j, err := h.deps.Jobs.Get(c.Context(), jobID)
	if err != nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}
	return c.JSON(j)
}

type cleanCacheRequest struct {
	Stage string `json:"stage"` // empty = all stages
}

// HandleCleanCache purges cached stage results.
func (h *handler) HandleCleanCache(c *fiber.Ctx) error {
	var req cleanCacheRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}
	removed, err := h.deps.Cache.Purge(c.Context(), req.Stage)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"removed": removed})
}
