package job

import (
	"context"
	"fmt"
	"time"

	"autopress/internal/logger"
	rds "autopress/internal/platform/redis"

	"github.com/google/uuid"
)

const (
	activeTTL   = 24 * time.Hour
	terminalTTL = 7 * 24 * time.Hour
)

// Service persists job state in Redis so runs survive process restarts
// and can be inspected over the API.
type Service struct {
	redis *rds.Service
	log   *logger.Logger
}

func NewService(redis *rds.Service) *Service {
	return &Service{redis: redis, log: logger.New("JobService")}
}

func key(id string) string { return "job:" + id }

// Create registers a new pending job for a keyword.
func (s *Service) Create(ctx context.Context, keyword, fingerprint string) (*Job, error) {
	j := &Job{
		ID:          uuid.New().String(),
		Keyword:     keyword,
		Fingerprint: fingerprint,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.save(ctx, j); err != nil {
		// The job still runs; it just will not be visible over the API.
		return j, err
	}
	s.log.LogDebugf("Created job %s for keyword %q", j.ID, keyword)
	return j, nil
}

// Update writes the current job state. Terminal jobs also get their
// finish timestamp stamped and a longer retention window.
func (s *Service) Update(ctx context.Context, j *Job) error {
	if j.Status.Terminal() && j.FinishedAt.IsZero() {
		j.FinishedAt = time.Now().UTC()
	}
	return s.save(ctx, j)
}

// Get loads a job by ID.
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("job store unavailable")
	}
	var j Job
	if err := s.redis.CacheGet(ctx, key(id), &j); err != nil {
		return nil, fmt.Errorf("job %s not found: %w", id, err)
	}
	return &j, nil
}

func (s *Service) save(ctx context.Context, j *Job) error {
	if s.redis == nil {
		return fmt.Errorf("job store unavailable")
	}
	ttl := activeTTL
	if j.Status.Terminal() {
		ttl = terminalTTL
	}
	if err := s.redis.CacheSet(ctx, key(j.ID), j, ttl); err != nil {
		return fmt.Errorf("failed to persist job %s: %w", j.ID, err)
	}
	return nil
}
