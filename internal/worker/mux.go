package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"autopress/internal/core/job"
	"autopress/internal/core/pipeline"
	"autopress/internal/logger"
	"autopress/internal/platform/tasks"

	"github.com/hibiken/asynq"
)

type Mux struct{ mux *asynq.ServeMux }

func NewMux() *Mux { return &Mux{mux: asynq.NewServeMux()} }

func (m *Mux) HandleFunc(t string, h func(ctx context.Context, task *asynq.Task) error) {
	m.mux.HandleFunc(t, h)
}

func (m *Mux) Mux() *asynq.ServeMux { return m.mux }

// RegisterKeywordHandler wires keyword tasks into the pipeline. Terminal job
// outcomes are not task errors: a Failed job is a recorded result, and
// retrying it through asynq would repeat paid calls.
func RegisterKeywordHandler(m *Mux, orch *pipeline.Orchestrator, jobs *job.Service) {
	log := logger.New("KeywordWorker")

	m.HandleFunc(tasks.TaskTypeKeyword, func(ctx context.Context, task *asynq.Task) error {
		var payload tasks.KeywordPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("malformed keyword payload: %w", err)
		}

		j, err := jobs.Get(ctx, payload.JobID)
		if err != nil {
			log.LogWarnf("Job %s not found, recreating for %q", payload.JobID, payload.Keyword)
			if _, procErr := orch.Process(ctx, payload.Keyword); procErr != nil {
				log.LogErrorf("Keyword %q failed: %v", payload.Keyword, procErr)
			}
			return nil
		}
		if j.Status.Terminal() {
			log.LogInfof("Job %s already terminal (%s), skipping", j.ID, j.Status)
			return nil
		}

		if _, err := orch.ProcessJob(ctx, j); err != nil {
			log.LogErrorf("Keyword %q failed: %v", payload.Keyword, err)
		}
		return nil
	})
}
