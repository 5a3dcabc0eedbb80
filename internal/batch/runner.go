package batch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"autopress/internal/core/job"
	"autopress/internal/logger"

	"golang.org/x/time/rate"
)

// Processor runs one keyword to a terminal job. Implemented by the pipeline
// orchestrator.
type Processor interface {
	Process(ctx context.Context, keyword string) (*job.Job, error)
}

// Options control one batch run.
type Options struct {
	Max      int           // 0 = no cap
	Shuffle  bool
	Workers  int           // bounded concurrency, 0/1 = serial
	Interval time.Duration // minimum spacing between job starts, 0 = unpaced
}

// Summary aggregates a finished batch.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Jobs      []*job.Job
}

// OK reports whether every processed keyword ended without failure.
func (s Summary) OK() bool { return s.Failed == 0 }

// Runner feeds keywords through the processor with bounded concurrency.
// One keyword's failure never aborts the batch.
type Runner struct {
	proc Processor
	log  *logger.Logger
}

func NewRunner(proc Processor) *Runner {
	return &Runner{proc: proc, log: logger.New("BatchRunner")}
}

// Run processes the keyword list and returns the aggregate summary.
// Cancellation stops intake of new keywords; jobs already handed to a worker
// run on a context detached from the cancellation signal, so an in-flight
// stage is never aborted.
func (r *Runner) Run(ctx context.Context, keywords []string, opts Options) Summary {
	list := make([]string, len(keywords))
	copy(list, keywords)
	if opts.Shuffle {
		rand.Shuffle(len(list), func(i, j int) { list[i], list[j] = list[j], list[i] })
	}
	if opts.Max > 0 && len(list) > opts.Max {
		list = list[:opts.Max]
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	r.log.LogInfof("Starting batch: %d keywords, %d workers", len(list), workers)

	feed := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	summary := Summary{}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for kw := range feed {
				if err := limiter.Wait(ctx); err != nil {
					// Cancelled while pacing; the keyword was never started.
					continue
				}
				// Shutdown only stops intake. An accepted keyword keeps a
				// live context so its stages are never aborted midway.
				j, err := r.proc.Process(context.WithoutCancel(ctx), kw)
				mu.Lock()
				summary.Total++
				if j != nil {
					summary.Jobs = append(summary.Jobs, j)
					switch j.Status {
					case job.StatusSucceeded:
						summary.Succeeded++
					case job.StatusSkipped:
						summary.Skipped++
					default:
						summary.Failed++
					}
				} else if err != nil {
					summary.Failed++
				}
				mu.Unlock()
			}
		}()
	}

intake:
	for _, kw := range list {
		select {
		case <-ctx.Done():
			r.log.LogWarn("Batch cancelled, waiting for in-flight jobs")
			break intake
		case feed <- kw:
		}
	}
	close(feed)
	wg.Wait()

	r.log.LogInfof("Batch complete: %d succeeded, %d failed, %d skipped",
		summary.Succeeded, summary.Failed, summary.Skipped)
	return summary
}
