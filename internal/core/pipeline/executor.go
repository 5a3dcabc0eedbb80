package pipeline

import (
	"context"
	"time"

	"autopress/internal/cache"
	"autopress/internal/core/job"
	"autopress/internal/keys"
	"autopress/internal/logger"
	"autopress/internal/ratelimit"
	"autopress/internal/retry"
)

// Deps are the shared components every stage run goes through. Rate and key
// state are the only cross-job mutable state; both serialize internally.
type Deps struct {
	Cache *cache.Store
	Rate  *ratelimit.Controller
	Keys  *keys.Rotator
	Log   *logger.Logger
}

// StageSpec describes how one stage is executed.
type StageSpec struct {
	Name     string
	Service  string // rate/key pool name, "" for purely local work
	Required bool
	CacheTTL time.Duration // 0 disables caching for the stage
	Policy   retry.Policy
}

// Call performs the stage's external work. secret is the selected credential
// for the stage's service, or "" when the service has no rotating pool. The
// call writes its result into the variable captured by the closure.
type Call func(ctx context.Context, secret string) error

// Execute runs one stage: cache lookup, rate gate, key selection, the
// retry-wrapped call, then a best-effort cache write. A cache hit returns
// without touching rate or key state.
func (d *Deps) Execute(ctx context.Context, spec StageSpec, input string, out interface{}, call Call) (job.StageResult, error) {
	start := time.Now()
	fp := cache.Fingerprint(spec.Name, input)

	if spec.CacheTTL > 0 && out != nil {
		if err := d.Cache.Get(ctx, fp, out); err == nil {
			d.Log.LogDebugf("Stage %s cache hit for %q", spec.Name, input)
			return job.StageResult{
				Stage:    spec.Name,
				Outcome:  job.StageSucceeded,
				CacheHit: true,
				Elapsed:  time.Since(start),
			}, nil
		}
	}

	err := spec.Policy.Execute(ctx, func(ctx context.Context) error {
		return d.attempt(ctx, spec, call)
	})

	res := job.StageResult{Stage: spec.Name, Elapsed: time.Since(start)}
	if err != nil {
		res.Outcome = job.StageFailed
		res.Error = err.Error()
		return res, err
	}
	res.Outcome = job.StageSucceeded

	if spec.CacheTTL > 0 && out != nil {
		d.Cache.Put(ctx, fp, out, spec.CacheTTL)
	}
	return res, nil
}

// attempt is a single rate-gated, key-selected invocation of the stage call.
func (d *Deps) attempt(ctx context.Context, spec StageSpec, call Call) error {
	if spec.Service != "" {
		if err := d.acquire(ctx, spec.Service); err != nil {
			return err
		}
	}

	secret := ""
	var cred keys.Credential
	hasCred := false
	if spec.Service != "" && d.Keys != nil && d.Keys.HasPool(spec.Service) {
		c, err := d.Keys.Select(spec.Service)
		if err != nil {
			// Every credential exhausted or cooling down. Retrying the same
			// attempt budget will not help, surface immediately.
			return retry.AsPermanent(err)
		}
		cred, secret, hasCred = c, c.Secret, true
	}

	callErr := call(ctx, secret)
	if hasCred {
		d.Keys.Report(ctx, cred, callErr)
	}
	return callErr
}

// acquire blocks until the service's rate window grants a slot or the
// context is cancelled.
func (d *Deps) acquire(ctx context.Context, service string) error {
	for {
		granted, retryAfter := d.Rate.TryAcquire(service)
		if granted {
			return nil
		}
		d.Log.LogDebugf("Rate limit for %s reached, waiting %s", service, retryAfter)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfter):
		}
	}
}
