package keys

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"autopress/internal/logger"
	"autopress/internal/retry"
)

// ErrNoKeyAvailable is returned when every credential of a service is
// exhausted or cooling down.
var ErrNoKeyAvailable = errors.New("no key available")

// Credential is one API key in a service pool.
type Credential struct {
	ID      string
	Service string
	Secret  string
}

type credState struct {
	errorScore    float64
	calls         int
	exhausted     bool
	cooldownUntil time.Time
}

type pool struct {
	creds []Credential
	state map[string]*credState
	next  int
}

// StateStore persists per-credential cooldown and exhaustion so a restart
// does not repeat rate-limit violations. Implementations are best-effort.
type StateStore interface {
	Load(ctx context.Context, service, id string) (map[string]string, error)
	Save(ctx context.Context, service, id string, fields map[string]interface{}) error
}

// Options configure a Rotator.
type Options struct {
	MaxErrors float64
	Cooldown  time.Duration
	Store     StateStore
}

// Rotator selects credentials round-robin per service, skipping exhausted and
// cooling keys. All pool mutation is serialized.
type Rotator struct {
	mu        sync.Mutex
	pools     map[string]*pool
	maxErrors float64
	cooldown  time.Duration
	store     StateStore
	log       *logger.Logger
	now       func() time.Time
}

func NewRotator(opts Options) *Rotator {
	maxErrors := opts.MaxErrors
	if maxErrors <= 0 {
		maxErrors = 5
	}
	cooldown := opts.Cooldown
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	return &Rotator{
		pools:     make(map[string]*pool),
		maxErrors: maxErrors,
		cooldown:  cooldown,
		store:     opts.Store,
		log:       logger.New("KeyRotator"),
		now:       time.Now,
	}
}

// Register installs the credential pool for a service, hydrating any
// persisted cooldown/exhaustion state.
func (r *Rotator) Register(ctx context.Context, service string, secrets []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := &pool{state: make(map[string]*credState)}
	for i, secret := range secrets {
		cred := Credential{
			ID:      fmt.Sprintf("%s-%d", service, i+1),
			Service: service,
			Secret:  secret,
		}
		p.creds = append(p.creds, cred)
		p.state[cred.ID] = r.loadState(ctx, service, cred.ID)
	}
	r.pools[service] = p
	r.log.LogInfof("registered %d credential(s) for %s", len(secrets), service)
}

// HasPool reports whether a pool is registered for the service.
func (r *Rotator) HasPool(service string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[service]
	return ok && len(p.creds) > 0
}

// PoolSize returns the number of credentials registered for the service.
func (r *Rotator) PoolSize(service string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[service]
	if !ok {
		return 0
	}
	return len(p.creds)
}

// Select returns the next usable credential for the service, round-robin
// among keys that are neither exhausted nor cooling down.
func (r *Rotator) Select(service string) (Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pools[service]
	if !ok || len(p.creds) == 0 {
		return Credential{}, fmt.Errorf("%w: %s has no credential pool", ErrNoKeyAvailable, service)
	}

	now := r.now()
	for i := 0; i < len(p.creds); i++ {
		cred := p.creds[p.next%len(p.creds)]
		p.next++
		st := p.state[cred.ID]
		if st.exhausted {
			continue
		}
		if st.cooldownUntil.After(now) {
			continue
		}
		return cred, nil
	}
	return Credential{}, fmt.Errorf("%w: all %s credentials exhausted or cooling down", ErrNoKeyAvailable, service)
}

// Report records the outcome of a call made with cred. Success decays the
// error score and clears any cooldown; a rate-limit signal starts a cooldown;
// repeated or auth failures mark the key exhausted.
func (r *Rotator) Report(ctx context.Context, cred Credential, callErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pools[cred.Service]
	if !ok {
		return
	}
	st, ok := p.state[cred.ID]
	if !ok {
		return
	}
	st.calls++

	if callErr == nil {
		st.cooldownUntil = time.Time{}
		if st.errorScore > 0 {
			st.errorScore -= 0.5
			if st.errorScore < 0 {
				st.errorScore = 0
			}
		}
		r.saveState(ctx, cred, st)
		return
	}

	switch retry.Classify(callErr) {
	case retry.RateLimited:
		st.errorScore += 2
		st.cooldownUntil = r.now().Add(r.cooldown)
		r.log.LogWarnf("%s rate limited, cooling down until %s (score %.1f/%.1f)",
			cred.ID, st.cooldownUntil.Format(time.RFC3339), st.errorScore, r.maxErrors)
	case retry.Permanent:
		st.errorScore += 2
	default:
		st.errorScore++
	}

	if st.errorScore >= r.maxErrors {
		st.exhausted = true
		r.log.LogErrorf("%s exceeded error budget, marking exhausted", cred.ID)
	}
	r.saveState(ctx, cred, st)
}

// ResetAll clears exhaustion and cooldowns for a service, giving every key a
// fresh start.
func (r *Rotator) ResetAll(ctx context.Context, service string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pools[service]
	if !ok {
		return
	}
	for _, cred := range p.creds {
		st := p.state[cred.ID]
		st.errorScore = 0
		st.exhausted = false
		st.cooldownUntil = time.Time{}
		r.saveState(ctx, cred, st)
	}
	r.log.LogInfof("reset all credentials for %s", service)
}

func (r *Rotator) loadState(ctx context.Context, service, id string) *credState {
	st := &credState{}
	if r.store == nil {
		return st
	}
	fields, err := r.store.Load(ctx, service, id)
	if err != nil || len(fields) == 0 {
		return st
	}
	if v, err := strconv.ParseFloat(fields["error_score"], 64); err == nil {
		st.errorScore = v
	}
	if fields["exhausted"] == "1" {
		st.exhausted = true
	}
	if v, err := strconv.ParseInt(fields["cooldown_until"], 10, 64); err == nil && v > 0 {
		st.cooldownUntil = time.Unix(v, 0)
	}
	return st
}

func (r *Rotator) saveState(ctx context.Context, cred Credential, st *credState) {
	if r.store == nil {
		return
	}
	exhausted := "0"
	if st.exhausted {
		exhausted = "1"
	}
	var cooldown int64
	if !st.cooldownUntil.IsZero() {
		cooldown = st.cooldownUntil.Unix()
	}
	err := r.store.Save(ctx, cred.Service, cred.ID, map[string]interface{}{
		"error_score":    st.errorScore,
		"exhausted":      exhausted,
		"cooldown_until": cooldown,
		"calls":          st.calls,
	})
	if err != nil {
		r.log.LogDebugf("persist %s state: %v", cred.ID, err)
	}
}
