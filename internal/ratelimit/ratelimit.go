package ratelimit

import (
	"sync"
	"time"

	"autopress/internal/logger"
)

// budget is one fixed window of allowed calls for a service.
type budget struct {
	limit       int
	window      time.Duration
	windowStart time.Time
	count       int
}

// Controller enforces per-service call budgets over fixed windows. A denied
// acquisition reports how long until the window resets; the controller never
// sleeps or retries on its own.
type Controller struct {
	mu      sync.Mutex
	budgets map[string]*budget
	log     *logger.Logger
	now     func() time.Time
}

func NewController() *Controller {
	return &Controller{
		budgets: make(map[string]*budget),
		log:     logger.New("RateLimit"),
		now:     time.Now,
	}
}

// Configure registers the budget for a service. Calling it again replaces the
// budget and resets the current window.
func (c *Controller) Configure(service string, limit int, window time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.budgets[service] = &budget{limit: limit, window: window}
	c.log.LogDebugf("budget %s: %d calls per %s", service, limit, window)
}

// TryAcquire reserves one call slot for the service. When denied, the second
// return value is the time remaining until the window resets. Services with
// no configured budget are always granted.
func (c *Controller) TryAcquire(service string) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.budgets[service]
	if !ok || b.limit <= 0 {
		return true, 0
	}

	now := c.now()
	if b.windowStart.IsZero() || now.Sub(b.windowStart) >= b.window {
		b.windowStart = now
		b.count = 0
	}

	if b.count >= b.limit {
		remaining := b.window - now.Sub(b.windowStart)
		if remaining < 0 {
			remaining = 0
		}
		return false, remaining
	}

	b.count++
	return true, 0
}
