package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetEnforcedWithinWindow(t *testing.T) {
	c := NewController()
	current := time.Now()
	c.now = func() time.Time { return current }
	c.Configure("svc", 2, time.Minute)

	granted, _ := c.TryAcquire("svc")
	assert.True(t, granted)
	granted, _ = c.TryAcquire("svc")
	assert.True(t, granted)

	granted, retryAfter := c.TryAcquire("svc")
	require.False(t, granted)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)
}

func TestWindowReset(t *testing.T) {
	c := NewController()
	current := time.Now()
	c.now = func() time.Time { return current }
	c.Configure("svc", 1, time.Minute)

	granted, _ := c.TryAcquire("svc")
	assert.True(t, granted)
	granted, _ = c.TryAcquire("svc")
	assert.False(t, granted)

	current = current.Add(time.Minute)
	granted, _ = c.TryAcquire("svc")
	assert.True(t, granted)
}

func TestUnknownServiceAlwaysGranted(t *testing.T) {
	c := NewController()
	for i := 0; i < 100; i++ {
		granted, retryAfter := c.TryAcquire("unconfigured")
		assert.True(t, granted)
		assert.Zero(t, retryAfter)
	}
}

func TestConcurrentAcquireNeverExceedsLimit(t *testing.T) {
	const limit = 10
	c := NewController()
	c.Configure("svc", limit, time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	grants := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if granted, _ := c.TryAcquire("svc"); granted {
				mu.Lock()
				grants++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, limit, grants)
}

func TestReconfigureResetsWindow(t *testing.T) {
	c := NewController()
	c.Configure("svc", 1, time.Hour)
	granted, _ := c.TryAcquire("svc")
	require.True(t, granted)
	granted, _ = c.TryAcquire("svc")
	require.False(t, granted)

	c.Configure("svc", 1, time.Hour)
	granted, _ = c.TryAcquire("svc")
	assert.True(t, granted)
}
