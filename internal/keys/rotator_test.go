package keys

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"autopress/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRotator(t *testing.T, secrets []string, opts Options) (*Rotator, *time.Time) {
	t.Helper()
	r := NewRotator(opts)
	current := time.Now()
	r.now = func() time.Time { return current }
	r.Register(context.Background(), "svc", secrets)
	return r, &current
}

func TestRoundRobinSelection(t *testing.T) {
	r, _ := newTestRotator(t, []string{"a", "b", "c"}, Options{})

	var ids []string
	for i := 0; i < 4; i++ {
		cred, err := r.Select("svc")
		require.NoError(t, err)
		ids = append(ids, cred.ID)
	}
	assert.Equal(t, []string{"svc-1", "svc-2", "svc-3", "svc-1"}, ids)
}

func TestNoPoolReturnsNoKeyAvailable(t *testing.T) {
	r := NewRotator(Options{})
	_, err := r.Select("missing")
	assert.True(t, errors.Is(err, ErrNoKeyAvailable))
}

func TestRateLimitedKeyCoolsDownAndRecovers(t *testing.T) {
	r, current := newTestRotator(t, []string{"only"}, Options{Cooldown: 5 * time.Minute})
	ctx := context.Background()

	cred, err := r.Select("svc")
	require.NoError(t, err)

	r.Report(ctx, cred, retry.AsRateLimited(errors.New("quota"), 0))

	_, err = r.Select("svc")
	assert.True(t, errors.Is(err, ErrNoKeyAvailable))

	*current = current.Add(6 * time.Minute)
	recovered, err := r.Select("svc")
	require.NoError(t, err)
	assert.Equal(t, cred.ID, recovered.ID)
}

func TestRepeatedErrorsExhaustKey(t *testing.T) {
	r, _ := newTestRotator(t, []string{"only"}, Options{MaxErrors: 4})
	ctx := context.Background()

	cred, err := r.Select("svc")
	require.NoError(t, err)

	r.Report(ctx, cred, retry.AsPermanent(errors.New("invalid key")))
	r.Report(ctx, cred, retry.AsPermanent(errors.New("invalid key")))

	_, err = r.Select("svc")
	assert.True(t, errors.Is(err, ErrNoKeyAvailable))
}

func TestSuccessClearsCooldownAndDecaysScore(t *testing.T) {
	r, _ := newTestRotator(t, []string{"a", "b"}, Options{Cooldown: 5 * time.Minute})
	ctx := context.Background()

	cred, err := r.Select("svc")
	require.NoError(t, err)
	r.Report(ctx, cred, retry.AsRateLimited(errors.New("quota"), 0))
	r.Report(ctx, cred, nil)

	// Both keys usable again, round robin continues.
	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		c, err := r.Select("svc")
		require.NoError(t, err)
		seen[c.ID] = true
	}
	assert.Len(t, seen, 2)
}

func TestResetAllRestoresExhaustedKeys(t *testing.T) {
	r, _ := newTestRotator(t, []string{"only"}, Options{MaxErrors: 1})
	ctx := context.Background()

	cred, _ := r.Select("svc")
	r.Report(ctx, cred, retry.AsTransient(errors.New("boom")))
	_, err := r.Select("svc")
	require.True(t, errors.Is(err, ErrNoKeyAvailable))

	r.ResetAll(ctx, "svc")
	_, err = r.Select("svc")
	assert.NoError(t, err)
}

// memStore persists credential state between rotator instances.
type memStore struct {
	saved map[string]map[string]interface{}
}

func (s *memStore) Load(_ context.Context, service, id string) (map[string]string, error) {
	fields, ok := s.saved[service+"/"+id]
	if !ok {
		return nil, nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = fmt.Sprint(v)
	}
	return out, nil
}

func (s *memStore) Save(_ context.Context, service, id string, fields map[string]interface{}) error {
	if s.saved == nil {
		s.saved = map[string]map[string]interface{}{}
	}
	s.saved[service+"/"+id] = fields
	return nil
}

func TestExhaustionSurvivesRestart(t *testing.T) {
	store := &memStore{}
	ctx := context.Background()

	r1 := NewRotator(Options{MaxErrors: 1, Store: store})
	r1.Register(ctx, "svc", []string{"only"})
	cred, _ := r1.Select("svc")
	r1.Report(ctx, cred, retry.AsTransient(errors.New("boom")))

	r2 := NewRotator(Options{MaxErrors: 1, Store: store})
	r2.Register(ctx, "svc", []string{"only"})
	_, err := r2.Select("svc")
	assert.True(t, errors.Is(err, ErrNoKeyAvailable))
}
