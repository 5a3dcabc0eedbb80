package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministicAndNormalized(t *testing.T) {
	a := Fingerprint("research", "Best Coffee Makers")
	b := Fingerprint("research", "  best   COFFEE makers ")
	c := Fingerprint("generate", "Best Coffee Makers")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "cache:research:")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "hello world", Normalize("  Hello\t\tWORLD  "))
	assert.Equal(t, "", Normalize("   "))
}

type payload struct {
	Title string `json:"title"`
}

func TestGetAfterPut(t *testing.T) {
	store := NewStore(NewMemoryBackend())
	ctx := context.Background()
	fp := Fingerprint("research", "coffee")

	store.Put(ctx, fp, payload{Title: "Coffee"}, time.Hour)

	var got payload
	require.NoError(t, store.Get(ctx, fp, &got))
	assert.Equal(t, "Coffee", got.Title)
}

func TestGetMissingEntry(t *testing.T) {
	store := NewStore(NewMemoryBackend())
	var got payload
	err := store.Get(context.Background(), Fingerprint("research", "nope"), &got)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	backend := NewMemoryBackend()
	current := time.Now()
	backend.now = func() time.Time { return current }

	store := NewStore(backend)
	ctx := context.Background()
	fp := Fingerprint("research", "coffee")
	store.Put(ctx, fp, payload{Title: "Coffee"}, time.Minute)

	var got payload
	require.NoError(t, store.Get(ctx, fp, &got))

	current = current.Add(2 * time.Minute)
	err := store.Get(ctx, fp, &got)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestZeroTTLSkipsWrite(t *testing.T) {
	backend := NewMemoryBackend()
	store := NewStore(backend)

	store.Put(context.Background(), Fingerprint("publish", "coffee"), payload{Title: "x"}, 0)
	assert.Equal(t, 0, backend.Len())
}

func TestPurgeByStage(t *testing.T) {
	backend := NewMemoryBackend()
	store := NewStore(backend)
	ctx := context.Background()

	store.Put(ctx, Fingerprint("research", "coffee"), payload{Title: "a"}, time.Hour)
	store.Put(ctx, Fingerprint("generate", "coffee"), payload{Title: "b"}, time.Hour)

	n, err := store.Purge(ctx, "research")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var got payload
	assert.ErrorIs(t, store.Get(ctx, Fingerprint("research", "coffee"), &got), ErrMiss)
	assert.NoError(t, store.Get(ctx, Fingerprint("generate", "coffee"), &got))
}

func TestPurgeAll(t *testing.T) {
	backend := NewMemoryBackend()
	store := NewStore(backend)
	ctx := context.Background()

	store.Put(ctx, Fingerprint("research", "coffee"), payload{Title: "a"}, time.Hour)
	store.Put(ctx, Fingerprint("generate", "tea"), payload{Title: "b"}, time.Hour)

	n, err := store.Purge(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, backend.Len())
}
