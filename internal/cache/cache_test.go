package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackout-watch/internal/models"
	"blackout-watch/internal/schedule"
)

func TestMemoryPutGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := models.AddressKey{City: "Київ", Street: "Хрещатик", House: "1"}

	_, ok, err := m.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	e := Entry{
		Snapshot:  &schedule.Snapshot{City: "Київ"},
		Digest:    "abc",
		FetchedAt: time.Now(),
	}
	require.NoError(t, m.Put(ctx, key, e))

	got, ok, err := m.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", got.Digest)

	// Last write wins.
	e.Digest = "def"
	require.NoError(t, m.Put(ctx, key, e))
	got, _, _ = m.Get(ctx, key)
	assert.Equal(t, "def", got.Digest)

	keys, err := m.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{key.String()}, keys)
}
