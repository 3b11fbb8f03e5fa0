package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotWith(sched map[string][]Slot) *Snapshot {
	return &Snapshot{
		City:     "м. Дніпро",
		Street:   "вул. Короленка",
		House:    "24",
		Group:    "3.1",
		Schedule: sched,
	}
}

func TestCanonicalizeOrderInvariance(t *testing.T) {
	a := snapshotWith(map[string][]Slot{
		"10.12.25": {
			{Shutdown: "05:00–12:00", Status: "відключення"},
			{Shutdown: "15:30–22:00", Status: "відключення"},
		},
		"11.12.25": {
			{Shutdown: "00:00–04:00", Status: "відключення"},
		},
	})
	// Same content, slots reversed and an incidental status variation.
	b := snapshotWith(map[string][]Slot{
		"11.12.25": {
			{Shutdown: "00:00–04:00"},
		},
		"10.12.25": {
			{Shutdown: "15:30–22:00"},
			{Shutdown: "05:00–12:00", Status: "можливе відключення"},
		},
	})

	require.Equal(t, Canonicalize(a), Canonicalize(b))
}

func TestCanonicalizeContentSensitivity(t *testing.T) {
	a := snapshotWith(map[string][]Slot{
		"10.12.25": {{Shutdown: "05:00–12:00"}, {Shutdown: "15:30–22:00"}},
	})
	b := snapshotWith(map[string][]Slot{
		"10.12.25": {{Shutdown: "05:00–12:00"}, {Shutdown: "15:30–23:00"}},
	})
	c := snapshotWith(map[string][]Slot{
		"10.12.25": {{Shutdown: "05:01–12:00"}, {Shutdown: "15:30–22:00"}},
	})

	assert.NotEqual(t, Canonicalize(a), Canonicalize(b))
	assert.NotEqual(t, Canonicalize(a), Canonicalize(c))
}

func TestCanonicalizeSentinel(t *testing.T) {
	assert.Equal(t, SentinelDigest, Canonicalize(nil))
	assert.Equal(t, SentinelDigest, Canonicalize(snapshotWith(nil)))
	assert.Equal(t, SentinelDigest, Canonicalize(snapshotWith(map[string][]Slot{})))
	assert.Equal(t, SentinelDigest, Canonicalize(snapshotWith(map[string][]Slot{"10.12.25": {}})))

	nonEmpty := Canonicalize(snapshotWith(map[string][]Slot{
		"10.12.25": {{Shutdown: "05:00–06:00"}},
	}))
	assert.NotEqual(t, SentinelDigest, nonEmpty)
}

func TestCanonicalizeIgnoresFetchedAtAndAddress(t *testing.T) {
	sched := map[string][]Slot{"10.12.25": {{Shutdown: "05:00–06:00"}}}
	a := &Snapshot{City: "Київ", Schedule: sched}
	b := &Snapshot{City: "Одеса", Street: "інша", Schedule: sched}
	assert.Equal(t, Canonicalize(a), Canonicalize(b))
}

func TestCanonicalizeUnparseableDateKeys(t *testing.T) {
	// Must not panic and must stay deterministic on non-date keys.
	a := snapshotWith(map[string][]Slot{
		"завтра":   {{Shutdown: "05:00–06:00"}},
		"10.12.25": {{Shutdown: "07:00–08:00"}},
	})
	b := snapshotWith(map[string][]Slot{
		"10.12.25": {{Shutdown: "07:00–08:00"}},
		"завтра":   {{Shutdown: "05:00–06:00"}},
	})
	require.Equal(t, Canonicalize(a), Canonicalize(b))
}

func TestNeverObserved(t *testing.T) {
	assert.True(t, NeverObserved(""))
	assert.True(t, NeverObserved(SentinelDigest))
	assert.False(t, NeverObserved("deadbeef"))
}
