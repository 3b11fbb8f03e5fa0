package checker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackout-watch/internal/cache"
	"blackout-watch/internal/models"
	"blackout-watch/internal/schedule"
)

var kyiv = time.FixedZone("EET", 2*3600)

// ── Fakes ────────────────────────────────────────────────────────────

type fakeStore struct {
	mu   sync.Mutex
	subs []*models.Subscription
}

func (f *fakeStore) ListDue(_ context.Context, now time.Time) ([]*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []*models.Subscription
	for _, s := range f.subs {
		if !s.NextCheckAt.After(now) {
			due = append(due, s)
		}
	}
	return due, nil
}

func (f *fakeStore) BatchUpdatePollState(_ context.Context, updates []models.PollState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range updates {
		for _, s := range f.subs {
			if s.ID == u.SubscriptionID {
				s.NextCheckAt = u.NextCheckAt
				if u.DigestChanged {
					s.LastDigest = u.Digest
				}
			}
		}
	}
	return nil
}

func (f *fakeStore) UpdateAddressGroup(_ context.Context, id int64, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.ID == id {
			s.Group = group
		}
	}
	return nil
}

type fakeProvider struct {
	mu    sync.Mutex
	snaps map[string]*schedule.Snapshot // keyed by address key
	errs  map[string]error
	calls int
}

func (f *fakeProvider) Fetch(_ context.Context, addr models.AddressKey, _ string) (*schedule.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[addr.String()]; err != nil {
		return nil, err
	}
	snap, ok := f.snaps[addr.String()]
	if !ok {
		return nil, errors.New("no such address")
	}
	return snap, nil
}

type sentMsg struct {
	subID int64
	text  string
}

type fakeSink struct {
	mu   sync.Mutex
	sent []sentMsg
	fail bool
}

func (f *fakeSink) SendScheduleUpdate(_ context.Context, sub *models.Subscription, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send failed")
	}
	f.sent = append(f.sent, sentMsg{subID: sub.ID, text: text})
	return nil
}

// ── Helpers ──────────────────────────────────────────────────────────

func newSub(id int64, city, street, house string) *models.Subscription {
	return &models.Subscription{
		ID:               id,
		UserID:           id * 100,
		City:             city,
		Street:           street,
		House:            house,
		CheckIntervalMin: 60,
	}
}

func outageSnap(addr models.AddressKey, ranges ...string) *schedule.Snapshot {
	slots := make([]schedule.Slot, 0, len(ranges))
	for _, r := range ranges {
		slots = append(slots, schedule.Slot{Shutdown: r})
	}
	return &schedule.Snapshot{
		City:     addr.City,
		Street:   addr.Street,
		House:    addr.House,
		Schedule: map[string][]schedule.Slot{"10.12.25": slots},
	}
}

func newChecker(store *fakeStore, prov *fakeProvider, sink *fakeSink) *Checker {
	return New(store, prov, cache.NewMemory(), sink, kyiv, Options{
		LoopInterval: time.Minute,
		RetryDelay:   10 * time.Minute,
		Concurrency:  2,
	})
}

// ── Tests ────────────────────────────────────────────────────────────

func TestCycleNotifiesOnlyOnContentChange(t *testing.T) {
	ctx := context.Background()
	sub := newSub(1, "Київ", "Хрещатик", "1")
	addr := sub.Address()

	store := &fakeStore{subs: []*models.Subscription{sub}}
	prov := &fakeProvider{snaps: map[string]*schedule.Snapshot{
		addr.String(): outageSnap(addr, "05:00–08:00"),
	}}
	sink := &fakeSink{}
	c := newChecker(store, prov, sink)

	now := time.Date(2025, 12, 10, 9, 0, 0, 0, kyiv)

	// First observation always lands, with the first-check header.
	c.RunCycle(ctx, now)
	require.Len(t, sink.sent, 1)
	assert.Contains(t, sink.sent[0].text, msgFirstHeader)
	assert.NotContains(t, sink.sent[0].text, msgUpdateHeader)
	firstDigest := sub.LastDigest
	assert.NotEmpty(t, firstDigest)
	assert.NotEqual(t, schedule.SentinelDigest, firstDigest)

	// Same content again: due but silent.
	now = now.Add(time.Hour)
	c.RunCycle(ctx, now)
	assert.Len(t, sink.sent, 1)

	// Changed content: one more message, now as an update.
	prov.snaps[addr.String()] = outageSnap(addr, "05:00–08:00", "15:00–18:00")
	now = now.Add(time.Hour)
	c.RunCycle(ctx, now)
	require.Len(t, sink.sent, 2)
	assert.Contains(t, sink.sent[1].text, msgUpdateHeader)
	assert.NotEqual(t, firstDigest, sub.LastDigest)
}

func TestCycleSilentWhenOutagesClearAfterKnownSchedule(t *testing.T) {
	ctx := context.Background()
	sub := newSub(1, "Київ", "Хрещатик", "1")
	addr := sub.Address()
	sub.LastDigest = "some-earlier-digest"

	store := &fakeStore{subs: []*models.Subscription{sub}}
	prov := &fakeProvider{snaps: map[string]*schedule.Snapshot{
		addr.String(): {City: addr.City, Street: addr.Street, House: addr.House},
	}}
	sink := &fakeSink{}
	c := newChecker(store, prov, sink)

	c.RunCycle(ctx, time.Date(2025, 12, 10, 9, 0, 0, 0, kyiv))
	// Digest advances to the sentinel, but nobody is told "still no outages".
	assert.Empty(t, sink.sent)
	assert.Equal(t, schedule.SentinelDigest, sub.LastDigest)
}

func TestCycleFirstObservationWithoutOutageStillNotifies(t *testing.T) {
	ctx := context.Background()
	sub := newSub(1, "Київ", "Хрещатик", "1")
	addr := sub.Address()

	store := &fakeStore{subs: []*models.Subscription{sub}}
	prov := &fakeProvider{snaps: map[string]*schedule.Snapshot{
		addr.String(): {City: addr.City, Street: addr.Street, House: addr.House},
	}}
	sink := &fakeSink{}
	c := newChecker(store, prov, sink)

	c.RunCycle(ctx, time.Date(2025, 12, 10, 9, 0, 0, 0, kyiv))
	require.Len(t, sink.sent, 1)
	assert.Contains(t, sink.sent[0].text, msgFirstHeader)
	assert.Contains(t, sink.sent[0].text, msgNoOutages)
}

func TestCycleSharedGroupFetchedOnce(t *testing.T) {
	ctx := context.Background()
	a := newSub(1, "Київ", "Хрещатик", "1")
	b := newSub(2, "Київ", "Хрещатик", "3")
	a.Group, b.Group = "3.1", "3.1"
	addr := a.Address()

	snap := outageSnap(addr, "05:00–08:00")
	snap.Group = "3.1"
	store := &fakeStore{subs: []*models.Subscription{a, b}}
	prov := &fakeProvider{snaps: map[string]*schedule.Snapshot{
		a.Address().String(): snap,
		b.Address().String(): snap,
	}}
	sink := &fakeSink{}
	c := newChecker(store, prov, sink)

	c.RunCycle(ctx, time.Date(2025, 12, 10, 9, 0, 0, 0, kyiv))
	assert.Equal(t, 1, prov.calls)
	assert.Len(t, sink.sent, 2)
	assert.Equal(t, a.LastDigest, b.LastDigest)
}

func TestCycleFetchFailureIsolatedAndRetriedSooner(t *testing.T) {
	ctx := context.Background()
	a := newSub(1, "Київ", "Хрещатик", "1")
	b := newSub(2, "Львів", "Ринок", "5")
	d := newSub(3, "Одеса", "Дерибасівська", "7")

	store := &fakeStore{subs: []*models.Subscription{a, b, d}}
	prov := &fakeProvider{
		snaps: map[string]*schedule.Snapshot{
			a.Address().String(): outageSnap(a.Address(), "05:00–08:00"),
			d.Address().String(): outageSnap(d.Address(), "10:00–12:00"),
		},
		errs: map[string]error{b.Address().String(): errors.New("parser down")},
	}
	sink := &fakeSink{}
	c := newChecker(store, prov, sink)

	now := time.Date(2025, 12, 10, 9, 0, 0, 0, kyiv)
	c.RunCycle(ctx, now)

	// The two healthy addresses got through.
	require.Len(t, sink.sent, 2)
	assert.NotEmpty(t, a.LastDigest)
	assert.NotEmpty(t, d.LastDigest)

	// The failed one keeps its digest and retries before the full interval.
	assert.Empty(t, b.LastDigest)
	assert.Equal(t, now.Add(10*time.Minute), b.NextCheckAt)
	assert.Equal(t, now.Add(time.Hour), a.NextCheckAt)
}

func TestCycleSendFailureKeepsOldDigest(t *testing.T) {
	ctx := context.Background()
	sub := newSub(1, "Київ", "Хрещатик", "1")
	addr := sub.Address()

	store := &fakeStore{subs: []*models.Subscription{sub}}
	prov := &fakeProvider{snaps: map[string]*schedule.Snapshot{
		addr.String(): outageSnap(addr, "05:00–08:00"),
	}}
	sink := &fakeSink{fail: true}
	c := newChecker(store, prov, sink)

	now := time.Date(2025, 12, 10, 9, 0, 0, 0, kyiv)
	c.RunCycle(ctx, now)
	assert.Empty(t, sub.LastDigest)
	assert.Equal(t, now.Add(10*time.Minute), sub.NextCheckAt)

	// Sink recovers: the same diff fires again on the next cycle.
	sink.fail = false
	now = now.Add(10 * time.Minute)
	c.RunCycle(ctx, now)
	require.Len(t, sink.sent, 1)
	assert.NotEmpty(t, sub.LastDigest)
}

func TestCycleLearnsGroupFromSnapshot(t *testing.T) {
	ctx := context.Background()
	sub := newSub(1, "Київ", "Хрещатик", "1")
	addr := sub.Address()

	snap := outageSnap(addr, "05:00–08:00")
	snap.Group = "2.2"
	store := &fakeStore{subs: []*models.Subscription{sub}}
	prov := &fakeProvider{snaps: map[string]*schedule.Snapshot{addr.String(): snap}}
	c := newChecker(store, prov, &fakeSink{})

	c.RunCycle(ctx, time.Date(2025, 12, 10, 9, 0, 0, 0, kyiv))
	assert.Equal(t, "2.2", sub.Group)
}

// blockingProvider parks the first fetch until released, so a test can cancel
// the run context while the cycle is mid-flight.
type blockingProvider struct {
	fetching chan struct{}
	release  chan struct{}
	snap     *schedule.Snapshot
}

func (p *blockingProvider) Fetch(ctx context.Context, _ models.AddressKey, _ string) (*schedule.Snapshot, error) {
	close(p.fetching)
	<-p.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.snap, nil
}

type persistRecordingStore struct {
	fakeStore
	persistCtxErr error
}

func (s *persistRecordingStore) BatchUpdatePollState(ctx context.Context, updates []models.PollState) error {
	s.persistCtxErr = ctx.Err()
	return s.fakeStore.BatchUpdatePollState(ctx, updates)
}

func TestShutdownMidCycleFinishesFetchAndPersist(t *testing.T) {
	sub := newSub(1, "Київ", "Хрещатик", "1")
	store := &persistRecordingStore{fakeStore: fakeStore{subs: []*models.Subscription{sub}}}
	prov := &blockingProvider{
		fetching: make(chan struct{}),
		release:  make(chan struct{}),
		snap:     outageSnap(sub.Address(), "05:00–08:00"),
	}
	sink := &fakeSink{}
	c := New(store, prov, cache.NewMemory(), sink, kyiv, Options{
		LoopInterval: time.Hour,
		RetryDelay:   10 * time.Minute,
		Concurrency:  1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	// Cancel while the fetch is in flight, then let it proceed.
	<-prov.fetching
	cancel()
	close(prov.release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}

	// The already-started cycle ran to completion: the fetch succeeded, the
	// notification went out, and the batch persist saw a live context.
	assert.NoError(t, store.persistCtxErr)
	require.Len(t, sink.sent, 1)
	assert.NotEmpty(t, sub.LastDigest)
}

func TestFormatUpdateMergesWindows(t *testing.T) {
	sub := newSub(1, "Київ", "Хрещатик", "1")
	sub.Group = "3.1"
	snap := outageSnap(sub.Address(), "05:00–06:00", "06:00–08:00")

	text := FormatUpdate(sub, snap, false, kyiv)
	assert.Contains(t, text, "Київ, Хрещатик, 1")
	assert.Contains(t, text, "група 3.1")
	assert.Contains(t, text, "05:00–08:00 (3 год)")
	assert.NotContains(t, text, "06:00")
}
